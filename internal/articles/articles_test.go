package articles

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseSortOrder(t *testing.T) {
	cases := map[string]SortOrder{
		"asc":  Ascending,
		"ASC ": Ascending,
		"desc": Descending,
		"":     Descending,
		"hot":  Descending,
	}
	for in, want := range cases {
		if got := ParseSortOrder(in); got != want {
			t.Fatalf("ParseSortOrder(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWithSourceKeepsOrderAndDoesNotAlias(t *testing.T) {
	f := DefaultFilterState()
	f = f.WithSource("bbc", true)
	f = f.WithSource("nih", true)
	f = f.WithSource("bbc", true) // 重复加入无效

	if diff := cmp.Diff([]string{"bbc", "nih"}, f.Sources); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}

	removed := f.WithSource("bbc", false)
	if diff := cmp.Diff([]string{"nih"}, removed.Sources); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	// 原状态保持不变
	if diff := cmp.Diff([]string{"bbc", "nih"}, f.Sources); diff != "" {
		t.Fatalf("original mutated (-want +got):\n%s", diff)
	}

	if got := f.WithSource("  ", true); len(got.Sources) != 2 {
		t.Fatalf("blank source should be ignored: %v", got.Sources)
	}
}

func TestNormalizedFixesInvalidValues(t *testing.T) {
	f := FilterState{SortOrder: "weird", Sources: []string{"a", " a ", "", "b"}, Page: 0}
	got := f.Normalized()
	want := FilterState{SortOrder: Descending, Sources: []string{"a", "b"}, Page: 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestResponseDecodeAndConvert(t *testing.T) {
	body := `{"articles":null,"allArticlesLength":0,"page":1,"totalPages":0}`
	var r Response
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	p := r.PageResult()
	if p.Articles == nil || len(p.Articles) != 0 {
		t.Fatalf("articles should be an empty slice, got %#v", p.Articles)
	}
	if !p.Empty() || p.ValidPage(1) {
		t.Fatalf("empty result should have no valid pages: %+v", p)
	}
}

func TestNormalizeDeduplicatesAndTrims(t *testing.T) {
	in := []Article{
		{ID: "1", Title: "  Title 1 "},
		{ID: "1", Title: "Title 1 duplicate"},
		{Link: "https://example.com/x", Title: "by link"},
		{Link: "https://example.com/x", Title: "by link dup"},
		{Title: "no key"},
	}
	out := Normalize(in)
	if len(out) != 3 {
		t.Fatalf("expected 3 articles after dedupe, got %d", len(out))
	}
	if out[0].Title != "Title 1" {
		t.Fatalf("title should be trimmed: %q", out[0].Title)
	}
}
