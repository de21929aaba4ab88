package newsapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/LJTian/AlzNews/internal/articles"
	"github.com/LJTian/AlzNews/internal/mockapi"
	"github.com/LJTian/AlzNews/internal/newsapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeQueryRepeatsNewsSource(t *testing.T) {
	f := articles.FilterState{Keyword: "drug", SortOrder: articles.Ascending, Sources: []string{"bbc", "nih"}, Page: 3}
	q := newsapi.EncodeQuery(f)

	assert.Equal(t, "3", q.Get("page"))
	assert.Equal(t, "asc", q.Get("sortingOrder"))
	assert.Equal(t, "drug", q.Get("filterKeyword"))
	assert.Equal(t, []string{"bbc", "nih"}, q["newsSource"])

	back := newsapi.DecodeQuery(q)
	assert.Equal(t, f, back)
}

func TestDecodeQueryDefaultsAndBracketForm(t *testing.T) {
	q := map[string][]string{"newsSource[]": {"bbc"}, "page": {"x"}}
	f := newsapi.DecodeQuery(q)
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, articles.Descending, f.SortOrder)
	assert.Equal(t, []string{"bbc"}, f.Sources)
}

func TestListArticlesAgainstMock(t *testing.T) {
	srv := httptest.NewServer(mockapi.NewServer(mockapi.SeedDataset(30)).Handler())
	defer srv.Close()

	c := newsapi.NewClient(srv.URL + "/api/news/approved")
	f := articles.DefaultFilterState()
	f.Page = 2

	p, err := c.ListArticles(context.Background(), f)
	require.NoError(t, err)
	assert.Len(t, p.Articles, 10)
	assert.Equal(t, 2, p.CurrentPage)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 30, p.TotalCount)
}

func TestListArticlesStatusError(t *testing.T) {
	s := mockapi.NewServer(mockapi.SeedDataset(1))
	s.Fail = func(articles.FilterState) int { return http.StatusBadGateway }
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	_, err := newsapi.NewClient(srv.URL + "/api/news/approved").ListArticles(context.Background(), articles.DefaultFilterState())
	var se *newsapi.StatusError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
}

func TestListArticlesNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := newsapi.NewClient(srv.URL)
	_, err := c.ListArticles(context.Background(), articles.DefaultFilterState())
	assert.ErrorIs(t, err, newsapi.ErrNetwork)

	srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = c.ListArticles(ctx, articles.DefaultFilterState())
	assert.ErrorIs(t, err, newsapi.ErrNetwork)
}

func TestListArticlesKeepsContextErrorInChain(t *testing.T) {
	s := mockapi.NewServer(mockapi.SeedDataset(5))
	s.Delay = func(articles.FilterState) time.Duration { return time.Second }
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := newsapi.NewClient(srv.URL+"/api/news/approved").ListArticles(ctx, articles.DefaultFilterState())
	assert.ErrorIs(t, err, newsapi.ErrNetwork)
	assert.ErrorIs(t, err, context.Canceled)
}
