package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/LJTian/AlzNews/internal/articles"
	"github.com/LJTian/AlzNews/internal/mockapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(mockapi.NewServer(mockapi.SeedDataset(30)).Handler())
	t.Cleanup(srv.Close)
	return srv.URL + "/api/news/approved"
}

func TestRunFetchPrintsPage(t *testing.T) {
	var out bytes.Buffer
	err := runFetch(context.Background(), &out, fetchFlags{
		backend: newBackend(t),
		page:    2,
		sort:    "desc",
		timeout: time.Second,
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, "30 articles found – page 2 of 3", lines[0])
	assert.Len(t, lines, 11)
}

func TestRunFetchJSON(t *testing.T) {
	var out bytes.Buffer
	err := runFetch(context.Background(), &out, fetchFlags{
		backend: newBackend(t),
		page:    1,
		sources: []string{"bbc"},
		asJSON:  true,
		timeout: time.Second,
	})
	require.NoError(t, err)

	var resp articles.Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, 6, resp.AllArticlesLength)
	for _, a := range resp.Articles {
		assert.Contains(t, a.Publisher, "bbc")
	}
}

func TestRunFetchNoMatch(t *testing.T) {
	var out bytes.Buffer
	err := runFetch(context.Background(), &out, fetchFlags{
		backend: newBackend(t),
		page:    1,
		keyword: "zzz-no-match",
		timeout: time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "No articles found...\n", out.String())
}

func TestRunFetchRejectsBadPage(t *testing.T) {
	err := runFetch(context.Background(), &bytes.Buffer{}, fetchFlags{page: 0, timeout: time.Second})
	assert.Error(t, err)
}
