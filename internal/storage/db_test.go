package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/LJTian/AlzNews/internal/articles"
	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSQLiteStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "sessions.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	s, err := NewStoreWith(db, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newRedisStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s, err := NewStoreWith(nil, rdb, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

// countingFetcher 每次请求都返回新的结果，记录调用次数
type countingFetcher struct {
	calls int
}

func (f *countingFetcher) ListArticles(_ context.Context, st articles.FilterState) (*articles.PageResult, error) {
	f.calls++
	return &articles.PageResult{
		Articles:    []articles.Article{{ID: "a001", Title: "Blood test", Publisher: []string{"bbc"}}},
		TotalCount:  1,
		CurrentPage: st.Page,
		TotalPages:  1,
	}, nil
}

func TestSessionSaveLoadWithDB(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	f := articles.FilterState{Keyword: "blood", SortOrder: articles.Ascending, Sources: []string{"bbc", "nih.gov"}, Page: 2}
	require.NoError(t, s.SaveSession(ctx, "sid", f))

	got, err := s.LoadSession(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, f, got)

	// 再次保存覆盖同一行
	f.Sources = nil
	f.Page = 1
	require.NoError(t, s.SaveSession(ctx, "sid", f))
	got, err = s.LoadSession(ctx, "sid")
	require.NoError(t, err)
	assert.Empty(t, got.Sources)
	assert.Equal(t, 1, got.Page)

	var count int64
	require.NoError(t, s.DB.Model(&VisitorSession{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	_, err = s.LoadSession(ctx, "missing")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestPruneSessionsByUpdatedAt(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSession(ctx, "old", articles.DefaultFilterState()))
	require.NoError(t, s.SaveSession(ctx, "fresh", articles.DefaultFilterState()))
	require.NoError(t, s.DB.Model(&VisitorSession{}).Where("id = ?", "old").
		UpdateColumn("updated_at", time.Now().Add(-3*time.Hour)).Error)

	n, err := s.PruneSessions(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.LoadSession(ctx, "old")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
	_, err = s.LoadSession(ctx, "fresh")
	assert.NoError(t, err)
}

func TestCachedFetcherRedisHitAndMiss(t *testing.T) {
	s, mr := newRedisStore(t)
	next := &countingFetcher{}
	c := NewCachedFetcher(next, s, 30*time.Second)
	ctx := context.Background()
	st := articles.DefaultFilterState()

	first, err := c.ListArticles(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, 1, next.calls)
	require.True(t, mr.Exists(cacheKey(st)))
	assert.Equal(t, 30*time.Second, mr.TTL(cacheKey(st)))

	second, err := c.ListArticles(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, 1, next.calls, "second call should be served from redis")
	assert.Equal(t, first.Articles[0].ID, second.Articles[0].ID)
	assert.Equal(t, first.TotalPages, second.TotalPages)

	// 其他条件不共用缓存
	other := st
	other.Page = 2
	_, err = c.ListArticles(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)

	require.NoError(t, c.Invalidate(ctx, st))
	assert.False(t, mr.Exists(cacheKey(st)))
}

func TestCachedFetcherExpiresAfterTTL(t *testing.T) {
	s, mr := newRedisStore(t)
	next := &countingFetcher{}
	c := NewCachedFetcher(next, s, 30*time.Second)
	ctx := context.Background()
	st := articles.DefaultFilterState()

	_, err := c.ListArticles(ctx, st)
	require.NoError(t, err)
	mr.FastForward(31 * time.Second)
	assert.False(t, mr.Exists(cacheKey(st)))

	_, err = c.ListArticles(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedFetcherRedisDownFallsThrough(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	s, err := NewStoreWith(nil, rdb, nil)
	require.NoError(t, err)
	defer s.Close()
	mr.Close()

	next := &countingFetcher{}
	c := NewCachedFetcher(next, s, 0)
	res, err := c.ListArticles(context.Background(), articles.DefaultFilterState())
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalCount)
	assert.Equal(t, 1, next.calls)
}
