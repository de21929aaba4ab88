package storage

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/LJTian/AlzNews/internal/articles"
	"github.com/LJTian/AlzNews/internal/newsapi"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultPageCacheTTL = 30 * time.Second
	// DefaultFetchTimeout 共享请求自身的超时
	DefaultFetchTimeout = 15 * time.Second
)

// CachedFetcher 在后端接口前加一层 Redis 缓存；相同条件的并发未命中只请求一次
type CachedFetcher struct {
	next  newsapi.Fetcher
	store *Store
	ttl   time.Duration
	group singleflight.Group

	fetchTimeout time.Duration
}

func NewCachedFetcher(next newsapi.Fetcher, store *Store, ttl time.Duration) *CachedFetcher {
	if ttl <= 0 {
		ttl = DefaultPageCacheTTL
	}
	return &CachedFetcher{next: next, store: store, ttl: ttl, fetchTimeout: DefaultFetchTimeout}
}

// cacheKey 编码后的查询串已按参数名排序；来源顺序不影响结果，也排序一次
func cacheKey(f articles.FilterState) string {
	f = f.Normalized()
	sort.Strings(f.Sources)
	return "news:page:" + newsapi.EncodeQuery(f).Encode()
}

func (c *CachedFetcher) redisEnabled() bool {
	return c.store != nil && c.store.Redis != nil
}

func (c *CachedFetcher) ListArticles(ctx context.Context, f articles.FilterState) (*articles.PageResult, error) {
	key := cacheKey(f)

	if c.redisEnabled() {
		if bs, err := c.store.Redis.Get(ctx, key).Bytes(); err == nil {
			var cached articles.PageResult
			if err := json.Unmarshal(bs, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	// 共享的请求不能被某一个调用方取消，每个调用方只按自己的 ctx 放弃等待
	ch := c.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		res, err := c.next.ListArticles(fetchCtx, f)
		if err != nil {
			return nil, err
		}
		c.put(fetchCtx, key, res)
		return res, nil
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*articles.PageResult), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *CachedFetcher) put(ctx context.Context, key string, res *articles.PageResult) {
	if !c.redisEnabled() {
		return
	}
	bs, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := c.store.Redis.Set(ctx, key, bs, c.ttl).Err(); err != nil {
		c.store.logger.Debug("storage: cache page failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate 删除指定条件的缓存
func (c *CachedFetcher) Invalidate(ctx context.Context, f articles.FilterState) error {
	if !c.redisEnabled() {
		return nil
	}
	return c.store.Redis.Del(ctx, cacheKey(f)).Err()
}
