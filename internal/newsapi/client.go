// Package newsapi 访问后端的文章分页接口 GET /api/news/approved
package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/LJTian/AlzNews/internal/articles"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "http://localhost:8000/api/news/approved"

	maxResponseBytes     = 4 << 20 // 4MB
	defaultClientTimeout = 10 * time.Second
)

// ErrNetwork 请求失败、超时或响应无法解析
var ErrNetwork = errors.New("newsapi: network failure")

// StatusError 后端返回非 2xx
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("newsapi: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("newsapi: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Fetcher 获取一页文章，Client 与带缓存的包装都实现它
type Fetcher interface {
	ListArticles(ctx context.Context, f articles.FilterState) (*articles.PageResult, error)
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

type Option func(*Client)

// WithHTTPClient 替换底层 http.Client，测试时使用
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func NewClient(baseURL string, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultClientTimeout},
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// EncodeQuery 按接口约定编码查询参数，newsSource 为重复参数
func EncodeQuery(f articles.FilterState) url.Values {
	f = f.Normalized()
	q := url.Values{}
	q.Set("page", strconv.Itoa(f.Page))
	q.Set("sortingOrder", string(f.SortOrder))
	q.Set("filterKeyword", f.Keyword)
	for _, s := range f.Sources {
		q.Add("newsSource", s)
	}
	return q
}

// DecodeQuery 与 EncodeQuery 相反，mock 接口用来解析请求
func DecodeQuery(q url.Values) articles.FilterState {
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil {
		page = 1
	}
	sources := q["newsSource"]
	if len(sources) == 0 {
		// 兼容 axios 默认的数组序列化 newsSource[]=a&newsSource[]=b
		sources = q["newsSource[]"]
	}
	f := articles.FilterState{
		Keyword:   q.Get("filterKeyword"),
		SortOrder: articles.ParseSortOrder(q.Get("sortingOrder")),
		Sources:   sources,
		Page:      page,
	}
	return f.Normalized()
}

// ListArticles 请求指定筛选条件下的一页文章
func (c *Client) ListArticles(ctx context.Context, f articles.FilterState) (*articles.PageResult, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("newsapi: parse base url: %w", err)
	}
	u.RawQuery = EncodeQuery(f).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("newsapi: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}

	var r articles.Response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("%w: decode body: %w", ErrNetwork, err)
	}

	c.logger.Debug("newsapi: list articles",
		zap.String("query", u.RawQuery),
		zap.Int("articles", len(r.Articles)),
		zap.Int("page", r.Page),
		zap.Int("totalPages", r.TotalPages),
		zap.Duration("took", time.Since(start)),
	)

	p := r.PageResult()
	p.Articles = articles.Normalize(p.Articles)
	return p, nil
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit]) + "…"
}
