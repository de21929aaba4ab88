// Package controller 维护文章列表的筛选 / 排序 / 分页状态，并与后端分页接口保持同步。
//
// 除关键词外的所有操作都会立即在后台发起请求；关键词输入经过防抖后才请求。
// 每个请求带递增序号，序号低于已应用序号的响应直接丢弃，避免慢请求覆盖新数据。
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/LJTian/AlzNews/internal/articles"
	"github.com/LJTian/AlzNews/internal/newsapi"
	"go.uber.org/zap"
)

const DefaultRequestTimeout = 10 * time.Second

var (
	// ErrInvalidPage 页码不在 [1, totalPages] 内，操作被忽略
	ErrInvalidPage = errors.New("controller: invalid page")
	ErrClosed      = errors.New("controller: closed")
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusFailed  Status = "failed"
)

// View 某一时刻的只读快照
type View struct {
	State  articles.FilterState `json:"state"`
	Result *articles.PageResult `json:"result"`
	Status Status               `json:"status"`
	// Error 最近一次失败的提示文案，成功后清空
	Error   string `json:"error,omitempty"`
	Applied uint64 `json:"applied"`
}

// PageIndex 从 0 开始的当前页，分页组件使用
func (v View) PageIndex() int {
	if v.State.Page < 1 {
		return 0
	}
	return v.State.Page - 1
}

// TotalPages 没有结果时为 0
func (v View) TotalPages() int {
	if v.Result == nil {
		return 0
	}
	return v.Result.TotalPages
}

type Options struct {
	Debounce       time.Duration
	RequestTimeout time.Duration
	Logger         *zap.Logger
	// OnScrollTop 翻页成功后调用
	OnScrollTop func()
}

type Controller struct {
	fetcher  newsapi.Fetcher
	opts     Options
	logger   *zap.Logger
	debounce *Debouncer

	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	idle     *sync.Cond
	state    articles.FilterState
	result   *articles.PageResult
	outcome  Status
	lastErr  string
	issued   uint64
	applied  uint64
	inflight int
	closed   bool

	subs    map[int]chan View
	nextSub int
}

func New(f newsapi.Fetcher, opts Options) *Controller {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		fetcher:  f,
		opts:     opts,
		logger:   logger,
		debounce: NewDebouncer(opts.Debounce),
		baseCtx:  ctx,
		cancel:   cancel,
		state:    articles.DefaultFilterState(),
		outcome:  StatusIdle,
		subs:     make(map[int]chan View),
	}
	c.idle = sync.NewCond(&c.mu)
	return c
}

// Hydrate 用已获取的结果初始化，不发请求
func (c *Controller) Hydrate(state articles.FilterState, result *articles.PageResult) {
	c.mu.Lock()
	c.state = state.Normalized()
	if result != nil {
		c.result = result
		c.state.Page = clampPage(result.CurrentPage, result.TotalPages)
	}
	c.outcome = StatusIdle
	c.lastErr = ""
	c.publishLocked()
	c.mu.Unlock()
}

// Load 首屏加载：同步请求当前状态（默认为默认筛选条件）并应用结果
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	seq, state := c.beginLocked()
	c.publishLocked()
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()
	res, err := c.fetcher.ListArticles(ctx, state)
	c.finish(seq, state, res, err, false)
	if err != nil {
		return err
	}
	// 恢复的页码可能已越界，等补发的请求完成
	c.Wait()
	return nil
}

// SetKeyword 立即更新展示用的关键词，静默期过后才用最新关键词请求
func (c *Controller) SetKeyword(text string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state.Keyword = text
	c.publishLocked()
	c.mu.Unlock()

	c.debounce.Debounce(func() {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.issueLocked(false)
	})
}

// ToggleSort 切换排序方向并立即请求当前页
func (c *Controller) ToggleSort() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state.SortOrder = c.state.SortOrder.Toggle()
	c.issueLocked(false)
}

// ToggleSource 加入或移除来源并立即请求当前页
func (c *Controller) ToggleSource(id string, included bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state = c.state.WithSource(id, included)
	c.issueLocked(false)
}

// RemoveSource 等价于 ToggleSource(id, false)
func (c *Controller) RemoveSource(id string) {
	c.ToggleSource(id, false)
}

// GoToPage 校验页码后请求第 n 页，成功后回到顶部
func (c *Controller) GoToPage(n int) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.result.ValidPage(n) {
		total := 0
		if c.result != nil {
			total = c.result.TotalPages
		}
		c.mu.Unlock()
		c.logger.Debug("controller: ignore invalid page", zap.Int("page", n), zap.Int("totalPages", total))
		return fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidPage, n, total)
	}

	// 页码只在响应成功后才写入 state
	state := c.state.Clone()
	state.Page = n
	seq := c.beginWithLocked(state)
	c.publishLocked()
	c.mu.Unlock()

	go c.run(seq, state, true)
	return nil
}

// Refresh 以当前状态重新请求
func (c *Controller) Refresh() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.issueLocked(false)
}

// View 返回当前快照
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Subscribe 订阅状态变化，通道只保留最新的一份快照
func (c *Controller) Subscribe() (<-chan View, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan View, 1)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(ch)
			}
		})
	}
}

// Wait 阻塞直到没有进行中的请求
func (c *Controller) Wait() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.inflight > 0 {
		c.idle.Wait()
	}
}

// Close 取消待触发的关键词请求和进行中的请求，并等待它们结束
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.debounce.Cancel()
	c.cancel()
	c.Wait()

	c.mu.Lock()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.mu.Unlock()
}

// issueLocked 在持锁状态下调用，负责解锁并在后台发起请求
func (c *Controller) issueLocked(scroll bool) {
	seq, state := c.beginLocked()
	c.publishLocked()
	c.mu.Unlock()

	go c.run(seq, state, scroll)
}

func (c *Controller) beginLocked() (uint64, articles.FilterState) {
	state := c.state.Clone()
	return c.beginWithLocked(state), state
}

func (c *Controller) beginWithLocked(state articles.FilterState) uint64 {
	c.issued++
	c.inflight++
	c.logger.Debug("controller: issue fetch",
		zap.Uint64("seq", c.issued),
		zap.Int("page", state.Page),
		zap.String("sort", string(state.SortOrder)),
		zap.String("keyword", state.Keyword),
		zap.Strings("sources", state.Sources),
	)
	return c.issued
}

func (c *Controller) run(seq uint64, state articles.FilterState, scroll bool) {
	ctx, cancel := context.WithTimeout(c.baseCtx, c.opts.RequestTimeout)
	defer cancel()

	res, err := c.fetcher.ListArticles(ctx, state)
	c.finish(seq, state, res, err, scroll)
}

// finish 应用响应；序号落后于已应用序号的响应被丢弃
func (c *Controller) finish(seq uint64, state articles.FilterState, res *articles.PageResult, err error, scroll bool) {
	c.mu.Lock()
	c.inflight--
	if c.inflight == 0 {
		c.idle.Broadcast()
	}

	if seq < c.applied {
		c.logger.Debug("controller: discard stale response", zap.Uint64("seq", seq), zap.Uint64("applied", c.applied))
		c.publishLocked()
		c.mu.Unlock()
		return
	}

	if err == nil && res == nil {
		err = fmt.Errorf("%w: empty response", newsapi.ErrNetwork)
	}

	if err != nil {
		// 关闭导致的取消不算加载失败
		if c.closed && errors.Is(err, context.Canceled) {
			c.mu.Unlock()
			return
		}
		c.applied = seq
		c.outcome = StatusFailed
		c.lastErr = "Failed to load articles, please try again."
		c.logger.Warn("controller: fetch articles failed",
			zap.Uint64("seq", seq),
			zap.Int("page", state.Page),
			zap.Error(err),
		)
		c.publishLocked()
		c.mu.Unlock()
		return
	}

	c.applied = seq

	// 筛选条件变化后当前页可能越界：保留旧结果，改为请求最后一页
	if !c.closed && res.TotalPages > 0 && res.CurrentPage > res.TotalPages {
		last := state.Clone()
		last.Page = res.TotalPages
		next := c.beginWithLocked(last)
		c.publishLocked()
		c.mu.Unlock()
		go c.run(next, last, scroll)
		return
	}

	c.result = res
	c.outcome = StatusIdle
	c.lastErr = ""
	c.state.Page = clampPage(res.CurrentPage, res.TotalPages)

	c.publishLocked()
	c.mu.Unlock()

	if scroll && c.opts.OnScrollTop != nil {
		c.opts.OnScrollTop()
	}
}

func (c *Controller) viewLocked() View {
	status := c.outcome
	if c.inflight > 0 {
		status = StatusLoading
	}
	return View{
		State:   c.state.Clone(),
		Result:  c.result,
		Status:  status,
		Error:   c.lastErr,
		Applied: c.applied,
	}
}

// publishLocked 持锁推送快照，保证订阅者收到的顺序与状态变化一致
func (c *Controller) publishLocked() {
	v := c.viewLocked()
	for _, ch := range c.subs {
		select {
		case ch <- v:
		default:
			// 丢弃旧快照，只保留最新
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

func clampPage(page, totalPages int) int {
	if totalPages <= 0 || page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}
