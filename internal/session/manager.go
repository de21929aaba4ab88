// Package session 为每个浏览器访客维护一个文章列表控制器
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/LJTian/AlzNews/internal/articles"
	"github.com/LJTian/AlzNews/internal/controller"
	"github.com/LJTian/AlzNews/internal/newsapi"
	"github.com/LJTian/AlzNews/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultTTL = 2 * time.Hour

// Persister 持久化访客筛选状态，storage.Store 实现了它
type Persister interface {
	SaveSession(ctx context.Context, id string, f articles.FilterState) error
	LoadSession(ctx context.Context, id string) (articles.FilterState, error)
	PruneSessions(ctx context.Context, ttl time.Duration) (int64, error)
}

type Options struct {
	TTL        time.Duration
	Controller controller.Options
	Logger     *zap.Logger
	// Now 便于测试替换
	Now func() time.Time
}

type entry struct {
	ctrl     *controller.Controller
	lastSeen time.Time
	stop     func()
	done     chan struct{}
}

type Manager struct {
	fetcher newsapi.Fetcher
	persist Persister
	opts    Options
	logger  *zap.Logger

	mu       sync.Mutex
	sessions map[string]*entry
}

func NewManager(f newsapi.Fetcher, p Persister, opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Controller.Logger == nil {
		opts.Controller.Logger = opts.Logger
	}
	return &Manager{
		fetcher:  f,
		persist:  p,
		opts:     opts,
		logger:   opts.Logger,
		sessions: make(map[string]*entry),
	}
}

// NewID 生成新的访客 ID
func NewID() string {
	return uuid.NewString()
}

// ValidID 只接受 uuid 格式的 cookie
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Get 返回访客的控制器：内存中已有则直接返回；否则尝试恢复持久化的筛选状态，
// 没有则使用默认条件完成首屏加载。加载失败时仍返回控制器，视图中带有错误状态。
func (m *Manager) Get(ctx context.Context, id string) (*controller.Controller, error) {
	m.mu.Lock()
	if e, ok := m.sessions[id]; ok {
		e.lastSeen = m.opts.Now()
		m.mu.Unlock()
		return e.ctrl, nil
	}
	m.mu.Unlock()

	state := articles.DefaultFilterState()
	restored := false
	if m.persist != nil {
		st, err := m.persist.LoadSession(ctx, id)
		switch {
		case err == nil:
			state, restored = st, true
		case !errors.Is(err, storage.ErrSessionNotFound):
			m.logger.Warn("session: load persisted state failed", zap.String("session", id), zap.Error(err))
		}
	}

	ctrl := controller.New(m.fetcher, m.opts.Controller)
	ctrl.Hydrate(state, nil)
	if err := ctrl.Load(ctx); err != nil {
		m.logger.Warn("session: initial load failed", zap.String("session", id), zap.Bool("restored", restored), zap.Error(err))
	}

	m.mu.Lock()
	if e, ok := m.sessions[id]; ok {
		// 并发请求已经创建了同一个会话
		m.mu.Unlock()
		ctrl.Close()
		return e.ctrl, nil
	}
	e := &entry{ctrl: ctrl, lastSeen: m.opts.Now(), done: make(chan struct{})}
	m.sessions[id] = e
	m.mu.Unlock()

	m.watch(id, e)
	return ctrl, nil
}

// watch 订阅状态变化并持久化筛选条件
func (m *Manager) watch(id string, e *entry) {
	ch, stop := e.ctrl.Subscribe()
	e.stop = stop
	lastApplied := e.ctrl.View().Applied
	if m.persist == nil {
		close(e.done)
		return
	}

	go func() {
		defer close(e.done)
		// 只在有新的响应被应用后写入，输入中的关键词不落库
		for v := range ch {
			if v.Status == controller.StatusLoading || v.Applied == lastApplied {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := m.persist.SaveSession(ctx, id, v.State); err != nil {
				m.logger.Warn("session: persist state failed", zap.String("session", id), zap.Error(err))
			} else {
				lastApplied = v.Applied
			}
			cancel()
		}
	}()
}

// Len 当前内存中的会话数
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Prune 关闭超过 TTL 未访问的控制器，并清理持久化中过期的会话
func (m *Manager) Prune(ctx context.Context) (int, error) {
	cutoff := m.opts.Now().Add(-m.opts.TTL)

	m.mu.Lock()
	var expired []*entry
	for id, e := range m.sessions {
		if e.lastSeen.Before(cutoff) {
			expired = append(expired, e)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, e := range expired {
		m.closeEntry(e)
	}

	if m.persist != nil {
		n, err := m.persist.PruneSessions(ctx, m.opts.TTL)
		if err != nil {
			return len(expired), err
		}
		if n > 0 {
			m.logger.Info("session: pruned persisted sessions", zap.Int64("count", n))
		}
	}
	return len(expired), nil
}

// Close 关闭全部控制器
func (m *Manager) Close() {
	m.mu.Lock()
	all := make([]*entry, 0, len(m.sessions))
	for id, e := range m.sessions {
		all = append(all, e)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, e := range all {
		m.closeEntry(e)
	}
}

func (m *Manager) closeEntry(e *entry) {
	e.ctrl.Close()
	if e.stop != nil {
		e.stop()
	}
	<-e.done
}
