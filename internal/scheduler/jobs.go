package scheduler

import (
	"context"

	"github.com/LJTian/AlzNews/internal/articles"
	"github.com/LJTian/AlzNews/internal/newsapi"
	"go.uber.org/zap"
)

// Pruner 能清理过期会话，session.Manager 实现了它
type Pruner interface {
	Prune(ctx context.Context) (int, error)
}

// WarmDefaultPage 用默认筛选条件请求一次，使首屏命中缓存
func WarmDefaultPage(spec string, f newsapi.Fetcher, logger *zap.Logger) Job {
	return Job{
		Name:       "warm_default_page",
		CronSpec:   spec,
		RunOnStart: true,
		Run: func(ctx context.Context) error {
			res, err := f.ListArticles(ctx, articles.DefaultFilterState())
			if err != nil {
				return err
			}
			if logger != nil {
				logger.Debug("scheduler: warmed default page",
					zap.Int("articles", len(res.Articles)),
					zap.Int("totalPages", res.TotalPages),
				)
			}
			return nil
		},
	}
}

// PruneSessions 清理长时间未访问的访客会话
func PruneSessions(spec string, p Pruner, logger *zap.Logger) Job {
	return Job{
		Name:     "prune_sessions",
		CronSpec: spec,
		Run: func(ctx context.Context) error {
			n, err := p.Prune(ctx)
			if err != nil {
				return err
			}
			if n > 0 && logger != nil {
				logger.Info("scheduler: pruned idle sessions", zap.Int("count", n))
			}
			return nil
		},
	}
}
