package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const jobTimeout = time.Minute

// Job 一个定时任务
type Job struct {
	Name     string
	CronSpec string
	Run      func(ctx context.Context) error
	// RunOnStart 启动后延迟执行一次
	RunOnStart bool
}

type Scheduler struct {
	cron   *cron.Cron
	jobs   []Job
	logger *zap.Logger

	// StartupDelay 首轮执行的延迟，避免与首屏请求争抢资源
	StartupDelay time.Duration

	mu      sync.Mutex
	running map[string]bool
}

func New(jobs []Job, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		cron:         cron.New(),
		jobs:         jobs,
		logger:       logger,
		StartupDelay: 5 * time.Second,
		running:      make(map[string]bool),
	}

	for _, j := range jobs {
		job := j
		if _, err := s.cron.AddFunc(job.CronSpec, func() { s.runJob(job) }); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	time.AfterFunc(s.StartupDelay, func() {
		for _, j := range s.jobs {
			if j.RunOnStart {
				go s.runJob(j)
			}
		}
	})
}

// Stop 停止调度并等待正在执行的任务结束
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce 依次执行全部任务一轮，方便手动触发
func (s *Scheduler) RunOnce() {
	for _, j := range s.jobs {
		s.runJob(j)
	}
}

// runJob 同名任务上一轮未结束时跳过本轮
func (s *Scheduler) runJob(j Job) {
	s.mu.Lock()
	if s.running[j.Name] {
		s.mu.Unlock()
		s.logger.Info("scheduler: skip, previous run still in progress", zap.String("job", j.Name))
		return
	}
	s.running[j.Name] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, j.Name)
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	if err := j.Run(ctx); err != nil {
		s.logger.Warn("scheduler: job failed", zap.String("job", j.Name), zap.Error(err))
		return
	}
	s.logger.Debug("scheduler: job done", zap.String("job", j.Name), zap.Duration("took", time.Since(start)))
}
