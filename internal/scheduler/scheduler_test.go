package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LJTian/AlzNews/internal/articles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFetcher struct {
	calls atomic.Int32
	err   error
}

func (f *countingFetcher) ListArticles(_ context.Context, st articles.FilterState) (*articles.PageResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &articles.PageResult{CurrentPage: st.Page}, nil
}

type countingPruner struct{ calls atomic.Int32 }

func (p *countingPruner) Prune(context.Context) (int, error) {
	p.calls.Add(1)
	return 1, nil
}

func TestNewRejectsInvalidSpec(t *testing.T) {
	_, err := New([]Job{{Name: "bad", CronSpec: "every minute", Run: func(context.Context) error { return nil }}}, nil)
	assert.Error(t, err)
}

func TestRunOnceRunsEveryJob(t *testing.T) {
	f := &countingFetcher{}
	p := &countingPruner{}
	s, err := New([]Job{
		WarmDefaultPage("*/5 * * * *", f, nil),
		PruneSessions("0 * * * *", p, nil),
	}, nil)
	require.NoError(t, err)

	s.RunOnce()
	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, int32(1), p.calls.Load())

	// 失败的任务只记录日志
	f.err = errors.New("backend down")
	s.RunOnce()
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestStartRunsStartupJobsAfterDelay(t *testing.T) {
	f := &countingFetcher{}
	p := &countingPruner{}
	s, err := New([]Job{
		WarmDefaultPage("*/5 * * * *", f, nil),
		PruneSessions("0 * * * *", p, nil),
	}, nil)
	require.NoError(t, err)
	s.StartupDelay = 10 * time.Millisecond

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, p.calls.Load(), "prune job should only run on schedule")
}

func TestRunJobSkipsOverlappingRuns(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	job := Job{Name: "slow", CronSpec: "* * * * *", Run: func(context.Context) error {
		calls.Add(1)
		<-release
		return nil
	}}
	s, err := New([]Job{job}, nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.runJob(job)
		close(done)
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	s.runJob(job)
	assert.Equal(t, int32(1), calls.Load())
	close(release)
	<-done
}
