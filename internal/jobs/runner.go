package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job 可被周期调度的任务
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Runner 周期任务调度器
// 每个任务独立 goroutine，启动时立即执行一次，之后按间隔触发；
// 单次运行出错只记录日志，下个周期照常执行
type Runner struct {
	jobs   []Job
	logger *zap.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewRunner 创建调度器
func NewRunner(logger *zap.Logger) *Runner {
	return &Runner{logger: logger}
}

// Add 注册任务；Interval 非正的任务被忽略
func (r *Runner) Add(name string, intervalSec int, run func(ctx context.Context) error) {
	if intervalSec <= 0 {
		r.logger.Warn("job disabled, non-positive interval", zap.String("job", name))
		return
	}
	r.jobs = append(r.jobs, Job{
		Name:     name,
		Interval: time.Duration(intervalSec) * time.Second,
		Run:      run,
	})
}

// Start 启动所有任务，立即返回
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	for _, job := range r.jobs {
		r.wg.Add(1)
		go r.loop(ctx, job)
	}
	r.logger.Info("job runner started", zap.Int("jobs", len(r.jobs)))
}

// Stop 取消所有任务并等待退出
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.logger.Info("job runner stopped")
}

func (r *Runner) loop(ctx context.Context, job Job) {
	defer r.wg.Done()

	r.runOnce(ctx, job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runOnce(ctx, job)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, job Job) {
	start := time.Now()
	if err := job.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return // 停机期间的错误不再记录
		}
		r.logger.Error("job run failed",
			zap.String("job", job.Name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return
	}
	r.logger.Debug("job run completed",
		zap.String("job", job.Name),
		zap.Duration("elapsed", time.Since(start)))
}
