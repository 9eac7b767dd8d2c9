// Package scheduler 定期清理过期的会话记忆与空闲的限流桶。
package scheduler

import (
	"context"
	"fmt"
	"time"

	"nft-sage-go/pkg/log"

	rcron "github.com/robfig/cron/v3"
)

// Sweeper 由 service.ConversationService 实现。
type Sweeper interface {
	Sweep(ctx context.Context, maxAge time.Duration) int
}

// Pruner 由 middleware.RateLimiter 实现。
type Pruner interface {
	Prune(idle time.Duration) int
}

// Scheduler 按 cron 表达式运行清理任务。
type Scheduler struct {
	cron     *rcron.Cron
	schedule string
	maxAge   time.Duration
	sweeper  Sweeper
	pruner   Pruner
}

// New 创建 Scheduler。pruner 可为 nil。
func New(schedule string, maxAge time.Duration, sweeper Sweeper, pruner Pruner) *Scheduler {
	return &Scheduler{
		cron:     rcron.New(rcron.WithChain(rcron.Recover(rcron.DefaultLogger))),
		schedule: schedule,
		maxAge:   maxAge,
		sweeper:  sweeper,
		pruner:   pruner,
	}
}

// Start 注册清理任务并启动调度。
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.RunOnce); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	log.Infof("会话清理任务已启动，schedule=%s maxAge=%s", s.schedule, s.maxAge)
	return nil
}

// RunOnce 执行一次清理：删除早于 maxAge 的交互，并回收同样空闲超过 maxAge 的限流桶。
func (s *Scheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	removed := s.sweeper.Sweep(ctx, s.maxAge)
	pruned := 0
	if s.pruner != nil {
		pruned = s.pruner.Prune(s.maxAge)
	}
	log.Infow("定期清理完成", "interactionsRemoved", removed, "limitersPruned", pruned)
}

// Stop 停止调度并等待正在运行的任务结束。
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
