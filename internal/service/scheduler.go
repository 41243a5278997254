package service

import (
	"context"
	"fmt"
	"time"

	"PortalSync/internal/model"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// PassRunner 执行一轮同步
type PassRunner interface {
	RunOnce(ctx context.Context, trigger string) (*PassResult, error)
}

// Scheduler 按 cron 表达式定时触发同步，上一轮未结束时跳过本次
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	runner PassRunner
	logger *logrus.Logger
}

func NewScheduler(spec string, loc *time.Location, runner PassRunner, logger *logrus.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	cronLogger := cron.PrintfLogger(logger)
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		spec:   spec,
		runner: runner,
		logger: logger,
	}
}

// Start 注册任务并启动，ctx 取消后正在进行的同步会收到取消信号
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.runPass(ctx) }); err != nil {
		return fmt.Errorf("sync.cron 无效: %w", err)
	}
	s.cron.Start()
	s.logger.Infof("定时同步已启动，cron: %s", s.spec)
	return nil
}

// Stop 停止调度，返回的 ctx 在正在执行的任务结束后关闭
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runPass(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.runner.RunOnce(ctx, model.TriggerSchedule); err != nil {
		s.logger.WithError(err).Error("定时同步失败")
	}
}
