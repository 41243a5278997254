package service

import (
	"context"
	"time"

	"PortalSync/internal/interfaces"
	"PortalSync/internal/model"
	"PortalSync/internal/repository"
)

// finishTimeout 终结运行记录的超时；即使同步上下文已取消也要写入终态
const finishTimeout = 10 * time.Second

// RunTracker 同步运行记录：Start 写入 running，Finish 写入唯一的终态
type RunTracker struct {
	repo  repository.SyncRunRepository
	clock interfaces.Clock
}

func NewRunTracker(repo repository.SyncRunRepository, clock interfaces.Clock) *RunTracker {
	return &RunTracker{repo: repo, clock: clock}
}

func (t *RunTracker) Start(ctx context.Context, tenantID uint64, trigger string) (*model.SyncRun, error) {
	run := &model.SyncRun{
		TenantID:      tenantID,
		Status:        model.SyncRunStatusRunning,
		TriggerSource: trigger,
		StartedAt:     t.clock.Now(),
	}
	if err := t.repo.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// Finish runErr 为空记为 success，否则记为 failed 并保存错误信息
func (t *RunTracker) Finish(ctx context.Context, runID uint64, recordsUpdated int, runErr error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()

	status := model.SyncRunStatusSuccess
	var msg *string
	if runErr != nil {
		status = model.SyncRunStatusFailed
		m := runErr.Error()
		if m == "" {
			m = "unknown error"
		}
		msg = &m
	}
	return t.repo.FinishRun(ctx, runID, status, t.clock.Now(), recordsUpdated, msg)
}
