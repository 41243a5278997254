package service

import (
	"context"
	"fmt"
	"time"

	"PortalSync/internal/interfaces"
	"PortalSync/internal/model"
	"PortalSync/internal/repository"
)

// SyncStatus 前端"最近同步/数据过期"提示所需信息
type SyncStatus struct {
	TenantID      uint64         `json:"tenant_id"`
	LastRun       *model.SyncRun `json:"last_run,omitempty"`
	LastSuccessAt *time.Time     `json:"last_success_at,omitempty"`
	Stale         bool           `json:"stale"`
}

// StatusService 同步状态查询
type StatusService struct {
	runs       repository.SyncRunRepository
	clock      interfaces.Clock
	staleAfter time.Duration
}

func NewStatusService(runs repository.SyncRunRepository, clock interfaces.Clock, staleAfter time.Duration) *StatusService {
	if staleAfter <= 0 {
		staleAfter = 2 * time.Hour
	}
	return &StatusService{runs: runs, clock: clock, staleAfter: staleAfter}
}

// Status 从未成功同步，或最近一次成功距今超过 staleAfter，视为过期
func (s *StatusService) Status(ctx context.Context, tenantID uint64) (*SyncStatus, error) {
	last, err := s.runs.LatestRun(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("查询最近同步失败: %w", err)
	}
	success, err := s.runs.LatestSuccessfulRun(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("查询最近成功同步失败: %w", err)
	}

	st := &SyncStatus{TenantID: tenantID, LastRun: last, Stale: true}
	if success != nil {
		at := success.StartedAt
		if success.FinishedAt != nil {
			at = *success.FinishedAt
		}
		st.LastSuccessAt = &at
		st.Stale = s.clock.Now().Sub(at) > s.staleAfter
	}
	return st, nil
}
