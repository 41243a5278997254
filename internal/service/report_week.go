package service

import (
	"context"
	"fmt"
	"time"

	"PortalSync/internal/model"
	"PortalSync/internal/repository"
)

// ReportWeekService 报告周与周快照
type ReportWeekService struct {
	weeks     repository.ReportWeekRepository
	leads     repository.LeadMetricRepository
	pipeline  repository.PipelineRepository
	snapshots repository.WeeklySnapshotRepository
	loc       *time.Location
}

func NewReportWeekService(
	weeks repository.ReportWeekRepository,
	leads repository.LeadMetricRepository,
	pipeline repository.PipelineRepository,
	snapshots repository.WeeklySnapshotRepository,
	loc *time.Location,
) *ReportWeekService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportWeekService{weeks: weeks, leads: leads, pipeline: pipeline, snapshots: snapshots, loc: loc}
}

// BuildReportWeek 以 weekEnding 在配置时区下的日期为周结束日：
// 周期从结束日前 6 天 00:00 开始，到结束日 23:59:59.999 为止
func BuildReportWeek(tenantID uint64, weekEnding time.Time, loc *time.Location) *model.ReportWeek {
	y, m, d := weekEnding.In(loc).Date()
	return &model.ReportWeek{
		TenantID:       tenantID,
		WeekEndingDate: time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		PeriodStartAt:  time.Date(y, m, d-6, 0, 0, 0, 0, loc),
		PeriodEndAt:    time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc),
	}
}

// FindOrCreateReportWeek 同一 (tenant, 结束日) 始终返回同一条报告周
func (s *ReportWeekService) FindOrCreateReportWeek(ctx context.Context, tenantID uint64, weekEnding time.Time) (*model.ReportWeek, error) {
	week, err := s.weeks.FindOrCreateReportWeek(ctx, BuildReportWeek(tenantID, weekEnding, s.loc))
	if err != nil {
		return nil, fmt.Errorf("获取报告周失败: %w", err)
	}
	return week, nil
}

// CreateWeeklySnapshot 把租户当前的实时线索与阶段汇总复制为该报告周的历史行，实时行不变。
// 重复调用会先清掉该报告周已有的历史行，行数保持一致。返回写入的历史行数
func (s *ReportWeekService) CreateWeeklySnapshot(ctx context.Context, tenantID, reportWeekID uint64) (int, error) {
	liveLeads, err := s.leads.ListLiveLeadMetrics(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("读取实时线索汇总失败: %w", err)
	}
	livePipeline, err := s.pipeline.ListLivePipeline(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("读取实时阶段汇总失败: %w", err)
	}

	weekID := reportWeekID
	leads := make([]*model.LeadMetric, 0, len(liveLeads))
	for _, l := range liveLeads {
		leads = append(leads, &model.LeadMetric{
			TenantID:           tenantID,
			ReportWeekID:       &weekID,
			DimensionType:      l.DimensionType,
			DimensionValue:     l.DimensionValue,
			Leads:              l.Leads,
			EarliestSourceDate: l.EarliestSourceDate,
		})
	}
	pipeline := make([]*model.PipelineStageCount, 0, len(livePipeline))
	for _, p := range livePipeline {
		pipeline = append(pipeline, &model.PipelineStageCount{
			TenantID:           tenantID,
			ReportWeekID:       &weekID,
			Stage:              p.Stage,
			Count:              p.Count,
			DollarValue:        p.DollarValue,
			EarliestSourceDate: p.EarliestSourceDate,
		})
	}

	if err := s.snapshots.ReplaceWeekSnapshot(ctx, tenantID, reportWeekID, leads, pipeline); err != nil {
		return 0, fmt.Errorf("写入周快照失败: %w", err)
	}
	return len(leads) + len(pipeline), nil
}
