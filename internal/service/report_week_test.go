package service

import (
	"context"
	"testing"
	"time"

	"PortalSync/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReportWeekService(store *memStore, loc *time.Location) *ReportWeekService {
	return NewReportWeekService(store, store, store, store, loc)
}

func TestBuildReportWeek_PeriodBounds(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 周日晚上 22:00 纽约时间，UTC 已是周一
	now := time.Date(2026, 10, 19, 2, 0, 0, 0, time.UTC)
	week := BuildReportWeek(5, now, loc)

	assert.Equal(t, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), week.WeekEndingDate)
	assert.True(t, week.PeriodStartAt.Equal(time.Date(2026, 10, 12, 0, 0, 0, 0, loc)))
	assert.True(t, week.PeriodEndAt.Equal(time.Date(2026, 10, 18, 23, 59, 59, 999000000, loc)))
	assert.Equal(t, uint64(5), week.TenantID)
}

func TestFindOrCreateReportWeek_StableIdentity(t *testing.T) {
	store := newMemStore()
	svc := newReportWeekService(store, time.UTC)
	ctx := context.Background()

	day := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	first, err := svc.FindOrCreateReportWeek(ctx, 1, day)
	require.NoError(t, err)
	second, err := svc.FindOrCreateReportWeek(ctx, 1, day.Add(10*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.weeks, 1)

	other, err := svc.FindOrCreateReportWeek(ctx, 2, day)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestCreateWeeklySnapshot_IdempotentAndLeavesLiveRows(t *testing.T) {
	store := newMemStore()
	svc := newReportWeekService(store, time.UTC)
	ctx := context.Background()

	require.NoError(t, store.ReplaceLiveLeadMetrics(ctx, 1, []*model.LeadMetric{
		{TenantID: 1, DimensionType: model.DimensionSource, DimensionValue: "Web", Leads: 3},
		{TenantID: 1, DimensionType: model.DimensionStatus, DimensionValue: "New", Leads: 3},
	}))
	require.NoError(t, store.ReplaceLivePipeline(ctx, 1, []*model.PipelineStageCount{
		{TenantID: 1, Stage: "A", Count: 3, DollarValue: "50000"},
	}))
	week, err := svc.FindOrCreateReportWeek(ctx, 1, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	rows, err := svc.CreateWeeklySnapshot(ctx, 1, week.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, rows)

	rows, err = svc.CreateWeeklySnapshot(ctx, 1, week.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, rows)

	leads, pipeline, err := store.CountWeekSnapshot(ctx, 1, week.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), leads)
	assert.Equal(t, int64(1), pipeline)

	live, err := store.ListLiveLeadMetrics(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, live, 2)
	for _, l := range live {
		assert.Nil(t, l.ReportWeekID)
	}

	hist := 0
	for _, p := range store.pipeline {
		if p.ReportWeekID != nil {
			hist++
			assert.Equal(t, week.ID, *p.ReportWeekID)
			assert.Equal(t, "50000", p.DollarValue)
		}
	}
	assert.Equal(t, 1, hist)
}

func TestCreateWeeklySnapshot_LaterLiveChangesDoNotTouchHistory(t *testing.T) {
	store := newMemStore()
	svc := newReportWeekService(store, time.UTC)
	ctx := context.Background()

	require.NoError(t, store.ReplaceLivePipeline(ctx, 1, []*model.PipelineStageCount{{TenantID: 1, Stage: "A", Count: 1, DollarValue: "10"}}))
	_, err := svc.CreateWeeklySnapshot(ctx, 1, 42)
	require.NoError(t, err)

	require.NoError(t, store.ReplaceLivePipeline(ctx, 1, []*model.PipelineStageCount{{TenantID: 1, Stage: "A", Count: 9, DollarValue: "99"}}))

	for _, p := range store.pipeline {
		if p.ReportWeekID != nil {
			assert.Equal(t, 1, p.Count)
			assert.Equal(t, "10", p.DollarValue)
		}
	}
}
