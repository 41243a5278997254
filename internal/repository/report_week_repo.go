package repository

import (
	"context"
	"fmt"

	"PortalSync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReportWeekRepository 报告周
type ReportWeekRepository interface {
	// FindOrCreateReportWeek 依赖唯一索引 uq_report_week_tenant_date，并发调用也只会有一行
	FindOrCreateReportWeek(ctx context.Context, week *model.ReportWeek) (*model.ReportWeek, error)
}

type reportWeekRepository struct {
	db *gorm.DB
}

func NewReportWeekRepository(db *gorm.DB) ReportWeekRepository {
	return &reportWeekRepository{db: db}
}

func (r *reportWeekRepository) FindOrCreateReportWeek(ctx context.Context, week *model.ReportWeek) (*model.ReportWeek, error) {
	candidate := *week
	candidate.ID = 0
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "week_ending_date"}},
		DoNothing: true,
	}).Create(&candidate).Error; err != nil {
		return nil, fmt.Errorf("写入报告周失败: %w", err)
	}

	var existing model.ReportWeek
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND week_ending_date = ?", week.TenantID, week.WeekEndingDate).
		First(&existing).Error; err != nil {
		return nil, fmt.Errorf("查询报告周失败: %w", err)
	}
	return &existing, nil
}
