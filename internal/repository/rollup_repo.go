package repository

import (
	"context"
	"fmt"

	"PortalSync/internal/model"

	"gorm.io/gorm"
)

// insertBatchSize 批量写入大小
const insertBatchSize = 200

// LeadMetricRepository 线索维度汇总
type LeadMetricRepository interface {
	// ReplaceLiveLeadMetrics 在一个事务内删除租户实时行并写入新行
	ReplaceLiveLeadMetrics(ctx context.Context, tenantID uint64, rows []*model.LeadMetric) error
	ListLiveLeadMetrics(ctx context.Context, tenantID uint64) ([]*model.LeadMetric, error)
}

// PipelineRepository 阶段汇总
type PipelineRepository interface {
	ReplaceLivePipeline(ctx context.Context, tenantID uint64, rows []*model.PipelineStageCount) error
	ListLivePipeline(ctx context.Context, tenantID uint64) ([]*model.PipelineStageCount, error)
}

// HotListRepository 重点商机
type HotListRepository interface {
	ReplaceLiveHotList(ctx context.Context, tenantID uint64, rows []*model.HotListItem) error
}

// WeeklySnapshotRepository 历史快照写入
type WeeklySnapshotRepository interface {
	// ReplaceWeekSnapshot 在一个事务内删除该报告周已有的历史行后写入新的历史行，重复调用结果一致
	ReplaceWeekSnapshot(ctx context.Context, tenantID, reportWeekID uint64, leads []*model.LeadMetric, pipeline []*model.PipelineStageCount) error
	CountWeekSnapshot(ctx context.Context, tenantID, reportWeekID uint64) (leads int64, pipeline int64, err error)
}

type rollupRepository struct {
	db *gorm.DB
}

func NewLeadMetricRepository(db *gorm.DB) LeadMetricRepository {
	return &rollupRepository{db: db}
}

func NewPipelineRepository(db *gorm.DB) PipelineRepository {
	return &rollupRepository{db: db}
}

func NewHotListRepository(db *gorm.DB) HotListRepository {
	return &rollupRepository{db: db}
}

func NewWeeklySnapshotRepository(db *gorm.DB) WeeklySnapshotRepository {
	return &rollupRepository{db: db}
}

// lockTenantTx 在事务内对租户加 PostgreSQL 事务级咨询锁，多个进程替换同一租户的行时串行；其他方言不加锁
func lockTenantTx(tx *gorm.DB, tenantID uint64) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", int64(tenantID)).Error; err != nil {
		return fmt.Errorf("获取租户锁失败: %w, tenant_id: %d", err, tenantID)
	}
	return nil
}

// replaceLive 实时行整体替换（report_week_id 为空），删除与写入同一事务
func replaceLive[T any](ctx context.Context, db *gorm.DB, tenantID uint64, rows []*T) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockTenantTx(tx, tenantID); err != nil {
			return err
		}
		if err := tx.Where("tenant_id = ? AND report_week_id IS NULL", tenantID).Delete(new(T)).Error; err != nil {
			return fmt.Errorf("删除实时行失败: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, insertBatchSize).Error; err != nil {
			return fmt.Errorf("写入实时行失败: %w", err)
		}
		return nil
	})
}

func (r *rollupRepository) ReplaceLiveLeadMetrics(ctx context.Context, tenantID uint64, rows []*model.LeadMetric) error {
	return replaceLive(ctx, r.db, tenantID, rows)
}

func (r *rollupRepository) ListLiveLeadMetrics(ctx context.Context, tenantID uint64) ([]*model.LeadMetric, error) {
	var rows []*model.LeadMetric
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND report_week_id IS NULL", tenantID).
		Order("dimension_type ASC").Order("dimension_value ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *rollupRepository) ReplaceLivePipeline(ctx context.Context, tenantID uint64, rows []*model.PipelineStageCount) error {
	return replaceLive(ctx, r.db, tenantID, rows)
}

func (r *rollupRepository) ListLivePipeline(ctx context.Context, tenantID uint64) ([]*model.PipelineStageCount, error) {
	var rows []*model.PipelineStageCount
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND report_week_id IS NULL", tenantID).
		Order("stage ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *rollupRepository) ReplaceLiveHotList(ctx context.Context, tenantID uint64, rows []*model.HotListItem) error {
	return replaceLive(ctx, r.db, tenantID, rows)
}

func (r *rollupRepository) ReplaceWeekSnapshot(ctx context.Context, tenantID, reportWeekID uint64, leads []*model.LeadMetric, pipeline []*model.PipelineStageCount) error {
	// 开启事务
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("开启事务失败: %w", tx.Error)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := lockTenantTx(tx, tenantID); err != nil {
		tx.Rollback()
		return err
	}

	// 1. 清理该报告周已有的历史行
	if err := tx.Where("tenant_id = ? AND report_week_id = ?", tenantID, reportWeekID).Delete(&model.LeadMetric{}).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("清理历史线索汇总失败: %w, report_week_id: %d", err, reportWeekID)
	}
	if err := tx.Where("tenant_id = ? AND report_week_id = ?", tenantID, reportWeekID).Delete(&model.PipelineStageCount{}).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("清理历史阶段汇总失败: %w, report_week_id: %d", err, reportWeekID)
	}

	// 2. 写入新的历史行
	if len(leads) > 0 {
		if err := tx.CreateInBatches(leads, insertBatchSize).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("写入历史线索汇总失败: %w, report_week_id: %d", err, reportWeekID)
		}
	}
	if len(pipeline) > 0 {
		if err := tx.CreateInBatches(pipeline, insertBatchSize).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("写入历史阶段汇总失败: %w, report_week_id: %d", err, reportWeekID)
		}
	}

	// 提交事务
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

func (r *rollupRepository) CountWeekSnapshot(ctx context.Context, tenantID, reportWeekID uint64) (int64, int64, error) {
	var leads, pipeline int64
	if err := r.db.WithContext(ctx).Model(&model.LeadMetric{}).
		Where("tenant_id = ? AND report_week_id = ?", tenantID, reportWeekID).
		Count(&leads).Error; err != nil {
		return 0, 0, err
	}
	if err := r.db.WithContext(ctx).Model(&model.PipelineStageCount{}).
		Where("tenant_id = ? AND report_week_id = ?", tenantID, reportWeekID).
		Count(&pipeline).Error; err != nil {
		return 0, 0, err
	}
	return leads, pipeline, nil
}
