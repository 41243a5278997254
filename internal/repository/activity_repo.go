package repository

import (
	"context"
	"fmt"

	"PortalSync/internal/model"

	"gorm.io/gorm"
)

// ActivityRepository 日程活动，每次同步整体替换
type ActivityRepository interface {
	ReplaceActivities(ctx context.Context, tenantID uint64, rows []*model.ScheduledActivity) error
}

type activityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) ReplaceActivities(ctx context.Context, tenantID uint64, rows []*model.ScheduledActivity) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockTenantTx(tx, tenantID); err != nil {
			return err
		}
		if err := tx.Where("tenant_id = ?", tenantID).Delete(&model.ScheduledActivity{}).Error; err != nil {
			return fmt.Errorf("删除日程活动失败: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, insertBatchSize).Error; err != nil {
			return fmt.Errorf("写入日程活动失败: %w", err)
		}
		return nil
	})
}
