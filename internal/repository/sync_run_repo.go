package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PortalSync/internal/model"

	"gorm.io/gorm"
)

// SyncRunRepository 同步运行记录
type SyncRunRepository interface {
	CreateRun(ctx context.Context, run *model.SyncRun) error
	// FinishRun 仅能终结仍为 running 的记录
	FinishRun(ctx context.Context, id uint64, status string, finishedAt time.Time, recordsUpdated int, errorMessage *string) error
	// LatestRun 最近一次运行，无记录返回 nil, nil
	LatestRun(ctx context.Context, tenantID uint64) (*model.SyncRun, error)
	// LatestSuccessfulRun 最近一次成功运行，无记录返回 nil, nil
	LatestSuccessfulRun(ctx context.Context, tenantID uint64) (*model.SyncRun, error)
}

// ErrRunAlreadyFinished 重复终结
var ErrRunAlreadyFinished = errors.New("sync run already finished")

type syncRunRepository struct {
	db *gorm.DB
}

func NewSyncRunRepository(db *gorm.DB) SyncRunRepository {
	return &syncRunRepository{db: db}
}

func (r *syncRunRepository) CreateRun(ctx context.Context, run *model.SyncRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *syncRunRepository) FinishRun(ctx context.Context, id uint64, status string, finishedAt time.Time, recordsUpdated int, errorMessage *string) error {
	res := r.db.WithContext(ctx).Model(&model.SyncRun{}).
		Where("id = ? AND status = ?", id, model.SyncRunStatusRunning).
		Updates(map[string]interface{}{
			"status":          status,
			"finished_at":     finishedAt,
			"records_updated": recordsUpdated,
			"error_message":   errorMessage,
		})
	if res.Error != nil {
		return fmt.Errorf("更新同步记录失败: %w, run_id: %d", res.Error, id)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: run_id %d", ErrRunAlreadyFinished, id)
	}
	return nil
}

func (r *syncRunRepository) LatestRun(ctx context.Context, tenantID uint64) (*model.SyncRun, error) {
	return r.latest(r.db.WithContext(ctx).Where("tenant_id = ?", tenantID))
}

func (r *syncRunRepository) LatestSuccessfulRun(ctx context.Context, tenantID uint64) (*model.SyncRun, error) {
	return r.latest(r.db.WithContext(ctx).Where("tenant_id = ? AND status = ?", tenantID, model.SyncRunStatusSuccess))
}

func (r *syncRunRepository) latest(q *gorm.DB) (*model.SyncRun, error) {
	var run model.SyncRun
	if err := q.Order("started_at DESC").Order("id DESC").First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}
