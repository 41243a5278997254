package repository

import (
	"context"

	"PortalSync/internal/model"

	"gorm.io/gorm"
)

// SnapshotRepository 原始响应快照，只追加
type SnapshotRepository interface {
	AppendSnapshot(ctx context.Context, snap *model.RawSnapshot) error
}

type snapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) SnapshotRepository {
	return &snapshotRepository{db: db}
}

func (r *snapshotRepository) AppendSnapshot(ctx context.Context, snap *model.RawSnapshot) error {
	return r.db.WithContext(ctx).Create(snap).Error
}
