package repository

import (
	"context"
	"fmt"

	"PortalSync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NoteRepository 笔记按 (tenant_id, contact_id) 累积
type NoteRepository interface {
	// InsertNotesIfAbsent 已存在的 (tenant_id, contact_id) 跳过，返回实际新增条数
	InsertNotesIfAbsent(ctx context.Context, notes []*model.Note) (int, error)
}

type noteRepository struct {
	db *gorm.DB
}

func NewNoteRepository(db *gorm.DB) NoteRepository {
	return &noteRepository{db: db}
}

func (r *noteRepository) InsertNotesIfAbsent(ctx context.Context, notes []*model.Note) (int, error) {
	inserted := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, n := range notes {
			// 唯一索引 uq_note_tenant_contact 兜底并发写入
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "contact_id"}},
				DoNothing: true,
			}).Create(n)
			if res.Error != nil {
				return fmt.Errorf("写入笔记失败: %w, contact_id: %s", res.Error, n.ContactID)
			}
			inserted += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}
