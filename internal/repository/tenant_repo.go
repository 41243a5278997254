package repository

import (
	"context"
	"errors"

	"PortalSync/internal/model"

	"gorm.io/gorm"
)

// TenantRepository 租户只读仓储
type TenantRepository interface {
	// ListTenants 全部租户，按 id 升序
	ListTenants(ctx context.Context) ([]*model.Tenant, error)
	// GetTenant 按 id 查询，不存在返回 ErrNotFound
	GetTenant(ctx context.Context, id uint64) (*model.Tenant, error)
}

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

type tenantRepository struct {
	db *gorm.DB
}

func NewTenantRepository(db *gorm.DB) TenantRepository {
	return &tenantRepository{db: db}
}

func (r *tenantRepository) ListTenants(ctx context.Context) ([]*model.Tenant, error) {
	var tenants []*model.Tenant
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&tenants).Error; err != nil {
		return nil, err
	}
	return tenants, nil
}

func (r *tenantRepository) GetTenant(ctx context.Context, id uint64) (*model.Tenant, error) {
	var t model.Tenant
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}
