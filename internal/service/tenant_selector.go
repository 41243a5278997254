package service

import (
	"context"
	"strings"

	"PortalSync/internal/interfaces"
	"PortalSync/internal/model"
)

// IsEligible 状态为 active 且 web key、access token 均非空
func IsEligible(t *model.Tenant) bool {
	if t == nil || t.Status != model.TenantStatusActive {
		return false
	}
	return nonEmpty(t.CRMWebKey) && nonEmpty(t.CRMAccessToken)
}

// SelectEligibleTenants 过滤出可同步的租户，保持原有顺序
func SelectEligibleTenants(tenants []*model.Tenant) []*model.Tenant {
	eligible := make([]*model.Tenant, 0, len(tenants))
	for _, t := range tenants {
		if IsEligible(t) {
			eligible = append(eligible, t)
		}
	}
	return eligible
}

// credentialsOf 仅对已通过 IsEligible 的租户调用
func credentialsOf(t *model.Tenant) interfaces.Credentials {
	return interfaces.Credentials{
		AccessToken: strings.TrimSpace(*t.CRMAccessToken),
		WebKey:      strings.TrimSpace(*t.CRMWebKey),
	}
}

func nonEmpty(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

// eligibleTenants 读取全部租户并过滤
func (s *SyncService) eligibleTenants(ctx context.Context) ([]*model.Tenant, error) {
	tenants, err := s.repos.Tenants.ListTenants(ctx)
	if err != nil {
		return nil, err
	}
	return SelectEligibleTenants(tenants), nil
}
