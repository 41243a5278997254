package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"PortalSync/internal/model"
	"PortalSync/internal/repository"
	"PortalSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SyncRunner 手动触发同步
type SyncRunner interface {
	RunOnce(ctx context.Context, trigger string) (*service.PassResult, error)
	SyncTenant(ctx context.Context, tenantID uint64, trigger string) (*service.TenantResult, error)
}

// StatusReader 同步状态查询
type StatusReader interface {
	Status(ctx context.Context, tenantID uint64) (*service.SyncStatus, error)
}

type SyncHandler struct {
	runner SyncRunner
	status StatusReader
	logger *logrus.Logger
}

func NewSyncHandler(runner SyncRunner, status StatusReader, logger *logrus.Logger) *SyncHandler {
	return &SyncHandler{
		runner: runner,
		status: status,
		logger: logger,
	}
}

// RunAll 同步全部可同步租户
// @Summary 手动触发一轮同步
// @Success 200 {object} service.PassResult
// @Failure 500 {object} map[string]string
// @Router /sync/run [post]
func (h *SyncHandler) RunAll(c *gin.Context) {
	result, err := h.runner.RunOnce(c.Request.Context(), model.TriggerManual)
	if err != nil {
		h.logger.WithError(err).Error("手动同步失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// SyncTenant 同步单个租户
// @Param id path int true "租户ID"
// @Success 200 {object} service.TenantResult
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /sync/tenant/{id} [post]
func (h *SyncHandler) SyncTenant(c *gin.Context) {
	tenantID, ok := parseTenantID(c)
	if !ok {
		return
	}
	result, err := h.runner.SyncTenant(c.Request.Context(), tenantID, model.TriggerManual)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
		return
	case errors.Is(err, service.ErrTenantNotEligible):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.WithError(err).WithField("tenant_id", tenantID).Error("手动同步租户失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetSyncStatus 最近同步与是否过期
// GET /api/tenants/:id/sync-status
func (h *SyncHandler) GetSyncStatus(c *gin.Context) {
	tenantID, ok := parseTenantID(c)
	if !ok {
		return
	}
	status, err := h.status.Status(c.Request.Context(), tenantID)
	if err != nil {
		h.logger.WithError(err).WithField("tenant_id", tenantID).Error("查询同步状态失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

func parseTenantID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant id"})
		return 0, false
	}
	return id, true
}
