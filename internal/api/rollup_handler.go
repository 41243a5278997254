package api

import (
	"net/http"

	"PortalSync/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RollupHandler 提供给前端看板的实时汇总查询
type RollupHandler struct {
	leads    repository.LeadMetricRepository
	pipeline repository.PipelineRepository
	logger   *logrus.Logger
}

func NewRollupHandler(leads repository.LeadMetricRepository, pipeline repository.PipelineRepository, logger *logrus.Logger) *RollupHandler {
	return &RollupHandler{leads: leads, pipeline: pipeline, logger: logger}
}

// ListLeadMetrics 实时线索汇总，可按 dimension=source|status 过滤
// GET /api/tenants/:id/lead-metrics?dimension=source
func (h *RollupHandler) ListLeadMetrics(c *gin.Context) {
	tenantID, ok := parseTenantID(c)
	if !ok {
		return
	}
	rows, err := h.leads.ListLiveLeadMetrics(c.Request.Context(), tenantID)
	if err != nil {
		h.logger.WithError(err).Error("ListLeadMetrics failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	dimension := c.Query("dimension")
	items := make([]gin.H, 0, len(rows))
	for _, r := range rows {
		if dimension != "" && r.DimensionType != dimension {
			continue
		}
		items = append(items, gin.H{
			"dimension_type":       r.DimensionType,
			"dimension_value":      r.DimensionValue,
			"leads":                r.Leads,
			"earliest_source_date": r.EarliestSourceDate,
		})
	}
	c.JSON(http.StatusOK, gin.H{"tenant_id": tenantID, "items": items})
}

// ListPipeline 实时阶段汇总
// GET /api/tenants/:id/pipeline
func (h *RollupHandler) ListPipeline(c *gin.Context) {
	tenantID, ok := parseTenantID(c)
	if !ok {
		return
	}
	rows, err := h.pipeline.ListLivePipeline(c.Request.Context(), tenantID)
	if err != nil {
		h.logger.WithError(err).Error("ListPipeline failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	items := make([]gin.H, 0, len(rows))
	for _, r := range rows {
		items = append(items, gin.H{
			"stage":                r.Stage,
			"count":                r.Count,
			"dollar_value":         r.DollarValue,
			"earliest_source_date": r.EarliestSourceDate,
		})
	}
	c.JSON(http.StatusOK, gin.H{"tenant_id": tenantID, "items": items})
}
