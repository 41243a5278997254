package api

import "github.com/gin-gonic/gin"

// RegisterRoutes 注册管理接口路由
func RegisterRoutes(r gin.IRouter, syncHandler *SyncHandler, rollupHandler *RollupHandler) {
	r.POST("/sync/run", syncHandler.RunAll)
	r.POST("/sync/tenant/:id", syncHandler.SyncTenant)

	tenants := r.Group("/api/tenants/:id")
	tenants.GET("/sync-status", syncHandler.GetSyncStatus)
	tenants.GET("/lead-metrics", rollupHandler.ListLeadMetrics)
	tenants.GET("/pipeline", rollupHandler.ListPipeline)
}
