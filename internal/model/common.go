package model

// Endpoint 远端 CRM 接口标识（同时作为 raw_snapshots.endpoint 的取值）
type Endpoint string

const (
	EndpointLeads         Endpoint = "leads"
	EndpointOpportunities Endpoint = "opportunities"
	EndpointNotes         Endpoint = "notes"
	EndpointActivities    Endpoint = "activities"
)

// Endpoints 固定处理顺序，保证日志与测试可复现
var Endpoints = []Endpoint{EndpointLeads, EndpointOpportunities, EndpointNotes, EndpointActivities}

const (
	TenantStatusActive    = "active"
	TenantStatusInactive  = "inactive"
	TenantStatusSuspended = "suspended"
)

const (
	SyncRunStatusRunning = "running"
	SyncRunStatusSuccess = "success"
	SyncRunStatusFailed  = "failed"
)

const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

const (
	DimensionSource = "source"
	DimensionStatus = "status"
)

// CRMRecord 远端返回的单条记录；各接口字段名不统一，按字段映射表取值
type CRMRecord map[string]interface{}
