package model

import (
	"time"

	"gorm.io/datatypes"
)

// Tenant 租户（由后台管理界面维护，同步引擎只读）
type Tenant struct {
	ID             uint64    `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	Name           string    `gorm:"column:name;type:varchar(128);not null;comment:租户名称"`
	Status         string    `gorm:"column:status;type:varchar(16);not null;default:active;comment:状态：active/inactive/suspended"`
	CRMWebKey      *string   `gorm:"column:crm_web_key;type:varchar(128);comment:CRM web key"`
	CRMAccessToken *string   `gorm:"column:crm_access_token;type:varchar(256);comment:CRM access token"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime;comment:创建时间"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime;comment:更新时间"`
}

// SyncRun 单个租户单次同步的审计记录，start 时写入 running，结束时只终结一次
type SyncRun struct {
	ID             uint64     `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	TenantID       uint64     `gorm:"column:tenant_id;type:bigint;not null;index:idx_sync_run_tenant_started,priority:1;comment:租户ID"`
	Status         string     `gorm:"column:status;type:varchar(16);not null;comment:状态：running/success/failed"`
	TriggerSource  string     `gorm:"column:trigger_source;type:varchar(16);not null;default:schedule;comment:触发来源：schedule/manual"`
	StartedAt      time.Time  `gorm:"column:started_at;type:timestamp;not null;index:idx_sync_run_tenant_started,priority:2;comment:开始时间"`
	FinishedAt     *time.Time `gorm:"column:finished_at;type:timestamp;comment:结束时间"`
	RecordsUpdated int        `gorm:"column:records_updated;type:int;not null;default:0;comment:本次处理记录数"`
	ErrorMessage   *string    `gorm:"column:error_message;type:text;comment:失败原因"`
}

// RawSnapshot 远端原始响应，只追加不修改
type RawSnapshot struct {
	ID        uint64         `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	TenantID  uint64         `gorm:"column:tenant_id;type:bigint;not null;index;comment:租户ID"`
	Endpoint  string         `gorm:"column:endpoint;type:varchar(32);not null;comment:接口：leads/opportunities/notes/activities"`
	Payload   datatypes.JSON `gorm:"column:payload;type:jsonb;comment:原始响应"`
	FetchedAt time.Time      `gorm:"column:fetched_at;type:timestamp;not null;comment:拉取时间"`
}

// LeadMetric 线索维度汇总；report_week_id 为空即实时行
type LeadMetric struct {
	ID                 uint64     `gorm:"column:id;primaryKey;autoIncrement"`
	TenantID           uint64     `gorm:"column:tenant_id;type:bigint;not null;index:idx_lead_metric_scope,priority:1"`
	ReportWeekID       *uint64    `gorm:"column:report_week_id;type:bigint;index:idx_lead_metric_scope,priority:2"`
	DimensionType      string     `gorm:"column:dimension_type;type:varchar(16);not null;comment:维度：source/status"`
	DimensionValue     string     `gorm:"column:dimension_value;type:text;not null"`
	Leads              int        `gorm:"column:leads;type:int;not null;default:0"`
	EarliestSourceDate *time.Time `gorm:"column:earliest_source_date;type:timestamp;comment:该维度最早的来源创建时间"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// PipelineStageCount 按阶段汇总的商机数量与金额（金额为定点字符串）
type PipelineStageCount struct {
	ID                 uint64     `gorm:"column:id;primaryKey;autoIncrement"`
	TenantID           uint64     `gorm:"column:tenant_id;type:bigint;not null;index:idx_pipeline_scope,priority:1"`
	ReportWeekID       *uint64    `gorm:"column:report_week_id;type:bigint;index:idx_pipeline_scope,priority:2"`
	Stage              string     `gorm:"column:stage;type:text;not null"`
	Count              int        `gorm:"column:count;type:int;not null;default:0"`
	DollarValue        string     `gorm:"column:dollar_value;type:numeric;not null;default:0"`
	EarliestSourceDate *time.Time `gorm:"column:earliest_source_date;type:timestamp"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// HotListItem 处于后段阶段的重点商机
type HotListItem struct {
	ID            uint64         `gorm:"column:id;primaryKey;autoIncrement"`
	TenantID      uint64         `gorm:"column:tenant_id;type:bigint;not null;index:idx_hot_list_scope,priority:1"`
	ReportWeekID  *uint64        `gorm:"column:report_week_id;type:bigint;index:idx_hot_list_scope,priority:2"`
	OpportunityID string         `gorm:"column:opportunity_id;type:text"`
	CandidateName string         `gorm:"column:candidate_name;type:text;not null"`
	Stage         string         `gorm:"column:stage;type:text;not null"`
	LikelyPct     int            `gorm:"column:likely_pct;type:int;not null;default:0;comment:成交概率0-100"`
	Value         string         `gorm:"column:value;type:numeric;not null;default:0"`
	WeightedValue string         `gorm:"column:weighted_value;type:numeric;not null;default:0;comment:value*概率"`
	RawJSON       datatypes.JSON `gorm:"column:raw_json;type:jsonb;comment:原始记录"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
}

// Note 租户笔记镜像，按 (tenant_id, contact_id) 去重累积
type Note struct {
	ID        uint64     `gorm:"column:id;primaryKey;autoIncrement"`
	TenantID  uint64     `gorm:"column:tenant_id;type:bigint;not null;uniqueIndex:uq_note_tenant_contact,priority:1"`
	ContactID string     `gorm:"column:contact_id;type:text;not null;uniqueIndex:uq_note_tenant_contact,priority:2"`
	Author    string     `gorm:"column:author;type:text"`
	Body      string     `gorm:"column:body;type:text"`
	NotedAt   *time.Time `gorm:"column:noted_at;type:timestamp"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// ScheduledActivity 租户日程活动镜像，每次同步整体替换
type ScheduledActivity struct {
	ID           uint64         `gorm:"column:id;primaryKey;autoIncrement"`
	TenantID     uint64         `gorm:"column:tenant_id;type:bigint;not null;index"`
	ActivityID   string         `gorm:"column:activity_id;type:text"`
	ContactID    string         `gorm:"column:contact_id;type:text"`
	ActivityType string         `gorm:"column:activity_type;type:text"`
	Subject      string         `gorm:"column:subject;type:text"`
	ScheduledAt  *time.Time     `gorm:"column:scheduled_at;type:timestamp"`
	Completed    bool           `gorm:"column:completed;type:boolean;default:false"`
	RawJSON      datatypes.JSON `gorm:"column:raw_json;type:jsonb"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
}

// ReportWeek 报告周，(tenant_id, week_ending_date) 唯一
type ReportWeek struct {
	ID             uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	TenantID       uint64    `gorm:"column:tenant_id;type:bigint;not null;uniqueIndex:uq_report_week_tenant_date,priority:1"`
	WeekEndingDate time.Time `gorm:"column:week_ending_date;type:date;not null;uniqueIndex:uq_report_week_tenant_date,priority:2;comment:周结束日"`
	PeriodStartAt  time.Time `gorm:"column:period_start_at;type:timestamp;not null;comment:周期开始（结束日前6天0点）"`
	PeriodEndAt    time.Time `gorm:"column:period_end_at;type:timestamp;not null;comment:周期结束（结束日23:59:59.999）"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Tenant) TableName() string             { return "tenants" }
func (SyncRun) TableName() string            { return "sync_runs" }
func (RawSnapshot) TableName() string        { return "raw_snapshots" }
func (LeadMetric) TableName() string         { return "lead_metrics" }
func (PipelineStageCount) TableName() string { return "pipeline_stage_counts" }
func (HotListItem) TableName() string        { return "hot_list_items" }
func (Note) TableName() string               { return "notes" }
func (ScheduledActivity) TableName() string  { return "scheduled_activities" }
func (ReportWeek) TableName() string         { return "report_weeks" }

// AllTables AutoMigrate 顺序
func AllTables() []interface{} {
	return []interface{}{
		&Tenant{},
		&SyncRun{},
		&RawSnapshot{},
		&LeadMetric{},
		&PipelineStageCount{},
		&HotListItem{},
		&Note{},
		&ScheduledActivity{},
		&ReportWeek{},
	}
}
