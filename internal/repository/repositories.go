package repository

import "gorm.io/gorm"

// Repositories 同步引擎用到的全部仓储，便于在 main 中一次装配、在测试中整体替换
type Repositories struct {
	Tenants         TenantRepository
	Runs            SyncRunRepository
	Snapshots       SnapshotRepository
	Leads           LeadMetricRepository
	Pipeline        PipelineRepository
	HotList         HotListRepository
	Notes           NoteRepository
	Activities      ActivityRepository
	Weeks           ReportWeekRepository
	WeeklySnapshots WeeklySnapshotRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Tenants:         NewTenantRepository(db),
		Runs:            NewSyncRunRepository(db),
		Snapshots:       NewSnapshotRepository(db),
		Leads:           NewLeadMetricRepository(db),
		Pipeline:        NewPipelineRepository(db),
		HotList:         NewHotListRepository(db),
		Notes:           NewNoteRepository(db),
		Activities:      NewActivityRepository(db),
		Weeks:           NewReportWeekRepository(db),
		WeeklySnapshots: NewWeeklySnapshotRepository(db),
	}
}
