package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"PortalSync/internal/config"
	"PortalSync/internal/interfaces"
	"PortalSync/internal/model"
	"PortalSync/internal/repository"

	"github.com/sirupsen/logrus"
)

// memStore 内存版仓储，实现 repository 包的全部接口
type memStore struct {
	mu         sync.Mutex
	nextID     uint64
	tenants    []*model.Tenant
	runs       []*model.SyncRun
	snapshots  []*model.RawSnapshot
	leads      []*model.LeadMetric
	pipeline   []*model.PipelineStageCount
	hotList    []*model.HotListItem
	notes      []*model.Note
	activities []*model.ScheduledActivity
	weeks      []*model.ReportWeek

	listTenantsErr error
}

func newMemStore() *memStore { return &memStore{} }

func (m *memStore) repositories() *repository.Repositories {
	return &repository.Repositories{
		Tenants: m, Runs: m, Snapshots: m, Leads: m, Pipeline: m, HotList: m,
		Notes: m, Activities: m, Weeks: m, WeeklySnapshots: m,
	}
}

func (m *memStore) id() uint64 {
	m.nextID++
	return m.nextID
}

func isLive(id *uint64) bool { return id == nil }

func sameWeek(id *uint64, week uint64) bool { return id != nil && *id == week }

func (m *memStore) ListTenants(context.Context) ([]*model.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listTenantsErr != nil {
		return nil, m.listTenantsErr
	}
	return append([]*model.Tenant(nil), m.tenants...), nil
}

func (m *memStore) GetTenant(_ context.Context, id uint64) (*model.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tenants {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) CreateRun(_ context.Context, run *model.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.ID = m.id()
	cp := *run
	m.runs = append(m.runs, &cp)
	return nil
}

func (m *memStore) FinishRun(_ context.Context, id uint64, status string, finishedAt time.Time, recordsUpdated int, errorMessage *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.ID != id {
			continue
		}
		if r.Status != model.SyncRunStatusRunning {
			return repository.ErrRunAlreadyFinished
		}
		r.Status = status
		r.FinishedAt = &finishedAt
		r.RecordsUpdated = recordsUpdated
		r.ErrorMessage = errorMessage
		return nil
	}
	return repository.ErrNotFound
}

func (m *memStore) latest(tenantID uint64, onlySuccess bool) *model.SyncRun {
	var found *model.SyncRun
	for _, r := range m.runs {
		if r.TenantID != tenantID || (onlySuccess && r.Status != model.SyncRunStatusSuccess) {
			continue
		}
		if found == nil || !r.StartedAt.Before(found.StartedAt) {
			found = r
		}
	}
	if found == nil {
		return nil
	}
	cp := *found
	return &cp
}

func (m *memStore) LatestRun(_ context.Context, tenantID uint64) (*model.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest(tenantID, false), nil
}

func (m *memStore) LatestSuccessfulRun(_ context.Context, tenantID uint64) (*model.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest(tenantID, true), nil
}

func (m *memStore) AppendSnapshot(_ context.Context, snap *model.RawSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap.ID = m.id()
	m.snapshots = append(m.snapshots, snap)
	return nil
}

func (m *memStore) ReplaceLiveLeadMetrics(_ context.Context, tenantID uint64, rows []*model.LeadMetric) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.leads[:0:0]
	for _, r := range m.leads {
		if !(r.TenantID == tenantID && isLive(r.ReportWeekID)) {
			kept = append(kept, r)
		}
	}
	m.leads = append(kept, rows...)
	return nil
}

func (m *memStore) ListLiveLeadMetrics(_ context.Context, tenantID uint64) ([]*model.LeadMetric, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.LeadMetric
	for _, r := range m.leads {
		if r.TenantID == tenantID && isLive(r.ReportWeekID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) ReplaceLivePipeline(_ context.Context, tenantID uint64, rows []*model.PipelineStageCount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.pipeline[:0:0]
	for _, r := range m.pipeline {
		if !(r.TenantID == tenantID && isLive(r.ReportWeekID)) {
			kept = append(kept, r)
		}
	}
	m.pipeline = append(kept, rows...)
	return nil
}

func (m *memStore) ListLivePipeline(_ context.Context, tenantID uint64) ([]*model.PipelineStageCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PipelineStageCount
	for _, r := range m.pipeline {
		if r.TenantID == tenantID && isLive(r.ReportWeekID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) ReplaceLiveHotList(_ context.Context, tenantID uint64, rows []*model.HotListItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.hotList[:0:0]
	for _, r := range m.hotList {
		if !(r.TenantID == tenantID && isLive(r.ReportWeekID)) {
			kept = append(kept, r)
		}
	}
	m.hotList = append(kept, rows...)
	return nil
}

func (m *memStore) ReplaceWeekSnapshot(_ context.Context, tenantID, reportWeekID uint64, leads []*model.LeadMetric, pipeline []*model.PipelineStageCount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	keptLeads := m.leads[:0:0]
	for _, r := range m.leads {
		if !(r.TenantID == tenantID && sameWeek(r.ReportWeekID, reportWeekID)) {
			keptLeads = append(keptLeads, r)
		}
	}
	m.leads = append(keptLeads, leads...)
	keptPipeline := m.pipeline[:0:0]
	for _, r := range m.pipeline {
		if !(r.TenantID == tenantID && sameWeek(r.ReportWeekID, reportWeekID)) {
			keptPipeline = append(keptPipeline, r)
		}
	}
	m.pipeline = append(keptPipeline, pipeline...)
	return nil
}

func (m *memStore) CountWeekSnapshot(_ context.Context, tenantID, reportWeekID uint64) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var l, p int64
	for _, r := range m.leads {
		if r.TenantID == tenantID && sameWeek(r.ReportWeekID, reportWeekID) {
			l++
		}
	}
	for _, r := range m.pipeline {
		if r.TenantID == tenantID && sameWeek(r.ReportWeekID, reportWeekID) {
			p++
		}
	}
	return l, p, nil
}

func (m *memStore) InsertNotesIfAbsent(_ context.Context, notes []*model.Note) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, n := range notes {
		exists := false
		for _, e := range m.notes {
			if e.TenantID == n.TenantID && e.ContactID == n.ContactID {
				exists = true
				break
			}
		}
		if !exists {
			n.ID = m.id()
			m.notes = append(m.notes, n)
			inserted++
		}
	}
	return inserted, nil
}

func (m *memStore) ReplaceActivities(_ context.Context, tenantID uint64, rows []*model.ScheduledActivity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.activities[:0:0]
	for _, r := range m.activities {
		if r.TenantID != tenantID {
			kept = append(kept, r)
		}
	}
	m.activities = append(kept, rows...)
	return nil
}

func (m *memStore) FindOrCreateReportWeek(_ context.Context, week *model.ReportWeek) (*model.ReportWeek, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.weeks {
		if w.TenantID == week.TenantID && w.WeekEndingDate.Equal(week.WeekEndingDate) {
			return w, nil
		}
	}
	cp := *week
	cp.ID = m.id()
	m.weeks = append(m.weeks, &cp)
	return &cp, nil
}

func (m *memStore) runsFor(tenantID uint64) []*model.SyncRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.SyncRun
	for _, r := range m.runs {
		if r.TenantID == tenantID {
			out = append(out, r)
		}
	}
	return out
}

func (m *memStore) livePipeline(tenantID uint64) map[string]*model.PipelineStageCount {
	rows, _ := m.ListLivePipeline(context.Background(), tenantID)
	out := make(map[string]*model.PipelineStageCount, len(rows))
	for _, r := range rows {
		out[r.Stage] = r
	}
	return out
}

// fakeCRM 按 access token 区分租户返回预置数据
type fakeCRM struct {
	mu        sync.Mutex
	data      map[string]map[model.Endpoint][]model.CRMRecord
	failures  map[string]int // token -> 剩余失败次数（所有接口共享）
	broken    map[string]bool
	panics    map[string]bool
	calls     map[string]int
	notesSeen []interfaces.FetchQuery
	// raw 按接口返回固定的原始响应且无记录
	raw map[model.Endpoint]string

	// leadsDelay 非零时 FetchLeads 阻塞该时长（ctx 取消提前返回），并记录同时在途的调用数
	leadsDelay time.Duration
	inflight   atomic.Int32
	peak       atomic.Int32
}

func newFakeCRM() *fakeCRM {
	return &fakeCRM{
		data:     map[string]map[model.Endpoint][]model.CRMRecord{},
		failures: map[string]int{},
		broken:   map[string]bool{},
		panics:   map[string]bool{},
		calls:    map[string]int{},
		raw:      map[model.Endpoint]string{},
	}
}

func (f *fakeCRM) set(token string, endpoint model.Endpoint, records ...model.CRMRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data[token] == nil {
		f.data[token] = map[model.Endpoint][]model.CRMRecord{}
	}
	f.data[token][endpoint] = records
}

func (f *fakeCRM) respond(cred interfaces.Credentials, endpoint model.Endpoint) interfaces.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[cred.AccessToken]++
	if f.panics[cred.AccessToken] {
		panic("unexpected payload shape")
	}
	if f.broken[cred.AccessToken] {
		return interfaces.Envelope{StatusCode: 503, Error: "503 - upstream unavailable"}
	}
	if f.failures[cred.AccessToken] > 0 {
		f.failures[cred.AccessToken]--
		return interfaces.Envelope{Error: "network error: connection reset"}
	}
	if raw, ok := f.raw[endpoint]; ok {
		return interfaces.Envelope{StatusCode: 200, Raw: []byte(raw)}
	}
	records := f.data[cred.AccessToken][endpoint]
	return interfaces.Envelope{StatusCode: 200, Data: records, Raw: []byte(fmt.Sprintf(`{"count":%d}`, len(records)))}
}

func (f *fakeCRM) FetchLeads(ctx context.Context, cred interfaces.Credentials, _ interfaces.FetchQuery) interfaces.Envelope {
	if f.leadsDelay > 0 {
		n := f.inflight.Add(1)
		defer f.inflight.Add(-1)
		for {
			p := f.peak.Load()
			if n <= p || f.peak.CompareAndSwap(p, n) {
				break
			}
		}
		select {
		case <-ctx.Done():
			return interfaces.Envelope{Error: ctx.Err().Error()}
		case <-time.After(f.leadsDelay):
		}
	}
	return f.respond(cred, model.EndpointLeads)
}

func (f *fakeCRM) FetchOpportunities(_ context.Context, cred interfaces.Credentials, _ interfaces.FetchQuery) interfaces.Envelope {
	return f.respond(cred, model.EndpointOpportunities)
}

func (f *fakeCRM) FetchNotes(_ context.Context, cred interfaces.Credentials, q interfaces.FetchQuery) interfaces.Envelope {
	f.mu.Lock()
	f.notesSeen = append(f.notesSeen, q)
	f.mu.Unlock()
	return f.respond(cred, model.EndpointNotes)
}

func (f *fakeCRM) FetchActivities(_ context.Context, cred interfaces.Credentials, _ interfaces.FetchQuery) interfaces.Envelope {
	return f.respond(cred, model.EndpointActivities)
}

// fakeClock 可手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func noSleep(context.Context, time.Duration) error { return nil }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testConfig() *config.Config {
	return &config.Config{
		CRM: config.CRMConfig{RetryCount: 3, ProspectTypeCode: "P"},
		Sync: config.SyncConfig{
			Workers:         1,
			SnapshotWeekday: "sunday",
			Timezone:        "UTC",
			StaleAfter:      2 * time.Hour,
			HotStages:       []string{"Proposal", "Negotiation"},
		},
	}
}

func activeTenant(id uint64, name, token string) *model.Tenant {
	key := "wk-" + name
	tok := token
	return &model.Tenant{ID: id, Name: name, Status: model.TenantStatusActive, CRMWebKey: &key, CRMAccessToken: &tok}
}
