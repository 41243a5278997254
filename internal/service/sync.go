package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"PortalSync/internal/config"
	"PortalSync/internal/interfaces"
	"PortalSync/internal/model"
	"PortalSync/internal/repository"
	"PortalSync/internal/utils/retry"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

// ErrTenantNotEligible 租户未启用或缺少凭证
var ErrTenantNotEligible = errors.New("tenant is not eligible for sync")

// TenantResult 单个租户一次同步的结果
type TenantResult struct {
	TenantID       uint64  `json:"tenant_id"`
	RunID          uint64  `json:"run_id"`
	Status         string  `json:"status"`
	RecordsUpdated int     `json:"records_updated"`
	Error          string  `json:"error,omitempty"`
	ReportWeekID   *uint64 `json:"report_week_id,omitempty"`
	SnapshotRows   int     `json:"snapshot_rows,omitempty"`
}

// PassResult 一轮全部租户同步的结果，Tenants 与可同步租户顺序一致
type PassResult struct {
	PassID    string          `json:"pass_id"`
	Trigger   string          `json:"trigger"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Tenants   []*TenantResult `json:"tenants"`
}

// SyncService 租户同步编排：拉取 -> 原始快照 -> 归一化 -> 运行记录 -> 周快照
type SyncService struct {
	repos       *repository.Repositories
	client      interfaces.CRMClient
	tracker     *RunTracker
	weeks       *ReportWeekService
	normalizers map[model.Endpoint][]Normalizer
	clock       interfaces.Clock
	sleep       retry.Sleeper
	logger      *logrus.Logger

	attempts     int
	workers      int
	tenantTimeout time.Duration
	snapshotDay  time.Weekday
	loc          *time.Location

	// 同一时刻只跑一轮全量同步
	passMu sync.Mutex
	// 每个租户一把锁，全量与单租户手动同步对同一租户串行
	tenantLocks sync.Map
}

func NewSyncService(repos *repository.Repositories, client interfaces.CRMClient, cfg *config.Config, clock interfaces.Clock, logger *logrus.Logger) (*SyncService, error) {
	loc, err := cfg.Sync.Location()
	if err != nil {
		return nil, err
	}
	day, err := cfg.Sync.Weekday()
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = interfaces.SystemClock{}
	}
	workers := cfg.Sync.Workers
	if workers <= 0 {
		workers = 1
	}

	// 同一接口的多个归一化按切片顺序执行
	normalizers := make(map[model.Endpoint][]Normalizer)
	for _, n := range []Normalizer{
		NewLeadNormalizer(repos.Leads, cfg.CRM.ProspectTypeCode),
		NewPipelineNormalizer(repos.Pipeline),
		NewHotListNormalizer(repos.HotList, cfg.Sync.HotStages),
		NewNoteNormalizer(repos.Notes, logger),
		NewActivityNormalizer(repos.Activities),
	} {
		normalizers[n.Endpoint()] = append(normalizers[n.Endpoint()], n)
	}

	return &SyncService{
		repos:        repos,
		client:       client,
		tracker:      NewRunTracker(repos.Runs, clock),
		weeks:        NewReportWeekService(repos.Weeks, repos.Leads, repos.Pipeline, repos.WeeklySnapshots, loc),
		normalizers:  normalizers,
		clock:        clock,
		sleep:        retry.WaitWithContext,
		logger:       logger,
		attempts:     cfg.CRM.RetryCount,
		workers:      workers,
		tenantTimeout: cfg.Sync.TenantTimeout,
		snapshotDay:  day,
		loc:          loc,
	}, nil
}

// SetSleeper 替换重试等待函数
func (s *SyncService) SetSleeper(sleep retry.Sleeper) {
	s.sleep = sleep
}

// ReportWeeks 报告周服务
func (s *SyncService) ReportWeeks() *ReportWeekService {
	return s.weeks
}

// RunOnce 同步全部可同步租户。单个租户失败只记录在其运行记录中，不影响其他租户；
// 仅当无法读取租户列表时返回错误
func (s *SyncService) RunOnce(ctx context.Context, trigger string) (*PassResult, error) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	passID := uuid.NewString()
	log := s.logger.WithFields(logrus.Fields{"pass_id": passID, "trigger": trigger})

	// 1. 选出可同步租户
	tenants, err := s.eligibleTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取租户列表失败: %w", err)
	}
	log.Infof("开始同步，可同步租户 %d 个", len(tenants))

	// 2. 按 workers 限制并发逐个同步，workers=1 时严格串行
	result := &PassResult{PassID: passID, Trigger: trigger, Tenants: make([]*TenantResult, len(tenants))}
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, t := range tenants {
		g.Go(func() error {
			result.Tenants[i] = s.syncTenant(ctx, t, trigger, log)
			return nil
		})
	}
	_ = g.Wait()

	// 3. 汇总
	for _, r := range result.Tenants {
		if r.Status == model.SyncRunStatusSuccess {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}
	log.WithFields(logrus.Fields{"succeeded": result.Succeeded, "failed": result.Failed}).Info("同步完成")
	return result, nil
}

// SyncTenant 手动同步单个租户，租户不存在返回 repository.ErrNotFound，不可同步返回 ErrTenantNotEligible
func (s *SyncService) SyncTenant(ctx context.Context, tenantID uint64, trigger string) (*TenantResult, error) {
	tenant, err := s.repos.Tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !IsEligible(tenant) {
		return nil, ErrTenantNotEligible
	}
	log := s.logger.WithFields(logrus.Fields{"pass_id": uuid.NewString(), "trigger": trigger})
	return s.syncTenant(ctx, tenant, trigger, log), nil
}

// syncTenant 单租户：running -> success | failed，运行记录恰好终结一次
func (s *SyncService) syncTenant(ctx context.Context, tenant *model.Tenant, trigger string, passLog *logrus.Entry) *TenantResult {
	log := passLog.WithFields(logrus.Fields{"tenant_id": tenant.ID, "tenant": tenant.Name})
	res := &TenantResult{TenantID: tenant.ID, Status: model.SyncRunStatusFailed}

	unlock := s.lockTenant(tenant.ID)
	defer unlock()

	run, err := s.tracker.Start(ctx, tenant.ID, trigger)
	if err != nil {
		log.WithError(err).Error("创建同步记录失败")
		res.Error = err.Error()
		return res
	}
	res.RunID = run.ID
	log = log.WithField("run_id", run.ID)

	records, runErr := s.runTenantSafely(ctx, tenant, run, log)
	res.RecordsUpdated = records
	if err := s.tracker.Finish(ctx, run.ID, records, runErr); err != nil {
		log.WithError(err).Error("更新同步记录失败")
	}
	if runErr != nil {
		log.WithError(runErr).Warn("租户同步失败")
		res.Error = runErr.Error()
		return res
	}
	res.Status = model.SyncRunStatusSuccess
	log.WithField("records", records).Info("租户同步成功")

	// 周快照日：冻结当前实时汇总
	if s.isSnapshotDay() {
		weekID, rows, err := s.snapshotWeek(ctx, tenant.ID)
		if err != nil {
			log.WithError(err).Error("周快照失败")
			return res
		}
		res.ReportWeekID = &weekID
		res.SnapshotRows = rows
		log.WithFields(logrus.Fields{"report_week_id": weekID, "rows": rows}).Info("周快照完成")
	}
	return res
}

// lockTenant 获取租户锁，返回解锁函数
func (s *SyncService) lockTenant(tenantID uint64) func() {
	v, _ := s.tenantLocks.LoadOrStore(tenantID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// runTenantSafely 租户内 panic 转为失败
func (s *SyncService) runTenantSafely(ctx context.Context, tenant *model.Tenant, run *model.SyncRun, log *logrus.Entry) (records int, err error) {
	defer func() {
		if p := recover(); p != nil {
			log.Errorf("租户同步 panic: %v", p)
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return s.runTenant(ctx, tenant, run, log)
}

func (s *SyncService) runTenant(ctx context.Context, tenant *model.Tenant, run *model.SyncRun, log *logrus.Entry) (int, error) {
	if s.tenantTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.tenantTimeout)
		defer cancel()
	}
	cred := credentialsOf(tenant)

	// 笔记只增不删，按上次成功同步的开始时间增量拉取
	var notesQuery interfaces.FetchQuery
	last, err := s.repos.Runs.LatestSuccessfulRun(ctx, tenant.ID)
	if err != nil {
		return 0, fmt.Errorf("查询上次成功同步失败: %w", err)
	}
	if last != nil {
		since := last.StartedAt
		notesQuery.ModifiedSince = &since
	}

	total := 0
	for _, endpoint := range model.Endpoints {
		q := interfaces.FetchQuery{}
		if endpoint == model.EndpointNotes {
			q = notesQuery
		}
		elog := log.WithField("endpoint", endpoint)

		// 1. 拉取（带退避重试）
		var env interfaces.Envelope
		err := retry.DoWithSleeper(ctx, s.attempts, s.sleep, func(ctx context.Context) error {
			env = s.fetch(ctx, endpoint, cred, q)
			if e := env.Err(); e != nil {
				elog.WithError(e).Warn("拉取失败")
				return e
			}
			return nil
		})
		if err != nil {
			return total, fmt.Errorf("拉取%s失败: %w", endpoint, err)
		}

		// 2. 原始快照先于归一化落库
		if err := s.repos.Snapshots.AppendSnapshot(ctx, &model.RawSnapshot{
			TenantID:  tenant.ID,
			Endpoint:  string(endpoint),
			Payload:   datatypes.JSON(env.Raw),
			FetchedAt: s.clock.Now(),
		}); err != nil {
			return total, fmt.Errorf("保存%s原始快照失败: %w", endpoint, err)
		}

		// 3. 空数据不归一化，保留上次的实时行
		if len(env.Data) == 0 {
			elog.Info("远端无数据，跳过归一化")
			continue
		}
		for _, n := range s.normalizers[endpoint] {
			rows, err := n.Normalize(ctx, tenant.ID, env.Data)
			if err != nil {
				return total, fmt.Errorf("归一化%s失败: %w", endpoint, err)
			}
			elog.WithFields(logrus.Fields{"normalizer": fmt.Sprintf("%T", n), "rows": rows}).Debug("归一化完成")
		}
		total += len(env.Data)
	}
	return total, nil
}

func (s *SyncService) fetch(ctx context.Context, endpoint model.Endpoint, cred interfaces.Credentials, q interfaces.FetchQuery) interfaces.Envelope {
	switch endpoint {
	case model.EndpointLeads:
		return s.client.FetchLeads(ctx, cred, q)
	case model.EndpointOpportunities:
		return s.client.FetchOpportunities(ctx, cred, q)
	case model.EndpointNotes:
		return s.client.FetchNotes(ctx, cred, q)
	case model.EndpointActivities:
		return s.client.FetchActivities(ctx, cred, q)
	}
	return interfaces.Envelope{Error: fmt.Sprintf("unknown endpoint %s", endpoint)}
}

// isSnapshotDay 按配置时区判断今天是否为周快照日
func (s *SyncService) isSnapshotDay() bool {
	return s.clock.Now().In(s.loc).Weekday() == s.snapshotDay
}

func (s *SyncService) snapshotWeek(ctx context.Context, tenantID uint64) (uint64, int, error) {
	week, err := s.weeks.FindOrCreateReportWeek(ctx, tenantID, s.clock.Now())
	if err != nil {
		return 0, 0, err
	}
	rows, err := s.weeks.CreateWeeklySnapshot(ctx, tenantID, week.ID)
	if err != nil {
		return week.ID, 0, err
	}
	return week.ID, rows, nil
}
