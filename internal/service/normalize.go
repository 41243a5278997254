package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"PortalSync/internal/model"
	"PortalSync/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// unknownBucket 缺失维度值时的分组名
const unknownBucket = "Unknown"

// Normalizer 单一实体的归一化：把一次拉取的记录写成租户的实时行
type Normalizer interface {
	// Endpoint 消费的远端接口
	Endpoint() model.Endpoint
	// Normalize 返回写入的行数
	Normalize(ctx context.Context, tenantID uint64, records []model.CRMRecord) (int, error)
}

// ---------------- 线索 ----------------

// LeadNormalizer 按来源和销售阶段统计 prospect 线索
type LeadNormalizer struct {
	repo         repository.LeadMetricRepository
	prospectCode string
}

func NewLeadNormalizer(repo repository.LeadMetricRepository, prospectCode string) *LeadNormalizer {
	return &LeadNormalizer{repo: repo, prospectCode: strings.TrimSpace(prospectCode)}
}

func (n *LeadNormalizer) Endpoint() model.Endpoint { return model.EndpointLeads }

func (n *LeadNormalizer) Normalize(ctx context.Context, tenantID uint64, records []model.CRMRecord) (int, error) {
	rows := AggregateLeads(tenantID, records, n.prospectCode)
	if err := n.repo.ReplaceLiveLeadMetrics(ctx, tenantID, rows); err != nil {
		return 0, fmt.Errorf("替换线索汇总失败: %w", err)
	}
	return len(rows), nil
}

type leadBucket struct {
	count    int
	earliest *time.Time
}

// AggregateLeads 过滤出 prospect 类型后按 source、status 两个维度计数，记录每组最早的来源日期。
// prospectCode 为空时不过滤
func AggregateLeads(tenantID uint64, records []model.CRMRecord, prospectCode string) []*model.LeadMetric {
	buckets := map[string]map[string]*leadBucket{
		model.DimensionSource: {},
		model.DimensionStatus: {},
	}
	add := func(dim, value string, created *time.Time) {
		b, ok := buckets[dim][value]
		if !ok {
			b = &leadBucket{}
			buckets[dim][value] = b
		}
		b.count++
		if created != nil && (b.earliest == nil || created.Before(*b.earliest)) {
			t := *created
			b.earliest = &t
		}
	}

	for _, rec := range records {
		if prospectCode != "" {
			code, _ := pickString(rec, leadTypeKeys)
			if !strings.EqualFold(code, prospectCode) {
				continue
			}
		}
		created := pickTime(rec, leadCreatedKeys)
		add(model.DimensionSource, stringOr(rec, leadSourceKeys, unknownBucket), created)
		add(model.DimensionStatus, stringOr(rec, leadStatusKeys, unknownBucket), created)
	}

	rows := make([]*model.LeadMetric, 0)
	for _, dim := range []string{model.DimensionSource, model.DimensionStatus} {
		for _, value := range sortedKeys(buckets[dim]) {
			b := buckets[dim][value]
			rows = append(rows, &model.LeadMetric{
				TenantID:           tenantID,
				DimensionType:      dim,
				DimensionValue:     value,
				Leads:              b.count,
				EarliestSourceDate: b.earliest,
			})
		}
	}
	return rows
}

// ---------------- 商机阶段 ----------------

// PipelineNormalizer 按阶段统计商机数量与金额
type PipelineNormalizer struct {
	repo repository.PipelineRepository
}

func NewPipelineNormalizer(repo repository.PipelineRepository) *PipelineNormalizer {
	return &PipelineNormalizer{repo: repo}
}

func (n *PipelineNormalizer) Endpoint() model.Endpoint { return model.EndpointOpportunities }

func (n *PipelineNormalizer) Normalize(ctx context.Context, tenantID uint64, records []model.CRMRecord) (int, error) {
	rows := AggregatePipeline(tenantID, records)
	if err := n.repo.ReplaceLivePipeline(ctx, tenantID, rows); err != nil {
		return 0, fmt.Errorf("替换阶段汇总失败: %w", err)
	}
	return len(rows), nil
}

type stageBucket struct {
	count    int
	total    decimal.Decimal
	earliest *time.Time
}

// AggregatePipeline 按阶段分组；金额取 deal_size，缺失时取 value，都没有按 0 计，记录仍计入数量
func AggregatePipeline(tenantID uint64, records []model.CRMRecord) []*model.PipelineStageCount {
	buckets := make(map[string]*stageBucket)
	for _, rec := range records {
		stage := stringOr(rec, oppStageKeys, unknownBucket)
		b, ok := buckets[stage]
		if !ok {
			b = &stageBucket{total: decimal.Zero}
			buckets[stage] = b
		}
		b.count++
		b.total = b.total.Add(opportunityValue(rec))
		if created := pickTime(rec, oppCreatedKeys); created != nil && (b.earliest == nil || created.Before(*b.earliest)) {
			b.earliest = created
		}
	}

	rows := make([]*model.PipelineStageCount, 0, len(buckets))
	for _, stage := range sortedKeys(buckets) {
		b := buckets[stage]
		rows = append(rows, &model.PipelineStageCount{
			TenantID:           tenantID,
			Stage:              stage,
			Count:              b.count,
			DollarValue:        b.total.String(),
			EarliestSourceDate: b.earliest,
		})
	}
	return rows
}

// opportunityValue deal_size 优先，其次 value，均不可用为 0
func opportunityValue(rec model.CRMRecord) decimal.Decimal {
	if d, ok := pickDecimal(rec, oppDealSizeKeys); ok {
		return d
	}
	if d, ok := pickDecimal(rec, oppValueKeys); ok {
		return d
	}
	return decimal.Zero
}

// ---------------- 重点商机 ----------------

// HotListNormalizer 后段阶段的商机进入重点名单
type HotListNormalizer struct {
	repo   repository.HotListRepository
	stages map[string]struct{}
}

func NewHotListNormalizer(repo repository.HotListRepository, hotStages []string) *HotListNormalizer {
	stages := make(map[string]struct{}, len(hotStages))
	for _, s := range hotStages {
		stages[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	return &HotListNormalizer{repo: repo, stages: stages}
}

func (n *HotListNormalizer) Endpoint() model.Endpoint { return model.EndpointOpportunities }

func (n *HotListNormalizer) Normalize(ctx context.Context, tenantID uint64, records []model.CRMRecord) (int, error) {
	rows, err := SelectHotList(tenantID, records, n.stages)
	if err != nil {
		return 0, err
	}
	if err := n.repo.ReplaceLiveHotList(ctx, tenantID, rows); err != nil {
		return 0, fmt.Errorf("替换重点商机失败: %w", err)
	}
	return len(rows), nil
}

// SelectHotList 阶段属于 stages（小写）的商机，weighted = value * probability / 100，原始记录原样保存
func SelectHotList(tenantID uint64, records []model.CRMRecord, stages map[string]struct{}) ([]*model.HotListItem, error) {
	hundred := decimal.NewFromInt(100)
	rows := make([]*model.HotListItem, 0)
	for _, rec := range records {
		stage, ok := pickString(rec, oppStageKeys)
		if !ok {
			continue
		}
		if _, hot := stages[strings.ToLower(stage)]; !hot {
			continue
		}
		raw, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("序列化商机记录失败: %w", err)
		}
		value := opportunityValue(rec)
		pct, _ := pickPercent(rec, oppProbKeys)
		oppID, _ := pickString(rec, oppIDKeys)
		rows = append(rows, &model.HotListItem{
			TenantID:      tenantID,
			OpportunityID: oppID,
			CandidateName: stringOr(rec, oppNameKeys, unknownBucket),
			Stage:         stage,
			LikelyPct:     pct,
			Value:         value.String(),
			WeightedValue: value.Mul(decimal.NewFromInt(int64(pct))).Div(hundred).Round(2).String(),
			RawJSON:       datatypes.JSON(raw),
		})
	}
	return rows, nil
}

// ---------------- 笔记 ----------------

// NoteNormalizer 笔记按 (tenant, contact) 累积，已存在的不再写入
type NoteNormalizer struct {
	repo   repository.NoteRepository
	logger *logrus.Logger
}

func NewNoteNormalizer(repo repository.NoteRepository, logger *logrus.Logger) *NoteNormalizer {
	return &NoteNormalizer{repo: repo, logger: logger}
}

func (n *NoteNormalizer) Endpoint() model.Endpoint { return model.EndpointNotes }

func (n *NoteNormalizer) Normalize(ctx context.Context, tenantID uint64, records []model.CRMRecord) (int, error) {
	notes, skipped := BuildNotes(tenantID, records)
	if skipped > 0 {
		n.logger.WithFields(logrus.Fields{"tenant_id": tenantID, "skipped": skipped}).Warn("笔记缺少 contact_id，已跳过")
	}
	inserted, err := n.repo.InsertNotesIfAbsent(ctx, notes)
	if err != nil {
		return 0, fmt.Errorf("写入笔记失败: %w", err)
	}
	return inserted, nil
}

// BuildNotes 转换笔记记录；同一批次内 contact 重复只保留第一条，缺少 contact 的计入 skipped
func BuildNotes(tenantID uint64, records []model.CRMRecord) (notes []*model.Note, skipped int) {
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		contactID, ok := pickString(rec, noteContactKeys)
		if !ok {
			skipped++
			continue
		}
		if _, dup := seen[contactID]; dup {
			continue
		}
		seen[contactID] = struct{}{}
		author, _ := pickString(rec, noteAuthorKeys)
		body, _ := pickString(rec, noteBodyKeys)
		notes = append(notes, &model.Note{
			TenantID:  tenantID,
			ContactID: contactID,
			Author:    author,
			Body:      body,
			NotedAt:   pickTime(rec, noteDateKeys),
		})
	}
	return notes, skipped
}

// ---------------- 日程活动 ----------------

// ActivityNormalizer 日程活动整体替换
type ActivityNormalizer struct {
	repo repository.ActivityRepository
}

func NewActivityNormalizer(repo repository.ActivityRepository) *ActivityNormalizer {
	return &ActivityNormalizer{repo: repo}
}

func (n *ActivityNormalizer) Endpoint() model.Endpoint { return model.EndpointActivities }

func (n *ActivityNormalizer) Normalize(ctx context.Context, tenantID uint64, records []model.CRMRecord) (int, error) {
	rows, err := BuildActivities(tenantID, records)
	if err != nil {
		return 0, err
	}
	if err := n.repo.ReplaceActivities(ctx, tenantID, rows); err != nil {
		return 0, fmt.Errorf("替换日程活动失败: %w", err)
	}
	return len(rows), nil
}

// BuildActivities 每条记录都写入，不做去重
func BuildActivities(tenantID uint64, records []model.CRMRecord) ([]*model.ScheduledActivity, error) {
	rows := make([]*model.ScheduledActivity, 0, len(records))
	for _, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("序列化日程活动失败: %w", err)
		}
		activityID, _ := pickString(rec, activityIDKeys)
		contactID, _ := pickString(rec, activityContactKeys)
		activityType, _ := pickString(rec, activityTypeKeys)
		subject, _ := pickString(rec, activitySubjectKeys)
		rows = append(rows, &model.ScheduledActivity{
			TenantID:     tenantID,
			ActivityID:   activityID,
			ContactID:    contactID,
			ActivityType: activityType,
			Subject:      subject,
			ScheduledAt:  pickTime(rec, activityScheduleKeys),
			Completed:    pickBool(rec, activityCompletedKeys),
			RawJSON:      datatypes.JSON(raw),
		})
	}
	return rows, nil
}

func stringOr(rec model.CRMRecord, keys []string, fallback string) string {
	if s, ok := pickString(rec, keys); ok {
		return s
	}
	return fallback
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
