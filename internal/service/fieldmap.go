package service

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"PortalSync/internal/model"

	"github.com/shopspring/decimal"
)

// 各逻辑字段在远端记录中的候选字段名，按顺序取第一个可用值
var (
	leadTypeKeys    = []string{"contact_type", "contact_type_code", "type_code", "type"}
	leadSourceKeys  = []string{"lead_source", "contact_source", "source"}
	leadStatusKeys  = []string{"contact_sales_cycle", "sales_cycle", "lead_status", "status"}
	leadCreatedKeys = []string{"source_date", "contact_created", "created_at", "date_created", "created"}

	oppIDKeys       = []string{"opportunity_id", "id"}
	oppStageKeys    = []string{"stage", "contact_sales_cycle", "sales_cycle", "pipeline_stage"}
	oppDealSizeKeys = []string{"deal_size", "dealSize"}
	oppValueKeys    = []string{"value", "amount"}
	oppProbKeys     = []string{"probability", "likely_pct", "likely", "win_probability"}
	oppNameKeys     = []string{"candidate_name", "contact_name", "name", "title"}
	oppCreatedKeys  = []string{"source_date", "created_at", "date_created", "created"}

	noteContactKeys = []string{"contact_id", "contactId", "contact"}
	noteAuthorKeys  = []string{"author", "created_by", "user"}
	noteBodyKeys    = []string{"body", "note", "text", "content"}
	noteDateKeys    = []string{"noted_at", "created_at", "date"}

	activityIDKeys        = []string{"activity_id", "id"}
	activityContactKeys   = []string{"contact_id", "contactId"}
	activityTypeKeys      = []string{"activity_type", "type"}
	activitySubjectKeys   = []string{"subject", "title", "description"}
	activityScheduleKeys  = []string{"scheduled_at", "due_date", "start", "date"}
	activityCompletedKeys = []string{"completed", "is_completed", "done"}
)

// 远端日期字段可能出现的格式
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
}

// pickString 取第一个非空字段，数字转为字符串
func pickString(rec model.CRMRecord, keys []string) (string, bool) {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case json.Number:
			s = t.String()
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		case int:
			s = strconv.Itoa(t)
		case int64:
			s = strconv.FormatInt(t, 10)
		case bool:
			s = strconv.FormatBool(t)
		default:
			s = fmt.Sprint(t)
		}
		s = strings.TrimSpace(s)
		if s != "" {
			return s, true
		}
	}
	return "", false
}

// pickDecimal 取第一个可解析为定点数的字段；"$1,250.50" 形式的字符串也可解析
func pickDecimal(rec model.CRMRecord, keys []string) (decimal.Decimal, bool) {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || v == nil {
			continue
		}
		if d, ok := toDecimal(v); ok {
			return d, true
		}
	}
	return decimal.Zero, false
}

func toDecimal(v interface{}) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case string:
		s := strings.TrimSpace(t)
		s = strings.TrimPrefix(s, "$")
		s = strings.ReplaceAll(s, ",", "")
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	}
	return decimal.Zero, false
}

// pickPercent 取概率字段并截断到 0-100
func pickPercent(rec model.CRMRecord, keys []string) (int, bool) {
	d, ok := pickDecimal(rec, keys)
	if !ok {
		return 0, false
	}
	p := int(d.Round(0).IntPart())
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return p, true
}

// pickTime 取第一个可解析的日期；无法解析返回 nil，不使用当前时间兜底
func pickTime(rec model.CRMRecord, keys []string) *time.Time {
	for _, k := range keys {
		s, ok := pickString(rec, []string{k})
		if !ok {
			continue
		}
		if t, ok := parseDate(s); ok {
			return &t
		}
	}
	return nil
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// pickBool 布尔字段，兼容 "true"/"1"/"yes"
func pickBool(rec model.CRMRecord, keys []string) bool {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || v == nil {
			continue
		}
		if b, ok := v.(bool); ok {
			return b
		}
		if s, ok := pickString(rec, []string{k}); ok {
			switch strings.ToLower(s) {
			case "true", "1", "yes", "y":
				return true
			}
			return false
		}
	}
	return false
}
