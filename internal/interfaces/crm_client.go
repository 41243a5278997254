package interfaces

import (
	"context"
	"encoding/json"
	"time"

	"PortalSync/internal/model"
)

// Credentials 单个租户的CRM凭证
type Credentials struct {
	AccessToken string // 必带
	WebKey      string // 可选，为空时不发送
}

// FetchQuery 远端接口可选过滤条件
type FetchQuery struct {
	ModifiedSince *time.Time
	From          *time.Time
	To            *time.Time
}

// Envelope 远端调用的统一返回：成功时 Data/Raw 有值，失败时 Error 为 "<status> - <body>" 或网络错误描述。
// 接口方法不对 HTTP 层失败返回 error，是否重试由调用方决定
type Envelope struct {
	Data       []model.CRMRecord
	Raw        json.RawMessage
	StatusCode int // 网络失败时为 0
	Error      string
}

// OK 是否成功
func (e Envelope) OK() bool { return e.Error == "" }

// Err 失败时转换为 *APIError，成功返回 nil
func (e Envelope) Err() error {
	if e.OK() {
		return nil
	}
	return &APIError{StatusCode: e.StatusCode, Message: e.Error}
}

// APIError 远端调用失败
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string { return e.Message }

// Network 是否为网络层失败（未收到HTTP响应）
func (e *APIError) Network() bool { return e.StatusCode == 0 }

// CRMClient 远端CRM的四个只读接口
type CRMClient interface {
	FetchLeads(ctx context.Context, cred Credentials, q FetchQuery) Envelope
	FetchOpportunities(ctx context.Context, cred Credentials, q FetchQuery) Envelope
	FetchNotes(ctx context.Context, cred Credentials, q FetchQuery) Envelope
	FetchActivities(ctx context.Context, cred Credentials, q FetchQuery) Envelope
}
