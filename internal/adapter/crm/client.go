package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"PortalSync/internal/config"
	"PortalSync/internal/interfaces"
	"PortalSync/internal/model"
	"PortalSync/internal/utils/httpclient"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	HeaderAccessToken = "X-Access-Token"
	HeaderWebKey      = "X-Web-Key"
	HeaderRequestID   = "X-Request-Id"
)

// endpointPaths 各接口相对路径
var endpointPaths = map[model.Endpoint]string{
	model.EndpointLeads:         "/leads",
	model.EndpointOpportunities: "/opportunities",
	model.EndpointNotes:         "/notes",
	model.EndpointActivities:    "/scheduled-activities",
}

// Client 远端CRM客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

var _ interfaces.CRMClient = (*Client)(nil)

// NewCRMClient 创建CRM客户端
func NewCRMClient(cfg *config.CRMConfig, logger *logrus.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: httpclient.NewHTTPClient(cfg, logger),
		logger:     logger,
	}
}

func (c *Client) FetchLeads(ctx context.Context, cred interfaces.Credentials, q interfaces.FetchQuery) interfaces.Envelope {
	return c.fetch(ctx, model.EndpointLeads, cred, q)
}

func (c *Client) FetchOpportunities(ctx context.Context, cred interfaces.Credentials, q interfaces.FetchQuery) interfaces.Envelope {
	return c.fetch(ctx, model.EndpointOpportunities, cred, q)
}

func (c *Client) FetchNotes(ctx context.Context, cred interfaces.Credentials, q interfaces.FetchQuery) interfaces.Envelope {
	return c.fetch(ctx, model.EndpointNotes, cred, q)
}

func (c *Client) FetchActivities(ctx context.Context, cred interfaces.Credentials, q interfaces.FetchQuery) interfaces.Envelope {
	return c.fetch(ctx, model.EndpointActivities, cred, q)
}

func (c *Client) fetch(ctx context.Context, endpoint model.Endpoint, cred interfaces.Credentials, q interfaces.FetchQuery) interfaces.Envelope {
	reqURL := c.baseURL + endpointPaths[endpoint]
	if params := encodeQuery(q); params != "" {
		reqURL += "?" + params
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return interfaces.Envelope{Error: fmt.Sprintf("构建请求失败: %v", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderAccessToken, cred.AccessToken)
	if cred.WebKey != "" {
		req.Header.Set(HeaderWebKey, cred.WebKey)
	}
	req.Header.Set(HeaderRequestID, uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).WithField("endpoint", endpoint).Warn("CRM 请求失败")
		return interfaces.Envelope{Error: fmt.Sprintf("network error: %v", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return interfaces.Envelope{Error: fmt.Sprintf("network error: 读取响应失败: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return interfaces.Envelope{
			StatusCode: resp.StatusCode,
			Error:      fmt.Sprintf("%d - %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	records, err := decodeRecords(body)
	if err != nil {
		return interfaces.Envelope{
			StatusCode: resp.StatusCode,
			Error:      fmt.Sprintf("%d - 响应解析失败: %v", resp.StatusCode, err),
		}
	}

	env := interfaces.Envelope{StatusCode: resp.StatusCode, Data: records}
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 {
		env.Raw = json.RawMessage(trimmed)
	}
	c.logger.WithFields(logrus.Fields{"endpoint": endpoint, "records": len(records)}).Debug("CRM 拉取成功")
	return env
}

func encodeQuery(q interfaces.FetchQuery) string {
	values := url.Values{}
	if q.ModifiedSince != nil {
		values.Set("modified_since", q.ModifiedSince.UTC().Format(time.RFC3339))
	}
	if q.From != nil {
		values.Set("date_from", q.From.UTC().Format(time.RFC3339))
	}
	if q.To != nil {
		values.Set("date_to", q.To.UTC().Format(time.RFC3339))
	}
	return values.Encode()
}

// decodeRecords 兼容裸数组与 {"data"|"results"|"items": [...]} 外层结构；空响应或无记录数组的对象返回 nil
func decodeRecords(body []byte) ([]model.CRMRecord, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}

	if body[0] == '{' {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(body, &wrapper); err != nil {
			return nil, err
		}
		for _, key := range []string{"data", "results", "items"} {
			if inner, ok := wrapper[key]; ok {
				return decodeRecords(inner)
			}
		}
		// 没有记录数组（如 {} 或 {"total":0}）按无数据处理
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber() // 金额保持原始精度
	var raw []map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	records := make([]model.CRMRecord, 0, len(raw))
	for _, r := range raw {
		records = append(records, model.CRMRecord(r))
	}
	return records, nil
}
