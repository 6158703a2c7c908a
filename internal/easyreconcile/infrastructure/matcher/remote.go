// Package matcher 通过 HTTP 调用外部匹配服务实现对账插件
package matcher

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/easyreconcile/internal/easyreconcile/domain"
	"github.com/wyfcoding/easyreconcile/pkg/logger"
)

// Client 外部匹配服务客户端
type Client struct {
	http *resty.Client
}

// NewClient baseURL 形如 http://matcher:8000
func NewClient(baseURL string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(0)
	return &Client{http: c}
}

type reconcileRequest struct {
	AccountID       uint64          `json:"account_id"`
	WriteOff        decimal.Decimal `json:"write_off"`
	AccountLostID   *uint64         `json:"account_lost_id,omitempty"`
	AccountProfitID *uint64         `json:"account_profit_id,omitempty"`
	JournalID       *uint64         `json:"journal_id,omitempty"`
	DateBaseOn      string          `json:"date_base_on"`
	Filter          string          `json:"filter,omitempty"`
}

type reconcileResponse struct {
	ReconciledLineIDs []uint64 `json:"reconciled_line_ids"`
	PartialLineIDs    []uint64 `json:"partial_line_ids"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Factory 返回调用远端方法 name 的插件工厂
func (c *Client) Factory(name domain.MethodName) domain.ReconcilerFactory {
	return func(_ context.Context, params domain.RunParams) (domain.Reconciler, error) {
		return &remoteReconciler{client: c, name: name, params: params}, nil
	}
}

type remoteReconciler struct {
	client *Client
	name   domain.MethodName
	params domain.RunParams
}

func (r *remoteReconciler) AutomaticReconcile(ctx context.Context) ([]uint64, []uint64, error) {
	req := reconcileRequest{
		AccountID:       r.params.AccountID,
		WriteOff:        r.params.WriteOff,
		AccountLostID:   r.params.AccountLostID,
		AccountProfitID: r.params.AccountProfitID,
		JournalID:       r.params.JournalID,
		DateBaseOn:      string(r.params.DateBaseOn),
		Filter:          r.params.Filter,
	}

	var out reconcileResponse
	var apiErr errorResponse
	resp, err := r.client.http.R().
		SetContext(ctx).
		SetHeader("X-Trace-ID", logger.TraceID(ctx)).
		SetPathParam("method", string(r.name)).
		SetBody(req).
		SetResult(&out).
		SetError(&apiErr).
		Post("/methods/{method}/reconcile")
	if err != nil {
		return nil, nil, fmt.Errorf("call matcher %s: %w", r.name, err)
	}
	if resp.IsError() {
		msg := apiErr.Error
		if msg == "" {
			msg = resp.Status()
		}
		return nil, nil, fmt.Errorf("matcher %s returned %d: %s", r.name, resp.StatusCode(), msg)
	}

	logger.Debug(ctx, "matcher responded",
		"method", r.name,
		"account_id", r.params.AccountID,
		"reconciled", len(out.ReconciledLineIDs),
		"partial", len(out.PartialLineIDs),
		"elapsed", resp.Time(),
	)
	return out.ReconciledLineIDs, out.PartialLineIDs, nil
}
