package webex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"
	json "github.com/goccy/go-json"

	"github.com/ilhicas/webex-partner-ops/internal/retry"
)

const billingReportsPath = "/wholesale/billing/reports"

// ErrReportExists is returned by CreateBillingReport on HTTP 409.
var ErrReportExists = errors.New("billing report already exists")

// ListBillingReports returns every wholesale billing report.
func (c *Client) ListBillingReports(ctx context.Context) ([]BillingReport, error) {
	reports, err := listAll[BillingReport](ctx, c, billingReportsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("listing billing reports: %w", err)
	}
	return reports, nil
}

// CreateBillingReport requests a new report. The returned report may carry
// only an ID; its status is whatever the API answered immediately.
func (c *Client) CreateBillingReport(ctx context.Context, req BillingReportRequest) (BillingReport, error) {
	resp, err := c.execute(ctx, http.MethodPost, billingReportsPath, func(r *resty.Request) {
		r.SetHeader("Content-Type", "application/json").SetBody(req)
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
			return BillingReport{}, ErrReportExists
		}
		return BillingReport{}, fmt.Errorf("creating billing report: %w", err)
	}

	var report BillingReport
	if len(resp.Body()) > 0 {
		if err := json.Unmarshal(resp.Body(), &report); err != nil {
			return BillingReport{}, fmt.Errorf("decoding created billing report: %w", err)
		}
	}
	if report.BillingStartDate == "" {
		report.BillingStartDate = req.BillingStartDate
		report.BillingEndDate = req.BillingEndDate
	}
	return report, nil
}

// GetBillingReport fetches one report, including its temporary download URL
// once completed.
func (c *Client) GetBillingReport(ctx context.Context, id string) (BillingReport, error) {
	var report BillingReport
	if _, err := c.getJSON(ctx, billingReportsPath+"/"+url.PathEscape(id), nil, &report); err != nil {
		return BillingReport{}, fmt.Errorf("getting billing report %s: %w", id, err)
	}
	return report, nil
}

// Download fetches a temporary download URL once, without the API bearer token.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.executeWith(ctx, c.download, retry.Policy{MaxAttempts: 1}, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("downloading report: %w", err)
	}
	return resp.Body(), nil
}
