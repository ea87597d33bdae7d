package webex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/tomnomnom/linkheader"
	"golang.org/x/time/rate"

	"github.com/ilhicas/webex-partner-ops/internal/retry"
)

// DefaultBaseURL is the public partner API root.
const DefaultBaseURL = "https://webexapis.com/v1"

// Options configures a Client.
type Options struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
	PageSize    int

	// RateLimit calls per RatePeriod; zero disables client-side limiting.
	RateLimit  int
	RatePeriod time.Duration

	Retry  retry.Policy
	Logger zerolog.Logger

	// HTTPClient overrides the underlying transport (tests).
	HTTPClient *http.Client
}

// Client talks to the partner API. Every call goes through the rate limiter and
// the retry policy; 429, 5xx and network timeouts are retried.
type Client struct {
	rest     *resty.Client
	download *resty.Client
	limiter  *rate.Limiter
	policy   retry.Policy
	pageSize int
	log      zerolog.Logger
	now      func() time.Time

	mu       sync.Mutex
	tracking bool
	calls    []CallRecord
}

// APIError is a non-2xx response.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	TrackingID string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, truncate(e.Body, 300))
}

// CallRecord is one entry of the API tracking log.
type CallRecord struct {
	Method     string    `json:"method"`
	URL        string    `json:"url"`
	StatusCode int       `json:"statusCode"`
	TrackingID string    `json:"trackingId"`
	Response   string    `json:"responseText"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewClient creates a partner API client.
func NewClient(opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	var rest, download *resty.Client
	if opts.HTTPClient != nil {
		rest = resty.NewWithClient(opts.HTTPClient)
		download = resty.NewWithClient(opts.HTTPClient)
	} else {
		rest = resty.New()
		download = resty.New()
	}
	rest.SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetAuthToken(opts.AccessToken)
	rest.JSONMarshal = json.Marshal
	rest.JSONUnmarshal = json.Unmarshal
	download.SetTimeout(2 * timeout)

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RateLimit > 0 && opts.RatePeriod > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.RatePeriod/time.Duration(opts.RateLimit)), opts.RateLimit)
	}

	c := &Client{
		rest:     rest,
		download: download,
		limiter:  limiter,
		policy:   opts.Retry,
		pageSize: opts.PageSize,
		log:      opts.Logger.With().Str("component", "webex").Logger(),
		now:      time.Now,
	}
	if c.policy.MaxAttempts == 0 {
		c.policy = retry.DefaultPolicy()
	}
	if c.policy.OnRetry == nil {
		c.policy.OnRetry = func(attempt int, delay time.Duration, err error) {
			c.log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("transient failure, backing off")
		}
	}

	rest.OnAfterResponse(func(_ *resty.Client, r *resty.Response) error {
		c.record(CallRecord{
			Method:     r.Request.Method,
			URL:        r.Request.URL,
			StatusCode: r.StatusCode(),
			TrackingID: r.Header().Get("Trackingid"),
			Response:   string(r.Body()),
			Timestamp:  c.now(),
		})
		return nil
	})
	rest.OnError(func(req *resty.Request, err error) {
		c.record(CallRecord{
			Method:     req.Method,
			URL:        req.URL,
			StatusCode: 0,
			TrackingID: "N/A",
			Error:      err.Error(),
			Timestamp:  c.now(),
		})
	})

	return c
}

// SetAccessToken replaces the bearer token, e.g. after an OAuth refresh.
func (c *Client) SetAccessToken(token string) {
	c.rest.SetAuthToken(token)
}

// EnableTracking starts collecting a CallRecord for every response.
func (c *Client) EnableTracking() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracking = true
}

// Calls returns a copy of the tracking log.
func (c *Client) Calls() []CallRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CallRecord, len(c.calls))
	copy(out, c.calls)
	return out
}

func (c *Client) record(rec CallRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tracking {
		c.calls = append(c.calls, rec)
	}
}

func (c *Client) execute(ctx context.Context, method, url string, build func(r *resty.Request)) (*resty.Response, error) {
	return c.executeWith(ctx, c.rest, c.policy, method, url, build)
}

func (c *Client) executeWith(ctx context.Context, rc *resty.Client, policy retry.Policy, method, url string, build func(r *resty.Request)) (*resty.Response, error) {
	var resp *resty.Response
	err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req := rc.R().SetContext(ctx)
		if build != nil {
			build(req)
		}

		res, err := req.Execute(method, url)
		if err != nil {
			if ctx.Err() == nil && isTimeout(err) {
				return retry.Transient(err, 0)
			}
			return err
		}
		resp = res

		if res.IsSuccess() {
			return nil
		}

		apiErr := &APIError{
			Method:     method,
			URL:        res.Request.URL,
			StatusCode: res.StatusCode(),
			Body:       string(res.Body()),
			TrackingID: res.Header().Get("Trackingid"),
		}
		if retryableStatus(res.StatusCode()) {
			return retry.Transient(apiErr, retryAfter(res.Header(), c.now()))
		}
		return apiErr
	})
	return resp, err
}

func (c *Client) getJSON(ctx context.Context, url string, query map[string]string, out interface{}) (*resty.Response, error) {
	resp, err := c.execute(ctx, http.MethodGet, url, func(r *resty.Request) {
		if len(query) > 0 {
			r.SetQueryParams(query)
		}
	})
	if err != nil {
		return resp, err
	}
	if out != nil && len(bytes.TrimSpace(resp.Body())) > 0 {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return resp, fmt.Errorf("decoding %s: %w", url, err)
		}
	}
	return resp, nil
}

type listEnvelope[T any] struct {
	Items []T `json:"items"`
}

// getPage fetches one page of a collection. cursor, when set, is the absolute
// URL from the previous page's Link rel="next" header.
func getPage[T any](ctx context.Context, c *Client, path string, query map[string]string, cursor string) ([]T, string, error) {
	url := path
	if cursor != "" {
		url = cursor
		query = nil
	} else if c.pageSize > 0 {
		if query == nil {
			query = map[string]string{}
		}
		query["max"] = strconv.Itoa(c.pageSize)
	}

	var env listEnvelope[T]
	resp, err := c.getJSON(ctx, url, query, &env)
	if err != nil {
		return nil, "", err
	}
	return env.Items, nextLink(resp.Header()), nil
}

// listAll drains a collection.
func listAll[T any](ctx context.Context, c *Client, path string, query map[string]string) ([]T, error) {
	var all []T
	cursor := ""
	for {
		items, next, err := getPage[T](ctx, c, path, copyQuery(query), cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if next == "" || len(items) == 0 {
			return all, nil
		}
		cursor = next
	}
}

func copyQuery(q map[string]string) map[string]string {
	if q == nil {
		return nil
	}
	out := make(map[string]string, len(q))
	for k, v := range q {
		out[k] = v
	}
	return out
}

func nextLink(h http.Header) string {
	for _, raw := range h.Values("Link") {
		for _, l := range linkheader.Parse(raw).FilterByRel("next") {
			if l.URL != "" {
				return l.URL
			}
		}
	}
	return ""
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func retryAfter(h http.Header, now time.Time) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
