package webex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilhicas/webex-partner-ops/internal/retry"
)

type sleepRecorder struct {
	sleeps []time.Duration
}

func (s *sleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	s.sleeps = append(s.sleeps, d)
	return nil
}

func newTestClient(t *testing.T, handler http.Handler, sleeper *sleepRecorder) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Options{
		BaseURL:     srv.URL,
		AccessToken: "token",
		PageSize:    2,
		Retry: retry.Policy{
			MaxAttempts:     3,
			BaseDelay:       time.Second,
			MaxDelay:        4 * time.Second,
			HonorRetryAfter: true,
			Sleep:           sleeper.Sleep,
		},
		Logger: zerolog.Nop(),
	})
}

func TestActivateOrganization(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/organizations/id1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"id":"id1","displayName":"Org One","countryCode":"US"}`)
	})
	mux.HandleFunc("/organizations/id2", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"not a managed customer"}`)
	})
	c := newTestClient(t, mux, &sleepRecorder{})

	org, err := c.ActivateOrganization(context.Background(), "id1")
	require.NoError(t, err)
	assert.Equal(t, "Org One", org.DisplayName)
	assert.Equal(t, "US", org.CountryCode)

	_, err = c.ActivateOrganization(context.Background(), "id2")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "not a managed customer")
}

func TestLicensePagesFollowLinkHeader(t *testing.T) {
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/licenses", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "id1", r.URL.Query().Get("orgId"))
		if r.URL.Query().Get("cursor") == "" {
			assert.Equal(t, "2", r.URL.Query().Get("max"))
			w.Header().Set("Link", fmt.Sprintf(`<%s/licenses?orgId=id1&cursor=p2>; rel="next"`, srvURL))
			fmt.Fprint(w, `{"items":[{"name":"Meetings","totalUnits":10,"consumedUnits":5},{"name":"Calling","totalUnits":3,"consumedUnits":3}]}`)
			return
		}
		fmt.Fprint(w, `{"items":[{"name":"Messaging","totalUnits":1,"consumedUnits":0}]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	c := NewClient(Options{BaseURL: srv.URL, PageSize: 2, Logger: zerolog.Nop()})

	items, next, err := c.LicensePage(context.Background(), "id1", "")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Meetings", items[0].Name)
	assert.Equal(t, srv.URL+"/licenses?orgId=id1&cursor=p2", next)

	items, next, err = c.LicensePage(context.Background(), "id1", next)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Messaging", items[0].Name)
	assert.Empty(t, next)
}

func TestRetriesRateLimitWithRetryAfter(t *testing.T) {
	var calls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "5")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"items":[]}`)
	})
	sleeper := &sleepRecorder{}
	c := newTestClient(t, handler, sleeper)

	_, _, err := c.LocationPage(context.Background(), "id1", "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{5 * time.Second}, sleeper.sleeps)
}

func TestRetriesExhaustOnServerErrors(t *testing.T) {
	var calls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})
	sleeper := &sleepRecorder{}
	c := newTestClient(t, handler, sleeper)

	_, _, err := c.LicensePage(context.Background(), "id1", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.sleeps)
}

func TestSetPSTNConnectionReturnsRejection(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/telephony/pstn/locations/loc1/connection", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"id":"opt1"}`, string(body))
		w.Header().Set("Trackingid", "ROUTER_123")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"message":"New carrier is invalid for location"}`)
	})
	c := newTestClient(t, handler, &sleepRecorder{})
	c.EnableTracking()

	ex, err := c.SetPSTNConnection(context.Background(), "id1", "loc1", "opt1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, ex.StatusCode)
	assert.Equal(t, "ROUTER_123", ex.TrackingID)
	assert.Contains(t, ex.Body, "New carrier is invalid for location")

	calls := c.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "ROUTER_123", calls[0].TrackingID)
	assert.Equal(t, http.StatusBadRequest, calls[0].StatusCode)
}

func TestCreateBillingReportConflict(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})
	c := newTestClient(t, handler, &sleepRecorder{})

	_, err := c.CreateBillingReport(context.Background(), BillingReportRequest{
		BillingStartDate: "2026-09-01",
		BillingEndDate:   "2026-09-30",
		Type:             "CUSTOMER",
	})
	assert.ErrorIs(t, err, ErrReportExists)
}

func TestDownloadOmitsBearerToken(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		fmt.Fprint(w, "a,b\n1,2\n")
	})
	c := newTestClient(t, http.NotFoundHandler(), &sleepRecorder{})
	dl := httptest.NewServer(handler)
	defer dl.Close()

	body, err := c.Download(context.Background(), dl.URL+"/report.csv")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(body))
}

func TestRetryAfterParsing(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	h := http.Header{}
	assert.Zero(t, retryAfter(h, now))

	h.Set("Retry-After", "2.5")
	assert.Equal(t, 2500*time.Millisecond, retryAfter(h, now))

	h.Set("Retry-After", now.Add(30*time.Second).Format(http.TimeFormat))
	assert.Equal(t, 30*time.Second, retryAfter(h, now))
}

func TestRefreshToken(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/access_token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rt-old", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "cid", r.PostForm.Get("client_id"))
		assert.Equal(t, "secret", r.PostForm.Get("client_secret"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"at-new","refresh_token":"rt-new","token_type":"Bearer","expires_in":1209599,"refresh_token_expires_in":7775999}`)
	})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	tok, err := RefreshToken(context.Background(), srv.URL, srv.Client(), Credentials{
		ClientID:     "cid",
		ClientSecret: "secret",
		RefreshToken: "rt-old",
	})
	require.NoError(t, err)
	assert.Equal(t, "at-new", tok.AccessToken)
	assert.Equal(t, "rt-new", tok.RefreshToken)
	assert.Equal(t, float64(7775999), tok.RefreshTokenExpiresIn)
	assert.True(t, tok.Expiry.After(time.Now()))
}

func TestRefreshTokenRequiresCredentials(t *testing.T) {
	_, err := RefreshToken(context.Background(), "", nil, Credentials{ClientID: "cid"})
	assert.Error(t, err)
}
