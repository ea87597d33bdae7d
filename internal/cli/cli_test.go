package cli

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ilhicas/webex-partner-ops/internal/config"
	"github.com/ilhicas/webex-partner-ops/internal/orgs"
	"github.com/ilhicas/webex-partner-ops/internal/transform"
)

var runAt = time.Date(2026, 10, 17, 14, 30, 5, 0, time.UTC)

func testEnv(t *testing.T, srv *httptest.Server, out *bytes.Buffer) Env {
	t.Helper()
	cfg := &config.Config{
		Webex: config.WebexConfig{AccessToken: "token", PageSize: 100},
		Retry: config.RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		Billing: config.BillingConfig{
			PollInterval: time.Millisecond,
			MaxWait:      time.Second,
			ReportType:   "CUSTOMER",
		},
		Output: config.OutputConfig{Dir: t.TempDir(), Format: "table"},
		Sinks:  []string{"log"},
	}
	env := Env{Config: cfg, Logger: zerolog.Nop(), Out: out, Now: func() time.Time { return runAt }}
	if srv != nil {
		cfg.Webex.BaseURL = srv.URL
		env.HTTPClient = srv.Client()
	}
	return env
}

func glob(t *testing.T, dir, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	require.NoError(t, err)
	require.Len(t, matches, 1, pattern)
	return matches[0]
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func licenseAPI() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/organizations/o1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"o1","displayName":"Acme Display","countryCode":"PT"}`)
	})
	mux.HandleFunc("/organizations/o2", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"forbidden"}`)
	})
	mux.HandleFunc("/licenses", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("orgId") != "o1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"items":[
			{"id":"l1","name":"Meetings","totalUnits":10,"consumedUnits":12},
			{"id":"l2","name":"Calling","totalUnits":5,"consumedUnits":3}
		]}`)
	})
	return mux
}

func TestRunLicenses(t *testing.T) {
	srv := httptest.NewServer(licenseAPI())
	defer srv.Close()

	var out bytes.Buffer
	env := testEnv(t, srv, &out)
	dir := env.Config.Output.Dir

	err := RunLicenses(context.Background(), env, OrgSource{Flags: []string{"o1=Acme", "o2=Globex"}})
	require.NoError(t, err)

	flat := readFile(t, glob(t, dir, "webex_licenses_2026-10-17_14-30-05.csv"))
	lines := strings.Split(strings.TrimSpace(flat), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "customer_name,org_id,license_id,license_name,total_units,consumed_units"))
	assert.True(t, strings.HasPrefix(lines[1], "Acme,o1,l2,Calling,5,3"))
	assert.True(t, strings.HasPrefix(lines[2], "Acme,o1,l1,Meetings,10,12"))

	pivot := readFile(t, glob(t, dir, "LICENSE_REPORT_*.csv"))
	assert.Equal(t, "customer_name,org_id,Meetings (total),Meetings (consumed),Calling (total),Calling (consumed)\nAcme,o1,10,12,5,3\n", pivot)

	book, err := excelize.OpenFile(glob(t, dir, "LICENSE_REPORT_*.xlsx"))
	require.NoError(t, err)
	defer book.Close()
	total, err := book.GetCellValue("License Report", "C2")
	require.NoError(t, err)
	assert.Equal(t, "10", total)
	cellType, err := book.GetCellType("License Report", "C2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, cellType)
	assert.NotEqual(t, excelize.CellTypeInlineString, cellType)
	glob(t, dir, "webex_org_details_*.csv")
	assert.Contains(t, readFile(t, glob(t, dir, "webex_licenses_failures_*.json")), `"activation_error"`)
	assert.Contains(t, readFile(t, glob(t, dir, "webex_licenses_success_*.json")), `"Acme Display"`)

	assert.Contains(t, out.String(), "Globex")
	assert.Contains(t, out.String(), "Consumed exceeds total")
}

func TestRunLicensesRequiresOrganizations(t *testing.T) {
	env := testEnv(t, nil, &bytes.Buffer{})
	assert.Error(t, RunLicenses(context.Background(), env, OrgSource{}))
}

func TestRunOveragesReport(t *testing.T) {
	srv := httptest.NewServer(licenseAPI())
	defer srv.Close()

	var out bytes.Buffer
	env := testEnv(t, srv, &out)

	require.NoError(t, RunOveragesReport(context.Background(), env, OrgSource{Flags: []string{"o1=Acme"}}))
	glob(t, env.Config.Output.Dir, "Webex_License_Overages_*.xlsx")
	assert.Contains(t, out.String(), "+2")
}

func TestRunOveragesClean(t *testing.T) {
	env := testEnv(t, nil, &bytes.Buffer{})
	input := filepath.Join(t.TempDir(), "raw.csv")
	require.NoError(t, os.WriteFile(input, []byte("Customer Name,Customer Org ID,Sub,Units,Used,Over\nAcme, Inc,org-1,s,10,12,2\n"), 0o644))

	path, err := RunOveragesClean(env, input, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(env.Config.Output.Dir, "cleaned_overages_October_17_14-30.csv"), path)

	entries, err := orgs.LoadFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, orgs.Entry{CustomerName: "Acme Inc", OrgID: "org-1"}, entries[0])
}

func TestRunBilling(t *testing.T) {
	var srvURL string
	created := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/wholesale/billing/reports", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			created++
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, `{"items":[{"id":"r1","billingStartDate":"2026-09-01","billingEndDate":"2026-09-30",
			"status":"COMPLETED","created":"2026-10-01T08:00:00Z","tempDownloadURL":"%s/download/r1"}]}`, srvURL)
	})
	mux.HandleFunc("/download/r1", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		fmt.Fprint(w, "a,b,c,d,e0,e1,e2,e3,e4,e5,USAGE\nx,x,x,x,1,2,3,4,5,6,100\nx,x,x,x,1,2,3,4,5,6,n/a\n")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	var out bytes.Buffer
	env := testEnv(t, srv, &out)
	dir := env.Config.Output.Dir

	require.NoError(t, RunBilling(context.Background(), env))
	assert.Zero(t, created)

	original := readFile(t, glob(t, dir, "September-2026-Wholesale-Usage_2026-10-17_14-30-05_ORIGINAL.csv"))
	assert.Contains(t, original, "x,x,x,x,1,2,3,4,5,6,100")

	transformed := readFile(t, filepath.Join(dir, "September-2026-Wholesale-Usage_2026-10-17_14-30-05.csv"))
	assert.Equal(t, "e0,e1,e2,e3,e4,e5,USAGE,BILLABLE_UNITS\n1,2,3,4,5,6,100,4\n1,2,3,4,5,6,n/a,\n", transformed)

	assert.Contains(t, out.String(), "r1")
	assert.Contains(t, out.String(), "Flagged rows")
}

func TestRunBillingCreateFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/wholesale/billing/reports", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"message":"bad period"}`)
			return
		}
		fmt.Fprint(w, `{"items":[]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var out bytes.Buffer
	env := testEnv(t, srv, &out)
	err := RunBilling(context.Background(), env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2026-09-01")
	assert.Contains(t, out.String(), "failed")
}

func TestRunPSTNAuditListsOrganizationsWhenNoneGiven(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/organizations", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items":[{"id":"o1","displayName":"Acme"}]}`)
	})
	mux.HandleFunc("/organizations/o1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"o1","displayName":"Acme"}`)
	})
	mux.HandleFunc("/locations", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items":[{"id":"l1","name":"HQ"}]}`)
	})
	mux.HandleFunc("/telephony/pstn/locations/l1/connection", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Trackingid", "trk-1")
		fmt.Fprint(w, `{"pstnConnectionType":"LOCAL_GATEWAY","id":"p1","displayName":"Veracity"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var out bytes.Buffer
	env := testEnv(t, srv, &out)
	dir := env.Config.Output.Dir

	require.NoError(t, RunPSTNAudit(context.Background(), env, OrgSource{}))

	flat := readFile(t, glob(t, dir, "pstn_audit_flat_*.csv"))
	assert.Contains(t, flat, "Acme,o1,l1,HQ,LOCAL_GATEWAY,p1,Veracity")
	assert.Contains(t, readFile(t, glob(t, dir, "API_TrackingLog_*.json")), "trk-1")
	glob(t, dir, "PSTNConnections_*.json")
	assert.Contains(t, out.String(), "LOCAL_GATEWAY")
}

func TestRunPSTNFlipDryRun(t *testing.T) {
	puts := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/organizations/o1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"o1","displayName":"Acme"}`)
	})
	mux.HandleFunc("/locations", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items":[{"id":"l1","name":"HQ"}]}`)
	})
	mux.HandleFunc("/telephony/pstn/locations/l1/connection", func(w http.ResponseWriter, r *http.Request) {
		puts++
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var out bytes.Buffer
	env := testEnv(t, srv, &out)
	err := RunPSTNFlip(context.Background(), env, OrgSource{Flags: []string{"o1"}}, FlipOptions{OptionIDs: []string{"opt1", "opt2"}, DryRun: true})
	require.NoError(t, err)
	assert.Zero(t, puts)
	assert.Contains(t, out.String(), "opt1, opt2")
}

func TestRunTokens(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	env := testEnv(t, nil, &out)
	env.Config.Tokens = config.TokensConfig{
		MasterFile: filepath.Join(dir, "tokens_master.json"),
		BackupDir:  filepath.Join(dir, "access_tokens"),
		LogDir:     filepath.Join(dir, "token_logs"),
	}
	require.NoError(t, os.WriteFile(env.Config.Tokens.MasterFile, []byte(`{"acme":{"client_id":"c"}}`), 0o644))

	require.NoError(t, RunTokens(context.Background(), env))
	glob(t, env.Config.Tokens.BackupDir, "tokens_10_17_26_14_30.json")
	assert.Contains(t, out.String(), "skipped")
}

func TestPivotCellsAreNumeric(t *testing.T) {
	p := transform.Pivot([]transform.LicenseRecord{
		{CustomerName: "Acme", OrgID: "o1", LicenseName: "Meetings", TotalUnits: 10, ConsumedUnits: 4},
	})
	rows := pivotCells(p)
	require.Len(t, rows, 1)
	assert.Equal(t, []interface{}{"Acme", "o1", int64(10), int64(4)}, rows[0])
}
