// Package tokens refreshes the OAuth access tokens of many integrations kept
// in a single master file.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	json "github.com/goccy/go-json"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/ilhicas/webex-partner-ops/internal/reports"
	"github.com/ilhicas/webex-partner-ops/internal/webex"
)

// Refresh outcomes recorded on each entry.
const (
	StatusSuccess = "success"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
	StatusError   = "error"
)

const stampLayout = "01_02_06_15_04"

// Entry is one integration of the master file. Keys other than the ones read
// here are preserved as they are.
type Entry map[string]interface{}

func (e Entry) str(key string) string {
	if v, ok := e[key].(string); ok {
		return v
	}
	return ""
}

// Credentials extracts the refresh credentials.
func (e Entry) Credentials() webex.Credentials {
	return webex.Credentials{
		AccessToken:  e.str("access_token"),
		ClientID:     e.str("client_id"),
		ClientSecret: e.str("client_secret"),
		RefreshToken: e.str("refresh_token"),
	}
}

// Status is the outcome of the last refresh.
func (e Entry) Status() string { return e.str("status") }

// Master maps an organization key to its integration.
type Master map[string]Entry

// LogEntry records the refresh of one key.
type LogEntry struct {
	Org       string      `json:"org"`
	Timestamp string      `json:"timestamp"`
	Status    string      `json:"status"`
	Error     *string     `json:"error"`
	Response  interface{} `json:"response"`
}

// Refresher performs one refresh grant.
type Refresher func(ctx context.Context, creds webex.Credentials) (webex.RefreshedToken, error)

// Options locate the files of a refresh run.
type Options struct {
	MasterFile string
	BackupDir  string
	LogDir     string
	Now        func() time.Time
	Logger     zerolog.Logger
}

// Result summarises a refresh run.
type Result struct {
	Refreshed  int
	Skipped    int
	Failed     int
	BackupPath string
	LogPath    string
	Log        []LogEntry
}

// Load reads a master file.
func Load(path string) (Master, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading token master file: %w", err)
	}
	var m Master
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding token master file %s: %w", path, err)
	}
	return m, nil
}

// Run refreshes every entry of the master file in key order, writes a dated
// backup, overwrites the master file and writes the refresh log. Entries
// lacking credentials are skipped. Individual refresh failures do not stop
// the run; they are returned together as a *multierror.Error after all files
// are written.
func Run(ctx context.Context, opts Options, refresh Refresher) (*Result, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log := opts.Logger.With().Str("component", "tokens").Logger()

	master, err := Load(opts.MasterFile)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(master))
	for k := range master {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	res := &Result{}
	var failures *multierror.Error
	for _, key := range keys {
		entry := master[key]
		if entry == nil {
			entry = Entry{}
			master[key] = entry
		}
		le := LogEntry{Org: key, Timestamp: now().Format(time.RFC3339)}

		creds := entry.Credentials()
		if !creds.CanRefresh() {
			msg := "Missing client_id, client_secret, or refresh_token"
			entry["status"], entry["error"] = StatusSkipped, msg
			le.Status, le.Error = StatusSkipped, &msg
			res.Skipped++
			res.Log = append(res.Log, le)
			log.Warn().Str("org", key).Msg("skipping entry without credentials")
			continue
		}

		tok, err := refresh(ctx, creds)
		if err != nil {
			status, msg, body := describe(err)
			entry["status"], entry["error"] = status, msg
			le.Status, le.Error, le.Response = status, &msg, body
			res.Failed++
			res.Log = append(res.Log, le)
			failures = multierror.Append(failures, fmt.Errorf("%s: %w", key, err))
			log.Error().Err(err).Str("org", key).Msg("token refresh failed")
			continue
		}

		entry["access_token"] = tok.AccessToken
		entry["refresh_token"] = tok.RefreshToken
		entry["status"] = StatusSuccess
		entry["error"] = nil
		le.Status, le.Response = StatusSuccess, tok
		res.Refreshed++
		res.Log = append(res.Log, le)
		log.Info().Str("org", key).Time("expiry", tok.Expiry).Msg("token refreshed")
	}

	stamp := now().Format(stampLayout)
	res.BackupPath = filepath.Join(opts.BackupDir, fmt.Sprintf("tokens_%s.json", stamp))
	res.LogPath = filepath.Join(opts.LogDir, fmt.Sprintf("logs_%s.json", stamp))

	if err := reports.WriteJSON(res.BackupPath, master); err != nil {
		return res, err
	}
	if err := reports.WriteJSON(opts.MasterFile, master); err != nil {
		return res, err
	}
	if err := reports.WriteJSON(res.LogPath, res.Log); err != nil {
		return res, err
	}

	log.Info().Int("refreshed", res.Refreshed).Int("skipped", res.Skipped).Int("failed", res.Failed).Msg("token refresh complete")
	return res, failures.ErrorOrNil()
}

// describe maps a refresh error onto the recorded status, message and body.
// A token endpoint rejection is "failed"; a transport problem is "error".
func describe(err error) (string, string, interface{}) {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil {
		body := string(rerr.Body)
		return StatusFailed, fmt.Sprintf("HTTP %d: %s", rerr.Response.StatusCode, body), body
	}
	return StatusError, err.Error(), nil
}
