// Package cli wires configuration, the partner API client and the workflow
// packages together. Each Run* function backs one command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/ilhicas/webex-partner-ops/internal/config"
	"github.com/ilhicas/webex-partner-ops/internal/fetcher"
	"github.com/ilhicas/webex-partner-ops/internal/orgs"
	"github.com/ilhicas/webex-partner-ops/internal/reports"
	"github.com/ilhicas/webex-partner-ops/internal/sinks"
	"github.com/ilhicas/webex-partner-ops/internal/webex"
)

// Env is what every workflow needs from the command layer.
type Env struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
	Now    func() time.Time

	// HTTPClient overrides the transport of the partner API client (tests).
	HTTPClient *http.Client
}

// OrgSource selects the organizations a workflow runs against.
type OrgSource struct {
	File  string
	Flags []string
}

func (e Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Env) out() io.Writer {
	if e.Out != nil {
		return e.Out
	}
	return os.Stdout
}

func (e Env) namer(at time.Time) reports.Namer {
	return reports.NewNamer(e.Config.Output.Dir, at)
}

// newClient builds the partner API client from the configuration.
func (e Env) newClient() *webex.Client {
	w := e.Config.Webex
	return webex.NewClient(webex.Options{
		BaseURL:     w.BaseURL,
		AccessToken: w.AccessToken,
		Timeout:     w.Timeout,
		PageSize:    w.PageSize,
		RateLimit:   w.RateLimit.Calls,
		RatePeriod:  w.RateLimit.Period,
		Retry:       e.Config.Retry.Policy(),
		Logger:      e.Logger,
		HTTPClient:  e.HTTPClient,
	})
}

// loadOrgs reads the organization handles of src. With allowList set and no
// input given, every customer organization visible to the token is used.
func (e Env) loadOrgs(ctx context.Context, client *webex.Client, src OrgSource, allowList bool) ([]fetcher.Organization, error) {
	if src.File != "" || len(src.Flags) > 0 || !allowList {
		entries, err := orgs.Collect(src.File, src.Flags)
		if err != nil {
			return nil, err
		}
		return orgs.Handles(entries), nil
	}

	e.Logger.Info().Msg("no organizations given, listing all customer organizations")
	remote, err := client.ListOrganizations(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing organizations: %w", err)
	}
	if len(remote) == 0 {
		return nil, errors.New("no customer organizations visible to this token")
	}
	out := make([]fetcher.Organization, 0, len(remote))
	for _, o := range remote {
		out = append(out, fetcher.Organization{
			ID:           o.ID,
			CustomerName: o.DisplayName,
			DisplayName:  o.DisplayName,
			Created:      o.Created,
			CountryCode:  o.CountryCode,
		})
	}
	return out, nil
}

// finish prints the console report and publishes the run summary to every
// configured sink. Sink failures are logged only.
func (e Env) finish(ctx context.Context, r *reports.Report, summary sinks.Summary) error {
	r.FinishedAt = e.now()
	summary.FinishedAt = r.FinishedAt

	if err := r.Output(e.out(), e.Config.Output.Format); err != nil {
		return fmt.Errorf("error outputting report: %w", err)
	}
	if len(e.Config.Sinks) > 0 {
		if err := sinks.PublishAll(ctx, e.Config, e.Config.Sinks, summary, e.Logger); err != nil {
			e.Logger.Warn().Err(err).Msg("run summary was not delivered to every sink")
		}
	}
	return nil
}

// start opens the report and the summary of a run.
func (e Env) start(title, workflow string) (*reports.Report, sinks.Summary) {
	at := e.now()
	summary := sinks.NewSummary(workflow, at)
	return reports.NewReport(title, workflow, summary.RunID, at), summary
}

// writeAll runs every write in order, registering each written file on r.
func writeAll(r *reports.Report, writes ...fileWrite) error {
	for _, w := range writes {
		if err := w.write(w.path); err != nil {
			return err
		}
		r.AddFile(w.path)
	}
	return nil
}

type fileWrite struct {
	path  string
	write func(path string) error
}

func jsonFile(path string, v interface{}) fileWrite {
	return fileWrite{path: path, write: func(p string) error { return reports.WriteJSON(p, v) }}
}

func csvFile(path string, header []string, rows [][]string) fileWrite {
	return fileWrite{path: path, write: func(p string) error { return reports.WriteCSV(p, header, rows) }}
}

func recordsFile(path string, records interface{}) fileWrite {
	return fileWrite{path: path, write: func(p string) error { return reports.WriteRecords(p, records) }}
}

func xlsxFile(path string, sheets ...reports.Sheet) fileWrite {
	return fileWrite{path: path, write: func(p string) error { return reports.WriteXLSX(p, sheets...) }}
}
