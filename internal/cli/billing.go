package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"

	"github.com/ilhicas/webex-partner-ops/internal/billing"
	"github.com/ilhicas/webex-partner-ops/internal/reports"
	"github.com/ilhicas/webex-partner-ops/internal/transform"
	"github.com/ilhicas/webex-partner-ops/internal/webex"
)

var flaggedHeader = []string{"Row", "Value", "Error"}

// refreshAccessToken swaps the configured access token for a fresh one when
// refresh credentials are available. A failed refresh falls back to the
// configured token.
func (e Env) refreshAccessToken(ctx context.Context, client *webex.Client) {
	w := e.Config.Webex
	creds := webex.Credentials{
		AccessToken:  w.AccessToken,
		ClientID:     w.ClientID,
		ClientSecret: w.ClientSecret,
		RefreshToken: w.RefreshToken,
	}
	if !e.Config.Billing.RefreshToken || !creds.CanRefresh() {
		return
	}
	tok, err := webex.RefreshToken(ctx, w.BaseURL, e.HTTPClient, creds)
	if err != nil {
		e.Logger.Warn().Err(err).Msg("access token refresh failed, using configured token")
		return
	}
	client.SetAccessToken(tok.AccessToken)
	e.Logger.Info().Time("expiry", tok.Expiry).Msg("access token refreshed")
}

// parseExport reads the downloaded wholesale export.
func parseExport(data []byte) ([]string, [][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("error parsing billing export: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, errors.New("billing export is empty")
	}
	return rows[0], rows[1:], nil
}

func flaggedRows(flagged []*transform.RowError) [][]string {
	rows := make([][]string, 0, len(flagged))
	for _, f := range flagged {
		rows = append(rows, []string{strconv.Itoa(f.Row), f.Value, f.Err.Error()})
	}
	return rows
}

// RunBilling makes sure the wholesale billing report of the previous calendar
// month exists, waits for it, downloads it and writes the original export plus
// the export with BILLABLE_UNITS appended.
func RunBilling(ctx context.Context, env Env) error {
	report, summary := env.start("Webex wholesale billing", "billing")
	client := env.newClient()
	env.refreshAccessToken(ctx, client)

	period := billing.PreviousMonth(report.StartedAt)
	ctrl := billing.NewController(client, billing.Options{
		ReportType:   env.Config.Billing.ReportType,
		PollInterval: env.Config.Billing.PollInterval,
		MaxWait:      env.Config.Billing.MaxWait,
		Policy:       env.Config.Retry.Policy(),
		Logger:       env.Logger,
	})

	job, payload, err := ctrl.Run(ctx, period)
	if err != nil {
		summary.Failed = 1
		report.Counts["failed"] = 1
		if job != nil {
			report.AddSection("Report job", []string{"Report ID", "Status", "State"},
				[][]string{{job.ReportID, job.RemoteStatus, string(ctrl.State())}})
		}
		if ferr := env.finish(ctx, report, summary); ferr != nil {
			env.Logger.Error().Err(ferr).Msg("could not output billing report")
		}
		return fmt.Errorf("billing report for %s: %w", period, err)
	}

	header, rows, err := parseExport(payload)
	if err != nil {
		return err
	}
	billable, rowErrs := transform.BillableUsage(header, rows, period.Days())
	if billable == nil {
		return rowErrs
	}
	for _, f := range billable.Flagged {
		env.Logger.Warn().Int("row", f.Row).Str("value", f.Value).Err(f.Err).Msg("row flagged, BILLABLE_UNITS left empty")
	}

	n := env.namer(report.StartedAt)
	base := fmt.Sprintf("%s-Wholesale-Usage_%s", period.Label(), n.Stamp())
	original := n.Path(base + "_ORIGINAL.csv")
	transformed := n.Path(base + ".csv")
	err = writeAll(report,
		fileWrite{path: original, write: func(p string) error { return reports.WriteBytes(p, payload) }},
		csvFile(transformed, billable.Header, billable.Rows),
	)
	if err != nil {
		return fmt.Errorf("error writing billing outputs: %w", err)
	}

	summary.Succeeded = billable.Succeeded
	summary.Flagged = len(billable.Flagged)

	report.Counts["rows"] = len(billable.Rows)
	report.Counts["rows billable"] = billable.Succeeded
	report.Counts["rows flagged"] = summary.Flagged
	report.Counts["days in period"] = period.Days()
	report.AddSection("Report job", []string{"Report ID", "Period", "Status", "Reused"},
		[][]string{{job.ReportID, period.String(), job.RemoteStatus, strconv.FormatBool(job.Reused)}})
	report.AddSection("Flagged rows", flaggedHeader, flaggedRows(billable.Flagged))

	return env.finish(ctx, report, summary)
}
