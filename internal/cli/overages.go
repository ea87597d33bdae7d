package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/ilhicas/webex-partner-ops/internal/orgs"
	"github.com/ilhicas/webex-partner-ops/internal/reports"
	"github.com/ilhicas/webex-partner-ops/internal/transform"
)

// RunOveragesClean repairs a raw overages export. An empty output path gets
// the timestamped cleaned_overages name under the output directory. It
// returns the written path.
func RunOveragesClean(env Env, input, output string) (string, error) {
	in, err := os.Open(input)
	if err != nil {
		return "", fmt.Errorf("error opening raw overages file: %w", err)
	}
	defer in.Close()

	var buf bytes.Buffer
	rows, err := orgs.Clean(in, &buf)
	if err != nil {
		return "", err
	}

	if output == "" {
		output = env.namer(env.now()).CleanedOverages()
	}
	if err := reports.WriteBytes(output, buf.Bytes()); err != nil {
		return "", err
	}
	env.Logger.Info().Str("input", input).Str("output", output).Int("rows", rows).Msg("overages file cleaned")
	return output, nil
}

func overageCells(rows []transform.OverageRow) [][]interface{} {
	out := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		out = append(out, []interface{}{r.OrgName, r.LicenseName, r.Total, r.Consumed, string(r.Status), r.OverageLabel()})
	}
	return out
}

// RunOveragesReport fetches licenses and writes one row per organization and
// license with its usage status, highlighting overused and underutilized rows.
func RunOveragesReport(ctx context.Context, env Env, src OrgSource) error {
	report, summary := env.start("Webex license overages", "overages")
	client := env.newClient()

	orgList, err := env.loadOrgs(ctx, client, src, false)
	if err != nil {
		return err
	}

	res := env.fetchLicenses(ctx, client, orgList)
	rows := transform.Overages(licenseRecords(res))

	var overused [][]string
	counts := map[transform.OverageStatus]int{}
	for _, r := range rows {
		counts[r.Status]++
		if r.Status == transform.Overused {
			overused = append(overused, r.Strings())
		}
	}

	failures := reports.Failures(res)
	n := env.namer(report.StartedAt)
	err = writeAll(report,
		xlsxFile(n.Timestamped("Webex_License_Overages", "xlsx"), reports.Sheet{
			Name:       "Overages",
			Header:     transform.OverageHeader,
			Rows:       overageCells(rows),
			BoldHeader: true,
			Rules:      reports.OverageRules,
		}),
		jsonFile(n.Timestamped("webex_overages_failures", "json"), failures),
	)
	if err != nil {
		return fmt.Errorf("error writing overage outputs: %w", err)
	}

	summary.Succeeded = len(res.Succeeded())
	summary.Failed = len(failures)
	summary.Flagged = counts[transform.Overused]

	report.Counts["orgs succeeded"] = summary.Succeeded
	report.Counts["orgs failed"] = summary.Failed
	report.Counts[string(transform.Overused)] = counts[transform.Overused]
	report.Counts[string(transform.Underutilized)] = counts[transform.Underutilized]
	report.Counts[string(transform.FullyUsed)] = counts[transform.FullyUsed]
	report.AddSection("Overused licenses", transform.OverageHeader, overused)
	report.AddSection("Failed organizations", reports.FailureHeader, reports.FailureRows(failures))

	return env.finish(ctx, report, summary)
}
