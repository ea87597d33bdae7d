package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ilhicas/webex-partner-ops/internal/fetcher"
	"github.com/ilhicas/webex-partner-ops/internal/pstn"
	"github.com/ilhicas/webex-partner-ops/internal/reports"
	"github.com/ilhicas/webex-partner-ops/internal/webex"
)

// FlipOptions override the configured flip settings.
type FlipOptions struct {
	OptionIDs []string
	DryRun    bool
}

func (e Env) pstnService(client *webex.Client, flip FlipOptions) *pstn.Service {
	ids := flip.OptionIDs
	if len(ids) == 0 {
		ids = e.Config.PSTN.OptionIDs
	}
	return pstn.NewService(client, pstn.Options{
		KeepPartial:     e.Config.Fetch.KeepPartial,
		ProviderKeyword: e.Config.PSTN.ProviderKeyword,
		OptionIDs:       ids,
		DryRun:          flip.DryRun,
		Logger:          e.Logger,
	})
}

// pstnSetup builds a tracking client and resolves the organizations. Without
// explicit organizations every customer organization is used.
func (e Env) pstnSetup(ctx context.Context, src OrgSource) (*webex.Client, []fetcher.Organization, error) {
	client := e.newClient()
	client.EnableTracking()
	orgList, err := e.loadOrgs(ctx, client, src, true)
	if err != nil {
		return nil, nil, err
	}
	return client, orgList, nil
}

// RunPSTNAudit records the PSTN connection of every location.
func RunPSTNAudit(ctx context.Context, env Env, src OrgSource) error {
	report, summary := env.start("PSTN connection audit", "pstn-audit")
	client, orgList, err := env.pstnSetup(ctx, src)
	if err != nil {
		return err
	}

	res := env.pstnService(client, FlipOptions{}).Audit(ctx, orgList)

	n := env.namer(report.StartedAt)
	err = writeAll(report,
		jsonFile(n.Timestamped("PSTNConnections", "json"), res.ByOrg),
		recordsFile(n.Timestamped("pstn_audit_flat", "csv"), res.Rows),
		jsonFile(n.Timestamped("API_TrackingLog", "json"), client.Calls()),
		jsonFile(n.Timestamped("pstn_success", "json"), res.Succeeded),
		jsonFile(n.Timestamped("pstn_failures", "json"), res.Failures),
	)
	if err != nil {
		return fmt.Errorf("error writing PSTN audit outputs: %w", err)
	}

	byType := map[string]int{}
	var locationErrors [][]string
	for _, row := range res.Rows {
		if row.Error != "" {
			locationErrors = append(locationErrors, []string{row.CustomerName, row.OrgID, row.LocationName, row.Error})
			continue
		}
		byType[row.ConnectionType]++
	}

	summary.Succeeded = len(res.Succeeded)
	summary.Failed = len(res.Failures)
	summary.Flagged = len(locationErrors)

	report.Counts["orgs succeeded"] = summary.Succeeded
	report.Counts["orgs failed"] = summary.Failed
	report.Counts["locations"] = len(res.Rows)
	for t, c := range byType {
		if t == "" {
			t = "unknown"
		}
		report.Counts["type "+t] += c
	}
	report.AddSection("Failed organizations", reports.FailureHeader, reports.FailureRows(res.Failures))
	report.AddSection("Location errors", []string{"Customer Name", "Org ID", "Location", "Error"}, locationErrors)

	return env.finish(ctx, report, summary)
}

// RunPSTNDiscover lists the connection options of every location that match
// the configured provider keyword.
func RunPSTNDiscover(ctx context.Context, env Env, src OrgSource) error {
	report, summary := env.start("PSTN provider discovery", "pstn-discover")
	client, orgList, err := env.pstnSetup(ctx, src)
	if err != nil {
		return err
	}

	res := env.pstnService(client, FlipOptions{}).Discover(ctx, orgList)

	n := env.namer(report.StartedAt)
	err = writeAll(report,
		jsonFile(n.Path("all_provider_matches.json"), res.Matches),
		jsonFile(n.Path("errors.json"), res.Errors),
		jsonFile(n.Timestamped("API_TrackingLog", "json"), client.Calls()),
	)
	if err != nil {
		return fmt.Errorf("error writing PSTN discovery outputs: %w", err)
	}

	matchRows := make([][]string, 0, len(res.Matches))
	for _, m := range res.Matches {
		ids := make([]string, 0, len(m.Matches))
		for _, o := range m.Matches {
			ids = append(ids, o.ID+" ("+o.DisplayName+")")
		}
		matchRows = append(matchRows, []string{m.OrgID, m.LocationName, strings.Join(ids, ", ")})
	}
	errorRows := make([][]string, 0, len(res.Errors))
	for _, e := range res.Errors {
		errorRows = append(errorRows, []string{e.OrgID, e.LocationName, e.Error})
	}

	summary.Succeeded = len(res.Matches)
	summary.Failed = len(res.Errors)

	report.Counts["orgs"] = len(res.Locations)
	report.Counts["locations matched"] = len(res.Matches)
	report.Counts["errors"] = len(res.Errors)
	report.AddSection("Matching options", []string{"Org ID", "Location", "Options"}, matchRows)
	report.AddSection("Errors", []string{"Org ID", "Location", "Error"}, errorRows)

	return env.finish(ctx, report, summary)
}

// RunPSTNFlip moves every location to the first accepted connection option.
func RunPSTNFlip(ctx context.Context, env Env, src OrgSource, opts FlipOptions) error {
	title := "PSTN connection flip"
	if opts.DryRun {
		title += " (dry run)"
	}
	report, summary := env.start(title, "pstn-flip")
	client, orgList, err := env.pstnSetup(ctx, src)
	if err != nil {
		return err
	}

	res, err := env.pstnService(client, opts).Flip(ctx, orgList)
	if err != nil {
		return err
	}

	n := env.namer(report.StartedAt)
	err = writeAll(report,
		jsonFile(n.Timestamped("pstn_flip_results", "json"), res.Attempts),
		jsonFile(n.Timestamped("API_TrackingLog", "json"), client.Calls()),
		jsonFile(n.Timestamped("pstn_flip_failures", "json"), res.Failures),
	)
	if err != nil {
		return fmt.Errorf("error writing PSTN flip outputs: %w", err)
	}

	attempts := make([][]string, 0, len(res.Attempts))
	for _, a := range res.Attempts {
		status := ""
		if a.StatusCode != 0 {
			status = strconv.Itoa(a.StatusCode)
		}
		option := a.OptionID
		if a.DryRun {
			option = strings.Join(a.Candidates, ", ")
		}
		attempts = append(attempts, []string{a.OrgID, a.LocationName, option, status, a.Error})
	}

	summary.Succeeded = res.Flipped
	summary.Failed = len(res.Failures)
	summary.Flagged = res.Unchanged

	report.Counts["locations flipped"] = res.Flipped
	report.Counts["locations unchanged"] = res.Unchanged
	report.Counts["orgs failed"] = len(res.Failures)
	report.AddSection("Attempts", []string{"Org ID", "Location", "Option", "Status", "Error"}, attempts)
	report.AddSection("Failed organizations", reports.FailureHeader, reports.FailureRows(res.Failures))

	return env.finish(ctx, report, summary)
}
