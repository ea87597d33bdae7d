package cli

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/ilhicas/webex-partner-ops/internal/fetcher"
	"github.com/ilhicas/webex-partner-ops/internal/reports"
	"github.com/ilhicas/webex-partner-ops/internal/transform"
	"github.com/ilhicas/webex-partner-ops/internal/webex"
)

// licenseRow is one line of the flat license export.
type licenseRow struct {
	CustomerName   string `csv:"customer_name"`
	OrgID          string `csv:"org_id"`
	LicenseID      string `csv:"license_id"`
	LicenseName    string `csv:"license_name"`
	TotalUnits     int64  `csv:"total_units"`
	ConsumedUnits  int64  `csv:"consumed_units"`
	SubscriptionID string `csv:"subscription_id"`
	Status         string `csv:"status"`
	SkuID          string `csv:"sku"`
	OfferID        string `csv:"offer_id"`
	Created        string `csv:"created"`
	Modified       string `csv:"modified"`
}

var violationHeader = []string{"Customer Name", "Org ID", "License", "Total", "Consumed"}

// fetchLicenses runs the fetcher over the license collection of orgs.
func (e Env) fetchLicenses(ctx context.Context, client *webex.Client, orgs []fetcher.Organization) *fetcher.Result[webex.License] {
	f := fetcher.New[webex.License](client, client.LicensePage, fetcher.Options{
		Collection:  "licenses",
		KeepPartial: e.Config.Fetch.KeepPartial,
		Logger:      e.Logger,
	})
	return f.Run(ctx, orgs)
}

// licenseRecords converts the successful outcomes into transform input,
// preserving org order and the API order within each org.
func licenseRecords(res *fetcher.Result[webex.License]) []transform.LicenseRecord {
	var out []transform.LicenseRecord
	for _, o := range res.Succeeded() {
		for _, l := range o.Records {
			out = append(out, transform.LicenseRecord{
				CustomerName:  o.Org.Name(),
				OrgID:         o.Org.ID,
				LicenseName:   l.Name,
				TotalUnits:    l.TotalUnits,
				ConsumedUnits: l.ConsumedUnits,
			})
		}
	}
	return out
}

func flatLicenseRows(res *fetcher.Result[webex.License]) []licenseRow {
	var rows []licenseRow
	for _, o := range res.Succeeded() {
		for _, l := range o.Records {
			rows = append(rows, licenseRow{
				CustomerName:   o.Org.Name(),
				OrgID:          o.Org.ID,
				LicenseID:      l.ID,
				LicenseName:    l.Name,
				TotalUnits:     l.TotalUnits,
				ConsumedUnits:  l.ConsumedUnits,
				SubscriptionID: l.SubscriptionID,
				Status:         l.Status,
				SkuID:          l.SkuID,
				OfferID:        l.OfferID,
				Created:        l.Created,
				Modified:       l.Modified,
			})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.LicenseName != b.LicenseName {
			return a.LicenseName < b.LicenseName
		}
		if a.CustomerName != b.CustomerName {
			return a.CustomerName < b.CustomerName
		}
		return a.OrgID < b.OrgID
	})
	return rows
}

func violationRows(vs []transform.Violation) [][]string {
	rows := make([][]string, 0, len(vs))
	for _, v := range vs {
		rows = append(rows, []string{
			v.CustomerName, v.OrgID, v.LicenseName,
			strconv.FormatInt(v.Total, 10), strconv.FormatInt(v.Consumed, 10),
		})
	}
	return rows
}

// pivotCells keeps the unit counts numeric in the workbook.
func pivotCells(p *transform.PivotedReport) [][]interface{} {
	out := make([][]interface{}, 0, len(p.Rows))
	for _, row := range p.Rows {
		line := make([]interface{}, 0, 2+2*len(row.Cells))
		line = append(line, row.CustomerName, row.OrgID)
		for _, c := range row.Cells {
			line = append(line, c.Total, c.Consumed)
		}
		out = append(out, line)
	}
	return out
}

// RunLicenses fetches the licenses of every organization and writes the flat
// export, the pivoted license report and the per-org success and failure
// lists.
func RunLicenses(ctx context.Context, env Env, src OrgSource) error {
	report, summary := env.start("Webex license report", "licenses")
	client := env.newClient()

	orgs, err := env.loadOrgs(ctx, client, src, false)
	if err != nil {
		return err
	}

	res := env.fetchLicenses(ctx, client, orgs)
	pivot := transform.Pivot(licenseRecords(res))
	for _, v := range pivot.Violations {
		env.Logger.Warn().Str("org_id", v.OrgID).Str("license", v.LicenseName).
			Int64("total", v.Total).Int64("consumed", v.Consumed).
			Msg("consumed units exceed total units")
	}

	failures := reports.Failures(res)
	n := env.namer(report.StartedAt)
	pivotSheet := reports.Sheet{
		Name:       "License Report",
		Header:     pivot.Header(),
		Rows:       pivotCells(pivot),
		BoldHeader: true,
	}
	err = writeAll(report,
		recordsFile(n.Timestamped("webex_licenses", "csv"), flatLicenseRows(res)),
		xlsxFile(n.Timestamped("LICENSE_REPORT", "xlsx"), pivotSheet),
		csvFile(n.Timestamped("LICENSE_REPORT", "csv"), pivot.Header(), pivot.Table()),
		jsonFile(n.Timestamped("webex_licenses_success", "json"), reports.Successes(res, true)),
		jsonFile(n.Timestamped("webex_licenses_failures", "json"), failures),
		recordsFile(n.Timestamped("webex_org_details", "csv"), reports.OrgDetails(res)),
	)
	if err != nil {
		return fmt.Errorf("error writing license outputs: %w", err)
	}

	summary.Succeeded = len(res.Succeeded())
	summary.Failed = len(failures)
	summary.Flagged = len(pivot.Violations)

	report.Counts["orgs succeeded"] = summary.Succeeded
	report.Counts["orgs failed"] = summary.Failed
	report.Counts["license types"] = len(pivot.Licenses)
	report.Counts["violations"] = summary.Flagged
	report.AddSection("Failed organizations", reports.FailureHeader, reports.FailureRows(failures))
	report.AddSection("Consumed exceeds total", violationHeader, violationRows(pivot.Violations))

	return env.finish(ctx, report, summary)
}
