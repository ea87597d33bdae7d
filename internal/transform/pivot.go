package transform

import (
	"strconv"
)

// LicenseRecord is one license line of one organization.
type LicenseRecord struct {
	CustomerName  string `json:"customer_name"`
	OrgID         string `json:"org_id"`
	LicenseName   string `json:"license_name"`
	TotalUnits    int64  `json:"total_units"`
	ConsumedUnits int64  `json:"consumed_units"`
}

// Cell holds the pair of values under one license for one organization.
// Present is false when the organization had no record for that license; the
// values are then zero.
type Cell struct {
	Total    int64
	Consumed int64
	Present  bool
}

// PivotRow is one organization. Cells align with PivotedReport.Licenses.
type PivotRow struct {
	CustomerName string
	OrgID        string
	Cells        []Cell
}

// Violation is a license where consumption exceeds the entitlement.
type Violation struct {
	CustomerName string
	OrgID        string
	LicenseName  string
	Total        int64
	Consumed     int64
}

// PivotedReport is the wide license table.
type PivotedReport struct {
	Licenses   []string
	Rows       []PivotRow
	Violations []Violation
}

type orgKey struct {
	customer string
	org      string
}

// Pivot builds one row per (customer, org) with a (total)/(consumed) column
// pair for every license name seen anywhere in records. Licenses and rows keep
// first-seen order. A repeated (org, license) record replaces the earlier one.
func Pivot(records []LicenseRecord) *PivotedReport {
	licenseIdx := map[string]int{}
	var licenses []string
	for _, r := range records {
		if _, ok := licenseIdx[r.LicenseName]; !ok {
			licenseIdx[r.LicenseName] = len(licenses)
			licenses = append(licenses, r.LicenseName)
		}
	}

	rowIdx := map[orgKey]int{}
	var rows []PivotRow
	for _, r := range records {
		k := orgKey{r.CustomerName, r.OrgID}
		i, ok := rowIdx[k]
		if !ok {
			i = len(rows)
			rowIdx[k] = i
			rows = append(rows, PivotRow{
				CustomerName: r.CustomerName,
				OrgID:        r.OrgID,
				Cells:        make([]Cell, len(licenses)),
			})
		}
		rows[i].Cells[licenseIdx[r.LicenseName]] = Cell{
			Total:    r.TotalUnits,
			Consumed: r.ConsumedUnits,
			Present:  true,
		}
	}

	report := &PivotedReport{Licenses: licenses, Rows: rows}
	for _, row := range rows {
		for j, c := range row.Cells {
			if c.Present && c.Consumed > c.Total {
				report.Violations = append(report.Violations, Violation{
					CustomerName: row.CustomerName,
					OrgID:        row.OrgID,
					LicenseName:  licenses[j],
					Total:        c.Total,
					Consumed:     c.Consumed,
				})
			}
		}
	}
	return report
}

// Header returns customer_name, org_id, then "<license> (total)" and
// "<license> (consumed)" for each license.
func (p *PivotedReport) Header() []string {
	h := make([]string, 0, 2+2*len(p.Licenses))
	h = append(h, "customer_name", "org_id")
	for _, l := range p.Licenses {
		h = append(h, l+" (total)", l+" (consumed)")
	}
	return h
}

// Table renders the report as string rows matching Header. Absent cells are
// written as zero.
func (p *PivotedReport) Table() [][]string {
	out := make([][]string, 0, len(p.Rows))
	for _, row := range p.Rows {
		line := make([]string, 0, 2+2*len(row.Cells))
		line = append(line, row.CustomerName, row.OrgID)
		for _, c := range row.Cells {
			line = append(line, strconv.FormatInt(c.Total, 10), strconv.FormatInt(c.Consumed, 10))
		}
		out = append(out, line)
	}
	return out
}

// Flatten is the inverse of Pivot: it yields one record per present cell.
func Flatten(p *PivotedReport) []LicenseRecord {
	var out []LicenseRecord
	for _, row := range p.Rows {
		for j, c := range row.Cells {
			if !c.Present {
				continue
			}
			out = append(out, LicenseRecord{
				CustomerName:  row.CustomerName,
				OrgID:         row.OrgID,
				LicenseName:   p.Licenses[j],
				TotalUnits:    c.Total,
				ConsumedUnits: c.Consumed,
			})
		}
	}
	return out
}
