package transform

import "strconv"

// OverageStatus classifies consumption against entitlement.
type OverageStatus string

const (
	Overused      OverageStatus = "Overused"
	Underutilized OverageStatus = "Underutilized"
	FullyUsed     OverageStatus = "Fully Used"
)

// StatusOf compares consumed units with total units.
func StatusOf(total, consumed int64) OverageStatus {
	switch {
	case consumed > total:
		return Overused
	case consumed < total:
		return Underutilized
	default:
		return FullyUsed
	}
}

// OverageRow is one (organization, license) line of the overage report.
type OverageRow struct {
	OrgName     string
	LicenseName string
	Total       int64
	Consumed    int64
	Status      OverageStatus
	Overage     int64
}

// OverageLabel renders the overage with an explicit sign when positive.
func (r OverageRow) OverageLabel() string {
	if r.Overage > 0 {
		return "+" + strconv.FormatInt(r.Overage, 10)
	}
	return strconv.FormatInt(r.Overage, 10)
}

// OverageHeader is the column set of the overage report.
var OverageHeader = []string{"Org Name", "License Name", "Total Units", "Consumed Units", "Status", "Overages"}

// Strings renders the row in OverageHeader order.
func (r OverageRow) Strings() []string {
	return []string{
		r.OrgName,
		r.LicenseName,
		strconv.FormatInt(r.Total, 10),
		strconv.FormatInt(r.Consumed, 10),
		string(r.Status),
		r.OverageLabel(),
	}
}

// Overages maps each record to an overage line, in input order.
func Overages(records []LicenseRecord) []OverageRow {
	out := make([]OverageRow, 0, len(records))
	for _, r := range records {
		name := r.CustomerName
		if name == "" {
			name = r.OrgID
		}
		out = append(out, OverageRow{
			OrgName:     name,
			LicenseName: r.LicenseName,
			Total:       r.TotalUnits,
			Consumed:    r.ConsumedUnits,
			Status:      StatusOf(r.TotalUnits, r.ConsumedUnits),
			Overage:     r.ConsumedUnits - r.TotalUnits,
		})
	}
	return out
}
