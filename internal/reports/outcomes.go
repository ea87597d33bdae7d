package reports

import (
	"strconv"

	"github.com/ilhicas/webex-partner-ops/internal/fetcher"
)

// SuccessEntry is one organization of a success list.
type SuccessEntry struct {
	CustomerName string      `json:"customer_name"`
	OrgID        string      `json:"org_id"`
	DisplayName  string      `json:"org_display_name,omitempty"`
	Created      string      `json:"created,omitempty"`
	CountryCode  string      `json:"country_code,omitempty"`
	RecordCount  int         `json:"record_count"`
	Records      interface{} `json:"records,omitempty"`
}

// FailureEntry is one organization of a failure list.
type FailureEntry struct {
	CustomerName string `json:"customer_name"`
	OrgID        string `json:"org_id"`
	Cause        string `json:"cause"`
	StatusCode   int    `json:"status_code,omitempty"`
	Error        string `json:"error"`
	Partial      int    `json:"partial_records,omitempty"`
}

// OrgDetail is one row of the organization details CSV.
type OrgDetail struct {
	CustomerName string `csv:"Customer Name"`
	OrgID        string `csv:"Org ID"`
	DisplayName  string `csv:"Org Display Name"`
	Created      string `csv:"Created"`
	CountryCode  string `csv:"Country Code"`
	RecordCount  int    `csv:"License Count"`
}

// Successes lists succeeded outcomes in input order. With withRecords the
// records themselves are embedded.
func Successes[T any](res *fetcher.Result[T], withRecords bool) []SuccessEntry {
	out := []SuccessEntry{}
	for _, o := range res.Succeeded() {
		e := SuccessEntry{
			CustomerName: o.Org.Name(),
			OrgID:        o.Org.ID,
			DisplayName:  o.Org.DisplayName,
			Created:      o.Org.Created,
			CountryCode:  o.Org.CountryCode,
			RecordCount:  len(o.Records),
		}
		if withRecords {
			e.Records = o.Records
		}
		out = append(out, e)
	}
	return out
}

// Failures lists failed outcomes in input order.
func Failures[T any](res *fetcher.Result[T]) []FailureEntry {
	out := []FailureEntry{}
	for _, o := range res.Failed() {
		e := FailureEntry{
			CustomerName: o.Org.Name(),
			OrgID:        o.Org.ID,
			Cause:        string(o.Cause),
			StatusCode:   o.StatusCode,
			Partial:      len(o.Partial),
		}
		if o.Err != nil {
			e.Error = o.Err.Error()
		}
		out = append(out, e)
	}
	return out
}

// OrgDetails builds the organization details rows of succeeded outcomes.
func OrgDetails[T any](res *fetcher.Result[T]) []OrgDetail {
	out := []OrgDetail{}
	for _, o := range res.Succeeded() {
		out = append(out, OrgDetail{
			CustomerName: o.Org.Name(),
			OrgID:        o.Org.ID,
			DisplayName:  o.Org.DisplayName,
			Created:      o.Org.Created,
			CountryCode:  o.Org.CountryCode,
			RecordCount:  len(o.Records),
		})
	}
	return out
}

// FailureRows renders failures for a console section.
func FailureRows(failures []FailureEntry) [][]string {
	rows := make([][]string, 0, len(failures))
	for _, f := range failures {
		status := ""
		if f.StatusCode != 0 {
			status = strconv.Itoa(f.StatusCode)
		}
		rows = append(rows, []string{f.CustomerName, f.OrgID, f.Cause, status, truncateString(f.Error, 80)})
	}
	return rows
}

// FailureHeader is the console header of FailureRows.
var FailureHeader = []string{"Customer", "Org ID", "Cause", "Status", "Error"}
