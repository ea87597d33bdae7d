package reports

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ilhicas/webex-partner-ops/internal/fetcher"
	"github.com/ilhicas/webex-partner-ops/internal/webex"
)

var runAt = time.Date(2026, 10, 17, 14, 30, 5, 0, time.UTC)

func TestNamer(t *testing.T) {
	n := NewNamer("out", runAt)
	assert.Equal(t, filepath.Join("out", "LICENSE_REPORT_2026-10-17_14-30-05.xlsx"), n.Timestamped("LICENSE_REPORT", "xlsx"))
	assert.Equal(t, filepath.Join("out", "cleaned_overages_October_17_14-30.csv"), n.CleanedOverages())
	assert.Equal(t, "x.json", NewNamer("", runAt).Path("x.json"))
}

func TestWriteJSONAndCSV(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "nested", "doc.json")
	require.NoError(t, WriteJSON(jsonPath, []FailureEntry{{OrgID: "id1", Cause: "activation_error", Error: "boom"}}))
	var back []FailureEntry
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "activation_error", back[0].Cause)

	csvPath := filepath.Join(dir, "flat.csv")
	require.NoError(t, WriteCSV(csvPath, []string{"a", "b"}, [][]string{{"1", "x,y"}}))
	data, err = os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,\"x,y\"\n", string(data))

	recPath := filepath.Join(dir, "orgs.csv")
	require.NoError(t, WriteRecords(recPath, []OrgDetail{{CustomerName: "OrgB", OrgID: "id2", RecordCount: 1}}))
	data, err = os.ReadFile(recPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Customer Name,Org ID,Org Display Name,Created,Country Code,License Count\n")
	assert.Contains(t, string(data), "OrgB,id2,,,,1\n")
}

func TestWriteXLSXHighlightsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overages.xlsx")
	rows := [][]interface{}{
		{"Acme", "Meetings", 10, 12, "Overused", "+2"},
		{"Acme", "Calling", 10, 4, "Underutilized", "-6"},
		{"Acme", "Messaging", 5, 5, "Fully Used", "0"},
		{"Globex", "Meetings", 1, 3, "Overused", "+2"},
	}
	require.NoError(t, WriteXLSX(path, Sheet{
		Name:       "Overages",
		Header:     []string{"Org Name", "License Name", "Total Units", "Consumed Units", "Status", "Overages"},
		Rows:       rows,
		BoldHeader: true,
		Rules:      OverageRules,
	}))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows("Overages")
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, []string{"Acme", "Meetings", "10", "12", "Overused", "+2"}, got[1])

	style := func(cell string) int {
		s, err := f.GetCellStyle("Overages", cell)
		require.NoError(t, err)
		return s
	}
	assert.NotZero(t, style("A1"))
	assert.NotZero(t, style("A2"))
	assert.Equal(t, style("A2"), style("F5"))
	assert.NotEqual(t, style("A2"), style("A3"))
	assert.Zero(t, style("A4"))
}

func TestMatchRule(t *testing.T) {
	header := []string{"Name", "Status"}
	assert.Equal(t, FillOverused, matchRule(header, []interface{}{"x", "Overused"}, OverageRules))
	assert.Equal(t, FillUnderutilized, matchRule(header, []interface{}{"x", "Underutilized"}, OverageRules))
	assert.Equal(t, "", matchRule(header, []interface{}{"x", "Fully Used"}, OverageRules))
	assert.Equal(t, "", matchRule(header, []interface{}{"x"}, OverageRules))
}

type stubActivator map[string]error

func (s stubActivator) ActivateOrganization(_ context.Context, orgID string) (webex.Organization, error) {
	if err := s[orgID]; err != nil {
		return webex.Organization{}, err
	}
	return webex.Organization{ID: orgID, DisplayName: "Display " + orgID}, nil
}

func TestSuccessesAndFailures(t *testing.T) {
	f := fetcher.New[string](
		stubActivator{"id1": &webex.APIError{StatusCode: 404, Body: "not found"}},
		func(_ context.Context, orgID, cursor string) ([]string, string, error) {
			return []string{"Meetings"}, "", nil
		},
		fetcher.Options{Logger: zerolog.Nop()},
	)
	res := f.Run(context.Background(), []fetcher.Organization{
		{ID: "id1", CustomerName: "OrgA"},
		{ID: "id2", CustomerName: "OrgB"},
	})

	succ := Successes(res, true)
	require.Len(t, succ, 1)
	assert.Equal(t, "OrgB", succ[0].CustomerName)
	assert.Equal(t, "Display id2", succ[0].DisplayName)
	assert.Equal(t, 1, succ[0].RecordCount)

	fail := Failures(res)
	require.Len(t, fail, 1)
	assert.Equal(t, "OrgA", fail[0].CustomerName)
	assert.Equal(t, "activation_error", fail[0].Cause)
	assert.Equal(t, 404, fail[0].StatusCode)

	rows := FailureRows(fail)
	assert.Equal(t, "404", rows[0][3])

	details := OrgDetails(res)
	require.Len(t, details, 1)
	assert.Equal(t, "id2", details[0].OrgID)
}

func TestReportOutput(t *testing.T) {
	r := NewReport("License report", "licenses", "run-1", runAt)
	r.Counts["succeeded"] = 1
	r.Counts["failed"] = 1
	r.AddSection("Failures", FailureHeader, [][]string{{"OrgA", "id1", "activation_error", "404", "not found"}})
	r.AddSection("Violations", []string{"Org"}, nil)
	r.AddFile("out.csv")
	r.AddFile("")

	var table bytes.Buffer
	require.NoError(t, r.Output(&table, "table"))
	assert.Contains(t, table.String(), "License report")
	assert.Contains(t, table.String(), "activation_error")
	assert.Contains(t, table.String(), "(none)")
	assert.Contains(t, table.String(), "out.csv")

	var js bytes.Buffer
	require.NoError(t, r.Output(&js, "json"))
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded["runId"])
	assert.Len(t, decoded["files"], 1)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", truncateString("abc", 5))
	assert.Equal(t, "ab...", truncateString("abcdefgh", 5))
}
