package transform

import (
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilhicas/webex-partner-ops/internal/billing"
	apperr "github.com/ilhicas/webex-partner-ops/internal/errors"
)

func TestPivotColumnsAreUnionInFirstSeenOrder(t *testing.T) {
	records := []LicenseRecord{
		{CustomerName: "Acme", OrgID: "o1", LicenseName: "Meetings", TotalUnits: 10, ConsumedUnits: 5},
		{CustomerName: "Acme", OrgID: "o1", LicenseName: "Calling", TotalUnits: 20, ConsumedUnits: 20},
		{CustomerName: "Globex", OrgID: "o2", LicenseName: "Messaging", TotalUnits: 3, ConsumedUnits: 1},
		{CustomerName: "Globex", OrgID: "o2", LicenseName: "Meetings", TotalUnits: 7, ConsumedUnits: 9},
	}

	p := Pivot(records)

	assert.Equal(t, []string{"Meetings", "Calling", "Messaging"}, p.Licenses)
	assert.Equal(t, []string{
		"customer_name", "org_id",
		"Meetings (total)", "Meetings (consumed)",
		"Calling (total)", "Calling (consumed)",
		"Messaging (total)", "Messaging (consumed)",
	}, p.Header())

	require.Len(t, p.Rows, 2)
	assert.Equal(t, [][]string{
		{"Acme", "o1", "10", "5", "20", "20", "0", "0"},
		{"Globex", "o2", "7", "9", "0", "0", "3", "1"},
	}, p.Table())

	require.Len(t, p.Violations, 1)
	assert.Equal(t, Violation{CustomerName: "Globex", OrgID: "o2", LicenseName: "Meetings", Total: 7, Consumed: 9}, p.Violations[0])
}

func TestPivotIsDeterministic(t *testing.T) {
	records := []LicenseRecord{
		{CustomerName: "B", OrgID: "2", LicenseName: "x", TotalUnits: 1, ConsumedUnits: 1},
		{CustomerName: "A", OrgID: "1", LicenseName: "y", TotalUnits: 2, ConsumedUnits: 0},
	}
	assert.Equal(t, Pivot(records).Table(), Pivot(records).Table())
	assert.Equal(t, Pivot(records).Header(), Pivot(records).Header())
}

func TestPivotDuplicateRecordLastWins(t *testing.T) {
	p := Pivot([]LicenseRecord{
		{CustomerName: "A", OrgID: "1", LicenseName: "x", TotalUnits: 1, ConsumedUnits: 1},
		{CustomerName: "A", OrgID: "1", LicenseName: "x", TotalUnits: 5, ConsumedUnits: 2},
	})
	require.Len(t, p.Rows, 1)
	assert.Equal(t, Cell{Total: 5, Consumed: 2, Present: true}, p.Rows[0].Cells[0])
}

func TestPivotFlattenRoundTrip(t *testing.T) {
	records := []LicenseRecord{
		{CustomerName: "Acme", OrgID: "o1", LicenseName: "Meetings", TotalUnits: 10, ConsumedUnits: 5},
		{CustomerName: "Globex", OrgID: "o2", LicenseName: "Calling", TotalUnits: 0, ConsumedUnits: 0},
		{CustomerName: "Acme", OrgID: "o1", LicenseName: "Calling", TotalUnits: 20, ConsumedUnits: 25},
		{CustomerName: "Initech", OrgID: "o3", LicenseName: "Messaging", TotalUnits: 3, ConsumedUnits: 1},
	}

	got := Flatten(Pivot(records))

	sortRecords := func(rs []LicenseRecord) {
		sort.Slice(rs, func(i, j int) bool {
			if rs[i].OrgID != rs[j].OrgID {
				return rs[i].OrgID < rs[j].OrgID
			}
			return rs[i].LicenseName < rs[j].LicenseName
		})
	}
	want := append([]LicenseRecord(nil), records...)
	sortRecords(want)
	sortRecords(got)
	assert.Equal(t, want, got)
}

func TestBillableUsage(t *testing.T) {
	header := []string{"m1", "m2", "m3", "m4", "a", "b", "c", "d", "e", "f", "USAGE", "unit"}
	row := func(usage string) []string {
		return []string{"x", "x", "x", "x", "a", "b", "c", "d", "e", "f", usage, "min"}
	}

	tests := []struct {
		name  string
		usage string
		days  int
		want  string
	}{
		{"rounds up", "100", 30, "4"},
		{"exact", "90", 30, "3"},
		{"leap february", "58", 29, "2"},
		{"leap february rounds up", "59", 29, "3"},
		{"fractional usage", "30.5", 30, "2"},
		{"zero", "0", 31, "0"},
		{"padded", " 62 ", 31, "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := BillableUsage(header, [][]string{row(tt.usage)}, tt.days)
			require.NoError(t, err)

			assert.Equal(t, []string{"a", "b", "c", "d", "e", "f", "USAGE", "unit", BillableUnitsColumn}, out.Header)
			require.Len(t, out.Rows, 1)
			assert.Equal(t, tt.want, out.Rows[0][len(out.Rows[0])-1])
			assert.Equal(t, 1, out.Succeeded)
		})
	}
}

func TestBillableUsageFlagsBadRows(t *testing.T) {
	header := []string{"m1", "m2", "m3", "m4", "a", "b", "c", "d", "e", "f", "USAGE"}
	rows := [][]string{
		{"x", "x", "x", "x", "a", "b", "c", "d", "e", "f", "100"},
		{"x", "x", "x", "x", "a", "b", "c", "d", "e", "f", "n/a"},
		{"x", "x", "x", "x", "a", "b", "c", "d", "e", "f", ""},
		{"x", "x", "x", "x", "a"},
		{"x", "x", "x", "x", "a", "b", "c", "d", "e", "f", "60"},
	}

	out, err := BillableUsage(header, rows, 30)
	require.Error(t, err)

	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 3)
	assert.ErrorIs(t, merr.Errors[0], apperr.ErrTransformRow)

	assert.Equal(t, 2, out.Succeeded)
	require.Len(t, out.Flagged, 3)
	assert.Equal(t, []int{2, 3, 4}, []int{out.Flagged[0].Row, out.Flagged[1].Row, out.Flagged[2].Row})

	require.Len(t, out.Rows, 5)
	assert.Equal(t, "4", out.Rows[0][len(out.Rows[0])-1])
	assert.Equal(t, "", out.Rows[1][len(out.Rows[1])-1])
	assert.Equal(t, []string{"a", ""}, out.Rows[3])
	assert.Equal(t, "2", out.Rows[4][len(out.Rows[4])-1])
}

func TestBillableUsageUsesPreviousMonthDays(t *testing.T) {
	period := billing.PreviousMonth(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	header := []string{"m1", "m2", "m3", "m4", "a", "b", "c", "d", "e", "f", "USAGE"}
	rows := [][]string{{"x", "x", "x", "x", "a", "b", "c", "d", "e", "f", "29"}}

	out, err := BillableUsage(header, rows, period.Days())
	require.NoError(t, err)
	assert.Equal(t, "1", out.Rows[0][len(out.Rows[0])-1])
}

func TestBillableUsageRejectsNonPositiveDays(t *testing.T) {
	_, err := BillableUsage(nil, nil, 0)
	assert.Error(t, err)
}

func TestBillableUsageShortHeader(t *testing.T) {
	out, err := BillableUsage([]string{"a", "b"}, nil, 30)
	require.NoError(t, err)
	assert.Equal(t, []string{BillableUnitsColumn}, out.Header)
	assert.Empty(t, out.Rows)
}

func TestOverages(t *testing.T) {
	rows := Overages([]LicenseRecord{
		{CustomerName: "Acme", OrgID: "o1", LicenseName: "Meetings", TotalUnits: 10, ConsumedUnits: 12},
		{CustomerName: "", OrgID: "o2", LicenseName: "Calling", TotalUnits: 10, ConsumedUnits: 4},
		{CustomerName: "Acme", OrgID: "o1", LicenseName: "Messaging", TotalUnits: 5, ConsumedUnits: 5},
	})

	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Acme", "Meetings", "10", "12", "Overused", "+2"}, rows[0].Strings())
	assert.Equal(t, []string{"o2", "Calling", "10", "4", "Underutilized", "-6"}, rows[1].Strings())
	assert.Equal(t, []string{"Acme", "Messaging", "5", "5", "Fully Used", "0"}, rows[2].Strings())
}
