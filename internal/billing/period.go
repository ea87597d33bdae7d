package billing

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Period is a whole calendar month.
type Period struct {
	Start time.Time // first day, 00:00
	End   time.Time // last day, 00:00
}

// PreviousMonth returns the calendar month before the one containing now.
func PreviousMonth(now time.Time) Period {
	firstOfThis := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	last := firstOfThis.AddDate(0, 0, -1)
	return Period{
		Start: time.Date(last.Year(), last.Month(), 1, 0, 0, 0, 0, now.Location()),
		End:   last,
	}
}

// DaysInMonth handles leap-year February.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Days in the period's month.
func (p Period) Days() int {
	return DaysInMonth(p.Start.Year(), p.Start.Month())
}

// StartDate is the billingStartDate value.
func (p Period) StartDate() string { return p.Start.Format(dateLayout) }

// EndDate is the billingEndDate value.
func (p Period) EndDate() string { return p.End.Format(dateLayout) }

// Label is "<Month>-<Year>", used in output file names.
func (p Period) Label() string {
	return fmt.Sprintf("%s-%d", p.Start.Month(), p.Start.Year())
}

func (p Period) String() string {
	return p.StartDate() + " -> " + p.EndDate()
}
