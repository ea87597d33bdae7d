package transform

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"

	apperr "github.com/ilhicas/webex-partner-ops/internal/errors"
)

const (
	// droppedColumns are the leading metadata columns of a wholesale export.
	droppedColumns = 4
	// usageColumn is the usage quantity, counted after the drop.
	usageColumn = 6

	// BillableUnitsColumn is the appended column header.
	BillableUnitsColumn = "BILLABLE_UNITS"
)

// RowError flags one export row whose usage value could not be used.
type RowError struct {
	Row   int // 1-based data row, header excluded
	Value string
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: usage %q: %v", e.Row, e.Value, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Is matches the transform_row_error sentinel.
func (e *RowError) Is(target error) bool { return target == apperr.ErrTransformRow }

// BillableReport is the transformed wholesale export.
type BillableReport struct {
	Header    []string
	Rows      [][]string
	Succeeded int
	Flagged   []*RowError
}

// BillableUsage drops the first four columns of every row, reads the usage
// value at the seventh remaining column and appends
// BILLABLE_UNITS = ceil(usage / days). Rows stay 1:1 and in order; a row whose
// usage is missing or not numeric keeps an empty BILLABLE_UNITS cell and is
// reported in Flagged and in the returned *multierror.Error.
func BillableUsage(header []string, rows [][]string, days int) (*BillableReport, error) {
	if days <= 0 {
		return nil, fmt.Errorf("days in month must be positive, got %d", days)
	}
	divisor := decimal.NewFromInt(int64(days))

	out := &BillableReport{
		Header: append(trim(header), BillableUnitsColumn),
		Rows:   make([][]string, 0, len(rows)),
	}

	var result *multierror.Error
	for i, raw := range rows {
		row := trim(raw)
		units, rowErr := billableUnits(row, divisor)
		if rowErr != nil {
			rowErr.Row = i + 1
			out.Flagged = append(out.Flagged, rowErr)
			result = multierror.Append(result, rowErr)
			out.Rows = append(out.Rows, append(row, ""))
			continue
		}
		out.Succeeded++
		out.Rows = append(out.Rows, append(row, units))
	}
	return out, result.ErrorOrNil()
}

func billableUnits(row []string, divisor decimal.Decimal) (string, *RowError) {
	if len(row) <= usageColumn {
		return "", &RowError{Err: errors.New("usage column missing")}
	}
	v := strings.TrimSpace(row[usageColumn])
	if v == "" {
		return "", &RowError{Value: v, Err: errors.New("usage value empty")}
	}
	usage, err := decimal.NewFromString(v)
	if err != nil {
		return "", &RowError{Value: v, Err: fmt.Errorf("not a number: %w", err)}
	}

	q, r := usage.QuoRem(divisor, 0)
	if r.Sign() > 0 {
		q = q.Add(decimal.NewFromInt(1))
	}
	return q.String(), nil
}

func trim(row []string) []string {
	if len(row) <= droppedColumns {
		return []string{}
	}
	out := make([]string, len(row)-droppedColumns)
	copy(out, row[droppedColumns:])
	return out
}
