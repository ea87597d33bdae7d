package reports

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// HighlightRule fills a whole data row when the value in Column equals Equals.
// Rules are evaluated in order; the first match wins.
type HighlightRule struct {
	Column string
	Equals string
	Fill   string // RGB hex, no leading '#'
}

// Sheet is one worksheet to write.
type Sheet struct {
	Name       string
	Header     []string
	Rows       [][]interface{}
	BoldHeader bool
	Rules      []HighlightRule
}

// Red and blue fills of the overage report.
const (
	FillOverused      = "FF9999"
	FillUnderutilized = "99CCFF"
)

// OverageRules colours overused rows red and underutilized rows blue.
var OverageRules = []HighlightRule{
	{Column: "Status", Equals: "Overused", Fill: FillOverused},
	{Column: "Status", Equals: "Underutilized", Fill: FillUnderutilized},
}

// WriteXLSX writes sheets to a new workbook at path.
func WriteXLSX(path string, sheets ...Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("no sheets to write to %s", path)
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.Name); err != nil {
				return fmt.Errorf("error naming sheet %s: %w", s.Name, err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return fmt.Errorf("error adding sheet %s: %w", s.Name, err)
		}
		if err := writeSheet(f, s); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)

	if err := ensureDir(path); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("could not write %s: %w", path, err)
	}
	return nil
}

func writeSheet(f *excelize.File, s Sheet) error {
	header := make([]interface{}, len(s.Header))
	for i, h := range s.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(s.Name, "A1", &header); err != nil {
		return fmt.Errorf("error writing header of %s: %w", s.Name, err)
	}
	if s.BoldHeader && len(s.Header) > 0 {
		style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(s.Name, "A1", lastCell(len(s.Header), 1), style); err != nil {
			return err
		}
	}

	fills := map[string]int{}
	for i, row := range s.Rows {
		r := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, r)
		values := row
		if err := f.SetSheetRow(s.Name, cell, &values); err != nil {
			return fmt.Errorf("error writing row %d of %s: %w", r, s.Name, err)
		}

		fill := matchRule(s.Header, row, s.Rules)
		if fill == "" {
			continue
		}
		style, ok := fills[fill]
		if !ok {
			var err error
			style, err = f.NewStyle(&excelize.Style{
				Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{fill}},
			})
			if err != nil {
				return err
			}
			fills[fill] = style
		}
		width := len(s.Header)
		if len(row) > width {
			width = len(row)
		}
		if err := f.SetCellStyle(s.Name, cell, lastCell(width, r), style); err != nil {
			return err
		}
	}
	return nil
}

// matchRule returns the fill of the first rule matching row, or "".
func matchRule(header []string, row []interface{}, rules []HighlightRule) string {
	for _, rule := range rules {
		for i, h := range header {
			if h != rule.Column || i >= len(row) {
				continue
			}
			if fmt.Sprint(row[i]) == rule.Equals {
				return rule.Fill
			}
		}
	}
	return ""
}

func lastCell(cols, row int) string {
	if cols < 1 {
		cols = 1
	}
	cell, _ := excelize.CoordinatesToCellName(cols, row)
	return cell
}
