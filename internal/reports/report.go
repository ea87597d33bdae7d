package reports

import (
	"fmt"
	"io"
	"sort"
	"time"

	json "github.com/goccy/go-json"
	"github.com/olekukonko/tablewriter"
)

// Report is the console summary of one workflow run
type Report struct {
	Title      string
	Workflow   string
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Counts     map[string]int
	Sections   []Section
	Files      []string
}

// Section is one titled table of a Report
type Section struct {
	Title  string     `json:"title"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// NewReport starts a report for workflow.
func NewReport(title, workflow, runID string, started time.Time) *Report {
	return &Report{
		Title:     title,
		Workflow:  workflow,
		RunID:     runID,
		StartedAt: started,
		Counts:    map[string]int{},
	}
}

// AddSection appends a table. Empty sections are kept so that "no failures"
// is visible in the output.
func (r *Report) AddSection(title string, header []string, rows [][]string) {
	r.Sections = append(r.Sections, Section{Title: title, Header: header, Rows: rows})
}

// AddFile records an output file written by the run.
func (r *Report) AddFile(path string) {
	if path != "" {
		r.Files = append(r.Files, path)
	}
}

// Output writes the report as JSON or as tables.
func (r *Report) Output(w io.Writer, format string) error {
	if format == "json" {
		return r.OutputJSON(w)
	}
	return r.OutputTable(w)
}

// OutputJSON writes the report as indented JSON.
func (r *Report) OutputJSON(w io.Writer) error {
	type jsonReport struct {
		Title      string         `json:"title"`
		Workflow   string         `json:"workflow"`
		RunID      string         `json:"runId"`
		StartedAt  string         `json:"startedAt"`
		FinishedAt string         `json:"finishedAt,omitempty"`
		Counts     map[string]int `json:"counts"`
		Sections   []Section      `json:"sections,omitempty"`
		Files      []string       `json:"files,omitempty"`
	}

	out := jsonReport{
		Title:     r.Title,
		Workflow:  r.Workflow,
		RunID:     r.RunID,
		StartedAt: r.StartedAt.Format(time.RFC3339),
		Counts:    r.Counts,
		Sections:  r.Sections,
		Files:     r.Files,
	}
	if !r.FinishedAt.IsZero() {
		out.FinishedAt = r.FinishedAt.Format(time.RFC3339)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		return fmt.Errorf("error encoding report to JSON: %w", err)
	}
	return nil
}

// OutputTable renders the report as ASCII tables.
func (r *Report) OutputTable(w io.Writer) error {
	fmt.Fprintf(w, "\n%s\n", r.Title)
	fmt.Fprintf(w, "Run: %s (%s)\n", r.RunID, r.StartedAt.Format("2006-01-02 15:04:05"))

	if len(r.Counts) > 0 {
		counts := tablewriter.NewWriter(w)
		counts.SetHeader([]string{"Outcome", "Count"})
		counts.SetBorder(false)
		counts.SetColumnSeparator(" ")
		for _, k := range sortedKeys(r.Counts) {
			counts.Append([]string{k, fmt.Sprintf("%d", r.Counts[k])})
		}
		counts.Render()
	}

	for _, s := range r.Sections {
		fmt.Fprintf(w, "\n%s:\n", s.Title)
		if len(s.Rows) == 0 {
			fmt.Fprintln(w, "  (none)")
			continue
		}
		RenderTable(w, s.Header, s.Rows)
	}

	if len(r.Files) > 0 {
		fmt.Fprintln(w, "\nFiles written:")
		for _, f := range r.Files {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}
	return nil
}

// RenderTable writes header and rows as a borderless, left-aligned table.
func RenderTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	table.AppendBulk(rows)
	table.Render()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncateString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	return s[:maxLength-3] + "..."
}
