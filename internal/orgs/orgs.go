// Package orgs reads the organization list a workflow runs over.
package orgs

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ilhicas/webex-partner-ops/internal/fetcher"
)

// Column headers of a cleaned overages file.
const (
	HeaderCustomerName = "Customer Name"
	HeaderOrgID        = "Customer Org ID"
)

// rawTrailingColumns is the number of columns after the org ID in a raw
// overages export.
const rawTrailingColumns = 4

// Entry is one customer organization from an input file or flag.
type Entry struct {
	CustomerName string
	OrgID        string
}

// Handle turns the entry into an unactivated fetcher handle.
func (e Entry) Handle() fetcher.Organization {
	return fetcher.Organization{ID: e.OrgID, CustomerName: e.CustomerName, Status: fetcher.Unactivated}
}

// Handles converts entries, preserving order.
func Handles(entries []Entry) []fetcher.Organization {
	out := make([]fetcher.Organization, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Handle())
	}
	return out
}

// Clean repairs a raw overages export whose customer names were split on
// commas and writes the customer name and org ID of every usable row to w.
// Rows with fewer than two fields are skipped. It returns the rows written.
func Clean(r io.Reader, w io.Writer) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	writer := csv.NewWriter(w)
	written := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return written, fmt.Errorf("reading overages row: %w", err)
		}
		if len(row) < 2 {
			continue
		}
		if err := writer.Write(FixRow(row)[:2]); err != nil {
			return written, fmt.Errorf("writing cleaned row: %w", err)
		}
		written++
	}
	writer.Flush()
	return written, writer.Error()
}

// FixRow realigns one raw row. A row longer than six fields had its customer
// name split: everything before the fifth-from-last field is re-joined with
// spaces and the fifth-from-last field is the org ID.
func FixRow(row []string) []string {
	if len(row) > 6 {
		cut := len(row) - rawTrailingColumns - 1
		return []string{strings.Join(row[:cut], " "), row[cut]}
	}
	out := make([]string, 6)
	copy(out, row)
	return out
}

// Load reads a cleaned overages CSV (header row, then customer name and org
// ID in the first two columns). Exact duplicate entries and rows without an
// org ID are dropped; order is preserved.
func Load(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading organizations: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	seen := map[Entry]bool{}
	var out []Entry
	for _, row := range rows[1:] {
		if len(row) < 2 {
			continue
		}
		e := Entry{CustomerName: strings.TrimSpace(row[0]), OrgID: strings.TrimSpace(row[1])}
		if e.OrgID == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out, nil
}

// LoadFile opens path and calls Load.
func LoadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening organizations file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// ParseFlags parses repeated --org values of the form "id" or "id=name".
func ParseFlags(values []string) ([]Entry, error) {
	var out []Entry
	for _, v := range values {
		id, name, _ := strings.Cut(v, "=")
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("invalid --org value %q: empty org id", v)
		}
		out = append(out, Entry{OrgID: id, CustomerName: strings.TrimSpace(name)})
	}
	return out, nil
}

// Collect merges the organizations file (if any) and flag entries, dropping
// duplicate org IDs after their first appearance.
func Collect(path string, flags []string) ([]Entry, error) {
	var all []Entry
	if path != "" {
		fromFile, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		all = append(all, fromFile...)
	}
	fromFlags, err := ParseFlags(flags)
	if err != nil {
		return nil, err
	}
	all = append(all, fromFlags...)

	seen := map[string]bool{}
	out := make([]Entry, 0, len(all))
	for _, e := range all {
		if seen[e.OrgID] {
			continue
		}
		seen[e.OrgID] = true
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil, errors.New("no organizations given; use --orgs-file or --org")
	}
	return out, nil
}
