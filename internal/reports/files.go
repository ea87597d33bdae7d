package reports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	json "github.com/goccy/go-json"
)

// StampLayout is the timestamp embedded in output file names.
const StampLayout = "2006-01-02_15-04-05"

// Namer builds timestamped output paths under Dir. Every name from one Namer
// shares the same timestamp so that files of one run sort together.
type Namer struct {
	Dir string
	At  time.Time
}

// NewNamer fixes the run timestamp.
func NewNamer(dir string, at time.Time) Namer {
	if dir == "" {
		dir = "."
	}
	return Namer{Dir: dir, At: at}
}

// Stamp is the formatted run timestamp.
func (n Namer) Stamp() string {
	return n.At.Format(StampLayout)
}

// Timestamped returns <dir>/<prefix>_<stamp>.<ext>.
func (n Namer) Timestamped(prefix, ext string) string {
	return filepath.Join(n.Dir, fmt.Sprintf("%s_%s.%s", prefix, n.Stamp(), ext))
}

// Path returns name under Dir, unchanged.
func (n Namer) Path(name string) string {
	return filepath.Join(n.Dir, name)
}

// CleanedOverages is the name of a cleaned overages file, e.g.
// cleaned_overages_February_25_14-30.csv.
func (n Namer) CleanedOverages() string {
	return n.Path(fmt.Sprintf("cleaned_overages_%s.csv", n.At.Format("January_02_15-04")))
}

// WriteBytes writes data unchanged, creating parent directories.
func WriteBytes(path string, data []byte) error {
	return writeFile(path, data)
}

// WriteJSON writes v as indented JSON, creating parent directories.
func WriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding %s: %w", path, err)
	}
	return writeFile(path, append(data, '\n'))
}

// WriteCSV writes a header and string rows.
func WriteCSV(path string, header []string, rows [][]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if len(header) > 0 {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("error writing %s: %w", path, err)
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	return writeFile(path, buf.Bytes())
}

// WriteRecords writes a slice of csv-tagged structs; the header comes from the
// struct tags and is written even when the slice is empty.
func WriteRecords(path string, records interface{}) error {
	var buf bytes.Buffer
	if err := gocsv.Marshal(records, &buf); err != nil {
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	return writeFile(path, buf.Bytes())
}

func writeFile(path string, data []byte) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("could not write %s: %w", path, err)
	}
	return nil
}

func ensureDir(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("could not create directory %s: %w", dir, err)
		}
	}
	return nil
}
