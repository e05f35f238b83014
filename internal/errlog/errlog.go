// Package errlog accumulates per-row failures and writes them once as a CSV
// artifact beside the output dataset.
package errlog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Reason is the closed set of failure reasons.
type Reason string

// Failure reasons.
const (
	ReasonNotFound         Reason = "NotFound"
	ReasonLookupFailed     Reason = "LookupFailed"
	ReasonValidationError  Reason = "ValidationError"
	ReasonSchemaError      Reason = "SchemaError"
	ReasonWebsiteFailed    Reason = "WebsiteFailed"
	ReasonGenerationFailed Reason = "GenerationFailed"
)

// FileName is the name of the error log written next to the output.
const FileName = "error_log.csv"

// Header is the error log column layout.
var Header = []string{"row", "company_name", "company_address", "reason", "detail", "timestamp"}

// Entry is a single failed row. Entries are never mutated once recorded.
type Entry struct {
	Row     int
	Name    string
	Address string
	Reason  Reason
	Detail  string
	Time    time.Time
}

// Log collects entries for one run. It is owned by the single processing
// sequence and is not safe for concurrent use.
type Log struct {
	entries []Entry
	now     func() time.Time
}

// New creates an empty Log.
func New() *Log {
	return &Log{now: time.Now}
}

// Record appends an entry. Row is the spreadsheet row: the header is row 1,
// so data row i is i+2. Run-level entries use 0.
func (l *Log) Record(row int, name, address string, reason Reason, detail string) {
	l.entries = append(l.entries, Entry{
		Row:     row,
		Name:    name,
		Address: address,
		Reason:  reason,
		Detail:  detail,
		Time:    l.now().UTC(),
	})
}

// Len returns the number of recorded entries.
func (l *Log) Len() int {
	return len(l.entries)
}

// Entries returns a copy of the recorded entries.
func (l *Log) Entries() []Entry {
	return append([]Entry(nil), l.entries...)
}

// Count returns how many entries carry the given reason.
func (l *Log) Count(reason Reason) int {
	n := 0
	for _, e := range l.entries {
		if e.Reason == reason {
			n++
		}
	}
	return n
}

// Flush writes all entries to path. It writes nothing when the log is empty,
// leaving any earlier file in place.
func (l *Log) Flush(path string) error {
	if len(l.entries) == 0 {
		return nil
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return eris.Wrap(err, "errlog: create file")
	}
	defer func() { _ = os.Remove(tmp) }()

	w := csv.NewWriter(f)
	_ = w.Write(Header)
	for _, e := range l.entries {
		_ = w.Write([]string{
			strconv.Itoa(e.Row),
			e.Name,
			e.Address,
			string(e.Reason),
			e.Detail,
			e.Time.Format(time.RFC3339),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrap(err, "errlog: write rows")
	}
	if err := f.Close(); err != nil {
		return eris.Wrap(err, "errlog: close file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrap(err, "errlog: rename")
	}

	zap.L().Info("error log written",
		zap.String("path", path),
		zap.Int("entries", len(l.entries)),
	)
	return nil
}

// PathFor returns the error log path for an output file.
func PathFor(outputPath string) string {
	return filepath.Join(filepath.Dir(outputPath), FileName)
}
