package dataset

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enricher/internal/lead"
)

// ErrLocked means another run holds the output file.
var ErrLocked = errors.New("dataset: output is locked by another run")

// Output is an exclusively locked output path. Hold it for the whole run so
// two runs never interleave writes to the same file.
type Output struct {
	path string
	lock *flock.Flock
}

// OpenOutput locks path via a sibling ".lock" file. It fails with ErrLocked
// when another process holds the lock.
func OpenOutput(path string) (*Output, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "dataset: create output dir %s", dir)
		}
	}

	fl := flock.New(path + ".lock")
	ok, err := fl.TryLock()
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: lock %s", path)
	}
	if !ok {
		return nil, ErrLocked
	}
	return &Output{path: path, lock: fl}, nil
}

// Path returns the output file path.
func (o *Output) Path() string { return o.path }

// Save writes the table to the output path.
func (o *Output) Save(t *lead.Table) error {
	return o.WriteRows(t.Rows())
}

// WriteRows writes rows as CSV to a temp file in the output directory and
// renames it over the output, so readers never see a partial file.
func (o *Output) WriteRows(rows [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(o.path), "."+filepath.Base(o.path)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "dataset: create temp file")
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	w := csv.NewWriter(tmp)
	if err := w.WriteAll(rows); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "dataset: write csv")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "dataset: sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "dataset: close temp file")
	}
	if err := os.Rename(tmpName, o.path); err != nil {
		return eris.Wrapf(err, "dataset: rename to %s", o.path)
	}

	zap.L().Info("dataset: output written",
		zap.String("path", o.path),
		zap.Int("rows", len(rows)-1),
	)
	return nil
}

// Close releases the lock and removes the lock file.
func (o *Output) Close() error {
	if err := o.lock.Unlock(); err != nil {
		return eris.Wrap(err, "dataset: unlock output")
	}
	_ = os.Remove(o.lock.Path())
	return nil
}
