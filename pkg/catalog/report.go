package catalog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/oxygene76/reflectx/internal/types"
)

// ReportTimeLayout matches the timestamp column of the batch report
const ReportTimeLayout = "2006-01-02 15:04:05"

// Report appends one line per finished run: "dir timestamp  converged|FAILED"
type Report struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

// NewReport appends to the report file at path on fs
func NewReport(fs afero.Fs, path string) *Report {
	return &Report{fs: fs, path: path}
}

// FormatLine renders one report line without the trailing newline
func FormatLine(dir string, at time.Time, outcome types.Outcome) string {
	return fmt.Sprintf("%s %s  %s", dir, at.Format(ReportTimeLayout), outcome.ReportMarker())
}

// Append writes one line. Safe for concurrent use.
func (r *Report) Append(dir string, at time.Time, outcome types.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.fs.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(f, FormatLine(dir, at, outcome)+"\n"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
