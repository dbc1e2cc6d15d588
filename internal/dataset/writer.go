// Package dataset appends extracted page records to the output corpus: one
// JSON object per line of dataset.jsonl, write-once, never rewritten. Dedup
// is the engine's job via the completed set; the sink stays append-only.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/harvestlab/topic-harvester/internal/harvest"
)

// FileName is the dataset file inside the output directory.
const FileName = "dataset.jsonl"

// Writer appends records to <dir>/dataset.jsonl.
type Writer struct {
	path string
}

var _ harvest.DatasetWriter = (*Writer)(nil)

// New returns a Writer rooted at dir, creating the directory if needed.
func New(dir string) (*Writer, error) {
	if dir == "" {
		return nil, fmt.Errorf("dataset dir is empty")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create dataset dir %s: %w", dir, err)
	}
	return &Writer{path: filepath.Join(dir, FileName)}, nil
}

// Path returns the dataset file location.
func (w *Writer) Path() string { return w.path }

// Append writes one record as a JSON line. The file is opened per append so
// every record is flushed to the OS before the next URL is attempted.
func (w *Writer) Append(record harvest.PageResult) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open dataset %s: %w", w.path, err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("append to dataset %s: %w", w.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close dataset %s: %w", w.path, err)
	}
	return nil
}
