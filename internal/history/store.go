// Package history persists a practice log of scored attempts as append-only
// JSON lines in a local file, suitable for tracking progress across
// sessions on one machine.
//
// For multi-user deployments, this should be replaced with a
// database-backed implementation.
package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cantora-app/cantora/internal/engine"
	"github.com/cantora-app/cantora/internal/score"
)

// Record is one scored attempt's summary as written to the log.
type Record struct {
	Timestamp       time.Time  `json:"timestamp"`
	AttemptID       string     `json:"attempt_id,omitempty"`
	Mode            score.Mode `json:"mode,omitempty"`
	Overall         int        `json:"overall"`
	Pitch           int        `json:"pitch"`
	Timing          int        `json:"timing"`
	Stability       int        `json:"stability"`
	WordAccuracyPct int        `json:"word_accuracy_pct"`
	OffsetMs        float64    `json:"offset_ms"`
}

// FileStore persists attempt records as JSON lines in a local file.
// Safe for concurrent use.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a FileStore that writes to the given path.
// The file is created on first append if it does not exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Append records one scored outcome.
func (fs *FileStore) Append(out *engine.Outcome) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	record := Record{
		Timestamp:       time.Now().UTC(),
		AttemptID:       out.AttemptID,
		Mode:            out.Mode,
		Overall:         out.Performance.Overall,
		Pitch:           out.Performance.Pitch,
		Timing:          out.Performance.Timing,
		Stability:       out.Performance.Stability,
		WordAccuracyPct: out.Feedback.WordAccuracyPct,
		OffsetMs:        out.OffsetMs,
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("history: marshal: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(fs.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("history: open file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("history: write: %w", err)
	}
	return nil
}

// Recent returns up to n most-recent records, oldest first. A missing file
// yields an empty slice.
func (fs *FileStore) Recent(n int) ([]Record, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, err := os.Open(fs.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: open file: %w", err)
	}
	defer f.Close()

	var records []Record
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("history: decode line: %w", err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("history: read: %w", err)
	}

	if n > 0 && len(records) > n {
		records = records[len(records)-n:]
	}
	return records, nil
}
