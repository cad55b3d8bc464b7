// Package runlog persists completed runs and session lifecycle events as
// append-only JSONL streams.
package runlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bonebunny/lootledger/pkg/metrics"
)

// MapDetails describes the map a run took place in.
type MapDetails struct {
	Name          string `json:"name"`
	Level         int    `json:"level"`
	Seed          int64  `json:"seed,omitempty"`
	Tier          int    `json:"tier,omitempty"`
	ModifierCount int    `json:"modifier_count,omitempty"`
	Source        string `json:"source,omitempty"`
}

// ItemAggregate is a compact per-name summary of diffed items.
type ItemAggregate struct {
	Name string `json:"name"`
	Qty  int    `json:"qty"`
}

// RunRecord is one completed unit of work.
type RunRecord struct {
	RunID     string `json:"run_id"`
	SessionID string `json:"session_id"`
	TS        string `json:"ts"`
	Character string `json:"character"`

	Map        MapDetails `json:"map"`
	MapValue   float64    `json:"map_value"`
	MapRuntime float64    `json:"map_runtime"`

	AddedCount   int             `json:"added_count"`
	RemovedCount int             `json:"removed_count"`
	Added        []ItemAggregate `json:"added"`
	Removed      []ItemAggregate `json:"removed"`

	// Post-commit session counters.
	SessionMapsCompleted int     `json:"session_maps_completed"`
	SessionTotalValue    float64 `json:"session_total_value"`
}

// SessionEvent is one session lifecycle record.
type SessionEvent struct {
	EventType      string  `json:"event_type"`
	SessionID      string  `json:"session_id"`
	TS             string  `json:"ts"`
	Character      string  `json:"character"`
	RuntimeSeconds float64 `json:"session_runtime,omitempty"`
	TotalValue     float64 `json:"total_value,omitempty"`
	TotalMaps      int     `json:"total_maps,omitempty"`
}

// Log is an append-only JSONL file.
type Log struct {
	mu   sync.Mutex
	path string
}

// NewLog creates the parent directory and returns a Log for path.
func NewLog(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAppend, err)
	}
	return &Log{path: path}, nil
}

// Path returns the file location backing the log.
func (l *Log) Path() string { return l.path }

// Append marshals record and writes it as one line. The file is opened per
// append so an external rotation or deletion never wedges the tracker.
func (l *Log) Append(record any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(record)
	if err != nil {
		metrics.RecordRunlogError()
		return fmt.Errorf("%w: %w", ErrAppend, err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		metrics.RecordRunlogError()
		return fmt.Errorf("%w: %w", ErrAppend, err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		metrics.RecordRunlogError()
		return fmt.Errorf("%w: %w", ErrAppend, err)
	}
	metrics.RecordRunlogAppend()
	return nil
}
