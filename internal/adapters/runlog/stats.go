package runlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
)

// SessionSummary aggregates the run records of one session.
type SessionSummary struct {
	SessionID  string
	Character  string
	FirstRunTS string
	Maps       int
	TotalValue float64
	TotalTime  float64
	BestValue  float64
	BestMap    string
}

// ValuePerHour derives the session rate from logged runtimes.
func (s SessionSummary) ValuePerHour() float64 {
	if s.TotalTime <= 0 {
		return 0
	}
	return s.TotalValue / (s.TotalTime / 3600)
}

// ReadRuns loads every run record from a JSONL file. Unparseable lines are
// skipped; a missing file yields an empty slice.
func ReadRuns(path string) ([]RunRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	defer f.Close()

	var runs []RunRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var rec RunRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		runs = append(runs, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	return runs, nil
}

// SummarizeSessions groups run records by session id, ordered by first
// appearance in the log.
func SummarizeSessions(runs []RunRecord) []SessionSummary {
	byID := make(map[string]*SessionSummary)
	order := make(map[string]int)
	for i, run := range runs {
		s, ok := byID[run.SessionID]
		if !ok {
			s = &SessionSummary{
				SessionID:  run.SessionID,
				Character:  run.Character,
				FirstRunTS: run.TS,
			}
			byID[run.SessionID] = s
			order[run.SessionID] = i
		}
		s.Maps++
		s.TotalValue += run.MapValue
		s.TotalTime += run.MapRuntime
		if run.MapValue > s.BestValue {
			s.BestValue = run.MapValue
			s.BestMap = run.Map.Name
		}
	}

	summaries := make([]SessionSummary, 0, len(byID))
	for _, s := range byID {
		summaries = append(summaries, *s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return order[summaries[i].SessionID] < order[summaries[j].SessionID]
	})
	return summaries
}
