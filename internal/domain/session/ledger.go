// Package session holds the cumulative ledger for one tracking session.
//
// The counters are deliberately unexported: CommitUnit is the only code path
// in the whole program that mutates maps-completed and total-value, and it
// returns the before/after snapshots itself so callers cannot reorder the
// baseline capture around the commit.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the session lifecycle: NotStarted -> Active -> Ended.
type State int

const (
	StateNotStarted State = iota
	StateActive
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateEnded:
		return "ended"
	default:
		return "not_started"
	}
}

const secondsPerHour = 3600

// Snapshot is an immutable projection of the ledger at one instant.
type Snapshot struct {
	MapsCompleted  int     `json:"maps_completed"`
	TotalValue     float64 `json:"total_value"`
	RuntimeSeconds float64 `json:"runtime_seconds"`
	ValuePerHour   float64 `json:"value_per_hour"`
}

// AvgValuePerMap returns the mean value per completed map, zero before the
// first commit.
func (s Snapshot) AvgValuePerMap() float64 {
	if s.MapsCompleted == 0 {
		return 0
	}
	return s.TotalValue / float64(s.MapsCompleted)
}

// AvgMinutesPerMap returns the mean runtime per completed map in minutes.
func (s Snapshot) AvgMinutesPerMap() float64 {
	if s.MapsCompleted == 0 {
		return 0
	}
	return s.RuntimeSeconds / float64(s.MapsCompleted) / 60
}

// MapsPerHour returns the completion rate, zero before any runtime elapsed.
func (s Snapshot) MapsPerHour() float64 {
	if s.RuntimeSeconds <= 0 {
		return 0
	}
	return float64(s.MapsCompleted) / (s.RuntimeSeconds / secondsPerHour)
}

// Info identifies a session.
type Info struct {
	SessionID string
	StartTime time.Time
}

// Option applies a configuration option to the Ledger.
type Option func(*Ledger)

// WithClock sets the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// Ledger tracks cumulative counters for the current session.
type Ledger struct {
	mu sync.Mutex

	state         State
	sessionID     string
	startTime     time.Time
	mapsCompleted int
	totalValue    float64

	now func() time.Time
}

// NewLedger creates a ledger in the NotStarted state.
func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		state: StateNotStarted,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start begins a new session. Legal from NotStarted or Ended only; an
// active session must be ended first.
func (l *Ledger) Start() (Info, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateActive {
		return Info{}, ErrAlreadyActive
	}

	l.sessionID = uuid.NewString()
	l.startTime = l.now()
	l.mapsCompleted = 0
	l.totalValue = 0
	l.state = StateActive

	return Info{SessionID: l.sessionID, StartTime: l.startTime}, nil
}

// CommitUnit folds one completed unit into the session. It captures the
// pre-commit snapshot, applies the commit, and returns both views, so the
// "before" baseline and the commit are one uninterruptible step.
func (l *Ledger) CommitUnit(value float64) (before, after Snapshot, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateActive {
		return Snapshot{}, Snapshot{}, ErrNotActive
	}

	before = l.snapshotLocked()

	l.mapsCompleted++
	if value > 0 {
		l.totalValue += value
	}

	after = l.snapshotLocked()
	return before, after, nil
}

// Snapshot is a pure read, legal in any lifecycle state. Outside an active
// session it reports zeros.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateActive {
		return Snapshot{}
	}
	return l.snapshotLocked()
}

// End closes the session and returns the final snapshot for persistence.
func (l *Ledger) End() (Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateActive {
		return Snapshot{}, ErrNotActive
	}

	final := l.snapshotLocked()
	l.state = StateEnded
	return final, nil
}

// State returns the current lifecycle state.
func (l *Ledger) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Info returns the session identity; the id is empty before the first Start.
func (l *Ledger) Info() Info {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Info{SessionID: l.sessionID, StartTime: l.startTime}
}

// snapshotLocked builds a Snapshot. Callers must hold l.mu.
func (l *Ledger) snapshotLocked() Snapshot {
	runtime := l.now().Sub(l.startTime).Seconds()
	if runtime < 0 {
		runtime = 0
	}

	vph := 0.0
	if runtime > 0 {
		vph = l.totalValue / (runtime / secondsPerHour)
	}

	return Snapshot{
		MapsCompleted:  l.mapsCompleted,
		TotalValue:     l.totalValue,
		RuntimeSeconds: runtime,
		ValuePerHour:   vph,
	}
}
