package app

import (
	"time"

	"github.com/bonebunny/lootledger/internal/adapters/maplog"
	"github.com/bonebunny/lootledger/internal/adapters/runlog"
	"github.com/bonebunny/lootledger/internal/notify"
	"github.com/bonebunny/lootledger/pkg/logger"
)

// Option applies a configuration option to the Flow.
type Option func(*Flow)

// WithRunLog sets the completed-run record sink.
func WithRunLog(l *runlog.Log) Option {
	return func(f *Flow) { f.runs = l }
}

// WithSessionLog sets the session lifecycle record sink.
func WithSessionLog(l *runlog.Log) Option {
	return func(f *Flow) { f.sessions = l }
}

// WithNotifiers sets the notification sinks.
func WithNotifiers(notifiers ...notify.Notifier) Option {
	return func(f *Flow) { f.notifiers = notifiers }
}

// WithVarSinks sets the display/overlay consumers of the variable bag.
func WithVarSinks(sinks ...VarSink) Option {
	return func(f *Flow) { f.sinks = sinks }
}

// WithMetadataSource sets the map metadata reader. Absence or failure of
// metadata never blocks tracking.
func WithMetadataSource(read func() (maplog.Info, error)) Option {
	return func(f *Flow) { f.readMeta = read }
}

// WithClock sets the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(f *Flow) {
		if now != nil {
			f.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(f *Flow) {
		if l != nil {
			f.log = l
		}
	}
}
