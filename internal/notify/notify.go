// Package notify renders variable-bag templates and dispatches them to
// notification sinks.
package notify

import (
	"context"
	"fmt"
	"regexp"

	"github.com/bonebunny/lootledger/internal/projection"
	"github.com/bonebunny/lootledger/pkg/logger"
	"github.com/bonebunny/lootledger/pkg/metrics"
)

// Notifier delivers one rendered notification. Implementations are
// best-effort sinks; a failed delivery never rolls anything back.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// Template is a title/body pair with {var} placeholders.
type Template struct {
	Title string
	Body  string
}

// Built-in templates, keyed off the variable bag of projection.Build.
var (
	Startup = Template{
		Title: "lootledger started",
		Body:  "Character: {character}\nSession: {session_id_short}",
	}

	NewSession = Template{
		Title: "New session started",
		Body:  "Character: {character}\nSession: {session_id_short}\nStarted: {start_time}",
	}

	PreMap = Template{
		Title: "{map_name} L{map_level}",
		Body:  "Session: {session_maps_completed} maps | {session_total_value_fmt} | {session_value_per_hour_fmt}/h\nStarting new map run",
	}

	PostMap = Template{
		Title: "{map_name} L{map_level} | {map_runtime_fmt} | {map_value_fmt}",
		Body:  "Session: {session_maps_completed} maps | {session_total_value_fmt} | {session_value_per_hour_fmt}/h\nMap: {map_value_per_hour_fmt}/h vs avg {session_before_value_per_hour_fmt}/h",
	}

	SessionEnd = Template{
		Title: "Session ended",
		Body:  "Maps: {session_maps_completed} | Value: {session_total_value_fmt} | Time: {session_time}",
	}
)

var placeholder = regexp.MustCompile(`\{([a-z0-9_]+)\}`)

// Render substitutes {var} placeholders from the bag. Unknown variables
// render as "?" so a sparse bag never breaks a notification.
func Render(t Template, vars projection.Vars) (title, body string) {
	sub := func(s string) string {
		return placeholder.ReplaceAllStringFunc(s, func(match string) string {
			key := match[1 : len(match)-1]
			if val, ok := vars[key]; ok {
				return fmt.Sprint(val)
			}
			return "?"
		})
	}
	return sub(t.Title), sub(t.Body)
}

// Dispatch renders the template and sends it through every notifier,
// logging failures individually rather than aborting.
func Dispatch(ctx context.Context, t Template, vars projection.Vars, notifiers ...Notifier) {
	title, body := Render(t, vars)
	for _, n := range notifiers {
		if err := n.Notify(ctx, title, body); err != nil {
			metrics.RecordNotifyError()
			logger.Named("notify").Warn(ctx, "notification failed", logger.Error(err))
		}
	}
}

// Console writes notifications to the tracker's own log output.
type Console struct {
	log logger.Logger
}

// NewConsole creates a console notifier.
func NewConsole() *Console {
	return &Console{log: logger.Named("toast")}
}

// Notify prints the rendered notification.
func (c *Console) Notify(ctx context.Context, title, body string) error {
	c.log.Info(ctx, title, logger.String("body", body))
	return nil
}
