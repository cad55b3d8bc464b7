package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bonebunny/lootledger/internal/adapters/runlog"
	"github.com/bonebunny/lootledger/internal/config"
	"github.com/bonebunny/lootledger/pkg/logger"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Summarize recorded sessions from the run log",
	RunE: func(c *cobra.Command, args []string) error {
		return runSessions(c)
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(c *cobra.Command) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	cfg, err := config.Load(context.Background())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	runs, err := runlog.ReadRuns(cfg.RunLogPath())
	if err != nil {
		return fmt.Errorf("reading run log: %w", err)
	}
	summaries := runlog.SummarizeSessions(runs)
	if len(summaries) == 0 {
		fmt.Fprintln(c.OutOrStdout(), "no recorded sessions")
		return nil
	}

	w := tabwriter.NewWriter(c.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tSTARTED\tMAPS\tVALUE\tPER HOUR")
	for _, s := range summaries {
		id := s.SessionID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%.1f\t%.1f\n",
			id, s.FirstRunTS, s.Maps, s.TotalValue, s.ValuePerHour())
	}
	return w.Flush()
}
