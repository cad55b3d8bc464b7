package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bonebunny/lootledger/internal/adapters/pricing"
	"github.com/bonebunny/lootledger/internal/app"
	"github.com/bonebunny/lootledger/internal/config"
	"github.com/bonebunny/lootledger/internal/domain/item"
	"github.com/bonebunny/lootledger/internal/domain/session"
	"github.com/bonebunny/lootledger/internal/domain/topdrops"
	"github.com/bonebunny/lootledger/internal/domain/valuation"
	"github.com/bonebunny/lootledger/internal/notify"
	"github.com/bonebunny/lootledger/pkg/logger"
	"github.com/bonebunny/lootledger/pkg/metrics"
)

var simulateItemsPath string

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run one map cycle with a fabricated post snapshot",
	Long: `Runs a full begin/end cycle without touching the inventory API:
the pre snapshot is empty and the post snapshot is fabricated, so every
item counts as loot. Prices still come from the live market feed.

Useful for checking pricing, notification, and log output end to end.`,
	RunE: func(c *cobra.Command, args []string) error {
		return runSimulate()
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateItemsPath, "items", "", "JSON file of items for the fabricated snapshot")
	rootCmd.AddCommand(simulateCmd)
}

// emptySnapshotter satisfies the flow's snapshot dependency with an always
// empty inventory.
type emptySnapshotter struct{}

func (emptySnapshotter) Capture(ctx context.Context, kind item.Kind) (item.Snapshot, error) {
	return item.NewSnapshot(nil, kind, time.Now()), nil
}

func runSimulate() error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	_ = logger.SetLevelString(cfg.LogLevel)
	metrics.Init(metrics.WithNamespace("lootledger"), metrics.WithMetricsEnabled(false))

	items, err := simulatedItems()
	if err != nil {
		return err
	}

	pricer := pricing.NewClient(cfg.PriceFeedURL, cfg.League)
	flow := app.NewFlow(emptySnapshotter{}, valuation.New(pricer),
		session.NewLedger(), topdrops.NewTracker(),
		cfg.Character,
		app.WithNotifiers(notify.NewConsole()),
	)

	if _, err := flow.StartSession(ctx); err != nil {
		return err
	}
	if err := flow.BeginUnit(ctx); err != nil {
		return err
	}
	if err := flow.EndUnitSimulated(ctx, items); err != nil {
		return err
	}

	vars := flow.Vars()
	fmt.Printf("simulated map value: %v (%v/h)\n", vars["map_value_fmt"], vars["map_value_per_hour_fmt"])
	return nil
}

// simulatedItems loads the fabricated snapshot from --items, or falls back
// to a small built-in currency pile.
func simulatedItems() ([]item.Record, error) {
	if simulateItemsPath == "" {
		return []item.Record{
			{ID: "sim-1", TypeName: "Chaos Orb", StackSize: 12},
			{ID: "sim-2", TypeName: "Exalted Orb", StackSize: 2},
			{ID: "sim-3", TypeName: "Orb of Alchemy", StackSize: 30},
		}, nil
	}

	data, err := os.ReadFile(simulateItemsPath)
	if err != nil {
		return nil, fmt.Errorf("reading items file: %w", err)
	}
	var items []item.Record
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing items file: %w", err)
	}
	return items, nil
}
