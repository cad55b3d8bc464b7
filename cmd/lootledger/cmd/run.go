package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bonebunny/lootledger/internal/adapters/inventory"
	"github.com/bonebunny/lootledger/internal/adapters/maplog"
	"github.com/bonebunny/lootledger/internal/adapters/overlay"
	"github.com/bonebunny/lootledger/internal/adapters/pricing"
	"github.com/bonebunny/lootledger/internal/adapters/runlog"
	"github.com/bonebunny/lootledger/internal/app"
	"github.com/bonebunny/lootledger/internal/config"
	"github.com/bonebunny/lootledger/internal/domain/session"
	"github.com/bonebunny/lootledger/internal/domain/topdrops"
	"github.com/bonebunny/lootledger/internal/domain/valuation"
	"github.com/bonebunny/lootledger/internal/notify"
	"github.com/bonebunny/lootledger/pkg/logger"
	"github.com/bonebunny/lootledger/pkg/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the tracker daemon",
	Long: `Starts a tracking session and serves it until interrupted.

Map runs are driven from stdin (b=begin, e=end, n=new session, s=status,
q=quit), from the overlay's trigger endpoints, and, when auto_detect is
on, from map-generation lines in the game client log.`,
	RunE: func(c *cobra.Command, args []string) error {
		return runDaemon()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDaemon() error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel))
		_ = logger.SetLevelString("info")
	}

	metrics.Init(metrics.WithNamespace("lootledger"))

	flow, hub, err := buildFlow(cfg)
	if err != nil {
		return err
	}

	info, err := flow.StartSession(ctx)
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	log.Info(ctx, "tracking started",
		logger.String("character", cfg.Character),
		logger.String("session_id", info.SessionID),
	)

	if cfg.OverlayEnabled {
		srv := overlay.NewServer(cfg.OverlayAddr, flow, hub)
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Error(ctx, "overlay server failed", logger.Error(err))
			}
		}()
	}

	if cfg.AutoDetect && cfg.ClientLogPath != "" {
		watcher := maplog.NewWatcher(cfg.ClientLogPath, func(m maplog.Info) {
			log.Info(ctx, "map generation detected", logger.String("map", m.Name))
			if err := flow.BeginUnit(ctx); err != nil {
				log.Warn(ctx, "auto begin failed", logger.Error(err))
			}
		})
		go func() {
			if err := watcher.Run(ctx); err != nil {
				log.Warn(ctx, "client log watcher stopped", logger.Error(err))
			}
		}()
	}

	go readTriggers(ctx, stop, flow, cfg.MinDisplayValue)

	<-ctx.Done()

	// Detach from the canceled context so the final session record and
	// notification still go out.
	final, err := flow.EndSession(context.Background())
	if err != nil {
		log.Warn(context.Background(), "session end failed", logger.Error(err))
		return nil
	}
	log.Info(context.Background(), "tracking stopped",
		logger.Int("maps", final.MapsCompleted),
		logger.Float64("total_value", final.TotalValue),
	)
	return nil
}

// buildFlow assembles the flow controller and the overlay hub from config.
func buildFlow(cfg *config.Config) (*app.Flow, *overlay.Hub, error) {
	tokens := inventory.NewOAuthTokenSource(cfg.AuthURL, cfg.ClientID, cfg.ClientSecret)
	client := inventory.NewClient(cfg.APIBaseURL, tokens)
	snapshots := inventory.NewService(client, cfg.Character,
		inventory.WithMinInterval(cfg.SnapshotMinInterval()),
	)

	pricer := pricing.NewClient(cfg.PriceFeedURL, cfg.League)
	valuer := valuation.New(pricer)

	runs, err := runlog.NewLog(cfg.RunLogPath())
	if err != nil {
		return nil, nil, fmt.Errorf("opening run log: %w", err)
	}
	sessions, err := runlog.NewLog(cfg.SessionLogPath())
	if err != nil {
		return nil, nil, fmt.Errorf("opening session log: %w", err)
	}

	hub := overlay.NewHub()
	opts := []app.Option{
		app.WithRunLog(runs),
		app.WithSessionLog(sessions),
		app.WithNotifiers(notify.NewConsole()),
		app.WithVarSinks(hub),
	}
	if cfg.ClientLogPath != "" {
		logPath, scanBytes := cfg.ClientLogPath, cfg.ClientLogScanBytes
		opts = append(opts, app.WithMetadataSource(func() (maplog.Info, error) {
			return maplog.LastMap(logPath, scanBytes)
		}))
	}

	flow := app.NewFlow(snapshots, valuer,
		session.NewLedger(), topdrops.NewTracker(),
		cfg.Character, opts...)
	return flow, hub, nil
}

// readTriggers drives the flow from stdin until the context ends.
func readTriggers(ctx context.Context, stop func(), flow *app.Flow, minDisplayValue float64) {
	log := logger.Named("triggers")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		switch strings.TrimSpace(strings.ToLower(scanner.Text())) {
		case "b", "begin":
			if err := flow.BeginUnit(ctx); err != nil {
				log.Warn(ctx, "begin failed", logger.Error(err))
			}
		case "e", "end":
			if err := flow.EndUnit(ctx); err != nil {
				log.Warn(ctx, "end failed", logger.Error(err))
			}
		case "n", "new":
			if _, err := flow.NewSession(ctx); err != nil {
				log.Warn(ctx, "new session failed", logger.Error(err))
			}
		case "s", "status":
			printStatus(flow.Vars(), minDisplayValue)
		case "q", "quit":
			stop()
			return
		case "":
		default:
			fmt.Println("commands: b=begin  e=end  n=new session  s=status  q=quit")
		}
	}
}

// printStatus renders the variable bag as a compact console status block.
// Drop rows below the display threshold are hidden.
func printStatus(vars map[string]any, minDisplayValue float64) {
	fmt.Printf("maps: %v  value: %v  per hour: %v  time: %v\n",
		vars["session_maps_completed"],
		vars["session_total_value_fmt"],
		vars["session_value_per_hour_fmt"],
		vars["session_time"],
	)
	for i := 1; i <= topdrops.MaxDrops; i++ {
		prefix := fmt.Sprintf("session_top_drop_%d", i)
		name, ok := vars[prefix+"_name"]
		if !ok {
			break
		}
		if value, ok := vars[prefix+"_value"].(float64); ok && value < minDisplayValue {
			continue
		}
		fmt.Printf("  top %d: %v x%v (%v)\n", i, name, vars[prefix+"_stack"], vars[prefix+"_value_fmt"])
	}
}
