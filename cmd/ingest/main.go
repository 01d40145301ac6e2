// Package main imports candle and calendar CSV files into storage.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"event-impact-lab/internal/app"
	"event-impact-lab/internal/config"
	"event-impact-lab/internal/ingestion"
	"event-impact-lab/internal/logger"
)

var (
	configPath  string
	candleFiles []string
	eventFiles  []string
	calendarID  string

	forceMigrate bool
)

var rootCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Import M1 candles and calendar events",
	Long: `Import M1 candle files and economic calendar files into the configured
storage. Candle files are given as SYMBOL=path or as a path whose file name
starts with the symbol (EURUSD_M1.csv). Re-importing a file is idempotent.`,
	SilenceUsage: true,
	RunE:         runImport,
}

var setPipCmd = &cobra.Command{
	Use:   "set-pip SYMBOL VALUE",
	Short: "Store a pip value override for a symbol",
	Args:  cobra.ExactArgs(2),
	RunE:  runSetPip,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE:  runMigrate,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("EIL_CONFIG"), "Path to YAML config file")
	rootCmd.Flags().StringSliceVar(&candleFiles, "candles", nil, "Candle CSV files (SYMBOL=path or path)")
	rootCmd.Flags().StringSliceVar(&eventFiles, "events", nil, "Calendar CSV files")
	rootCmd.Flags().StringVar(&calendarID, "calendar", "default", "Calendar ID for rows without a calendar_id column")

	rootCmd.AddCommand(setPipCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func open(cmd *cobra.Command) (*app.App, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if forceMigrate {
		cfg.Storage.AutoMigrate = true
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Storage.Backend == "memory" {
		log.Warn().Msg("memory storage selected: imported rows are discarded on exit")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	cmd.SetContext(ctx)

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		stop()
		return nil, nil, fmt.Errorf("open app: %w", err)
	}
	return a, func() { a.Close(); stop() }, nil
}

func runImport(cmd *cobra.Command, _ []string) error {
	if len(candleFiles) == 0 && len(eventFiles) == 0 {
		return fmt.Errorf("nothing to import: pass --candles and/or --events")
	}

	a, closeApp, err := open(cmd)
	if err != nil {
		return err
	}
	defer closeApp()

	var candleSrcs []ingestion.CandleSource
	for _, f := range candleFiles {
		symbol, path := "", f
		if i := strings.Index(f, "="); i > 0 {
			symbol, path = f[:i], f[i+1:]
		}
		candleSrcs = append(candleSrcs, ingestion.NewCSVCandleSource(path, symbol))
	}
	var eventSrcs []ingestion.EventSource
	for _, f := range eventFiles {
		eventSrcs = append(eventSrcs, ingestion.NewCSVEventSource(f, calendarID))
	}

	log := logger.Component(a.Log, "ingest")
	im := ingestion.NewImporter(ingestion.ImporterOptions{
		CandleStore: a.Stores.Candles,
		EventStore:  a.Stores.Events,
		BatchSize:   a.Config.Ingest.BatchSize,
		Workers:     a.Config.Ingest.Workers,
		Logger:      log,
	})

	start := time.Now()
	sum, err := im.ImportAll(cmd.Context(), candleSrcs, eventSrcs)
	log.Info().
		Int("files", sum.Files).
		Int("candles", sum.Candles).
		Int("events", sum.Events).
		Dur("duration", time.Since(start)).
		Msg("import finished")
	return err
}

func runSetPip(cmd *cobra.Command, args []string) error {
	value, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid pip value %q: %w", args[1], err)
	}

	a, closeApp, err := open(cmd)
	if err != nil {
		return err
	}
	defer closeApp()

	symbol := strings.ToUpper(args[0])
	if err := a.Stores.Symbols.SetPipValue(cmd.Context(), symbol, value); err != nil {
		return fmt.Errorf("set pip value: %w", err)
	}
	fmt.Printf("%s pip value set to %g\n", symbol, value)
	return nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	forceMigrate = true
	_, closeApp, err := open(cmd)
	if err != nil {
		return err
	}
	closeApp()
	fmt.Println("migrations applied")
	return nil
}
