// Package main runs one-shot analyses from the command line and prints the
// result as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"event-impact-lab/internal/analysis"
	"event-impact-lab/internal/app"
	"event-impact-lab/internal/config"
	"event-impact-lab/internal/domain"
	"event-impact-lab/internal/ingestion"
	"event-impact-lab/internal/logger"
)

var (
	configPath string
	symbol     string
	eventType  string
)

var rootCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Measure event-driven volatility and test straddle setups",
	Long: `Run a single analysis against the configured storage and print the
result as JSON on stdout. Logs go to the configured log output.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("EIL_CONFIG"), "Path to YAML config file")
	rootCmd.PersistentFlags().StringVarP(&symbol, "symbol", "s", "", "Instrument, e.g. EURUSD")
	rootCmd.PersistentFlags().StringVarP(&eventType, "event", "e", "", "Event type key, e.g. \"Non-Farm Payrolls\"")

	volatilityCmd.Flags().StringVar(&eventTime, "time", "", "Event time (RFC3339 or 2006-01-02 15:04:05, UTC)")
	volatilityCmd.Flags().IntVar(&windowMinutes, "window", 0, "Window minutes (0 = config default)")
	volatilityCmd.Flags().IntVar(&baselineDays, "baseline", 0, "Baseline days (0 = config default)")

	for _, c := range []*cobra.Command{straddleCmd, backtestCmd} {
		c.Flags().StringVar(&mode, "mode", string(domain.ModeDirectional), "Straddle mode (directional|simultaneous)")
	}
	backtestCmd.Flags().StringVar(&scenario, "scenario", "", "Cost scenario (optimistic|realistic|pessimistic|degraded)")

	heatmapCmd.Flags().StringSliceVar(&symbols, "symbols", nil, "Symbols to compare")
	heatmapCmd.Flags().StringSliceVar(&eventTypes, "events", nil, "Event types (empty = every type found)")
	heatmapCmd.Flags().StringVar(&minImpact, "min-impact", "", "Lowest impact tier (HIGH|MEDIUM|LOW)")
	heatmapCmd.Flags().StringVar(&calendarID, "calendar", "", "Restrict to one calendar")

	verifyCmd.Flags().StringVar(&runID, "run-id", "", "Backtest run ID")

	hourlyCmd.Flags().IntVar(&hour, "hour", 0, "UTC hour 0-23")
	hourlyCmd.Flags().IntVar(&quarter, "quarter", 0, "Quarter of the hour 0-3")

	eventTypesCmd.Flags().StringVar(&minImpact, "min-impact", "", "Lowest impact tier (HIGH|MEDIUM|LOW)")

	rootCmd.AddCommand(
		volatilityCmd, impactCmd, straddleCmd, backtestCmd, scenariosCmd, verifyCmd,
		decayCmd, heatmapCmd, hourlyCmd, eventTypesCmd, reportCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Subcommand flags.
var (
	eventTime     string
	windowMinutes int
	baselineDays  int
	mode          string
	scenario      string
	symbols       []string
	eventTypes    []string
	minImpact     string
	calendarID    string
	hour          int
	quarter       int
	runID         string
)

var volatilityCmd = &cobra.Command{
	Use:   "volatility",
	Short: "Volatility metrics around one event time",
	RunE: withService(func(ctx context.Context, svc *analysis.Service) (any, error) {
		t, err := ingestion.ParseTime(eventTime)
		if err != nil {
			return nil, fmt.Errorf("%w: --time: %v", domain.ErrValidation, err)
		}
		return svc.VolatilityMetrics(ctx, symbol, t, windowMinutes, baselineDays)
	}),
}

var impactCmd = &cobra.Command{
	Use:   "impact",
	Short: "Impact profile of an event type on a symbol",
	RunE: withService(func(ctx context.Context, svc *analysis.Service) (any, error) {
		return svc.ImpactProfile(ctx, symbol, eventType)
	}),
}

var straddleCmd = &cobra.Command{
	Use:   "straddle",
	Short: "Derive straddle parameters from the impact profile",
	RunE: withService(func(ctx context.Context, svc *analysis.Service) (any, error) {
		m, err := domain.ParseStraddleMode(mode)
		if err != nil {
			return nil, err
		}
		return svc.StraddleParameters(ctx, symbol, eventType, m)
	}),
}

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay derived straddle parameters over every occurrence",
	RunE: withService(func(ctx context.Context, svc *analysis.Service) (any, error) {
		m, err := domain.ParseStraddleMode(mode)
		if err != nil {
			return nil, err
		}
		return svc.Backtest(ctx, analysis.BacktestRequest{
			Symbol:    symbol,
			EventType: eventType,
			Mode:      m,
			Scenario:  scenario,
		})
	}),
}

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "Compare stored backtests across cost scenarios",
	RunE: withService(func(ctx context.Context, svc *analysis.Service) (any, error) {
		return svc.CompareScenarios(ctx, symbol, eventType)
	}),
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Replay a stored backtest run and diff its trades",
	RunE: withService(func(ctx context.Context, svc *analysis.Service) (any, error) {
		return svc.VerifyBacktest(ctx, runID)
	}),
}

var decayCmd = &cobra.Command{
	Use:   "decay",
	Short: "Volatility decay after release and recommended timeout",
	RunE: withService(func(ctx context.Context, svc *analysis.Service) (any, error) {
		return svc.Decay(ctx, symbol, eventType)
	}),
}

var heatmapCmd = &cobra.Command{
	Use:   "heatmap",
	Short: "Mean volatility multiplier per (symbol, event type)",
	RunE: withService(func(ctx context.Context, svc *analysis.Service) (any, error) {
		req := analysis.HeatmapRequest{
			Symbols:    symbols,
			EventTypes: eventTypes,
			CalendarID: calendarID,
		}
		if len(req.Symbols) == 0 && symbol != "" {
			req.Symbols = []string{symbol}
		}
		if minImpact != "" {
			imp, err := domain.ParseImpact(minImpact)
			if err != nil {
				return nil, err
			}
			req.MinImpact = imp
		}
		return svc.Heatmap(ctx, req)
	}),
}

var hourlyCmd = &cobra.Command{
	Use:   "hourly",
	Short: "Mean range of one quarter-hour across the whole history",
	RunE: withService(func(ctx context.Context, svc *analysis.Service) (any, error) {
		return svc.HourlyVolatility(ctx, symbol, hour, quarter)
	}),
}

var eventTypesCmd = &cobra.Command{
	Use:   "event-types",
	Short: "List event types affecting a symbol",
	RunE: withService(func(ctx context.Context, svc *analysis.Service) (any, error) {
		var imp domain.Impact
		if minImpact != "" {
			var err error
			if imp, err = domain.ParseImpact(minImpact); err != nil {
				return nil, err
			}
		}
		return svc.EventTypes(ctx, symbol, imp)
	}),
}

// withService opens the app, runs fn and prints its result as indented JSON.
func withService(fn func(ctx context.Context, svc *analysis.Service) (any, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		a, closeApp, err := open(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		out, err := fn(cmd.Context(), a.Service)
		if err != nil {
			return fmt.Errorf("%s: %w", cmd.Name(), err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
}

func open(cmd *cobra.Command) (*app.App, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	cmd.SetContext(ctx)

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		stop()
		return nil, nil, fmt.Errorf("open app: %w", err)
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	return a, func() { a.Close(); stop() }, nil
}
