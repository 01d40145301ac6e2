// Package main runs the HTTP analysis API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"event-impact-lab/internal/api"
	"event-impact-lab/internal/app"
	"event-impact-lab/internal/config"
	"event-impact-lab/internal/logger"
)

var (
	configPath string
	addr       string
	preload    string
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Serve the event impact analysis API",
	Long: `Serve volatility, impact profile, straddle parameter and backtest
endpoints over HTTP. Prometheus metrics are exposed on /metrics.`,
	SilenceUsage: true,
	RunE:         runServer,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", os.Getenv("EIL_CONFIG"), "Path to YAML config file")
	rootCmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	rootCmd.Flags().StringVar(&preload, "preload", "", "Comma-separated symbols to load into the candle index at startup")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open app: %w", err)
	}
	defer a.Close()

	for _, sym := range splitList(preload) {
		if err := a.Service.Reload(ctx, sym); err != nil {
			log.Warn().Err(err).Str("symbol", sym).Msg("preload failed")
			continue
		}
		log.Info().Str("symbol", sym).Msg("preloaded")
	}

	srv := api.NewServer(api.NewHandler(a.Service, logger.Component(log, "api")), cfg.Server, log)
	log.Info().
		Str("addr", cfg.Server.Addr).
		Str("env", cfg.Environment).
		Str("storage", cfg.Storage.Backend).
		Bool("redis", cfg.Redis.Enabled).
		Msg("server starting")

	if err := srv.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}
