package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"event-impact-lab/internal/reporting"
)

var (
	outputDir      string
	minOccurrences int
	scenarios      []string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write a Markdown report with backtest and trade CSVs",
	Long: `Study one event type on one symbol: impact profile, decay, parameters for
both straddle modes, and a backtest per (mode, cost scenario). Writes
<symbol>_<event>.md, <symbol>_<event>_backtests.csv and
<symbol>_<event>_trades.csv into the output directory.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&outputDir, "output-dir", "output", "Output directory")
	reportCmd.Flags().IntVar(&minOccurrences, "min-occurrences", 5, "Sample size below which data quality checks fail")
	reportCmd.Flags().StringSliceVar(&scenarios, "scenarios", nil, "Cost scenarios (default realistic,pessimistic,degraded)")
}

func runReport(cmd *cobra.Command, _ []string) error {
	a, closeApp, err := open(cmd)
	if err != nil {
		return err
	}
	defer closeApp()

	gen := reporting.NewGenerator(a.Service, minOccurrences).
		WithScenarios(scenarios...).
		WithThresholds(a.Config.Analysis.Decision)
	r, err := gen.Generate(cmd.Context(), symbol, eventType)
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	base := fileBase(r.Symbol, r.EventType)
	files := map[string]string{
		base + ".md":            reporting.RenderMarkdown(r),
		base + "_backtests.csv": reporting.RenderCSV(r.Backtests),
		base + "_trades.csv":    reporting.RenderTradesCSV(r.TradeReferences),
	}
	for name, content := range files {
		path := filepath.Join(outputDir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		a.Log.Info().Str("path", path).Msg("report file written")
	}

	for _, d := range r.Decisions {
		a.Log.Info().Str("mode", string(d.Mode)).Str("decision", string(d.Decision)).Msg("decision gate")
	}
	if !r.DataQuality.AllChecksPassed {
		a.Log.Warn().Str("symbol", r.Symbol).Str("event_type", r.EventType).Msg("data quality checks failed")
	}
	return nil
}

// fileBase turns "EURUSD", "Non-Farm Payrolls" into "EURUSD_non_farm_payrolls".
func fileBase(symbol, eventType string) string {
	var sb strings.Builder
	sb.WriteString(symbol)
	sb.WriteByte('_')
	lastUnderscore := true
	for _, r := range strings.ToLower(eventType) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			sb.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(sb.String(), "_")
}
