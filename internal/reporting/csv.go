package reporting

import (
	"fmt"
	"strings"
	"time"

	"event-impact-lab/internal/domain"
)

// RenderCSV renders backtest rows as CSV string.
func RenderCSV(rows []BacktestRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("run_id,mode,scenario_id,occurrences,entered_trades,wins,whipsaws,timeouts,")
	sb.WriteString("win_rate,whipsaw_frequency,profit_factor,total_net_pips,avg_net_pips,median_net_pips,")
	sb.WriteString("max_drawdown_pips,max_consecutive_losses,confidence_score,low_sample_warning\n")

	// Rows
	for _, b := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%d,%d,%d,%d,%d,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%d,%.2f,%t\n",
			b.RunID,
			b.Mode,
			b.ScenarioID,
			b.Occurrences,
			b.EnteredTrades,
			b.Wins,
			b.Whipsaws,
			b.Timeouts,
			b.WinRate,
			b.WhipsawFrequency,
			b.ProfitFactor,
			b.TotalNetPips,
			b.AvgNetPips,
			b.MedianNetPips,
			b.MaxDrawdownPips,
			b.MaxConsecutiveLosses,
			b.ConfidenceScore,
			b.LowSampleWarning,
		))
	}

	return sb.String()
}

// RenderTradesCSV renders simulated trades as CSV string.
func RenderTradesCSV(trades []domain.TradeResult) string {
	var sb strings.Builder

	sb.WriteString("trade_id,event_time,side,outcome,entry_price,fill_price,exit_price,")
	sb.WriteString("gross_pips,net_pips,mfe_pips,mae_pips,fill_time,exit_time\n")

	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%.5f,%.5f,%.5f,%.2f,%.2f,%.2f,%.2f,%s,%s\n",
			t.ID,
			t.EventTime.Format(time.RFC3339),
			t.Side,
			t.Outcome,
			t.EntryPrice,
			t.FillPrice,
			t.ExitPrice,
			t.GrossPips,
			t.NetPips,
			t.MFEPips,
			t.MAEPips,
			optTime(t.FillTime),
			optTime(t.ExitTime),
		))
	}

	return sb.String()
}

func optTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
