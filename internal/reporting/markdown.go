package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# %s on %s\n\n", r.EventType, r.Symbol))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Pip value: %g\n\n", r.PipValue))

	// Impact Profile
	sb.WriteString("## Impact Profile\n\n")
	if p := r.Profile; p != nil {
		pip := r.PipValue
		if pip <= 0 {
			pip = 1
		}
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Occurrences | %d |\n", p.Occurrences))
		sb.WriteString(fmt.Sprintf("| Skipped Occurrences | %d |\n", p.SkippedOccurrences))
		sb.WriteString(fmt.Sprintf("| Volatility Increase | %.2f%% |\n", p.VolatilityIncreasePct))
		sb.WriteString(fmt.Sprintf("| Peak ATR (pips) | %.2f |\n", p.PeakATR/pip))
		sb.WriteString(fmt.Sprintf("| Peak Minute | %d |\n", p.PeakMinute))
		sb.WriteString(fmt.Sprintf("| Noise Before / During / After | %.2f / %.2f / %.2f |\n",
			p.NoiseBefore, p.NoiseDuring, p.NoiseAfter))
		sb.WriteString(fmt.Sprintf("| P95 Wick (pips) | %.2f |\n", p.P95Wick/pip))
		sb.WriteString(fmt.Sprintf("| P95 Range (pips) | %.2f |\n", p.P95Range/pip))
		sb.WriteString(fmt.Sprintf("| Avg Deviation | %.4f |\n", p.AvgDeviation))
		sb.WriteString(fmt.Sprintf("| Surprises | %d |\n", p.SurpriseCount))
	} else {
		sb.WriteString("No impact profile available.\n")
	}
	sb.WriteString("\n")

	// Decay
	sb.WriteString("## Volatility Decay\n\n")
	sb.WriteString(fmt.Sprintf("Peak %d min after release at %.2f pips, fading %.3f pips/min (%s). Recommended timeout: %d min.\n\n",
		r.Decay.PeakDelay, r.Decay.PeakATRPips, r.Decay.DecayRate, r.Decay.Speed, r.Decay.RecommendedTimeout))

	// Parameters
	sb.WriteString("## Straddle Parameters\n\n")
	if len(r.Parameters) > 0 {
		sb.WriteString("| Mode | Offset | SL | Trailing | Timeout | SL Recovery | Entry Lead | Recent ATR | Noise |\n")
		sb.WriteString("|------|--------|----|----------|---------|-------------|------------|------------|-------|\n")
		for _, p := range r.Parameters {
			sb.WriteString(fmt.Sprintf("| %s | %.1f | %.1f | %.1f | %d | %.1f | %d | %.2f | %.2f |\n",
				p.Mode, p.OffsetPips, p.StopLossPips, p.TrailingStopPips, p.TimeoutMinutes,
				p.SLRecoveryPips, p.EntryLeadMinutes, p.RecentATRPips, p.NoiseRatio))
		}
	} else {
		sb.WriteString("No parameters available.\n")
	}
	sb.WriteString("\n")

	// Data Quality
	sb.WriteString("## Data Quality\n\n")
	if len(r.DataQuality.SufficiencyChecks) > 0 {
		sb.WriteString("| Check | Threshold | Actual | Status |\n")
		sb.WriteString("|-------|-----------|--------|--------|\n")
		for _, check := range r.DataQuality.SufficiencyChecks {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				check.Name, check.Threshold, check.Actual, passFail(check.Pass)))
		}
		sb.WriteString("\n")

		if r.DataQuality.AllChecksPassed {
			sb.WriteString("**All checks passed.**\n\n")
		} else {
			sb.WriteString("**Some checks failed.** Treat the results below as low confidence.\n\n")
		}
	} else {
		sb.WriteString("No data quality checks performed.\n\n")
	}

	// Backtests
	sb.WriteString("## Backtests\n\n")
	if len(r.Backtests) > 0 {
		sb.WriteString("| Mode | Scenario | Occ | Entered | WinRate | Whipsaw | PF | Net | Avg | Median | MaxDD | MaxLoss | Confidence |\n")
		sb.WriteString("|------|----------|-----|---------|---------|---------|----|-----|-----|--------|-------|---------|------------|\n")
		for _, b := range r.Backtests {
			conf := fmt.Sprintf("%.0f", b.ConfidenceScore)
			if b.LowSampleWarning {
				conf += " (low sample)"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %.4f | %.4f | %.2f | %.1f | %.2f | %.2f | %.1f | %d | %s |\n",
				b.Mode, b.ScenarioID, b.Occurrences, b.EnteredTrades, b.WinRate, b.WhipsawFrequency,
				b.ProfitFactor, b.TotalNetPips, b.AvgNetPips, b.MedianNetPips, b.MaxDrawdownPips,
				b.MaxConsecutiveLosses, conf))
		}
	} else {
		sb.WriteString("No backtests available.\n")
	}
	sb.WriteString("\n")

	// Scenario Sensitivity
	sb.WriteString("## Scenario Sensitivity\n\n")
	if len(r.ScenarioSensitivity) > 0 {
		sb.WriteString("| Mode | Realistic | Pessimistic | Degraded | Degradation (pips) |\n")
		sb.WriteString("|------|-----------|-------------|----------|--------------------|\n")
		for _, s := range r.ScenarioSensitivity {
			sb.WriteString(fmt.Sprintf("| %s | %.2f | %.2f | %.2f | %.2f |\n",
				s.Mode, s.RealisticAvg, s.PessimisticAvg, s.DegradedAvg, s.DegradationPips))
		}
	} else {
		sb.WriteString("No scenario sensitivity data available.\n")
	}
	sb.WriteString("\n")

	// Decision Gate
	sb.WriteString("## Decision Gate\n\n")
	if len(r.Decisions) > 0 {
		for _, d := range r.Decisions {
			sb.WriteString(fmt.Sprintf("### %s: %s\n\n", d.Mode, d.Decision))
			sb.WriteString("| Criterion | Threshold | Actual | Status |\n")
			sb.WriteString("|-----------|-----------|--------|--------|\n")
			for _, c := range d.GOCriteria {
				sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", c.Name, c.Threshold, c.Actual, passFail(c.Pass)))
			}
			for _, c := range d.NOGOChecks {
				status := "NOT TRIGGERED"
				if !c.Pass {
					status = "TRIGGERED"
				}
				sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", c.Name, c.Threshold, c.Actual, status))
			}
			sb.WriteString("\n")
		}
	} else {
		sb.WriteString("No decision evaluated (needs realistic and degraded runs).\n\n")
	}

	// Trade References
	sb.WriteString("## Trade References\n\n")
	if len(r.TradeReferences) > 0 {
		sb.WriteString("| Event Time | Side | Outcome | Net Pips | MFE | MAE | Trade |\n")
		sb.WriteString("|------------|------|---------|----------|-----|-----|-------|\n")
		for _, t := range r.TradeReferences {
			side := string(t.Side)
			if side == "" {
				side = "-"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %.1f | %.1f | %.1f | %s |\n",
				t.EventTime.Format(time.RFC3339), side, t.Outcome, t.NetPips, t.MFEPips, t.MAEPips, shortID(t.ID)))
		}
	} else {
		sb.WriteString("No trade references available.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func passFail(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
