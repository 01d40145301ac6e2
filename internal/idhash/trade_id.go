package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic trade ID using SHA256.
// Formula: SHA256(symbol|event_type|params_key|scenario_id|event_time_ms)
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(
	symbol string,
	eventType string,
	paramsKey string,
	scenarioID string,
	eventTimeMs int64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d",
		symbol,
		eventType,
		paramsKey,
		scenarioID,
		eventTimeMs,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ParamsKey renders straddle parameters canonically so two runs with the
// same settings hash to the same trade IDs.
// Format: mode:offset:stop:trailing:timeout:lead with distances to 0.1 pip.
func ParamsKey(mode string, offset, stop, trailing float64, timeout, lead int) string {
	return fmt.Sprintf("%s:%.1f:%.1f:%.1f:%d:%d", mode, offset, stop, trailing, timeout, lead)
}
