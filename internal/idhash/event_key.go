package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeEventKey identifies a calendar release by its natural key.
// Formula: SHA256(currency|event_time_ms|description), hex-encoded.
func ComputeEventKey(currency string, eventTimeMs int64, description string) string {
	data := fmt.Sprintf("%s|%d|%s", currency, eventTimeMs, description)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
