package model

import (
	"strconv"
	"time"
)

// FeatureFields is the fixed vector the anomaly model scores, in order.
var FeatureFields = []string{"temperature", "humidity", "pressure"}

// Reading is one normalized sensor observation. Unknown fields pass through
// untouched so producers can ship whatever schema they have; only "timestamp"
// is guaranteed present after normalization.
type Reading map[string]any

// Timestamp returns the reading's timestamp field, or "" if missing.
func (r Reading) Timestamp() string {
	if s, ok := r["timestamp"].(string); ok { return s }
	return ""
}

// Feature coerces a field to float64 for scoring. Missing or non-numeric
// fields score as 0 — the canonical value in the reading is never rewritten.
func (r Reading) Feature(name string) float64 {
	switch v := r[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil { return f }
	}
	return 0
}

// Features extracts the fixed scoring vector.
func (r Reading) Features() []float64 {
	out := make([]float64, len(FeatureFields))
	for i, f := range FeatureFields {
		out[i] = r.Feature(f)
	}
	return out
}

// Alert records a reading classified anomalous. The JSON shape (data,
// timestamp, type) is the dashboard wire format.
type Alert struct {
	Data      Reading `json:"data"`
	Timestamp string  `json:"timestamp"`
	Type      string  `json:"type"`
}

const AlertAnomaly = "anomaly_detected"

// NewAlert wraps r with the detection time.
func NewAlert(r Reading, at time.Time) Alert {
	return Alert{Data: r, Timestamp: at.Format(time.RFC3339), Type: AlertAnomaly}
}
