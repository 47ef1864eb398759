package pipeline

import (
	"time"

	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/model"
)

// Normalize converts a raw producer payload into the canonical Reading.
// Unknown fields pass through unchanged; a missing timestamp gets the current
// wall clock. Malformed numeric fields stay as submitted — coercion to 0
// happens only at the scoring boundary, so history keeps the original values.
func Normalize(raw map[string]any, now time.Time) model.Reading {
	r := make(model.Reading, len(raw)+1)
	for k, v := range raw {
		r[k] = v
	}
	if _, ok := r["timestamp"]; !ok {
		r["timestamp"] = now.Format(time.RFC3339)
	}
	return r
}
