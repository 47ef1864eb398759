// Package pipeline orchestrates ingestion: normalize, store, score, alert,
// publish. It is the single entry point for every producer adapter.
package pipeline

import (
	"errors"
	"sync"
	"time"

	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/anomaly"
	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/fanout"
	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/logger"
	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/metrics"
	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/model"
	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/store"
)

// ErrMalformed is the only error Submit surfaces: the payload could not be
// interpreted as a record at all. Scoring, archive and delivery failures are
// absorbed so one bad reading never stalls ingestion.
var ErrMalformed = errors.New("pipeline: malformed payload")

// Archiver is the optional durable sink for alerts.
type Archiver interface {
	PutAlert(a model.Alert) error
}

type Pipeline struct {
	log     *logger.Logger
	store   *store.Memory
	cls     anomaly.Classifier
	broker  *fanout.Broker
	archive Archiver // nil when archiving is disabled

	// one mutual-exclusion domain: keeps append+publish atomic with respect
	// to Subscribe, so a new subscriber sees snapshot then live with no gap
	// or duplicate
	mu sync.Mutex
}

func New(log *logger.Logger, st *store.Memory, cls anomaly.Classifier, broker *fanout.Broker, archive Archiver) *Pipeline {
	return &Pipeline{log: log, store: st, cls: cls, broker: broker, archive: archive}
}

// Submit ingests one raw record from any producer. Safe for concurrent
// callers; the reading is visible to RecentReadings before Submit returns.
func (p *Pipeline) Submit(source string, raw map[string]any) error {
	if len(raw) == 0 {
		metrics.ReadingsRejected.WithLabelValues(source).Inc()
		return ErrMalformed
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	r := Normalize(raw, time.Now())
	p.store.AppendReading(r)
	metrics.ReadingsIngested.WithLabelValues(source).Inc()

	anomalous, err := p.cls.Classify(r)
	if err != nil {
		metrics.ScoringErrors.Inc()
		p.log.Warn().Err(err).Msg("scoring failed, reading treated as normal")
		anomalous = false
	}
	if anomalous {
		a := model.NewAlert(r, time.Now())
		p.store.AppendAlert(a)
		if p.archive != nil {
			if err := p.archive.PutAlert(a); err != nil {
				p.log.Warn().Err(err).Msg("alert archive write failed")
			}
		}
		metrics.Anomalies.Inc()
		p.log.Warn().Str("source", source).Str("timestamp", r.Timestamp()).Msg("anomaly detected")
		p.broker.Publish(fanout.Event{Type: fanout.EventAlert, Payload: a})
	}
	p.broker.Publish(fanout.Event{Type: fanout.EventReading, Payload: r})
	return nil
}

// Subscribe registers an observer and hands it the initial snapshot (last 100
// readings, last 20 alerts) ahead of any event published after registration.
func (p *Pipeline) Subscribe() *fanout.Subscriber {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := map[string]any{
		"sensor_data": p.store.RecentReadings(100),
		"anomalies":   p.store.RecentAlerts(20),
	}
	return p.broker.Subscribe(fanout.Event{Type: fanout.EventInit, Payload: snap})
}

// Unsubscribe releases the handle; a no-op for an already removed subscriber.
func (p *Pipeline) Unsubscribe(s *fanout.Subscriber) { p.broker.Unsubscribe(s) }

// Recent exposes the store to query handlers.
func (p *Pipeline) RecentReadings(n int) []model.Reading { return p.store.RecentReadings(n) }
func (p *Pipeline) RecentAlerts(n int) []model.Alert     { return p.store.RecentAlerts(n) }
