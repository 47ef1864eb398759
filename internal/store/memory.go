package store

import (
	"sync"

	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/metrics"
	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/model"
)

// Memory holds the bounded recent history: a rolling window of readings and a
// separately bounded alert log. Both evict strict FIFO on overflow, and both
// order by arrival (producers may submit out-of-order timestamps).
type Memory struct {
	mu       sync.RWMutex
	readings []model.Reading
	alerts   []model.Alert

	readingCap int
	alertCap   int
}

func NewMemory(readingCap, alertCap int) *Memory {
	return &Memory{
		readings:   make([]model.Reading, 0, readingCap),
		alerts:     make([]model.Alert, 0, alertCap),
		readingCap: readingCap,
		alertCap:   alertCap,
	}
}

func (m *Memory) AppendReading(r model.Reading) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.readings) >= m.readingCap {
		m.readings = m.readings[1:]
	}
	m.readings = append(m.readings, r)
	metrics.WindowSize.WithLabelValues("readings").Set(float64(len(m.readings)))
}

func (m *Memory) AppendAlert(a model.Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.alerts) >= m.alertCap {
		m.alerts = m.alerts[1:]
	}
	m.alerts = append(m.alerts, a)
	metrics.WindowSize.WithLabelValues("alerts").Set(float64(len(m.alerts)))
}

// RecentReadings returns the last n readings (or fewer) in arrival order.
// The returned slice is a copy; readers never observe a partial append.
func (m *Memory) RecentReadings(n int) []model.Reading {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n <= 0 || n > len(m.readings) {
		n = len(m.readings)
	}
	out := make([]model.Reading, n)
	copy(out, m.readings[len(m.readings)-n:])
	return out
}

// RecentAlerts is symmetric with RecentReadings.
func (m *Memory) RecentAlerts(n int) []model.Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n <= 0 || n > len(m.alerts) {
		n = len(m.alerts)
	}
	out := make([]model.Alert, n)
	copy(out, m.alerts[len(m.alerts)-n:])
	return out
}

func (m *Memory) Len() (readings, alerts int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.readings), len(m.alerts)
}
