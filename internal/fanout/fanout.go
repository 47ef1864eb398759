// Package fanout delivers published events to every active subscriber without
// blocking the publisher on a slow one.
package fanout

import (
	"sync"

	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/metrics"
)

// Event is the wire envelope pushed to subscribers.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

const (
	EventInit    = "init_data"
	EventReading = "new_data"
	EventAlert   = "new_alert"
)

// Broker owns the subscriber registry. Each subscriber gets its own bounded
// queue; overflow drops that subscriber's oldest queued event and never
// touches other subscribers or the publisher.
type Broker struct {
	mu     sync.RWMutex
	subs   map[*Subscriber]struct{}
	buffer int
}

func NewBroker(buffer int) *Broker {
	if buffer <= 0 { buffer = 256 }
	return &Broker{subs: map[*Subscriber]struct{}{}, buffer: buffer}
}

// Subscribe registers a new subscriber. Initial events (the snapshot) are
// queued before registration, so they precede anything published afterwards.
// Callers that need snapshot-versus-live ordering against a store serialize
// Subscribe with their own publishes (the pipeline does).
func (b *Broker) Subscribe(initial ...Event) *Subscriber {
	s := &Subscriber{ch: make(chan Event, b.buffer)}
	for _, ev := range initial {
		s.push(ev)
	}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	metrics.Subscribers.Set(float64(len(b.subs)))
	b.mu.Unlock()
	return s
}

// Unsubscribe deregisters and releases the queue. Safe to call concurrently
// with an in-flight Publish and safe to call twice.
func (b *Broker) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	_, ok := b.subs[s]
	delete(b.subs, s)
	metrics.Subscribers.Set(float64(len(b.subs)))
	b.mu.Unlock()
	if ok {
		s.close()
	}
}

// Publish enqueues ev for every registered subscriber. Never blocks.
func (b *Broker) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		s.push(ev)
	}
}

func (b *Broker) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Subscriber is an opaque handle for one connected observer.
type Subscriber struct {
	mu      sync.Mutex
	ch      chan Event
	closed  bool
	dropped int
}

// C is the delivery channel; it is closed on Unsubscribe.
func (s *Subscriber) C() <-chan Event { return s.ch }

// Dropped reports how many queued events this subscriber lost to overflow.
func (s *Subscriber) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *Subscriber) push(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed { return }
	for {
		select {
		case s.ch <- ev:
			return
		default:
			// full: shed this subscriber's oldest queued event
			select {
			case <-s.ch:
				s.dropped++
				metrics.EventsDropped.Inc()
			default:
			}
		}
	}
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed { return }
	s.closed = true
	close(s.ch)
}
