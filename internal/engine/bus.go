package engine

import (
	"sync"
	"time"
)

// Delivery modes for bus topics.
type BusMode int

const (
	// Immediate delivers each published event to subscribers synchronously.
	Immediate BusMode = iota
	// Debounced coalesces rapid publishes on a topic and delivers only the
	// latest event once the topic has been quiet for the debounce window.
	Debounced
)

// BusEvent is one message on the in-process bus.
type BusEvent struct {
	Topic   string
	Payload any
}

// BusHandler receives events for a subscribed topic.
type BusHandler func(BusEvent)

// Bus is a small in-process publish/subscribe channel. Topics default to
// Immediate; high-churn topics (per-record status updates during a drain)
// can be switched to Debounced so subscribers see one coalesced event
// instead of fifty.
type Bus struct {
	mu      sync.Mutex
	subs    map[string][]BusHandler
	modes   map[string]BusMode
	window  time.Duration
	pending map[string]BusEvent
	timers  map[string]*time.Timer
}

// NewBus creates a bus with the given debounce window for Debounced topics.
func NewBus(window time.Duration) *Bus {
	return &Bus{
		subs:    make(map[string][]BusHandler),
		modes:   make(map[string]BusMode),
		window:  window,
		pending: make(map[string]BusEvent),
		timers:  make(map[string]*time.Timer),
	}
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic string, h BusHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], h)
}

// SetMode sets the delivery mode for a topic.
func (b *Bus) SetMode(topic string, m BusMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.modes[topic] = m
}

// Publish sends an event on a topic. Immediate topics invoke handlers on the
// caller's goroutine; Debounced topics stash the event and (re)arm the
// topic's timer, so only the last event in a burst is delivered.
func (b *Bus) Publish(topic string, payload any) {
	ev := BusEvent{Topic: topic, Payload: payload}

	b.mu.Lock()
	if b.modes[topic] != Debounced {
		handlers := append([]BusHandler(nil), b.subs[topic]...)
		b.mu.Unlock()
		for _, h := range handlers {
			h(ev)
		}
		return
	}

	b.pending[topic] = ev
	if timer, ok := b.timers[topic]; ok {
		timer.Reset(b.window)
	} else {
		b.timers[topic] = time.AfterFunc(b.window, func() { b.flush(topic) })
	}
	b.mu.Unlock()
}

func (b *Bus) flush(topic string) {
	b.mu.Lock()
	ev, ok := b.pending[topic]
	delete(b.pending, topic)
	delete(b.timers, topic)
	handlers := append([]BusHandler(nil), b.subs[topic]...)
	b.mu.Unlock()

	if !ok {
		return
	}
	for _, h := range handlers {
		h(ev)
	}
}

// Close stops pending debounce timers without delivering their events.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, timer := range b.timers {
		timer.Stop()
		delete(b.timers, topic)
		delete(b.pending, topic)
	}
}
