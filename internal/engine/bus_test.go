package engine

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestBus_ImmediateDeliversSynchronously(t *testing.T) {
	bus := NewBus(50 * time.Millisecond)
	defer bus.Close()

	var got atomic.Int32
	bus.Subscribe("queue.updated", func(ev BusEvent) {
		got.Add(1)
		if ev.Payload.(string) != "rec-1" {
			t.Errorf("payload = %v, want rec-1", ev.Payload)
		}
	})

	bus.Publish("queue.updated", "rec-1")

	if got.Load() != 1 {
		t.Fatalf("expected 1 delivery, got %d", got.Load())
	}
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := NewBus(50 * time.Millisecond)
	defer bus.Close()

	var a, b atomic.Int32
	bus.Subscribe("topic", func(BusEvent) { a.Add(1) })
	bus.Subscribe("topic", func(BusEvent) { b.Add(1) })

	bus.Publish("topic", nil)

	if a.Load() != 1 || b.Load() != 1 {
		t.Errorf("both subscribers should fire once, got %d and %d", a.Load(), b.Load())
	}
}

func TestBus_DebouncedCoalesces(t *testing.T) {
	bus := NewBus(30 * time.Millisecond)
	defer bus.Close()
	bus.SetMode("status", Debounced)

	var count atomic.Int32
	var last atomic.Value
	bus.Subscribe("status", func(ev BusEvent) {
		count.Add(1)
		last.Store(ev.Payload.(string))
	})

	bus.Publish("status", "first")
	bus.Publish("status", "second")
	bus.Publish("status", "third")

	// Nothing should be delivered inside the window.
	if count.Load() != 0 {
		t.Fatalf("debounced topic delivered early: %d events", count.Load())
	}

	time.Sleep(100 * time.Millisecond)

	if count.Load() != 1 {
		t.Fatalf("expected 1 coalesced delivery, got %d", count.Load())
	}
	if last.Load().(string) != "third" {
		t.Errorf("coalesced payload = %q, want %q (latest wins)", last.Load(), "third")
	}
}

func TestBus_TopicIsolation(t *testing.T) {
	bus := NewBus(50 * time.Millisecond)
	defer bus.Close()

	var got atomic.Int32
	bus.Subscribe("a", func(BusEvent) { got.Add(1) })

	bus.Publish("b", nil)

	if got.Load() != 0 {
		t.Error("subscriber on topic a should not see topic b events")
	}
}

func TestBus_CloseDropsPending(t *testing.T) {
	bus := NewBus(30 * time.Millisecond)
	bus.SetMode("status", Debounced)

	var count atomic.Int32
	bus.Subscribe("status", func(BusEvent) { count.Add(1) })

	bus.Publish("status", "doomed")
	bus.Close()

	time.Sleep(80 * time.Millisecond)

	if count.Load() != 0 {
		t.Error("closed bus should not deliver pending debounced events")
	}
}
