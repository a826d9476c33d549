package events

import (
	"sync"

	"go.uber.org/zap"
)

// Bus fans recorded events out to subscribers. Delivery is non-blocking: a
// subscriber that cannot keep up loses the event rather than stalling the
// ledger operation that produced it.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Envelope
	nextID int
	logger *zap.SugaredLogger
}

func NewBus(logger *zap.SugaredLogger) *Bus {
	return &Bus{
		subs:   make(map[int]chan Envelope),
		logger: logger,
	}
}

// Subscribe registers a new subscriber with the given buffer size. The
// returned cancel func removes the subscription and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Envelope, func()) {
	if buffer <= 0 {
		buffer = 64
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Envelope, buffer)
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Record implements Recorder.
func (b *Bus) Record(ev Event) {
	env := Wrap(ev)

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- env:
		default:
			if b.logger != nil {
				b.logger.Warnw("Dropping event for slow subscriber", "type", env.Type, "id", env.ID)
			}
		}
	}
}

// Capture records events into a slice. Test helper.
type Capture struct {
	mu     sync.Mutex
	events []Event
}

func NewCapture() *Capture {
	return &Capture{}
}

func (c *Capture) Record(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

// Events returns a copy of everything recorded so far.
func (c *Capture) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Reset clears the capture buffer.
func (c *Capture) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

// OfType returns the recorded events matching the given type, in order.
func (c *Capture) OfType(eventType string) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, ev := range c.events {
		if ev.EventType() == eventType {
			out = append(out, ev)
		}
	}
	return out
}
