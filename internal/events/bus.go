package events

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/wonny/edgefactory/internal/contracts"
	"github.com/wonny/edgefactory/pkg/logger"
)

// Handler consumes one published event.
type Handler func(contracts.Event)

// Bus is the in-process event fan-out: model promotions, overfit rejections
// and emitted signals flow through here to downstream consumers (websocket
// hub, notification senders). Publish never blocks on a slow subscriber; each
// subscriber gets a buffered channel and drops oldest-first on overflow.
// ⭐ SSOT: 이벤트 발행은 이 버스를 통해서만
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan contracts.Event
	nextID int
	closed bool
	logger zerolog.Logger
}

const subscriberBuffer = 64

// NewBus creates an empty event bus.
func NewBus(log *logger.Logger) *Bus {
	return &Bus{
		subs:   make(map[int]chan contracts.Event),
		logger: log.Component("events"),
	}
}

// Publish fans the event out to all current subscribers.
func (b *Bus) Publish(event contracts.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			// Subscriber fell behind: drop its oldest event to make room.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- event:
			default:
			}
			b.logger.Warn().
				Int("subscriber", id).
				Str("event", event.EventType()).
				Msg("Subscriber lagging, dropped oldest event")
		}
	}
}

// Subscribe registers a new consumer. The returned cancel func must be called
// to release the subscription.
func (b *Bus) Subscribe() (<-chan contracts.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan contracts.Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Close shuts the bus down; all subscriber channels are closed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
