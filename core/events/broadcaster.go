package events

import (
	"sync"

	"yzyvault/core/types"
)

// Broadcaster fans committed events out to live subscribers. Subscribers that
// fall behind lose events rather than stalling the writer.
type Broadcaster struct {
	mu      sync.Mutex
	nextID  uint64
	subs    map[uint64]chan *types.Event
	buffer  int
	dropped uint64
}

// NewBroadcaster constructs a broadcaster whose subscriber channels hold up to
// buffer pending events.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 64
	}
	return &Broadcaster{subs: make(map[uint64]chan *types.Event), buffer: buffer}
}

// Subscribe registers a new subscriber. The returned cancel function closes the
// channel and must be called once the subscriber is done.
func (b *Broadcaster) Subscribe() (<-chan *types.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan *types.Event, b.buffer)
	b.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// Emit implements the Emitter interface.
func (b *Broadcaster) Emit(ev *types.Event) {
	if ev == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped++
		}
	}
}

// Dropped reports how many deliveries were skipped for slow subscribers.
func (b *Broadcaster) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
