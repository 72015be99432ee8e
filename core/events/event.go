package events

import (
	"encoding/binary"
	"encoding/hex"
	"sort"
	"sync"

	"lukechampine.com/blake3"

	"yzyvault/core/types"
)

// Event represents a structured state change emitted by the vault.
type Event interface {
	EventType() string
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. websocket
// streams, the journal).
type Emitter interface {
	Emit(*types.Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(*types.Event) {}

// MultiEmitter fans every event out to each wrapped emitter in order.
type MultiEmitter []Emitter

// Emit implements the Emitter interface.
func (m MultiEmitter) Emit(ev *types.Event) {
	for _, emitter := range m {
		if emitter != nil {
			emitter.Emit(ev)
		}
	}
}

// Buffer collects emitted events in memory.
type Buffer struct {
	mu     sync.Mutex
	events []*types.Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(ev *types.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

// Events returns a copy of everything collected so far.
func (b *Buffer) Events() []*types.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*types.Event(nil), b.events...)
}

// OfType returns the collected events with the given type.
func (b *Buffer) OfType(eventType string) []*types.Event {
	var out []*types.Event
	for _, ev := range b.Events() {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// Stamp assigns the sequence number and timestamp to ev and derives its ID as
// the blake3 digest of the sequence, type and sorted attributes, so replaying
// the same history yields the same identifiers.
func Stamp(ev *types.Event, seq, ts uint64) *types.Event {
	if ev == nil {
		return nil
	}
	ev.Sequence = seq
	ev.Timestamp = ts

	hasher := blake3.New(32, nil)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	hasher.Write(buf[:])
	hasher.Write([]byte(ev.Type))
	keys := make([]string, 0, len(ev.Attributes))
	for k := range ev.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		hasher.Write([]byte{0})
		hasher.Write([]byte(k))
		hasher.Write([]byte{'='})
		hasher.Write([]byte(ev.Attributes[k]))
	}
	ev.ID = hex.EncodeToString(hasher.Sum(nil))
	return ev
}
