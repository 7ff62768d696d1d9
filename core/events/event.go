package events

import (
	"sync"

	"github.com/0surface/Remittance/core/types"
)

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Typed events also render themselves as flat attribute maps for RPC and
// logging consumers.
type attributed interface {
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, metrics).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Multi fans every event out to each non-nil emitter in order.
type Multi []Emitter

func (m Multi) Emit(evt Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(evt)
		}
	}
}

// Buffer holds events until the surrounding call commits. Events from a call
// that fails are dropped with Reset.
type Buffer struct {
	events []Event
}

func (b *Buffer) Emit(evt Event) {
	b.events = append(b.events, evt)
}

// Len reports the number of pending events.
func (b *Buffer) Len() int { return len(b.events) }

// Flush forwards pending events to dst and empties the buffer.
func (b *Buffer) Flush(dst Emitter) {
	pending := b.events
	b.events = nil
	if dst == nil {
		return
	}
	for _, evt := range pending {
		dst.Emit(evt)
	}
}

// Reset discards pending events.
func (b *Buffer) Reset() { b.events = nil }

// Record is one entry in a Log.
type Record struct {
	Seq        uint64            `json:"seq"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Log keeps a bounded, ordered history of emitted events.
type Log struct {
	mu      sync.RWMutex
	limit   int
	nextSeq uint64
	records []Record
}

// DefaultLogLimit bounds the history when NewLog is given a non-positive size.
const DefaultLogLimit = 1024

func NewLog(limit int) *Log {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	return &Log{limit: limit, nextSeq: 1}
}

func (l *Log) Emit(evt Event) {
	if evt == nil {
		return
	}
	rec := Record{Type: evt.EventType(), Attributes: map[string]string{}}
	if a, ok := evt.(attributed); ok {
		if rendered := a.Event(); rendered != nil {
			rec.Attributes = rendered.Attributes
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	rec.Seq = l.nextSeq
	l.nextSeq++
	l.records = append(l.records, rec)
	if overflow := len(l.records) - l.limit; overflow > 0 {
		l.records = append([]Record(nil), l.records[overflow:]...)
	}
}

// List returns up to limit records with a sequence number greater than after.
// A non-positive limit returns everything retained.
func (l *Log) List(after uint64, limit int) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Record, 0)
	for _, rec := range l.records {
		if rec.Seq <= after {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Pending returns a copy of the events not yet flushed.
func (b *Buffer) Pending() []Event {
	return append([]Event(nil), b.events...)
}
