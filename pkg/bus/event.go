package bus

import (
	"context"
)

type Kind string

const (
	// KindShare is published for every decryption share a session accepts or
	// rejects.
	KindShare Kind = "share"
	// KindCombine marks a session that has enough verified shares.
	KindCombine Kind = "combine"
	// KindDone carries the outcome of a finished session.
	KindDone Kind = "done"
	// KindTimeout marks a session that gave up gathering.
	KindTimeout Kind = "timeout"
)

type Event struct {
	Kind    Kind
	Session string
	Party   int
	Body    any
	TraceID string
}

type Subscriber <-chan Event

type Bus struct {
	pub chan Event
}

func New(size int) *Bus {
	if size <= 0 {
		size = 128
	}
	return &Bus{pub: make(chan Event, size)}
}

// Publish never blocks; events are dropped on backpressure. A nil Bus drops
// everything.
func (b *Bus) Publish(_ context.Context, ev Event) {
	if b == nil {
		return
	}
	select {
	case b.pub <- ev:
	default:
	}
}

func (b *Bus) Subscribe() Subscriber { return b.pub }
