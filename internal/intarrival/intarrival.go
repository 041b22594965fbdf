// Package intarrival is the simulated interrupt-arrival primitive: a
// channel of saved register frames standing in for the hardware
// mechanism that delivers an interrupt/trap to the dispatcher. Built on
// longpoll.Channel (a genuine dependency,
// _examples/joeycumines-go-utilpkg/longpoll/channel.go) so a dispatcher
// can drain a short burst of pending frames per poll instead of handling
// exactly one interrupt at a time, the same receive-as-many-as-possible
// shape longpoll gives a consumer of a results channel.
package intarrival

import (
	"context"
	"time"

	"github.com/joeycumines/go-longpoll"
)

// Frame is an opaque arrived value; the caller supplies whatever concrete
// type it needs (in this kernel, the uint16 keycodes Kernel.DeliverKey
// delivers).
type Frame = any

// Source is a channel-backed queue of pending interrupt arrivals.
type Source struct {
	ch chan Frame
}

// New returns a Source buffering up to capacity pending frames.
func New(capacity int) *Source {
	return &Source{ch: make(chan Frame, capacity)}
}

// Deliver enqueues a frame for dispatch, as if an interrupt had just
// fired. Blocks if the Source's buffer is full.
func (s *Source) Deliver(f Frame) {
	s.ch <- f
}

// Close signals no more frames will be delivered.
func (s *Source) Close() {
	close(s.ch)
}

// Drain blocks until at least one frame is available (or ctx is done, or
// the source is closed), then hands every frame it can gather without
// further blocking to handler, in arrival order.
func (s *Source) Drain(ctx context.Context, handler func(Frame) error) error {
	return longpoll.Channel(ctx, &longpoll.ChannelConfig{
		MaxSize:        64,
		MinSize:        -1,
		PartialTimeout: 5 * time.Millisecond,
	}, s.ch, handler)
}
