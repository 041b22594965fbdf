// Package timerdrv drives a periodic tick handler, the simulated
// hardware timer interrupt source sched.Tick is called from.
// Two implementations exist — a Linux one on timerfd_create, a portable
// one on time.Ticker — selected by build tag the way eventloop selects
// its kqueue/epoll/IOCP poller per platform
// (_examples/joeycumines-go-utilpkg/eventloop/poller_linux.go,
// poller_darwin.go, poller_windows.go).
package timerdrv

// Driver invokes a handler at a fixed interval until stopped, and
// exposes a monotonic count of ticks delivered so far.
type Driver interface {
	// Start begins invoking handler every interval, from a background
	// goroutine, until Stop is called.
	Start(handler func()) error
	// Stop halts tick delivery. Safe to call more than once.
	Stop()
	// Ticks returns the number of ticks delivered so far.
	Ticks() uint64
}
