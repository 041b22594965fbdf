// Package irq implements the interrupt atomicity primitive: the lowest-level
// synchronization mechanism in the kernel, standing in for the x86 IF flag
// and the cli/sti (or pushfl/popfl) instruction pair. Every subsystem that
// touches global scheduler state, run queues, wait queues, or device request
// queues does so inside a section bounded by Begin and End.
//
// Grounded on eventloop.FastState (cache-line-padded atomic state machine,
// _examples/joeycumines-go-utilpkg/eventloop/state.go): that type tracks a
// loop's lifecycle with a single atomically-updated word; here the same
// "one authoritative flag, flipped under a short critical section" shape
// tracks whether the simulated CPU's interrupts are enabled.
package irq

import "sync"

// Token is returned by Begin and must be passed to the matching End. It
// records whether interrupts were enabled when Begin was called, so that
// End restores exactly that state. The zero Token is "was disabled", which
// makes an accidentally-discarded Token fail safe (End(Token{}) never
// re-enables interrupts it didn't see enabled).
type Token struct {
	wasEnabled bool
}

var (
	mu      sync.Mutex
	enabled = true
)

// Begin disables interrupts and returns a Token capturing the prior state.
// Safe to call from any goroutine, including concurrent external interrupt
// sources (timer, keyboard); the short critical section below is the
// hardware's atomic flag-register write.
func Begin() Token {
	mu.Lock()
	defer mu.Unlock()
	tok := Token{wasEnabled: enabled}
	enabled = false
	return tok
}

// End restores the interrupt state captured by tok. Nested sections compose
// correctly: an inner Begin observes "disabled" and its Token is the zero
// value, so the inner End leaves interrupts disabled; only the End matching
// the outermost Begin re-enables them.
func End(tok Token) {
	mu.Lock()
	defer mu.Unlock()
	if tok.wasEnabled {
		enabled = true
	}
}

// EnabledToken returns a Token that, when passed to End, marks interrupts
// enabled regardless of what Begin last observed. It exists for call sites
// that need to briefly re-enable interrupts in the middle of a section
// they already hold (thread-local-storage destructor draining does this,
// mirroring the original kernel's "re-enable interrupts, run the
// destructor, disable again" pattern) without threading the outer,
// still-pending Token through.
func EnabledToken() Token {
	return Token{wasEnabled: true}
}

// InSection reports whether interrupts are currently disabled.
func InSection() bool {
	mu.Lock()
	defer mu.Unlock()
	return !enabled
}

// resetForTest restores the global flag to "enabled" between tests, since
// the flag models CPU-wide state and therefore is a package-level global
// (see SPEC_FULL.md's rationale for this being the one legitimately global
// mutable value alongside the scheduler's own globals).
func resetForTest() {
	mu.Lock()
	defer mu.Unlock()
	enabled = true
}
