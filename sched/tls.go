package sched

import (
	"github.com/geekos-go/kernel/errno"
	"github.com/geekos-go/kernel/irq"
)

// TLSKey addresses one of a thread's TLSSlots thread-local storage slots.
// Keys are allocated monotonically from a single global counter shared by
// every thread, exactly like pthread_key_create: the key's meaning (and
// its destructor, if any) is process-wide, but each thread holds its own
// value in that slot.
type TLSKey int

// NewTLSKey allocates a fresh key, optionally paired with a destructor run
// on thread exit for any thread whose slot for this key is non-nil.
// Returns errno.OutOfMemory once TLSSlots keys have been handed out.
func (s *Scheduler) NewTLSKey(destructor func(value any)) (TLSKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tlsNextKey >= TLSSlots {
		return 0, errno.OutOfMemory
	}
	key := TLSKey(s.tlsNextKey)
	s.tlsDestruct[key] = destructor
	s.tlsNextKey++
	return key, nil
}

// TLSGet returns t's value for key, or nil if unset.
func (s *Scheduler) TLSGet(t *Thread, key TLSKey) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return t.tls[key]
}

// TLSPut sets t's value for key.
func (s *Scheduler) TLSPut(t *Thread, key TLSKey, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.tls[key] = value
}

// drainTLS runs destructors for t's thread-local slots on exit: up to 4
// passes, each clearing every slot with a non-nil value and a registered
// destructor, invoking destructors with interrupts briefly re-enabled (a
// destructor may itself need to allocate or touch other kernel state).
// A pass that clears nothing ends the sweep early.
func (s *Scheduler) drainTLS(t *Thread) {
	for pass := 0; pass < 4; pass++ {
		cleared := 0

		s.mu.Lock()
		keyCount := s.tlsNextKey
		s.mu.Unlock()

		for key := 0; key < keyCount; key++ {
			s.mu.Lock()
			val := t.tls[key]
			destructor := s.tlsDestruct[key]
			if val != nil && destructor != nil {
				t.tls[key] = nil
			}
			s.mu.Unlock()

			if val == nil || destructor == nil {
				continue
			}

			irq.End(irq.EnabledToken())
			destructor(val)
			irq.Begin()
			cleared++
		}

		if cleared == 0 {
			break
		}
	}
}
