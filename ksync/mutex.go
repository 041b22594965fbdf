// Package ksync implements the synchronization layer: mutexes with
// preemption-disable discipline, condition variables paired with a caller
// mutex, and named counting semaphores with registration-based access
// control. All three are grounded on
// _examples/original_source/src/geekos/synch.c, adapted from C's explicit
// public/private function pairs (Mutex_Lock calling Mutex_Lock_Imp,
// assuming preemption is already disabled) to Go methods that document the
// same precondition instead of hiding it behind a naming convention.
package ksync

import (
	"sync"

	"github.com/geekos-go/kernel/irq"
	"github.com/geekos-go/kernel/sched"
)

// Mutex is a non-reentrant lock. Every operation runs with preemption
// disabled but interrupts enabled, except for the brief interval where a
// blocked locker actually joins the wait queue — matching
// _examples/original_source/src/geekos/synch.c's Mutex_Lock/Mutex_Unlock.
type Mutex struct {
	s *sched.Scheduler

	mu     sync.Mutex
	locked bool
	owner  *sched.Thread
	waitQ  *sched.ThreadQueue
}

// NewMutex returns an unlocked mutex bound to scheduler s.
func NewMutex(s *sched.Scheduler) *Mutex {
	return &Mutex{s: s, waitQ: sched.NewThreadQueue()}
}

// Lock blocks until the mutex is acquired by the calling thread. Locking a
// mutex the caller already holds is a bug (re-entrant locking is
// intentionally unsupported, per spec) and panics rather than deadlocking
// silently.
func (m *Mutex) Lock() {
	self := m.s.CurrentThread()
	m.s.DisablePreemption()
	defer m.s.EnablePreemption()
	m.lockImp(self)
}

// lockImp is Lock's body, usable by callers (Cond.Wait) that have already
// disabled preemption themselves and will re-enable it after this returns.
func (m *Mutex) lockImp(self *sched.Thread) {
	for {
		acquired := func() bool {
			m.mu.Lock()
			defer m.mu.Unlock()
			if m.locked {
				if m.owner == self {
					panic("ksync: mutex is not re-entrant")
				}
				return false
			}
			m.locked = true
			m.owner = self
			return true
		}()
		if acquired {
			return
		}

		tok := irq.Begin()
		m.s.EnablePreemption()
		m.s.Wait(m.waitQ)
		m.s.DisablePreemption()
		irq.End(tok)
	}
}

// Unlock releases the mutex and wakes one waiter, if any. Panics if the
// caller isn't the owner.
func (m *Mutex) Unlock() {
	m.s.DisablePreemption()
	defer m.s.EnablePreemption()
	m.unlockImp(m.s.CurrentThread())
}

// unlockImp is Unlock's body, usable by callers that have already disabled
// preemption (Cond.Wait unlocks the caller's mutex this way before
// joining the condition's wait queue).
func (m *Mutex) unlockImp(self *sched.Thread) {
	m.mu.Lock()
	if m.owner != self {
		m.mu.Unlock()
		panic("ksync: unlock by non-owner")
	}
	m.locked = false
	m.owner = nil
	nonEmpty := !m.waitQ.Empty()
	m.mu.Unlock()

	if nonEmpty {
		tok := irq.Begin()
		m.s.WakeUpOne(m.waitQ)
		irq.End(tok)
	}
}

// Owner returns the thread currently holding the mutex, or nil.
func (m *Mutex) Owner() *sched.Thread {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner
}

// Locked reports whether the mutex is currently held.
func (m *Mutex) Locked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked
}
