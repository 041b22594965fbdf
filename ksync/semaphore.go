package ksync

import (
	"github.com/geekos-go/kernel/errno"
	"github.com/geekos-go/kernel/irq"
	"github.com/geekos-go/kernel/sched"
)

// MaxSemaphoreName is the longest permitted semaphore name, in bytes.
const MaxSemaphoreName = 25

// MaxSemaphoreRegistrants is the capacity of a semaphore's registered-thread
// set.
const MaxSemaphoreRegistrants = 60

// Semaphore is a named counting semaphore with registration-gated access:
// only a thread that has registered (via creation or a prior successful
// SemaphoreRegistry.Create for the same name) may P, V, or Destroy it. Grounded on
// _examples/original_source/src/geekos/synch.c's Create_Semaphore/P/V/
// Destroy_Semaphore, with the classical "decrement on wake" fix applied to
// P (see spec's own open question: the source decremented after waking,
// which let two wakeable threads both observe a positive count).
//
// A Semaphore's own count/registered fields are touched only by whichever
// thread currently holds the scheduler's baton — by construction at most
// one thread runs unblocked at a time — so they need no dedicated mutex
// beyond the irq section each operation already holds for the scheduler's
// own sake.
type Semaphore struct {
	s *sched.Scheduler

	id         int
	name       string
	count      int
	registered []*sched.Thread
	waitQ      *sched.ThreadQueue
}

// ID returns the semaphore's small integer id.
func (sem *Semaphore) ID() int { return sem.id }

// Name returns the semaphore's registry name.
func (sem *Semaphore) Name() string { return sem.name }

// Count returns the current count. Intended for tests and diagnostics;
// racing it against concurrent P/V from other threads is meaningless
// outside of a quiescent point.
func (sem *Semaphore) Count() int { return sem.count }

func (sem *Semaphore) isRegistered(t *sched.Thread) bool {
	for _, r := range sem.registered {
		if r == t {
			return true
		}
	}
	return false
}

func (sem *Semaphore) register(t *sched.Thread) error {
	if sem.isRegistered(t) {
		return nil
	}
	if len(sem.registered) >= MaxSemaphoreRegistrants {
		return errno.OutOfMemory
	}
	sem.registered = append(sem.registered, t)
	return nil
}

func (sem *Semaphore) unregister(t *sched.Thread) {
	for i, r := range sem.registered {
		if r == t {
			sem.registered = append(sem.registered[:i], sem.registered[i+1:]...)
			return
		}
	}
}

// p decrements the count, blocking while it is zero. The caller must be
// registered.
func (sem *Semaphore) p(caller *sched.Thread) error {
	tok := irq.Begin()
	defer irq.End(tok)

	if !sem.isRegistered(caller) {
		return errno.AccessDenied
	}
	for sem.count == 0 {
		sem.s.Wait(sem.waitQ)
	}
	sem.count--
	return nil
}

// v increments the count and, if it was zero, wakes one waiter. The caller
// must be registered.
func (sem *Semaphore) v(caller *sched.Thread) error {
	tok := irq.Begin()
	defer irq.End(tok)

	if !sem.isRegistered(caller) {
		return errno.AccessDenied
	}
	sem.count++
	if sem.count == 1 {
		sem.s.WakeUpOne(sem.waitQ)
	}
	return nil
}

// destroy removes caller from the registered set; once it is empty, every
// remaining waiter is woken (they will find themselves unregistered and
// fail) and true is returned so the registry can drop the semaphore.
func (sem *Semaphore) destroy(caller *sched.Thread) (empty bool, err error) {
	tok := irq.Begin()
	defer irq.End(tok)

	if !sem.isRegistered(caller) {
		return false, errno.AccessDenied
	}
	sem.unregister(caller)
	empty = len(sem.registered) == 0
	if empty {
		sem.s.WakeUp(sem.waitQ)
	}
	return empty, nil
}
