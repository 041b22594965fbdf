package ksync

import (
	"github.com/geekos-go/kernel/irq"
	"github.com/geekos-go/kernel/sched"
)

// Cond is a condition variable always used paired with a caller-supplied
// mutex, per _examples/original_source/src/geekos/synch.c's Cond_Wait.
type Cond struct {
	s     *sched.Scheduler
	waitQ *sched.ThreadQueue
}

// NewCond returns a condition variable bound to scheduler s.
func NewCond(s *sched.Scheduler) *Cond {
	return &Cond{s: s, waitQ: sched.NewThreadQueue()}
}

// Wait releases m, blocks until signaled or broadcast to, then reacquires
// m before returning. The caller must hold m.
func (c *Cond) Wait(m *Mutex) {
	self := c.s.CurrentThread()

	c.s.DisablePreemption()
	m.unlockImp(self)

	tok := irq.Begin()
	c.s.EnablePreemption()
	c.s.Wait(c.waitQ)
	c.s.DisablePreemption()
	irq.End(tok)

	m.lockImp(self)
	c.s.EnablePreemption()
}

// Signal wakes one waiter, if any.
func (c *Cond) Signal() {
	tok := irq.Begin()
	defer irq.End(tok)
	c.s.WakeUpOne(c.waitQ)
}

// Broadcast wakes every waiter.
func (c *Cond) Broadcast() {
	tok := irq.Begin()
	defer irq.End(tok)
	c.s.WakeUp(c.waitQ)
}
