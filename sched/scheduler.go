package sched

import (
	"container/list"
	"sync"

	"github.com/rs/zerolog"

	"github.com/geekos-go/kernel/internal/pagealloc"
	"github.com/geekos-go/kernel/irq"
)

// DefaultQuantum is the number of timer ticks a thread may accumulate
// before being preempted (GeekOS's DEFAULT_MAX_TICKS).
const DefaultQuantum = 4

// Scheduler owns every run queue, the all-threads table, the graveyard, and
// the policy/quantum/tick bookkeeping. There is exactly one Scheduler per
// simulated machine.
//
// Go has no instruction-level preemption hook we can drive ourselves, so
// the "architectural return-from-interrupt path" that real preemptive
// kernels use to reclaim the CPU from a running thread is modeled as an
// explicit cooperative checkpoint (CheckPoint); Tick still does all of the
// bookkeeping (accumulator, demotion, the reschedule flag) exactly where
// spec'd, it just can't force a goroutine off the CPU without that
// goroutine's help. This is the one place the simulation's fidelity is
// bounded by the host language rather than by design choice.
type Scheduler struct {
	mu sync.Mutex

	policy       Policy
	quantum      int
	runQueues    [Levels]*ThreadQueue
	allThreads   list.List // *Thread, membership = allElem
	graveyard    *ThreadQueue
	reaperWaitQ  *ThreadQueue
	current      *Thread
	bootThread   *Thread
	idle         *Thread
	reaper       *Thread
	nextPID      uint32
	nextThreadID uint64
	numTicks     uint64

	preemptDisabled int

	tlsNextKey  int
	tlsDestruct [TLSSlots]func(any)

	log zerolog.Logger

	// pages backs each new thread's stackFrame, if configured. Nil means
	// threads carry no page-frame accounting at all (every pre-existing
	// caller that builds a Scheduler without WithPageAllocator).
	pages *pagealloc.Allocator

	metrics *Metrics

	// OnReap, if set, is invoked by the reaper for each corpse just
	// before it is dropped, with interrupts enabled, mirroring the
	// real reaper's "dispose of stack and thread object" step. Intended
	// for detaching a user context or logging, not for scheduling work.
	OnReap func(*Thread)
}

// Option configures a Scheduler at construction.
type Option func(*Scheduler)

// WithLogger attaches a structured logger for scheduling events. The zero
// value logs nothing.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// WithPolicy sets the initial scheduling policy. Defaults to RoundRobin.
func WithPolicy(p Policy) Option {
	return func(s *Scheduler) { s.policy = p }
}

// WithQuantum sets the initial quantum, in ticks. Defaults to
// DefaultQuantum.
func WithQuantum(q int) Option {
	return func(s *Scheduler) { s.quantum = q }
}

// WithPageAllocator gives every thread the Scheduler creates a backing
// stack frame drawn from p, freed once the thread is reaped. Grounded on
// Create_Thread's pair of Alloc_Page calls (kthread.c), one of which
// reserves the new thread's stack.
func WithPageAllocator(p *pagealloc.Allocator) Option {
	return func(s *Scheduler) { s.pages = p }
}

// New constructs a Scheduler with its idle and reaper threads already
// created (but not yet running) and returns it. Call Run to begin
// scheduling from the calling goroutine, which becomes the permanently
// parked "boot" context once scheduling starts — mirroring how the
// original boot stack is retired once multitasking begins.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		policy:      RoundRobin,
		quantum:     DefaultQuantum,
		graveyard:   NewThreadQueue(),
		reaperWaitQ: NewThreadQueue(),
		log:         zerolog.Nop(),
		metrics:     newMetrics(),
	}
	for i := range s.runQueues {
		s.runQueues[i] = NewThreadQueue()
	}
	for _, o := range opts {
		o(s)
	}

	s.bootThread = &Thread{
		ID:       s.allocThreadID(),
		alive:    true,
		refCount: 1,
		resume:   make(chan struct{}, 1),
	}
	s.current = s.bootThread

	s.idle = s.newThread(0, true)
	s.idle.isIdle = true
	s.idle.level = Levels - 1
	go s.runThreadBody(s.idle, func(self *Thread, _ any) {
		for {
			s.Yield()
		}
	}, nil)

	s.reaper = s.newThread(Priority(), true)
	s.reaper.isReaper = true
	go s.runThreadBody(s.reaper, func(self *Thread, _ any) {
		s.reaperLoop(self)
	}, nil)

	return s
}

// Priority is the base priority newly created kernel threads default to
// when the caller doesn't care. Normal, non-idle threads.
func Priority() int { return 10 }

func (s *Scheduler) allocThreadID() ThreadID {
	s.nextThreadID++
	return ThreadID(s.nextThreadID)
}

// newThread allocates bookkeeping for a thread without starting its
// goroutine or making it runnable; callers start the goroutine themselves
// with runThreadBody and then call MakeRunnable.
func (s *Scheduler) newThread(priority int, detached bool) *Thread {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextPID++
	t := &Thread{
		ID:       s.allocThreadID(),
		PID:      s.nextPID,
		Priority: priority,
		Detached: detached,
		alive:    true,
		joinQ:    NewThreadQueue(),
		resume:   make(chan struct{}, 1),
	}
	if detached {
		t.refCount = 1
	} else {
		t.refCount = 2
	}
	if s.pages != nil {
		if frame, err := s.pages.Alloc(); err == nil {
			t.stackFrame = frame
			t.hasStackFrame = true
		} else {
			s.log.Warn().Uint32("pid", t.PID).Err(err).Msg("no page frame available for thread stack")
		}
	}
	t.allElem = s.allThreads.PushBack(t)
	return t
}

// runThreadBody is the goroutine every thread (kernel or user) runs: park
// until first scheduled in, run the body, then exit. This is the launch
// stub spec.md describes as a synthetic interrupt-return frame whose
// resumed "ip" re-enables interrupts and tail-calls the start function.
func (s *Scheduler) runThreadBody(t *Thread, fn StartFunc, arg any) {
	<-t.resume
	fn(t, arg)
	s.Exit(0)
}

// StartKernelThread allocates a thread that runs fn(arg) at kernel
// privilege, starting at priority and with the given detach state, and
// makes it runnable. Reference count starts at 1 if detached (self-owned
// only) or 2 otherwise (creator retains a reference releasable via Join).
func (s *Scheduler) StartKernelThread(fn StartFunc, arg any, priority int, detached bool) *Thread {
	t := s.newThread(priority, detached)
	if !detached {
		t.owner = s.CurrentThread()
	}
	go s.runThreadBody(t, fn, arg)

	tok := irq.Begin()
	defer irq.End(tok)
	s.MakeRunnable(t)
	s.log.Debug().Uint64("thread", uint64(t.ID)).Uint32("pid", t.PID).Msg("kernel thread started")
	return t
}

// StartUserThread is the user-privilege analogue of StartKernelThread: the
// synthetic launch frame is "enter user mode at the context's entry point"
// instead of a plain function call. run is supplied by the uctx/syscalls
// layer, which knows how to interpret userContext; the scheduler only
// carries the opaque pointer.
func (s *Scheduler) StartUserThread(userContext any, run UserRunFunc, priority int, detached bool) *Thread {
	t := s.newThread(priority, detached)
	if !detached {
		t.owner = s.CurrentThread()
	}
	t.UserContext = userContext
	go s.runThreadBody(t, func(self *Thread, _ any) {
		run(self, userContext)
	}, nil)

	tok := irq.Begin()
	defer irq.End(tok)
	s.MakeRunnable(t)
	s.log.Debug().Uint64("thread", uint64(t.ID)).Uint32("pid", t.PID).Msg("user thread started")
	return t
}

// CurrentThread returns the thread presently holding the CPU.
func (s *Scheduler) CurrentThread() *Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Policy returns the active scheduling policy.
func (s *Scheduler) Policy() Policy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy
}

// Quantum returns the active quantum, in ticks.
func (s *Scheduler) Quantum() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quantum
}

// MakeRunnable clears t's blocked flag and appends it to the run-queue
// level the active policy assigns it. Requires the caller to already hold
// an interrupt-atomic section.
func (s *Scheduler) MakeRunnable(t *Thread) {
	assertAtomic()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.makeRunnableLocked(t)
}

func (s *Scheduler) makeRunnableLocked(t *Thread) {
	t.blocked = false
	lvl := targetLevel(s.policy, t)
	t.level = lvl
	s.runQueues[lvl].PushBack(t)
}

// pickNext selects the next thread to run per the active policy. Must be
// called with s.mu held.
func (s *Scheduler) pickNext() *Thread {
	if s.policy == RoundRobin {
		t := s.runQueues[0].Best()
		if t != nil {
			s.runQueues[0].Remove(t)
		}
		return t
	}
	for lvl := 0; lvl < Levels; lvl++ {
		if t := s.runQueues[lvl].PopFront(); t != nil {
			return t
		}
	}
	return nil
}

// Schedule picks the next runnable thread and switches to it. Requires the
// caller to already hold an interrupt-atomic section and for preemption to
// be enabled on the current thread's behalf; the baton is handed to the
// chosen thread's goroutine and the caller's goroutine blocks until it is
// handed back, unless the caller is exiting, in which case it blocks
// forever (exit never returns).
func (s *Scheduler) Schedule() {
	assertAtomic()

	s.mu.Lock()
	if s.preemptDisabled > 0 {
		s.mu.Unlock()
		panic("sched: Schedule called with preemption disabled")
	}
	prev := s.current
	next := s.pickNext()
	if next == nil {
		s.mu.Unlock()
		panic("sched: no runnable thread, idle thread invariant violated")
	}
	s.current = next
	s.metrics.observeSwitch(prev, next)
	next.ticks = 0
	s.mu.Unlock()

	if next == prev {
		return
	}

	s.log.Debug().
		Uint64("from", uint64(safeID(prev))).
		Uint64("to", uint64(next.ID)).
		Msg("context switch")

	next.resume <- struct{}{}

	if prev.alive {
		<-prev.resume
	} else {
		select {} // exiting thread: this goroutine never runs again.
	}
}

func safeID(t *Thread) ThreadID {
	if t == nil {
		return 0
	}
	return t.ID
}

// Yield voluntarily gives up the CPU: the caller is made runnable again
// and a new thread is chosen.
func (s *Scheduler) Yield() {
	tok := irq.Begin()
	defer irq.End(tok)
	s.MakeRunnable(s.CurrentThread())
	s.Schedule()
}

// Wait blocks the current thread on waitQueue. Requires the caller to
// already hold an interrupt-atomic section. Under MLF, the thread's stored
// level is decremented one step toward 0 before it blocks (the idle thread
// is exempt, though the idle thread never waits in practice).
func (s *Scheduler) Wait(waitQueue *ThreadQueue) {
	assertAtomic()

	s.mu.Lock()
	cur := s.current
	if s.policy == MultiLevelFeedback && !cur.isIdle && cur.level > 0 {
		cur.level--
	}
	cur.blocked = true
	waitQueue.PushBack(cur)
	s.mu.Unlock()

	s.Schedule()
}

// WakeUp moves every waiter on waitQueue to a run queue, leaving the queue
// empty. Requires the caller to already hold an interrupt-atomic section.
func (s *Scheduler) WakeUp(waitQueue *ThreadQueue) {
	assertAtomic()
	s.mu.Lock()
	waiters := waitQueue.Drain()
	for _, t := range waiters {
		s.makeRunnableLocked(t)
	}
	s.mu.Unlock()
}

// WakeUpOne removes and requeues the single highest-priority waiter on
// waitQueue, if any. Requires the caller to already hold an
// interrupt-atomic section.
func (s *Scheduler) WakeUpOne(waitQueue *ThreadQueue) {
	assertAtomic()
	s.mu.Lock()
	defer s.mu.Unlock()
	t := waitQueue.Best()
	if t == nil {
		return
	}
	waitQueue.Remove(t)
	s.makeRunnableLocked(t)
}

// Exit terminates the current thread: it stores the exit code, drains
// thread-local destructors, wakes joiners, drops the implicit
// self-reference, and schedules a new thread. It never returns.
func (s *Scheduler) Exit(code int) {
	tok := irq.Begin()
	defer irq.End(tok)

	s.mu.Lock()
	cur := s.current
	cur.exitCode = code
	cur.alive = false
	s.mu.Unlock()

	s.drainTLS(cur)

	s.mu.Lock()
	s.wakeUpJoinersLocked(cur)
	s.mu.Unlock()

	s.log.Info().Uint64("thread", uint64(cur.ID)).Uint32("pid", cur.PID).Int("code", code).Msg("thread exit")

	s.releaseRef(cur)
	s.Schedule() // never returns: cur is no longer alive.
}

func (s *Scheduler) wakeUpJoinersLocked(t *Thread) {
	waiters := t.joinQ.Drain()
	for _, w := range waiters {
		s.makeRunnableLocked(w)
	}
}

// releaseRef drops one reference to t; once it reaches zero, t is handed
// to the reaper.
func (s *Scheduler) releaseRef(t *Thread) {
	s.mu.Lock()
	t.refCount--
	zero := t.refCount <= 0
	if zero {
		s.graveyard.PushBack(t)
	}
	s.mu.Unlock()

	if zero {
		tok := irq.Begin()
		s.WakeUpOne(s.reaperWaitQ)
		irq.End(tok)
	}
}

// Join blocks until t exits, then releases the caller's reference and
// returns t's exit code. The caller must be t's owner.
func (s *Scheduler) Join(t *Thread) int {
	tok := irq.Begin()
	defer irq.End(tok)

	if t.owner != s.current {
		panic("sched: Join called by a non-owner")
	}

	for t.Alive() {
		s.Wait(t.joinQ)
	}
	code := t.ExitCode()
	s.releaseRef(t)
	return code
}

// Lookup returns the thread with the given pid if it is owned by the
// caller, or nil otherwise. A thread that has exited but not yet been
// reaped is still returned, so its owner can Join it for the exit code.
func (s *Scheduler) Lookup(pid uint32) *Thread {
	tok := irq.Begin()
	defer irq.End(tok)

	s.mu.Lock()
	defer s.mu.Unlock()

	caller := s.current
	for e := s.allThreads.Front(); e != nil; e = e.Next() {
		t := e.Value.(*Thread)
		if t.PID == pid {
			if t.owner == caller {
				return t
			}
			return nil
		}
	}
	return nil
}

// SetPolicy switches the active scheduling policy, migrating existing
// run-queue membership per spec: MLF->RR concatenates levels 1..L-1 onto
// level 0 in order; RR->MLF moves the idle thread, if queued, from level 0
// to level L-1, leaving every other thread at level 0 to migrate down
// naturally as they consume quanta.
func (s *Scheduler) SetPolicy(p Policy) {
	tok := irq.Begin()
	defer irq.End(tok)

	s.mu.Lock()
	defer s.mu.Unlock()

	if p == s.policy {
		return
	}

	switch {
	case s.policy == MultiLevelFeedback && p == RoundRobin:
		for lvl := 1; lvl < Levels; lvl++ {
			for t := s.runQueues[lvl].PopFront(); t != nil; t = s.runQueues[lvl].PopFront() {
				t.level = 0
				s.runQueues[0].PushBack(t)
			}
		}
	case s.policy == RoundRobin && p == MultiLevelFeedback:
		if s.idle.queue == s.runQueues[0] {
			s.runQueues[0].Remove(s.idle)
			s.idle.level = Levels - 1
			s.runQueues[Levels-1].PushBack(s.idle)
		}
	}

	s.policy = p
	s.log.Info().Str("policy", p.String()).Msg("scheduling policy changed")
}

// SetQuantum atomically updates the quantum, in ticks.
func (s *Scheduler) SetQuantum(ticks int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quantum = ticks
}

// Tick is invoked by the timer driver once per simulated clock tick. It
// updates the global and per-thread tick counters and, on quantum
// expiry, demotes the current thread's MLF level and raises its
// reschedule flag; see CheckPoint for why the actual context switch is
// deferred to a cooperative checkpoint rather than forced here.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.numTicks++
	cur := s.current
	if cur == nil || cur == s.bootThread {
		return
	}
	cur.ticks++
	if cur.ticks >= s.quantum {
		cur.ticks = 0
		cur.needResched = true
		if s.policy == MultiLevelFeedback && !cur.isIdle && cur.level < Levels-1 {
			cur.level++
		}
		s.metrics.observeQuantumExpiry()
	}
}

// NumTicks returns the total number of timer ticks observed.
func (s *Scheduler) NumTicks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.numTicks
}

// CheckPoint is the cooperative stand-in for "the architectural
// return-from-interrupt path checks the reschedule flag." Long-running
// kernel or user thread bodies should call it periodically (the syscall
// dispatcher does after every call, so ordinary user processes get this
// for free at every syscall); a thread that never calls it can starve
// out lower-priority threads until it blocks or exits, exactly as a
// non-preemptible busy loop would in the original design.
func (s *Scheduler) CheckPoint() {
	tok := irq.Begin()
	defer irq.End(tok)

	s.mu.Lock()
	cur := s.current
	due := cur.needResched
	cur.needResched = false
	s.mu.Unlock()

	if !due {
		return
	}
	s.MakeRunnable(cur)
	s.Schedule()
}

// Run makes the idle and reaper threads runnable and begins scheduling
// from the calling goroutine, which must not be one of the scheduler's own
// threads. It blocks forever: once scheduling starts, the calling
// goroutine's "boot stack" is parked for good, exactly as the original
// boot thread never runs application code again.
func (s *Scheduler) Run() {
	tok := irq.Begin()
	defer irq.End(tok)
	s.MakeRunnable(s.idle)
	s.MakeRunnable(s.reaper)
	s.Schedule()
}

// Metrics returns a snapshot of scheduler activity.
func (s *Scheduler) Metrics() MetricsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics.snapshot(s)
}

func (s *Scheduler) reaperLoop(self *Thread) {
	for {
		tok := irq.Begin()
		s.Wait(s.reaperWaitQ)
		irq.End(tok)

		tok = irq.Begin()
		s.mu.Lock()
		corpses := s.graveyard.Drain()
		s.mu.Unlock()
		irq.End(tok)

		for _, c := range corpses {
			if s.OnReap != nil {
				s.OnReap(c)
			}
			if c.hasStackFrame {
				s.pages.Free(c.stackFrame)
			}
			s.mu.Lock()
			s.allThreads.Remove(c.allElem)
			s.mu.Unlock()
			s.log.Debug().Uint64("thread", uint64(c.ID)).Uint32("pid", c.PID).Msg("thread reaped")
		}
	}
}

// DisablePreemption increments the process-wide preemption-disabled
// counter. While it is non-zero, Schedule refuses to run (it panics,
// matching spec's debug-assertion discipline for violated invariants).
// Mutex and condition-variable operations use this to keep "I observed the
// lock free" and "I marked myself the owner" atomic with respect to
// preemption, without needing interrupts disabled for their whole body.
func (s *Scheduler) DisablePreemption() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preemptDisabled++
}

// EnablePreemption decrements the preemption-disabled counter.
func (s *Scheduler) EnablePreemption() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.preemptDisabled == 0 {
		panic("sched: EnablePreemption without matching DisablePreemption")
	}
	s.preemptDisabled--
}

// PreemptionDisabled reports whether preemption is currently disabled.
func (s *Scheduler) PreemptionDisabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preemptDisabled > 0
}

func assertAtomic() {
	if !irq.InSection() {
		panic("sched: operation requires an interrupt-atomic section")
	}
}
