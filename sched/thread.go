// Package sched implements the thread and scheduler core: run queues, the
// round-robin and multi-level-feedback selection policies, preemption
// bookkeeping, the idle and reaper housekeeping threads, and per-thread
// reference counting and thread-local storage.
//
// A real context switch ("iret into a pre-built frame") isn't expressible
// in Go, so each Thread is a goroutine gated by a private, buffered
// resume channel: the scheduler hands control to the next thread by
// sending on that channel, and the previously-current thread immediately
// blocks receiving on its own. At most one thread's goroutine is ever
// doing real work at a time, which is exactly the single-CPU invariant
// spec'd for this core. The shape is grounded on eventloop.Loop's
// single-goroutine "only one task runs at a time" discipline
// (_examples/joeycumines-go-utilpkg/eventloop/loop.go), generalized from
// one task queue to L priority levels.
package sched

import (
	"container/list"

	"github.com/geekos-go/kernel/internal/pagealloc"
)

// Levels is L, the number of multi-level-feedback run-queue levels.
const Levels = 4

// TLSSlots is K, the number of thread-local storage slots per thread.
const TLSSlots = 128

// ThreadID uniquely and monotonically identifies a thread for the lifetime
// of the process (it is not reused after the thread is reaped).
type ThreadID uint64

// StartFunc is the body a kernel thread runs once launched. It receives the
// thread that is running it (so it can call back into the scheduler, e.g.
// to fetch its own pid) and the argument passed at creation.
type StartFunc func(self *Thread, arg any)

// UserRunFunc is the body a user thread runs once launched, given the
// thread and its attached user context. The scheduler only carries the
// pointer; interpreting it belongs to the uctx/syscalls layers.
type UserRunFunc func(self *Thread, userContext any)

// Thread is a scheduler-managed flow of control. Every field that the
// scheduler's internal bookkeeping touches is guarded by the irq atomic
// section discipline; fields a thread only ever touches about itself
// (ExitCode after Join, Priority at creation) are safe to read once the
// thread is known to be done.
type Thread struct {
	ID       ThreadID
	PID      uint32
	Priority int
	Detached bool

	owner    *Thread
	refCount int32

	alive    bool
	exitCode int
	joinQ    *ThreadQueue

	level       int // current ready-queue level, 0..Levels-1
	blocked     bool
	ticks       int  // accumulated ticks since last (re)schedule
	needResched bool // quantum expired; cleared by the next CheckPoint

	// UserContext is an opaque handle to this thread's user-context, if
	// any; nil means the thread runs at kernel privilege. The concrete
	// type is supplied and interpreted by package uctx.
	UserContext any

	tls [TLSSlots]any

	// queue membership: at most one of these is non-nil at a time.
	queue *ThreadQueue
	elem  *list.Element

	// allThreads membership.
	allElem *list.Element

	resume chan struct{}

	isIdle   bool
	isReaper bool

	// stackFrame is the page frame backing this thread's simulated
	// kernel stack, grounded on Create_Thread's Alloc_Page call for the
	// new thread's stack (kthread.c). Best-effort: a Scheduler with no
	// page allocator configured, or one that is out of frames, simply
	// leaves hasStackFrame false rather than failing thread creation,
	// since nothing here actually executes off this memory.
	stackFrame    pagealloc.Frame
	hasStackFrame bool
}

// Alive reports whether the thread has not yet exited.
func (t *Thread) Alive() bool {
	return t.alive
}

// ExitCode returns the code the thread exited with. Only meaningful once
// Alive() is false.
func (t *Thread) ExitCode() int {
	return t.exitCode
}

// Level returns the thread's current MLF run-queue level.
func (t *Thread) Level() int {
	return t.level
}

// RefCount returns the thread's current reference count.
func (t *Thread) RefCount() int32 {
	return t.refCount
}
