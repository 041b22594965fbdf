package sched

import "container/list"

// ThreadQueue is a FIFO of blocked or runnable threads, the stand-in for the
// doubly-linked lists GeekOS threads link themselves into. A thread sits on
// at most one queue at a time; PushBack/Remove keep that invariant by
// recording the owning queue and list element directly on the thread.
type ThreadQueue struct {
	l list.List
}

// NewThreadQueue returns an empty queue.
func NewThreadQueue() *ThreadQueue {
	q := &ThreadQueue{}
	q.l.Init()
	return q
}

// PushBack appends t to the tail of the queue. t must not already be queued.
func (q *ThreadQueue) PushBack(t *Thread) {
	if t.queue != nil {
		panic("sched: thread pushed onto a queue while already queued")
	}
	t.elem = q.l.PushBack(t)
	t.queue = q
}

// Remove detaches t from whichever position it occupies in the queue. It is
// a no-op if t is not a member of q.
func (q *ThreadQueue) Remove(t *Thread) {
	if t.queue != q || t.elem == nil {
		return
	}
	q.l.Remove(t.elem)
	t.elem = nil
	t.queue = nil
}

// PopFront removes and returns the thread at the head of the queue, or nil
// if the queue is empty. This is the selection rule for MLF run-queue
// levels and for plain FIFO wait-queue draining.
func (q *ThreadQueue) PopFront() *Thread {
	front := q.l.Front()
	if front == nil {
		return nil
	}
	t := front.Value.(*Thread)
	q.Remove(t)
	return t
}

// Best returns the highest-priority thread in the queue without removing
// it, breaking ties by queue position (earliest entry wins). Returns nil if
// the queue is empty. This is the selection rule for round-robin's single
// queue and for choosing which waiter wake_up_one favors.
func (q *ThreadQueue) Best() *Thread {
	var best *Thread
	for e := q.l.Front(); e != nil; e = e.Next() {
		t := e.Value.(*Thread)
		if best == nil || t.Priority > best.Priority {
			best = t
		}
	}
	return best
}

// Len reports the number of threads currently queued.
func (q *ThreadQueue) Len() int {
	return q.l.Len()
}

// Empty reports whether the queue has no members.
func (q *ThreadQueue) Empty() bool {
	return q.l.Len() == 0
}

// Drain removes and returns every thread currently in the queue, in FIFO
// order, leaving the queue empty. Used by wake_up and by the reaper's
// graveyard sweep, both of which need to move an entire queue's membership
// atomically.
func (q *ThreadQueue) Drain() []*Thread {
	out := make([]*Thread, 0, q.l.Len())
	for t := q.PopFront(); t != nil; t = q.PopFront() {
		out = append(out, t)
	}
	return out
}

// Each calls fn for every thread currently in the queue, front to back,
// without removing them.
func (q *ThreadQueue) Each(fn func(*Thread)) {
	for e := q.l.Front(); e != nil; e = e.Next() {
		fn(e.Value.(*Thread))
	}
}
