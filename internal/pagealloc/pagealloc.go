// Package pagealloc is a fixed-size 4 KiB page allocator over a
// preallocated arena, a free-list stand-in for a real physical page
// allocator (no paging, no page tables — an explicit Non-goal). Grounded
// on the free-list reuse idiom in eventloop's microtask ring buffer
// (_examples/joeycumines-go-utilpkg/eventloop/ingress.go), generalized
// from a ring of queued callbacks to a stack of free frame indices.
package pagealloc

import (
	"sync"

	"github.com/geekos-go/kernel/errno"
)

// PageSize is the fixed frame size in bytes.
const PageSize = 4096

// Frame identifies one page-sized frame within the arena.
type Frame struct {
	Index int
	arena *Allocator
}

// Bytes returns the frame's backing memory.
func (f Frame) Bytes() []byte {
	start := f.Index * PageSize
	return f.arena.arena[start : start+PageSize]
}

// Allocator hands out and reclaims fixed-size frames from a fixed arena.
type Allocator struct {
	mu    sync.Mutex
	arena []byte
	free  []int
}

// New returns an Allocator with numFrames frames available.
func New(numFrames int) *Allocator {
	a := &Allocator{
		arena: make([]byte, numFrames*PageSize),
		free:  make([]int, numFrames),
	}
	for i := range a.free {
		a.free[i] = numFrames - 1 - i
	}
	return a
}

// Alloc returns one free, zeroed frame.
func (a *Allocator) Alloc() (Frame, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.free) == 0 {
		return Frame{}, errno.OutOfMemory
	}
	idx := a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]
	f := Frame{Index: idx, arena: a}
	clear(f.Bytes())
	return f, nil
}

// Free returns f to the pool.
func (a *Allocator) Free(f Frame) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.free = append(a.free, f.Index)
}

// Available returns the number of free frames.
func (a *Allocator) Available() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.free)
}
