// Package kheap is a first-fit free-list allocator over a fixed byte
// arena, the kernel heap collaborator spec calls out (general-purpose
// kernel allocation, distinct from pagealloc's fixed 4 KiB frames).
// Grounded on the free-list bookkeeping idiom of eventloop's microtask
// ring buffer (_examples/joeycumines-go-utilpkg/eventloop/ingress.go),
// generalized from a ring of fixed-size slots to variable-size blocks
// merged on free.
package kheap

import (
	"sort"
	"sync"
	"unsafe"

	"github.com/geekos-go/kernel/errno"
)

type block struct {
	offset, size int
}

// Heap is a first-fit allocator over a fixed-size arena.
type Heap struct {
	mu    sync.Mutex
	arena []byte
	free  []block
	used  map[int]int // offset -> size, for Free's bounds/merge bookkeeping
}

// New returns a Heap managing an arena of size bytes.
func New(size int) *Heap {
	return &Heap{
		arena: make([]byte, size),
		free:  []block{{offset: 0, size: size}},
		used:  make(map[int]int),
	}
}

// Alloc reserves the first free block at least n bytes long, splitting it
// if it's larger, and returns a slice over the reserved region.
func (h *Heap) Alloc(n int) ([]byte, error) {
	if n <= 0 {
		return nil, errno.InvalidArg
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, b := range h.free {
		if b.size < n {
			continue
		}
		h.free = append(h.free[:i], h.free[i+1:]...)
		if b.size > n {
			h.free = append(h.free, block{offset: b.offset + n, size: b.size - n})
			sort.Slice(h.free, func(i, j int) bool { return h.free[i].offset < h.free[j].offset })
		}
		h.used[b.offset] = n
		region := h.arena[b.offset : b.offset+n]
		clear(region)
		return region, nil
	}
	return nil, errno.OutOfMemory
}

// Free releases a region previously returned by Alloc, merging it with
// adjacent free blocks.
func (h *Heap) Free(region []byte) error {
	if len(region) == 0 {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	off := sliceOffset(h.arena, region)
	size, ok := h.used[off]
	if !ok || size != len(region) {
		return errno.InvalidArg
	}
	delete(h.used, off)

	h.free = append(h.free, block{offset: off, size: size})
	sort.Slice(h.free, func(i, j int) bool { return h.free[i].offset < h.free[j].offset })
	h.coalesce()
	return nil
}

func (h *Heap) coalesce() {
	merged := h.free[:0]
	for _, b := range h.free {
		if len(merged) > 0 {
			last := &merged[len(merged)-1]
			if last.offset+last.size == b.offset {
				last.size += b.size
				continue
			}
		}
		merged = append(merged, b)
	}
	h.free = merged
}

func sliceOffset(arena, region []byte) int {
	if len(region) == 0 {
		return -1
	}
	return int(uintptr(unsafe.Pointer(&region[0])) - uintptr(unsafe.Pointer(&arena[0])))
}
