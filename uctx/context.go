// Package uctx implements the user-context layer: a flat, page-aligned
// memory region per process holding its loaded executable image, stack,
// and argument block, plus the bounds-checked copy-in/copy-out that
// crosses the kernel/user boundary.
//
// Real segmentation (an LDT with code/data descriptors loaded via lldt)
// isn't something Go can express, so Context models only what spec's
// invariants actually depend on: a contiguous byte region, a code/data
// privilege split recorded as metadata rather than hardware state, and
// validated offset arithmetic into that region. Grounded on
// _examples/original_source/src/geekos/userseg.c's Create_User_Context and
// user.c's Load_User_Program/Copy_From_User/Copy_To_User, and on
// eventloop.ChunkedIngress's "bounded region, validated offset" discipline
// (_examples/joeycumines-go-utilpkg/eventloop/ingress.go).
package uctx

import (
	"sync"

	"github.com/geekos-go/kernel/errno"
)

// DefaultStackSize is the size, in bytes, of the stack GeekOS allocates for
// every user process (DEFAULT_USER_STACK_SIZE).
const DefaultStackSize = 8192

// PageSize is the unit segment sizes are expressed in.
const PageSize = 4096

// Segment describes one ELF loadable segment's placement within a
// Context's flat region.
type Segment struct {
	FileOffset uint32
	FileSize   uint32
	VAddr      uint32
	MemSize    uint32
	Executable bool
	Writable   bool
}

// Allocator is the kernel heap collaborator Load draws a process's flat
// memory region from, satisfied by kheap.Heap. Modeled as an interface
// here rather than importing kheap directly, the way eventloop's stages
// depend on the narrow interface a collaborator needs rather than its
// concrete type.
type Allocator interface {
	Alloc(n int) ([]byte, error)
	Free(region []byte) error
}

// Context is a process's flat memory region plus the bookkeeping needed to
// load, address, and tear it down.
type Context struct {
	mu sync.Mutex

	memory []byte
	size   uint32
	heap   Allocator

	entryAddr        uint32
	argBlockAddr     uint32
	stackPointerAddr uint32

	refCount int32
}

// roundUpToPage rounds n up to the next multiple of PageSize.
func roundUpToPage(n uint32) uint32 {
	if n%PageSize == 0 {
		return n
	}
	return (n/PageSize + 1) * PageSize
}

// Load builds a Context from parsed ELF segments, executable bytes, and
// the full command line (program name plus arguments), following
// user.c's Load_User_Program: compute the high-water mark of the
// segments, allocate room for segments + stack + argument block from
// heap (the same call Create_User_Context makes against the kernel
// heap, userseg.c:47,54, rather than against raw process memory), copy
// each segment's file bytes into place (the implicit zero-fill of
// memSize-fileSize is free, since Heap.Alloc zeroes the region it
// hands back), and format the argument block at the end.
func Load(exe []byte, segments []Segment, entryAddr uint32, command string, heap Allocator) (*Context, error) {
	var maxVA uint32
	for _, seg := range segments {
		top := seg.VAddr + seg.MemSize
		if top > maxVA {
			maxVA = top
		}
	}

	numArgs, argBlockSize := ComputeArgumentBlockSize(command)

	size := roundUpToPage(maxVA) + DefaultStackSize
	argBlockAddr := size
	size += argBlockSize

	memory, err := heap.Alloc(int(size))
	if err != nil {
		return nil, err
	}

	ctx := &Context{
		memory: memory,
		size:   size,
		heap:   heap,
	}

	for _, seg := range segments {
		if seg.FileOffset+seg.FileSize > uint32(len(exe)) {
			return nil, errno.BadExecutable
		}
		if seg.VAddr+seg.FileSize > size {
			return nil, errno.BadExecutable
		}
		copy(ctx.memory[seg.VAddr:seg.VAddr+seg.FileSize], exe[seg.FileOffset:seg.FileOffset+seg.FileSize])
	}

	FormatArgumentBlock(ctx.memory[argBlockAddr:argBlockAddr+argBlockSize], numArgs, argBlockAddr, command)

	ctx.entryAddr = entryAddr
	ctx.argBlockAddr = argBlockAddr
	ctx.stackPointerAddr = argBlockAddr

	return ctx, nil
}

// Size returns the region's total size in bytes.
func (c *Context) Size() uint32 { return c.size }

// EntryAddr returns the program's entry point, a user-mode address.
func (c *Context) EntryAddr() uint32 { return c.entryAddr }

// ArgBlockAddr returns the argument block's user-mode base address.
func (c *Context) ArgBlockAddr() uint32 { return c.argBlockAddr }

// InitialStackPointer returns the stack pointer a freshly-started user
// thread should begin with.
func (c *Context) InitialStackPointer() uint32 { return c.stackPointerAddr }

// Attach increments the context's reference count. Call once per thread
// that is given this context.
func (c *Context) Attach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refCount++
}

// Detach decrements the context's reference count, reporting whether it
// has reached zero. On the final detach it returns the region to the
// heap it was allocated from, following the original's Destroy_User_Context,
// which frees the segment's backing memory once its last thread exits.
func (c *Context) Detach() (freed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refCount--
	freed = c.refCount <= 0
	if freed && c.memory != nil {
		_ = c.heap.Free(c.memory)
		c.memory = nil
	}
	return freed
}

// RefCount returns the current reference count.
func (c *Context) RefCount() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refCount
}
