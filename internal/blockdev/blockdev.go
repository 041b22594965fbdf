// Package blockdev models a block storage device: a fixed-size array of
// fixed-size blocks, read and written whole. A real driver would talk to
// IDE/DMA hardware; this is a host-memory stand-in good enough to back
// the VFS collaborator end-to-end, grounded on
// eventloop.ChunkedIngress's chunked-buffer allocation discipline
// (_examples/joeycumines-go-utilpkg/eventloop/ingress.go), generalized
// from a growable ingest buffer to a fixed grid of fixed-size blocks.
package blockdev

import (
	"sync"

	"github.com/geekos-go/kernel/errno"
)

// BlockSize is the size, in bytes, of every block on a Device.
const BlockSize = 512

// Device is an in-memory block device.
type Device struct {
	mu     sync.RWMutex
	blocks [][BlockSize]byte
}

// New returns a Device with numBlocks zeroed blocks.
func New(numBlocks int) *Device {
	return &Device{blocks: make([][BlockSize]byte, numBlocks)}
}

// BlockCount returns the number of addressable blocks.
func (d *Device) BlockCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.blocks)
}

// Read returns a copy of block's contents.
func (d *Device) Read(block int) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if block < 0 || block >= len(d.blocks) {
		return nil, errno.InvalidArg
	}
	out := make([]byte, BlockSize)
	copy(out, d.blocks[block][:])
	return out, nil
}

// Write overwrites block with data, which must be at most BlockSize bytes;
// shorter writes zero-pad the remainder.
func (d *Device) Write(block int, data []byte) error {
	if len(data) > BlockSize {
		return errno.InvalidArg
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if block < 0 || block >= len(d.blocks) {
		return errno.InvalidArg
	}
	var buf [BlockSize]byte
	copy(buf[:], data)
	d.blocks[block] = buf
	return nil
}
