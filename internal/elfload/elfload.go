// Package elfload parses the small ELF subset spec §6 describes: a
// header at offset 0 naming an entry point and a program-header table,
// up to three PT_LOAD segments, each contributing one
// {offset, fileSize, vaddr, memSize, flags}. This is not a general ELF
// reader — no relocation, no dynamic linking, no sections — only the
// load-segment geometry uctx.Load needs. Grounded on
// eventloop's fixed-width binary-framing discipline (reading a run of
// little-endian fields out of a byte slice by hand,
// _examples/joeycumines-go-utilpkg/eventloop/ingress.go).
package elfload

import (
	"encoding/binary"

	"github.com/geekos-go/kernel/errno"
	"github.com/geekos-go/kernel/uctx"
)

// MaxSegments is the hard cap on PT_LOAD segments accepted; anything
// beyond is a rejected program, not a format error.
const MaxSegments = 3

const (
	headerSize = 32 // entry(4) phoff(4) phnum(4) + 20 bytes reserved
	phEntSize  = 20 // offset(4) filesz(4) vaddr(4) memsz(4) flags(4)

	flagExec  = 0x1
	flagWrite = 0x2
)

// Parse reads data as a header-plus-program-header-table image and
// returns its load segments and entry address.
func Parse(data []byte) ([]uctx.Segment, uint32, error) {
	if len(data) < headerSize {
		return nil, 0, errno.BadExecutable
	}

	entry := binary.LittleEndian.Uint32(data[0:4])
	phoff := binary.LittleEndian.Uint32(data[4:8])
	phnum := binary.LittleEndian.Uint32(data[8:12])

	if phnum > MaxSegments {
		return nil, 0, errno.BadExecutable
	}

	need := uint64(phoff) + uint64(phnum)*uint64(phEntSize)
	if need > uint64(len(data)) {
		return nil, 0, errno.BadExecutable
	}

	segments := make([]uctx.Segment, 0, phnum)
	for i := uint32(0); i < phnum; i++ {
		base := phoff + i*phEntSize
		offset := binary.LittleEndian.Uint32(data[base : base+4])
		fileSize := binary.LittleEndian.Uint32(data[base+4 : base+8])
		vaddr := binary.LittleEndian.Uint32(data[base+8 : base+12])
		memSize := binary.LittleEndian.Uint32(data[base+12 : base+16])
		flags := binary.LittleEndian.Uint32(data[base+16 : base+20])

		if uint64(offset)+uint64(fileSize) > uint64(len(data)) {
			return nil, 0, errno.BadExecutable
		}
		if memSize < fileSize {
			return nil, 0, errno.BadExecutable
		}

		segments = append(segments, uctx.Segment{
			FileOffset: offset,
			FileSize:   fileSize,
			VAddr:      vaddr,
			MemSize:    memSize,
			Executable: flags&flagExec != 0,
			Writable:   flags&flagWrite != 0,
		})
	}

	return segments, entry, nil
}
