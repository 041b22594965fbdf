package uctx

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/geekos-go/kernel/internal/kheap"
)

func TestTokenizeCollapsesWhitespace(t *testing.T) {
	require.Equal(t, []string{"a.exe", "one", "two"}, Tokenize("  a.exe   one\ttwo\n"))
	require.Len(t, Tokenize(""), 0)
}

func TestComputeArgumentBlockSizeMatchesFormat(t *testing.T) {
	numArgs, size := ComputeArgumentBlockSize("prog foo bar")
	require.Equal(t, 3, numArgs)

	buf := make([]byte, size)
	FormatArgumentBlock(buf, numArgs, 0x1000, "prog foo bar")

	argc := le32(buf[0:4])
	require.Equal(t, uint32(3), argc)
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func TestLoadPlacesSegmentsAndArgBlock(t *testing.T) {
	exe := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	segs := []Segment{
		{FileOffset: 0, FileSize: 4, VAddr: 0, MemSize: 4, Executable: true},
	}
	ctx, err := Load(exe, segs, 0, "prog arg1", kheap.New(1<<16))
	require.NoError(t, err)

	var out [4]byte
	require.NoError(t, ctx.CopyFromUser(out[:], 0))
	require.Equal(t, exe, out[:])

	require.Equal(t, ctx.ArgBlockAddr(), ctx.InitialStackPointer())
	require.Greater(t, ctx.Size(), ctx.ArgBlockAddr())
}

func TestCopyFromUserRejectsOutOfBounds(t *testing.T) {
	ctx, err := Load(nil, nil, 0, "prog", kheap.New(1<<16))
	require.NoError(t, err)

	buf := make([]byte, 16)
	err = ctx.CopyFromUser(buf, ctx.Size()-4)
	require.Error(t, err)

	err = ctx.CopyFromUser(buf, ctx.Size())
	require.Error(t, err)
}

func TestAttachDetachRefCounting(t *testing.T) {
	ctx, err := Load(nil, nil, 0, "prog", kheap.New(1<<16))
	require.NoError(t, err)

	ctx.Attach()
	ctx.Attach()
	require.Equal(t, int32(2), ctx.RefCount())

	require.False(t, ctx.Detach())
	require.True(t, ctx.Detach())
}
