package keyboard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPushPopFIFO(t *testing.T) {
	q := New(3)
	q.Push('a')
	q.Push('b')
	v, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, uint16('a'), v)
	require.Equal(t, 1, q.Len())
}

func TestPushDropsOldestOnOverflow(t *testing.T) {
	q := New(2)
	q.Push(1)
	q.Push(2)
	q.Push(3)
	require.Equal(t, 2, q.Len())

	v, _ := q.Pop()
	require.Equal(t, uint16(2), v)
	v, _ = q.Pop()
	require.Equal(t, uint16(3), v)
}

func TestPopEmptyReportsFalse(t *testing.T) {
	q := New(1)
	_, ok := q.Pop()
	require.False(t, ok)
}
