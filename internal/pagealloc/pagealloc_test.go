package pagealloc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocFreeRoundTrip(t *testing.T) {
	a := New(2)
	require.Equal(t, 2, a.Available())

	f1, err := a.Alloc()
	require.NoError(t, err)
	f2, err := a.Alloc()
	require.NoError(t, err)
	require.Equal(t, 0, a.Available())

	_, err = a.Alloc()
	require.Error(t, err)

	a.Free(f1)
	require.Equal(t, 1, a.Available())
	a.Free(f2)
	require.Equal(t, 2, a.Available())
}

func TestAllocZeroesFrame(t *testing.T) {
	a := New(1)
	f, err := a.Alloc()
	require.NoError(t, err)
	copy(f.Bytes(), []byte{1, 2, 3})
	a.Free(f)

	f2, err := a.Alloc()
	require.NoError(t, err)
	for _, b := range f2.Bytes() {
		require.Equal(t, byte(0), b)
	}
}
