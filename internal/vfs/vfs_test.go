package vfs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/geekos-go/kernel/internal/blockdev"
)

func TestResolveAbsoluteLikePath(t *testing.T) {
	fs := New(blockdev.New(16))
	require.NoError(t, fs.Put("bin/ping", []byte("PING")))

	path, data, err := fs.Resolve("bin/ping", "/usr/bin:/bin")
	require.NoError(t, err)
	require.Equal(t, "bin/ping", path)
	require.Equal(t, "PING", string(data))
}

func TestResolveSearchesPathListWithExeRetry(t *testing.T) {
	fs := New(blockdev.New(16))
	require.NoError(t, fs.Put("/bin/pong.exe", []byte("PONG")))

	path, data, err := fs.Resolve("pong", "/usr/bin:/bin")
	require.NoError(t, err)
	require.Equal(t, "/bin/pong.exe", path)
	require.Equal(t, "PONG", string(data))
}

func TestResolveExhaustsPathList(t *testing.T) {
	fs := New(blockdev.New(16))
	_, _, err := fs.Resolve("missing", "/a:/b")
	require.Error(t, err)
}

func TestPutRejectsWhenDeviceIsFull(t *testing.T) {
	fs := New(blockdev.New(1))
	require.NoError(t, fs.Put("/bin/a", make([]byte, blockdev.BlockSize)))
	require.Error(t, fs.Put("/bin/b", []byte("x")))
}
