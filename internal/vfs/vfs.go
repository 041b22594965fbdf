// Package vfs is a flat, write-once virtual filesystem backed by a
// blockdev.Device: a name-to-blocks directory map standing in for a real
// mounted filesystem's directory entries, plus the PATH-style
// executable-name resolution spawn uses (spec §6 "Executable-name
// resolution"). Subdirectories, a reusable free-block list, and deletion
// are explicit Non-goals; this exists only so spawn has something
// concrete to read an executable's bytes from. Grounded on pfat.c's
// Block_Read(mountPoint->dev, blockNum, buffer) pattern for pulling file
// contents off a block device a block at a time
// (_examples/original_source/src/geekos/pfat.c:158,589,623,636),
// simplified from a full FAT12 layout to a linear block allocator plus a
// directory map.
package vfs

import (
	"strings"
	"sync"

	"github.com/geekos-go/kernel/errno"
	"github.com/geekos-go/kernel/internal/blockdev"
)

// dirent records where one file's blocks live on dev.
type dirent struct {
	startBlock int
	numBlocks  int
	size       int
}

// FS is a flat filesystem backed by a block device.
type FS struct {
	mu    sync.RWMutex
	dev   *blockdev.Device
	next  int
	files map[string]dirent
}

// New returns an empty FS backed by dev.
func New(dev *blockdev.Device) *FS {
	return &FS{dev: dev, files: make(map[string]dirent)}
}

// Put installs (or overwrites) the file at path, writing data to dev one
// block at a time. Overwriting a path abandons its previous blocks
// rather than reclaiming them, the cost of never needing a free-block
// list for a filesystem nothing ever deletes from.
func (f *FS) Put(path string, data []byte) error {
	numBlocks := (len(data) + blockdev.BlockSize - 1) / blockdev.BlockSize
	if numBlocks == 0 {
		numBlocks = 1
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.next+numBlocks > f.dev.BlockCount() {
		return errno.OutOfMemory
	}
	start := f.next
	for i := 0; i < numBlocks; i++ {
		lo := i * blockdev.BlockSize
		hi := lo + blockdev.BlockSize
		if hi > len(data) {
			hi = len(data)
		}
		if err := f.dev.Write(start+i, data[lo:hi]); err != nil {
			return err
		}
	}
	f.next += numBlocks
	f.files[path] = dirent{startBlock: start, numBlocks: numBlocks, size: len(data)}
	return nil
}

// ReadFully returns the complete contents of path, read back off dev a
// block at a time, or errno.NotFound.
func (f *FS) ReadFully(path string) ([]byte, error) {
	f.mu.RLock()
	entry, ok := f.files[path]
	f.mu.RUnlock()
	if !ok {
		return nil, errno.NotFound
	}

	out := make([]byte, 0, entry.size)
	for i := 0; i < entry.numBlocks; i++ {
		block, err := f.dev.Read(entry.startBlock + i)
		if err != nil {
			return nil, err
		}
		out = append(out, block...)
	}
	return out[:entry.size], nil
}

// Resolve implements spawn's shell-equivalent executable-name search: if
// name already contains a "/", it is used as-is. Otherwise, each
// ":"-separated entry of pathList is tried in turn as
// "<entry>/<name>", and — if that fails and name doesn't already end in
// ".exe" — as "<entry>/<name>.exe", until one is found or the list is
// exhausted. Returns the resolved path and its bytes.
func (f *FS) Resolve(name, pathList string) (string, []byte, error) {
	if strings.Contains(name, "/") {
		data, err := f.ReadFully(name)
		if err != nil {
			return "", nil, err
		}
		return name, data, nil
	}

	for _, dir := range strings.Split(pathList, ":") {
		if dir == "" {
			continue
		}
		candidate := dir + "/" + name
		if data, err := f.ReadFully(candidate); err == nil {
			return candidate, data, nil
		}
		if !strings.HasSuffix(name, ".exe") {
			candidate = candidate + ".exe"
			if data, err := f.ReadFully(candidate); err == nil {
				return candidate, data, nil
			}
		}
	}
	return "", nil, errno.NotFound
}
