package syscalls

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/geekos-go/kernel/internal/blockdev"
	"github.com/geekos-go/kernel/internal/console"
	"github.com/geekos-go/kernel/internal/kheap"
	"github.com/geekos-go/kernel/internal/keyboard"
	"github.com/geekos-go/kernel/internal/vfs"
	"github.com/geekos-go/kernel/ksync"
	"github.com/geekos-go/kernel/sched"
	"github.com/geekos-go/kernel/uctx"
)

func newTestDispatcher() (*Dispatcher, *sched.Scheduler) {
	s := sched.New()
	go s.Run()
	d := &Dispatcher{
		Scheduler: s,
		FS:        vfs.New(blockdev.New(64)),
		PathList:  "/bin",
		Console:   console.New(),
		Keyboard:  keyboard.New(16),
		Sems:      ksync.NewSemaphoreRegistry(s),
		Heap:      kheap.New(1 << 16),
		Log:       zerolog.Nop(),
	}
	return d, s
}

// minimalImage builds a header-only ELF image with a single empty
// PT_LOAD segment, enough for uctx.Load/elfload.Parse to accept.
func minimalImage() []byte {
	const headerSize = 32
	const phEntSize = 20
	buf := make([]byte, headerSize+phEntSize)
	binary.LittleEndian.PutUint32(buf[0:4], 0)          // entry
	binary.LittleEndian.PutUint32(buf[4:8], headerSize) // phoff
	binary.LittleEndian.PutUint32(buf[8:12], 1)         // phnum
	base := headerSize
	binary.LittleEndian.PutUint32(buf[base:base+4], 0)  // offset
	binary.LittleEndian.PutUint32(buf[base+4:base+8], 0) // filesz
	binary.LittleEndian.PutUint32(buf[base+8:base+12], 0) // vaddr
	binary.LittleEndian.PutUint32(buf[base+12:base+16], 0) // memsz
	binary.LittleEndian.PutUint32(buf[base+16:base+20], 0) // flags
	return buf
}

func TestSpawnLoadsAndRunsChildProgram(t *testing.T) {
	d, s := newTestDispatcher()
	require.NoError(t, d.FS.Put("/bin/child.exe", minimalImage()))

	childExited := make(chan int32, 1)
	d.RegisterProgram("/bin/child.exe", func(trap Trap) {
		childExited <- trap(9, Frame{})
		trap(1, Frame{EBX: 5})
	})

	parentCtx, err := uctx.Load(minimalImage(), nil, 0, "parent", kheap.New(1<<16))
	require.NoError(t, err)
	parentCtx.Attach()

	name, command := "child", ""
	require.NoError(t, parentCtx.CopyToUser(0, []byte(name)))

	spawnedPID := make(chan int32, 1)
	s.StartUserThread(parentCtx, func(self *sched.Thread, _ any) {
		trap := trapFor(d, self)
		pid := trap(7, Frame{EBX: 0, ECX: uint32(len(name)), EDX: 0, ESI: uint32(len(command))})
		spawnedPID <- pid
		trap(1, Frame{EBX: 0})
	}, sched.Priority(), true)

	select {
	case pid := <-spawnedPID:
		require.Greater(t, pid, int32(0))
		select {
		case childPID := <-childExited:
			require.Equal(t, pid, childPID)
		case <-time.After(time.Second):
			t.Fatal("child program never ran")
		}
	case <-time.After(time.Second):
		t.Fatal("spawn never returned")
	}
}

func TestGetPidReturnsCallerPID(t *testing.T) {
	d, s := newTestDispatcher()

	resultCh := make(chan int, 1)
	th := s.StartKernelThread(func(self *sched.Thread, _ any) {
		f := &Frame{EAX: 9}
		d.Dispatch(self, f)
		resultCh <- int(f.EAX)
	}, nil, sched.Priority(), true)

	select {
	case got := <-resultCh:
		require.Equal(t, int(th.PID), got)
	case <-time.After(time.Second):
		t.Fatal("get_pid never returned")
	}
}

func TestIllegalSyscallNumberKillsThread(t *testing.T) {
	d, s := newTestDispatcher()

	exited := make(chan struct{})
	th := s.StartKernelThread(func(self *sched.Thread, _ any) {
		f := &Frame{EAX: NumSyscalls}
		d.Dispatch(self, f)
		close(exited) // unreachable: Exit never returns
	}, nil, sched.Priority(), true)

	require.Eventually(t, func() bool {
		return !th.Alive()
	}, time.Second, time.Millisecond)
	require.Equal(t, -1, th.ExitCode())
	select {
	case <-exited:
		t.Fatal("thread body resumed after illegal syscall exit")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSetSchedulingPolicyValidatesRange(t *testing.T) {
	d, s := newTestDispatcher()

	resultCh := make(chan int, 1)
	s.StartKernelThread(func(self *sched.Thread, _ any) {
		f := &Frame{EAX: 10, EBX: 99, ECX: 4}
		d.Dispatch(self, f)
		resultCh <- int(int32(f.EAX))
	}, nil, sched.Priority(), true)

	select {
	case got := <-resultCh:
		require.Equal(t, -1, got)
	case <-time.After(time.Second):
		t.Fatal("set_scheduling_policy never returned")
	}
}
