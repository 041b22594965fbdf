package syscalls

import (
	"github.com/rs/zerolog"

	"github.com/geekos-go/kernel/errno"
	"github.com/geekos-go/kernel/internal/console"
	"github.com/geekos-go/kernel/internal/kheap"
	"github.com/geekos-go/kernel/internal/keyboard"
	"github.com/geekos-go/kernel/internal/vfs"
	"github.com/geekos-go/kernel/ksync"
	"github.com/geekos-go/kernel/sched"
	"github.com/geekos-go/kernel/uctx"
)

// NumSyscalls is the fixed size of the dispatch table (spec §6).
const NumSyscalls = 16

// Handler services one syscall: it reads its arguments from frame's
// named fields (and, via ctx, the calling process's user memory) and
// returns the value to store back into frame.EAX.
type Handler func(d *Dispatcher, t *sched.Thread, ctx *uctx.Context, f *Frame) int

// Dispatcher wires the syscall table to the kernel's collaborators: the
// scheduler, the VFS/ELF loader pair spawn needs, the console and
// keyboard devices, and the semaphore registry.
type Dispatcher struct {
	Scheduler    *sched.Scheduler
	FS           *vfs.FS
	PathList     string
	Console      *console.Console
	Keyboard     *keyboard.Queue
	Sems         *ksync.SemaphoreRegistry
	SpawnLimiter *ksync.SpawnLimiter
	Heap         *kheap.Heap
	Log          zerolog.Logger

	programs map[string]Program
}

var table [NumSyscalls]Handler

func init() {
	table[0] = sysNull
	table[1] = sysExit
	table[2] = sysPrintString
	table[3] = sysGetKey
	table[4] = sysSetAttr
	table[5] = sysGetCursor
	table[6] = sysPutCursor
	table[7] = sysSpawn
	table[8] = sysWait
	table[9] = sysGetPID
	table[10] = sysSetSchedulingPolicy
	table[11] = sysGetTimeOfDay
	table[12] = sysCreateSemaphore
	table[13] = sysP
	table[14] = sysV
	table[15] = sysDestroySemaphore
}

// Dispatch services one trap: the syscall number is read from f.EAX (the
// designated register, per trap.c); an out-of-range number kills the
// calling process with exit code -1 rather than returning an error code.
// Otherwise the numbered handler runs and its result is written back
// into f.EAX.
func (d *Dispatcher) Dispatch(t *sched.Thread, f *Frame) {
	num := f.EAX
	if num >= NumSyscalls {
		d.Log.Warn().Uint32("pid", t.PID).Uint32("syscall", num).Msg("illegal syscall number, killing process")
		d.Scheduler.Exit(-1)
		return
	}

	var ctx *uctx.Context
	if t.UserContext != nil {
		ctx = t.UserContext.(*uctx.Context)
	}

	result := table[num](d, t, ctx, f)
	f.EAX = uint32(result)
	d.Scheduler.CheckPoint()
}

// StartProcess starts ctx as a top-level user thread rooted at
// resolvedPath, the same launch path sysSpawn uses for every child
// process, exposed so callers outside the syscall layer (the kernel's
// own Spawn, for the machine's first process) don't have to duplicate
// runUserThread's wiring.
func (d *Dispatcher) StartProcess(resolvedPath string, ctx *uctx.Context, priority int, detached bool) *sched.Thread {
	return d.Scheduler.StartUserThread(ctx, func(self *sched.Thread, userContext any) {
		runUserThread(d, self, resolvedPath, userContext.(*uctx.Context))
	}, priority, detached)
}

// copyUserString copies a length-delimited (not nul-terminated) string
// out of ctx at userAddr, the way Copy_User_String does in the original
// source: the caller supplies the exact length, rejected outright if it
// exceeds maxLen.
func copyUserString(ctx *uctx.Context, userAddr, length, maxLen uint32) (string, error) {
	if length > maxLen {
		return "", errno.InvalidArg
	}
	buf := make([]byte, length)
	if err := ctx.CopyFromUser(buf, userAddr); err != nil {
		return "", err
	}
	return string(buf), nil
}
