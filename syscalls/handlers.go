package syscalls

import (
	"github.com/geekos-go/kernel/errno"
	"github.com/geekos-go/kernel/internal/console"
	"github.com/geekos-go/kernel/internal/elfload"
	"github.com/geekos-go/kernel/ksync"
	"github.com/geekos-go/kernel/sched"
	"github.com/geekos-go/kernel/uctx"
)

const vfsMaxPathLen = 255
const maxCommandLen = 1023

// sysNull (0) does nothing and returns immediately.
func sysNull(_ *Dispatcher, _ *sched.Thread, _ *uctx.Context, _ *Frame) int {
	return 0
}

// sysExit (1) terminates the calling process with EBX as its exit code.
// It never returns to user mode; Dispatch's write-back of the result is
// moot since Exit never comes back.
func sysExit(d *Dispatcher, _ *sched.Thread, _ *uctx.Context, f *Frame) int {
	d.Scheduler.Exit(int(int32(f.EBX)))
	return 0
}

// sysPrintString (2) copies EBX[0:ECX) from user memory and writes it to
// the console, honoring embedded CSI sequences.
func sysPrintString(d *Dispatcher, _ *sched.Thread, ctx *uctx.Context, f *Frame) int {
	length := f.ECX
	if length == 0 {
		return 0
	}
	s, err := copyUserString(ctx, f.EBX, length, 1023)
	if err != nil {
		d.Log.Warn().Err(err).Msg("print_string: bad user pointer")
		return errno.Code(err)
	}
	if err := d.Console.WriteString(s); err != nil {
		d.Log.Warn().Err(err).Msg("print_string: console write failed")
		return errno.Code(errno.Unspecified)
	}
	return 0
}

// sysGetKey (3) blocks until a keycode is available and returns it.
func sysGetKey(d *Dispatcher, _ *sched.Thread, _ *uctx.Context, _ *Frame) int {
	for {
		if code, ok := d.Keyboard.Pop(); ok {
			return int(code)
		}
		d.Scheduler.Yield()
	}
}

// sysSetAttr (4) sets the console's current display attribute from EBX.
func sysSetAttr(d *Dispatcher, _ *sched.Thread, _ *uctx.Context, f *Frame) int {
	d.Console.SetAttr(console.Attr(f.EBX))
	return 0
}

// sysGetCursor (5) writes the current row/column into user memory at
// EBX/ECX respectively.
func sysGetCursor(d *Dispatcher, _ *sched.Thread, ctx *uctx.Context, f *Frame) int {
	row, col := d.Console.Cursor()
	var rowBuf, colBuf [4]byte
	putLE32(rowBuf[:], uint32(row))
	putLE32(colBuf[:], uint32(col))
	if err := ctx.CopyToUser(f.EBX, rowBuf[:]); err != nil {
		return -1
	}
	if err := ctx.CopyToUser(f.ECX, colBuf[:]); err != nil {
		return -1
	}
	return 0
}

// sysPutCursor (6) moves the cursor to (EBX, ECX).
func sysPutCursor(d *Dispatcher, _ *sched.Thread, _ *uctx.Context, f *Frame) int {
	d.Console.SetCursor(int(f.EBX), int(f.ECX))
	return 0
}

// sysSpawn (7) loads and starts a new user process: EBX/ECX name the
// executable path in user memory, EDX/ESI the command string. Consults
// the spawn limiter before doing any work. Returns the new pid, or a
// negative error code (errno.NotFound specifically if the executable
// couldn't be resolved).
func sysSpawn(d *Dispatcher, t *sched.Thread, ctx *uctx.Context, f *Frame) int {
	if d.SpawnLimiter != nil {
		if err := d.SpawnLimiter.Allow(t.PID); err != nil {
			d.Log.Warn().Uint32("pid", t.PID).Err(err).Msg("spawn: rate limited")
			return errno.Code(err)
		}
	}

	name, err := copyUserString(ctx, f.EBX, f.ECX, vfsMaxPathLen)
	if err != nil {
		d.Log.Warn().Uint32("pid", t.PID).Err(err).Msg("spawn: bad name pointer")
		return errno.Code(err)
	}
	command, err := copyUserString(ctx, f.EDX, f.ESI, maxCommandLen)
	if err != nil {
		d.Log.Warn().Uint32("pid", t.PID).Err(err).Msg("spawn: bad command pointer")
		return errno.Code(err)
	}

	resolvedPath, exe, err := d.FS.Resolve(name, d.PathList)
	if err != nil {
		d.Log.Warn().Uint32("pid", t.PID).Str("name", name).Msg("spawn: executable not found")
		return errno.Code(errno.NotFound)
	}

	segments, entry, err := elfload.Parse(exe)
	if err != nil {
		d.Log.Warn().Uint32("pid", t.PID).Str("path", resolvedPath).Err(err).Msg("spawn: bad executable")
		return errno.Code(err)
	}

	newCtx, err := uctx.Load(exe, segments, entry, command, d.Heap)
	if err != nil {
		d.Log.Warn().Uint32("pid", t.PID).Str("path", resolvedPath).Err(err).Msg("spawn: context allocation failed")
		return errno.Code(err)
	}
	newCtx.Attach()

	// Detached per spec's explicit wording for spawn, even though no
	// caller ever joins the child as a result.
	child := d.StartProcess(resolvedPath, newCtx, sched.Priority(), true)

	return int(child.PID)
}

// sysWait (8) blocks until the process named by EBX exits, returning its
// exit code, or -1 if no such process (owned by the caller) exists.
func sysWait(d *Dispatcher, t *sched.Thread, _ *uctx.Context, f *Frame) int {
	target := d.Scheduler.Lookup(f.EBX)
	if target == nil {
		return -1
	}
	return d.Scheduler.Join(target)
}

// sysGetPID (9) returns the calling process's pid.
func sysGetPID(_ *Dispatcher, t *sched.Thread, _ *uctx.Context, _ *Frame) int {
	return int(t.PID)
}

// sysSetSchedulingPolicy (10) validates policy ∈ {0,1} and
// quantum ∈ [1,100], then applies both.
func sysSetSchedulingPolicy(d *Dispatcher, _ *sched.Thread, _ *uctx.Context, f *Frame) int {
	policy := sched.Policy(f.EBX)
	if policy != sched.RoundRobin && policy != sched.MultiLevelFeedback {
		return -1
	}
	quantum := int(f.ECX)
	if quantum < 1 || quantum > 100 {
		return -1
	}
	d.Scheduler.SetPolicy(policy)
	d.Scheduler.SetQuantum(quantum)
	return 0
}

// sysGetTimeOfDay (11) returns the scheduler's total tick count.
func sysGetTimeOfDay(d *Dispatcher, _ *sched.Thread, _ *uctx.Context, _ *Frame) int {
	return int(d.Scheduler.NumTicks())
}

// sysCreateSemaphore (12) creates (or joins) a named semaphore: EBX/ECX
// name it in user memory, EDX is the initial count.
func sysCreateSemaphore(d *Dispatcher, t *sched.Thread, ctx *uctx.Context, f *Frame) int {
	name, err := copyUserString(ctx, f.EBX, f.ECX, ksync.MaxSemaphoreName)
	if err != nil {
		return errno.Code(err)
	}
	id, err := d.Sems.Create(name, int(f.EDX), t)
	if err != nil {
		d.Log.Warn().Uint32("pid", t.PID).Str("name", name).Err(err).Msg("create_semaphore failed")
		return errno.Code(err)
	}
	return id
}

// sysP (13) performs P on the semaphore named by EBX.
func sysP(d *Dispatcher, t *sched.Thread, _ *uctx.Context, f *Frame) int {
	if int32(f.EBX) <= 0 {
		return errno.Code(errno.InvalidArg)
	}
	if err := d.Sems.P(int(f.EBX), t); err != nil {
		d.Log.Warn().Uint32("pid", t.PID).Uint32("sem", f.EBX).Err(err).Msg("p failed")
		return errno.Code(err)
	}
	return 0
}

// sysV (14) performs V on the semaphore named by EBX.
func sysV(d *Dispatcher, t *sched.Thread, _ *uctx.Context, f *Frame) int {
	if int32(f.EBX) <= 0 {
		return errno.Code(errno.InvalidArg)
	}
	if err := d.Sems.V(int(f.EBX), t); err != nil {
		return errno.Code(err)
	}
	return 0
}

// sysDestroySemaphore (15) removes the caller's registration from the
// semaphore named by EBX.
func sysDestroySemaphore(d *Dispatcher, t *sched.Thread, _ *uctx.Context, f *Frame) int {
	if int32(f.EBX) <= 0 {
		return errno.Code(errno.InvalidArg)
	}
	if err := d.Sems.Destroy(int(f.EBX), t); err != nil {
		return errno.Code(err)
	}
	return 0
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
