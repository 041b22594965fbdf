// Package kernel wires together the scheduler, synchronization
// primitives, device collaborators, and the syscall dispatcher into a
// single simulated machine, the way eventloop.Loop wires together a
// poller, a microtask ring, and ingress workers
// (_examples/joeycumines-go-utilpkg/eventloop/loop.go) behind one
// constructor and a small public surface.
package kernel

import (
	"context"
	"time"

	"github.com/geekos-go/kernel/internal/blockdev"
	"github.com/geekos-go/kernel/internal/console"
	"github.com/geekos-go/kernel/internal/elfload"
	"github.com/geekos-go/kernel/internal/intarrival"
	"github.com/geekos-go/kernel/internal/keyboard"
	"github.com/geekos-go/kernel/internal/kheap"
	"github.com/geekos-go/kernel/internal/pagealloc"
	"github.com/geekos-go/kernel/internal/timerdrv"
	"github.com/geekos-go/kernel/internal/vfs"
	"github.com/geekos-go/kernel/ksync"
	"github.com/geekos-go/kernel/sched"
	"github.com/geekos-go/kernel/syscalls"
	"github.com/geekos-go/kernel/uctx"
)

// Kernel is the fully wired simulated machine: a scheduler, its
// synchronization registries, the filesystem and console devices, and
// the syscall dispatcher that binds them all to user-thread traps.
type Kernel struct {
	cfg *Config

	Scheduler  *sched.Scheduler
	Dispatcher *syscalls.Dispatcher
	FS         *vfs.FS
	Console    *console.Console
	Keyboard   *keyboard.Queue
	Sems       *ksync.SemaphoreRegistry
	Limiter    *ksync.SpawnLimiter
	Disk       *blockdev.Device
	Pages      *pagealloc.Allocator
	Heap       *kheap.Heap
	Timer      timerdrv.Driver
	ExternalIO *intarrival.Source

	cancelIO context.CancelFunc
}

// New builds a Kernel from opts, applied over the documented defaults.
// It does not start the scheduler's run loop or the timer driver; call
// Run for that.
func New(opts ...Option) *Kernel {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}

	disk := blockdev.New(2880) // a 1.44MB floppy's worth of 512B blocks, GeekOS's traditional root device size
	pages := pagealloc.New(cfg.PageFrames)

	s := sched.New(
		sched.WithPolicy(cfg.Policy),
		sched.WithQuantum(cfg.Quantum),
		sched.WithLogger(cfg.Log),
		sched.WithPageAllocator(pages),
	)

	k := &Kernel{
		cfg:        cfg,
		Scheduler:  s,
		FS:         vfs.New(disk),
		Console:    console.New(),
		Keyboard:   keyboard.New(cfg.KeyboardDepth),
		Sems:       ksync.NewSemaphoreRegistry(s),
		Limiter:    ksync.NewSpawnLimiter(time.Duration(cfg.SpawnWindowMs)*time.Millisecond, cfg.SpawnMaxBurst),
		Disk:       disk,
		Pages:      pages,
		Heap:       kheap.New(cfg.HeapBytes),
		ExternalIO: intarrival.New(64),
	}

	k.Dispatcher = &syscalls.Dispatcher{
		Scheduler:    s,
		FS:           k.FS,
		PathList:     cfg.PathList,
		Console:      k.Console,
		Keyboard:     k.Keyboard,
		Sems:         k.Sems,
		SpawnLimiter: k.Limiter,
		Heap:         k.Heap,
		Log:          cfg.Log,
	}

	s.OnReap = func(t *sched.Thread) {
		if ctx, ok := t.UserContext.(interface{ Detach() bool }); ok && ctx != nil {
			ctx.Detach()
		}
	}

	if cfg.TickInterval > 0 {
		k.Timer = timerdrv.New(cfg.TickInterval)
	}

	return k
}

// RegisterProgram binds path (an absolute path resolvable through FS, or
// one spawn's name-resolution logic would land on given PathList) to the
// simulated behavior p: the body a real machine would execute by
// fetching and decoding instructions from the loaded image, supplied
// here as a Go closure because nothing in this module interprets
// machine code.
func (k *Kernel) RegisterProgram(path string, p syscalls.Program) {
	k.Dispatcher.RegisterProgram(path, p)
}

// Spawn starts name (resolved via PathList, as the spawn syscall would)
// as a detached top-level user thread with the given command line, the
// same path Start_User_Thread follows for the very first process
// before any syscall has been issued.
func (k *Kernel) Spawn(name, command string) (*sched.Thread, error) {
	resolvedPath, exe, err := k.FS.Resolve(name, k.cfg.PathList)
	if err != nil {
		return nil, err
	}

	segments, entry, err := elfload.Parse(exe)
	if err != nil {
		return nil, err
	}

	ctx, err := uctx.Load(exe, segments, entry, command, k.Heap)
	if err != nil {
		return nil, err
	}
	ctx.Attach()

	return k.Dispatcher.StartProcess(resolvedPath, ctx, sched.Priority(), true), nil
}

// DeliverKey simulates the keyboard controller's interrupt handler
// enqueuing one scancode, the way Keyboard_Interrupt_Handler calls
// Enqueue_Keycode from interrupt context (keyboard.c) rather than
// pushing straight onto the consumer-facing queue: the arrival and the
// dispatcher that drains it run independently, exactly as a real
// interrupt handler's enqueue is decoupled from whatever later reads
// the queue.
func (k *Kernel) DeliverKey(code uint16) {
	k.ExternalIO.Deliver(code)
}

// drainExternalIO repeatedly drains batches of arrived frames off
// ExternalIO and feeds each keycode to the keyboard queue sysGetKey
// reads from, until ctx is cancelled or the source is closed.
func (k *Kernel) drainExternalIO(ctx context.Context) {
	for {
		err := k.ExternalIO.Drain(ctx, func(f any) error {
			if code, ok := f.(uint16); ok {
				k.Keyboard.Push(code)
			}
			return nil
		})
		if err != nil {
			return
		}
	}
}

// Run starts the timer driver, the external-arrival drain loop, and
// enters the scheduler's run loop from the calling goroutine. It blocks
// forever.
func (k *Kernel) Run() {
	if k.Timer != nil {
		_ = k.Timer.Start(func() { k.Scheduler.Tick() })
	}
	ctx, cancel := context.WithCancel(context.Background())
	k.cancelIO = cancel
	go k.drainExternalIO(ctx)
	k.Scheduler.Run()
}

// Shutdown stops the timer driver, the external-arrival drain loop, and
// closes the external-arrival source. It does not stop the scheduler,
// which has no graceful-stop path (mirroring the original: the machine
// halts by powering off, not by the kernel relinquishing control).
func (k *Kernel) Shutdown() {
	if k.Timer != nil {
		k.Timer.Stop()
	}
	if k.cancelIO != nil {
		k.cancelIO()
	}
	k.ExternalIO.Close()
}
