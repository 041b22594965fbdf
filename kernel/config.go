package kernel

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/geekos-go/kernel/sched"
)

// Config collects every tunable a Kernel needs at construction:
// scheduling quantum and policy, the executable search path, logging,
// spawn rate limit, keyboard depth, page-frame and heap sizes, and the
// tick interval. The thread-local-storage slot count (sched.TLSSlots) and
// console geometry (console.Cols x console.Rows) are fixed constants, not
// Config fields. Grounded on
// eventloop.LoopOption's functional-options pattern
// (_examples/joeycumines-go-utilpkg/eventloop/options.go), generalized
// from loop tuning to kernel-wide tuning, but following the simpler
// func(*Config)-literal style sched.Option already establishes in this
// module rather than introducing a second options idiom.
type Config struct {
	Policy        sched.Policy
	Quantum       int
	PathList      string
	Log           zerolog.Logger
	SpawnWindowMs int
	SpawnMaxBurst int
	KeyboardDepth int
	PageFrames    int
	HeapBytes     int
	TickInterval  time.Duration
}

// Option configures a Config at construction.
type Option func(*Config)

// WithPolicy sets the initial scheduling policy. Defaults to RoundRobin.
func WithPolicy(p sched.Policy) Option {
	return func(c *Config) { c.Policy = p }
}

// WithQuantum sets the initial quantum, in ticks. Defaults to
// sched.DefaultQuantum.
func WithQuantum(q int) Option {
	return func(c *Config) { c.Quantum = q }
}

// WithPathList sets the ":"-separated executable search path spawn uses
// to resolve bare program names.
func WithPathList(path string) Option {
	return func(c *Config) { c.PathList = path }
}

// WithLogger attaches a structured logger. The zero value logs nothing.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Config) { c.Log = l }
}

// WithSpawnRateLimit bounds each owning process to maxBurst spawns per
// windowMs milliseconds.
func WithSpawnRateLimit(windowMs, maxBurst int) Option {
	return func(c *Config) {
		c.SpawnWindowMs = windowMs
		c.SpawnMaxBurst = maxBurst
	}
}

// WithKeyboardDepth sets the keyboard ring buffer's capacity.
func WithKeyboardDepth(n int) Option {
	return func(c *Config) { c.KeyboardDepth = n }
}

// WithPageFrames sets the number of 4 KiB frames pagealloc manages.
func WithPageFrames(n int) Option {
	return func(c *Config) { c.PageFrames = n }
}

// WithHeapBytes sets the size of the kernel heap arena.
func WithHeapBytes(n int) Option {
	return func(c *Config) { c.HeapBytes = n }
}

// WithTickInterval sets the timer driver's tick period. Zero disables
// the timer driver entirely: Run then drives the scheduler purely by
// cooperative checkpoints, useful for deterministic tests that don't
// want wall-clock preemption.
func WithTickInterval(d time.Duration) Option {
	return func(c *Config) { c.TickInterval = d }
}

// defaultConfig returns a Config with every field at its documented
// default.
func defaultConfig() *Config {
	return &Config{
		Policy:        sched.RoundRobin,
		Quantum:       sched.DefaultQuantum,
		PathList:      "/bin",
		Log:           zerolog.Nop(),
		SpawnWindowMs: 1000,
		SpawnMaxBurst: 16,
		KeyboardDepth: 32,
		PageFrames:    256,
		HeapBytes:     1 << 20,
		TickInterval:  10 * time.Millisecond,
	}
}
