package syscalls

import "github.com/geekos-go/kernel/sched"

// Trap is how a simulated user program issues one syscall: it builds the
// frame itself (EAX is overwritten with the syscall number regardless of
// what the caller sets) and gets back the value the real hardware would
// have restored into EAX on return from the trap.
type Trap func(num uint32, f Frame) int32

// Program is a simulated user program's body: a closure that issues
// syscalls via trap, standing in for a compiled executable's instruction
// stream. Go cannot execute the bytes uctx.Load places in a Context's
// region as machine code, so a spawned process's actual behavior is
// supplied out of band, keyed by the resolved executable path, while the
// ELF parse/load/argument-block pipeline still runs in full for every
// spawn — the same division the original source has between "the
// loader" and "the program," just with the latter expressed as Go
// instead of compiled machine code.
type Program func(trap Trap)

// RegisterProgram registers a simulated program body for a resolved executable
// path.
func (d *Dispatcher) RegisterProgram(path string, p Program) {
	if d.programs == nil {
		d.programs = make(map[string]Program)
	}
	d.programs[path] = p
}

func (d *Dispatcher) program(path string) (Program, bool) {
	p, ok := d.programs[path]
	return p, ok
}

// trapFor returns the Trap closure a spawned thread's Program body uses
// to issue syscalls, bound to that thread and its process's frame.
func trapFor(d *Dispatcher, self *sched.Thread) Trap {
	return func(num uint32, f Frame) int32 {
		f.EAX = num
		d.Dispatch(self, &f)
		return int32(f.EAX)
	}
}
