package syscalls

import (
	"github.com/geekos-go/kernel/sched"
	"github.com/geekos-go/kernel/uctx"
)

// runUserThread is a spawned process's entire lifetime: run its
// registered Program body (issuing syscalls via trapFor, the simulated
// equivalent of executing the loaded image's instruction stream), then
// exit 0 if the program returns without calling exit itself — the
// "falls off the end of main" path the original handles with an
// implicit exit syscall. A path with no registered Program exits
// immediately with code 0: the executable resolved and loaded
// successfully but does nothing, a legitimate (if uninteresting) user
// program.
func runUserThread(d *Dispatcher, self *sched.Thread, resolvedPath string, ctx *uctx.Context) {
	defer ctx.Detach()

	if p, ok := d.program(resolvedPath); ok {
		p(trapFor(d, self))
	}
	d.Scheduler.Exit(0)
}
