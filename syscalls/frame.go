// Package syscalls is the system-call dispatcher: a fixed 16-entry
// table, a saved-register frame with named fields, and the handlers
// spec §4.5/§6 describe. Grounded on
// _examples/original_source/src/geekos/trap.c (dispatch, illegal-number
// handling), syscall.c (per-call argument registers and behavior), and
// int.c's Dump_Interrupt_State (the frame's field list).
package syscalls

// Frame is a trap's saved register state, named rather than positional:
// handlers read their arguments from explicit fields
// (EBX/ECX/EDX/ESI/EDI, by convention, mirroring the original calling
// convention) instead of an argument list, and write their result back
// into EAX before returning, exactly as a real interrupt-return path
// restores registers from this same structure.
type Frame struct {
	EAX, EBX, ECX, EDX, ESI, EDI, EBP uint32
	EIP                               uint32
	CS                                uint32
	EFlags                            uint32
	IntNum                            uint32
	ErrorCode                         uint32
	DS, ES, FS, GS                    uint32

	// UserESP/UserSS are only meaningful when the trapped context was
	// running in user mode (Is_User_Interrupt in the original source).
	UserESP uint32
	UserSS  uint32
}
