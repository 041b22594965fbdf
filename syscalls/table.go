package syscalls

// Syscall numbers, in dispatch-table order (spec §6, stable contract).
const (
	SysNull = iota
	SysExit
	SysPrintString
	SysGetKey
	SysSetAttr
	SysGetCursor
	SysPutCursor
	SysSpawn
	SysWait
	SysGetPID
	SysSetSchedulingPolicy
	SysGetTimeOfDay
	SysCreateSemaphore
	SysP
	SysV
	SysDestroySemaphore
)
