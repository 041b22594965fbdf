package uctx

import "github.com/geekos-go/kernel/errno"

// validate reports whether the bufSize-byte range at userAddr lies
// entirely within c's region. Grounded on userseg.c's
// Validate_User_Memory, including its exact overflow-safe comparison
// (userAddr < size && bufSize <= size-userAddr, not userAddr+bufSize <=
// size, which can wrap).
func (c *Context) validate(userAddr, bufSize uint32) bool {
	if userAddr >= c.size {
		return false
	}
	return bufSize <= c.size-userAddr
}

// CopyFromUser copies len(dst) bytes from userAddr in c's region into dst,
// failing if the range isn't entirely inside the region. Grounded on
// user.c's Copy_From_User.
func (c *Context) CopyFromUser(dst []byte, userAddr uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.validate(userAddr, uint32(len(dst))) {
		return errno.InvalidArg
	}
	copy(dst, c.memory[userAddr:userAddr+uint32(len(dst))])
	return nil
}

// CopyToUser copies src into c's region at userAddr, failing if the range
// isn't entirely inside the region. Grounded on user.c's Copy_To_User.
func (c *Context) CopyToUser(userAddr uint32, src []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.validate(userAddr, uint32(len(src))) {
		return errno.InvalidArg
	}
	copy(c.memory[userAddr:userAddr+uint32(len(src))], src)
	return nil
}
