package uctx

import "encoding/binary"

// isArgSpace reports whether c is one of the whitespace bytes that
// separate command-line tokens: space, tab, carriage return, newline.
// Grounded on argblock.c's Is_Space. There is no quoting or escaping.
func isArgSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n':
		return true
	default:
		return false
	}
}

// Tokenize splits command on argument-block whitespace, the way
// argblock.c's Get_Argument_Block_Size/Format_Argument_Block scan it: runs
// of whitespace collapse, and leading/trailing whitespace produce no empty
// tokens.
func Tokenize(command string) []string {
	var args []string
	i := 0
	for i < len(command) {
		for i < len(command) && isArgSpace(command[i]) {
			i++
		}
		if i >= len(command) {
			break
		}
		start := i
		for i < len(command) && !isArgSpace(command[i]) {
			i++
		}
		args = append(args, command[start:i])
	}
	return args
}

// ComputeArgumentBlockSize returns the token count and the total byte size
// of the formatted argument block for command: a {argc, argv-pointer}
// header, argc+1 pointer slots (the last a null argv terminator), then
// each token's bytes plus a nul terminator. Grounded on argblock.c's
// Get_Argument_Block_Size.
func ComputeArgumentBlockSize(command string) (numArgs int, size uint32) {
	args := Tokenize(command)
	numArgs = len(args)

	size = 8 // argc (uint32) + argv pointer (uint32)
	size += uint32(numArgs+1) * 4
	for _, a := range args {
		size += uint32(len(a)) + 1
	}
	return numArgs, size
}

// FormatArgumentBlock writes the argument block for command into buf,
// whose user-mode base address is userBase (so embedded pointers can be
// computed as userBase+offset). buf must be exactly the size
// ComputeArgumentBlockSize reported. Grounded on argblock.c's
// Format_Argument_Block.
func FormatArgumentBlock(buf []byte, numArgs int, userBase uint32, command string) {
	args := Tokenize(command)

	binary.LittleEndian.PutUint32(buf[0:4], uint32(numArgs))
	argvOffset := uint32(8)
	binary.LittleEndian.PutUint32(buf[4:8], userBase+argvOffset)

	strOffset := argvOffset + uint32(numArgs+1)*4
	for i, a := range args {
		ptrOff := argvOffset + uint32(i)*4
		binary.LittleEndian.PutUint32(buf[ptrOff:ptrOff+4], userBase+strOffset)
		copy(buf[strOffset:strOffset+uint32(len(a))], a)
		buf[strOffset+uint32(len(a))] = 0
		strOffset += uint32(len(a)) + 1
	}
	nullOff := argvOffset + uint32(numArgs)*4
	binary.LittleEndian.PutUint32(buf[nullOff:nullOff+4], 0)
}
