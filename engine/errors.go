/*
Copyright (c) 2019-2021 Andreas T Jonsson

This software is provided 'as-is', without any express or implied
warranty. In no event will the authors be held liable for any damages
arising from the use of this software.

Permission is granted to anyone to use this software for any purpose,
including commercial applications, and to alter it and redistribute it
freely, subject to the following restrictions:

1. The origin of this software must not be misrepresented; you must not
   claim that you wrote the original software. If you use this software
   in a product, an acknowledgment in the product documentation would be
   appreciated but is not required.
2. Altered source versions must be plainly marked as such, and must not be
   misrepresented as being the original software.
3. This notice may not be removed or altered from any source distribution.
*/

package engine

import (
	"errors"
	"fmt"
)

// ErrEmulatorInit is returned by New when Unicorn refuses to open or map memory.
var ErrEmulatorInit = errors.New("engine: emulator failed to initialize")

// ErrEmulationHalt is raised on the worker when Unicorn returns a non-OK
// status mid run, outside of an unhandled interrupt.
var ErrEmulationHalt = errors.New("engine: emulation halted")

// RegisterIOError wraps a failed register read or write.
type RegisterIOError struct {
	Reg string
	Err error
}

func (e *RegisterIOError) Error() string {
	return fmt.Sprintf("engine: register %s: %v", e.Reg, e.Err)
}

func (e *RegisterIOError) Unwrap() error { return e.Err }

// OutOfBoundsError is raised by Read/Write when the requested range falls
// outside the mapped memory.
type OutOfBoundsError struct {
	Op     string // "read" or "write"
	Addr   uint64
	Size   uint32
	Memory uint32
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("engine: cannot %s %d byte(s) at 0x%X - only %d byte(s) mapped", e.Op, e.Size, e.Addr, e.Memory)
}

// UnhandledInterruptError is raised on the worker when no onInterrupt
// handler claims an INT n.
type UnhandledInterruptError struct {
	N  uint32
	AX uint16
}

func (e *UnhandledInterruptError) Error() string {
	return fmt.Sprintf("engine: unhandled interrupt 0x%X (ax=0x%X)", e.N, e.AX)
}
