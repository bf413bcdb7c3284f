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

// Package debugger wires an engine.Facade's callbacks to the operator
// controls (breakpoints, single-step, trap flag) and the pause/resume
// rendezvous that lets a terminal UI inspect a frozen CPU snapshot.
package debugger

import (
	"errors"
	"sync"
	"time"

	"github.com/fengjixuchui/unicorn-bios/engine"
)

// ErrNoDisk is returned by ReadSector when no boot image was loaded.
var ErrNoDisk = errors.New("debugger: no disk image loaded")

// KeyboardSource supplies the keystrokes INT 16h reads. blocking selects
// whether the call should wait for a key (AH=0x00/0x10) or return
// immediately (AH=0x01/0x11, ok=false when nothing is pending).
type KeyboardSource interface {
	ReadKey(blocking bool) (key byte, ok bool)
}

// DiskSource supplies the sectors INT 13h reads, addressed by LBA.
type DiskSource interface {
	ReadSector(lba uint32, count int) ([]byte, error)
}

// Core owns the operator-facing debugger state: breakpoints, single-step
// and trap flags, the pause barrier, and the BIOS output/debug streams.
// It structurally satisfies bios.IO, so bios never needs to import this
// package.
type Core struct {
	eng *engine.Facade

	mu          sync.Mutex
	breakpoints map[uint64]struct{}

	SingleStep       bool
	Trap             bool
	BreakOnInterrupt bool
	BreakOnIRET      bool
	DebugVideo       bool

	Output *stream
	Debug  *stream

	Keyboard KeyboardSource
	Disk     DiskSource

	barrier *pauseBarrier

	lastOpcode     byte
	haveLastOpcode bool

	statusMu sync.Mutex
	status   string
	onPause  []func(status string)

	exitMu   sync.Mutex
	exitCode *byte
}

// New builds a Core bound to eng, registering its instruction and
// interrupt hooks. dispatch is the BIOS interrupt dispatcher to invoke on
// every INT n; it is supplied by the caller (bios.Registry.Dispatch) so
// this package has no import-time dependency on bios.
func New(eng *engine.Facade, dispatch func(n uint32, eng *engine.Facade, c *Core) bool) *Core {
	c := &Core{
		eng:         eng,
		breakpoints: make(map[uint64]struct{}),
		barrier:     newPauseBarrier(),
		Output:      &stream{},
		Debug:       &stream{},
		status:      "ready",
	}

	eng.BeforeInstruction(func(addr uint64, raw []byte) {
		c.instructionHook(addr, raw)
	})

	eng.OnInterrupt(func(n uint32, f *engine.Facade) bool {
		return c.interruptHook(n, f, dispatch)
	})

	return c
}

// AddBreakpoint arms a break at addr.
func (c *Core) AddBreakpoint(addr uint64) {
	c.mu.Lock()
	c.breakpoints[addr] = struct{}{}
	c.mu.Unlock()
}

// RemoveBreakpoint disarms a break at addr.
func (c *Core) RemoveBreakpoint(addr uint64) {
	c.mu.Lock()
	delete(c.breakpoints, addr)
	c.mu.Unlock()
}

func (c *Core) hasBreakpoint(addr uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.breakpoints[addr]
	return ok
}

// Status returns the current human-readable UI status line.
func (c *Core) Status() string {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	return c.status
}

func (c *Core) setStatus(s string) {
	c.statusMu.Lock()
	c.status = s
	handlers := append([]func(string){}, c.onPause...)
	c.statusMu.Unlock()

	for _, h := range handlers {
		h(s)
	}
}

// OnPause registers a callback fired, on the emulation worker, every time
// a pause is entered and every time the status line otherwise changes.
// The UI uses this to trigger a repaint of the frozen snapshot.
func (c *Core) OnPause(fn func(status string)) {
	c.statusMu.Lock()
	c.onPause = append(c.onPause, fn)
	c.statusMu.Unlock()
}

// Paused reports whether a pause is armed: true from the moment the barrier
// is primed until the worker has received its resume key.
func (c *Core) Paused() bool {
	return c.barrier.armed()
}

// Resume delivers a keycode to a blocked worker. Called from the UI
// goroutine in response to Enter or Space.
func (c *Core) Resume(key byte) {
	c.barrier.resumeWith(key)
}

// ExitCode reports the guest's requested exit code, if INT 21h AH=0x4C
// has run.
func (c *Core) ExitCode() (byte, bool) {
	c.exitMu.Lock()
	defer c.exitMu.Unlock()
	if c.exitCode == nil {
		return 0, false
	}
	return *c.exitCode, true
}

// SetExitCode records code; Exit calls it on behalf of bios/int21.go's
// handler.
func (c *Core) SetExitCode(code byte) {
	c.exitMu.Lock()
	c.exitCode = &code
	c.exitMu.Unlock()
}

// iretOpcode is the one-byte real-mode IRET encoding.
const iretOpcode = 0xCF

// instructionHook implements spec §4.2's instruction hook path. It runs
// on the emulation worker, ahead of every instruction fetch. raw is the
// instruction about to be fetched at addr; lastOpcode, carried over from
// the previous call, is what just retired, so an IRET executed anywhere
// (not only one reached through interruptHook's BIOS dispatch) is caught
// here too when BreakOnIRET is set.
func (c *Core) instructionHook(addr uint64, raw []byte) {
	priorWasIRET := c.haveLastOpcode && c.lastOpcode == iretOpcode

	shouldBreak := c.hasBreakpoint(addr) || c.SingleStep || (priorWasIRET && c.BreakOnIRET)

	if shouldBreak {
		c.enterPause()
	}

	if c.Trap {
		if flags, err := c.eng.EFLAGS(); err == nil {
			c.eng.SetEFLAGS(flags | uint32(engine.Trap))
		}
	}

	if len(raw) > 0 {
		c.lastOpcode = raw[0]
		c.haveLastOpcode = true
	}
}

// enterPause arms the barrier, announces the pause (which a Standard-mode
// listener may answer synchronously), then blocks the calling goroutine
// until the UI resumes it.
func (c *Core) enterPause() {
	c.barrier.prime()
	c.setStatus("paused")
	c.barrier.block()
	c.setStatus("running")
}

// interruptHook implements spec §4.3/§4.2's interrupt hook path:
// optional break-on-interrupt before dispatch, then dispatch to the BIOS
// registry, then optional break-on-iret after the handler returns.
func (c *Core) interruptHook(n uint32, f *engine.Facade, dispatch func(uint32, *engine.Facade, *Core) bool) bool {
	if c.BreakOnInterrupt {
		c.enterPause()
	}

	handled := dispatch(n, f, c)

	if c.BreakOnIRET {
		c.enterPause()
	}

	return handled
}

// WriteOutput implements bios.IO by appending to the BIOS output stream.
func (c *Core) WriteOutput(b byte) { c.Output.WriteByte(b) }

// WriteDebug implements bios.IO by appending to the debug stream.
func (c *Core) WriteDebug(s string) { c.Debug.Write([]byte(s)) }

// DebugVideoEnabled implements bios.IO.
func (c *Core) DebugVideoEnabled() bool { return c.DebugVideo }

// ReadKey implements bios.IO, delegating to the UI-supplied KeyboardSource.
func (c *Core) ReadKey(blocking bool) (byte, bool) {
	if c.Keyboard == nil {
		return 0, false
	}
	return c.Keyboard.ReadKey(blocking)
}

// Now implements bios.IO with the host wall clock.
func (c *Core) Now() time.Time { return time.Now() }

// Exit implements bios.IO by recording the guest's requested exit code.
func (c *Core) Exit(code byte) { c.SetExitCode(code) }

// ReadSector implements bios.IO, delegating to the config-supplied
// DiskSource (the loaded boot image).
func (c *Core) ReadSector(lba uint32, count int) ([]byte, error) {
	if c.Disk == nil {
		return nil, ErrNoDisk
	}
	return c.Disk.ReadSector(lba, count)
}
