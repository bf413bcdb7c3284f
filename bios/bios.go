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

// Package bios synthesizes the subset of legacy BIOS interrupt services a
// real-mode boot sector expects: video teletype, disk, keyboard, time and
// DOS-style exit. It is registered as the Engine's single onInterrupt
// subscriber; handlers are bound per INT number and walked in
// registration order, mirroring the teacher's disk/keyboard/pic devices
// adapted from port-I/O dispatch to INT dispatch.
package bios

import (
	"time"

	"github.com/fengjixuchui/unicorn-bios/engine"
)

// IO is the narrow capability surface a Handler needs beyond the Engine
// itself: the debugger's output/debug streams, keyboard input, the clock,
// the loaded disk image, and exit-code reporting. debugger.Core satisfies
// this interface structurally; bios never imports the debugger package.
type IO interface {
	WriteOutput(b byte)
	WriteDebug(s string)
	DebugVideoEnabled() bool
	ReadKey(blocking bool) (key byte, ok bool)
	Now() time.Time
	Exit(code byte)
	ReadSector(lba uint32, count int) ([]byte, error)
}

// Handler services one interrupt vector. It returns true if it handled
// the call; false causes the registry to try the next bound handler (if
// any) and ultimately propagate UnhandledInterruptError up through the
// Engine.
type Handler func(f *engine.Facade, io IO) bool

// Registry maps INT numbers onto an ordered list of handlers.
type Registry struct {
	handlers map[uint32][]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[uint32][]Handler)}
}

// Bind appends h to the handler chain for interrupt n.
func (r *Registry) Bind(n uint32, h Handler) {
	r.handlers[n] = append(r.handlers[n], h)
}

// Dispatch matches engine.Facade.OnInterrupt's signature once io is
// captured by the caller's closure. It walks the bound handlers for n in
// registration order; the first to return true claims the interrupt.
func (r *Registry) Dispatch(n uint32, f *engine.Facade, io IO) bool {
	for _, h := range r.handlers[n] {
		if h(f, io) {
			return true
		}
	}
	return false
}

// NewDefault builds a registry with the standard INT 10h/13h/16h/1Ah/21h
// handlers bound.
func NewDefault() *Registry {
	r := NewRegistry()
	r.Bind(0x10, Int10Teletype)
	r.Bind(0x13, Int13Disk)
	r.Bind(0x16, Int16Keyboard)
	r.Bind(0x1A, Int1ATime)
	r.Bind(0x21, Int21Exit)
	return r
}
