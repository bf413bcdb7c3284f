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

package bios

import (
	"testing"
	"time"

	"github.com/fengjixuchui/unicorn-bios/engine"
)

type fakeIO struct {
	output      []byte
	debug       []byte
	debugVideo  bool
	keys        []byte
	exitCode    byte
	exited      bool
	sectors     map[uint32][]byte
}

func (f *fakeIO) WriteOutput(b byte)       { f.output = append(f.output, b) }
func (f *fakeIO) WriteDebug(s string)      { f.debug = append(f.debug, []byte(s)...) }
func (f *fakeIO) DebugVideoEnabled() bool  { return f.debugVideo }
func (f *fakeIO) Now() time.Time           { return time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC) }
func (f *fakeIO) Exit(code byte)           { f.exitCode, f.exited = code, true }

func (f *fakeIO) ReadKey(blocking bool) (byte, bool) {
	if len(f.keys) == 0 {
		return 0, false
	}
	k := f.keys[0]
	f.keys = f.keys[1:]
	return k, true
}

func (f *fakeIO) ReadSector(lba uint32, count int) ([]byte, error) {
	data, ok := f.sectors[lba]
	if !ok {
		return nil, ErrSectorNotFound
	}
	return data, nil
}

func newTestFacade(t *testing.T) *engine.Facade {
	t.Helper()
	f, err := engine.New(1 << 20)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestInt10Teletype(t *testing.T) {
	f := newTestFacade(t)
	f.SetAH(0x0E)
	f.SetAL('Z')

	io := &fakeIO{}
	if !Int10Teletype(f, io) {
		t.Fatal("expected handled")
	}
	if string(io.output) != "Z" {
		t.Fatalf("output = %q, want %q", io.output, "Z")
	}
}

func TestInt10UnknownSubfunctionNotHandled(t *testing.T) {
	f := newTestFacade(t)
	f.SetAH(0xFF)

	if Int10Teletype(f, &fakeIO{}) {
		t.Fatal("expected not handled")
	}
}

func TestInt16BlockingRead(t *testing.T) {
	f := newTestFacade(t)
	f.SetAH(0x00)

	io := &fakeIO{keys: []byte{'k'}}
	if !Int16Keyboard(f, io) {
		t.Fatal("expected handled")
	}
	al, _ := f.AL()
	if al != 'k' {
		t.Fatalf("AL = %q, want 'k'", al)
	}
}

func TestInt16PeekEmptySetsZeroFlag(t *testing.T) {
	f := newTestFacade(t)
	f.SetAH(0x01)

	if !Int16Keyboard(f, &fakeIO{}) {
		t.Fatal("expected handled")
	}
	flags, _ := f.EFLAGS()
	if flags&uint32(engine.Zero) == 0 {
		t.Fatal("expected ZF set when no key pending")
	}
}

func TestInt21ExitRecordsCode(t *testing.T) {
	f := newTestFacade(t)
	f.SetAH(0x4C)
	f.SetAL(0x2A)

	io := &fakeIO{}
	if !Int21Exit(f, io) {
		t.Fatal("expected handled")
	}
	if !io.exited || io.exitCode != 0x2A {
		t.Fatalf("exited=%v code=%#x, want true 0x2A", io.exited, io.exitCode)
	}
}

func TestInt13ReadSector(t *testing.T) {
	f := newTestFacade(t)

	sector := make([]byte, bytesPerSector)
	sector[0] = 0xAA

	io := &fakeIO{sectors: map[uint32][]byte{0: sector}}

	f.SetAH(0x02)
	f.SetAL(1)  // 1 sector
	f.SetCH(0)  // cylinder 0
	f.SetCL(1)  // sector 1
	f.SetDH(0)  // head 0
	f.SetES(0x1000)
	f.SetBX(0x0000)

	if !Int13Disk(f, io) {
		t.Fatal("expected handled")
	}

	cf, _ := f.CF()
	if cf {
		t.Fatal("expected CF clear on success")
	}

	got, err := f.Read(engine.GetAddress(0x1000, 0), 1)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got[0] != 0xAA {
		t.Fatalf("byte = %#x, want 0xAA", got[0])
	}
}

func TestInt13MissingSectorSetsCarry(t *testing.T) {
	f := newTestFacade(t)
	io := &fakeIO{sectors: map[uint32][]byte{}}

	f.SetAH(0x02)
	f.SetAL(1)
	f.SetCH(0)
	f.SetCL(1)
	f.SetDH(0)

	if !Int13Disk(f, io) {
		t.Fatal("expected handled even on failure")
	}
	cf, _ := f.CF()
	if !cf {
		t.Fatal("expected CF set when sector is missing")
	}
}

func TestRegistryDispatchUnhandled(t *testing.T) {
	f := newTestFacade(t)
	f.SetAH(0xFE) // no handler matches this sub-function anywhere

	r := NewDefault()
	if r.Dispatch(0x10, f, &fakeIO{}) {
		t.Fatal("expected unhandled sub-function to fall through")
	}
	if r.Dispatch(0x99, f, &fakeIO{}) {
		t.Fatal("expected unbound interrupt number to be unhandled")
	}
}
