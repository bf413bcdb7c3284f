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

package debugger

import (
	"testing"
	"time"

	"github.com/fengjixuchui/unicorn-bios/bios"
	"github.com/fengjixuchui/unicorn-bios/engine"
)

const bootAddr = 0x7C00

func newTestCore(t *testing.T, image []byte) (*engine.Facade, *Core) {
	t.Helper()

	eng, err := engine.New(2 << 20) // 2 MiB
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(func() { eng.Close() })

	if err := eng.Write(bootAddr, image); err != nil {
		t.Fatalf("Write boot image: %v", err)
	}

	registry := bios.NewDefault()
	core := New(eng, func(n uint32, f *engine.Facade, c *Core) bool {
		return registry.Dispatch(n, f, c)
	})
	return eng, core
}

// waitPaused blocks until c reports an armed pause or the deadline elapses.
func waitPaused(t *testing.T, c *Core) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if c.Paused() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("engine never reached a paused state")
}

func TestStreamAppendAndSnapshot(t *testing.T) {
	s := &stream{}
	s.WriteByte('H')
	s.WriteByte('i')

	got := s.Bytes()
	if string(got) != "Hi" {
		t.Fatalf("got %q, want %q", got, "Hi")
	}

	got[0] = 'X'
	if string(s.Bytes()) != "Hi" {
		t.Fatal("Bytes() must return a copy, not the live buffer")
	}
}

func TestPauseBarrierArmAndResume(t *testing.T) {
	b := newPauseBarrier()
	b.prime()

	done := make(chan byte, 1)
	go func() {
		done <- b.block()
	}()

	b.resumeWith(' ')

	select {
	case key := <-done:
		if key != ' ' {
			t.Fatalf("got key %q, want space", key)
		}
	case <-time.After(time.Second):
		t.Fatal("block never returned after resumeWith")
	}

	if b.armed() {
		t.Fatal("barrier should be disarmed after resume")
	}
}

func TestBreakpointSet(t *testing.T) {
	c := &Core{breakpoints: make(map[uint64]struct{}), barrier: newPauseBarrier(), Output: &stream{}, Debug: &stream{}}

	c.AddBreakpoint(0x7C03)
	if !c.hasBreakpoint(0x7C03) {
		t.Fatal("expected breakpoint to be armed")
	}

	c.RemoveBreakpoint(0x7C03)
	if c.hasBreakpoint(0x7C03) {
		t.Fatal("expected breakpoint to be cleared")
	}
}

func TestSingleStepPausesBeforeEveryInstruction(t *testing.T) {
	// nop ; nop ; hlt
	image := []byte{0x90, 0x90, 0xF4}
	eng, core := newTestCore(t, image)
	core.SingleStep = true

	eng.Start(bootAddr)

	for i := 0; i < 3; i++ {
		waitPaused(t, core)
		if core.Status() != "paused" {
			t.Fatalf("status = %q, want paused", core.Status())
		}
		core.Resume(' ')
	}

	if err := eng.WaitUntilFinished(); err != nil {
		t.Fatalf("WaitUntilFinished: %v", err)
	}
}

func TestTrapSetsEFLAGSTrapFlagBeforeEachInstruction(t *testing.T) {
	// nop ; hlt
	image := []byte{0x90, 0xF4}
	eng, core := newTestCore(t, image)
	core.Trap = true

	eng.Start(bootAddr)
	if err := eng.WaitUntilFinished(); err != nil {
		t.Fatalf("WaitUntilFinished: %v", err)
	}

	flags, err := eng.EFLAGS()
	if err != nil {
		t.Fatalf("EFLAGS: %v", err)
	}
	if engine.Flags(flags)&engine.Trap == 0 {
		t.Fatal("expected EFLAGS.Trap to be set after running with Trap enabled")
	}
}

func TestBreakOnInterruptPausesBeforeDispatch(t *testing.T) {
	// mov ah,0x4c ; mov al,0 ; int 0x21
	image := []byte{0xB4, 0x4C, 0xB0, 0x00, 0xCD, 0x21}
	eng, core := newTestCore(t, image)
	core.BreakOnInterrupt = true

	eng.Start(bootAddr)
	waitPaused(t, core)
	if core.Status() != "paused" {
		t.Fatalf("status = %q, want paused", core.Status())
	}
	core.Resume(' ')

	if err := eng.WaitUntilFinished(); err != nil {
		t.Fatalf("WaitUntilFinished: %v", err)
	}

	code, ok := core.ExitCode()
	if !ok || code != 0 {
		t.Fatalf("ExitCode = (%v,%v), want (0,true)", code, ok)
	}
}

func TestBreakOnIRETPausesAfterGuestIRETRetires(t *testing.T) {
	// pushf ; push cs ; push 0x7C06 ; iret ; nop ; hlt
	// the pushed return address lands on the nop right after the iret, so
	// BreakOnIRET must trigger on the instruction fetch that follows it.
	image := []byte{0x9C, 0x0E, 0x68, 0x06, 0x7C, 0xCF, 0x90, 0xF4}
	eng, core := newTestCore(t, image)
	core.BreakOnIRET = true

	eng.Start(bootAddr)
	waitPaused(t, core)
	if core.Status() != "paused" {
		t.Fatalf("status = %q, want paused", core.Status())
	}
	core.Resume(' ')

	if err := eng.WaitUntilFinished(); err != nil {
		t.Fatalf("WaitUntilFinished: %v", err)
	}
}

func TestExitCodeRoundTrip(t *testing.T) {
	c := &Core{}

	if _, ok := c.ExitCode(); ok {
		t.Fatal("expected no exit code before SetExitCode")
	}

	c.SetExitCode(0x2A)
	code, ok := c.ExitCode()
	if !ok || code != 0x2A {
		t.Fatalf("got (%v,%v), want (0x2A,true)", code, ok)
	}
}
