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
	"sync"
	"testing"
)

const bootAddr = 0x7C00

func newTestFacade(t *testing.T, image []byte) *Facade {
	t.Helper()

	f, err := New(2 << 20) // 2 MiB
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { f.Close() })

	if err := f.Write(bootAddr, image); err != nil {
		t.Fatalf("Write boot image: %v", err)
	}
	return f
}

func TestBootSectorHalt(t *testing.T) {
	f := newTestFacade(t, []byte{0xF4}) // HLT

	var stopped sync.WaitGroup
	stopped.Add(1)
	f.OnStop(func() { stopped.Done() })

	if !f.Start(bootAddr) {
		t.Fatal("Start returned false on first call")
	}

	if err := f.WaitUntilFinished(); err != nil {
		t.Fatalf("unexpected worker error: %v", err)
	}
	stopped.Wait()

	ip, err := f.IP()
	if err != nil {
		t.Fatalf("IP: %v", err)
	}
	if ip != 0x7C01 {
		t.Fatalf("ip = %#x, want 0x7C01", ip)
	}
}

func TestTeletypeOutput(t *testing.T) {
	// mov ah,0x0e ; mov al,'A' ; int 0x10 ; hlt
	image := []byte{0xB4, 0x0E, 0xB0, 'A', 0xCD, 0x10, 0xF4}
	f := newTestFacade(t, image)

	var captured byte
	var got bool
	f.OnInterrupt(func(n uint32, f *Facade) bool {
		if n != 0x10 {
			return false
		}
		ah, _ := f.AH()
		if ah != 0x0E {
			return false
		}
		al, _ := f.AL()
		captured, got = al, true
		return true
	})

	f.Start(bootAddr)
	f.WaitUntilFinished()

	if !got || captured != 'A' {
		t.Fatalf("captured=%q got=%v, want 'A' true", captured, got)
	}
}

func TestBeforeInstructionFiresForEachAddressInOrder(t *testing.T) {
	// NOP; NOP; NOP; HLT
	image := []byte{0x90, 0x90, 0x90, 0xF4}
	f := newTestFacade(t, image)

	var mu sync.Mutex
	var seen []uint64
	paused := make(chan struct{})

	f.BeforeInstruction(func(addr uint64, _ []byte) {
		mu.Lock()
		seen = append(seen, addr)
		mu.Unlock()

		if addr == bootAddr+3 {
			close(paused)
		}
	})

	f.Start(bootAddr)

	<-paused
	f.WaitUntilFinished()

	mu.Lock()
	defer mu.Unlock()
	want := []uint64{bootAddr, bootAddr + 1, bootAddr + 2, bootAddr + 3}
	if len(seen) != len(want) {
		t.Fatalf("seen=%v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("seen=%v, want %v", seen, want)
		}
	}
}

func TestUnhandledInterruptRaisesException(t *testing.T) {
	// int 0x99 ; hlt
	image := []byte{0xCD, 0x99, 0xF4}
	f := newTestFacade(t, image)

	var excepted error
	var gotException sync.WaitGroup
	gotException.Add(1)
	f.OnException(func(err error) bool {
		excepted = err
		gotException.Done()
		return true
	})

	f.Start(bootAddr)
	f.WaitUntilFinished()
	gotException.Wait()

	ue, ok := excepted.(*UnhandledInterruptError)
	if !ok {
		t.Fatalf("got %T, want *UnhandledInterruptError", excepted)
	}
	if ue.N != 0x99 {
		t.Fatalf("N = %#x, want 0x99", ue.N)
	}
}

func TestDoubleStartIsNoOp(t *testing.T) {
	f := newTestFacade(t, []byte{0xF4})

	var starts int
	f.OnStart(func() { starts++ })

	if !f.Start(bootAddr) {
		t.Fatal("first Start should succeed")
	}
	if f.Start(bootAddr) {
		t.Fatal("second Start should return false while running")
	}

	f.WaitUntilFinished()
	if starts != 1 {
		t.Fatalf("onStart fired %d times, want 1", starts)
	}
}

func TestOutOfBoundsRead(t *testing.T) {
	f := newTestFacade(t, []byte{0xF4})

	_, err := f.Read(0x1FFFFF, 2)
	if err == nil {
		t.Fatal("expected OutOfBoundsError")
	}
	if _, ok := err.(*OutOfBoundsError); !ok {
		t.Fatalf("got %T, want *OutOfBoundsError", err)
	}
}

func TestCarryFlagRoundTrip(t *testing.T) {
	f := newTestFacade(t, []byte{0xF4})

	if err := f.SetCF(true); err != nil {
		t.Fatalf("SetCF(true): %v", err)
	}
	cf, err := f.CF()
	if err != nil || !cf {
		t.Fatalf("CF() = %v, %v, want true, nil", cf, err)
	}
	flags, _ := f.EFLAGS()
	if flags&1 != 1 {
		t.Fatalf("EFLAGS bit0 = %d, want 1", flags&1)
	}

	if err := f.SetCF(false); err != nil {
		t.Fatalf("SetCF(false): %v", err)
	}
	cf, _ = f.CF()
	if cf {
		t.Fatal("CF() = true after SetCF(false)")
	}
}

func TestGetAddress(t *testing.T) {
	if got := GetAddress(0x07C0, 0x0000); got != 0x7C00 {
		t.Fatalf("GetAddress(0x07C0,0) = %#x, want 0x7C00", got)
	}
}
