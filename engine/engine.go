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

// Package engine is the thread-safe facade around a Unicorn-backed 16-bit
// real-mode x86 emulator. It owns CPU state, memory, and the callback
// registries a debugger wires up; everything outside this package reaches
// the CPU only through these methods.
package engine

import (
	"fmt"
	"sync"
	"sync/atomic"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"
)

// Facade wraps a single Unicorn instance. Register and memory operations
// are serialized by regMu because Unicorn itself is not safe for concurrent
// use from two goroutines. Callback registries have their own short-lived
// mutex, cbMu, which is never held while a callback runs - the Go
// equivalent of the re-entrant-lock split the spec calls for in the
// absence of a recursive mutex primitive.
type Facade struct {
	regMu sync.Mutex
	cbMu  sync.Mutex

	mu uc.Unicorn

	memorySize uint32
	running    int32 // atomic bool

	doneMu sync.Mutex
	doneCv *sync.Cond
	lastErr error

	onStart                []func()
	onStop                 []func()
	onInterrupt            []func(n uint32, f *Facade) bool
	onException            []func(err error) bool
	onInvalidMemoryAccess  []func(addr uint64, size int)
	onValidMemoryAccess    []func(addr uint64, size int)
	beforeInstructionHooks []func(addr uint64, raw []byte)
	afterInstructionHooks  []func(addr uint64, cpu CpuState, raw []byte)

	lastAddr  uint64
	lastBytes []byte
	haveLast  bool
}

// GetAddress computes the real-mode linear address for a segment:offset pair.
func GetAddress(segment, offset uint16) uint64 {
	return uint64(segment)*16 + uint64(offset)
}

// New constructs a 16-bit real-mode x86 Unicorn instance with memoryBytes
// mapped read+write+execute at address 0, and installs the single internal
// interrupt hook that routes every INT n through the interrupt trampoline.
func New(memoryBytes uint32) (*Facade, error) {
	mu, err := uc.NewUnicorn(uc.ARCH_X86, uc.MODE_16)
	if err != nil {
		return nil, ErrEmulatorInit
	}

	if memoryBytes > 0 {
		if err := mu.MemMap(0, uint64(memoryBytes)); err != nil {
			return nil, ErrEmulatorInit
		}
	}

	f := &Facade{mu: mu, memorySize: memoryBytes}
	f.doneCv = sync.NewCond(&f.doneMu)

	if _, err := mu.HookAdd(uc.HOOK_INTR, f.handleInterrupt, 1, 0); err != nil {
		return nil, ErrEmulatorInit
	}
	if _, err := mu.HookAdd(uc.HOOK_CODE, f.handleCode, 1, 0); err != nil {
		return nil, ErrEmulatorInit
	}
	if _, err := mu.HookAdd(uc.HOOK_MEM_READ|uc.HOOK_MEM_WRITE, f.handleValidMemory, 1, 0); err != nil {
		return nil, ErrEmulatorInit
	}
	if _, err := mu.HookAdd(uc.HOOK_MEM_READ_UNMAPPED|uc.HOOK_MEM_WRITE_UNMAPPED|uc.HOOK_MEM_FETCH_UNMAPPED, f.handleInvalidMemory, 1, 0); err != nil {
		return nil, ErrEmulatorInit
	}

	return f, nil
}

// Close releases the underlying Unicorn instance.
func (f *Facade) Close() error {
	return f.mu.Close()
}

// MemorySize returns the number of bytes mapped at construction.
func (f *Facade) MemorySize() uint32 { return f.memorySize }

// Read returns a copy of size bytes starting at addr. Both Read and Write
// use the strict symmetric bound addr+size<=memorySize; see SPEC_FULL.md
// for why this implementation does not reproduce the original's asymmetry.
func (f *Facade) Read(addr uint64, size uint32) ([]byte, error) {
	if addr+uint64(size) > uint64(f.memorySize) {
		return nil, &OutOfBoundsError{Op: "read", Addr: addr, Size: size, Memory: f.memorySize}
	}

	f.regMu.Lock()
	defer f.regMu.Unlock()

	b, err := f.mu.MemRead(addr, uint64(size))
	if err != nil {
		return nil, &OutOfBoundsError{Op: "read", Addr: addr, Size: size, Memory: f.memorySize}
	}
	return b, nil
}

// Write copies data into memory starting at addr.
func (f *Facade) Write(addr uint64, data []byte) error {
	size := uint32(len(data))
	if addr+uint64(size) > uint64(f.memorySize) {
		return &OutOfBoundsError{Op: "write", Addr: addr, Size: size, Memory: f.memorySize}
	}

	f.regMu.Lock()
	defer f.regMu.Unlock()

	if err := f.mu.MemWrite(addr, data); err != nil {
		return &OutOfBoundsError{Op: "write", Addr: addr, Size: size, Memory: f.memorySize}
	}
	return nil
}

func (f *Facade) readReg(id regID) (uint64, error) {
	f.regMu.Lock()
	defer f.regMu.Unlock()

	v, err := f.mu.RegRead(ucReg[id])
	if err != nil {
		return 0, &RegisterIOError{Reg: regName[id], Err: err}
	}
	return v, nil
}

func (f *Facade) writeReg(id regID, v uint64) error {
	f.regMu.Lock()
	defer f.regMu.Unlock()

	if err := f.mu.RegWrite(ucReg[id], v); err != nil {
		return &RegisterIOError{Reg: regName[id], Err: err}
	}
	return nil
}

// CF returns bit 0 of EFLAGS.
func (f *Facade) CF() (bool, error) {
	v, err := f.readReg(regEFLAGS)
	if err != nil {
		return false, err
	}
	return v&1 != 0, nil
}

// SetCF performs an atomic read-modify-write of EFLAGS bit 0.
func (f *Facade) SetCF(value bool) error {
	f.regMu.Lock()
	defer f.regMu.Unlock()

	v, err := f.mu.RegRead(ucReg[regEFLAGS])
	if err != nil {
		return &RegisterIOError{Reg: "EFLAGS", Err: err}
	}
	if value {
		v |= 1
	} else {
		v &^= 1
	}
	if err := f.mu.RegWrite(ucReg[regEFLAGS], v); err != nil {
		return &RegisterIOError{Reg: "EFLAGS", Err: err}
	}
	return nil
}

// Snapshot reads every register and returns a consistent CpuState value.
func (f *Facade) Snapshot() (CpuState, error) {
	ids := []regID{regEAX, regEBX, regECX, regEDX, regESI, regEDI, regESP, regEBP, regEIP, regEFLAGS, regCS, regDS, regSS, regES, regFS, regGS}
	vals := make([]uint64, len(ids))

	f.regMu.Lock()
	for i, id := range ids {
		v, err := f.mu.RegRead(ucReg[id])
		if err != nil {
			f.regMu.Unlock()
			return CpuState{}, &RegisterIOError{Reg: regName[id], Err: err}
		}
		vals[i] = v
	}
	f.regMu.Unlock()

	return stateFromRegs32(
		uint32(vals[0]), uint32(vals[1]), uint32(vals[2]), uint32(vals[3]),
		uint32(vals[4]), uint32(vals[5]), uint32(vals[6]), uint32(vals[7]),
		uint32(vals[8]), uint32(vals[9]),
		uint16(vals[10]), uint16(vals[11]), uint16(vals[12]), uint16(vals[13]), uint16(vals[14]), uint16(vals[15]),
	), nil
}

// The per-register accessor surface. Kept fat to match the teacher's own
// Registers type rather than collapsed to a single Get/Set pair.

func (f *Facade) AH() (byte, error)  { v, err := f.readReg(regAH); return byte(v), err }
func (f *Facade) AL() (byte, error)  { v, err := f.readReg(regAL); return byte(v), err }
func (f *Facade) BH() (byte, error)  { v, err := f.readReg(regBH); return byte(v), err }
func (f *Facade) BL() (byte, error)  { v, err := f.readReg(regBL); return byte(v), err }
func (f *Facade) CH() (byte, error)  { v, err := f.readReg(regCH); return byte(v), err }
func (f *Facade) CL() (byte, error)  { v, err := f.readReg(regCL); return byte(v), err }
func (f *Facade) DH() (byte, error)  { v, err := f.readReg(regDH); return byte(v), err }
func (f *Facade) DL() (byte, error)  { v, err := f.readReg(regDL); return byte(v), err }

func (f *Facade) SetAH(v byte) error { return f.writeReg(regAH, uint64(v)) }
func (f *Facade) SetAL(v byte) error { return f.writeReg(regAL, uint64(v)) }
func (f *Facade) SetBH(v byte) error { return f.writeReg(regBH, uint64(v)) }
func (f *Facade) SetBL(v byte) error { return f.writeReg(regBL, uint64(v)) }
func (f *Facade) SetCH(v byte) error { return f.writeReg(regCH, uint64(v)) }
func (f *Facade) SetCL(v byte) error { return f.writeReg(regCL, uint64(v)) }
func (f *Facade) SetDH(v byte) error { return f.writeReg(regDH, uint64(v)) }
func (f *Facade) SetDL(v byte) error { return f.writeReg(regDL, uint64(v)) }

func (f *Facade) AX() (uint16, error) { v, err := f.readReg(regAX); return uint16(v), err }
func (f *Facade) BX() (uint16, error) { v, err := f.readReg(regBX); return uint16(v), err }
func (f *Facade) CX() (uint16, error) { v, err := f.readReg(regCX); return uint16(v), err }
func (f *Facade) DX() (uint16, error) { v, err := f.readReg(regDX); return uint16(v), err }
func (f *Facade) SI() (uint16, error) { v, err := f.readReg(regSI); return uint16(v), err }
func (f *Facade) DI() (uint16, error) { v, err := f.readReg(regDI); return uint16(v), err }
func (f *Facade) SP() (uint16, error) { v, err := f.readReg(regSP); return uint16(v), err }
func (f *Facade) BP() (uint16, error) { v, err := f.readReg(regBP); return uint16(v), err }
func (f *Facade) CS() (uint16, error) { v, err := f.readReg(regCS); return uint16(v), err }
func (f *Facade) DS() (uint16, error) { v, err := f.readReg(regDS); return uint16(v), err }
func (f *Facade) SS() (uint16, error) { v, err := f.readReg(regSS); return uint16(v), err }
func (f *Facade) ES() (uint16, error) { v, err := f.readReg(regES); return uint16(v), err }
func (f *Facade) FS() (uint16, error) { v, err := f.readReg(regFS); return uint16(v), err }
func (f *Facade) GS() (uint16, error) { v, err := f.readReg(regGS); return uint16(v), err }
func (f *Facade) IP() (uint16, error) { v, err := f.readReg(regIP); return uint16(v), err }

func (f *Facade) SetAX(v uint16) error { return f.writeReg(regAX, uint64(v)) }
func (f *Facade) SetBX(v uint16) error { return f.writeReg(regBX, uint64(v)) }
func (f *Facade) SetCX(v uint16) error { return f.writeReg(regCX, uint64(v)) }
func (f *Facade) SetDX(v uint16) error { return f.writeReg(regDX, uint64(v)) }
func (f *Facade) SetSI(v uint16) error { return f.writeReg(regSI, uint64(v)) }
func (f *Facade) SetDI(v uint16) error { return f.writeReg(regDI, uint64(v)) }
func (f *Facade) SetSP(v uint16) error { return f.writeReg(regSP, uint64(v)) }
func (f *Facade) SetBP(v uint16) error { return f.writeReg(regBP, uint64(v)) }
func (f *Facade) SetCS(v uint16) error { return f.writeReg(regCS, uint64(v)) }
func (f *Facade) SetDS(v uint16) error { return f.writeReg(regDS, uint64(v)) }
func (f *Facade) SetSS(v uint16) error { return f.writeReg(regSS, uint64(v)) }
func (f *Facade) SetES(v uint16) error { return f.writeReg(regES, uint64(v)) }
func (f *Facade) SetFS(v uint16) error { return f.writeReg(regFS, uint64(v)) }
func (f *Facade) SetGS(v uint16) error { return f.writeReg(regGS, uint64(v)) }
func (f *Facade) SetIP(v uint16) error { return f.writeReg(regIP, uint64(v)) }

func (f *Facade) EAX() (uint32, error)    { v, err := f.readReg(regEAX); return uint32(v), err }
func (f *Facade) EBX() (uint32, error)    { v, err := f.readReg(regEBX); return uint32(v), err }
func (f *Facade) ECX() (uint32, error)    { v, err := f.readReg(regECX); return uint32(v), err }
func (f *Facade) EDX() (uint32, error)    { v, err := f.readReg(regEDX); return uint32(v), err }
func (f *Facade) ESI() (uint32, error)    { v, err := f.readReg(regESI); return uint32(v), err }
func (f *Facade) EDI() (uint32, error)    { v, err := f.readReg(regEDI); return uint32(v), err }
func (f *Facade) ESP() (uint32, error)    { v, err := f.readReg(regESP); return uint32(v), err }
func (f *Facade) EBP() (uint32, error)    { v, err := f.readReg(regEBP); return uint32(v), err }
func (f *Facade) EIP() (uint32, error)    { v, err := f.readReg(regEIP); return uint32(v), err }
func (f *Facade) EFLAGS() (uint32, error) { v, err := f.readReg(regEFLAGS); return uint32(v), err }

func (f *Facade) SetEAX(v uint32) error    { return f.writeReg(regEAX, uint64(v)) }
func (f *Facade) SetEBX(v uint32) error    { return f.writeReg(regEBX, uint64(v)) }
func (f *Facade) SetECX(v uint32) error    { return f.writeReg(regECX, uint64(v)) }
func (f *Facade) SetEDX(v uint32) error    { return f.writeReg(regEDX, uint64(v)) }
func (f *Facade) SetESI(v uint32) error    { return f.writeReg(regESI, uint64(v)) }
func (f *Facade) SetEDI(v uint32) error    { return f.writeReg(regEDI, uint64(v)) }
func (f *Facade) SetESP(v uint32) error    { return f.writeReg(regESP, uint64(v)) }
func (f *Facade) SetEBP(v uint32) error    { return f.writeReg(regEBP, uint64(v)) }
func (f *Facade) SetEIP(v uint32) error    { return f.writeReg(regEIP, uint64(v)) }
func (f *Facade) SetEFLAGS(v uint32) error { return f.writeReg(regEFLAGS, uint64(v)) }

// Running reports whether the emulation worker is currently active.
func (f *Facade) Running() bool {
	return atomic.LoadInt32(&f.running) != 0
}

// OnStart appends a callback fired the moment Start transitions the engine
// to running, from a snapshot of the registry taken under the callback lock
// (the lock itself is released before the callbacks run).
func (f *Facade) OnStart(fn func()) {
	f.cbMu.Lock()
	f.onStart = append(f.onStart, fn)
	f.cbMu.Unlock()
}

// OnStop appends a callback fired exactly once when the worker's run
// finishes, whether by halt, Stop, or an unrecovered error.
func (f *Facade) OnStop(fn func()) {
	f.cbMu.Lock()
	f.onStop = append(f.onStop, fn)
	f.cbMu.Unlock()
}

// OnInterrupt appends an interrupt handler. Handlers run in registration
// order; the first to return true claims the INT.
func (f *Facade) OnInterrupt(fn func(n uint32, f *Facade) bool) {
	f.cbMu.Lock()
	f.onInterrupt = append(f.onInterrupt, fn)
	f.cbMu.Unlock()
}

// OnException appends a recovery handler for errors raised on the worker.
func (f *Facade) OnException(fn func(err error) bool) {
	f.cbMu.Lock()
	f.onException = append(f.onException, fn)
	f.cbMu.Unlock()
}

// OnInvalidMemoryAccess appends a callback for accesses outside mapped memory.
func (f *Facade) OnInvalidMemoryAccess(fn func(addr uint64, size int)) {
	f.cbMu.Lock()
	f.onInvalidMemoryAccess = append(f.onInvalidMemoryAccess, fn)
	f.cbMu.Unlock()
}

// OnValidMemoryAccess appends a callback for accesses inside mapped memory.
func (f *Facade) OnValidMemoryAccess(fn func(addr uint64, size int)) {
	f.cbMu.Lock()
	f.onValidMemoryAccess = append(f.onValidMemoryAccess, fn)
	f.cbMu.Unlock()
}

// BeforeInstruction appends a callback fired just before each instruction
// fetch/decode/execute cycle.
func (f *Facade) BeforeInstruction(fn func(addr uint64, raw []byte)) {
	f.cbMu.Lock()
	f.beforeInstructionHooks = append(f.beforeInstructionHooks, fn)
	f.cbMu.Unlock()
}

// AfterInstruction appends a callback fired once the previous instruction
// has retired. Unicorn only exposes a before-fetch hook, so this is
// synthesized by deferring delivery to the next code hook invocation.
func (f *Facade) AfterInstruction(fn func(addr uint64, cpu CpuState, raw []byte)) {
	f.cbMu.Lock()
	f.afterInstructionHooks = append(f.afterInstructionHooks, fn)
	f.cbMu.Unlock()
}

// Start spawns the emulation worker at entry if the engine is not already
// running. Returns false without side effects if a worker is already active.
func (f *Facade) Start(entry uint64) bool {
	if !atomic.CompareAndSwapInt32(&f.running, 0, 1) {
		return false
	}

	f.cbMu.Lock()
	starters := append([]func(){}, f.onStart...)
	f.cbMu.Unlock()

	for _, fn := range starters {
		fn()
	}

	go f.runWorker(entry)
	return true
}

func (f *Facade) runWorker(entry uint64) {
	err := f.mu.Start(entry, 0)

	if err != nil {
		// A deliberate Stop (including the one handleInterrupt issues for
		// an unhandled INT) makes Unicorn return a nil Start error, so any
		// non-nil err reaching here is a genuine mid-run halt status.
		err = fmt.Errorf("%w: %v", ErrEmulationHalt, err)

		f.cbMu.Lock()
		handlers := append([]func(error) bool{}, f.onException...)
		f.cbMu.Unlock()

		handled := false
		for _, h := range handlers {
			if h(err) {
				handled = true
			}
		}
		if !handled {
			f.doneMu.Lock()
			f.lastErr = err
			f.doneMu.Unlock()
		}
	}

	atomic.StoreInt32(&f.running, 0)

	f.cbMu.Lock()
	stoppers := append([]func(){}, f.onStop...)
	f.cbMu.Unlock()

	for _, fn := range stoppers {
		fn()
	}

	f.doneMu.Lock()
	f.doneCv.Broadcast()
	f.doneMu.Unlock()
}

// Stop requests that the emulator halt at the next safe point. A no-op if
// the engine is not running.
func (f *Facade) Stop() {
	if !f.Running() {
		return
	}
	f.regMu.Lock()
	f.mu.Stop()
	f.regMu.Unlock()
}

// WaitUntilFinished blocks the caller until the worker transitions to
// Stopped, and returns any unrecovered error from that run.
func (f *Facade) WaitUntilFinished() error {
	f.doneMu.Lock()
	defer f.doneMu.Unlock()

	for f.Running() {
		f.doneCv.Wait()
	}
	err := f.lastErr
	f.lastErr = nil
	return err
}

// handleInterrupt is Unicorn's single UC_HOOK_INTR callback. It snapshots
// the onInterrupt registry, releases the callback lock, and walks the
// handlers in registration order.
func (f *Facade) handleInterrupt(_ uc.Unicorn, n uint32) {
	f.cbMu.Lock()
	handlers := append([]func(uint32, *Facade) bool{}, f.onInterrupt...)
	f.cbMu.Unlock()

	for _, h := range handlers {
		if h(n, f) {
			return
		}
	}

	ax, _ := f.AX()
	f.mu.Stop()

	f.cbMu.Lock()
	excHandlers := append([]func(error) bool{}, f.onException...)
	f.cbMu.Unlock()

	err := &UnhandledInterruptError{N: n, AX: ax}
	handled := false
	for _, h := range excHandlers {
		if h(err) {
			handled = true
		}
	}
	if !handled {
		f.doneMu.Lock()
		f.lastErr = err
		f.doneMu.Unlock()
	}
}

func (f *Facade) handleCode(mu uc.Unicorn, addr uint64, size uint32) {
	if f.haveLast {
		cpu, _ := f.Snapshot()

		f.cbMu.Lock()
		afters := append([]func(uint64, CpuState, []byte){}, f.afterInstructionHooks...)
		f.cbMu.Unlock()

		for _, h := range afters {
			h(f.lastAddr, cpu, f.lastBytes)
		}
	}

	f.regMu.Lock()
	raw, _ := mu.MemRead(addr, uint64(size))
	f.regMu.Unlock()

	f.cbMu.Lock()
	befores := append([]func(uint64, []byte){}, f.beforeInstructionHooks...)
	f.cbMu.Unlock()

	for _, h := range befores {
		h(addr, raw)
	}

	f.lastAddr, f.lastBytes, f.haveLast = addr, raw, true
}

func (f *Facade) handleValidMemory(_ uc.Unicorn, _ int, addr uint64, size int, _ int64) {
	f.cbMu.Lock()
	handlers := append([]func(uint64, int){}, f.onValidMemoryAccess...)
	f.cbMu.Unlock()

	for _, h := range handlers {
		h(addr, size)
	}
}

func (f *Facade) handleInvalidMemory(_ uc.Unicorn, _ int, addr uint64, size int, _ int64) bool {
	f.cbMu.Lock()
	handlers := append([]func(uint64, int){}, f.onInvalidMemoryAccess...)
	f.cbMu.Unlock()

	for _, h := range handlers {
		h(addr, size)
	}
	return false
}
