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

// Package ui renders the live CPU/memory/disassembly/output view and
// drives the interactive pause/resume loop on top of a debugger.Core.
package ui

import (
	"fmt"
	"strings"

	"github.com/fengjixuchui/unicorn-bios/debugger"
	"github.com/fengjixuchui/unicorn-bios/disasm"
	"github.com/fengjixuchui/unicorn-bios/engine"
)

// Mode selects between the full terminal UI and a plain stdio fallback.
type Mode int

const (
	Interactive Mode = iota
	Standard
)

const minCols, minRows = 50, 30

// Controller owns the terminal front end: the panel layout, the memory
// panel's scroll/prompt state, and the keyboard queue that feeds both UI
// commands and the guest's INT 16h reads.
type Controller struct {
	eng  *engine.Facade
	core *debugger.Core

	driver   TerminalDriver
	noColors bool

	mem *memoryPanel

	keyboardChan chan byte
	quit         chan struct{}
}

// NewController wires a Controller to eng/core and installs itself as
// core's KeyboardSource.
func NewController(eng *engine.Facade, core *debugger.Core, driver TerminalDriver, noColors bool) *Controller {
	c := &Controller{
		eng:          eng,
		core:         core,
		driver:       driver,
		noColors:     noColors,
		mem:          newMemoryPanel(uint64(eng.MemorySize())),
		keyboardChan: make(chan byte, 32),
		quit:         make(chan struct{}),
	}
	core.Keyboard = c
	return c
}

// ReadKey implements debugger.KeyboardSource.
func (c *Controller) ReadKey(blocking bool) (byte, bool) {
	if blocking {
		select {
		case k := <-c.keyboardChan:
			return k, true
		case <-c.quit:
			return 0, false
		}
	}
	select {
	case k := <-c.keyboardChan:
		return k, true
	default:
		return 0, false
	}
}

// RunInteractive starts the emulator at entry and drives the terminal
// event loop on the calling goroutine until the guest halts, the
// operator quits, or SIGINT arrives.
func (c *Controller) RunInteractive(entry uint64) error {
	if err := c.driver.Init(); err != nil {
		return err
	}
	defer c.driver.Fini()

	repaint := make(chan struct{}, 1)
	wake := func() {
		select {
		case repaint <- struct{}{}:
		default:
		}
	}

	c.core.OnPause(func(string) { wake() })

	if !c.eng.Start(entry) {
		return fmt.Errorf("ui: engine already running")
	}

	events := make(chan Event)
	go func() {
		for {
			ev := c.driver.PollEvent()
			select {
			case events <- ev:
			case <-c.quit:
				return
			}
			if ev.Interrupt {
				return
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		c.eng.WaitUntilFinished()
		close(done)
	}()

	wake()
	for {
		select {
		case ev := <-events:
			if ev.Interrupt {
				c.eng.Stop()
				close(c.quit)
				c.paint()
				return nil
			}
			if !ev.Resize {
				c.handleKey(ev.Key)
			}
			wake()
		case <-repaint:
			c.paint()
		case <-done:
			close(c.quit)
			c.paint()
			return nil
		}
	}
}

func (c *Controller) handleKey(k byte) {
	if c.core.Paused() {
		if k == '\r' || k == '\n' || k == ' ' {
			c.core.Resume(k)
		}
		return
	}

	if c.mem.state == inputAwaitingAddress && isHexDigit(k) {
		c.mem.appendHexDigit(k)
		return
	}

	switch k {
	case 'a':
		c.mem.scrollUp(1)
	case 's':
		c.mem.scrollDown(1)
	case 'd':
		c.mem.pageUp()
	case 'f':
		c.mem.pageDown()
	case 'g':
		c.mem.jumpToZero()
	case 'm':
		c.mem.toggleAddressPrompt()
	case 127:
		c.mem.backspace()
	case '\r', '\n':
		if c.mem.state == inputAwaitingAddress {
			c.mem.commitPrompt()
			c.mem.state = inputNormal
		}
	case 'q':
		c.eng.Stop()
	default:
		select {
		case c.keyboardChan <- k:
		default:
		}
	}
}

func isHexDigit(k byte) bool {
	return (k >= '0' && k <= '9') || (k >= 'a' && k <= 'f') || (k >= 'A' && k <= 'F')
}

// panel layout constants, taken verbatim from the fixed-position window
// coordinates the original lays out.
const (
	registersX, registersY, registersW, registersH = 0, 0, 54, 21
	flagsX, flagsW                                 = 54, 36
	stackX, stackW                                 = 90, 30
	instructionsX, instructionsW                   = 120, 56
	disassemblyX                                   = 176
	statusH                                         = 3
)

func (c *Controller) paint() {
	cols, rows := c.driver.Size()
	c.driver.Clear()

	if cols < minCols || rows < minRows {
		c.driver.DrawText(0, 0, StyleWarning, "Screen too small...")
		c.driver.Show()
		return
	}

	cpu, _ := c.eng.Snapshot()
	lowerY := registersH
	lowerH := rows - registersH - statusH
	if lowerH < 1 {
		lowerH = 1
	}

	c.drawRegisters(registersX, registersY, cpu)

	if flagsX+flagsW <= cols {
		c.drawFlags(flagsX, registersY, cpu)
	}
	if stackX+stackW <= cols {
		c.drawStack(stackX, registersY, cpu)
	}
	if instructionsX+instructionsW <= cols {
		c.drawInstructions(instructionsX, registersY, cpu)
	}
	if disassemblyX < cols {
		c.drawDisassembly(disassemblyX, registersY, cols-disassemblyX, cpu)
	}

	c.mem.resize(cols, lowerH/2)
	c.drawMemory(0, lowerY, cols, lowerH/2)

	outY := lowerY + lowerH/2
	outH := lowerH - lowerH/2
	c.drawOutput(0, outY, cols/2, outH)
	c.drawDebug(cols/2, outY, cols-cols/2, outH)

	c.drawStatus(0, rows-statusH, cols)

	c.driver.Show()
}

func (c *Controller) drawRegisters(x, y int, cpu engine.CpuState) {
	c.driver.DrawText(x, y, StyleHeading, "Registers")
	rows := []string{
		fmt.Sprintf("EAX %08X  AX %04X  AH %02X  AL %02X", cpu.EAX, cpu.AX, cpu.AH, cpu.AL),
		fmt.Sprintf("EBX %08X  BX %04X  BH %02X  BL %02X", cpu.EBX, cpu.BX, cpu.BH, cpu.BL),
		fmt.Sprintf("ECX %08X  CX %04X  CH %02X  CL %02X", cpu.ECX, cpu.CX, cpu.CH, cpu.CL),
		fmt.Sprintf("EDX %08X  DX %04X  DH %02X  DL %02X", cpu.EDX, cpu.DX, cpu.DH, cpu.DL),
		"",
		fmt.Sprintf("ESI %08X  SI %04X", cpu.ESI, cpu.SI),
		fmt.Sprintf("EDI %08X  DI %04X", cpu.EDI, cpu.DI),
		"",
		fmt.Sprintf("EBP %08X  BP %04X", cpu.EBP, cpu.BP),
		fmt.Sprintf("ESP %08X  SP %04X", cpu.ESP, cpu.SP),
		"",
		fmt.Sprintf("CS %04X  DS %04X  SS %04X", cpu.CS, cpu.DS, cpu.SS),
		fmt.Sprintf("ES %04X  FS %04X  GS %04X", cpu.ES, cpu.FS, cpu.GS),
		"",
		fmt.Sprintf("IP %04X", cpu.IP),
		fmt.Sprintf("EFLAGS %08X", cpu.EFLAGS),
	}
	for i, line := range rows {
		c.driver.DrawText(x, y+1+i, StyleNormal, line)
	}
}

var flagNames = []struct {
	bit  engine.Flags
	name string
}{
	{engine.Carry, "Carry"},
	{engine.Parity, "Parity"},
	{engine.Adjust, "Adjust"},
	{engine.Zero, "Zero"},
	{engine.Sign, "Sign"},
	{engine.Trap, "Trap"},
	{engine.InterruptEnable, "Interrupt enable"},
	{engine.Direction, "Direction"},
	{engine.Overflow, "Overflow"},
	{engine.Resume, "Resume"},
	{engine.Virtual8086, "Virtual 8086"},
	{engine.AlignmentCheck, "Alignment check"},
	{engine.VirtualInterrupt, "Virtual interrupt"},
	{engine.VirtualInterruptPending, "Virtual interrupt pending"},
	{engine.CPUID, "CPUID"},
}

func (c *Controller) drawFlags(x, y int, cpu engine.CpuState) {
	c.driver.DrawText(x, y, StyleHeading, "Flags")
	flags := engine.Flags(cpu.EFLAGS)
	for i, f := range flagNames {
		v := "No"
		if flags.Get(f.bit) {
			v = "Yes"
		}
		c.driver.DrawText(x, y+1+i, StyleNormal, fmt.Sprintf("%-18s %s", f.name, v))
	}
	c.driver.DrawText(x, y+2+len(flagNames), StyleNormal, fmt.Sprintf("raw: %032b", cpu.EFLAGS))
}

func (c *Controller) drawStack(x, y int, cpu engine.CpuState) {
	c.driver.DrawText(x, y, StyleHeading, "Stack")

	sp, bp := uint32(cpu.SP), uint32(cpu.BP)
	line := 0
	for addr := sp; addr+1 < bp; addr += 2 {
		if line >= registersH-1 {
			break
		}
		v, err := c.eng.Read(engine.GetAddress(cpu.SS, uint16(addr)), 2)
		if err != nil {
			c.driver.DrawText(x, y+1+line, StyleNormal, ".")
		} else {
			c.driver.DrawText(x, y+1+line, StyleNormal, fmt.Sprintf("%04X: %02X%02X", addr, v[1], v[0]))
		}
		line++
	}
}

func (c *Controller) instructionLines(cpu engine.CpuState) []disasm.Line {
	code, err := c.eng.Read(uint64(cpu.EIP), 512)
	if err != nil || len(code) == 0 {
		return nil
	}
	return disasm.Disassemble(code, uint64(cpu.EIP))
}

func (c *Controller) drawInstructions(x, y int, cpu engine.CpuState) {
	c.driver.DrawText(x, y, StyleHeading, "Instructions")
	for i, line := range c.instructionLines(cpu) {
		if i >= registersH-1 {
			break
		}
		c.driver.DrawText(x, y+1+i, StyleNormal, disasm.FormatLine(line))
	}
}

func (c *Controller) drawDisassembly(x, y, w int, cpu engine.CpuState) {
	c.driver.DrawText(x, y, StyleHeading, "Disassembly")
	for i, line := range c.instructionLines(cpu) {
		if i >= registersH-1 {
			break
		}
		text := disasm.FormatLine(line)
		if len(text) > w {
			text = text[:w]
		}
		c.driver.DrawText(x, y+1+i, StyleNormal, text)
	}
}

func (c *Controller) drawMemory(x, y, w, h int) {
	title := "Memory"
	if c.mem.state == inputAwaitingAddress {
		title = fmt.Sprintf("Memory [jump to: %s]", c.mem.promptBuf)
	}
	c.driver.DrawText(x, y, StyleHeading, title)

	bpl := c.mem.bytesPerLine
	for line := 0; line < h-1; line++ {
		addr := c.mem.offset + uint64(line*bpl)
		if addr >= c.mem.memorySize {
			break
		}
		n := bpl
		if addr+uint64(n) > c.mem.memorySize {
			n = int(c.mem.memorySize - addr)
		}
		data, err := c.eng.Read(addr, uint32(n))
		if err != nil {
			continue
		}

		var hex, ascii strings.Builder
		for _, b := range data {
			fmt.Fprintf(&hex, "%02X ", b)
			if b >= 0x20 && b < 0x7F {
				ascii.WriteByte(b)
			} else {
				ascii.WriteByte('.')
			}
		}
		row := fmt.Sprintf("%08X  %-*s %s", addr, bpl*3, hex.String(), ascii.String())
		if len(row) > w {
			row = row[:w]
		}
		c.driver.DrawText(x, y+1+line, StyleNormal, row)
	}
}

func (c *Controller) drawOutput(x, y, w, h int) {
	c.driver.DrawText(x, y, StyleHeading, "Output")
	drawWrapped(c.driver, x, y+1, w, h-1, string(c.core.Output.Bytes()))
}

func (c *Controller) drawDebug(x, y, w, h int) {
	c.driver.DrawText(x, y, StyleHeading, "Debug")
	drawWrapped(c.driver, x, y+1, w, h-1, string(c.core.Debug.Bytes()))
}

func drawWrapped(driver TerminalDriver, x, y, w, h int, text string) {
	if w <= 0 || h <= 0 {
		return
	}
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		for len(line) > w {
			lines = append(lines, line[:w])
			line = line[w:]
		}
		lines = append(lines, line)
	}
	if len(lines) > h {
		lines = lines[len(lines)-h:]
	}
	for i, line := range lines {
		if len(line) > w {
			line = line[:w]
		}
		driver.DrawText(x, y+i, StyleNormal, line)
	}
}

func (c *Controller) drawStatus(x, y, w int) {
	status := c.core.Status()
	if c.core.Paused() {
		status = "Emulation paused - press [ENTER] or [SPACE]"
	}
	c.driver.DrawText(x, y, StyleHeading, strings.Repeat("-", w))
	c.driver.DrawText(x, y+1, StyleNormal, status)
}
