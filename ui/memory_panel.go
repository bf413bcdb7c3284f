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

package ui

// inputState tags the memory panel's keyboard dispatch, replacing the
// scattered if/else chain the original keeps the address-entry and
// resume-wait concerns in.
type inputState int

const (
	inputNormal inputState = iota
	inputAwaitingAddress
	inputAwaitingResume
)

// memoryPanel tracks the Memory window's scroll position and the
// in-progress address-entry prompt.
type memoryPanel struct {
	offset        uint64
	memorySize    uint64
	bytesPerLine  int
	lines         int

	state     inputState
	promptBuf string
}

func newMemoryPanel(memorySize uint64) *memoryPanel {
	return &memoryPanel{memorySize: memorySize, bytesPerLine: 16, lines: 16}
}

// resize recomputes bytesPerLine/lines from the panel's drawn dimensions,
// following spec's (cols-4)/4 - 5 derivation.
func (m *memoryPanel) resize(cols, rows int) {
	bpl := (cols-4)/4 - 5
	if bpl < 1 {
		bpl = 1
	}
	m.bytesPerLine = bpl

	if rows < 1 {
		rows = 1
	}
	m.lines = rows
}

func (m *memoryPanel) maxOffset() uint64 {
	total := uint64(m.bytesPerLine * m.lines)
	if m.memorySize <= total {
		return 0
	}
	return m.memorySize - total
}

func (m *memoryPanel) scrollUp(n int) {
	step := uint64(n * m.bytesPerLine)
	if step >= m.offset {
		m.offset = 0
		return
	}
	m.offset -= step
}

func (m *memoryPanel) scrollDown(n int) {
	step := uint64(n * m.bytesPerLine)
	m.offset += step
	if m.offset >= m.memorySize {
		m.offset = m.maxOffset()
	}
}

func (m *memoryPanel) pageUp()   { m.scrollUp(m.lines) }
func (m *memoryPanel) pageDown() { m.scrollDown(m.lines) }

func (m *memoryPanel) jumpToZero() { m.offset = 0 }

func (m *memoryPanel) jumpTo(addr uint64) {
	if addr >= m.memorySize {
		addr = m.maxOffset()
	}
	m.offset = addr
}

// toggleAddressPrompt toggles the address-entry state. Toggling off with a
// non-empty buffer commits it as a jump, matching 'm' re-pressed while
// typing in the original.
func (m *memoryPanel) toggleAddressPrompt() {
	if m.state == inputAwaitingAddress {
		m.commitPrompt()
		m.state = inputNormal
		return
	}
	m.promptBuf = ""
	m.state = inputAwaitingAddress
}

func (m *memoryPanel) appendHexDigit(d byte) {
	if m.state != inputAwaitingAddress {
		return
	}
	m.promptBuf += string(d)
}

func (m *memoryPanel) backspace() {
	if m.state != inputAwaitingAddress || len(m.promptBuf) == 0 {
		return
	}
	m.promptBuf = m.promptBuf[:len(m.promptBuf)-1]
}

func (m *memoryPanel) commitPrompt() {
	if m.promptBuf == "" {
		return
	}
	var addr uint64
	for _, c := range []byte(m.promptBuf) {
		addr <<= 4
		switch {
		case c >= '0' && c <= '9':
			addr |= uint64(c - '0')
		case c >= 'a' && c <= 'f':
			addr |= uint64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			addr |= uint64(c-'A') + 10
		}
	}
	m.jumpTo(addr)
	m.promptBuf = ""
}
