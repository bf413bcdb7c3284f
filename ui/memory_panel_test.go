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

import "testing"

func TestMemoryPanelScrollSaturatesAtZero(t *testing.T) {
	m := newMemoryPanel(1024)
	m.resize(80, 10)

	m.scrollUp(100)
	if m.offset != 0 {
		t.Fatalf("offset = %d, want 0", m.offset)
	}
}

func TestMemoryPanelScrollDownSaturatesAtMax(t *testing.T) {
	m := newMemoryPanel(1024)
	m.resize(80, 10)

	m.scrollDown(1000)
	if m.offset >= m.memorySize {
		t.Fatalf("offset = %d, must stay below memorySize %d", m.offset, m.memorySize)
	}
	if m.offset != m.maxOffset() {
		t.Fatalf("offset = %d, want maxOffset %d", m.offset, m.maxOffset())
	}
}

func TestMemoryPanelJumpClampsToMax(t *testing.T) {
	m := newMemoryPanel(1024)
	m.resize(80, 10)

	m.jumpTo(5000)
	if m.offset != m.maxOffset() {
		t.Fatalf("offset = %d, want maxOffset %d", m.offset, m.maxOffset())
	}
}

func TestAddressPromptRoundTrip(t *testing.T) {
	m := newMemoryPanel(0x100000)
	m.resize(80, 10)

	m.toggleAddressPrompt()
	if m.state != inputAwaitingAddress {
		t.Fatal("expected awaiting-address state")
	}

	for _, d := range []byte("7c00") {
		m.appendHexDigit(d)
	}
	if m.promptBuf != "7c00" {
		t.Fatalf("promptBuf = %q, want %q", m.promptBuf, "7c00")
	}

	m.backspace()
	m.appendHexDigit('0')
	m.commitPrompt()

	if m.offset != 0x7C00 {
		t.Fatalf("offset = %#x, want 0x7c00", m.offset)
	}
}

func TestResizeDerivesBytesPerLine(t *testing.T) {
	m := newMemoryPanel(1024)
	m.resize(100, 10)

	want := (100-4)/4 - 5
	if m.bytesPerLine != want {
		t.Fatalf("bytesPerLine = %d, want %d", m.bytesPerLine, want)
	}
}
