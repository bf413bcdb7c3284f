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

// Package disasm is a pure function wrapper around x86asm that turns a
// raw byte slice into the address/mnemonic pairs the Instructions and
// Disassembly panels both render.
package disasm

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// Line is one decoded instruction, or one decode failure represented as
// a single skipped byte.
type Line struct {
	Address uint64
	Text    string
	Length  int
}

// Disassemble decodes code starting at baseAddress in 16-bit mode,
// stopping when the input is exhausted. A byte that fails to decode is
// reported as "(bad)" and skipped one byte at a time, so one malformed
// instruction never blocks the rest of the buffer from rendering.
func Disassemble(code []byte, baseAddress uint64) []Line {
	var lines []Line

	for offset := 0; offset < len(code); {
		inst, err := x86asm.Decode(code[offset:], 16)
		if err != nil || inst.Len == 0 {
			lines = append(lines, Line{
				Address: baseAddress + uint64(offset),
				Text:    "(bad)",
				Length:  1,
			})
			offset++
			continue
		}

		text := x86asm.GNUSyntax(inst, baseAddress+uint64(offset), nil)
		lines = append(lines, Line{
			Address: baseAddress + uint64(offset),
			Text:    text,
			Length:  inst.Len,
		})
		offset += inst.Len
	}

	return lines
}

// FormatLine renders a Line the way the Instructions/Disassembly panels
// show it: "ADDRESS: TEXT".
func FormatLine(l Line) string {
	return fmt.Sprintf("%08X: %s", l.Address, l.Text)
}
