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

import uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

// Flags mirrors the bit layout of EFLAGS, named the way the teacher's
// emulator/processor.Flags type names them.
const (
	Carry                   Flags = 0x000001
	Parity                  Flags = 0x000004
	Adjust                  Flags = 0x000010
	Zero                    Flags = 0x000040
	Sign                    Flags = 0x000080
	Trap                    Flags = 0x000100
	InterruptEnable         Flags = 0x000200
	Direction               Flags = 0x000400
	Overflow                Flags = 0x000800
	Resume                  Flags = 0x010000
	Virtual8086             Flags = 0x020000
	AlignmentCheck          Flags = 0x040000
	VirtualInterrupt        Flags = 0x080000
	VirtualInterruptPending Flags = 0x100000
	CPUID                   Flags = 0x200000
)

type Flags uint32

func (f Flags) Get(bit Flags) bool { return f&bit != 0 }

// CpuState is a copyable value snapshot of the register file. The 8/16-bit
// fields are derived from the 32-bit backing registers at snapshot time, so
// they are always consistent with each other per x86 aliasing rules; they
// are never themselves the source of truth.
type CpuState struct {
	AH, AL, BH, BL, CH, CL, DH, DL byte

	AX, BX, CX, DX,
	SI, DI, SP, BP,
	CS, DS, SS, ES, FS, GS,
	IP uint16

	EAX, EBX, ECX, EDX,
	ESI, EDI, ESP, EBP,
	EIP, EFLAGS uint32
}

// CF reports bit 0 of EFLAGS.
func (s CpuState) CF() bool { return Flags(s.EFLAGS).Get(Carry) }

func stateFromRegs32(eax, ebx, ecx, edx, esi, edi, esp, ebp, eip, eflags uint32, cs, ds, ss, es, fs, gs uint16) CpuState {
	s := CpuState{
		EAX: eax, EBX: ebx, ECX: ecx, EDX: edx,
		ESI: esi, EDI: edi, ESP: esp, EBP: ebp,
		EIP: eip, EFLAGS: eflags,
		CS: cs, DS: ds, SS: ss, ES: es, FS: fs, GS: gs,
	}
	s.AX, s.BX, s.CX, s.DX = uint16(eax), uint16(ebx), uint16(ecx), uint16(edx)
	s.SI, s.DI, s.SP, s.BP, s.IP = uint16(esi), uint16(edi), uint16(esp), uint16(ebp), uint16(eip)
	s.AH, s.AL = byte(eax>>8), byte(eax)
	s.BH, s.BL = byte(ebx>>8), byte(ebx)
	s.CH, s.CL = byte(ecx>>8), byte(ecx)
	s.DH, s.DL = byte(edx>>8), byte(edx)
	return s
}

// regID names every register the engine's fat accessor surface exposes.
// Kept as a full enumeration, matching the breadth of Engine.hpp and the
// teacher's own Registers type, rather than collapsing to a bare int.
type regID int

const (
	regAH regID = iota
	regAL
	regBH
	regBL
	regCH
	regCL
	regDH
	regDL
	regAX
	regBX
	regCX
	regDX
	regSI
	regDI
	regSP
	regBP
	regCS
	regDS
	regSS
	regES
	regFS
	regGS
	regIP
	regEAX
	regEBX
	regECX
	regEDX
	regESI
	regEDI
	regESP
	regEBP
	regEIP
	regEFLAGS
)

// ucReg maps a regID onto its Unicorn X86_REG_* constant.
var ucReg = map[regID]int{
	regAH: uc.X86_REG_AH, regAL: uc.X86_REG_AL,
	regBH: uc.X86_REG_BH, regBL: uc.X86_REG_BL,
	regCH: uc.X86_REG_CH, regCL: uc.X86_REG_CL,
	regDH: uc.X86_REG_DH, regDL: uc.X86_REG_DL,
	regAX: uc.X86_REG_AX, regBX: uc.X86_REG_BX,
	regCX: uc.X86_REG_CX, regDX: uc.X86_REG_DX,
	regSI: uc.X86_REG_SI, regDI: uc.X86_REG_DI,
	regSP: uc.X86_REG_SP, regBP: uc.X86_REG_BP,
	regCS: uc.X86_REG_CS, regDS: uc.X86_REG_DS,
	regSS: uc.X86_REG_SS, regES: uc.X86_REG_ES,
	regFS: uc.X86_REG_FS, regGS: uc.X86_REG_GS,
	regIP: uc.X86_REG_IP,
	regEAX: uc.X86_REG_EAX, regEBX: uc.X86_REG_EBX,
	regECX: uc.X86_REG_ECX, regEDX: uc.X86_REG_EDX,
	regESI: uc.X86_REG_ESI, regEDI: uc.X86_REG_EDI,
	regESP: uc.X86_REG_ESP, regEBP: uc.X86_REG_EBP,
	regEIP: uc.X86_REG_EIP, regEFLAGS: uc.X86_REG_EFLAGS,
}

// regName gives the accessor method name for error messages.
var regName = map[regID]string{
	regAH: "AH", regAL: "AL", regBH: "BH", regBL: "BL",
	regCH: "CH", regCL: "CL", regDH: "DH", regDL: "DL",
	regAX: "AX", regBX: "BX", regCX: "CX", regDX: "DX",
	regSI: "SI", regDI: "DI", regSP: "SP", regBP: "BP",
	regCS: "CS", regDS: "DS", regSS: "SS", regES: "ES",
	regFS: "FS", regGS: "GS", regIP: "IP",
	regEAX: "EAX", regEBX: "EBX", regECX: "ECX", regEDX: "EDX",
	regESI: "ESI", regEDI: "EDI", regESP: "ESP", regEBP: "EBP",
	regEIP: "EIP", regEFLAGS: "EFLAGS",
}
