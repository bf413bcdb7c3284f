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

import "github.com/fengjixuchui/unicorn-bios/engine"

const ticksPerDay = 1573040 // 18.2Hz PIT tick rate over 24h, the classic BIOS constant

// Int1ATime services the real-time-clock sub-functions. AH=0x00 returns
// ticks elapsed since midnight, derived from the host clock rather than
// a virtualized PIT, since this emulator carries no timer peripheral.
func Int1ATime(f *engine.Facade, io IO) bool {
	ah, err := f.AH()
	if err != nil {
		return false
	}

	switch ah {
	case 0x00:
		now := io.Now()
		secondsSinceMidnight := now.Hour()*3600 + now.Minute()*60 + now.Second()
		ticks := uint32(uint64(secondsSinceMidnight) * ticksPerDay / 86400)

		f.SetCX(uint16(ticks >> 16))
		f.SetDX(uint16(ticks))
		f.SetAL(0)
		return true

	case 0x01:
		io.WriteDebug("int1a: reset clock day counter (no-op)\n")
		return true
	}

	return false
}
