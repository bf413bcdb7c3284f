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

// Int16Keyboard services the read/peek sub-functions of the keyboard
// BIOS service. AH=0x00/0x10 block the emulation worker on the UI's key
// source; AH=0x01/0x11 peek without consuming.
func Int16Keyboard(f *engine.Facade, io IO) bool {
	ah, err := f.AH()
	if err != nil {
		return false
	}

	switch ah {
	case 0x00, 0x10:
		key, ok := io.ReadKey(true)
		if !ok {
			return false
		}
		f.SetAH(0x00)
		f.SetAL(key)
		return true

	case 0x01, 0x11:
		key, ok := io.ReadKey(false)
		if !ok {
			flags, _ := f.EFLAGS()
			f.SetEFLAGS(flags | uint32(engine.Zero))
			return true
		}
		flags, _ := f.EFLAGS()
		f.SetEFLAGS(flags &^ uint32(engine.Zero))
		f.SetAH(0x00)
		f.SetAL(key)
		return true
	}

	return false
}
