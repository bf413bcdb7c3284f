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

import (
	"fmt"

	"github.com/fengjixuchui/unicorn-bios/engine"
)

// Int10Teletype services the AH=0x0E teletype sub-function every boot
// sector demo leans on, plus two common no-op sub-functions a real BIOS
// also exposes under INT 10h.
func Int10Teletype(f *engine.Facade, io IO) bool {
	ah, err := f.AH()
	if err != nil {
		return false
	}

	switch ah {
	case 0x0E:
		al, err := f.AL()
		if err != nil {
			return false
		}
		io.WriteOutput(al)
		return true

	case 0x00:
		if io.DebugVideoEnabled() {
			al, _ := f.AL()
			io.WriteDebug(fmt.Sprintf("int10: set video mode %#02x\n", al))
		}
		return true

	case 0x02:
		if io.DebugVideoEnabled() {
			dh, _ := f.DH()
			dl, _ := f.DL()
			io.WriteDebug(fmt.Sprintf("int10: set cursor row=%d col=%d\n", dh, dl))
		}
		return true
	}

	return false
}
