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
	"errors"

	"github.com/fengjixuchui/unicorn-bios/engine"
)

// ErrSectorNotFound is returned by a DiskSource when the requested LBA
// falls outside the loaded image.
var ErrSectorNotFound = errors.New("bios: sector not found")

// standardGeometry is the 1.44MB floppy CHS shape assumed for any disk
// image that does not carry its own partition table, the same fallback
// the teacher's disk device falls back to for unrecognized image sizes.
const (
	sectorsPerTrack = 18
	headsPerDisk    = 2
	bytesPerSector  = 512
)

func chsToLBA(cylinder, head, sector uint32) uint32 {
	if sector == 0 {
		sector = 1
	}
	return (cylinder*headsPerDisk+head)*sectorsPerTrack + (sector - 1)
}

// Int13Disk services the CHS-addressed disk sub-functions a real-mode
// bootstrap needs to load the sectors past its own boot sector.
func Int13Disk(f *engine.Facade, io IO) bool {
	ah, err := f.AH()
	if err != nil {
		return false
	}

	switch ah {
	case 0x00: // reset
		f.SetCF(false)
		f.SetAH(0x00)
		return true

	case 0x02: // read sectors into ES:BX
		al, _ := f.AL()
		ch, _ := f.CH()
		cl, _ := f.CL()
		dh, _ := f.DH()
		es, _ := f.ES()
		bx, _ := f.BX()

		cylinder := uint32(ch) | uint32(cl&0xC0)<<2
		sector := uint32(cl & 0x3F)
		head := uint32(dh)
		count := int(al)

		lba := chsToLBA(cylinder, head, sector)
		data, rerr := io.ReadSector(lba, count)
		if rerr != nil {
			f.SetCF(true)
			f.SetAH(0x04) // sector not found
			return true
		}

		dest := engine.GetAddress(es, bx)
		if werr := f.Write(dest, data); werr != nil {
			f.SetCF(true)
			f.SetAH(0x04)
			return true
		}

		f.SetCF(false)
		f.SetAH(0x00)
		f.SetAL(byte(len(data) / bytesPerSector))
		return true

	case 0x04: // verify sectors: accepted as a documented no-op
		f.SetCF(false)
		f.SetAH(0x00)
		return true

	case 0x08: // get drive parameters
		f.SetCF(false)
		f.SetAH(0x00)
		f.SetCH(byte(79))
		f.SetCL(byte(sectorsPerTrack))
		f.SetDH(byte(headsPerDisk - 1))
		f.SetDL(1)
		return true
	}

	return false
}
