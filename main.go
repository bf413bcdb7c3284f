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

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/afero"

	"github.com/fengjixuchui/unicorn-bios/bios"
	"github.com/fengjixuchui/unicorn-bios/config"
	"github.com/fengjixuchui/unicorn-bios/debugger"
	"github.com/fengjixuchui/unicorn-bios/engine"
	"github.com/fengjixuchui/unicorn-bios/ui"
	"github.com/fengjixuchui/unicorn-bios/version"
)

const bootEntry = 0x7C00

func main() {
	log.SetFlags(0)
	log.SetPrefix("Error: ")

	if err := run(os.Args[1:]); err != nil {
		if err == config.ErrHelpRequested {
			os.Exit(0)
		}
		log.Println(err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Parse(args, afero.NewOsFs())
	if err != nil {
		return err
	}

	printLogo()

	image, err := cfg.LoadBootImage()
	if err != nil {
		return err
	}

	eng, err := engine.New(cfg.MemoryBytes)
	if err != nil {
		return fmt.Errorf("%w", engine.ErrEmulatorInit)
	}
	defer eng.Close()

	n := len(image)
	if uint32(n) > cfg.MemoryBytes {
		n = int(cfg.MemoryBytes)
	}
	if err := eng.Write(bootEntry, image[:n]); err != nil {
		return err
	}

	registry := bios.NewDefault()
	core := debugger.New(eng, func(n uint32, f *engine.Facade, c *debugger.Core) bool {
		return registry.Dispatch(n, f, c)
	})

	core.SingleStep = cfg.SingleStep
	core.Trap = cfg.Trap
	core.BreakOnInterrupt = cfg.BreakOnInterrupt
	core.BreakOnIRET = cfg.BreakOnIRET
	core.DebugVideo = cfg.DebugVideo
	core.Disk = &imageDisk{image: image}

	for _, addr := range cfg.Breakpoints {
		core.AddBreakpoint(addr)
	}

	if cfg.NoUI {
		s := ui.NewStandardController(eng, core, os.Stdin, os.Stdout, os.Stderr)
		return s.Run(bootEntry)
	}

	driver := ui.NewTerminalDriver(cfg.NoColors)
	controller := ui.NewController(eng, core, driver, cfg.NoColors)
	return controller.RunInteractive(bootEntry)
}

// imageDisk implements debugger.DiskSource over the boot image bytes
// loaded at startup, the storage INT 13h reads additional sectors from.
type imageDisk struct {
	image []byte
}

func (d *imageDisk) ReadSector(lba uint32, count int) ([]byte, error) {
	const sectorSize = 512
	start := int(lba) * sectorSize
	end := start + count*sectorSize
	if start < 0 || end > len(d.image) {
		return nil, bios.ErrSectorNotFound
	}
	return d.image[start:end], nil
}

func printLogo() {
	fmt.Print(logo)
	fmt.Println("v" + version.Current.String())
	fmt.Println(" ───────═════ " + version.Copyright + " ══════───────")
	fmt.Println()
}

var logo = `
██╗   ██╗███╗   ██╗██╗ ██████╗ ██████╗ ██████╗ ███╗   ██╗       ██████╗ ██╗ ██████╗ ███████╗
██║   ██║████╗  ██║██║██╔════╝██╔══██╗██╔══██╗████╗  ██║       ██╔══██╗██║██╔═══██╗██╔════╝
██║   ██║██╔██╗ ██║██║██║     ██║  ██║██████╔╝██╔██╗ ██║       ██████╔╝██║██║   ██║███████╗
██║   ██║██║╚██╗██║██║██║     ██║  ██║██╔══██╗██║╚██╗██║       ██╔══██╗██║██║   ██║╚════██║
╚██████╔╝██║ ╚████║██║╚██████╗╚██████╔╝██║  ██║██║ ╚████║       ██████╔╝██║╚██████╔╝███████║
 ╚═════╝ ╚═╝  ╚═══╝╚═╝ ╚═════╝ ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═══╝       ╚═════╝ ╚═╝ ╚═════╝ ╚══════╝`
