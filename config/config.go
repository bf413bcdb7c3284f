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

// Package config parses the CLI surface and loads the boot image through
// an afero.Fs, the same filesystem-abstraction pairing the teacher uses
// to keep platform.FileSystem testable without touching the real disk.
package config

import (
	"errors"
	"flag"
	"fmt"
	"strconv"

	"github.com/spf13/afero"
)

// ErrNoBootImage is returned by Parse when no positional BOOT_IMG
// argument was supplied and -h/--help was not requested.
var ErrNoBootImage = errors.New("config: missing BOOT_IMG argument")

// ErrHelpRequested is returned by Parse when -h/--help was passed; the
// caller should print usage and exit 0 rather than treat this as fatal.
var ErrHelpRequested = errors.New("config: help requested")

const (
	defaultMemoryMiB = 64
	minMemoryMiB     = 2
)

// hexList implements flag.Value, collecting repeated -b/--break <HEX>
// occurrences into a slice of addresses.
type hexList struct {
	values *[]uint64
}

func (h hexList) String() string {
	if h.values == nil {
		return ""
	}
	return fmt.Sprint(*h.values)
}

func (h hexList) Set(s string) error {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return fmt.Errorf("config: invalid breakpoint %q: %w", s, err)
	}
	*h.values = append(*h.values, v)
	return nil
}

// Config is the fully resolved set of options main needs to construct
// the engine, debugger, and UI.
type Config struct {
	BootImagePath string
	Fs            afero.Fs

	MemoryBytes uint32

	Breakpoints     []uint64
	BreakOnInterrupt bool
	BreakOnIRET     bool
	Trap            bool
	DebugVideo      bool
	SingleStep      bool

	NoUI     bool
	NoColors bool
}

// Parse builds a Config from CLI-style arguments (typically os.Args[1:]).
// fs is the filesystem the boot image is read from; production code
// passes afero.NewOsFs(), tests pass afero.NewMemMapFs().
func Parse(args []string, fs afero.Fs) (*Config, error) {
	fset := flag.NewFlagSet("unicorn-bios", flag.ContinueOnError)

	var help bool
	fset.BoolVar(&help, "h", false, "show help")
	fset.BoolVar(&help, "help", false, "show help")

	var memoryMiB uint
	fset.UintVar(&memoryMiB, "m", defaultMemoryMiB, "RAM in MiB")
	fset.UintVar(&memoryMiB, "memory", defaultMemoryMiB, "RAM in MiB")

	var breakpoints []uint64
	fset.Var(hexList{&breakpoints}, "b", "add a breakpoint (hex address, may repeat)")
	fset.Var(hexList{&breakpoints}, "break", "add a breakpoint (hex address, may repeat)")

	var breakOnInterrupt, breakOnIRET, trap, debugVideo, singleStep, noUI, noColors bool
	fset.BoolVar(&breakOnInterrupt, "break-int", false, "break before each INT dispatch")
	fset.BoolVar(&breakOnIRET, "break-iret", false, "break after each INT return")
	fset.BoolVar(&trap, "trap", false, "set EFLAGS.TF when entering a break")
	fset.BoolVar(&debugVideo, "debug-video", false, "log verbose video BIOS calls")
	fset.BoolVar(&singleStep, "single-step", false, "break before every instruction")
	fset.BoolVar(&noUI, "no-ui", false, "standard mode: stdout/stderr only")
	fset.BoolVar(&noColors, "no-colors", false, "disable ANSI color output")

	if err := fset.Parse(args); err != nil {
		return nil, err
	}

	if help {
		fset.Usage()
		return nil, ErrHelpRequested
	}

	if memoryMiB < minMemoryMiB {
		memoryMiB = minMemoryMiB
	}

	rest := fset.Args()
	if len(rest) < 1 {
		return nil, ErrNoBootImage
	}

	return &Config{
		BootImagePath:    rest[0],
		Fs:               fs,
		MemoryBytes:      uint32(memoryMiB) * 1024 * 1024,
		Breakpoints:      breakpoints,
		BreakOnInterrupt: breakOnInterrupt,
		BreakOnIRET:      breakOnIRET,
		Trap:             trap,
		DebugVideo:       debugVideo,
		SingleStep:       singleStep,
		NoUI:             noUI,
		NoColors:         noColors,
	}, nil
}

// LoadBootImage reads the full contents of the configured boot image
// through the Config's afero.Fs.
func (c *Config) LoadBootImage() ([]byte, error) {
	f, err := c.Fs.Open(c.BootImagePath)
	if err != nil {
		return nil, fmt.Errorf("config: open boot image: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("config: stat boot image: %w", err)
	}

	buf := make([]byte, info.Size())
	if _, err := f.Read(buf); err != nil {
		return nil, fmt.Errorf("config: read boot image: %w", err)
	}
	return buf, nil
}
