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

package config

import (
	"testing"

	"github.com/spf13/afero"
)

func memFsWithImage(t *testing.T, path string, data []byte) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return fs
}

func TestParseDefaults(t *testing.T) {
	fs := memFsWithImage(t, "boot.img", []byte{0xF4})

	cfg, err := Parse([]string{"boot.img"}, fs)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.MemoryBytes != defaultMemoryMiB*1024*1024 {
		t.Fatalf("MemoryBytes = %d, want default", cfg.MemoryBytes)
	}
	if cfg.NoUI || cfg.SingleStep || cfg.Trap {
		t.Fatal("expected all boolean flags false by default")
	}
}

func TestParseMemoryFloor(t *testing.T) {
	fs := memFsWithImage(t, "boot.img", []byte{0xF4})

	cfg, err := Parse([]string{"-m", "1", "boot.img"}, fs)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.MemoryBytes != minMemoryMiB*1024*1024 {
		t.Fatalf("MemoryBytes = %d, want the %d MiB floor", cfg.MemoryBytes, minMemoryMiB)
	}
}

func TestParseBreakpointsRepeat(t *testing.T) {
	fs := memFsWithImage(t, "boot.img", []byte{0xF4})

	cfg, err := Parse([]string{"-b", "7c03", "--break", "7c10", "boot.img"}, fs)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfg.Breakpoints) != 2 || cfg.Breakpoints[0] != 0x7C03 || cfg.Breakpoints[1] != 0x7C10 {
		t.Fatalf("Breakpoints = %v, want [0x7c03 0x7c10]", cfg.Breakpoints)
	}
}

func TestParseMissingBootImage(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := Parse([]string{"--trap"}, fs)
	if err != ErrNoBootImage {
		t.Fatalf("got %v, want ErrNoBootImage", err)
	}
}

func TestParseHelp(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := Parse([]string{"-h"}, fs)
	if err != ErrHelpRequested {
		t.Fatalf("got %v, want ErrHelpRequested", err)
	}
}

func TestLoadBootImage(t *testing.T) {
	image := []byte{0xF4, 0x90, 0x90}
	fs := memFsWithImage(t, "boot.img", image)

	cfg, err := Parse([]string{"boot.img"}, fs)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	got, err := cfg.LoadBootImage()
	if err != nil {
		t.Fatalf("LoadBootImage: %v", err)
	}
	if string(got) != string(image) {
		t.Fatalf("got %v, want %v", got, image)
	}
}
