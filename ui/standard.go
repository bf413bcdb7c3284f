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

import (
	"bufio"
	"fmt"
	"io"

	"github.com/fengjixuchui/unicorn-bios/debugger"
	"github.com/fengjixuchui/unicorn-bios/engine"
)

// StandardController drives Standard mode: BIOS output/debug streams are
// drained to stdout/stderr at each pause and when the run ends, and a pause
// prints a prompt and blocks on a line read, the Go idiom for the
// original's bare getchar().
type StandardController struct {
	eng  *engine.Facade
	core *debugger.Core

	stdout io.Writer
	stderr io.Writer
	stdin  *bufio.Reader

	outputOffset int
	debugOffset  int
}

// NewStandardController builds a Standard-mode driver bound to eng/core,
// writing to out/errOut and reading resume keypresses from in.
func NewStandardController(eng *engine.Facade, core *debugger.Core, in io.Reader, out, errOut io.Writer) *StandardController {
	s := &StandardController{
		eng:    eng,
		core:   core,
		stdout: out,
		stderr: errOut,
		stdin:  bufio.NewReader(in),
	}
	core.OnPause(func(status string) {
		if status == "paused" {
			s.drainStreams()
			fmt.Fprintln(s.stdout, "Emulation paused - press [ENTER] or [SPACE]")
			s.waitForResume()
		}
	})
	return s
}

// Run starts the engine at entry and blocks until it stops, then drains
// whatever the output/debug streams gained since the last pause to
// stdout/stderr.
func (s *StandardController) Run(entry uint64) error {
	if !s.eng.Start(entry) {
		return fmt.Errorf("ui: engine already running")
	}
	err := s.eng.WaitUntilFinished()
	s.drainStreams()
	return err
}

func (s *StandardController) drainStreams() {
	out := s.core.Output.Bytes()
	if s.outputOffset < len(out) {
		s.stdout.Write(out[s.outputOffset:])
		s.outputOffset = len(out)
	}

	dbg := s.core.Debug.Bytes()
	if s.debugOffset < len(dbg) {
		s.stderr.Write(dbg[s.debugOffset:])
		s.debugOffset = len(dbg)
	}
}

// waitForResume reads one line from stdin and forwards the resume key it
// implies (Enter or Space) to the pause barrier.
func (s *StandardController) waitForResume() {
	line, _ := s.stdin.ReadString('\n')
	key := byte('\r')
	if len(line) > 0 && line[0] == ' ' {
		key = ' '
	}
	s.core.Resume(key)
}
