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

import "github.com/gdamore/tcell"

// Event is the driver-agnostic input the Controller's key loop consumes.
type Event struct {
	Key       byte
	Resize    bool
	Interrupt bool
}

// TerminalDriver is the narrow capability surface Controller needs from
// a terminal backend, kept separate from gdamore/tcell's own API so
// tests can supply a fake without a real terminal.
type TerminalDriver interface {
	Init() error
	Fini()
	Size() (cols, rows int)
	PollEvent() Event
	Clear()
	DrawText(x, y int, style Style, s string)
	Show()
}

// Style is a minimal foreground/bold pair; NoColors collapses every
// Style to the terminal's default.
type Style struct {
	Foreground tcell.Color
	Bold       bool
}

var (
	StyleNormal  = Style{Foreground: tcell.ColorWhite}
	StyleHeading = Style{Foreground: tcell.ColorYellow, Bold: true}
	StyleWarning = Style{Foreground: tcell.ColorRed, Bold: true}
)

// tcellDriver is the production TerminalDriver, grounded on the
// teacher's platform.tcellPlatform start/init/fini sequence and
// keyboard/tcell.go's key-event translation.
type tcellDriver struct {
	screen   tcell.Screen
	noColors bool
}

func newTcellDriver(noColors bool) *tcellDriver {
	return &tcellDriver{noColors: noColors}
}

// NewTerminalDriver returns the production, gdamore/tcell-backed
// TerminalDriver.
func NewTerminalDriver(noColors bool) TerminalDriver {
	return newTcellDriver(noColors)
}

func (d *tcellDriver) Init() error {
	tcell.SetEncodingFallback(tcell.EncodingFallbackASCII)

	s, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := s.Init(); err != nil {
		return err
	}

	s.ShowCursor(0, 0)
	s.DisableMouse()
	s.Clear()

	d.screen = s
	return nil
}

func (d *tcellDriver) Fini() {
	if d.screen != nil {
		d.screen.Fini()
	}
}

func (d *tcellDriver) Size() (int, int) {
	return d.screen.Size()
}

func (d *tcellDriver) Clear() {
	d.screen.Clear()
}

func (d *tcellDriver) Show() {
	d.screen.Show()
}

func (d *tcellDriver) DrawText(x, y int, style Style, s string) {
	st := tcell.StyleDefault
	if !d.noColors {
		st = st.Foreground(style.Foreground).Bold(style.Bold)
	}
	for i, r := range s {
		d.screen.SetContent(x+i, y, r, nil, st)
	}
}

// PollEvent blocks until a key, resize, or interrupt event arrives and
// translates it the way keyboard/tcell.go's createEventFromTCELL does.
func (d *tcellDriver) PollEvent() Event {
	for {
		switch ev := d.screen.PollEvent().(type) {
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyCtrlC {
				return Event{Interrupt: true}
			}
			if k := translateKey(ev); k != 0 {
				return Event{Key: k}
			}
		case *tcell.EventResize:
			return Event{Resize: true}
		case nil:
			return Event{Interrupt: true}
		}
	}
}

func translateKey(ev *tcell.EventKey) byte {
	switch ev.Key() {
	case tcell.KeyEnter:
		return '\r'
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return 127
	case tcell.KeyEscape:
		return 27
	case tcell.KeyRune:
		r := ev.Rune()
		if r >= 0 && r < 256 {
			return byte(r)
		}
	}
	return 0
}
