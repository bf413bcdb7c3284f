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

package debugger

import (
	"bytes"
	"sync"
)

// stream is an append-only, mutex-guarded byte buffer. The BIOS interrupt
// handlers append to it from the emulation worker; the UI reads a
// snapshot of it from its own goroutine.
type stream struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *stream) WriteByte(b byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.WriteByte(b)
}

func (s *stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

// Bytes returns a copy of the stream's accumulated content.
func (s *stream) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := make([]byte, s.buf.Len())
	copy(b, s.buf.Bytes())
	return b
}
