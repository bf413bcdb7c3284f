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

import "sync"

// pauseBarrier is a single-slot rendezvous between the emulation worker
// and the UI goroutine. At most one pause is armed at a time; prime opens
// the slot and block waits on it until resumeWith delivers a keycode.
type pauseBarrier struct {
	mu      sync.Mutex
	waiting chan struct{}
	resume  chan byte
}

func newPauseBarrier() *pauseBarrier {
	return &pauseBarrier{}
}

// prime opens the rendezvous slot. Once prime returns, resumeWith can
// successfully deliver a key; it is split from block so a caller can run
// its "pause entered" notification after the slot exists but before it
// blocks waiting on it (a notification that itself resumes synchronously,
// as Standard mode's prompt-and-read does, would otherwise race arm).
func (b *pauseBarrier) prime() {
	b.mu.Lock()
	b.waiting = make(chan struct{})
	b.resume = make(chan byte, 1)
	b.mu.Unlock()
}

// block waits for resumeWith and returns the delivered keycode, then
// closes the rendezvous slot.
func (b *pauseBarrier) block() byte {
	b.mu.Lock()
	resume := b.resume
	b.mu.Unlock()

	key := <-resume

	b.mu.Lock()
	b.waiting, b.resume = nil, nil
	b.mu.Unlock()

	return key
}

// armed reports whether the rendezvous slot is open: true from prime until
// block has received its key and closed the slot.
func (b *pauseBarrier) armed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.waiting != nil
}

// resumeWith delivers key to the blocked worker, if one is waiting. A no-op
// otherwise.
func (b *pauseBarrier) resumeWith(key byte) {
	b.mu.Lock()
	resume := b.resume
	b.mu.Unlock()

	if resume != nil {
		select {
		case resume <- key:
		default:
		}
	}
}
