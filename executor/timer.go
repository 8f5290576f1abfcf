/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package executor

import (
	"sync"
	"time"
)

// Timer posts a callback to a strand on expiry, or ErrCanceled if canceled
// before firing.
type Timer struct {
	mu       sync.Mutex
	timer    *time.Timer
	strand   *Strand
	cb       func(err error)
	resolved bool
}

// AfterFunc schedules cb(nil) to run on strand after d, unless the returned
// Timer is stopped first, in which case cb(ErrCanceled{}) runs instead.
func (s *Strand) AfterFunc(d time.Duration, cb func(err error)) *Timer {
	t := &Timer{strand: s, cb: cb}
	t.timer = time.AfterFunc(d, func() {
		t.mu.Lock()
		if t.resolved {
			t.mu.Unlock()
			return
		}
		t.resolved = true
		t.mu.Unlock()
		s.Post(func() { cb(nil) })
	})
	return t
}

// Stop cancels the timer. If it has not yet fired, cb runs once with
// ErrCanceled instead of nil. Safe to call more than once; only the first
// call has an effect.
func (t *Timer) Stop() bool {
	t.mu.Lock()
	if t.resolved {
		t.mu.Unlock()
		return false
	}
	t.resolved = true
	t.mu.Unlock()
	stopped := t.timer.Stop()
	t.strand.Post(func() { t.cb(ErrCanceled{}) })
	return stopped
}
