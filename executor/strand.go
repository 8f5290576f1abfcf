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

// Package executor is the concurrency substrate every session and transport
// runs on: strands that serialize task execution for one logical owner, a
// shared runtime that owns the strand pool and bounds its concurrency, and
// timers posted through a strand on expiry.
package executor

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// ErrCanceled is delivered to a timer callback instead of firing it, when the
// timer is canceled before expiry.
type ErrCanceled struct{}

func (ErrCanceled) Error() string { return "executor: timer canceled" }

type strandKey struct{}

// Strand serializes task execution for one logical owner: exactly one
// worker goroutine ever drains its queue, so tasks posted to the same strand
// never run concurrently with each other.
type Strand struct {
	id     int64
	queue  chan func()
	done   chan struct{}
	sem    *semaphore.Weighted
	ctx    context.Context
}

func newStrand(id int64, queueLen int, sem *semaphore.Weighted) *Strand {
	s := &Strand{id: id, queue: make(chan func(), queueLen), done: make(chan struct{}), sem: sem}
	s.ctx = context.WithValue(context.Background(), strandKey{}, id)
	go s.run()
	return s
}

func (s *Strand) run() {
	defer close(s.done)
	for fn := range s.queue {
		if s.sem != nil {
			_ = s.sem.Acquire(context.Background(), 1)
		}
		runGuarded(fn)
		if s.sem != nil {
			s.sem.Release(1)
		}
	}
}

// runGuarded recovers a panicking task so the strand's single worker
// goroutine survives it; without this, one panicking task would kill the
// goroutine and every later Post on the strand would block forever with
// nothing left to drain the queue. This is a last-resort backstop, not a
// policy: callers that need to stop-or-continue on a panicking callback
// (session.Session, the UDP/serial channels) recover and decide that
// themselves before the closure ever reaches the strand.
func runGuarded(fn func()) {
	defer func() { recover() }()
	fn()
}

// Post enqueues fn for execution on the strand's worker goroutine. It blocks
// if the strand's queue is full until space frees up; fn must not itself
// block indefinitely.
func (s *Strand) Post(fn func()) {
	s.queue <- fn
}

// Dispatch runs fn inline when called from within the strand's own worker
// goroutine (detected via the strand id carried on ctx), otherwise behaves
// like Post.
func (s *Strand) Dispatch(ctx context.Context, fn func()) {
	if id, ok := ctx.Value(strandKey{}).(int64); ok && id == s.id {
		fn()
		return
	}
	s.Post(fn)
}

// Context returns a context carrying this strand's identity, for passing to
// Dispatch from code running on the strand's own worker goroutine.
func (s *Strand) Context() context.Context { return s.ctx }

func (s *Strand) stop() {
	close(s.queue)
}
