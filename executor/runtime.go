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
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const defaultStopTimeout = 100 * time.Millisecond

// defaultQueueLen bounds how many pending tasks a strand holds before Post
// blocks the caller.
const defaultQueueLen = 256

// Runtime owns a pool of strands and bounds how many of their tasks may run
// concurrently. A process-wide Shared() instance is lazily started and
// refcounted; transports that want isolation can construct their own with New.
type Runtime struct {
	mu      sync.Mutex
	strands []*Strand
	nextID  int64
	sem     *semaphore.Weighted
	started bool
}

// New builds a Runtime whose strand workers are bounded to at most
// maxConcurrent running simultaneously. maxConcurrent <= 0 means unbounded.
func New(maxConcurrent int64) *Runtime {
	r := &Runtime{}
	if maxConcurrent > 0 {
		r.sem = semaphore.NewWeighted(maxConcurrent)
	}
	return r
}

var (
	sharedMu   sync.Mutex
	sharedInst *Runtime
	sharedRefs int
)

// Shared returns the process-wide executor, starting it on first use and
// incrementing its reference count. Pair every Shared() call with a Release().
func Shared() *Runtime {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedInst == nil {
		sharedInst = New(0)
		sharedInst.Start()
	}
	sharedRefs++
	return sharedInst
}

// Release decrements the shared executor's reference count, stopping it once
// the count reaches zero.
func Release() {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedInst == nil {
		return
	}
	sharedRefs--
	if sharedRefs <= 0 {
		ctx, cancel := context.WithTimeout(context.Background(), defaultStopTimeout)
		_ = sharedInst.Stop(ctx)
		cancel()
		sharedInst = nil
		sharedRefs = 0
	}
}

// ResetForTest drops the shared executor outright, regardless of refcount.
func ResetForTest() {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedInst != nil {
		ctx, cancel := context.WithTimeout(context.Background(), defaultStopTimeout)
		_ = sharedInst.Stop(ctx)
		cancel()
	}
	sharedInst = nil
	sharedRefs = 0
}

// Start marks the runtime active. It does not recreate the strands that
// Stop discarded: after Stop, only strands made by a later NewStrand run,
// and no task posted before Stop is carried over to them.
func (r *Runtime) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = true
}

// NewStrand creates a new strand owned by this runtime.
func (r *Runtime) NewStrand() *Strand {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	s := newStrand(r.nextID, defaultQueueLen, r.sem)
	r.strands = append(r.strands, s)
	return s
}

// Stop closes every strand's input channel and waits, bounded by ctx, for
// their worker goroutines to drain and exit. Strands that do not finish in
// time are abandoned — their goroutines still terminate once their backlog
// drains, Stop simply stops waiting on them.
func (r *Runtime) Stop(ctx context.Context) error {
	r.mu.Lock()
	strands := r.strands
	r.strands = nil
	r.started = false
	r.mu.Unlock()

	for _, s := range strands {
		s.stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range strands {
		s := s
		g.Go(func() error {
			select {
			case <-s.done:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	return g.Wait()
}
