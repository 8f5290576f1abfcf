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

package linkstate

import (
	"sync"
	"sync/atomic"
)

// State is a read-write wrapper around a value of comparable type T, with
// compare-and-set, exchange, change callbacks, and condition-variable style
// waiting for a target value. Used for the per-session LinkState, where
// callers need to block until a terminal state is reached (e.g. tests
// waiting on Scenario D's "close callback fires within 2s").
type State[T comparable] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	value    T
	onChange []func(old, new T)
}

func NewState[T comparable](initial T) *State[T] {
	s := &State[T]{value: initial}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *State[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set unconditionally assigns v, invokes any registered callbacks if the
// value actually changed, and wakes any Wait goroutines.
func (s *State[T]) Set(v T) {
	s.mu.Lock()
	old := s.value
	changed := old != v
	s.value = v
	cbs := s.onChange
	s.mu.Unlock()

	if changed {
		s.cond.Broadcast()
		for _, cb := range cbs {
			cb(old, v)
		}
	}
}

// CompareAndSet swaps to next only if the current value equals old, and
// reports whether the swap happened.
func (s *State[T]) CompareAndSet(old, next T) bool {
	s.mu.Lock()
	if s.value != old {
		s.mu.Unlock()
		return false
	}
	s.value = next
	cbs := s.onChange
	s.mu.Unlock()

	s.cond.Broadcast()
	for _, cb := range cbs {
		cb(old, next)
	}
	return true
}

// Exchange assigns next and returns the previous value.
func (s *State[T]) Exchange(next T) T {
	s.mu.Lock()
	old := s.value
	s.value = next
	cbs := s.onChange
	s.mu.Unlock()

	if old != next {
		s.cond.Broadcast()
		for _, cb := range cbs {
			cb(old, next)
		}
	}
	return old
}

// OnChange registers a callback invoked (synchronously, from within Set /
// CompareAndSet / Exchange) whenever the value changes.
func (s *State[T]) OnChange(fn func(old, new T)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// WaitFor blocks until the value equals target.
func (s *State[T]) WaitFor(target T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.value != target {
		s.cond.Wait()
	}
}

// Atomic is a lighter-weight wrapper with no callbacks or condition
// variable, backed by atomic.Value — the Go analogue of AtomicState<T>.
type Atomic[T any] struct {
	v atomic.Value
}

func NewAtomic[T any](initial T) *Atomic[T] {
	a := &Atomic[T]{}
	a.v.Store(box[T]{val: initial})
	return a
}

type box[T any] struct{ val T }

func (a *Atomic[T]) Load() T {
	return a.v.Load().(box[T]).val
}

func (a *Atomic[T]) Store(v T) {
	a.v.Store(box[T]{val: v})
}

// Counter is a monotonic-capable atomic int64 counter.
type Counter struct {
	v int64
}

func (c *Counter) Add(delta int64) int64      { return atomic.AddInt64(&c.v, delta) }
func (c *Counter) Increment() int64           { return c.Add(1) }
func (c *Counter) Decrement() int64           { return c.Add(-1) }
func (c *Counter) Load() int64                { return atomic.LoadInt64(&c.v) }
func (c *Counter) Reset()                     { atomic.StoreInt64(&c.v, 0) }
func (c *Counter) CompareAndSwap(old, n int64) bool {
	return atomic.CompareAndSwapInt64(&c.v, old, n)
}
func (c *Counter) Exchange(n int64) int64 {
	return atomic.SwapInt64(&c.v, n)
}

// Flag is a mutex-guarded bool with condition-variable style waiting, used
// for "alive"/"closing" latches that must be both readable and
// blockingly-waitable.
type Flag struct {
	mu    sync.Mutex
	cond  *sync.Cond
	value bool
	once  sync.Once
}

func (f *Flag) init() {
	f.once.Do(func() { f.cond = sync.NewCond(&f.mu) })
}

// TestAndSet sets the flag to true and returns whether it was already true.
func (f *Flag) TestAndSet() bool {
	f.init()
	f.mu.Lock()
	defer f.mu.Unlock()
	old := f.value
	f.value = true
	if !old {
		f.cond.Broadcast()
	}
	return old
}

func (f *Flag) Set(v bool) {
	f.init()
	f.mu.Lock()
	f.value = v
	f.mu.Unlock()
	f.cond.Broadcast()
}

func (f *Flag) Get() bool {
	f.init()
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

func (f *Flag) WaitForTrue() {
	f.init()
	f.mu.Lock()
	defer f.mu.Unlock()
	for !f.value {
		f.cond.Wait()
	}
}

func (f *Flag) WaitForFalse() {
	f.init()
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.value {
		f.cond.Wait()
	}
}
