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

// Package session is the per-connection I/O state machine every transport
// hands a live handle to: one instance per endpoint, a single strand
// serializing all handle access, a bounded FIFO write queue with
// hysteresis-based backpressure signaling, and an idempotent close protocol.
package session

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/jwsung91/unilink-go/errctx"
	"github.com/jwsung91/unilink-go/executor"
	"github.com/jwsung91/unilink-go/linkstate"
	"github.com/jwsung91/unilink-go/logging"
	"github.com/jwsung91/unilink-go/mempool"
)

const (
	maxBufferSize     = 64 * 1024 * 1024
	defaultBackpressure = 1024 * 1024
	readBufferSize    = 64 * 1024
)

// ErrNotAlive is returned by the write entry points once the session is
// closing, closed, or in Error.
var ErrNotAlive = errors.New("session: not alive")

// ErrTooLarge is returned when a single write exceeds the 64 MiB cap.
var ErrTooLarge = errors.New("session: write exceeds maximum buffer size")

// Handle is the byte-stream endpoint a Session serializes access to.
type Handle interface {
	io.ReadWriteCloser
}

// Callbacks are the three user-visible hooks a Session fires. All three are
// invoked on the session's strand; a nil hook is simply skipped.
type Callbacks struct {
	OnBytes        func(p []byte)
	OnBackpressure func(queuedBytes int64)
	OnClose        func(err error)

	// StopOnCallbackException controls what happens when one of the hooks
	// above panics: true transitions the session to Error and closes it;
	// false logs the panic (via Logger, if set) and keeps the session
	// running.
	StopOnCallbackException bool
	Logger                  logging.Logger
}

// Session owns exactly one handle and serializes everything through a
// single strand.
type Session struct {
	handle Handle
	strand *executor.Strand

	state *linkstate.State[linkstate.LinkState]

	queue       []writeEntry
	queuedBytes int64
	writing     bool
	bpActive    bool

	bpHigh, bpLow, hardLimit int64

	alive       atomic.Bool
	closing     atomic.Bool
	cleanupDone atomic.Bool

	cb      Callbacks
	usePool bool
}

// New builds a Session over handle. backpressureThreshold is the
// configured B; high = B, low = max(1, B/2), hard limit =
// clamp(max(4B, 1 MiB), 64 MiB). usePool controls whether WriteCopy draws
// its backing storage from the shared memory pool.
func New(handle Handle, strand *executor.Strand, backpressureThreshold int64, usePool bool, cb Callbacks) *Session {
	if backpressureThreshold <= 0 {
		backpressureThreshold = defaultBackpressure
	}
	high := backpressureThreshold
	low := high
	if high > 1 {
		low = high / 2
	}
	if low == 0 {
		low = 1
	}
	hard := high * 4
	if hard < defaultBackpressure {
		hard = defaultBackpressure
	}
	if hard > maxBufferSize {
		hard = maxBufferSize
	}

	s := &Session{
		handle:  handle,
		strand:  strand,
		state:   linkstate.NewState(linkstate.Idle),
		bpHigh:  high,
		bpLow:   low,
		hardLimit: hard,
		cb:      cb,
		usePool: usePool,
	}
	return s
}

// runCallback invokes fn, recovering a panic raised by a user hook. On
// recovery it always logs; if cb.StopOnCallbackException is set it also
// closes the session with an error describing the panic. Must be called
// from the strand.
func (s *Session) runCallback(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if s.cb.Logger != nil {
				s.cb.Logger.Error("session callback panicked", r, "callback", name)
			}
			if s.cb.StopOnCallbackException {
				s.Close(fmt.Errorf("session: callback %s panicked: %v", name, r))
			}
		}
	}()
	fn()
}

// State returns the session's current state.
func (s *Session) State() linkstate.LinkState { return s.state.Get() }

// OnStateChange registers a callback fired on every state transition.
func (s *Session) OnStateChange(cb func(old, new_ linkstate.LinkState)) {
	s.state.OnChange(cb)
}

// IsAlive reports whether the session is accepting writes.
func (s *Session) IsAlive() bool { return s.alive.Load() && !s.closing.Load() }

// Start transitions to Connected and begins the read loop. Safe to call at
// most once; later calls are no-ops.
func (s *Session) Start() {
	if s.alive.Swap(true) {
		return
	}
	s.state.Set(linkstate.Connected)
	go s.readLoop()
}

func (s *Session) readLoop() {
	buf := make([]byte, readBufferSize)
	for {
		n, err := s.handle.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			done := make(chan struct{})
			s.strand.Post(func() {
				defer close(done)
				if s.closing.Load() || !s.alive.Load() {
					return
				}
				if s.cb.OnBytes != nil {
					s.runCallback("OnBytes", func() { s.cb.OnBytes(chunk) })
				}
			})
			<-done
		}
		if err != nil {
			if s.closing.Load() || !s.alive.Load() {
				return
			}
			if err == io.EOF {
				s.Close(nil)
			} else {
				s.Close(err)
			}
			return
		}
	}
}

// WriteCopy queues a copy of p. p may be reused by the caller immediately
// after this call returns.
func (s *Session) WriteCopy(p []byte) error {
	if err := s.gate(len(p)); err != nil {
		return err
	}
	if s.usePool {
		buf, err := mempool.Global().Acquire(len(p))
		if err == nil {
			copy(buf.Bytes(), p)
			s.enqueue(pooledEntry{buf: buf}, int64(len(p)))
			return nil
		}
	}
	owned := append([]byte(nil), p...)
	s.enqueue(ownedEntry{data: owned}, int64(len(owned)))
	return nil
}

// WriteMove queues p directly; the caller must not touch p again.
func (s *Session) WriteMove(p []byte) error {
	if err := s.gate(len(p)); err != nil {
		return err
	}
	s.enqueue(ownedEntry{data: p}, int64(len(p)))
	return nil
}

// WriteShared queues an immutable, already-shared buffer without copying —
// the zero-copy path for broadcast fan-out across many sessions.
func (s *Session) WriteShared(shared *SharedBytes) error {
	if shared == nil {
		return errors.New("session: nil shared buffer")
	}
	if err := s.gate(len(shared.Bytes())); err != nil {
		return err
	}
	s.enqueue(sharedEntry{shared: shared}, int64(len(shared.Bytes())))
	return nil
}

func (s *Session) gate(size int) error {
	if !s.IsAlive() {
		return ErrNotAlive
	}
	if size > maxBufferSize {
		return ErrTooLarge
	}
	return nil
}

func (s *Session) enqueue(entry writeEntry, size int64) {
	s.strand.Post(func() {
		if !s.IsAlive() {
			entry.free()
			return
		}
		if s.queuedBytes+size > s.hardLimit {
			entry.free()
			s.failOverflow()
			return
		}
		s.queue = append(s.queue, entry)
		s.queuedBytes += size
		s.reportBackpressure()
		if !s.writing {
			s.doWrite()
		}
	})
}

func (s *Session) failOverflow() {
	s.state.Set(linkstate.Error)
	for _, e := range s.queue {
		e.free()
	}
	s.queue = nil
	s.queuedBytes = 0
	s.reportBackpressure()
	s.Close(errctx.ErrorInfo{
		Level: errctx.Error, Category: errctx.CategoryCommunication,
		Component: "session", Operation: "write", Message: "queue limit exceeded",
	})
}

func (s *Session) doWrite() {
	if len(s.queue) == 0 {
		s.writing = false
		return
	}
	s.writing = true
	entry := s.queue[0]
	s.queue = s.queue[1:]
	data := entry.bytes()

	go func() {
		_, err := s.handle.Write(data)
		entry.free()
		s.strand.Post(func() {
			n := int64(len(data))
			if s.queuedBytes >= n {
				s.queuedBytes -= n
			} else {
				s.queuedBytes = 0
			}
			s.reportBackpressure()
			if err != nil {
				s.Close(err)
				return
			}
			s.doWrite()
		})
	}()
}

// reportBackpressure fires on_backpressure exactly once on each hysteresis
// edge crossing: once when queuedBytes first reaches bpHigh, again when it
// next drops to or below bpLow. Must be called from the strand.
func (s *Session) reportBackpressure() {
	if s.closing.Load() || !s.alive.Load() || s.cb.OnBackpressure == nil {
		return
	}
	if !s.bpActive && s.queuedBytes >= s.bpHigh {
		s.bpActive = true
		queued := s.queuedBytes
		s.runCallback("OnBackpressure", func() { s.cb.OnBackpressure(queued) })
	} else if s.bpActive && s.queuedBytes <= s.bpLow {
		s.bpActive = false
		queued := s.queuedBytes
		s.runCallback("OnBackpressure", func() { s.cb.OnBackpressure(queued) })
	}
}

// Close runs the idempotent close protocol: only the first call has any
// effect. err is nil for a graceful peer-initiated close.
func (s *Session) Close(err error) {
	if s.cleanupDone.Swap(true) {
		return
	}
	s.alive.Store(false)
	s.closing.Store(true)

	closeCB := s.cb.OnClose
	s.cb.OnBytes = nil
	s.cb.OnBackpressure = nil

	_ = s.handle.Close()

	s.strand.Post(func() {
		for _, e := range s.queue {
			e.free()
		}
		s.queue = nil
		s.queuedBytes = 0

		if err != nil {
			s.state.Set(linkstate.Error)
		} else {
			s.state.Set(linkstate.Closed)
		}

		if closeCB != nil {
			s.runCallback("OnClose", func() { closeCB(err) })
		}
	})
}
