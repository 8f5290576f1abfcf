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

// Package serial is the serial-port transport frontend: open and configure a
// device, reopen on a configuration or I/O error when asked to, and otherwise
// follow the same write-queue and backpressure invariants as the other
// transports.
package serial

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jwsung91/unilink-go/executor"
	"github.com/jwsung91/unilink-go/linkstate"
	"github.com/jwsung91/unilink-go/logging"
	"github.com/tarm/serial"
)

const (
	maxBufferSize        = 64 * 1024 * 1024
	defaultBackpressure  = 1024 * 1024
	defaultReadChunk     = 4096
)

// Parity mirrors the three parity modes the original device config exposes.
type Parity int

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

// Flow mirrors the flow-control modes the original device config exposes.
// tarm/serial has no flow-control knob, so Software/Hardware are recorded
// but not applied; kept for config-shape parity with the other transports.
type Flow int

const (
	FlowNone Flow = iota
	FlowSoftware
	FlowHardware
)

// Config is the serial channel's recognized configuration.
type Config struct {
	Device                string
	BaudRate              int
	CharSize              byte // data bits, 5-8; 0 defaults to 8
	StopBits              int  // 1 or 2; 0 defaults to 1
	Parity                Parity
	Flow                  Flow
	ReopenOnError         bool
	RetryInterval         time.Duration
	ReadChunk             int
	BackpressureThreshold int64
	// StopOnCallbackException transitions the channel to Error and closes
	// the device when OnBytes/OnBackpressure panics; otherwise the panic is
	// logged through Logger and the read loop keeps running.
	StopOnCallbackException bool
	Logger                  logging.Logger
}

// Callbacks are the user-visible hooks a Channel fires.
type Callbacks struct {
	OnBytes        func(p []byte)
	OnBackpressure func(queuedBytes int64)
}

type writeReq struct {
	data []byte
}

// Channel is a serial-port channel.
type Channel struct {
	cfg Config
	cb  Callbacks

	rt     *executor.Runtime
	strand *executor.Strand

	state *linkstate.State[linkstate.LinkState]

	mu   sync.Mutex
	port *serial.Port

	stopping atomic.Bool
	opened   atomic.Bool

	queue       []writeReq
	queuedBytes int64
	writing     bool
	bpActive    bool
	bpHigh, bpLow, bpLimit int64

	retryTimer *executor.Timer
}

// New constructs a Channel.
func New(cfg Config, cb Callbacks) *Channel {
	if cfg.ReadChunk <= 0 {
		cfg.ReadChunk = defaultReadChunk
	}
	high := cfg.BackpressureThreshold
	if high < defaultBackpressure {
		high = defaultBackpressure
	}
	if high > maxBufferSize {
		high = maxBufferSize
	}
	low := high
	if high > 1 {
		low = high / 2
	}
	if low == 0 {
		low = 1
	}
	limit := high * 4
	if limit < defaultBackpressure {
		limit = defaultBackpressure
	}
	if limit > maxBufferSize {
		limit = maxBufferSize
	}
	if limit < high {
		limit = high
	}

	rt := executor.New(0)
	rt.Start()
	return &Channel{
		cfg: cfg, cb: cb, rt: rt, strand: rt.NewStrand(),
		state:  linkstate.NewState(linkstate.Idle),
		bpHigh: high, bpLow: low, bpLimit: limit,
	}
}

func (c *Channel) State() linkstate.LinkState { return c.state.Get() }
func (c *Channel) IsConnected() bool          { return c.opened.Load() }

// OnStateChange registers a callback for every state transition.
func (c *Channel) OnStateChange(fn func(old, new_ linkstate.LinkState)) { c.state.OnChange(fn) }

func (c *Channel) setState(target linkstate.LinkState) {
	if c.state.Get().IsTerminal() && target.IsTerminal() {
		return
	}
	c.state.Set(target)
}

// runCallback invokes fn, recovering a panic raised by OnBytes/OnBackpressure.
// On recovery it always logs; if cfg.StopOnCallbackException is set it also
// closes the device and transitions to Error, which unwinds the read loop
// on its next iteration (it exits once c.port reads back nil).
func (c *Channel) runCallback(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if c.cfg.Logger != nil {
				c.cfg.Logger.Error("serial callback panicked", r, "callback", name)
			}
			if c.cfg.StopOnCallbackException {
				c.opened.Store(false)
				c.closePort()
				c.setState(linkstate.Error)
			}
		}
	}()
	fn()
}

func parity(p Parity) serial.Parity {
	switch p {
	case ParityEven:
		return serial.ParityEven
	case ParityOdd:
		return serial.ParityOdd
	default:
		return serial.ParityNone
	}
}

func stopBits(n int) serial.StopBits {
	if n == 2 {
		return serial.Stop2
	}
	return serial.Stop1
}

// Start opens and configures the device in the background. Returns
// immediately; progress is reported through state changes.
func (c *Channel) Start(ctx context.Context) error {
	c.stopping.Store(false)
	c.setState(linkstate.Connecting)
	go c.openAndConfigure()
	return nil
}

func (c *Channel) openAndConfigure() {
	if c.stopping.Load() {
		return
	}

	size := c.cfg.CharSize
	if size == 0 {
		size = 8
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:     c.cfg.Device,
		Baud:     c.cfg.BaudRate,
		Size:     size,
		Parity:   parity(c.cfg.Parity),
		StopBits: stopBits(c.cfg.StopBits),
	})
	if err != nil {
		c.handleOpenError(err)
		return
	}

	c.mu.Lock()
	c.port = port
	c.mu.Unlock()

	go c.readLoop()

	c.opened.Store(true)
	c.setState(linkstate.Connected)

	c.strand.Post(func() {
		if !c.writing {
			c.doWrite()
		}
	})
}

func (c *Channel) handleOpenError(err error) {
	if c.stopping.Load() {
		return
	}
	if c.cfg.ReopenOnError {
		c.setState(linkstate.Connecting)
		c.scheduleRetry()
		return
	}
	c.setState(linkstate.Error)
}

func (c *Channel) scheduleRetry() {
	interval := c.cfg.RetryInterval
	if interval <= 0 {
		interval = time.Second
	}
	c.strand.Post(func() {
		if c.retryTimer != nil {
			c.retryTimer.Stop()
		}
		c.retryTimer = c.strand.AfterFunc(interval, func(err error) {
			if err != nil || c.stopping.Load() {
				return
			}
			go c.openAndConfigure()
		})
	})
}

func (c *Channel) readLoop() {
	buf := make([]byte, c.cfg.ReadChunk)
	for {
		c.mu.Lock()
		port := c.port
		c.mu.Unlock()
		if port == nil {
			return
		}

		n, err := port.Read(buf)
		if err != nil {
			// EOF is not a real error on a serial device; keep reading.
			if errors.Is(err, io.EOF) {
				continue
			}
			c.handleIOError(err)
			return
		}

		if n > 0 && c.cb.OnBytes != nil {
			chunk := append([]byte(nil), buf[:n]...)
			c.runCallback("OnBytes", func() { c.cb.OnBytes(chunk) })
		}
	}
}

func (c *Channel) handleIOError(err error) {
	if c.state.Get() == linkstate.Error {
		return
	}
	if c.stopping.Load() {
		c.opened.Store(false)
		c.closePort()
		c.setState(linkstate.Closed)
		return
	}
	if c.cfg.ReopenOnError {
		c.opened.Store(false)
		c.closePort()
		c.setState(linkstate.Connecting)
		c.scheduleRetry()
		return
	}
	c.opened.Store(false)
	c.closePort()
	c.setState(linkstate.Error)
}

// Send queues p for write.
func (c *Channel) Send(p []byte) error {
	if c.stopping.Load() {
		return nil
	}
	state := c.state.Get()
	if state == linkstate.Closed || state == linkstate.Error {
		return nil
	}
	if len(p) > maxBufferSize {
		return nil
	}

	data := append([]byte(nil), p...)
	done := make(chan struct{})
	c.strand.Post(func() {
		defer close(done)
		if c.queuedBytes+int64(len(data)) > c.bpLimit {
			c.failOverflow()
			return
		}
		c.queue = append(c.queue, writeReq{data: data})
		c.queuedBytes += int64(len(data))
		c.reportBackpressure()
		if !c.writing && c.opened.Load() {
			c.doWrite()
		}
	})
	<-done
	return nil
}

func (c *Channel) failOverflow() {
	c.opened.Store(false)
	c.closePort()
	c.queue = nil
	c.queuedBytes = 0
	c.writing = false
	c.setState(linkstate.Error)
	c.reportBackpressure()
}

func (c *Channel) doWrite() {
	if len(c.queue) == 0 || !c.opened.Load() {
		c.writing = false
		return
	}
	c.writing = true
	req := c.queue[0]
	c.queue = c.queue[1:]

	c.mu.Lock()
	port := c.port
	c.mu.Unlock()
	if port == nil {
		c.writing = false
		return
	}

	go func() {
		_, err := port.Write(req.data)
		c.strand.Post(func() {
			n := int64(len(req.data))
			if c.queuedBytes >= n {
				c.queuedBytes -= n
			} else {
				c.queuedBytes = 0
			}
			c.reportBackpressure()
			if err != nil {
				c.writing = false
				c.handleIOError(err)
				return
			}
			c.doWrite()
		})
	}()
}

func (c *Channel) reportBackpressure() {
	if c.cb.OnBackpressure == nil {
		return
	}
	if !c.bpActive && c.queuedBytes >= c.bpHigh {
		c.bpActive = true
		queued := c.queuedBytes
		c.runCallback("OnBackpressure", func() { c.cb.OnBackpressure(queued) })
	} else if c.bpActive && c.queuedBytes <= c.bpLow {
		c.bpActive = false
		queued := c.queuedBytes
		c.runCallback("OnBackpressure", func() { c.cb.OnBackpressure(queued) })
	}
}

func (c *Channel) closePort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.port != nil {
		c.port.Close()
		c.port = nil
	}
}

// Stop cancels any pending retry, closes the device, and halts the channel.
// Idempotent.
func (c *Channel) Stop() error {
	if !c.stopping.CompareAndSwap(false, true) {
		return nil
	}

	done := make(chan struct{})
	c.strand.Post(func() {
		defer close(done)
		if c.retryTimer != nil {
			c.retryTimer.Stop()
		}
		c.opened.Store(false)
		c.closePort()
		c.queue = nil
		c.queuedBytes = 0
		c.writing = false
		c.reportBackpressure()
	})
	<-done

	c.setState(linkstate.Closed)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	return c.rt.Stop(ctx)
}
