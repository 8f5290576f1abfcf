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

// Package udp is the UDP datagram transport frontend: binds a local
// endpoint, either dials a configured remote or learns one from the first
// inbound datagram (and pins it against later senders), and enforces
// datagram-bounds and backpressure invariants on the write path.
package udp

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/jwsung91/unilink-go/executor"
	"github.com/jwsung91/unilink-go/linkstate"
	"github.com/jwsung91/unilink-go/logging"
)

const (
	maxBufferSize     = 64 * 1024 * 1024
	defaultBackpressure = 1024 * 1024
	recvBufferSize    = 65536
)

// Config is the UDP channel's recognized configuration.
type Config struct {
	LocalAddress          string // default "0.0.0.0"
	LocalPort             int
	RemoteAddress         string // optional; must be set together with RemotePort
	RemotePort            int
	BackpressureThreshold int64 // clamped to [1 MiB, 64 MiB]
	// StopOnCallbackException transitions the channel to Error and tears
	// down the socket when OnBytes/OnBackpressure panics; otherwise the
	// panic is logged through Logger and the receive loop keeps running.
	StopOnCallbackException bool
	Logger                  logging.Logger
}

// Callbacks are the user-visible hooks a Channel fires.
type Callbacks struct {
	OnBytes        func(p []byte)
	OnBackpressure func(queuedBytes int64)
}

// Channel is a UDP datagram channel.
type Channel struct {
	cfg Config
	cb  Callbacks

	conn   *net.UDPConn
	strand *executor.Strand
	rt     *executor.Runtime

	state *linkstate.State[linkstate.LinkState]

	mu     sync.Mutex
	remote *net.UDPAddr

	queue       [][]byte
	queuedBytes int64
	writing     bool
	bpActive    bool
	bpHigh, bpLow, bpLimit int64
}

// New constructs a Channel.
func New(cfg Config, cb Callbacks) *Channel {
	if cfg.LocalAddress == "" {
		cfg.LocalAddress = "0.0.0.0"
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
	c := &Channel{
		cfg: cfg, cb: cb, rt: rt, strand: rt.NewStrand(),
		state: linkstate.NewState(linkstate.Idle),
		bpHigh: high, bpLow: low, bpLimit: limit,
	}
	if cfg.RemoteAddress != "" && cfg.RemotePort != 0 {
		if addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(cfg.RemoteAddress, strconv.Itoa(cfg.RemotePort))); err == nil {
			c.remote = addr
		}
	}
	return c
}

func (c *Channel) State() linkstate.LinkState { return c.state.Get() }
func (c *Channel) IsConnected() bool          { return c.state.Get() == linkstate.Connected }

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
// transitions the channel to Error and closes the socket, which unwinds the
// receive loop on its next read.
func (c *Channel) runCallback(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if c.cfg.Logger != nil {
				c.cfg.Logger.Error("udp callback panicked", r, "callback", name)
			}
			if c.cfg.StopOnCallbackException {
				c.setState(linkstate.Error)
				if c.conn != nil {
					c.conn.Close()
				}
			}
		}
	}()
	fn()
}

// Start binds the local endpoint and, if a remote is configured, enters
// Connected immediately; otherwise enters Listening and learns the remote
// from the first inbound datagram.
func (c *Channel) Start(ctx context.Context) error {
	c.setState(linkstate.Connecting)

	local, err := net.ResolveUDPAddr("udp", net.JoinHostPort(c.cfg.LocalAddress, strconv.Itoa(c.cfg.LocalPort)))
	if err != nil {
		c.setState(linkstate.Error)
		return err
	}
	conn, err := net.ListenUDP("udp", local)
	if err != nil {
		c.setState(linkstate.Error)
		return err
	}
	c.conn = conn

	c.mu.Lock()
	hasRemote := c.remote != nil
	c.mu.Unlock()

	if hasRemote {
		c.setState(linkstate.Connected)
	} else {
		c.setState(linkstate.Listening)
	}

	go c.receiveLoop()
	return nil
}

func (c *Channel) receiveLoop() {
	buf := make([]byte, recvBufferSize)
	for {
		n, from, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			if c.state.Get() == linkstate.Closed {
				return
			}
			c.setState(linkstate.Error)
			return
		}

		// Fail-fast on truncation: a full-buffer read is treated as a
		// truncated datagram. Do not re-arm the receive loop.
		if n >= len(buf) {
			c.setState(linkstate.Error)
			return
		}

		c.mu.Lock()
		if c.remote == nil {
			c.remote = from
			c.mu.Unlock()
			c.setState(linkstate.Connected)
		} else {
			c.mu.Unlock()
		}

		if c.cb.OnBytes != nil {
			chunk := append([]byte(nil), buf[:n]...)
			c.runCallback("OnBytes", func() { c.cb.OnBytes(chunk) })
		}
	}
}

// Send queues p for delivery to the learned or configured remote. Dropped
// with no effect if no remote is known yet.
func (c *Channel) Send(p []byte) error {
	state := c.state.Get()
	if state == linkstate.Closed || state == linkstate.Error {
		return nil
	}
	c.mu.Lock()
	if c.remote == nil {
		c.mu.Unlock()
		return nil // dropped: remote not yet known
	}
	c.mu.Unlock()

	if len(p) > maxBufferSize {
		return nil
	}
	if int64(len(p)) > c.bpLimit {
		c.setState(linkstate.Error)
		return nil
	}

	done := make(chan struct{})
	c.strand.Post(func() {
		defer close(done)
		if c.queuedBytes+int64(len(p)) > c.bpLimit {
			c.setState(linkstate.Error)
			return
		}
		c.queue = append(c.queue, p)
		c.queuedBytes += int64(len(p))
		c.reportBackpressure()
		if !c.writing {
			c.doWrite()
		}
	})
	<-done
	return nil
}

func (c *Channel) doWrite() {
	if len(c.queue) == 0 {
		c.writing = false
		return
	}
	c.writing = true
	data := c.queue[0]
	c.queue = c.queue[1:]

	c.mu.Lock()
	remote := c.remote
	c.mu.Unlock()

	go func() {
		_, err := c.conn.WriteToUDP(data, remote)
		c.strand.Post(func() {
			n := int64(len(data))
			if c.queuedBytes >= n {
				c.queuedBytes -= n
			} else {
				c.queuedBytes = 0
			}
			c.reportBackpressure()
			if err != nil {
				c.setState(linkstate.Error)
				c.writing = false
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

// Stop closes the socket and halts the channel. Idempotent.
func (c *Channel) Stop() error {
	if c.state.Get() == linkstate.Closed {
		return nil
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.setState(linkstate.Closed)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	return c.rt.Stop(ctx)
}
