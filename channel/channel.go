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

// Package channel is the polymorphic byte-stream Channel contract and the
// adapters that let a TCP client, TCP server, UDP channel, and serial
// channel all satisfy it, so a caller can hold one interface value
// regardless of which concrete transport backs it.
package channel

import (
	"context"
	"time"

	"github.com/jwsung91/unilink-go/errctx"
	"github.com/jwsung91/unilink-go/framer"
)

// defaultMaxMessageLength bounds a framed line for the line framers this
// package builds (the default and WithLineDelimiter); matches the session backpressure default
// order of magnitude so a runaway peer can't grow the framer buffer unbounded.
const defaultMaxMessageLength = 1 << 20

// StateContext is passed to OnConnect/OnDisconnect. ClientID is non-nil only
// for events raised by a TCP server's multi-client surface.
type StateContext struct {
	ClientID  *uint64
	Timestamp time.Time
}

// Channel is the transport-agnostic contract every concrete frontend
// satisfies: start/stop lifecycle, line or raw byte send, and the five
// callback registration points.
type Channel interface {
	Start(ctx context.Context) error
	Stop() error
	IsConnected() bool
	Send(s string) error
	SendLine(s string) error
	OnData(fn func(string))
	OnBytes(fn func([]byte))
	OnConnect(fn func(ctx StateContext))
	OnDisconnect(fn func(ctx StateContext))
	OnError(fn func(ctx errctx.ErrorContext))
}

// options carries the functional-option state shared by every New* builder.
// framerFactory, not a shared instance, because NewTCPServer needs one
// independent framer per connected client.
type options struct {
	autoManage bool

	framerFactory func() framer.Framer
	// framerFactorySet distinguishes an explicit WithFramerFactory/
	// WithLineDelimiter call from the zero-value default, so a transport
	// whose idiomatic default differs from the shared line framer (UDP)
	// can tell whether to override it.
	framerFactorySet bool
}

// Option configures a Channel builder.
type Option func(*options)

// WithAutoManage, when true, calls Start(context.Background()) as part of
// construction instead of requiring the caller to do so — the idiomatic
// substitute for a boolean auto_manage constructor flag.
func WithAutoManage(v bool) Option {
	return func(o *options) { o.autoManage = v }
}

// WithFramerFactory overrides the message-boundary extractor OnData uses to
// split the raw byte stream. Defaults to a line framer on "\n" (NewUDP
// instead defaults to a DatagramFramer, one message per datagram). The factory
// is called once per stream (once for a client/server/UDP/serial channel,
// once per connected client for a TCP server), so it must return a fresh,
// independent Framer each time.
func WithFramerFactory(factory func() framer.Framer) Option {
	return func(o *options) {
		o.framerFactory = factory
		o.framerFactorySet = true
	}
}

// WithLineDelimiter is shorthand for WithFramerFactory constructing a line
// framer with includeDelimiter=false and defaultMaxMessageLength.
func WithLineDelimiter(delimiter string) Option {
	return func(o *options) {
		o.framerFactory = func() framer.Framer {
			return framer.NewLineFramer(delimiter, false, defaultMaxMessageLength)
		}
		o.framerFactorySet = true
	}
}

func resolveOptions(opts []Option) options {
	o := options{
		framerFactory: func() framer.Framer {
			return framer.NewLineFramer("\n", false, defaultMaxMessageLength)
		},
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// dispatch is the shared handler-list/fan-out plumbing every adapter embeds.
// fr extracts message boundaries from the raw byte stream for OnData; it is
// not safe for concurrent PushBytes calls, matching the single-reader-goroutine
// contract every transport frontend already honors.
type dispatch struct {
	dataHandlers       []func(string)
	bytesHandlers      []func([]byte)
	connectHandlers    []func(StateContext)
	disconnectHandlers []func(StateContext)
	errorHandlers      []func(errctx.ErrorContext)
	fr                 framer.Framer
}

func (d *dispatch) initFramer(fr framer.Framer) {
	d.fr = fr
	if lf, ok := fr.(interface{ OnMessage(func([]byte)) }); ok {
		lf.OnMessage(func(msg []byte) {
			s := string(msg)
			for _, fn := range d.dataHandlers {
				fn(s)
			}
		})
	}
}

func (d *dispatch) OnData(fn func(string))              { d.dataHandlers = append(d.dataHandlers, fn) }
func (d *dispatch) OnBytes(fn func([]byte))             { d.bytesHandlers = append(d.bytesHandlers, fn) }
func (d *dispatch) OnConnect(fn func(StateContext))     { d.connectHandlers = append(d.connectHandlers, fn) }
func (d *dispatch) OnDisconnect(fn func(StateContext))  { d.disconnectHandlers = append(d.disconnectHandlers, fn) }
func (d *dispatch) OnError(fn func(errctx.ErrorContext)) { d.errorHandlers = append(d.errorHandlers, fn) }

// fireBytes delivers the raw chunk to OnBytes handlers verbatim, then pushes
// it through the framer so OnData handlers see complete messages instead of
// arbitrary read-sized fragments.
func (d *dispatch) fireBytes(p []byte) {
	for _, fn := range d.bytesHandlers {
		fn(p)
	}
	if d.fr != nil {
		d.fr.PushBytes(p)
	}
}

func (d *dispatch) fireConnect(id *uint64) {
	ctx := StateContext{ClientID: id, Timestamp: time.Now()}
	for _, fn := range d.connectHandlers {
		fn(ctx)
	}
}

func (d *dispatch) fireDisconnect(id *uint64) {
	ctx := StateContext{ClientID: id, Timestamp: time.Now()}
	for _, fn := range d.disconnectHandlers {
		fn(ctx)
	}
}

func (d *dispatch) fireError(ec errctx.ErrorContext) {
	for _, fn := range d.errorHandlers {
		fn(ec)
	}
}
