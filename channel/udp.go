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

package channel

import (
	"context"

	"github.com/jwsung91/unilink-go/errctx"
	"github.com/jwsung91/unilink-go/framer"
	"github.com/jwsung91/unilink-go/linkstate"
	"github.com/jwsung91/unilink-go/transport/udp"
)

type udpChannel struct {
	dispatch
	ch *udp.Channel
}

// NewUDP builds a Channel backed by a UDP datagram socket.
//
// Unlike the stream transports, UDP does not default to the shared line
// framer: a datagram is already a complete message at the OS level, and a
// delimiter scan would wrongly buffer a datagram with no trailing delimiter
// instead of firing OnData for it immediately. WithFramerFactory/
// WithLineDelimiter still override this when a caller wants line semantics
// layered on top of the datagram payloads.
func NewUDP(cfg udp.Config, opts ...Option) (Channel, error) {
	o := resolveOptions(opts)
	if !o.framerFactorySet {
		o.framerFactory = func() framer.Framer { return framer.NewDatagramFramer() }
	}
	c := &udpChannel{}
	c.initFramer(o.framerFactory())

	c.ch = udp.New(cfg, udp.Callbacks{
		OnBytes: func(p []byte) { c.fireBytes(p) },
	})
	c.ch.OnStateChange(func(old, new_ linkstate.LinkState) {
		switch new_ {
		case linkstate.Connected:
			c.fireConnect(nil)
		case linkstate.Closed:
			c.fireDisconnect(nil)
		case linkstate.Error:
			c.fireDisconnect(nil)
			c.fireError(errctx.ErrorContext{Code: errctx.IoError, Message: "udp channel entered Error state"})
		}
	})

	if o.autoManage {
		if err := c.ch.Start(context.Background()); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *udpChannel) Start(ctx context.Context) error { return c.ch.Start(ctx) }
func (c *udpChannel) Stop() error                      { return c.ch.Stop() }
func (c *udpChannel) IsConnected() bool                { return c.ch.IsConnected() }
func (c *udpChannel) Send(s string) error              { return c.ch.Send([]byte(s)) }
func (c *udpChannel) SendLine(s string) error          { return c.ch.Send([]byte(s + "\n")) }
