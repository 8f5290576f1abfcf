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
	"github.com/jwsung91/unilink-go/linkstate"
	"github.com/jwsung91/unilink-go/transport/serial"
)

type serialChannel struct {
	dispatch
	ch *serial.Channel
}

// NewSerial builds a Channel backed by a serial-port device.
func NewSerial(cfg serial.Config, opts ...Option) (Channel, error) {
	o := resolveOptions(opts)
	c := &serialChannel{}
	c.initFramer(o.framerFactory())

	c.ch = serial.New(cfg, serial.Callbacks{
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
			c.fireError(errctx.ErrorContext{Code: errctx.IoError, Message: "serial channel entered Error state"})
		}
	})

	if o.autoManage {
		if err := c.ch.Start(context.Background()); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *serialChannel) Start(ctx context.Context) error { return c.ch.Start(ctx) }
func (c *serialChannel) Stop() error                      { return c.ch.Stop() }
func (c *serialChannel) IsConnected() bool                { return c.ch.IsConnected() }
func (c *serialChannel) Send(s string) error              { return c.ch.Send([]byte(s)) }
func (c *serialChannel) SendLine(s string) error          { return c.ch.Send([]byte(s + "\n")) }
