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
	"github.com/jwsung91/unilink-go/session"
	"github.com/jwsung91/unilink-go/transport/tcpclient"
)

type tcpClientChannel struct {
	dispatch
	client *tcpclient.Client
}

// NewTCPClient builds a Channel backed by a reconnecting TCP client.
func NewTCPClient(cfg tcpclient.Config, opts ...Option) (Channel, error) {
	o := resolveOptions(opts)
	c := &tcpClientChannel{}
	c.initFramer(o.framerFactory())

	c.client = tcpclient.New(cfg, session.Callbacks{
		OnBytes: func(p []byte) { c.fireBytes(p) },
		OnClose: func(err error) {
			c.fireDisconnect(nil)
			if err != nil {
				c.fireError(errctx.ErrorContext{Code: errctx.FromNetError(err), Message: err.Error()})
			}
		},
	})
	c.client.OnStateChange(func(old, new_ linkstate.LinkState) {
		if new_ == linkstate.Connected {
			c.fireConnect(nil)
		}
	})

	if o.autoManage {
		if err := c.client.Start(context.Background()); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *tcpClientChannel) Start(ctx context.Context) error { return c.client.Start(ctx) }
func (c *tcpClientChannel) Stop() error                      { return c.client.Stop() }
func (c *tcpClientChannel) IsConnected() bool                { return c.client.IsConnected() }
func (c *tcpClientChannel) Send(s string) error              { return c.client.Send(s) }
func (c *tcpClientChannel) SendLine(s string) error          { return c.client.SendLine(s) }
