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
	"sync"

	"github.com/jwsung91/unilink-go/framer"
	"github.com/jwsung91/unilink-go/transport/tcpserver"
)

// MultiClientChannel is the base Channel contract plus the additive
// multi-client surface a TCP server exposes: addressed send, broadcast, and
// the live client roster.
type MultiClientChannel interface {
	Channel
	SendToClient(id uint64, s string) error
	Broadcast(s string) error
	GetClientCount() int
	GetConnectedClients() []uint64
	SetClientLimit(n int)
	SetUnlimitedClients()
}

type tcpServerChannel struct {
	dispatch
	server *tcpserver.Server

	newFramer func() framer.Framer
	mu        sync.Mutex
	framers   map[uint64]framer.Framer
}

// NewTCPServer builds a MultiClientChannel backed by a multi-client TCP
// listener. Send/SendLine on the base Channel interface broadcast to every
// connected client; use SendToClient to address one.
//
// Each connected client gets its own Framer instance: message boundaries are
// per-connection state, and sharing one Framer across clients would splice
// fragments from different peers into the same logical message.
func NewTCPServer(cfg tcpserver.Config, opts ...Option) (MultiClientChannel, error) {
	o := resolveOptions(opts)
	c := &tcpServerChannel{
		newFramer: o.framerFactory,
		framers:   make(map[uint64]framer.Framer),
	}

	c.server = tcpserver.New(cfg, tcpserver.Callbacks{
		OnMultiConnect: func(id uint64, peer string) {
			id := id
			c.fireConnect(&id)
		},
		OnMultiData: func(id uint64, p []byte) {
			for _, fn := range c.bytesHandlers {
				fn(p)
			}
			c.clientFramer(id).PushBytes(p)
		},
		OnMultiDisconnect: func(id uint64) {
			id := id
			c.mu.Lock()
			delete(c.framers, id)
			c.mu.Unlock()
			c.fireDisconnect(&id)
		},
	})

	if o.autoManage {
		if err := c.server.Start(context.Background()); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// clientFramer returns id's Framer, creating and wiring one on first use.
func (c *tcpServerChannel) clientFramer(id uint64) framer.Framer {
	c.mu.Lock()
	defer c.mu.Unlock()

	if fr, ok := c.framers[id]; ok {
		return fr
	}

	fr := c.newFramer()
	if m, ok := fr.(interface{ OnMessage(func([]byte)) }); ok {
		m.OnMessage(func(msg []byte) {
			s := string(msg)
			for _, fn := range c.dataHandlers {
				fn(s)
			}
		})
	}
	c.framers[id] = fr
	return fr
}

func (c *tcpServerChannel) Start(ctx context.Context) error { return c.server.Start(ctx) }
func (c *tcpServerChannel) Stop() error                      { return c.server.Stop() }
func (c *tcpServerChannel) IsConnected() bool                { return c.server.GetClientCount() > 0 }

func (c *tcpServerChannel) Send(s string) error     { return c.Broadcast(s) }
func (c *tcpServerChannel) SendLine(s string) error { return c.Broadcast(s + "\n") }

func (c *tcpServerChannel) SendToClient(id uint64, s string) error {
	return c.server.SendToClient(id, []byte(s))
}

func (c *tcpServerChannel) Broadcast(s string) error {
	c.server.Broadcast([]byte(s))
	return nil
}

func (c *tcpServerChannel) GetClientCount() int             { return c.server.GetClientCount() }
func (c *tcpServerChannel) GetConnectedClients() []uint64   { return c.server.GetConnectedClients() }
func (c *tcpServerChannel) SetClientLimit(n int)            { c.server.SetClientLimit(n) }
func (c *tcpServerChannel) SetUnlimitedClients()            { c.server.SetUnlimitedClients() }
