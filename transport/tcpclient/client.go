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

// Package tcpclient is the TCP-client transport frontend: resolve, dial with
// a connect timeout, hand the live socket to a session, and on failure
// consult the reconnect controller instead of giving up outright.
package tcpclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/jwsung91/unilink-go/errctx"
	"github.com/jwsung91/unilink-go/executor"
	"github.com/jwsung91/unilink-go/linkstate"
	"github.com/jwsung91/unilink-go/logging"
	"github.com/jwsung91/unilink-go/reconnect"
	"github.com/jwsung91/unilink-go/session"
	"github.com/jwsung91/unilink-go/tlsconfig"
)

// Config is the TCP client's recognized configuration.
type Config struct {
	Host                 string
	Port                 int
	RetryInterval        time.Duration
	MaxRetries           int // -1 = infinite, 0 = never
	ConnectionTimeout    time.Duration
	BackpressureThreshold int64
	TLS                  *tlsconfig.Config
	Policy               reconnect.Policy
	UsePool              bool
	// StopOnCallbackException transitions the session to Error and closes
	// it when OnBytes/OnBackpressure/OnClose panics; otherwise the panic is
	// logged through Logger and the session keeps running.
	StopOnCallbackException bool
	Logger                  logging.Logger
}

// Client is a reconnecting TCP client channel.
type Client struct {
	cfg    Config
	rt     *executor.Runtime
	strand *executor.Strand

	state *linkstate.State[linkstate.LinkState]
	attempt int

	mu      sync.Mutex
	session *session.Session

	cb session.Callbacks
}

// New constructs a Client. cb is wired through to the underlying session once
// connected.
func New(cfg Config, cb session.Callbacks) *Client {
	rt := executor.New(0)
	rt.Start()
	return &Client{
		cfg:    cfg,
		rt:     rt,
		strand: rt.NewStrand(),
		state:  linkstate.NewState(linkstate.Idle),
		cb:     cb,
	}
}

// State returns the channel's current state.
func (c *Client) State() linkstate.LinkState { return c.state.Get() }

// OnStateChange registers a callback for every state transition.
func (c *Client) OnStateChange(fn func(old, new_ linkstate.LinkState)) { c.state.OnChange(fn) }

// IsConnected reports whether the channel currently has a live session.
func (c *Client) IsConnected() bool { return c.state.Get() == linkstate.Connected }

// Start begins the connect/retry loop. Returns immediately; connection
// progress is reported through state changes.
func (c *Client) Start(ctx context.Context) error {
	c.state.Set(linkstate.Connecting)
	go c.connectLoop(ctx)
	return nil
}

func (c *Client) connectLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.state.Set(linkstate.Closed)
			return
		default:
		}

		sess, err := c.dial(ctx)
		if err == nil {
			c.attempt = 0
			c.mu.Lock()
			c.session = sess
			c.mu.Unlock()
			c.state.Set(linkstate.Connected)
			sess.Start()
			return
		}

		code := errctx.FromNetError(err)
		info := errctx.ErrorInfo{
			Level: errctx.Error, Category: errctx.CategoryConnection,
			Component: "tcpclient", Operation: "dial", Message: err.Error(),
			OSErr: err, Timestamp: time.Now(), RetryCount: c.attempt,
			Retryable: errctx.IsRetryableConnectError(err),
		}
		_ = code

		decision := reconnect.Decide(reconnect.Config{MaxRetries: c.cfg.MaxRetries, RetryInterval: c.cfg.RetryInterval}, info, c.attempt, c.cfg.Policy)
		if !decision.Retry {
			c.state.Set(linkstate.Error)
			return
		}
		c.attempt++

		select {
		case <-ctx.Done():
			c.state.Set(linkstate.Closed)
			return
		case <-time.After(decision.Delay):
		}
	}
}

func (c *Client) dial(ctx context.Context) (*session.Session, error) {
	timeout := c.cfg.ConnectionTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	if c.cfg.TLS != nil && c.cfg.TLS.Enabled {
		tlsCfg, err := tlsconfig.Build(*c.cfg.TLS)
		if err != nil {
			conn.Close()
			return nil, err
		}
		tlsConn := tls.Client(conn, tlsCfg)
		if err := tlsConn.HandshakeContext(dialCtx); err != nil {
			tlsConn.Close()
			return nil, err
		}
		sess := session.New(tlsConn, c.strand, c.cfg.BackpressureThreshold, c.cfg.UsePool, c.wrapCallbacks())
		return sess, nil
	}

	sess := session.New(conn, c.strand, c.cfg.BackpressureThreshold, c.cfg.UsePool, c.wrapCallbacks())
	return sess, nil
}

func (c *Client) wrapCallbacks() session.Callbacks {
	return session.Callbacks{
		OnBytes:        c.cb.OnBytes,
		OnBackpressure: c.cb.OnBackpressure,
		OnClose: func(err error) {
			if err != nil {
				c.state.Set(linkstate.Error)
			} else {
				c.state.Set(linkstate.Closed)
			}
			if c.cb.OnClose != nil {
				c.cb.OnClose(err)
			}
		},
		StopOnCallbackException: c.cfg.StopOnCallbackException,
		Logger:                  c.cfg.Logger,
	}
}

// Stop closes the active session, if any, and halts further reconnect
// attempts. Idempotent.
func (c *Client) Stop() error {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess != nil {
		sess.Close(nil)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	return c.rt.Stop(ctx)
}

// Send writes s as-is.
func (c *Client) Send(s string) error {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return session.ErrNotAlive
	}
	return sess.WriteCopy([]byte(s))
}

// SendLine writes s followed by a trailing newline.
func (c *Client) SendLine(s string) error {
	return c.Send(s + "\n")
}
