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

// Package tcpserver is the multi-client TCP server transport frontend: an
// acceptor with an optional client cap, a session table keyed by a
// monotonic client id, addressed send, and broadcast.
package tcpserver

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/jwsung91/unilink-go/executor"
	"github.com/jwsung91/unilink-go/linkstate"
	"github.com/jwsung91/unilink-go/logging"
	"github.com/jwsung91/unilink-go/session"
	"github.com/jwsung91/unilink-go/tlsconfig"
)

// Config is the TCP server's recognized configuration.
type Config struct {
	Port                  int
	BackpressureThreshold int64
	EnablePortRetry       bool
	MaxPortRetries        int
	PortRetryInterval     time.Duration
	ClientLimit           int // <=0 means unlimited
	TLS                   *tlsconfig.Config
	UsePool               bool
	// Logger receives the edge-triggered accept-flood warning and, if set,
	// any per-session callback panic. Nil disables both.
	Logger logging.Logger
	// StopOnCallbackException transitions a client session to Error and
	// closes it when one of OnMultiData/OnMultiDisconnect panics; otherwise
	// the panic is logged and that session keeps running.
	StopOnCallbackException bool
}

// Callbacks are the multi-client hooks a Server fires.
type Callbacks struct {
	OnMultiConnect    func(id uint64, peer string)
	OnMultiData       func(id uint64, p []byte)
	OnMultiDisconnect func(id uint64)
}

// Server is a multi-client TCP server channel.
type Server struct {
	cfg Config
	cb  Callbacks

	rt     *executor.Runtime
	state  *linkstate.State[linkstate.LinkState]

	ln net.Listener

	mu       sync.Mutex
	sessions map[uint64]*session.Session
	nextID   uint64

	rejectMu     sync.Mutex
	atCapLogged  bool
}

// New constructs a Server.
func New(cfg Config, cb Callbacks) *Server {
	rt := executor.New(0)
	rt.Start()
	return &Server{
		cfg:      cfg,
		cb:       cb,
		rt:       rt,
		state:    linkstate.NewState(linkstate.Idle),
		sessions: make(map[uint64]*session.Session),
	}
}

func (s *Server) State() linkstate.LinkState { return s.state.Get() }

// Start binds and listens, retrying the bind on failure if configured to,
// then runs the accept loop in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)

	var ln net.Listener
	var err error
	attempts := 0
	for {
		ln, err = net.Listen("tcp", addr)
		if err == nil {
			break
		}
		if !s.cfg.EnablePortRetry || attempts >= s.cfg.MaxPortRetries {
			s.state.Set(linkstate.Error)
			return err
		}
		attempts++
		time.Sleep(s.cfg.PortRetryInterval)
	}

	if s.cfg.TLS != nil && s.cfg.TLS.Enabled {
		tlsCfg, err := tlsconfig.Build(*s.cfg.TLS)
		if err != nil {
			ln.Close()
			s.state.Set(linkstate.Error)
			return err
		}
		ln = tls.NewListener(ln, tlsCfg)
	}

	s.ln = ln
	s.state.Set(linkstate.Listening)
	go s.acceptLoop(ctx)
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			return
		}

		if s.atCapacity() {
			conn.Close()
			s.logRejectionEdgeTriggered()
			continue
		}
		s.rejectMu.Lock()
		s.atCapLogged = false
		s.rejectMu.Unlock()

		s.acceptSession(conn)
	}
}

func (s *Server) atCapacity() bool {
	if s.cfg.ClientLimit <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions) >= s.cfg.ClientLimit
}

// logRejectionEdgeTriggered logs a single warning the first time the server
// starts rejecting for being at capacity, then stays silent until the count
// drops back under the cap and a rejection happens again — avoiding a log
// line per rejected connection during a flood.
func (s *Server) logRejectionEdgeTriggered() {
	s.rejectMu.Lock()
	defer s.rejectMu.Unlock()
	if s.atCapLogged {
		return
	}
	s.atCapLogged = true
	if s.cfg.Logger != nil {
		s.cfg.Logger.Warning("rejecting new TCP connections: client limit reached", s.cfg.ClientLimit)
	}
}

func (s *Server) acceptSession(conn net.Conn) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.mu.Unlock()

	strand := s.rt.NewStrand()
	sess := session.New(conn, strand, s.cfg.BackpressureThreshold, s.cfg.UsePool, session.Callbacks{
		OnBytes: func(p []byte) {
			if s.cb.OnMultiData != nil {
				s.cb.OnMultiData(id, p)
			}
		},
		OnClose: func(err error) {
			s.mu.Lock()
			delete(s.sessions, id)
			s.mu.Unlock()
			if s.cb.OnMultiDisconnect != nil {
				s.cb.OnMultiDisconnect(id)
			}
		},
		StopOnCallbackException: s.cfg.StopOnCallbackException,
		Logger:                  s.cfg.Logger,
	})

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	if s.cb.OnMultiConnect != nil {
		s.runCallback(id, "OnMultiConnect", func() { s.cb.OnMultiConnect(id, conn.RemoteAddr().String()) })
	}
	sess.Start()
}

// runCallback invokes fn, recovering a panic raised by a multi-client hook
// that fires outside the session strand (OnMultiConnect). It follows the
// same StopOnCallbackException policy as the per-session callbacks: log,
// and optionally drop the newly accepted session instead of leaving it
// running with a client the caller never got a connect notification for.
func (s *Server) runCallback(id uint64, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if s.cfg.Logger != nil {
				s.cfg.Logger.Error("tcpserver callback panicked", r, "callback", name, "client", id)
			}
			if s.cfg.StopOnCallbackException {
				s.mu.Lock()
				sess, ok := s.sessions[id]
				s.mu.Unlock()
				if ok {
					sess.Close(fmt.Errorf("tcpserver: callback %s panicked: %v", name, r))
				}
			}
		}
	}()
	fn()
}

// SendToClient writes p to the session identified by id. A no-op if id does
// not resolve to a live session.
func (s *Server) SendToClient(id uint64, p []byte) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return sess.WriteCopy(p)
}

// Broadcast enqueues p to every live session. A per-session write failure
// does not abort the broadcast for the rest.
func (s *Server) Broadcast(p []byte) {
	shared := session.NewSharedBytes(append([]byte(nil), p...))

	s.mu.Lock()
	targets := make([]*session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		targets = append(targets, sess)
	}
	s.mu.Unlock()

	for _, sess := range targets {
		_ = sess.WriteShared(shared)
	}
}

// GetClientCount returns the number of currently connected sessions.
func (s *Server) GetClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// GetConnectedClients returns the ids of currently connected sessions.
func (s *Server) GetConnectedClients() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uint64, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// SetClientLimit sets the maximum concurrent session count. n<=0 means
// unlimited.
func (s *Server) SetClientLimit(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.ClientLimit = n
}

// SetUnlimitedClients removes any client cap.
func (s *Server) SetUnlimitedClients() { s.SetClientLimit(0) }

// Stop closes the listener and every live session.
func (s *Server) Stop() error {
	if s.ln != nil {
		s.ln.Close()
	}
	s.mu.Lock()
	sessions := make([]*session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Close(nil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	s.state.Set(linkstate.Closed)
	return s.rt.Stop(ctx)
}
