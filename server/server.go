/*
 * MIT License
 *
 * Copyright (c) 2026 netreactor contributors
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

// Package server implements a multi-reactor TCP server: one Acceptor
// on the owning EventLoop hands each accepted connection to a
// round-robin EventLoopThreadPool.
package server

import (
	"fmt"

	"github.com/coreflux/netreactor/acceptor"
	"github.com/coreflux/netreactor/inet"
	"github.com/coreflux/netreactor/ratomic"
	"github.com/coreflux/netreactor/reactor"
	"github.com/coreflux/netreactor/rlog"
	"github.com/coreflux/netreactor/rmetrics"
	"github.com/coreflux/netreactor/tcpconn"
)

// Option controls whether multiple Server instances may share the
// listen address via SO_REUSEPORT.
type Option int

const (
	NoReusePort Option = iota
	ReusePort
)

// Server accepts connections on a single loop and distributes their
// I/O across a pool of worker loops.
type Server struct {
	loop   *reactor.EventLoop
	logger rlog.Logger

	ipPort string
	name   string

	acceptor   *acceptor.Acceptor
	threadPool *reactor.EventLoopThreadPool

	connectionCallback    tcpconn.ConnectionCallback
	messageCallback       tcpconn.MessageCallback
	writeCompleteCallback tcpconn.WriteCompleteCallback

	threadInitCallback reactor.ThreadInitCallback

	started ratomic.Flag
	stopped ratomic.Flag

	nextConnID  int
	connections map[string]*tcpconn.Connection

	metrics *rmetrics.Metrics
}

// SetMetrics wires an optional metrics sink propagated to every
// connection this server accepts. Call before Start.
func (s *Server) SetMetrics(m *rmetrics.Metrics) {
	s.metrics = m
}

// New constructs a Server bound to listenAddr, owned by loop. Start
// must be called to begin accepting connections.
func New(loop *reactor.EventLoop, listenAddr inet.Address, name string, opt Option, logger rlog.Logger) (*Server, error) {
	if logger == nil {
		logger = rlog.Nop()
	}

	a, err := acceptor.New(loop, listenAddr, opt == ReusePort, logger.Named("acceptor"))
	if err != nil {
		return nil, err
	}

	s := &Server{
		loop:                loop,
		logger:              logger,
		ipPort:              listenAddr.String(),
		name:                name,
		acceptor:            a,
		threadPool:          reactor.NewEventLoopThreadPool(loop, name, logger.Named("pool")),
		connectionCallback:  tcpconn.DefaultConnectionCallback,
		messageCallback:     tcpconn.DefaultMessageCallback,
		nextConnID:          1,
		connections:         make(map[string]*tcpconn.Connection),
	}
	a.SetNewConnectionCallback(s.newConnection)
	return s, nil
}

// IPPort returns the configured listen address, formatted host:port.
// If the server was configured with an ephemeral port (0), this
// still reflects the configured value; use ListenAddr for the actual
// bound address once listening.
func (s *Server) IPPort() string { return s.ipPort }

// ListenAddr returns the Acceptor's actual bound address, resolving
// an ephemeral port to the one the kernel assigned. Must be called
// from the owning loop's goroutine.
func (s *Server) ListenAddr() (inet.Address, error) {
	return s.acceptor.Addr()
}

// Name returns the server's configured name.
func (s *Server) Name() string { return s.name }

// Loop returns the Acceptor's owning loop.
func (s *Server) Loop() *reactor.EventLoop { return s.loop }

// SetThreadNum configures the worker pool size. 0 means all I/O runs
// on the Acceptor's own loop; N round-robins across N worker loops.
// Must be called before Start.
func (s *Server) SetThreadNum(n int) {
	s.threadPool.SetThreadNum(n)
}

// SetThreadInitCallback installs a hook invoked once per worker loop
// right after it starts, before it begins serving connections.
func (s *Server) SetThreadInitCallback(cb reactor.ThreadInitCallback) {
	s.threadInitCallback = cb
}

// ThreadPool exposes the worker pool; valid only after Start.
func (s *Server) ThreadPool() *reactor.EventLoopThreadPool { return s.threadPool }

// SetConnectionCallback installs the handler propagated to every
// connection this server accepts. Not thread safe; call before Start.
func (s *Server) SetConnectionCallback(cb tcpconn.ConnectionCallback) { s.connectionCallback = cb }

// SetMessageCallback installs the handler propagated to every
// connection this server accepts. Not thread safe; call before Start.
func (s *Server) SetMessageCallback(cb tcpconn.MessageCallback) { s.messageCallback = cb }

// SetWriteCompleteCallback installs the handler propagated to every
// connection this server accepts. Not thread safe; call before Start.
func (s *Server) SetWriteCompleteCallback(cb tcpconn.WriteCompleteCallback) {
	s.writeCompleteCallback = cb
}

// Start begins listening. Idempotent: subsequent calls are no-ops.
func (s *Server) Start() {
	if !s.started.CAS(false, true) {
		return
	}
	s.threadPool.Start(s.threadInitCallback)

	if s.acceptor.Listening() {
		panic("server: acceptor already listening")
	}
	s.loop.RunInLoop(func() {
		if err := s.acceptor.Listen(); err != nil {
			s.logger.Error("server failed to listen", rlog.Fields{"error": err.Error()})
		}
	})
}

// Stop closes the listening socket and tears down every worker
// sub-loop, releasing their fds. Idempotent; a no-op if Start was
// never called. Does not close connections already accepted. Safe to
// call whether or not the owning loop's Loop is still running; if it
// has already returned, the acceptor is closed directly instead of
// waiting on a queue nothing will ever drain again.
func (s *Server) Stop() {
	if !s.started.Get() || !s.stopped.CAS(false, true) {
		return
	}

	closeAcceptor := func() {
		if err := s.acceptor.Close(); err != nil {
			s.logger.Warn("server failed to close acceptor", rlog.Fields{"error": err.Error()})
		}
	}

	if s.loop.Looping() {
		done := make(chan struct{})
		s.loop.RunInLoop(func() {
			closeAcceptor()
			close(done)
		})
		<-done
	} else {
		closeAcceptor()
	}

	s.threadPool.Stop()
}

func (s *Server) newConnection(sockfd int, peerAddr inet.Address) {
	s.loop.AssertInLoopThread()
	ioLoop := s.threadPool.GetNextLoop()

	connName := fmt.Sprintf("%s-%s#%d", s.name, s.ipPort, s.nextConnID)
	s.nextConnID++

	s.logger.Info("server accepted connection", rlog.Fields{
		"server": s.name, "conn": connName, "peer": peerAddr.String(),
	})

	localAddr, err := inet.LocalAddr(sockfd)
	if err != nil {
		s.logger.Warn("server failed to resolve local address", rlog.Fields{"error": err.Error()})
	}

	conn := tcpconn.New(ioLoop, connName, sockfd, localAddr, peerAddr, s.logger.Named(connName))
	s.connections[connName] = conn

	conn.SetMetrics(s.metrics)
	conn.SetConnectionCallback(s.connectionCallback)
	conn.SetMessageCallback(s.messageCallback)
	conn.SetWriteCompleteCallback(s.writeCompleteCallback)
	conn.SetCloseCallback(s.removeConnection)

	ioLoop.RunInLoop(conn.ConnectEstablished)
}

// removeConnection is thread safe: it may be invoked from a worker
// loop's goroutine while the connection map lives on the Acceptor's
// loop.
func (s *Server) removeConnection(conn *tcpconn.Connection) {
	s.loop.RunInLoop(func() { s.removeConnectionInLoop(conn) })
}

func (s *Server) removeConnectionInLoop(conn *tcpconn.Connection) {
	s.loop.AssertInLoopThread()
	delete(s.connections, conn.Name())
	conn.Loop().QueueInLoop(conn.ConnectDestroyed)
}
