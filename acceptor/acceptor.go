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

// Package acceptor implements the listening half of a TcpServer: it
// owns the bound, listening socket and hands accepted connections to
// a callback, recovering from file-descriptor exhaustion instead of
// spinning on EMFILE.
package acceptor

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/coreflux/netreactor/inet"
	"github.com/coreflux/netreactor/reactor"
	"github.com/coreflux/netreactor/rerrors"
	"github.com/coreflux/netreactor/rlog"
)

// maxAcceptsPerReadiness bounds how many connections a single
// readiness notification drains before yielding back to the loop, so
// one listener under a connection storm cannot starve every other
// channel registered on the same loop.
const maxAcceptsPerReadiness = 32

// NewConnectionCallback receives each accepted connection's fd and
// the peer's resolved address.
type NewConnectionCallback func(fd int, peer inet.Address)

// Acceptor owns a listening socket and its read-ready Channel.
type Acceptor struct {
	loop   *reactor.EventLoop
	logger rlog.Logger

	fd      int
	channel *reactor.Channel

	newConnectionCallback NewConnectionCallback

	listening bool
	idleFd    int
}

// New creates an Acceptor bound to listenAddr. reusePort enables
// SO_REUSEPORT, letting multiple Acceptor instances (typically one
// per process in a prefork deployment) share the same listen address.
func New(loop *reactor.EventLoop, listenAddr inet.Address, reusePort bool, logger rlog.Logger) (*Acceptor, error) {
	if logger == nil {
		logger = rlog.Nop()
	}

	fd, err := createNonblockingSocket(listenAddr.V6)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.CodeFatalIO, err, "acceptor: socket() failed")
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return nil, rerrors.Wrap(rerrors.CodeFatalIO, err, "acceptor: SO_REUSEADDR failed")
	}
	if reusePort {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			_ = unix.Close(fd)
			return nil, rerrors.Wrap(rerrors.CodeFatalIO, err, "acceptor: SO_REUSEPORT failed")
		}
	}

	if err := bindAddress(fd, listenAddr); err != nil {
		_ = unix.Close(fd)
		return nil, rerrors.Wrap(rerrors.CodeFatalIO, err, "acceptor: bind() failed")
	}

	idleFd, err := unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		_ = unix.Close(fd)
		return nil, rerrors.Wrap(rerrors.CodeResourceExhausted, err, "acceptor: failed to reserve spare descriptor")
	}

	a := &Acceptor{
		loop:   loop,
		logger: logger,
		fd:     fd,
		idleFd: idleFd,
	}
	a.channel = reactor.NewChannel(loop, fd)
	a.channel.SetReadCallback(func(time.Time) { a.handleRead() })
	return a, nil
}

// SetNewConnectionCallback installs the handler invoked for each
// accepted connection.
func (a *Acceptor) SetNewConnectionCallback(cb NewConnectionCallback) {
	a.newConnectionCallback = cb
}

// Listening reports whether Listen has been called.
func (a *Acceptor) Listening() bool { return a.listening }

// Addr returns the socket's bound local address, resolving an
// ephemeral port (0) to the one the kernel actually assigned.
func (a *Acceptor) Addr() (inet.Address, error) {
	sa, err := unix.Getsockname(a.fd)
	if err != nil {
		return inet.Address{}, err
	}
	switch s := sa.(type) {
	case *unix.SockaddrInet4:
		return inet.FromIPPort(ipBytesToString(s.Addr[:]), uint16(s.Port))
	case *unix.SockaddrInet6:
		return inet.FromIPPort(ipBytesToString(s.Addr[:]), uint16(s.Port))
	default:
		return inet.Address{}, nil
	}
}

// Listen marks the socket listening and enables read interest. Must
// be called from the owning loop's goroutine. The backlog is taken
// from the loop's configured AcceptBacklog, falling back to
// unix.SOMAXCONN if unset or non-positive.
func (a *Acceptor) Listen() error {
	a.loop.AssertInLoopThread()
	a.listening = true

	backlog := unix.SOMAXCONN
	if cfg := a.loop.Config(); cfg != nil {
		if v := cfg.AcceptBacklog(); v > 0 {
			backlog = v
		}
	}

	if err := unix.Listen(a.fd, backlog); err != nil {
		return rerrors.Wrap(rerrors.CodeFatalIO, err, "acceptor: listen() failed")
	}
	a.channel.EnableReading()
	return nil
}

// Close tears down the listening socket and its spare descriptor.
func (a *Acceptor) Close() error {
	a.channel.DisableAll()
	a.channel.Remove()
	_ = unix.Close(a.idleFd)
	return unix.Close(a.fd)
}

func (a *Acceptor) handleRead() {
	a.loop.AssertInLoopThread()

	for i := 0; i < maxAcceptsPerReadiness; i++ {
		connFd, peer, err := accept4(a.fd)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			if err == unix.EMFILE || err == unix.ENFILE {
				a.recoverFromFdExhaustion()
				return
			}
			a.logger.Warn("Acceptor.handleRead accept failed", rlog.Fields{"error": err.Error()})
			return
		}

		if a.newConnectionCallback != nil {
			a.newConnectionCallback(connFd, peer)
		} else {
			_ = unix.Close(connFd)
		}
	}
}

// recoverFromFdExhaustion releases the spare fd, accepts (and
// immediately drops) the pending connection that triggered EMFILE,
// then reopens the spare so the next exhaustion event can be handled
// the same way.
func (a *Acceptor) recoverFromFdExhaustion() {
	_ = unix.Close(a.idleFd)

	connFd, _, err := unix.Accept(a.fd)
	if err == nil {
		_ = unix.Close(connFd)
	}

	idleFd, err := unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		a.logger.Error("Acceptor failed to reopen spare descriptor", rlog.Fields{"error": err.Error()})
		return
	}
	a.idleFd = idleFd
}
