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

// Package connector implements the dialing half of a TcpClient: a
// non-blocking connect with exponential-backoff retry and
// self-connect rejection.
package connector

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/coreflux/netreactor/inet"
	"github.com/coreflux/netreactor/ratomic"
	"github.com/coreflux/netreactor/reactor"
	"github.com/coreflux/netreactor/rlog"
)

const (
	initRetryDelay = 500 * time.Millisecond
	maxRetryDelay  = 30 * time.Second
)

type state int

const (
	stateDisconnected state = iota
	stateConnecting
	stateConnected
)

// NewConnectionCallback receives the fd of a successfully established
// connection.
type NewConnectionCallback func(fd int)

// Connector owns at most one in-flight non-blocking connect attempt
// at a time, retrying with exponential backoff on recoverable
// failures until Stop is called.
type Connector struct {
	loop       *reactor.EventLoop
	serverAddr inet.Address
	logger     rlog.Logger

	connect ratomic.Flag
	st      state

	channel *reactor.Channel

	newConnectionCallback NewConnectionCallback

	retryDelay time.Duration
}

// New constructs a Connector targeting serverAddr. Start must be
// called to begin dialing.
func New(loop *reactor.EventLoop, serverAddr inet.Address, logger rlog.Logger) *Connector {
	if logger == nil {
		logger = rlog.Nop()
	}
	return &Connector{
		loop:       loop,
		serverAddr: serverAddr,
		logger:     logger,
		st:         stateDisconnected,
		retryDelay: initRetryDelay,
	}
}

// SetNewConnectionCallback installs the handler invoked once a
// connection succeeds.
func (c *Connector) SetNewConnectionCallback(cb NewConnectionCallback) {
	c.newConnectionCallback = cb
}

// ServerAddress returns the dial target.
func (c *Connector) ServerAddress() inet.Address { return c.serverAddr }

// Start begins dialing. Safe to call from any goroutine.
func (c *Connector) Start() {
	c.connect.Set(true)
	c.loop.RunInLoop(c.startInLoop)
}

func (c *Connector) startInLoop() {
	c.loop.AssertInLoopThread()
	if c.st != stateDisconnected {
		panic("connector: startInLoop called while not disconnected")
	}
	if c.connect.Get() {
		c.dial()
	}
}

// Stop cancels any in-flight connect attempt and suppresses further
// retries. Safe to call from any goroutine.
func (c *Connector) Stop() {
	c.connect.Set(false)
	c.loop.QueueInLoop(c.stopInLoop)
}

func (c *Connector) stopInLoop() {
	c.loop.AssertInLoopThread()
	if c.st == stateConnecting {
		c.st = stateDisconnected
		fd := c.removeAndResetChannel()
		_ = unix.Close(fd)
	}
}

// Restart resets backoff state and dials again. Must be called from
// the owning loop's goroutine.
func (c *Connector) Restart() {
	c.loop.AssertInLoopThread()
	c.st = stateDisconnected
	c.retryDelay = initRetryDelay
	c.connect.Set(true)
	c.startInLoop()
}

func (c *Connector) dial() {
	fd, err := unix.Socket(addrFamily(c.serverAddr), unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		c.logger.Error("connector socket() failed", rlog.Fields{"error": err.Error()})
		return
	}

	connErr := connect(fd, c.serverAddr)
	switch classifyConnectErrno(connErr) {
	case outcomeInProgress:
		c.connecting(fd)
	case outcomeRetry:
		c.retry(fd)
	case outcomeFatal:
		c.logger.Warn("connector connect() failed", rlog.Fields{
			"addr": c.serverAddr.String(), "error": errString(connErr),
		})
		_ = unix.Close(fd)
	}
}

func (c *Connector) connecting(fd int) {
	c.st = stateConnecting

	c.channel = reactor.NewChannel(c.loop, fd)
	c.channel.SetWriteCallback(c.handleWrite)
	c.channel.SetErrorCallback(c.handleError)
	c.channel.EnableWriting()
}

func (c *Connector) removeAndResetChannel() int {
	c.channel.DisableAll()
	c.channel.Remove()
	fd := c.channel.Fd()
	c.loop.QueueInLoop(func() { c.channel = nil })
	return fd
}

func (c *Connector) handleWrite() {
	if c.st != stateConnecting {
		return
	}

	fd := c.removeAndResetChannel()
	if err := inet.SocketError(fd); err != nil {
		c.logger.Warn("connector SO_ERROR after connect", rlog.Fields{"error": err.Error()})
		c.retry(fd)
		return
	}

	selfConnect, err := inet.IsSelfConnect(fd)
	if err != nil {
		c.logger.Warn("connector could not check self-connect", rlog.Fields{"error": err.Error()})
	}
	if selfConnect {
		c.logger.Warn("connector self-connect detected, retrying", nil)
		c.retry(fd)
		return
	}

	c.st = stateConnected
	if c.connect.Get() {
		if c.newConnectionCallback != nil {
			c.newConnectionCallback(fd)
		}
	} else {
		_ = unix.Close(fd)
	}
}

func (c *Connector) handleError() {
	if c.st != stateConnecting {
		return
	}
	fd := c.removeAndResetChannel()
	err := inet.SocketError(fd)
	c.logger.Warn("connector channel error", rlog.Fields{"error": errString(err)})
	c.retry(fd)
}

func (c *Connector) retry(fd int) {
	_ = unix.Close(fd)
	c.st = stateDisconnected

	if c.connect.Get() {
		c.logger.Info("connector retrying", rlog.Fields{
			"addr": c.serverAddr.String(), "delay": c.retryDelay.String(),
		})
		c.loop.RunAfter(c.retryDelay, c.startInLoop)

		c.retryDelay *= 2
		if c.retryDelay > maxRetryDelay {
			c.retryDelay = maxRetryDelay
		}
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
