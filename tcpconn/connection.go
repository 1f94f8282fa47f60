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

package tcpconn

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/coreflux/netreactor/buffer"
	"github.com/coreflux/netreactor/connctx"
	"github.com/coreflux/netreactor/inet"
	"github.com/coreflux/netreactor/reactor"
	"github.com/coreflux/netreactor/rlog"
	"github.com/coreflux/netreactor/rmetrics"
)

// defaultHighWaterMark is the output-buffer backlog threshold above
// which HighWaterMarkCallback fires by default.
const defaultHighWaterMark = 64 * 1024 * 1024

type connState int

const (
	stateConnecting connState = iota
	stateConnected
	stateDisconnecting
	stateDisconnected
)

func (s connState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateConnected:
		return "connected"
	case stateDisconnecting:
		return "disconnecting"
	case stateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Connection represents one established (or being-torn-down) TCP
// connection, used identically by server- and client-side code.
// Callers never construct one directly; TcpServer/TcpClient do.
type Connection struct {
	loop   *reactor.EventLoop
	name   string
	logger rlog.Logger

	state   connState
	reading bool

	fd      int
	channel *reactor.Channel

	localAddr inet.Address
	peerAddr  inet.Address

	connectionCallback    ConnectionCallback
	messageCallback       MessageCallback
	writeCompleteCallback WriteCompleteCallback
	highWaterMarkCallback HighWaterMarkCallback
	closeCallback         CloseCallback

	highWaterMark int

	inputBuffer  *buffer.Buffer
	outputBuffer *buffer.Buffer

	ctx connctx.Store

	metrics *rmetrics.Metrics
}

// SetMetrics wires an optional metrics sink into the connection. A nil
// sink (the default) disables instrumentation.
func (c *Connection) SetMetrics(m *rmetrics.Metrics) {
	c.metrics = m
}

// New wraps an already-accepted or already-connected socket fd. The
// connection starts in the "connecting" state; ConnectEstablished
// must be called once (by the owning server/client) to move it live.
func New(loop *reactor.EventLoop, name string, fd int, localAddr, peerAddr inet.Address, logger rlog.Logger) *Connection {
	if logger == nil {
		logger = rlog.Nop()
	}

	highWaterMark := defaultHighWaterMark
	keepAlive := true
	noDelay := true
	if cfg := loop.Config(); cfg != nil {
		if v := cfg.HighWaterMarkBytes(); v > 0 {
			highWaterMark = v
		}
		keepAlive = cfg.KeepAlive()
		noDelay = cfg.NoDelay()
	}

	c := &Connection{
		loop:          loop,
		name:          name,
		logger:        logger,
		state:         stateConnecting,
		reading:       true,
		fd:            fd,
		localAddr:     localAddr,
		peerAddr:      peerAddr,
		highWaterMark: highWaterMark,
		inputBuffer:   buffer.NewDefault(),
		outputBuffer:  buffer.NewDefault(),

		connectionCallback: DefaultConnectionCallback,
		messageCallback:    DefaultMessageCallback,
	}

	c.channel = reactor.NewChannel(loop, fd)
	c.channel.SetReadCallback(c.handleRead)
	c.channel.SetWriteCallback(c.handleWrite)
	c.channel.SetCloseCallback(c.handleClose)
	c.channel.SetErrorCallback(c.handleError)

	_ = setKeepAlive(fd, keepAlive)
	if noDelay {
		_ = setNoDelay(fd, true)
	}

	return c
}

// Loop returns the owning EventLoop.
func (c *Connection) Loop() *reactor.EventLoop { return c.loop }

// Name returns the connection's synthesized identifier.
func (c *Connection) Name() string { return c.name }

// LocalAddress returns the local endpoint.
func (c *Connection) LocalAddress() inet.Address { return c.localAddr }

// PeerAddress returns the remote endpoint.
func (c *Connection) PeerAddress() inet.Address { return c.peerAddr }

// Connected reports whether the connection is fully established.
func (c *Connection) Connected() bool { return c.state == stateConnected }

// Disconnected reports whether the connection has fully torn down.
func (c *Connection) Disconnected() bool { return c.state == stateDisconnected }

// Fd returns the underlying file descriptor.
func (c *Connection) Fd() int { return c.fd }

// InputBuffer exposes the receive buffer for advanced protocol
// parsing that needs to peek beyond MessageCallback's delivery.
func (c *Connection) InputBuffer() *buffer.Buffer { return c.inputBuffer }

// OutputBuffer exposes the pending-send buffer.
func (c *Connection) OutputBuffer() *buffer.Buffer { return c.outputBuffer }

// Context returns the per-connection key/value store for stashing
// application session state.
func (c *Connection) Context() *connctx.Store { return &c.ctx }

// IsReading reports whether read interest is currently enabled. Not
// thread safe; may race with StartRead/StopRead from another
// goroutine.
func (c *Connection) IsReading() bool { return c.reading }

// HighWaterMark returns the output-buffer backlog threshold currently
// in effect: the owning loop's configured default until
// SetHighWaterMarkCallback overrides it.
func (c *Connection) HighWaterMark() int { return c.highWaterMark }

// SetConnectionCallback installs the up/down notification handler.
func (c *Connection) SetConnectionCallback(cb ConnectionCallback) { c.connectionCallback = cb }

// SetMessageCallback installs the inbound-data handler.
func (c *Connection) SetMessageCallback(cb MessageCallback) { c.messageCallback = cb }

// SetWriteCompleteCallback installs the output-drained handler.
func (c *Connection) SetWriteCompleteCallback(cb WriteCompleteCallback) {
	c.writeCompleteCallback = cb
}

// SetHighWaterMarkCallback installs the backpressure handler, fired
// once the output backlog crosses mark bytes.
func (c *Connection) SetHighWaterMarkCallback(cb HighWaterMarkCallback, mark int) {
	c.highWaterMarkCallback = cb
	c.highWaterMark = mark
}

// SetCloseCallback installs the teardown-complete handler.
func (c *Connection) SetCloseCallback(cb CloseCallback) { c.closeCallback = cb }

// SetNoDelay toggles Nagle's algorithm.
func (c *Connection) SetNoDelay(on bool) error {
	return setNoDelay(c.fd, on)
}

// SetKeepAlive toggles SO_KEEPALIVE.
func (c *Connection) SetKeepAlive(on bool) error {
	return setKeepAlive(c.fd, on)
}

// Send queues data for delivery, dispatching to the owning loop's
// goroutine if called from elsewhere.
func (c *Connection) Send(data []byte) {
	if c.state != stateConnected {
		return
	}
	if c.loop.IsInLoopThread() {
		c.sendInLoop(data)
	} else {
		cp := append([]byte(nil), data...)
		c.loop.RunInLoop(func() { c.sendInLoop(cp) })
	}
}

// SendString is a convenience wrapper over Send.
func (c *Connection) SendString(s string) { c.Send([]byte(s)) }

// SendBuffer sends and drains buf's entire readable region.
func (c *Connection) SendBuffer(buf *buffer.Buffer) {
	if c.state != stateConnected {
		return
	}
	if c.loop.IsInLoopThread() {
		c.sendInLoop(buf.Peek())
		buf.RetrieveAll()
	} else {
		s := buf.RetrieveAllAsString()
		c.loop.RunInLoop(func() { c.sendInLoop([]byte(s)) })
	}
}

func (c *Connection) sendInLoop(data []byte) {
	c.loop.AssertInLoopThread()

	if c.state == stateDisconnected {
		c.logger.Warn("sendInLoop on a disconnected connection, dropping", nil)
		return
	}

	var nwrote int
	remaining := len(data)
	faultError := false

	if !c.channel.IsWriting() && c.outputBuffer.ReadableBytes() == 0 {
		n, err := unix.Write(c.fd, data)
		if err == nil {
			nwrote = n
			c.metrics.AddBytesOut(n)
			remaining = len(data) - n
			if remaining == 0 && c.writeCompleteCallback != nil {
				cb := c.writeCompleteCallback
				c.loop.QueueInLoop(func() { cb(c) })
			}
		} else {
			nwrote = 0
			if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
				c.logger.Warn("Connection.sendInLoop write failed", rlog.Fields{"error": err.Error()})
				if err == unix.EPIPE || err == unix.ECONNRESET {
					faultError = true
				}
			}
		}
	}

	if !faultError && remaining > 0 {
		oldLen := c.outputBuffer.ReadableBytes()
		if oldLen+remaining >= c.highWaterMark && oldLen < c.highWaterMark && c.highWaterMarkCallback != nil {
			cb := c.highWaterMarkCallback
			total := oldLen + remaining
			c.loop.QueueInLoop(func() { cb(c, total) })
		}
		c.outputBuffer.Append(data[nwrote:])
		if !c.channel.IsWriting() {
			c.channel.EnableWriting()
		}
	}
}

// Shutdown half-closes the write side once pending output has
// drained. Not safe to call concurrently with itself.
func (c *Connection) Shutdown() {
	if c.state == stateConnected {
		c.state = stateDisconnecting
		c.loop.RunInLoop(c.shutdownInLoop)
	}
}

func (c *Connection) shutdownInLoop() {
	c.loop.AssertInLoopThread()
	if !c.channel.IsWriting() {
		_ = unix.Shutdown(c.fd, unix.SHUT_WR)
	}
}

// ForceClose tears the connection down immediately, without waiting
// for pending output to drain.
func (c *Connection) ForceClose() {
	if c.state == stateConnected || c.state == stateDisconnecting {
		c.state = stateDisconnecting
		c.loop.QueueInLoop(c.forceCloseInLoop)
	}
}

// ForceCloseWithDelay tears the connection down after delay, used to
// give a final write a chance to reach the kernel buffer first.
func (c *Connection) ForceCloseWithDelay(delay time.Duration) {
	if c.state == stateConnected || c.state == stateDisconnecting {
		c.state = stateDisconnecting
		c.loop.RunAfter(delay, c.ForceClose)
	}
}

func (c *Connection) forceCloseInLoop() {
	c.loop.AssertInLoopThread()
	if c.state == stateConnected || c.state == stateDisconnecting {
		c.handleClose()
	}
}

// StartRead (re-)enables read interest.
func (c *Connection) StartRead() {
	c.loop.RunInLoop(c.startReadInLoop)
}

func (c *Connection) startReadInLoop() {
	c.loop.AssertInLoopThread()
	if !c.reading || !c.channel.IsReading() {
		c.channel.EnableReading()
		c.reading = true
	}
}

// StopRead disables read interest without touching the connection
// state machine, for manual pause/resume backpressure.
func (c *Connection) StopRead() {
	c.loop.RunInLoop(c.stopReadInLoop)
}

func (c *Connection) stopReadInLoop() {
	c.loop.AssertInLoopThread()
	if c.reading || c.channel.IsReading() {
		c.channel.DisableReading()
		c.reading = false
	}
}

// ConnectEstablished transitions a freshly wrapped fd into the
// connected state. Called exactly once by the owning server/client.
func (c *Connection) ConnectEstablished() {
	c.loop.AssertInLoopThread()
	if c.state != stateConnecting {
		panic("tcpconn: ConnectEstablished called outside connecting state")
	}
	c.state = stateConnected

	alive := c
	c.channel.Tie(func() bool { return alive.state != stateDisconnected })
	c.channel.EnableReading()

	c.metrics.ConnectionEstablished()
	c.connectionCallback(c)
}

// ConnectDestroyed tears down bookkeeping once the owner has removed
// this connection from its table. Called exactly once.
func (c *Connection) ConnectDestroyed() {
	c.loop.AssertInLoopThread()
	if c.state == stateConnected {
		c.state = stateDisconnected
		c.channel.DisableAll()
		c.metrics.ConnectionClosed()
		c.connectionCallback(c)
	}
	c.channel.Remove()
}

func (c *Connection) handleRead(receiveTime time.Time) {
	c.loop.AssertInLoopThread()

	n, err := c.inputBuffer.ReadFd(c.fd)
	switch {
	case n > 0:
		c.metrics.AddBytesIn(n)
		c.messageCallback(c, c.inputBuffer, receiveTime)
	case n == 0 && err == nil:
		c.handleClose()
	default:
		c.logger.Warn("Connection.handleRead failed", rlog.Fields{"error": errString(err)})
		c.handleError()
	}
}

func (c *Connection) handleWrite() {
	c.loop.AssertInLoopThread()
	if !c.channel.IsWriting() {
		c.logger.Info("Connection is down, no more writing", rlog.Fields{"fd": c.fd})
		return
	}

	n, err := unix.Write(c.fd, c.outputBuffer.Peek())
	if err != nil {
		c.logger.Warn("Connection.handleWrite failed", rlog.Fields{"error": err.Error()})
		return
	}

	c.metrics.AddBytesOut(n)
	c.outputBuffer.Retrieve(n)
	if c.outputBuffer.ReadableBytes() == 0 {
		c.channel.DisableWriting()
		if c.writeCompleteCallback != nil {
			cb := c.writeCompleteCallback
			c.loop.QueueInLoop(func() { cb(c) })
		}
		if c.state == stateDisconnecting {
			c.shutdownInLoop()
		}
	}
}

func (c *Connection) handleClose() {
	c.loop.AssertInLoopThread()
	c.logger.Info("Connection closing", rlog.Fields{"fd": c.fd, "state": c.state.String()})

	if c.state != stateConnected && c.state != stateDisconnecting {
		return
	}
	c.state = stateDisconnected
	c.channel.DisableAll()

	c.metrics.ConnectionClosed()
	c.connectionCallback(c)
	if c.closeCallback != nil {
		c.closeCallback(c)
	}
}

func (c *Connection) handleError() {
	err := inet.SocketError(c.fd)
	c.logger.Warn("Connection.handleError", rlog.Fields{"name": c.name, "error": errString(err)})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
