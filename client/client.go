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

// Package client implements a reconnecting TCP client: a Connector
// paired with the single TcpConnection it produces, optionally
// restarting the dial on unexpected disconnect.
package client

import (
	"fmt"
	"sync"

	"github.com/coreflux/netreactor/connector"
	"github.com/coreflux/netreactor/inet"
	"github.com/coreflux/netreactor/ratomic"
	"github.com/coreflux/netreactor/reactor"
	"github.com/coreflux/netreactor/rlog"
	"github.com/coreflux/netreactor/rmetrics"
	"github.com/coreflux/netreactor/tcpconn"
)

// Client dials serverAddr and wraps the resulting fd in a
// tcpconn.Connection, optionally reconnecting if the connection
// drops after having been established.
type Client struct {
	loop      *reactor.EventLoop
	logger    rlog.Logger
	connector *connector.Connector

	name string

	connectionCallback    tcpconn.ConnectionCallback
	messageCallback       tcpconn.MessageCallback
	writeCompleteCallback tcpconn.WriteCompleteCallback

	retry   ratomic.Flag
	connect ratomic.Flag

	nextConnID int

	mu         sync.Mutex
	connection *tcpconn.Connection

	metrics *rmetrics.Metrics
}

// SetMetrics wires an optional metrics sink propagated to the
// connection this client produces. Call before Connect.
func (c *Client) SetMetrics(m *rmetrics.Metrics) {
	c.metrics = m
}

// New constructs a Client targeting serverAddr. Connect must be
// called to begin dialing.
func New(loop *reactor.EventLoop, serverAddr inet.Address, name string, logger rlog.Logger) *Client {
	if logger == nil {
		logger = rlog.Nop()
	}

	c := &Client{
		loop:               loop,
		logger:             logger,
		connector:          connector.New(loop, serverAddr, logger.Named("connector")),
		name:               name,
		connectionCallback: tcpconn.DefaultConnectionCallback,
		messageCallback:    tcpconn.DefaultMessageCallback,
		nextConnID:         1,
	}
	c.connect.Set(true)
	c.connector.SetNewConnectionCallback(c.newConnection)
	return c
}

// Loop returns the owning EventLoop.
func (c *Client) Loop() *reactor.EventLoop { return c.loop }

// Name returns the client's configured name.
func (c *Client) Name() string { return c.name }

// Connection returns the currently established connection, or nil if
// none is established.
func (c *Client) Connection() *tcpconn.Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connection
}

// EnableRetry causes the client to redial automatically if an
// established connection is later dropped.
func (c *Client) EnableRetry() { c.retry.Set(true) }

// Retry reports whether auto-reconnect is enabled.
func (c *Client) Retry() bool { return c.retry.Get() }

// SetConnectionCallback installs the handler propagated to the
// connection this client produces. Not thread safe; call before
// Connect.
func (c *Client) SetConnectionCallback(cb tcpconn.ConnectionCallback) { c.connectionCallback = cb }

// SetMessageCallback installs the handler propagated to the
// connection this client produces. Not thread safe; call before
// Connect.
func (c *Client) SetMessageCallback(cb tcpconn.MessageCallback) { c.messageCallback = cb }

// SetWriteCompleteCallback installs the handler propagated to the
// connection this client produces. Not thread safe; call before
// Connect.
func (c *Client) SetWriteCompleteCallback(cb tcpconn.WriteCompleteCallback) {
	c.writeCompleteCallback = cb
}

// Connect begins dialing.
func (c *Client) Connect() {
	c.connect.Set(true)
	c.connector.Start()
}

// Disconnect half-closes any established connection; does not stop a
// still-in-progress dial attempt.
func (c *Client) Disconnect() {
	c.connect.Set(false)

	c.mu.Lock()
	conn := c.connection
	c.mu.Unlock()

	if conn != nil {
		conn.Shutdown()
	}
}

// Stop cancels any in-progress dial attempt and suppresses retry.
func (c *Client) Stop() {
	c.connect.Set(false)
	c.connector.Stop()
}

func (c *Client) newConnection(sockfd int) {
	c.loop.AssertInLoopThread()

	peerAddr, err := inet.PeerAddr(sockfd)
	if err != nil {
		c.logger.Warn("client failed to resolve peer address", rlog.Fields{"error": err.Error()})
	}
	localAddr, err := inet.LocalAddr(sockfd)
	if err != nil {
		c.logger.Warn("client failed to resolve local address", rlog.Fields{"error": err.Error()})
	}

	connName := fmt.Sprintf("%s:%s#%d", c.name, peerAddr.String(), c.nextConnID)
	c.nextConnID++

	conn := tcpconn.New(c.loop, connName, sockfd, localAddr, peerAddr, c.logger.Named(connName))
	conn.SetMetrics(c.metrics)
	conn.SetConnectionCallback(c.connectionCallback)
	conn.SetMessageCallback(c.messageCallback)
	conn.SetWriteCompleteCallback(c.writeCompleteCallback)
	conn.SetCloseCallback(c.removeConnection)

	c.mu.Lock()
	c.connection = conn
	c.mu.Unlock()

	conn.ConnectEstablished()
}

func (c *Client) removeConnection(conn *tcpconn.Connection) {
	c.loop.AssertInLoopThread()

	c.mu.Lock()
	c.connection = nil
	c.mu.Unlock()

	c.loop.QueueInLoop(conn.ConnectDestroyed)

	if c.retry.Get() && c.connect.Get() {
		c.logger.Info("client reconnecting", rlog.Fields{"name": c.name})
		c.connector.Restart()
	}
}
