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

// Package tcpconn implements the TCP connection abstraction shared by
// server- and client-accepted connections: buffered, callback-driven
// send/receive with high-water-mark backpressure and a half-close
// aware shutdown sequence.
package tcpconn

import (
	"time"

	"github.com/coreflux/netreactor/buffer"
	"github.com/coreflux/netreactor/rlog"
)

// ConnectionCallback fires once a connection becomes established, and
// again when it goes down (check Connected()).
type ConnectionCallback func(conn *Connection)

// MessageCallback fires when bytes are available in the input buffer.
type MessageCallback func(conn *Connection, buf *buffer.Buffer, receiveTime time.Time)

// WriteCompleteCallback fires once the output buffer has fully
// drained to the kernel.
type WriteCompleteCallback func(conn *Connection)

// HighWaterMarkCallback fires when the output buffer's backlog
// crosses the configured high-water mark, carrying the backlog size.
type HighWaterMarkCallback func(conn *Connection, backlog int)

// CloseCallback fires once the connection is fully torn down; owners
// (TcpServer/TcpClient) use it to drop their reference.
type CloseCallback func(conn *Connection)

// DefaultConnectionCallback just logs; it never closes the connection,
// since some users only want a MessageCallback.
func DefaultConnectionCallback(conn *Connection) {
	conn.logger.Info("connection state changed", loggerFields(conn))
}

// DefaultMessageCallback discards whatever arrived. Install a real
// MessageCallback; this exists only as a non-nil safe default.
func DefaultMessageCallback(conn *Connection, buf *buffer.Buffer, _ time.Time) {
	buf.RetrieveAll()
}

func loggerFields(conn *Connection) rlog.Fields {
	return rlog.Fields{
		"name":  conn.name,
		"local": conn.localAddr.String(),
		"peer":  conn.peerAddr.String(),
		"up":    conn.Connected(),
	}
}
