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

// Package reactor implements the non-blocking event loop at the heart
// of the framework: Channel, Poller (poll- and epoll-backed), the
// timerfd-driven TimerQueue, EventLoop itself, and the
// EventLoopThreadPool used to fan connections out across loops. These
// are kept in one package because they are as tightly coupled as
// friend classes: an EventLoop owns a Poller and a TimerQueue and is
// the only thing a Channel ever talks to.
package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// Event is the poll(2)-compatible interest/ready bitmask shared by
// both Poller backends — on Linux the EPOLL* constants have the same
// numeric values as their POLL* counterparts, so one mask type serves
// both.
type Event int32

const (
	EventNone     Event = 0
	EventRead     Event = unix.POLLIN | unix.POLLPRI
	EventWrite    Event = unix.POLLOUT
	EventErr      Event = unix.POLLERR
	EventHup      Event = unix.POLLHUP
	EventInvalid  Event = unix.POLLNVAL
	EventReadHup  Event = unix.POLLRDHUP
	EventPriority Event = unix.POLLPRI
)

// EventCallback handles a channel event with no associated payload.
type EventCallback func()

// ReadEventCallback handles a read-ready event, receiving the
// poller's receive timestamp.
type ReadEventCallback func(receiveTime time.Time)

// channel index states, used by both Poller backends to track
// registration lifecycle without a second lookup structure.
const (
	indexNew     = -1
	indexAdded   = 1
	indexDeleted = 2
)

// Channel binds one file descriptor's interest mask and callbacks to
// its owning EventLoop. It does not own the fd's lifetime — the
// Acceptor, Connector or TcpConnection that created the descriptor is
// responsible for closing it.
type Channel struct {
	loop *EventLoop
	fd   int

	events  Event
	revents Event
	index   int

	tied    bool
	aliveFn func() bool

	eventHandling bool
	addedToLoop   bool

	readCallback  ReadEventCallback
	writeCallback EventCallback
	closeCallback EventCallback
	errorCallback EventCallback
}

// NewChannel creates a Channel for fd, owned by loop. The channel has
// no interest registered until EnableReading/EnableWriting is called.
func NewChannel(loop *EventLoop, fd int) *Channel {
	return &Channel{loop: loop, fd: fd, index: indexNew}
}

// Fd returns the underlying file descriptor.
func (c *Channel) Fd() int { return c.fd }

// Events returns the currently registered interest mask.
func (c *Channel) Events() Event { return c.events }

// SetRevents records the mask the poller observed as ready; it is
// poller-private state, exported only because both poller backends
// live in this package.
func (c *Channel) SetRevents(revt Event) { c.revents = revt }

// IsNoneEvent reports whether the channel has no registered interest.
func (c *Channel) IsNoneEvent() bool { return c.events == EventNone }

// EnableReading registers read interest and pushes the change to the
// owning loop's poller.
func (c *Channel) EnableReading() {
	c.events |= EventRead
	c.update()
}

// DisableReading clears read interest.
func (c *Channel) DisableReading() {
	c.events &^= EventRead
	c.update()
}

// EnableWriting registers write interest.
func (c *Channel) EnableWriting() {
	c.events |= EventWrite
	c.update()
}

// DisableWriting clears write interest.
func (c *Channel) DisableWriting() {
	c.events &^= EventWrite
	c.update()
}

// DisableAll clears all interest, short of calling Remove.
func (c *Channel) DisableAll() {
	c.events = EventNone
	c.update()
}

// IsWriting reports whether write interest is currently registered.
func (c *Channel) IsWriting() bool { return c.events&EventWrite != 0 }

// IsReading reports whether read interest is currently registered.
func (c *Channel) IsReading() bool { return c.events&EventRead != 0 }

// Index is the Poller-private registration slot/state, exposed only
// for the Poller implementations in this package.
func (c *Channel) Index() int { return c.index }

// SetIndex sets the Poller-private registration slot/state.
func (c *Channel) SetIndex(idx int) { c.index = idx }

// OwnerLoop returns the EventLoop this channel is registered with.
func (c *Channel) OwnerLoop() *EventLoop { return c.loop }

func (c *Channel) update() {
	c.addedToLoop = true
	c.loop.updateChannel(c)
}

// Remove detaches the channel from its owning loop and poller. The
// channel must have no registered interest first.
func (c *Channel) Remove() {
	if !c.IsNoneEvent() {
		panic("reactor: Channel.Remove called with a registered interest")
	}
	c.addedToLoop = false
	c.loop.removeChannel(c)
}

// SetReadCallback installs the read-ready handler.
func (c *Channel) SetReadCallback(cb ReadEventCallback) { c.readCallback = cb }

// SetWriteCallback installs the write-ready handler.
func (c *Channel) SetWriteCallback(cb EventCallback) { c.writeCallback = cb }

// SetCloseCallback installs the peer-hang-up handler.
func (c *Channel) SetCloseCallback(cb EventCallback) { c.closeCallback = cb }

// SetErrorCallback installs the error/invalid-descriptor handler.
func (c *Channel) SetErrorCallback(cb EventCallback) { c.errorCallback = cb }

// Tie binds the channel's lifetime to aliveFn, typically a method on
// the owning TcpConnection reporting whether it is still reachable.
// HandleEvent consults it before dispatching: Go's GC keeps the
// connection alive on its own, but the connection may already be
// logically torn down even while still referenced.
func (c *Channel) Tie(aliveFn func() bool) {
	c.aliveFn = aliveFn
	c.tied = true
}

// HandleEvent dispatches the received event mask to the registered
// callbacks. If tied, a dead owner suppresses dispatch entirely.
func (c *Channel) HandleEvent(receiveTime time.Time) {
	if c.tied && !c.aliveFn() {
		return
	}
	c.handleEventWithGuard(receiveTime)
}

func (c *Channel) handleEventWithGuard(receiveTime time.Time) {
	c.eventHandling = true
	defer func() { c.eventHandling = false }()

	if c.revents&EventHup != 0 && c.revents&EventRead == 0 {
		if c.closeCallback != nil {
			c.closeCallback()
		}
	}

	if c.revents&(EventErr|EventInvalid) != 0 {
		if c.errorCallback != nil {
			c.errorCallback()
		}
	}

	if c.revents&(EventRead|EventPriority|EventReadHup) != 0 {
		if c.readCallback != nil {
			c.readCallback(receiveTime)
		}
	}

	if c.revents&EventWrite != 0 {
		if c.writeCallback != nil {
			c.writeCallback()
		}
	}
}
