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

package reactor

import (
	"time"

	"github.com/coreflux/netreactor/rlog"
)

// Poller is the I/O multiplexer abstraction an EventLoop drives once
// per iteration. Implementations are not safe for concurrent use;
// every method is only ever called from the owning loop's goroutine.
type Poller interface {
	// Poll blocks up to timeoutMs milliseconds and appends every
	// channel whose registered interest became ready to active.
	// It returns the timestamp the poll call returned at.
	Poll(timeoutMs int, active *[]*Channel) (time.Time, error)
	UpdateChannel(c *Channel)
	RemoveChannel(c *Channel)
	HasChannel(c *Channel) bool
	Close() error
}

// newPoller builds the Poller selected by the loop's configured
// RNETREACTOR_POLLER value, defaulting to the epoll-backed variant,
// suited to the large fd counts a long-lived server accumulates. Set
// it to "poll" for the compact array multiplexer, better suited to a
// handful of descriptors.
func newPoller(loop *EventLoop) Poller {
	kind := ""
	if loop.cfg != nil {
		kind = loop.cfg.Poller()
	}
	switch kind {
	case "poll":
		return newPollPoller(loop)
	case "", "epoll":
		return newEpollPoller(loop)
	default:
		loop.logger.Warn("unrecognized poller kind, defaulting to epoll", rlog.Fields{"kind": kind})
		return newEpollPoller(loop)
	}
}
