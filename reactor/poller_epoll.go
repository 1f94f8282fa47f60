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

	"golang.org/x/sys/unix"

	"github.com/coreflux/netreactor/rlog"
)

// initEventListSize is the epoll_wait event buffer's starting
// capacity; it doubles whenever a poll call fills it completely.
const initEventListSize = 16

// epollPoller is the readiness-notification multiplexer: registration
// lives in the kernel, so a poll call costs O(ready fds) rather than
// O(registered fds), which matters once a server holds thousands of
// idle connections.
type epollPoller struct {
	loop     *EventLoop
	epollfd  int
	events   []unix.EpollEvent
	channels map[int]*Channel
}

func newEpollPoller(loop *EventLoop) *epollPoller {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		loop.logger.Error("epoll_create1 failed", rlog.Fields{"error": err.Error()})
	}
	return &epollPoller{
		loop:     loop,
		epollfd:  fd,
		events:   make([]unix.EpollEvent, initEventListSize),
		channels: make(map[int]*Channel),
	}
}

func (p *epollPoller) Poll(timeoutMs int, active *[]*Channel) (time.Time, error) {
	n, err := unix.EpollWait(p.epollfd, p.events, timeoutMs)
	now := time.Now()
	if err != nil {
		if err == unix.EINTR {
			return now, nil
		}
		p.loop.logger.Error("epoll_wait error", rlog.Fields{"error": err.Error()})
		return now, err
	}
	if n > 0 {
		p.fillActiveChannels(n, active)
		if n == len(p.events) {
			p.events = make([]unix.EpollEvent, len(p.events)*2)
		}
	}
	return now, nil
}

func (p *epollPoller) fillActiveChannels(n int, active *[]*Channel) {
	for i := 0; i < n; i++ {
		fd := int(p.events[i].Fd)
		c, ok := p.channels[fd]
		if !ok {
			continue
		}
		c.SetRevents(Event(p.events[i].Events))
		*active = append(*active, c)
	}
}

func (p *epollPoller) UpdateChannel(c *Channel) {
	idx := c.Index()
	if idx == indexNew || idx == indexDeleted {
		fd := c.Fd()
		if idx == indexNew {
			p.channels[fd] = c
		}
		c.SetIndex(indexAdded)
		p.update(unix.EPOLL_CTL_ADD, c)
		return
	}

	if c.IsNoneEvent() {
		p.update(unix.EPOLL_CTL_DEL, c)
		c.SetIndex(indexDeleted)
	} else {
		p.update(unix.EPOLL_CTL_MOD, c)
	}
}

func (p *epollPoller) RemoveChannel(c *Channel) {
	fd := c.Fd()
	delete(p.channels, fd)

	if c.Index() == indexAdded {
		p.update(unix.EPOLL_CTL_DEL, c)
	}
	c.SetIndex(indexNew)
}

func (p *epollPoller) HasChannel(c *Channel) bool {
	existing, ok := p.channels[c.Fd()]
	return ok && existing == c
}

func (p *epollPoller) update(op int, c *Channel) {
	var ev unix.EpollEvent
	ev.Events = uint32(c.Events())
	ev.Fd = int32(c.Fd())

	if err := unix.EpollCtl(p.epollfd, op, c.Fd(), &ev); err != nil {
		p.loop.logger.Error("epoll_ctl failed", rlog.Fields{
			"op":    epollOpString(op),
			"fd":    c.Fd(),
			"error": err.Error(),
		})
	}
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epollfd)
}

func epollOpString(op int) string {
	switch op {
	case unix.EPOLL_CTL_ADD:
		return "ADD"
	case unix.EPOLL_CTL_DEL:
		return "DEL"
	case unix.EPOLL_CTL_MOD:
		return "MOD"
	default:
		return "UNKNOWN"
	}
}
