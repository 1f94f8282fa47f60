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

// pollPoller is the compact, level-triggered multiplexer: a flat
// array of pollfds updated in place as channels are registered,
// modified and removed. It scales linearly in the number of descriptors, which
// is fine for small fd sets and avoids epoll's kernel-side state.
type pollPoller struct {
	loop     *EventLoop
	pollfds  []unix.PollFd
	channels map[int]*Channel
}

func newPollPoller(loop *EventLoop) *pollPoller {
	return &pollPoller{
		loop:     loop,
		channels: make(map[int]*Channel),
	}
}

func (p *pollPoller) Poll(timeoutMs int, active *[]*Channel) (time.Time, error) {
	n, err := unix.Poll(p.pollfds, timeoutMs)
	now := time.Now()
	if err != nil {
		if err == unix.EINTR {
			return now, nil
		}
		p.loop.logger.Error("poll error", rlog.Fields{"error": err.Error()})
		return now, err
	}
	if n > 0 {
		p.fillActiveChannels(active)
	}
	return now, nil
}

func (p *pollPoller) fillActiveChannels(active *[]*Channel) {
	for _, pfd := range p.pollfds {
		if pfd.Revents == 0 {
			continue
		}
		c, ok := p.channels[int(pfd.Fd)]
		if !ok {
			continue
		}
		c.SetRevents(Event(pfd.Revents))
		*active = append(*active, c)
	}
}

func (p *pollPoller) UpdateChannel(c *Channel) {
	if c.Index() < 0 {
		p.channels[c.Fd()] = c
		p.pollfds = append(p.pollfds, unix.PollFd{
			Fd:     int32(c.Fd()),
			Events: int16(c.Events()),
		})
		c.SetIndex(len(p.pollfds) - 1)
		return
	}

	idx := c.Index()
	p.pollfds[idx].Fd = int32(c.Fd())
	p.pollfds[idx].Events = int16(c.Events())
	p.pollfds[idx].Revents = 0
	if c.IsNoneEvent() {
		// parked rather than removed from the array: avoid
		// reshuffling every other channel's index.
		p.pollfds[idx].Fd = -c.Fd() - 1
	}
}

func (p *pollPoller) RemoveChannel(c *Channel) {
	idx := c.Index()
	delete(p.channels, c.Fd())
	last := len(p.pollfds) - 1
	if idx != last {
		p.pollfds[idx], p.pollfds[last] = p.pollfds[last], p.pollfds[idx]
		movedFd := p.pollfds[idx].Fd
		if movedFd < 0 {
			movedFd = -movedFd - 1
		}
		if moved, ok := p.channels[int(movedFd)]; ok {
			moved.SetIndex(idx)
		}
	}
	p.pollfds = p.pollfds[:last]
	c.SetIndex(indexNew)
}

func (p *pollPoller) HasChannel(c *Channel) bool {
	existing, ok := p.channels[c.Fd()]
	return ok && existing == c
}

func (p *pollPoller) Close() error { return nil }
