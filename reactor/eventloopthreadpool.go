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
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/coreflux/netreactor/rlog"
)

// EventLoopThreadPool fans connections out across N sub-loops on
// their own goroutines, with the base loop (typically the Acceptor's
// loop) falling back as the sole loop when numThreads is zero.
type EventLoopThreadPool struct {
	baseLoop *EventLoop
	name     string
	logger   rlog.Logger

	started    bool
	stopped    bool
	numThreads int
	next       int

	threads []*EventLoopThread
	loops   []*EventLoop
}

// NewEventLoopThreadPool constructs a pool bound to baseLoop, which
// must already be running (or about to run) on its own goroutine. Its
// sub-loops inherit baseLoop's configuration.
func NewEventLoopThreadPool(baseLoop *EventLoop, name string, logger rlog.Logger) *EventLoopThreadPool {
	if logger == nil {
		logger = rlog.Nop()
	}
	return &EventLoopThreadPool{baseLoop: baseLoop, name: name, logger: logger}
}

// SetThreadNum sets how many sub-loops Start spins up. Zero means
// every connection is served from baseLoop directly.
func (p *EventLoopThreadPool) SetThreadNum(n int) { p.numThreads = n }

// Start launches numThreads sub-loops, invoking cb (if non-nil) on
// each right before it starts looping. Must be called from
// baseLoop's own goroutine.
func (p *EventLoopThreadPool) Start(cb ThreadInitCallback) {
	if p.started {
		panic("reactor: EventLoopThreadPool.Start called twice")
	}
	p.baseLoop.AssertInLoopThread()
	p.started = true

	p.threads = make([]*EventLoopThread, p.numThreads)
	p.loops = make([]*EventLoop, p.numThreads)

	var g errgroup.Group
	for i := 0; i < p.numThreads; i++ {
		i := i
		name := fmt.Sprintf("%s%d", p.name, i)
		t := NewEventLoopThread(cb, name, p.logger, p.baseLoop.Config())
		p.threads[i] = t
		g.Go(func() error {
			p.loops[i] = t.StartLoop()
			return nil
		})
	}
	_ = g.Wait()

	if p.numThreads == 0 && cb != nil {
		cb(p.baseLoop)
	}
}

// Stop quits every sub-loop and blocks until each one's Loop() call
// has returned, releasing their pollers and fds. The base loop is not
// touched; its owner is responsible for that. Idempotent and safe to
// call even if Start was never called.
func (p *EventLoopThreadPool) Stop() {
	if p.stopped {
		return
	}
	p.stopped = true

	for _, loop := range p.loops {
		loop.Quit()
	}
	for i, t := range p.threads {
		t.Join()
		if err := p.loops[i].Close(); err != nil {
			p.logger.Warn("sub-loop close failed", rlog.Fields{"error": err.Error()})
		}
	}
}

// GetNextLoop returns loops in round-robin order, or baseLoop if the
// pool has no sub-loops.
func (p *EventLoopThreadPool) GetNextLoop() *EventLoop {
	p.baseLoop.AssertInLoopThread()
	if !p.started {
		panic("reactor: EventLoopThreadPool.GetNextLoop called before Start")
	}

	if len(p.loops) == 0 {
		return p.baseLoop
	}

	loop := p.loops[p.next]
	p.next++
	if p.next >= len(p.loops) {
		p.next = 0
	}
	return loop
}

// GetLoopForHash deterministically maps hashCode onto one of the
// pool's sub-loops, or baseLoop if there are none — useful for
// keeping all traffic for a given key on the same loop.
func (p *EventLoopThreadPool) GetLoopForHash(hashCode uint64) *EventLoop {
	p.baseLoop.AssertInLoopThread()
	if len(p.loops) == 0 {
		return p.baseLoop
	}
	return p.loops[hashCode%uint64(len(p.loops))]
}

// GetAllLoops returns every loop in the pool, or just baseLoop if the
// pool has no sub-loops.
func (p *EventLoopThreadPool) GetAllLoops() []*EventLoop {
	p.baseLoop.AssertInLoopThread()
	if len(p.loops) == 0 {
		return []*EventLoop{p.baseLoop}
	}
	return p.loops
}
