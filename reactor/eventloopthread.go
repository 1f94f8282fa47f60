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
	"github.com/coreflux/netreactor/rconfig"
	"github.com/coreflux/netreactor/rlog"
)

// ThreadInitCallback runs on a new loop's own goroutine just before it
// starts looping, letting callers attach per-loop state.
type ThreadInitCallback func(*EventLoop)

// EventLoopThread spins up a goroutine running exactly one EventLoop
// and hands back a pointer to it once the loop is ready to accept
// channels. It is the unit EventLoopThreadPool multiplies.
type EventLoopThread struct {
	loop     *EventLoop
	name     string
	callback ThreadInitCallback
	logger   rlog.Logger
	cfg      *rconfig.Config

	ready chan *EventLoop
	done  chan struct{}
}

// NewEventLoopThread constructs a thread that has not started yet;
// call StartLoop to launch its goroutine. cfg is propagated to the
// EventLoop the thread constructs, so sub-loops share the pool's
// configuration.
func NewEventLoopThread(cb ThreadInitCallback, name string, logger rlog.Logger, cfg *rconfig.Config) *EventLoopThread {
	if logger == nil {
		logger = rlog.Nop()
	}
	return &EventLoopThread{
		name:     name,
		callback: cb,
		logger:   logger,
		cfg:      cfg,
		ready:    make(chan *EventLoop, 1),
		done:     make(chan struct{}),
	}
}

// StartLoop launches the owning goroutine and blocks until its
// EventLoop has been constructed and is ready to serve channels.
func (t *EventLoopThread) StartLoop() *EventLoop {
	go t.threadFunc()
	t.loop = <-t.ready
	return t.loop
}

// Join blocks until the thread's Loop() call has returned, i.e. until
// some caller has Quit the loop this thread owns.
func (t *EventLoopThread) Join() {
	<-t.done
}

func (t *EventLoopThread) threadFunc() {
	loop := New(t.logger.Named(t.name), t.cfg)

	if t.callback != nil {
		t.callback(loop)
	}

	t.ready <- loop
	loop.Loop()
	close(t.done)
}
