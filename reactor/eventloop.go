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
	"encoding/binary"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/coreflux/netreactor/connctx"
	"github.com/coreflux/netreactor/ratomic"
	"github.com/coreflux/netreactor/rconfig"
	"github.com/coreflux/netreactor/rlog"
	"github.com/coreflux/netreactor/rmetrics"
)

// pollTimeoutMs bounds how long a single Poll call may block, so the
// loop periodically wakes even with no registered interest and no
// pending timer and stays responsive to Quit().
const pollTimeoutMs = 10000

// Functor is a task queued to run on an EventLoop's own goroutine.
type Functor func()

// EventLoop is a single-goroutine reactor: it owns one Poller and one
// TimerQueue, and every Channel it serves must only be touched from
// its own goroutine. Build one per EventLoopThread (or use the base
// loop directly for a single-threaded server).
type EventLoop struct {
	logger rlog.Logger

	looping ratomic.Flag
	quit    ratomic.Flag

	eventHandling         ratomic.Flag
	callingPendingFunctors ratomic.Flag

	iteration int64

	goroID ratomic.Value[int64]

	pollReturnTime time.Time
	poller         Poller
	timerQueue     *TimerQueue

	wakeupFd      int
	wakeupChannel *Channel

	ctx connctx.Store

	activeChannels       []*Channel
	currentActiveChannel *Channel

	mu              sync.Mutex
	pendingFunctors []Functor

	metrics *rmetrics.Metrics
	cfg     *rconfig.Config
}

// SetMetrics wires an optional metrics sink into the loop. Passing nil
// disables instrumentation; every call site tolerates a nil sink.
func (l *EventLoop) SetMetrics(m *rmetrics.Metrics) {
	l.metrics = m
}

// Config returns the loop's resolved configuration, never nil once
// New has returned successfully.
func (l *EventLoop) Config() *rconfig.Config {
	return l.cfg
}

// New constructs an EventLoop. It does not start polling until Loop
// is called; Loop must run on the goroutine that is meant to own this
// loop for its whole lifetime. A nil cfg falls back to the
// environment-driven defaults (see rconfig.New).
func New(logger rlog.Logger, cfg *rconfig.Config) *EventLoop {
	if logger == nil {
		logger = rlog.Nop()
	}
	if cfg == nil {
		if c, err := rconfig.New(""); err == nil {
			cfg = c
		}
	}
	loop := &EventLoop{logger: logger, cfg: cfg}
	// The constructing goroutine owns the loop while the wakeup and
	// timer channels are registered below; afterwards no goroutine does
	// until Loop claims it.
	loop.goroID.Store(goroutineID())

	wakeupFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		logger.Error("eventfd failed", rlog.Fields{"error": err.Error()})
	}
	loop.wakeupFd = wakeupFd

	loop.poller = newPoller(loop)
	loop.timerQueue = newTimerQueue(loop)

	loop.wakeupChannel = NewChannel(loop, wakeupFd)
	loop.wakeupChannel.SetReadCallback(func(time.Time) { loop.handleWakeupRead() })
	loop.wakeupChannel.EnableReading()
	loop.goroID.Store(-1)

	return loop
}

// Loop runs the poll/dispatch cycle until Quit is called. It must be
// invoked exactly once, from the goroutine that will own this loop.
func (l *EventLoop) Loop() {
	l.looping.Set(true)
	l.quit.Set(false)
	l.goroID.Store(goroutineID())

	l.logger.Info("EventLoop start looping", nil)

	for !l.quit.Get() {
		l.activeChannels = l.activeChannels[:0]
		returnTime, err := l.poller.Poll(pollTimeoutMs, &l.activeChannels)
		l.metrics.PollerWaited()
		if err == nil {
			l.pollReturnTime = returnTime
		}

		l.iteration++

		l.eventHandling.Set(true)
		for _, c := range l.activeChannels {
			l.currentActiveChannel = c
			c.HandleEvent(l.pollReturnTime)
		}
		l.currentActiveChannel = nil
		l.eventHandling.Set(false)

		l.doPendingFunctors()
	}

	l.logger.Info("EventLoop stop looping", nil)
	l.looping.Set(false)
}

// Looping reports whether Loop is currently running.
func (l *EventLoop) Looping() bool { return l.looping.Get() }

// Quit asks the loop to stop after its current iteration. Safe to
// call from any goroutine.
func (l *EventLoop) Quit() {
	l.quit.Set(true)
	if !l.IsInLoopThread() {
		l.Wakeup()
	}
}

// Close releases the loop's own file descriptors (wakeup eventfd,
// timerfd, poller backend). Call only after Loop has returned; the
// calling goroutine takes over the loop for the teardown.
func (l *EventLoop) Close() error {
	l.goroID.Store(goroutineID())
	l.timerQueue.close()
	l.wakeupChannel.DisableAll()
	l.wakeupChannel.Remove()
	_ = unix.Close(l.wakeupFd)
	return l.poller.Close()
}

// PollReturnTime is the timestamp the most recent Poll call returned.
func (l *EventLoop) PollReturnTime() time.Time { return l.pollReturnTime }

// Iteration returns the number of completed poll/dispatch cycles.
func (l *EventLoop) Iteration() int64 { return l.iteration }

// RunInLoop runs cb on the loop's own goroutine: immediately if
// called from that goroutine, otherwise queued and the loop is woken.
func (l *EventLoop) RunInLoop(cb Functor) {
	if l.IsInLoopThread() {
		cb()
	} else {
		l.QueueInLoop(cb)
	}
}

// QueueInLoop appends cb to the pending queue, waking the loop if the
// call did not originate on the loop's own goroutine, or if the loop
// is already mid-drain of a previous queue (so cb isn't starved
// behind an unbounded producer on the same goroutine).
func (l *EventLoop) QueueInLoop(cb Functor) {
	l.mu.Lock()
	l.pendingFunctors = append(l.pendingFunctors, cb)
	l.mu.Unlock()

	if !l.IsInLoopThread() || l.callingPendingFunctors.Get() {
		l.Wakeup()
	}
}

// QueueSize reports how many functors are waiting to run, useful for
// backpressure monitoring.
func (l *EventLoop) QueueSize() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pendingFunctors)
}

// RunAt schedules cb to run at the given time.
func (l *EventLoop) RunAt(when time.Time, cb TimerCallback) TimerId {
	return l.timerQueue.AddTimer(cb, when, 0)
}

// RunAfter schedules cb to run after delay elapses.
func (l *EventLoop) RunAfter(delay time.Duration, cb TimerCallback) TimerId {
	return l.RunAt(time.Now().Add(delay), cb)
}

// RunEvery schedules cb to run every interval, starting one interval
// from now.
func (l *EventLoop) RunEvery(interval time.Duration, cb TimerCallback) TimerId {
	when := time.Now().Add(interval)
	return l.timerQueue.AddTimer(cb, when, interval)
}

// Cancel cancels a previously scheduled timer.
func (l *EventLoop) Cancel(id TimerId) {
	l.timerQueue.Cancel(id)
}

// Wakeup forces a blocked Poll call to return immediately.
func (l *EventLoop) Wakeup() {
	var one [8]byte
	binary.LittleEndian.PutUint64(one[:], 1)
	if _, err := unix.Write(l.wakeupFd, one[:]); err != nil {
		l.logger.Warn("EventLoop.Wakeup write failed", rlog.Fields{"error": err.Error()})
	}
}

func (l *EventLoop) handleWakeupRead() {
	var buf [8]byte
	if _, err := unix.Read(l.wakeupFd, buf[:]); err != nil {
		l.logger.Warn("EventLoop wakeup read failed", rlog.Fields{"error": err.Error()})
	}
}

func (l *EventLoop) updateChannel(c *Channel) {
	l.AssertInLoopThread()
	l.poller.UpdateChannel(c)
}

func (l *EventLoop) removeChannel(c *Channel) {
	l.AssertInLoopThread()
	if l.currentActiveChannel == c {
		l.currentActiveChannel = nil
	}
	l.poller.RemoveChannel(c)
}

// HasChannel reports whether c is currently registered with this
// loop's poller.
func (l *EventLoop) HasChannel(c *Channel) bool {
	l.AssertInLoopThread()
	return l.poller.HasChannel(c)
}

// AssertInLoopThread panics if called from any goroutine other than
// the one running Loop.
func (l *EventLoop) AssertInLoopThread() {
	if !l.IsInLoopThread() {
		panic("reactor: EventLoop method called from outside its owning goroutine")
	}
}

// IsInLoopThread reports whether the caller is the goroutine running
// this loop's Loop method.
func (l *EventLoop) IsInLoopThread() bool {
	return l.goroID.Load() == goroutineID()
}

// EventHandling reports whether the loop is currently inside a
// channel's HandleEvent call.
func (l *EventLoop) EventHandling() bool { return l.eventHandling.Get() }

// Context returns the loop-scoped context store for stashing
// arbitrary per-loop state.
func (l *EventLoop) Context() *connctx.Store { return &l.ctx }

func (l *EventLoop) doPendingFunctors() {
	l.mu.Lock()
	functors := l.pendingFunctors
	l.pendingFunctors = nil
	l.mu.Unlock()

	l.metrics.SetQueueDepth(len(functors))

	l.callingPendingFunctors.Set(true)
	for _, f := range functors {
		f()
	}
	l.callingPendingFunctors.Set(false)
}
