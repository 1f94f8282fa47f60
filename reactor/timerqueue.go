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
	"container/heap"
	"encoding/binary"
	"time"

	"golang.org/x/sys/unix"

	"github.com/coreflux/netreactor/rlog"
)

// minTimerDelta is the floor applied to "how long from now" when
// arming the timerfd: a zero or negative delta would disarm it
// instead of firing immediately.
const minTimerDelta = 100 * time.Microsecond

// TimerQueue multiplexes every scheduled callback for one EventLoop
// onto a single CLOCK_MONOTONIC timerfd, rearmed to the next-soonest
// expiration after each fire.
type TimerQueue struct {
	loop    *EventLoop
	timerfd int
	channel *Channel

	heap                 timerHeap
	activeTimers         map[int64]*Timer // keyed by sequence
	callingExpiredTimers bool
	cancelingTimers      map[int64]bool
}

func newTimerQueue(loop *EventLoop) *TimerQueue {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		loop.logger.Error("timerfd_create failed", rlog.Fields{"error": err.Error()})
	}

	tq := &TimerQueue{
		loop:         loop,
		timerfd:      fd,
		activeTimers: make(map[int64]*Timer),
	}
	tq.channel = NewChannel(loop, fd)
	tq.channel.SetReadCallback(func(time.Time) { tq.handleRead() })
	tq.channel.EnableReading()
	return tq
}

func (tq *TimerQueue) close() {
	tq.channel.DisableAll()
	tq.channel.Remove()
	_ = unix.Close(tq.timerfd)
}

// AddTimer schedules cb to run at when, repeating every interval if
// interval > 0. Safe to call from any goroutine.
func (tq *TimerQueue) AddTimer(cb TimerCallback, when time.Time, interval time.Duration) TimerId {
	timer := NewTimer(cb, when, interval)
	tq.loop.RunInLoop(func() { tq.addTimerInLoop(timer) })
	return TimerId{timer: timer, sequence: timer.sequence}
}

// Cancel prevents id's timer from firing again. Safe to call from any
// goroutine, including from within the timer's own callback.
func (tq *TimerQueue) Cancel(id TimerId) {
	tq.loop.RunInLoop(func() { tq.cancelInLoop(id) })
}

func (tq *TimerQueue) addTimerInLoop(timer *Timer) {
	earliestChanged := tq.insert(timer)
	if earliestChanged {
		tq.resetTimerfd(timer.expiration)
	}
}

func (tq *TimerQueue) cancelInLoop(id TimerId) {
	if _, ok := tq.activeTimers[id.sequence]; ok {
		delete(tq.activeTimers, id.sequence)
		for i, t := range tq.heap {
			if t.sequence == id.sequence {
				heap.Remove(&tq.heap, i)
				break
			}
		}
	} else if tq.callingExpiredTimers {
		tq.cancelingTimers[id.sequence] = true
	}
}

func (tq *TimerQueue) handleRead() {
	now := time.Now()
	readTimerfd(tq.timerfd)

	expired := tq.getExpired(now)

	tq.callingExpiredTimers = true
	tq.cancelingTimers = make(map[int64]bool)

	for _, t := range expired {
		if tq.cancelingTimers[t.sequence] {
			continue
		}
		t.Run()
		tq.loop.metrics.TimerFired()
	}
	tq.callingExpiredTimers = false

	tq.reset(expired, now)
}

func (tq *TimerQueue) getExpired(now time.Time) []*Timer {
	var expired []*Timer
	for len(tq.heap) > 0 && !tq.heap[0].expiration.After(now) {
		t := heap.Pop(&tq.heap).(*Timer)
		delete(tq.activeTimers, t.sequence)
		expired = append(expired, t)
	}
	return expired
}

func (tq *TimerQueue) reset(expired []*Timer, now time.Time) {
	for _, t := range expired {
		if t.Repeat() && !tq.cancelingTimers[t.sequence] {
			t.Restart(now)
			tq.insert(t)
		}
	}

	if len(tq.heap) > 0 {
		tq.resetTimerfd(tq.heap[0].expiration)
	}
}

func (tq *TimerQueue) insert(timer *Timer) (earliestChanged bool) {
	if len(tq.heap) == 0 || timer.expiration.Before(tq.heap[0].expiration) {
		earliestChanged = true
	}
	heap.Push(&tq.heap, timer)
	tq.activeTimers[timer.sequence] = timer
	return earliestChanged
}

func (tq *TimerQueue) resetTimerfd(expiration time.Time) {
	delta := time.Until(expiration)
	if delta < minTimerDelta {
		delta = minTimerDelta
	}

	spec := unix.ItimerSpec{
		Value: unix.NsecToTimespec(delta.Nanoseconds()),
	}
	if err := unix.TimerfdSettime(tq.timerfd, 0, &spec, nil); err != nil {
		tq.loop.logger.Error("timerfd_settime failed", rlog.Fields{"error": err.Error()})
	}
}

func readTimerfd(fd int) {
	var buf [8]byte
	_, _ = unix.Read(fd, buf[:])
	_ = binary.LittleEndian.Uint64(buf[:])
}
