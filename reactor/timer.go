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

	"github.com/coreflux/netreactor/ratomic"
)

// TimerCallback is invoked when a Timer expires.
type TimerCallback func()

var timerSequence ratomic.Counter

// Timer is a single scheduled (and possibly repeating) callback. It
// is only ever mutated from the owning TimerQueue's loop.
type Timer struct {
	callback   TimerCallback
	expiration time.Time
	interval   time.Duration
	repeat     bool
	sequence   int64

	// heapIndex is maintained by container/heap's Fix/Push/Pop.
	heapIndex int
}

// NewTimer constructs a Timer, assigning it the next globally unique
// sequence number.
func NewTimer(cb TimerCallback, when time.Time, interval time.Duration) *Timer {
	return &Timer{
		callback:   cb,
		expiration: when,
		interval:   interval,
		repeat:     interval > 0,
		sequence:   timerSequence.Next(),
	}
}

// Run invokes the timer's callback.
func (t *Timer) Run() { t.callback() }

// Expiration returns the time the timer is next due.
func (t *Timer) Expiration() time.Time { return t.expiration }

// Repeat reports whether the timer reschedules itself after firing.
func (t *Timer) Repeat() bool { return t.repeat }

// Sequence returns the timer's creation-order identity, used to
// distinguish timers that happen to share an expiration instant.
func (t *Timer) Sequence() int64 { return t.sequence }

// Restart reschedules a repeating timer interval past now.
func (t *Timer) Restart(now time.Time) {
	if t.repeat {
		t.expiration = now.Add(t.interval)
	} else {
		t.expiration = time.Time{}
	}
}

// TimerId is an opaque handle returned by RunAt/RunAfter/RunEvery,
// good for exactly one Cancel call.
type TimerId struct {
	timer    *Timer
	sequence int64
}
