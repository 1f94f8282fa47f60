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

// Package fdlimit queries and raises the process's open-file descriptor
// limit. The Acceptor's fd-exhaustion recovery needs to know the
// current ceiling to reason about EMFILE/ENFILE, and operators
// embedding the reactor in a long-lived server typically want to raise
// the soft limit toward the hard limit at startup.
package fdlimit

import (
	"math"
	"syscall"
)

// Current returns the process's current (soft) and maximum (hard) open
// file descriptor limits.
func Current() (soft, hard int, err error) {
	return adjust(0)
}

// Raise attempts to increase the soft limit to want, never decreasing
// it. It returns the resulting soft and hard limits. Raising above the
// existing hard limit requires elevated privileges and may fail.
func Raise(want int) (soft, hard int, err error) {
	return adjust(want)
}

// Lower sets the soft limit to want, which must not exceed the
// current hard limit. Used to reproduce descriptor pressure
// deliberately (e.g. in tests exercising the Acceptor's EMFILE
// recovery path) rather than waiting for it to occur naturally.
func Lower(want int) (soft, hard int, err error) {
	var rl syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rl); err != nil {
		return 0, 0, err
	}
	rl.Cur = uint64(want)
	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rl); err != nil {
		return 0, 0, err
	}
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rl); err != nil {
		return 0, 0, err
	}
	s, h := clampPair(rl.Cur, rl.Max)
	return s, h, nil
}

func adjust(want int) (int, int, error) {
	var rl syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rl); err != nil {
		return 0, 0, err
	}

	if want <= 0 || uint64(want) <= rl.Cur {
		soft, hard := clampPair(rl.Cur, rl.Max)
		return soft, hard, nil
	}

	if uint64(want) > rl.Max {
		rl.Max = uint64(want)
	}
	rl.Cur = uint64(want)

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rl); err != nil {
		return 0, 0, err
	}

	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rl); err != nil {
		return 0, 0, err
	}
	soft, hard := clampPair(rl.Cur, rl.Max)
	return soft, hard, nil
}

func clampPair(cur, max uint64) (int, int) {
	return clamp(cur), clamp(max)
}

func clamp(v uint64) int {
	if v > uint64(math.MaxInt) {
		return math.MaxInt
	}
	return int(v)
}
