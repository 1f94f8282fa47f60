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

package connector

import (
	"golang.org/x/sys/unix"

	"github.com/coreflux/netreactor/inet"
)

func addrFamily(addr inet.Address) int {
	if addr.V6 {
		return unix.AF_INET6
	}
	return unix.AF_INET
}

func connect(fd int, addr inet.Address) error {
	if addr.V6 {
		var a unix.SockaddrInet6
		a.Port = int(addr.Port)
		copy(a.Addr[:], addr.IP.To16())
		return unix.Connect(fd, &a)
	}
	var a unix.SockaddrInet4
	a.Port = int(addr.Port)
	copy(a.Addr[:], addr.IP.To4())
	return unix.Connect(fd, &a)
}

type connectOutcome int

const (
	outcomeInProgress connectOutcome = iota
	outcomeRetry
	outcomeFatal
)

// classifyConnectErrno sorts a non-blocking connect's errno into three
// buckets: EINPROGRESS (the expected case) and a handful of
// transient/races mean keep going and wait for writability; some
// errnos are worth retrying after backoff; the rest are non-retryable
// configuration errors.
func classifyConnectErrno(err error) connectOutcome {
	if err == nil {
		return outcomeInProgress
	}
	switch err {
	case unix.EINPROGRESS, unix.EINTR, unix.EISCONN:
		return outcomeInProgress
	case unix.EAGAIN, unix.EADDRINUSE, unix.EADDRNOTAVAIL, unix.ECONNREFUSED, unix.ENETUNREACH:
		return outcomeRetry
	case unix.EACCES, unix.EPERM, unix.EAFNOSUPPORT, unix.EALREADY, unix.EBADF, unix.EFAULT, unix.ENOTSOCK:
		return outcomeFatal
	default:
		return outcomeFatal
	}
}
