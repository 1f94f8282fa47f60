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

package buffer

import (
	"golang.org/x/sys/unix"

	"github.com/coreflux/netreactor/rerrors"
)

// ReadFd is the scatter-read entry point for the read-readable path.
// It issues a single readv against two iovecs: the buffer's own
// writable region, and a 64 KiB stack scratch area. When the incoming
// data fits entirely in the writable region the writer index simply
// advances; otherwise the writer fills completely and the residual
// bytes captured in the scratch area are appended, growing the buffer
// as needed. This absorbs up to ~64 KiB in one syscall even when the
// buffer itself is small, without preallocating that much per
// connection.
//
// Errno is surfaced out-of-band via the returned error; ReadFd never
// panics on a read failure.
func (b *Buffer) ReadFd(fd int) (int, error) {
	var extra [extraBufSize]byte
	writable := b.WritableBytes()

	iov := make([][]byte, 0, 2)
	iov = append(iov, b.buf[b.writer:])
	if writable < extraBufSize {
		iov = append(iov, extra[:])
	}

	n, err := unix.Readv(fd, iov)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return 0, rerrors.Wrap(rerrors.CodeRecoverableIO, err, "buffer: readv would block")
		}
		if err == unix.ECONNRESET {
			return 0, rerrors.Wrap(rerrors.CodePeerClosed, err, "buffer: readv connection reset")
		}
		return 0, rerrors.Wrap(rerrors.CodeFatalIO, err, "buffer: readv failed")
	}

	if n <= writable {
		b.writer += n
	} else {
		b.writer = len(b.buf)
		b.Append(extra[:n-writable])
	}

	return n, nil
}
