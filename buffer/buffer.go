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

// Package buffer implements the application-layer byte buffer that
// fronts every TcpConnection's read and write path. A Buffer is a
// contiguous byte slice split into three regions:
//
//	+-------------------+------------------+------------------+
//	| prependable bytes  |  readable bytes  |  writable bytes  |
//	+-------------------+------------------+------------------+
//	0              readerIndex        writerIndex            len
//
// The prependable region lets a caller stamp a length header onto an
// already-built payload without a second allocation.
package buffer

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// CheapPrepend is the default size of the prependable region.
const CheapPrepend = 8

// InitialSize is the default size of the writable region at
// construction.
const InitialSize = 1024

// extraBufSize is the size of the stack scratch buffer readFd spills
// into when the writable region is smaller than a single read.
const extraBufSize = 65536

var crlf = []byte("\r\n")

// Buffer is not safe for concurrent use; each TcpConnection owns its
// input and output Buffer exclusively from its single loop thread.
type Buffer struct {
	buf    []byte
	reader int
	writer int
}

// New returns a Buffer with the given initial writable capacity.
func New(initialSize int) *Buffer {
	if initialSize < 0 {
		initialSize = InitialSize
	}
	return &Buffer{
		buf:    make([]byte, CheapPrepend+initialSize),
		reader: CheapPrepend,
		writer: CheapPrepend,
	}
}

// NewDefault returns a Buffer sized per InitialSize.
func NewDefault() *Buffer { return New(InitialSize) }

// ReadableBytes returns the number of bytes available to read.
func (b *Buffer) ReadableBytes() int { return b.writer - b.reader }

// WritableBytes returns the number of bytes available to write.
func (b *Buffer) WritableBytes() int { return len(b.buf) - b.writer }

// PrependableBytes returns the size of the unused headroom before the
// readable region.
func (b *Buffer) PrependableBytes() int { return b.reader }

// Peek returns the readable region without consuming it. The returned
// slice aliases the buffer and is invalidated by any mutating call.
func (b *Buffer) Peek() []byte { return b.buf[b.reader:b.writer] }

// BeginWrite returns the writable region without consuming it. The
// returned slice aliases the buffer and is invalidated by any
// mutating call.
func (b *Buffer) BeginWrite() []byte { return b.buf[b.writer:] }

// HasWritten records that n bytes were written directly into the
// slice returned by BeginWrite.
func (b *Buffer) HasWritten(n int) {
	if n > b.WritableBytes() {
		panic("buffer: HasWritten exceeds writable bytes")
	}
	b.writer += n
}

// Unwrite retracts the last n bytes written, e.g. to undo a
// speculative append.
func (b *Buffer) Unwrite(n int) {
	if n > b.ReadableBytes() {
		panic("buffer: Unwrite exceeds readable bytes")
	}
	b.writer -= n
}

// FindCRLF returns the index (relative to Peek) of the first "\r\n" in
// the readable region, or -1 if absent.
func (b *Buffer) FindCRLF() int {
	return bytes.Index(b.Peek(), crlf)
}

// FindEOL returns the index (relative to Peek) of the first '\n' in
// the readable region, or -1 if absent.
func (b *Buffer) FindEOL() int {
	return bytes.IndexByte(b.Peek(), '\n')
}

// Retrieve consumes n bytes from the readable region.
func (b *Buffer) Retrieve(n int) {
	if n > b.ReadableBytes() {
		panic("buffer: Retrieve exceeds readable bytes")
	}
	if n < b.ReadableBytes() {
		b.reader += n
	} else {
		b.RetrieveAll()
	}
}

// RetrieveUntil consumes bytes up to (not including) the given offset
// into the readable region, as returned by FindCRLF/FindEOL.
func (b *Buffer) RetrieveUntil(offset int) {
	b.Retrieve(offset)
}

// RetrieveAll consumes the entire readable region and resets both
// indices back to the prependable boundary.
func (b *Buffer) RetrieveAll() {
	b.reader = CheapPrepend
	b.writer = CheapPrepend
}

// RetrieveAsString consumes n bytes from the readable region and
// returns them as a string.
func (b *Buffer) RetrieveAsString(n int) string {
	if n > b.ReadableBytes() {
		panic("buffer: RetrieveAsString exceeds readable bytes")
	}
	s := string(b.buf[b.reader : b.reader+n])
	b.Retrieve(n)
	return s
}

// RetrieveAllAsString consumes the entire readable region and returns
// it as a string.
func (b *Buffer) RetrieveAllAsString() string {
	return b.RetrieveAsString(b.ReadableBytes())
}

// RetrieveInt8 consumes a single byte.
func (b *Buffer) RetrieveInt8() { b.Retrieve(1) }

// RetrieveInt16 consumes two bytes.
func (b *Buffer) RetrieveInt16() { b.Retrieve(2) }

// RetrieveInt32 consumes four bytes.
func (b *Buffer) RetrieveInt32() { b.Retrieve(4) }

// RetrieveInt64 consumes eight bytes.
func (b *Buffer) RetrieveInt64() { b.Retrieve(8) }

// Append copies data into the writable region, growing or compacting
// the buffer first if necessary.
func (b *Buffer) Append(data []byte) {
	b.EnsureWritable(len(data))
	n := copy(b.buf[b.writer:], data)
	b.HasWritten(n)
}

// AppendString is a convenience wrapper over Append.
func (b *Buffer) AppendString(s string) { b.Append([]byte(s)) }

// EnsureWritable grows or compacts the buffer so that at least n bytes
// are writable.
func (b *Buffer) EnsureWritable(n int) {
	if b.WritableBytes() < n {
		b.makeSpace(n)
	}
}

// makeSpace follows a two-path growth policy: if the combined
// writable and prependable space (beyond the cheap prepend reserve)
// is too small, grow the backing slice; otherwise compact by sliding
// the readable region back to the cheap prepend boundary.
func (b *Buffer) makeSpace(n int) {
	if b.WritableBytes()+b.PrependableBytes() < n+CheapPrepend {
		newBuf := make([]byte, b.writer+n)
		copy(newBuf, b.buf)
		b.buf = newBuf
		return
	}
	readable := b.ReadableBytes()
	copy(b.buf[CheapPrepend:], b.buf[b.reader:b.writer])
	b.reader = CheapPrepend
	b.writer = b.reader + readable
}

// AppendInt64 appends x in network byte order.
func (b *Buffer) AppendInt64(x int64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(x))
	b.Append(tmp[:])
}

// AppendInt32 appends x in network byte order.
func (b *Buffer) AppendInt32(x int32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(x))
	b.Append(tmp[:])
}

// AppendInt16 appends x in network byte order.
func (b *Buffer) AppendInt16(x int16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], uint16(x))
	b.Append(tmp[:])
}

// AppendInt8 appends a single byte.
func (b *Buffer) AppendInt8(x int8) {
	b.Append([]byte{byte(x)})
}

var errShortBuffer = errors.New("buffer: readable region too short")

// PeekInt64 returns the leading 8 readable bytes as a host-order
// int64, without consuming them.
func (b *Buffer) PeekInt64() (int64, error) {
	if b.ReadableBytes() < 8 {
		return 0, errShortBuffer
	}
	return int64(binary.BigEndian.Uint64(b.Peek())), nil
}

// PeekInt32 returns the leading 4 readable bytes as a host-order
// int32, without consuming them.
func (b *Buffer) PeekInt32() (int32, error) {
	if b.ReadableBytes() < 4 {
		return 0, errShortBuffer
	}
	return int32(binary.BigEndian.Uint32(b.Peek())), nil
}

// PeekInt16 returns the leading 2 readable bytes as a host-order
// int16, without consuming them.
func (b *Buffer) PeekInt16() (int16, error) {
	if b.ReadableBytes() < 2 {
		return 0, errShortBuffer
	}
	return int16(binary.BigEndian.Uint16(b.Peek())), nil
}

// PeekInt8 returns the leading readable byte as an int8, without
// consuming it.
func (b *Buffer) PeekInt8() (int8, error) {
	if b.ReadableBytes() < 1 {
		return 0, errShortBuffer
	}
	return int8(b.Peek()[0]), nil
}

// ReadInt64 peeks and consumes 8 bytes in one step.
func (b *Buffer) ReadInt64() (int64, error) {
	v, err := b.PeekInt64()
	if err != nil {
		return 0, err
	}
	b.RetrieveInt64()
	return v, nil
}

// ReadInt32 peeks and consumes 4 bytes in one step.
func (b *Buffer) ReadInt32() (int32, error) {
	v, err := b.PeekInt32()
	if err != nil {
		return 0, err
	}
	b.RetrieveInt32()
	return v, nil
}

// ReadInt16 peeks and consumes 2 bytes in one step.
func (b *Buffer) ReadInt16() (int16, error) {
	v, err := b.PeekInt16()
	if err != nil {
		return 0, err
	}
	b.RetrieveInt16()
	return v, nil
}

// ReadInt8 peeks and consumes 1 byte in one step.
func (b *Buffer) ReadInt8() (int8, error) {
	v, err := b.PeekInt8()
	if err != nil {
		return 0, err
	}
	b.RetrieveInt8()
	return v, nil
}

// Prepend writes data immediately before the readable region, e.g. to
// stamp a length header onto an already-built payload. len(data) must
// not exceed PrependableBytes.
func (b *Buffer) Prepend(data []byte) {
	if len(data) > b.PrependableBytes() {
		panic("buffer: Prepend exceeds prependable bytes")
	}
	b.reader -= len(data)
	copy(b.buf[b.reader:], data)
}

// PrependInt64 prepends x in network byte order.
func (b *Buffer) PrependInt64(x int64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(x))
	b.Prepend(tmp[:])
}

// PrependInt32 prepends x in network byte order.
func (b *Buffer) PrependInt32(x int32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(x))
	b.Prepend(tmp[:])
}

// PrependInt16 prepends x in network byte order.
func (b *Buffer) PrependInt16(x int16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], uint16(x))
	b.Prepend(tmp[:])
}

// PrependInt8 prepends a single byte.
func (b *Buffer) PrependInt8(x int8) {
	b.Prepend([]byte{byte(x)})
}

// InternalCapacity returns the size of the backing slice, for
// diagnostics.
func (b *Buffer) InternalCapacity() int { return len(b.buf) }

// Shrink rebuilds the buffer so that exactly reserve bytes remain
// writable beyond the current readable content, releasing any
// excess capacity accumulated from prior growth.
func (b *Buffer) Shrink(reserve int) {
	other := New(b.ReadableBytes() + reserve)
	other.Append(b.Peek())
	*b = *other
}

// Reader exposes an io.Reader-compatible byte source over the
// readable region, consuming bytes as they are read.
func (b *Buffer) Read(p []byte) (int, error) {
	n := copy(p, b.Peek())
	b.Retrieve(n)
	if n == 0 && len(p) > 0 {
		return 0, nil
	}
	return n, nil
}

// Write appends p, satisfying io.Writer.
func (b *Buffer) Write(p []byte) (int, error) {
	b.Append(p)
	return len(p), nil
}
