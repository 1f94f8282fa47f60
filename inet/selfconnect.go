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

package inet

import (
	"net"

	"golang.org/x/sys/unix"
)

// LocalAddr resolves the local endpoint of a connected or listening
// socket.
func LocalAddr(fd int) (Address, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return Address{}, err
	}
	return addressFromSockaddr(sa)
}

// PeerAddr resolves the remote endpoint of a connected socket.
func PeerAddr(fd int) (Address, error) {
	sa, err := unix.Getpeername(fd)
	if err != nil {
		return Address{}, err
	}
	return addressFromSockaddr(sa)
}

func addressFromSockaddr(sa unix.Sockaddr) (Address, error) {
	switch s := sa.(type) {
	case *unix.SockaddrInet4:
		ip := net.IP(s.Addr[:]).To4()
		return Address{IP: ip, Port: uint16(s.Port), V6: false}, nil
	case *unix.SockaddrInet6:
		ip := make(net.IP, len(s.Addr))
		copy(ip, s.Addr[:])
		return Address{IP: ip, Port: uint16(s.Port), V6: true}, nil
	default:
		return Address{}, nil
	}
}

// IsSelfConnect reports whether a non-blocking connect landed the
// socket on itself: the kernel picked an ephemeral source port that
// happens to equal the destination port while dialing localhost. The
// Connector treats this as a failure and retries.
func IsSelfConnect(fd int) (bool, error) {
	local, err := unix.Getsockname(fd)
	if err != nil {
		return false, err
	}
	peer, err := unix.Getpeername(fd)
	if err != nil {
		return false, err
	}

	switch l := local.(type) {
	case *unix.SockaddrInet4:
		p, ok := peer.(*unix.SockaddrInet4)
		return ok && l.Port == p.Port && l.Addr == p.Addr, nil
	case *unix.SockaddrInet6:
		p, ok := peer.(*unix.SockaddrInet6)
		return ok && l.Port == p.Port && l.Addr == p.Addr, nil
	default:
		return false, nil
	}
}

// SocketError returns the pending SO_ERROR value for fd, clearing it.
// Used to check the outcome of a non-blocking connect once the fd
// becomes writable.
func SocketError(fd int) error {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno == 0 {
		return nil
	}
	return unix.Errno(errno)
}
