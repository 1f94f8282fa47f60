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

package acceptor

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/coreflux/netreactor/inet"
)

func createNonblockingSocket(v6 bool) (int, error) {
	family := unix.AF_INET
	if v6 {
		family = unix.AF_INET6
	}
	return unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
}

func bindAddress(fd int, addr inet.Address) error {
	if addr.V6 {
		var a unix.SockaddrInet6
		a.Port = int(addr.Port)
		copy(a.Addr[:], addr.IP.To16())
		return unix.Bind(fd, &a)
	}
	var a unix.SockaddrInet4
	a.Port = int(addr.Port)
	copy(a.Addr[:], addr.IP.To4())
	return unix.Bind(fd, &a)
}

func ipBytesToString(b []byte) string {
	ip := make(net.IP, len(b))
	copy(ip, b)
	return ip.String()
}

func accept4(listenFd int) (int, inet.Address, error) {
	connFd, sa, err := unix.Accept4(listenFd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return 0, inet.Address{}, err
	}

	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		ip := net.IP(a.Addr[:]).To4()
		return connFd, inet.Address{IP: ip, Port: uint16(a.Port), V6: false}, nil
	case *unix.SockaddrInet6:
		ip := make(net.IP, len(a.Addr))
		copy(ip, a.Addr[:])
		return connFd, inet.Address{IP: ip, Port: uint16(a.Port), V6: true}, nil
	default:
		return connFd, inet.Address{}, nil
	}
}
