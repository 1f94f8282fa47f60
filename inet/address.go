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

// Package inet wraps the address-family handling the Acceptor,
// Connector and TcpConnection need: building a wildcard or loopback
// listen address, parsing an "ip:port" dial target, and resolving a
// hostname to a single address at connection setup. It intentionally
// stops there — it is not a general-purpose DNS client.
package inet

import (
	"fmt"
	"net"
	"strconv"
)

// Address is a thin wrapper over a resolved IPv4 or IPv6 endpoint. It
// holds a net.IP slice, so it is not comparable with ==.
type Address struct {
	IP   net.IP
	Port uint16
	V6   bool
}

// Loopback returns the loopback address for the given port. When v6
// is true the address is "::1", otherwise "127.0.0.1".
func Loopback(port uint16, v6 bool) Address {
	if v6 {
		return Address{IP: net.IPv6loopback, Port: port, V6: true}
	}
	return Address{IP: net.IPv4(127, 0, 0, 1).To4(), Port: port, V6: false}
}

// Wildcard returns the any-address for the given port, for a listener
// that should accept on all local interfaces.
func Wildcard(port uint16, v6 bool) Address {
	if v6 {
		return Address{IP: net.IPv6unspecified, Port: port, V6: true}
	}
	return Address{IP: net.IPv4zero.To4(), Port: port, V6: false}
}

// FromIPPort builds an Address from a textual IP and a port, failing
// if ip does not parse.
func FromIPPort(ip string, port uint16) (Address, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Address{}, fmt.Errorf("inet: invalid IP address %q", ip)
	}
	if v4 := parsed.To4(); v4 != nil {
		return Address{IP: v4, Port: port, V6: false}, nil
	}
	return Address{IP: parsed, Port: port, V6: true}, nil
}

// Parse splits a "host:port" dial target and resolves host via
// Resolve, returning the combined Address.
func Parse(hostport string) (Address, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return Address{}, fmt.Errorf("inet: %w", err)
	}
	portN, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Address{}, fmt.Errorf("inet: invalid port %q: %w", portStr, err)
	}
	port := uint16(portN)

	if ip := net.ParseIP(host); ip != nil {
		return FromIPPort(host, port)
	}
	return Resolve(host, port)
}

// Resolve performs a single hostname lookup and returns the first
// address the system resolver returns, preferring an IPv4 result. It
// is scoped to connection setup only; it does not cache, retry, or
// support custom nameservers.
func Resolve(hostname string, port uint16) (Address, error) {
	ips, err := net.LookupIP(hostname)
	if err != nil {
		return Address{}, fmt.Errorf("inet: resolve %q: %w", hostname, err)
	}
	if len(ips) == 0 {
		return Address{}, fmt.Errorf("inet: resolve %q: no addresses", hostname)
	}

	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return Address{IP: v4, Port: port, V6: false}, nil
		}
	}
	return Address{IP: ips[0], Port: port, V6: true}, nil
}

// String renders "ip:port".
func (a Address) String() string {
	return net.JoinHostPort(a.IP.String(), strconv.Itoa(int(a.Port)))
}

// Family returns "AF_INET" or "AF_INET6" for logging/diagnostics.
func (a Address) Family() string {
	if a.V6 {
		return "AF_INET6"
	}
	return "AF_INET"
}

// TCPAddr converts the Address to a *net.TCPAddr for use with the
// standard library's socket construction helpers.
func (a Address) TCPAddr() *net.TCPAddr {
	return &net.TCPAddr{IP: a.IP, Port: int(a.Port)}
}

// IsLoopback reports whether the address is a loopback endpoint.
func (a Address) IsLoopback() bool {
	return a.IP.IsLoopback()
}
