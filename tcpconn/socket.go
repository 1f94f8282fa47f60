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

package tcpconn

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/coreflux/netreactor/rerrors"
)

func setNoDelay(fd int, on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, v); err != nil {
		return rerrors.Wrap(rerrors.CodeFatalIO, err, "tcpconn: setsockopt TCP_NODELAY failed")
	}
	return nil
}

func setKeepAlive(fd int, on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, v); err != nil {
		return rerrors.Wrap(rerrors.CodeFatalIO, err, "tcpconn: setsockopt SO_KEEPALIVE failed")
	}
	return nil
}

// TCPInfo mirrors the subset of Linux's struct tcp_info that is
// useful for diagnostics: round-trip timing and retransmit counts.
type TCPInfo struct {
	State        uint8
	CaState      uint8
	Retransmits  uint8
	Rtt          uint32
	RttVar       uint32
	SndCwnd      uint32
	TotalRetrans uint32
}

// Info retrieves TCP_INFO for the connection's socket. Best-effort:
// returns an error on platforms or socket types where it is
// unsupported.
func (c *Connection) Info() (TCPInfo, error) {
	raw, err := unix.GetsockoptTCPInfo(c.fd, unix.SOL_TCP, unix.TCP_INFO)
	if err != nil {
		return TCPInfo{}, err
	}
	return TCPInfo{
		State:        raw.State,
		CaState:      raw.Ca_state,
		Retransmits:  raw.Retransmits,
		Rtt:          raw.Rtt,
		RttVar:       raw.Rttvar,
		SndCwnd:      raw.Snd_cwnd,
		TotalRetrans: raw.Total_retrans,
	}, nil
}

// InfoString renders Info() as a compact diagnostic string. Returns an
// empty string if TCP_INFO is unavailable.
func (c *Connection) InfoString() string {
	info, err := c.Info()
	if err != nil {
		return ""
	}
	return fmt.Sprintf("state=%d retransmits=%d rtt=%dus cwnd=%d total_retrans=%d",
		info.State, info.Retransmits, info.Rtt, info.SndCwnd, info.TotalRetrans)
}
