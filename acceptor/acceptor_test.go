package acceptor_test

import (
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/coreflux/netreactor/acceptor"
	"github.com/coreflux/netreactor/fdlimit"
	"github.com/coreflux/netreactor/inet"
	"github.com/coreflux/netreactor/rconfig"
	"github.com/coreflux/netreactor/reactor"
)

var _ = Describe("Acceptor", func() {
	It("accepts an incoming TCP connection and reports the peer address", func() {
		loop := reactor.New(nil, nil)
		go loop.Loop()
		defer loop.Quit()

		listenAddr := inet.Loopback(0, false)

		var a *acceptor.Acceptor
		accepted := make(chan int, 1)
		peers := make(chan inet.Address, 1)

		ready := make(chan struct{})
		loop.RunInLoop(func() {
			var err error
			a, err = acceptor.New(loop, listenAddr, false, nil)
			Expect(err).NotTo(HaveOccurred())

			a.SetNewConnectionCallback(func(fd int, peer inet.Address) {
				accepted <- fd
				peers <- peer
			})

			Expect(a.Listen()).To(Succeed())
			close(ready)
		})
		Eventually(ready).Should(BeClosed())

		var bound inet.Address
		got := make(chan struct{})
		loop.RunInLoop(func() {
			var err error
			bound, err = a.Addr()
			Expect(err).NotTo(HaveOccurred())
			close(got)
		})
		Eventually(got).Should(BeClosed())

		conn, err := net.DialTimeout("tcp", bound.String(), time.Second)
		Expect(err).NotTo(HaveOccurred())
		defer conn.Close()

		var fd int
		Eventually(accepted, time.Second).Should(Receive(&fd))
		Expect(fd).To(BeNumerically(">", 0))

		var peer inet.Address
		Eventually(peers, time.Second).Should(Receive(&peer))
		Expect(peer.Port).NotTo(BeZero())
	})

	It("recovers from descriptor exhaustion via the spare-fd trick and keeps accepting", func() {
		loop := reactor.New(nil, nil)
		go loop.Loop()
		defer loop.Quit()

		listenAddr := inet.Loopback(0, false)

		var a *acceptor.Acceptor
		accepted := make(chan int, 8)

		ready := make(chan struct{})
		loop.RunInLoop(func() {
			var err error
			a, err = acceptor.New(loop, listenAddr, false, nil)
			Expect(err).NotTo(HaveOccurred())
			a.SetNewConnectionCallback(func(fd int, _ inet.Address) { accepted <- fd })
			Expect(a.Listen()).To(Succeed())
			close(ready)
		})
		Eventually(ready).Should(BeClosed())

		var bound inet.Address
		got := make(chan struct{})
		loop.RunInLoop(func() {
			var err error
			bound, err = a.Addr()
			Expect(err).NotTo(HaveOccurred())
			close(got)
		})
		Eventually(got).Should(BeClosed())

		soft, _, err := fdlimit.Current()
		Expect(err).NotTo(HaveOccurred())
		defer fdlimit.Raise(soft)

		// Pin the soft limit to half its current value, then
		// burn through the remainder with dummy fds so the next
		// accept() call lands on EMFILE. The Acceptor's reserved
		// spare fd (opened at construction) is what lets it recover:
		// close it, accept the offending connection, immediately
		// close that too, and reopen the spare.
		_, _, err = fdlimit.Lower(soft / 2)
		Expect(err).NotTo(HaveOccurred())

		var burned []int
		defer func() {
			for _, fd := range burned {
				unix.Close(fd)
			}
		}()
		for {
			fd, err := unix.Open("/dev/null", unix.O_RDONLY, 0)
			if err != nil {
				break
			}
			burned = append(burned, fd)
		}

		// Attempt a connection while the process sits at its
		// descriptor ceiling. Client and server share one fd table
		// here, so whether the dial itself obtains a socket depends
		// on exactly how much headroom burning dummy fds left behind;
		// what matters for this property is that no accepted
		// connection is ever delivered while pressure holds, and nothing
		// in the acceptor panics.
		conn, dialErr := net.DialTimeout("tcp", bound.String(), 500*time.Millisecond)
		if dialErr == nil {
			conn.Close()
		}
		Consistently(accepted, 200*time.Millisecond).ShouldNot(Receive())

		for _, fd := range burned {
			unix.Close(fd)
		}
		burned = nil
		_, _, err = fdlimit.Raise(soft)
		Expect(err).NotTo(HaveOccurred())

		conn2, err := net.DialTimeout("tcp", bound.String(), time.Second)
		Expect(err).NotTo(HaveOccurred())
		defer conn2.Close()

		Eventually(accepted, time.Second).Should(Receive())
	})

	It("listens with the backlog wired through the loop's config", func() {
		Expect(os.Setenv("RNETREACTOR_ACCEPT_BACKLOG", "16")).To(Succeed())
		defer os.Unsetenv("RNETREACTOR_ACCEPT_BACKLOG")

		cfg, err := rconfig.New("")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.AcceptBacklog()).To(Equal(16))

		loop := reactor.New(nil, cfg)
		go loop.Loop()
		defer loop.Quit()

		listenAddr := inet.Loopback(0, false)

		var a *acceptor.Acceptor
		loop.RunInLoop(func() {
			a, err = acceptor.New(loop, listenAddr, false, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(a.Listen()).To(Succeed())
		})

		Eventually(func() bool { return a != nil && a.Listening() }).Should(BeTrue())
	})
})
