package server_test

import (
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/coreflux/netreactor/buffer"
	"github.com/coreflux/netreactor/inet"
	"github.com/coreflux/netreactor/reactor"
	"github.com/coreflux/netreactor/rmetrics"
	"github.com/coreflux/netreactor/server"
	"github.com/coreflux/netreactor/tcpconn"
)

var _ = Describe("Server", func() {
	It("accepts a connection and echoes what it receives", func() {
		loop := reactor.New(nil, nil)
		go loop.Loop()
		defer loop.Quit()

		var srv *server.Server
		ready := make(chan struct{})
		loop.RunInLoop(func() {
			var err error
			srv, err = server.New(loop, inet.Loopback(0, false), "echo", server.NoReusePort, nil)
			Expect(err).NotTo(HaveOccurred())

			srv.SetMessageCallback(func(c *tcpconn.Connection, buf *buffer.Buffer, _ time.Time) {
				c.SendString(buf.RetrieveAllAsString())
			})
			srv.Start()
			close(ready)
		})
		Eventually(ready).Should(BeClosed())

		var bound inet.Address
		got := make(chan struct{})
		loop.RunInLoop(func() {
			var err error
			bound, err = srv.ListenAddr()
			Expect(err).NotTo(HaveOccurred())
			close(got)
		})
		Eventually(got).Should(BeClosed())

		conn, err := net.DialTimeout("tcp", bound.String(), time.Second)
		Expect(err).NotTo(HaveOccurred())
		defer conn.Close()

		_, err = conn.Write([]byte("ping"))
		Expect(err).NotTo(HaveOccurred())

		buf := make([]byte, 16)
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, err := conn.Read(buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(buf[:n])).To(Equal("ping"))
	})

	It("propagates an optional metrics sink to every accepted connection", func() {
		loop := reactor.New(nil, nil)
		go loop.Loop()
		defer loop.Quit()

		reg := prometheus.NewRegistry()
		m, err := rmetrics.New(reg, "srv")
		Expect(err).NotTo(HaveOccurred())

		var srv *server.Server
		ready := make(chan struct{})
		loop.RunInLoop(func() {
			var err error
			srv, err = server.New(loop, inet.Loopback(0, false), "metrics", server.NoReusePort, nil)
			Expect(err).NotTo(HaveOccurred())
			srv.SetMetrics(m)
			srv.Start()
			close(ready)
		})
		Eventually(ready).Should(BeClosed())

		var bound inet.Address
		got := make(chan struct{})
		loop.RunInLoop(func() {
			var err error
			bound, err = srv.ListenAddr()
			Expect(err).NotTo(HaveOccurred())
			close(got)
		})
		Eventually(got).Should(BeClosed())

		conn, err := net.DialTimeout("tcp", bound.String(), time.Second)
		Expect(err).NotTo(HaveOccurred())
		defer conn.Close()

		Eventually(func() float64 {
			var dm dto.Metric
			Expect(m.Connections.Write(&dm)).To(Succeed())
			return dm.GetGauge().GetValue()
		}, time.Second).Should(Equal(1.0))
	})

	It("stops accepting and tears down its worker loops on Stop", func() {
		loop := reactor.New(nil, nil)
		go loop.Loop()
		defer loop.Quit()

		var srv *server.Server
		ready := make(chan struct{})
		loop.RunInLoop(func() {
			var err error
			srv, err = server.New(loop, inet.Loopback(0, false), "stop", server.NoReusePort, nil)
			Expect(err).NotTo(HaveOccurred())
			srv.SetThreadNum(2)
			srv.Start()
			close(ready)
		})
		Eventually(ready).Should(BeClosed())

		var bound inet.Address
		var workerLoops []*reactor.EventLoop
		got := make(chan struct{})
		loop.RunInLoop(func() {
			var err error
			bound, err = srv.ListenAddr()
			Expect(err).NotTo(HaveOccurred())
			workerLoops = srv.ThreadPool().GetAllLoops()
			close(got)
		})
		Eventually(got).Should(BeClosed())
		Expect(workerLoops).To(HaveLen(2))

		conn, err := net.DialTimeout("tcp", bound.String(), time.Second)
		Expect(err).NotTo(HaveOccurred())
		conn.Close()

		srv.Stop()

		for _, l := range workerLoops {
			Eventually(l.Looping, time.Second).Should(BeFalse())
		}

		_, err = net.DialTimeout("tcp", bound.String(), time.Second)
		Expect(err).To(HaveOccurred())

		// Stop is idempotent.
		srv.Stop()
	})
})
