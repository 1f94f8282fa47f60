package client_test

import (
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/coreflux/netreactor/client"
	"github.com/coreflux/netreactor/inet"
	"github.com/coreflux/netreactor/reactor"
	"github.com/coreflux/netreactor/tcpconn"
)

var _ = Describe("Client", func() {
	It("establishes a connection and delivers the connection-up callback", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		defer ln.Close()

		go func() {
			for {
				conn, err := ln.Accept()
				if err != nil {
					return
				}
				go func() {
					defer conn.Close()
					<-make(chan struct{})
				}()
			}
		}()

		port := uint16(ln.Addr().(*net.TCPAddr).Port)
		addr := inet.Loopback(port, false)

		loop := reactor.New(nil, nil)
		go loop.Loop()
		defer loop.Quit()

		up := make(chan struct{})
		var cl *client.Client
		loop.RunInLoop(func() {
			cl = client.New(loop, addr, "test-client", nil)
			cl.SetConnectionCallback(func(c *tcpconn.Connection) {
				if c.Connected() {
					close(up)
				}
			})
			cl.Connect()
		})

		Eventually(up, 2*time.Second).Should(BeClosed())
		Expect(cl.Connection()).NotTo(BeNil())

		cl.Stop()
	})
})
