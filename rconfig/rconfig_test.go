package rconfig_test

import (
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/coreflux/netreactor/rconfig"
)

var _ = Describe("Config", func() {
	AfterEach(func() {
		os.Unsetenv("RNETREACTOR_POLLER")
		os.Unsetenv("RNETREACTOR_HWM_BYTES")
	})

	It("uses the documented defaults when nothing is set", func() {
		c, err := rconfig.New("")
		Expect(err).NotTo(HaveOccurred())

		Expect(c.Poller()).To(Equal("epoll"))
		Expect(c.HighWaterMarkBytes()).To(Equal(64 * 1024 * 1024))
		Expect(c.AcceptBacklog()).To(Equal(4096))
		Expect(c.KeepAlive()).To(BeTrue())
		Expect(c.NoDelay()).To(BeTrue())
	})

	It("honors environment variable overrides", func() {
		Expect(os.Setenv("RNETREACTOR_POLLER", "poll")).To(Succeed())
		Expect(os.Setenv("RNETREACTOR_HWM_BYTES", "1024")).To(Succeed())

		c, err := rconfig.New("")
		Expect(err).NotTo(HaveOccurred())

		Expect(c.Poller()).To(Equal("poll"))
		Expect(c.HighWaterMarkBytes()).To(Equal(1024))
	})
})
