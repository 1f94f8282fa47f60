package inet_test

import (
	"net"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/coreflux/netreactor/inet"
)

var _ = Describe("Address", func() {
	It("builds a v4 loopback address", func() {
		a := inet.Loopback(9000, false)
		Expect(a.Family()).To(Equal("AF_INET"))
		Expect(a.String()).To(Equal("127.0.0.1:9000"))
		Expect(a.IsLoopback()).To(BeTrue())
	})

	It("builds a v6 wildcard address", func() {
		a := inet.Wildcard(9000, true)
		Expect(a.Family()).To(Equal("AF_INET6"))
		Expect(a.TCPAddr().IP).To(Equal(net.IPv6unspecified))
	})

	It("parses a literal IP and port", func() {
		a, err := inet.Parse("10.0.0.5:4000")
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Port).To(Equal(uint16(4000)))
		Expect(a.V6).To(BeFalse())
	})

	It("parses a localhost hostname via resolution", func() {
		a, err := inet.Parse("localhost:4000")
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Port).To(Equal(uint16(4000)))
		Expect(a.IP).NotTo(BeNil())
	})

	It("rejects a malformed dial target", func() {
		_, err := inet.Parse("not-a-hostport")
		Expect(err).To(HaveOccurred())
	})

	It("rejects an unparsable IP literal", func() {
		_, err := inet.FromIPPort("not-an-ip", 80)
		Expect(err).To(HaveOccurred())
	})
})
