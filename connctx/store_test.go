package connctx_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/coreflux/netreactor/connctx"
)

var _ = Describe("Store", func() {
	It("reports absent keys", func() {
		var s connctx.Store
		_, ok := s.Get("session")
		Expect(ok).To(BeFalse())
	})

	It("round-trips Set/Get", func() {
		var s connctx.Store
		s.Set("session", 42)
		v, ok := s.Get("session")
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(42))
	})

	It("Get1 type-asserts the stored value", func() {
		var s connctx.Store
		s.Set("name", "alice")
		v, ok := connctx.Get1[string](&s, "name")
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal("alice"))

		_, ok = connctx.Get1[int](&s, "name")
		Expect(ok).To(BeFalse())
	})

	It("Delete and Clear remove state", func() {
		var s connctx.Store
		s.Set("a", 1)
		s.Set("b", 2)
		s.Delete("a")
		_, ok := s.Get("a")
		Expect(ok).To(BeFalse())

		s.Clear()
		_, ok = s.Get("b")
		Expect(ok).To(BeFalse())
	})
})
