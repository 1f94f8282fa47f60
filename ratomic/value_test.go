package ratomic_test

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/coreflux/netreactor/ratomic"
)

var _ = Describe("Value", func() {
	It("returns the zero value before any Store", func() {
		var v ratomic.Value[int]
		Expect(v.Load()).To(Equal(0))
	})

	It("round-trips Store/Load", func() {
		var v ratomic.Value[string]
		v.Store("hello")
		Expect(v.Load()).To(Equal("hello"))
	})

	It("Swap returns the previous value", func() {
		var v ratomic.Value[int]
		v.Store(1)
		old := v.Swap(2)
		Expect(old).To(Equal(1))
		Expect(v.Load()).To(Equal(2))
	})

	It("CompareAndSwap only swaps on match", func() {
		var v ratomic.Value[int]
		v.Store(1)
		Expect(v.CompareAndSwap(2, 3)).To(BeFalse())
		Expect(v.CompareAndSwap(1, 3)).To(BeTrue())
		Expect(v.Load()).To(Equal(3))
	})

	It("is race-free under concurrent Store/Load", func() {
		var v ratomic.Value[int]
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				v.Store(n)
				_ = v.Load()
			}(i)
		}
		wg.Wait()
	})
})

var _ = Describe("Flag", func() {
	It("defaults false and toggles", func() {
		var f ratomic.Flag
		Expect(f.Get()).To(BeFalse())
		f.Set(true)
		Expect(f.Get()).To(BeTrue())
		Expect(f.CAS(true, false)).To(BeTrue())
		Expect(f.Get()).To(BeFalse())
	})
})

var _ = Describe("Counter", func() {
	It("increments monotonically", func() {
		var c ratomic.Counter
		Expect(c.Next()).To(Equal(int64(1)))
		Expect(c.Next()).To(Equal(int64(2)))
		Expect(c.Load()).To(Equal(int64(2)))
	})
})
