package reactor_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/coreflux/netreactor/reactor"
)

var _ = Describe("EventLoopThreadPool", func() {
	It("falls back to the base loop when started with zero threads", func() {
		base := reactor.New(nil, nil)
		go base.Loop()
		defer base.Quit()

		var pool *reactor.EventLoopThreadPool
		done := make(chan struct{})
		base.RunInLoop(func() {
			pool = reactor.NewEventLoopThreadPool(base, "test-", nil)
			pool.Start(nil)
			close(done)
		})
		Eventually(done).Should(BeClosed())

		var got *reactor.EventLoop
		base.RunInLoop(func() { got = pool.GetNextLoop() })
		Eventually(func() *reactor.EventLoop { return got }).Should(Equal(base))
	})

	It("round-robins across started sub-loops", func() {
		base := reactor.New(nil, nil)
		go base.Loop()
		defer base.Quit()

		var pool *reactor.EventLoopThreadPool
		var loops []*reactor.EventLoop
		done := make(chan struct{})
		base.RunInLoop(func() {
			pool = reactor.NewEventLoopThreadPool(base, "test-", nil)
			pool.SetThreadNum(3)
			pool.Start(nil)
			loops = pool.GetAllLoops()
			close(done)
		})
		Eventually(done).Should(BeClosed())
		defer func() {
			for _, l := range loops {
				l.Quit()
			}
		}()

		Expect(loops).To(HaveLen(3))

		seen := make(map[*reactor.EventLoop]int)
		got := make(chan *reactor.EventLoop, 1)
		for i := 0; i < 6; i++ {
			base.RunInLoop(func() { got <- pool.GetNextLoop() })
			l := <-got
			seen[l]++
		}
		Expect(seen).To(HaveLen(3))
		for _, count := range seen {
			Expect(count).To(Equal(2))
		}
	})

	It("quits every sub-loop and lets Loop() return on Stop", func() {
		base := reactor.New(nil, nil)
		go base.Loop()
		defer base.Quit()

		var pool *reactor.EventLoopThreadPool
		var loops []*reactor.EventLoop
		done := make(chan struct{})
		base.RunInLoop(func() {
			pool = reactor.NewEventLoopThreadPool(base, "stop-", nil)
			pool.SetThreadNum(2)
			pool.Start(nil)
			loops = pool.GetAllLoops()
			close(done)
		})
		Eventually(done).Should(BeClosed())

		for _, l := range loops {
			Eventually(func() int64 { return l.Iteration() }).Should(BeNumerically(">=", 0))
		}

		pool.Stop()

		for _, l := range loops {
			Expect(l.Looping()).To(BeFalse())
		}

		// Stop is idempotent.
		pool.Stop()
	})
})
