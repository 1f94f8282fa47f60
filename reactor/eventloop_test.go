package reactor_test

import (
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/coreflux/netreactor/rconfig"
	"github.com/coreflux/netreactor/reactor"
	"github.com/coreflux/netreactor/rmetrics"
)

var _ = Describe("EventLoop", func() {
	It("runs a functor queued from another goroutine", func() {
		loop := reactor.New(nil, nil)
		done := make(chan struct{})
		go loop.Loop()
		Eventually(func() bool { return loop.Iteration() >= 0 }).Should(BeTrue())

		loop.QueueInLoop(func() { close(done) })

		Eventually(done, time.Second).Should(BeClosed())
		loop.Quit()
	})

	It("fires a RunAfter timer", func() {
		loop := reactor.New(nil, nil)
		go loop.Loop()

		fired := make(chan struct{})
		loop.RunInLoop(func() {
			loop.RunAfter(20*time.Millisecond, func() { close(fired) })
		})

		Eventually(fired, time.Second).Should(BeClosed())
		loop.Quit()
	})

	It("does not fire a cancelled timer", func() {
		loop := reactor.New(nil, nil)
		go loop.Loop()

		fired := make(chan struct{})
		loop.RunInLoop(func() {
			id := loop.RunAfter(20*time.Millisecond, func() { close(fired) })
			loop.Cancel(id)
		})

		Consistently(fired, 80*time.Millisecond).ShouldNot(BeClosed())
		loop.Quit()
	})

	It("dispatches a read-ready channel", func() {
		loop := reactor.New(nil, nil)
		go loop.Loop()

		r, w, err := os.Pipe()
		Expect(err).NotTo(HaveOccurred())
		defer r.Close()
		defer w.Close()

		readFired := make(chan struct{})
		loop.RunInLoop(func() {
			c := reactor.NewChannel(loop, int(r.Fd()))
			c.SetReadCallback(func(time.Time) { close(readFired) })
			c.EnableReading()
		})

		_, err = w.Write([]byte("x"))
		Expect(err).NotTo(HaveOccurred())

		Eventually(readFired, time.Second).Should(BeClosed())
		loop.Quit()
	})

	It("quits promptly when asked from another goroutine", func() {
		loop := reactor.New(nil, nil)
		stopped := make(chan struct{})
		go func() {
			loop.Loop()
			close(stopped)
		}()

		Eventually(func() int64 { return loop.Iteration() }, time.Second).Should(BeNumerically(">=", 0))
		loop.Quit()
		Eventually(stopped, time.Second).Should(BeClosed())
	})

	It("counts poller waits once metrics are wired in", func() {
		loop := reactor.New(nil, nil)
		m, err := rmetrics.New(prometheus.NewRegistry(), "evloop")
		Expect(err).NotTo(HaveOccurred())
		loop.SetMetrics(m)

		go loop.Loop()
		defer loop.Quit()
		loop.Wakeup()

		Eventually(func() int64 { return loop.Iteration() }, time.Second).Should(BeNumerically(">=", 1))

		Eventually(func() float64 {
			var dm dto.Metric
			Expect(m.PollerWaits.Write(&dm)).To(Succeed())
			return dm.GetCounter().GetValue()
		}, time.Second).Should(BeNumerically(">", 0))
	})

	It("resolves a default config when none is given, and keeps an explicit one as-is", func() {
		loop := reactor.New(nil, nil)
		Expect(loop.Config()).NotTo(BeNil())
		Expect(loop.Config().Poller()).To(Equal("epoll"))

		cfg, err := rconfig.New("")
		Expect(err).NotTo(HaveOccurred())
		other := reactor.New(nil, cfg)
		Expect(other.Config()).To(BeIdenticalTo(cfg))
	})

	It("selects the poll backend when configured to, and still dispatches events", func() {
		Expect(os.Setenv("RNETREACTOR_POLLER", "poll")).To(Succeed())
		defer os.Unsetenv("RNETREACTOR_POLLER")

		cfg, err := rconfig.New("")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Poller()).To(Equal("poll"))

		loop := reactor.New(nil, cfg)
		go loop.Loop()
		defer loop.Quit()

		fired := make(chan struct{})
		loop.RunInLoop(func() {
			loop.RunAfter(10*time.Millisecond, func() { close(fired) })
		})
		Eventually(fired, time.Second).Should(BeClosed())
	})
})
