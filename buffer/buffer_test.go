package buffer_test

import (
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/coreflux/netreactor/buffer"
)

var _ = Describe("Buffer", func() {
	It("starts with the documented layout invariants", func() {
		b := buffer.NewDefault()
		Expect(b.ReadableBytes()).To(Equal(0))
		Expect(b.WritableBytes()).To(Equal(buffer.InitialSize))
		Expect(b.PrependableBytes()).To(Equal(buffer.CheapPrepend))
	})

	It("round-trips Append/Retrieve", func() {
		b := buffer.NewDefault()
		b.AppendString("hello world")
		Expect(b.ReadableBytes()).To(Equal(11))
		Expect(b.RetrieveAsString(5)).To(Equal("hello"))
		Expect(b.ReadableBytes()).To(Equal(6))
		Expect(b.RetrieveAllAsString()).To(Equal(" world"))
		Expect(b.ReadableBytes()).To(Equal(0))
	})

	It("grows past its initial writable region", func() {
		b := buffer.New(4)
		payload := make([]byte, 4096)
		for i := range payload {
			payload[i] = byte(i)
		}
		b.Append(payload)
		Expect(b.ReadableBytes()).To(Equal(4096))
		Expect(b.Peek()).To(Equal(payload))
	})

	It("compacts instead of growing when prependable space is reclaimable", func() {
		b := buffer.New(16)
		b.AppendString("0123456789")
		b.Retrieve(6)
		capBefore := b.InternalCapacity()
		b.Append(make([]byte, 12))
		Expect(b.InternalCapacity()).To(Equal(capBefore))
	})

	It("finds CRLF and EOL within the readable region", func() {
		b := buffer.NewDefault()
		b.AppendString("GET / HTTP/1.1\r\nHost: x\r\n\r\n")
		idx := b.FindCRLF()
		Expect(idx).To(Equal(14))
		b.RetrieveUntil(idx + 2)
		Expect(b.Peek()).To(Equal([]byte("Host: x\r\n\r\n")))
	})

	It("round-trips network-order integers", func() {
		b := buffer.NewDefault()
		b.AppendInt64(-1)
		b.AppendInt32(42)
		b.AppendInt16(7)
		b.AppendInt8(1)

		v64, err := b.ReadInt64()
		Expect(err).NotTo(HaveOccurred())
		Expect(v64).To(Equal(int64(-1)))

		v32, err := b.ReadInt32()
		Expect(err).NotTo(HaveOccurred())
		Expect(v32).To(Equal(int32(42)))

		v16, err := b.ReadInt16()
		Expect(err).NotTo(HaveOccurred())
		Expect(v16).To(Equal(int16(7)))

		v8, err := b.ReadInt8()
		Expect(err).NotTo(HaveOccurred())
		Expect(v8).To(Equal(int8(1)))

		Expect(b.ReadableBytes()).To(Equal(0))
	})

	It("errors instead of panicking when peeking past the readable region", func() {
		b := buffer.NewDefault()
		b.AppendInt8(1)
		_, err := b.PeekInt32()
		Expect(err).To(HaveOccurred())
	})

	It("prepends a header in front of an already-built payload", func() {
		b := buffer.NewDefault()
		b.AppendString("payload")
		b.PrependInt32(int32(b.ReadableBytes()))

		n, err := b.ReadInt32()
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int32(7)))
		Expect(b.RetrieveAllAsString()).To(Equal("payload"))
	})

	It("unwrite retracts a speculative append", func() {
		b := buffer.NewDefault()
		b.AppendString("abc")
		b.Unwrite(1)
		Expect(b.RetrieveAllAsString()).To(Equal("ab"))
	})

	It("absorbs a read larger than the writable region via the scratch path", func() {
		r, w, err := os.Pipe()
		Expect(err).NotTo(HaveOccurred())
		defer r.Close()
		defer w.Close()

		payload := make([]byte, 70000)
		for i := range payload {
			payload[i] = byte(i % 256)
		}
		done := make(chan struct{})
		go func() {
			defer close(done)
			defer w.Close()
			_, _ = w.Write(payload)
		}()

		b := buffer.New(16)
		total := 0
		for total < len(payload) {
			n, err := b.ReadFd(int(r.Fd()))
			Expect(err).NotTo(HaveOccurred())
			total += n
		}
		<-done
		Expect(b.ReadableBytes()).To(Equal(len(payload)))
		Expect(b.Peek()).To(Equal(payload))
	})
})
