package rerrors_test

import (
	"errors"
	"io"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/coreflux/netreactor/rerrors"
)

var _ = Describe("Error", func() {
	It("classifies a bare New error", func() {
		err := rerrors.New(rerrors.CodePeerClosed, "connection reset")
		Expect(rerrors.CodeOf(err)).To(Equal(rerrors.CodePeerClosed))
		Expect(rerrors.Is(err, rerrors.CodePeerClosed)).To(BeTrue())
	})

	It("keeps the wrapped cause reachable", func() {
		err := rerrors.Wrap(rerrors.CodeFatalIO, io.EOF, "accept failed")
		Expect(errors.Is(err, io.EOF)).To(BeTrue())
		Expect(rerrors.CodeOf(err)).To(Equal(rerrors.CodeFatalIO))
	})

	It("reports CodeNone for untagged errors", func() {
		Expect(rerrors.CodeOf(io.EOF)).To(Equal(rerrors.CodeNone))
	})

	It("formats the taxonomy name in the message", func() {
		err := rerrors.New(rerrors.CodeResourceExhausted, "too many open files")
		Expect(err.Error()).To(ContainSubstring("resource-exhausted"))
	})
})
