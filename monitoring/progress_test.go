package monitoring

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ProgressBar", func() {
	It("should set the finished amount", func() {
		bar := &ProgressBar{Total: 10}

		bar.SetFinished(4)
		bar.SetFinished(7)

		Expect(bar.Finished).To(Equal(uint64(7)))
	})

	It("should cap the finished amount at the total", func() {
		bar := &ProgressBar{Total: 10}

		bar.SetFinished(25)

		Expect(bar.Finished).To(Equal(uint64(10)))
	})

	It("should not cap a bar without total", func() {
		bar := &ProgressBar{}

		bar.SetFinished(25)

		Expect(bar.snapshot().Finished).To(Equal(uint64(25)))
	})
})
