package driver

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/stimulus/model"
	"github.com/sarchlab/stimulus/timing"
)

var _ = Describe("Driver", func() {
	var (
		mockCtrl *gomock.Controller
		m        *MockModel
		recorder *MockRecorder
		tb       *timing.TimeBase
		d        *Driver
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		m = NewMockModel(mockCtrl)
		recorder = NewMockRecorder(mockCtrl)

		var err error
		tb, err = timing.NewTimeBase(timing.DefaultIncrement)
		Expect(err).NotTo(HaveOccurred())

		d = New(m, recorder, tb)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should record, bump, drive and evaluate in order", func() {
		gomock.InOrder(
			recorder.EXPECT().RecordSample(timing.VTimeInNs(0)),
			recorder.EXPECT().Flush(),
			m.EXPECT().Set(model.PinClock, model.High),
			m.EXPECT().Evaluate(),
			recorder.EXPECT().RecordSample(timing.VTimeInNs(42)),
			recorder.EXPECT().Flush(),
			m.EXPECT().Set(model.PinClock, model.Low),
			m.EXPECT().Evaluate(),
		)

		Expect(d.Tick(1)).To(Succeed())
		Expect(d.Now()).To(Equal(timing.VTimeInNs(84)))
		Expect(d.TicksRun()).To(Equal(uint64(1)))
	})

	It("should do nothing for a non-positive count", func() {
		Expect(d.Tick(0)).To(Succeed())
		Expect(d.Tick(-3)).To(Succeed())
		Expect(d.Now()).To(Equal(timing.VTimeInNs(0)))
	})

	It("should produce two samples and two evaluations per period", func() {
		var (
			times  []timing.VTimeInNs
			clocks []uint64
		)

		recorder.EXPECT().RecordSample(gomock.Any()).
			Do(func(t timing.VTimeInNs) { times = append(times, t) }).
			Times(20)
		recorder.EXPECT().Flush().Times(20)
		m.EXPECT().Set(model.PinClock, gomock.Any()).
			Do(func(_ string, v uint64) { clocks = append(clocks, v) }).
			Times(20)
		m.EXPECT().Evaluate().Times(20)

		Expect(d.Tick(10)).To(Succeed())

		for i, c := range clocks {
			Expect(c).To(Equal(uint64(1 - i%2)))
		}
		for i := 1; i < len(times); i++ {
			Expect(times[i]).To(BeNumerically(">", times[i-1]))
		}
		Expect(clocks[len(clocks)-1]).To(Equal(model.Low))
		Expect(d.Now()).To(Equal(timing.VTimeInNs(834)))
	})

	It("should stop and report recorder failures", func() {
		boom := errors.New("disk full")
		recorder.EXPECT().RecordSample(timing.VTimeInNs(0)).Return(boom)

		err := d.Tick(3)

		Expect(err).To(MatchError(boom))
		Expect(d.Now()).To(Equal(timing.VTimeInNs(0)))
	})

	It("should report flush failures", func() {
		boom := errors.New("disk full")
		recorder.EXPECT().RecordSample(gomock.Any())
		recorder.EXPECT().Flush().Return(boom)

		Expect(d.Tick(1)).To(MatchError(boom))
	})

	It("should settle the initial state", func() {
		gomock.InOrder(
			m.EXPECT().Set(model.PinClock, model.Low),
			m.EXPECT().Set(model.PinSonarEcho, model.Low),
			m.EXPECT().Set(model.PinRX, model.High),
			m.EXPECT().Evaluate(),
			recorder.EXPECT().RecordSample(timing.VTimeInNs(0)),
			recorder.EXPECT().Flush(),
			m.EXPECT().Set(model.PinClock, model.Low),
			m.EXPECT().Evaluate(),
		)

		err := d.Settle(
			PinValue{Name: model.PinSonarEcho, Value: model.Low},
			PinValue{Name: model.PinRX, Value: model.High},
		)

		Expect(err).NotTo(HaveOccurred())
		Expect(d.Now()).To(Equal(timing.VTimeInNs(42)))
	})

	It("should capture a sample without advancing time", func() {
		recorder.EXPECT().RecordSample(timing.VTimeInNs(0))
		recorder.EXPECT().Flush()

		Expect(d.Capture()).To(Succeed())
		Expect(d.Now()).To(Equal(timing.VTimeInNs(0)))
	})
})
