package stimulus

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/stimulus/driver"
	"github.com/sarchlab/stimulus/model"
	"github.com/sarchlab/stimulus/timing"
)

var exactPeriodNs = timing.DefaultClock.PeriodNs()

type sample struct {
	time  timing.VTimeInNs
	clock uint64
	echo  uint64
}

type memoryRecorder struct {
	model   model.Model
	samples []sample
}

func (r *memoryRecorder) RecordSample(t timing.VTimeInNs) error {
	r.samples = append(r.samples, sample{
		time:  t,
		clock: r.model.Get(model.PinClock),
		echo:  r.model.Get(model.PinSonarEcho),
	})

	return nil
}

func (r *memoryRecorder) Flush() error { return nil }
func (r *memoryRecorder) Close() error { return nil }

// timedTrigger raises the trigger pin during [from, to) of simulated time.
type timedTrigger struct {
	*model.PinSet
	clock    timing.TimeTeller
	from, to timing.VTimeInNs
}

func newTimedTrigger(
	clock timing.TimeTeller,
	from, to timing.VTimeInNs,
) *timedTrigger {
	return &timedTrigger{
		PinSet: model.NewPinSet().
			Declare(model.PinClock, 1, model.Input).
			Declare(model.PinSonarEcho, 1, model.Input).
			Declare(model.PinSonarTrigger, 1, model.Output),
		clock: clock,
		from:  from,
		to:    to,
	}
}

func (m *timedTrigger) Evaluate() {
	now := m.clock.Now()
	if now >= m.from && now < m.to {
		m.Set(model.PinSonarTrigger, model.High)
		return
	}

	m.Set(model.PinSonarTrigger, model.Low)
}

func reportOf(reports []StageReport, name string) StageReport {
	for _, r := range reports {
		if r.Stage == name {
			return r
		}
	}

	Fail("no report for stage " + name)

	return StageReport{}
}

func expectPeriods(r StageReport, periods int) {
	Expect(r.Periods).To(Equal(periods))
	Expect(float64(r.End - r.Start)).To(
		BeNumerically("~", float64(periods)*exactPeriodNs, 1))
}

var _ = Describe("Sonar exchange", func() {
	var (
		tb       *timing.TimeBase
		recorder *memoryRecorder
		d        *driver.Driver
	)

	build := func(m model.Model, maxTime timing.VTimeInNs) *Session {
		recorder.model = m
		d = driver.New(m, recorder, tb)

		return NewSession(m, d, maxTime)
	}

	BeforeEach(func() {
		var err error
		tb, err = timing.NewTimeBase(timing.DefaultIncrement)
		Expect(err).NotTo(HaveOccurred())

		recorder = &memoryRecorder{}
	})

	It("should run the whole protocol against a timed trigger", func() {
		const t0 = 10_000
		m := newTimedTrigger(tb, t0, t0+500)
		s := build(m, 200_000_000)

		Expect(s.StartStim(24)).To(Succeed())
		Expect(s.Finished()).To(BeTrue())
		Expect(s.EchoDistance()).To(Equal(24))

		reports := s.Reports()
		Expect(reports).To(HaveLen(10))
		for _, r := range reports {
			Expect(r.Met).To(BeTrue(), r.Stage)
		}

		wait := reportOf(reports, "WaitTrigger")
		Expect(wait.End).To(BeNumerically(">=", t0))
		Expect(wait.End).To(BeNumerically("<", t0+84))

		release := reportOf(reports, "WaitTriggerRelease")
		Expect(release.End).To(BeNumerically(">=", t0+500))
		Expect(release.End).To(BeNumerically("<", t0+500+84))

		expectPeriods(reportOf(reports, "TriggerSetup"), 5)
		expectPeriods(reportOf(reports, "Turnaround"), 60)
		expectPeriods(reportOf(reports, "WaitEchoDuration"), 33853)
		expectPeriods(reportOf(reports, "PropagationDelay"), 24000)

		var sum timing.VTimeInNs
		for _, r := range reports {
			sum += r.End - r.Start
		}
		Expect(sum).To(Equal(reports[9].End - reports[0].Start))
		Expect(tb.Now()).To(Equal(reports[9].End))
	})

	It("should assert the echo exactly once, for the computed width", func() {
		m := newTimedTrigger(tb, 1_000, 1_500)
		s := build(m, 200_000_000)

		Expect(s.StartStim(24)).To(Succeed())

		rises, high := 0, 0
		prev := model.Low
		for _, smp := range recorder.samples {
			if smp.echo == model.High {
				high++
			}
			if smp.echo == model.High && prev == model.Low {
				rises++
			}
			prev = smp.echo
		}

		Expect(rises).To(Equal(1))
		Expect(high).To(Equal(2 * 33853))
		Expect(m.Get(model.PinSonarEcho)).To(Equal(model.Low))
	})

	It("should record strictly increasing times and alternating clock", func() {
		m := newTimedTrigger(tb, 1_000, 1_500)
		s := build(m, 200_000_000)

		Expect(s.StartStim(1)).To(Succeed())

		samples := recorder.samples
		Expect(len(samples) % 2).To(Equal(0))
		Expect(uint64(len(samples))).To(Equal(2 * d.TicksRun()))
		for i := 1; i < len(samples); i++ {
			Expect(samples[i].time).To(BeNumerically(">", samples[i-1].time))
			Expect(samples[i].clock).NotTo(Equal(samples[i-1].clock))
		}
	})

	It("should stop waiting for a trigger at the ceiling and go on", func() {
		const ceiling = 50_000
		m := newTimedTrigger(tb, 1<<62, 1<<62)
		s := build(m, ceiling)

		Expect(s.StartStim(1)).To(Succeed())

		reports := s.Reports()
		wait := reports[0]
		Expect(wait.Met).To(BeFalse())
		Expect(wait.End).To(BeNumerically(">=", ceiling))
		Expect(wait.End).To(BeNumerically("<", ceiling+84))

		Expect(reports[1].Stage).To(Equal("ConfirmTrigger"))
		Expect(reports[1].Met).To(BeFalse())
		Expect(reports).To(HaveLen(10))
		Expect(s.Finished()).To(BeTrue())
	})

	It("should fail at the ceiling in strict mode", func() {
		m := newTimedTrigger(tb, 1<<62, 1<<62)
		s := build(m, 50_000).WithStrict()

		err := s.StartStim(1)

		Expect(err).To(MatchError(ErrTimeoutExceeded))
		Expect(s.Reports()).To(HaveLen(1))
		Expect(tb.Now()).To(BeNumerically(">=", 50_000))
	})

	It("should let the sonar controller measure the distance", func() {
		sonar := model.MakeSonarBuilder().Build()
		s := build(sonar, 200_000_000)

		Expect(d.Settle(
			driver.PinValue{Name: model.PinSonarEcho, Value: model.Low},
			driver.PinValue{Name: model.PinRX, Value: model.High},
			driver.PinValue{Name: model.PinButton, Value: model.High},
		)).To(Succeed())
		Expect(s.StartStim(24)).To(Succeed())

		Expect(sonar.Echoes()).To(Equal(1))
		Expect(sonar.EchoCycles()).To(Equal(uint64(33853)))
		Expect(sonar.Get(model.PinDistance)).To(Equal(uint64(24)))
		Expect(sonar.Get(model.PinDistanceValid)).To(Equal(model.High))
	})
})
