package integration

import (
	"context"
	"time"

	"github.com/corestream/tensorsink/pkg/elements"
	"github.com/corestream/tensorsink/pkg/pipeline"
	"github.com/corestream/tensorsink/pkg/pipetest"
	"github.com/corestream/tensorsink/pkg/sink"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Tensor sink conformance", func() {
	var (
		fixture  *pipetest.Fixture
		recorder *pipetest.Recorder
		options  []pipetest.Option

		ctx      context.Context
		teardown func()
	)

	BeforeEach(func() {
		options = []pipetest.Option{pipetest.WithLogger(logger)}
		recorder = pipetest.NewRecorder()
	})

	JustBeforeEach(func() {
		var err error
		fixture, err = pipetest.Configure(options...)
		Expect(err).NotTo(HaveOccurred())

		recorder.Attach(fixture.Sink)
		ctx, teardown = fixture.Setup(context.Background(), 10*time.Second)
	})

	AfterEach(func() {
		teardown()
	})

	Describe("end-to-end delivery", func() {
		It("exposes the sink by name for consumer lookup", func() {
			Expect(fixture.Pipeline.ByName(pipetest.SinkName)).To(BeIdenticalTo(fixture.Sink))
		})

		It("fires a signal per buffer and terminates with EOS", func() {
			msg, err := fixture.StreamAll(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(msg.Kind).To(Equal(pipeline.MessageEOS))
			Expect(recorder.Count(sink.SignalNewData)).To(Equal(10))
			Expect(recorder.Count(sink.SignalStreamStart)).To(Equal(1))
			Expect(recorder.Count(sink.SignalEOS)).To(Equal(1))
			Expect(fixture.Sink.Stats().Received).To(Equal(uint64(10)))
		})

		It("fires stream-start before the first new-data", func() {
			var starts int
			fixture.Sink.Connect(sink.SignalStreamStart, func(*pipeline.Buffer) { starts++ })
			fixture.Sink.Connect(sink.SignalNewData, func(*pipeline.Buffer) {
				Expect(starts).To(Equal(1), "new-data fired before stream-start")
			})

			_, err := fixture.StreamAll(ctx)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("rate-gated delivery", func() {
		BeforeEach(func() {
			opts := sink.DefaultOptions()
			opts.RenderRate = 50 * time.Millisecond // most 30fps inter-frame gaps fall short
			options = append(options, pipetest.WithSinkOptions(opts))
		})

		It("forwards strictly fewer buffers than it receives, still reaching EOS", func() {
			msg, err := fixture.StreamAll(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(msg.Kind).To(Equal(pipeline.MessageEOS))
			Expect(recorder.Count(sink.SignalNewData)).To(BeNumerically("<", 10))
			Expect(recorder.Count(sink.SignalNewData)).To(BeNumerically(">", 0))
			Expect(fixture.Sink.Stats().Received).To(Equal(uint64(10)))
		})

		It("keeps forwarded timestamps monotonic", func() {
			_, err := fixture.StreamAll(ctx)
			Expect(err).NotTo(HaveOccurred())

			timestamps := recorder.Timestamps()
			Expect(timestamps).NotTo(BeEmpty())
			for idx := 1; idx < len(timestamps); idx++ {
				Expect(timestamps[idx]).To(BeNumerically(">=", timestamps[idx-1]))
			}

			last, ok := fixture.Sink.LastForwarded()
			Expect(ok).To(BeTrue())
			Expect(last).To(Equal(timestamps[len(timestamps)-1]))
		})
	})

	Describe("suppressed emission", func() {
		BeforeEach(func() {
			opts := sink.DefaultOptions()
			opts.EmitSignal = false
			options = append(options, pipetest.WithSinkOptions(opts))
		})

		It("completes with EOS without a single signal", func() {
			msg, err := fixture.StreamAll(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(msg.Kind).To(Equal(pipeline.MessageEOS))
			Expect(recorder.Count(sink.SignalNewData)).To(BeZero())
			Expect(recorder.Count(sink.SignalStreamStart)).To(BeZero())
			Expect(recorder.Count(sink.SignalEOS)).To(BeZero())
			Expect(fixture.Sink.Stats().Received).To(Equal(uint64(10)))
		})
	})

	Describe("unknown signal", func() {
		It("yields a zero handle and never invokes the handler", func() {
			var invoked int
			Expect(fixture.Sink.Connect("unknown-sig", func(*pipeline.Buffer) { invoked++ })).To(BeZero())

			msg, err := fixture.StreamAll(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(msg.Kind).To(Equal(pipeline.MessageEOS))
			Expect(invoked).To(BeZero())
			Expect(fixture.Sink.Stats().Received).To(Equal(uint64(10)))
		})
	})

	Describe("mid-stream render-rate change", func() {
		It("applies the rate in force at each render", func() {
			recorder.OnNewData = func(*pipeline.Buffer) {
				if recorder.Count(sink.SignalNewData) == 5 {
					fixture.Sink.SetRenderRate(time.Hour)
				}
			}

			msg, err := fixture.StreamAll(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(msg.Kind).To(Equal(pipeline.MessageEOS))
			Expect(recorder.Count(sink.SignalNewData)).To(Equal(5))
			Expect(fixture.Sink.Stats().Received).To(Equal(uint64(10)))
		})

		It("tolerates a concurrent controller adjusting the rate", func() {
			done := make(chan struct{})
			go func() {
				defer close(done)
				for idx := 0; idx < 100; idx++ {
					fixture.Sink.SetRenderRate(time.Duration(idx) * time.Millisecond)
				}
			}()

			msg, err := fixture.StreamAll(ctx)
			<-done

			Expect(err).NotTo(HaveOccurred())
			Expect(msg.Kind).To(Equal(pipeline.MessageEOS))
			Expect(fixture.Sink.Stats().Received).To(Equal(uint64(10)))
			Expect(recorder.Count(sink.SignalNewData)).To(BeNumerically(">", 0))
		})
	})

	Describe("negotiation failure", func() {
		BeforeEach(func() {
			// The source produces RGB, so a GRAY8 requirement cannot link.
			options = append(options, pipetest.WithRequiredCaps(elements.VideoCaps{Format: "GRAY8"}))
		})

		It("fails Start with a full teardown and an ERROR on the bus", func() {
			_, err := fixture.StreamAll(ctx)
			Expect(err).To(HaveOccurred())
			Expect(fixture.Pipeline.State()).To(Equal(pipeline.StateNull))

			msg, err := fixture.Pipeline.Bus().WaitTerminal(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(msg.Kind).To(Equal(pipeline.MessageError))
		})
	})
})
