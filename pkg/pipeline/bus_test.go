package pipeline_test

import (
	"context"
	"errors"
	"time"

	"github.com/corestream/tensorsink/pkg/pipeline"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Bus", func() {
	var (
		ctx    context.Context
		cancel func()
		bus    *pipeline.Bus
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), time.Second)
		bus = pipeline.NewBus()
	})

	AfterEach(func() {
		cancel()
	})

	Describe("Next()", func() {
		It("delivers messages in post order", func() {
			bus.Post(pipeline.Message{Kind: pipeline.MessageStreamStart})
			bus.Post(pipeline.Message{Kind: pipeline.MessageStateChanged})
			bus.Post(pipeline.Message{Kind: pipeline.MessageEOS})

			kinds := []pipeline.MessageKind{}
			for idx := 0; idx < 3; idx++ {
				msg, err := bus.Next(ctx)
				Expect(err).NotTo(HaveOccurred())
				kinds = append(kinds, msg.Kind)
			}

			Expect(kinds).To(Equal([]pipeline.MessageKind{
				pipeline.MessageStreamStart,
				pipeline.MessageStateChanged,
				pipeline.MessageEOS,
			}))
		})

		It("returns the context error once expired", func() {
			expired, cancelNow := context.WithCancel(ctx)
			cancelNow()

			_, err := bus.Next(expired)
			Expect(err).To(MatchError(context.Canceled))
		})

		It("wakes a blocked consumer on post", func() {
			done := make(chan pipeline.Message, 1)
			go func() {
				msg, err := bus.Next(ctx)
				Expect(err).NotTo(HaveOccurred())
				done <- msg
			}()

			bus.Post(pipeline.Message{Kind: pipeline.MessageEOS})
			Eventually(done).Should(Receive())
		})
	})

	Describe("WaitTerminal()", func() {
		It("skips informational messages", func() {
			bus.Post(pipeline.Message{Kind: pipeline.MessageStreamStart})
			bus.Post(pipeline.Message{Kind: pipeline.MessageStateChanged})
			bus.Post(pipeline.Message{Kind: pipeline.MessageEOS})

			msg, err := bus.WaitTerminal(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(msg.Kind).To(Equal(pipeline.MessageEOS))
		})

		It("ends on WARNING as a failure", func() {
			bus.Post(pipeline.Message{Kind: pipeline.MessageWarning, Err: errors.New("degraded")})

			msg, err := bus.WaitTerminal(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(msg.Kind.Failed()).To(BeTrue())
		})

		It("ends on ERROR as a failure", func() {
			bus.Post(pipeline.Message{Kind: pipeline.MessageError, Err: errors.New("broken")})

			msg, err := bus.WaitTerminal(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(msg.Kind.Failed()).To(BeTrue())
		})
	})

	Describe("Watch()", func() {
		It("observes every message without consuming the queue", func() {
			observed := []pipeline.MessageKind{}
			bus.Watch(func(msg pipeline.Message) {
				observed = append(observed, msg.Kind)
			})

			bus.Post(pipeline.Message{Kind: pipeline.MessageStreamStart})
			bus.Post(pipeline.Message{Kind: pipeline.MessageEOS})

			Expect(observed).To(HaveLen(2))

			msg, err := bus.Next(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(msg.Kind).To(Equal(pipeline.MessageStreamStart))
		})
	})
})
