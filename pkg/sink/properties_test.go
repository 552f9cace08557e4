package sink_test

import (
	"time"

	"github.com/corestream/tensorsink/pkg/sink"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Sink properties", func() {
	var element *sink.Sink

	BeforeEach(func() {
		element = sink.New("test_sink", logger, sink.DefaultOptions())
	})

	Describe("defaults", func() {
		It("reports the documented default for every property", func() {
			Expect(element.RenderRate()).To(Equal(time.Duration(0)))
			Expect(element.EmitSignal()).To(BeTrue())
			Expect(element.Silent()).To(BeTrue())
			Expect(element.Sync()).To(BeTrue())
			Expect(element.MaxLateness()).To(Equal(30 * time.Millisecond))
			Expect(element.Qos()).To(BeTrue())
		})
	})

	Describe("round-trips", func() {
		It("render-rate", func() {
			element.SetRenderRate(10)
			Expect(element.RenderRate()).To(Equal(time.Duration(10)))
		})

		It("emit-signal", func() {
			element.SetEmitSignal(false)
			Expect(element.EmitSignal()).To(BeFalse())
		})

		It("silent", func() {
			element.SetSilent(false)
			Expect(element.Silent()).To(BeFalse())
		})

		It("sync", func() {
			element.SetSync(false)
			Expect(element.Sync()).To(BeFalse())
		})

		It("max-lateness accepts -1 as unlimited", func() {
			element.SetMaxLateness(-1)
			Expect(element.MaxLateness()).To(Equal(time.Duration(-1)))
		})

		It("qos", func() {
			element.SetQos(false)
			Expect(element.Qos()).To(BeFalse())
		})
	})

	Describe("SetProperty()/GetProperty()", func() {
		It("round-trips every known property", func() {
			element.SetProperty(sink.PropRenderRate, uint64(10))
			element.SetProperty(sink.PropEmitSignal, false)
			element.SetProperty(sink.PropSilent, false)
			element.SetProperty(sink.PropSync, false)
			element.SetProperty(sink.PropMaxLateness, int64(-1))
			element.SetProperty(sink.PropQos, false)

			expectProperty := func(name string, expected interface{}) {
				value, ok := element.GetProperty(name)
				Expect(ok).To(BeTrue(), "property %s should be known", name)
				Expect(value).To(Equal(expected))
			}

			expectProperty(sink.PropRenderRate, time.Duration(10))
			expectProperty(sink.PropEmitSignal, false)
			expectProperty(sink.PropSilent, false)
			expectProperty(sink.PropSync, false)
			expectProperty(sink.PropMaxLateness, time.Duration(-1))
			expectProperty(sink.PropQos, false)
		})

		Context("with an unknown property name", func() {
			It("set is a no-op and get leaves the destination untouched", func() {
				element.SetProperty("unknown-prop", 1)

				unknown := -1
				if value, ok := element.GetProperty("unknown-prop"); ok {
					unknown = value.(int)
				}

				Expect(unknown).To(Equal(-1))
			})

			It("does not disturb known properties", func() {
				element.SetProperty("unknown-prop", 1)
				Expect(element.RenderRate()).To(Equal(time.Duration(0)))
			})
		})

		Context("with a mismatched value type", func() {
			It("leaves the property unchanged", func() {
				element.SetProperty(sink.PropEmitSignal, "yes")
				Expect(element.EmitSignal()).To(BeTrue())
			})
		})
	})
})
