package tensor_test

import (
	"github.com/corestream/tensorsink/pkg/tensor"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("ElementType", func() {
	It("sizes every type", func() {
		Expect(tensor.UInt8.Size()).To(Equal(1))
		Expect(tensor.Int16.Size()).To(Equal(2))
		Expect(tensor.Float32.Size()).To(Equal(4))
		Expect(tensor.Float64.Size()).To(Equal(8))
	})

	Describe("ParseElementType", func() {
		It("round-trips names", func() {
			typ, err := tensor.ParseElementType("uint8")
			Expect(err).NotTo(HaveOccurred())
			Expect(typ).To(Equal(tensor.UInt8))
			Expect(typ.String()).To(Equal("uint8"))
		})

		It("rejects unknown names", func() {
			_, err := tensor.ParseElementType("uint128")
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("Dims", func() {
	It("pads trailing dimensions with 1", func() {
		dims := tensor.NewDims(3, 640, 480)
		Expect(dims).To(Equal(tensor.Dims{3, 640, 480, 1}))
	})

	It("computes the cell count", func() {
		Expect(tensor.NewDims(3, 640, 480).Count()).To(Equal(uint64(3 * 640 * 480)))
	})

	It("renders caps-style strings", func() {
		Expect(tensor.NewDims(3, 640, 480).String()).To(Equal("3:640:480:1"))
	})
})

var _ = Describe("Caps", func() {
	var caps tensor.Caps

	BeforeEach(func() {
		caps = tensor.Caps{Type: tensor.UInt8, Dims: tensor.NewDims(3, 640, 480)}
	})

	It("reports the tensor media type", func() {
		Expect(caps.MediaType()).To(Equal("other/tensor"))
	})

	It("computes frame size from type and dims", func() {
		Expect(caps.FrameSize()).To(Equal(3 * 640 * 480))
	})

	It("validates well-formed caps", func() {
		Expect(caps.Validate()).To(Succeed())
	})

	It("rejects zero dimensions", func() {
		caps.Dims[1] = 0
		Expect(caps.Validate()).NotTo(Succeed())
	})

	It("renders the negotiated caps string", func() {
		Expect(caps.String()).To(Equal("other/tensor, type=uint8, dimension=3:640:480:1"))
	})

	Describe("FromVideo", func() {
		It("maps RGB onto a 3-channel uint8 tensor", func() {
			caps, err := tensor.FromVideo("RGB", 640, 480)
			Expect(err).NotTo(HaveOccurred())
			Expect(caps.Type).To(Equal(tensor.UInt8))
			Expect(caps.Dims).To(Equal(tensor.NewDims(3, 640, 480)))
		})

		It("maps GRAY8 onto a single channel", func() {
			caps, err := tensor.FromVideo("GRAY8", 8, 8)
			Expect(err).NotTo(HaveOccurred())
			Expect(caps.Dims).To(Equal(tensor.NewDims(1, 8, 8)))
		})

		It("fails negotiation for unsupported formats", func() {
			_, err := tensor.FromVideo("I420", 640, 480)
			Expect(err).To(HaveOccurred())
		})
	})
})
