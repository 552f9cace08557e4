package serialize

import (
	"time"

	"github.com/corestream/tensorsink/pkg/pipeline"
	"github.com/corestream/tensorsink/pkg/tensor"

	"github.com/pkg/errors"
)

// EnvelopeVersion is the current wire version. Decoders reject anything else.
const EnvelopeVersion = 1

// Codec encodes tensor buffers, caps included, into a self-describing byte
// stream and back. Codecs are stateless and share nothing with the sink; they
// register themselves from init() of their subpackage, so importing a codec
// package is what makes the format available.
type Codec interface {
	Name() string
	Marshal(caps tensor.Caps, buf *pipeline.Buffer) ([]byte, error)
	Unmarshal(data []byte) (tensor.Caps, *pipeline.Buffer, error)
}

// Envelope is the wire shape every codec serializes. It carries enough to
// reconstruct the negotiated caps alongside the payload.
type Envelope struct {
	Version   uint8
	Type      string
	Dims      tensor.Dims
	Timestamp int64
	Duration  int64
	Payload   []byte
}

// Pack builds the envelope for a buffer travelling under the given caps.
func Pack(caps tensor.Caps, buf *pipeline.Buffer) Envelope {
	return Envelope{
		Version:   EnvelopeVersion,
		Type:      caps.Type.String(),
		Dims:      caps.Dims,
		Timestamp: int64(buf.Timestamp),
		Duration:  int64(buf.Duration),
		Payload:   buf.Data,
	}
}

// Unpack validates the envelope and reconstructs caps and buffer.
func (e Envelope) Unpack() (tensor.Caps, *pipeline.Buffer, error) {
	if e.Version != EnvelopeVersion {
		return tensor.Caps{}, nil, errors.Errorf("unsupported envelope version: %d", e.Version)
	}

	typ, err := tensor.ParseElementType(e.Type)
	if err != nil {
		return tensor.Caps{}, nil, errors.Wrap(err, "invalid envelope")
	}

	caps := tensor.Caps{Type: typ, Dims: e.Dims}
	if err := caps.Validate(); err != nil {
		return tensor.Caps{}, nil, errors.Wrap(err, "invalid envelope caps")
	}

	if len(e.Payload) != caps.FrameSize() {
		return tensor.Caps{}, nil, errors.Errorf("payload is %d bytes, caps describe %d", len(e.Payload), caps.FrameSize())
	}

	buf := &pipeline.Buffer{
		Data:      e.Payload,
		Timestamp: time.Duration(e.Timestamp),
		Duration:  time.Duration(e.Duration),
	}

	return caps, buf, nil
}
