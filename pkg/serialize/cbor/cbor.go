// Package cbor provides the CBOR tensor codec. Importing it registers the
// codec under the name "cbor".
package cbor

import (
	"github.com/corestream/tensorsink/pkg/pipeline"
	"github.com/corestream/tensorsink/pkg/serialize"
	"github.com/corestream/tensorsink/pkg/tensor"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

func init() {
	serialize.Register(Codec{})
}

var _ serialize.Codec = Codec{}

type Codec struct{}

func (Codec) Name() string {
	return "cbor"
}

func (Codec) Marshal(caps tensor.Caps, buf *pipeline.Buffer) ([]byte, error) {
	env := serialize.Pack(caps, buf)

	data, err := cbor.Marshal(&env)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal cbor envelope")
	}

	return data, nil
}

func (Codec) Unmarshal(data []byte) (tensor.Caps, *pipeline.Buffer, error) {
	var env serialize.Envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return tensor.Caps{}, nil, errors.Wrap(err, "failed to unmarshal cbor envelope")
	}

	return env.Unpack()
}
