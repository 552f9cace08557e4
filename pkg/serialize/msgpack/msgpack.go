// Package msgpack provides the MessagePack tensor codec. Importing it
// registers the codec under the name "msgpack".
package msgpack

import (
	"github.com/corestream/tensorsink/pkg/pipeline"
	"github.com/corestream/tensorsink/pkg/serialize"
	"github.com/corestream/tensorsink/pkg/tensor"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

func init() {
	serialize.Register(Codec{})
}

var _ serialize.Codec = Codec{}

type Codec struct{}

func (Codec) Name() string {
	return "msgpack"
}

func (Codec) Marshal(caps tensor.Caps, buf *pipeline.Buffer) ([]byte, error) {
	env := serialize.Pack(caps, buf)

	data, err := msgpack.Marshal(&env)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal msgpack envelope")
	}

	return data, nil
}

func (Codec) Unmarshal(data []byte) (tensor.Caps, *pipeline.Buffer, error) {
	var env serialize.Envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return tensor.Caps{}, nil, errors.Wrap(err, "failed to unmarshal msgpack envelope")
	}

	return env.Unpack()
}
