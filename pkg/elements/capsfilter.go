package elements

import (
	"github.com/corestream/tensorsink/pkg/pipeline"

	"github.com/pkg/errors"
)

// CapsFilter is the format-negotiation stage: it passes buffers through
// untouched but vetoes the link when upstream caps don't satisfy its
// requirement.
type CapsFilter struct {
	name    string
	require VideoCaps
}

func NewCapsFilter(name string, require VideoCaps) *CapsFilter {
	return &CapsFilter{name: name, require: require}
}

func (f *CapsFilter) Name() string {
	return f.name
}

func (f *CapsFilter) Link(upstream pipeline.Caps) (pipeline.Caps, error) {
	caps, ok := upstream.(VideoCaps)
	if !ok {
		return nil, errors.Errorf("caps filter requires %s, got %s", VideoMediaType, upstream.MediaType())
	}

	if !caps.Satisfies(f.require) {
		return nil, errors.Errorf("caps not accepted: have %s, want %s", caps, f.require)
	}

	return caps, nil
}

func (f *CapsFilter) Transform(buf *pipeline.Buffer) (*pipeline.Buffer, error) {
	return buf, nil
}
