package elements

import (
	"sync"

	"github.com/corestream/tensorsink/internal/telem"
	"github.com/corestream/tensorsink/pkg/pipeline"
	"github.com/corestream/tensorsink/pkg/tensor"

	kitlog "github.com/go-kit/kit/log"
	"github.com/pkg/errors"
)

// Convert turns a raw video stream into a tensor stream. The payload is
// already a packed channels×width×height frame, so conversion is a zero-copy
// re-caps: Link negotiates the tensor layout and Transform only validates
// frame sizes.
type Convert struct {
	name   string
	logger kitlog.Logger

	mu     sync.Mutex
	caps   tensor.Caps
	linked bool
}

func NewConvert(name string, logger kitlog.Logger) *Convert {
	return &Convert{
		name:   name,
		logger: kitlog.With(telem.ComponentLogger(logger, "convert"), "element", name),
	}
}

func (c *Convert) Name() string {
	return c.name
}

func (c *Convert) Link(upstream pipeline.Caps) (pipeline.Caps, error) {
	video, ok := upstream.(VideoCaps)
	if !ok {
		return nil, errors.Errorf("tensor converter requires %s, got %s", VideoMediaType, upstream.MediaType())
	}

	caps, err := tensor.FromVideo(video.Format, video.Width, video.Height)
	if err != nil {
		return nil, errors.Wrap(err, "failed to negotiate tensor caps")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.caps = caps
	c.linked = true
	c.logger.Log("event", "linked", "caps", caps)

	return caps, nil
}

func (c *Convert) Transform(buf *pipeline.Buffer) (*pipeline.Buffer, error) {
	c.mu.Lock()
	caps, linked := c.caps, c.linked
	c.mu.Unlock()

	if !linked {
		return nil, errors.New("transform before link")
	}

	if len(buf.Data) != caps.FrameSize() {
		return nil, errors.Errorf("frame size mismatch: got %d bytes, caps say %d", len(buf.Data), caps.FrameSize())
	}

	return buf, nil
}
