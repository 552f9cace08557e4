package elements

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/corestream/tensorsink/internal/telem"
	"github.com/corestream/tensorsink/pkg/pipeline"

	"github.com/alecthomas/kingpin"
	kitlog "github.com/go-kit/kit/log"
	level "github.com/go-kit/kit/log/level"
)

type TestSourceOptions struct {
	NumBuffers   int
	Width        int
	Height       int
	Format       string
	FramerateNum int
	FramerateDen int
}

func (opt *TestSourceOptions) Bind(cmd *kingpin.CmdClause, prefix string) *TestSourceOptions {
	cmd.Flag(fmt.Sprintf("%snum-buffers", prefix), "Number of buffers to produce before EOS").Default("10").IntVar(&opt.NumBuffers)
	cmd.Flag(fmt.Sprintf("%swidth", prefix), "Frame width in pixels").Default("640").IntVar(&opt.Width)
	cmd.Flag(fmt.Sprintf("%sheight", prefix), "Frame height in pixels").Default("480").IntVar(&opt.Height)
	cmd.Flag(fmt.Sprintf("%sformat", prefix), "Raw video format").Default("RGB").StringVar(&opt.Format)
	cmd.Flag(fmt.Sprintf("%sframerate-num", prefix), "Framerate numerator").Default("30").IntVar(&opt.FramerateNum)
	cmd.Flag(fmt.Sprintf("%sframerate-den", prefix), "Framerate denominator").Default("1").IntVar(&opt.FramerateDen)

	return opt
}

// TestSource produces synthetic raw video frames, timestamped as a live
// source would: frame i carries PTS i×frame-duration. After NumBuffers frames
// it reports EndOfStream.
type TestSource struct {
	name   string
	logger kitlog.Logger
	opts   TestSourceOptions

	mu       sync.Mutex
	produced int
}

func NewTestSource(name string, logger kitlog.Logger, opts TestSourceOptions) *TestSource {
	return &TestSource{
		name:   name,
		logger: kitlog.With(telem.ComponentLogger(logger, "testsrc"), "element", name),
		opts:   opts,
	}
}

func (s *TestSource) Name() string {
	return s.name
}

func (s *TestSource) OutputCaps() pipeline.Caps {
	return VideoCaps{
		Format:       s.opts.Format,
		Width:        s.opts.Width,
		Height:       s.opts.Height,
		FramerateNum: s.opts.FramerateNum,
		FramerateDen: s.opts.FramerateDen,
	}
}

func (s *TestSource) Produce(ctx context.Context) (*pipeline.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.produced >= s.opts.NumBuffers {
		return nil, pipeline.EndOfStream
	}

	caps := s.OutputCaps().(VideoCaps)
	size, err := caps.FrameSize()
	if err != nil {
		return nil, err
	}

	// A flat frame whose fill value identifies its index, enough for
	// downstream checks without a real pattern generator.
	data := make([]byte, size)
	for idx := range data {
		data[idx] = byte(s.produced)
	}

	duration := caps.FrameDuration()
	buf := &pipeline.Buffer{
		Data:      data,
		Timestamp: time.Duration(s.produced) * duration,
		Duration:  duration,
	}

	s.produced++
	level.Debug(s.logger).Log("event", "produce", "index", s.produced, "timestamp", buf.Timestamp)

	return buf, nil
}

// ChangeState resets production when a new stream begins, so a restarted
// pipeline replays the full buffer count from timestamp zero.
func (s *TestSource) ChangeState(from, to pipeline.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if from == pipeline.StateReady && to == pipeline.StatePaused {
		s.produced = 0
	}

	return nil
}
