// Package pipetest builds scoped, self-tearing-down pipelines for conformance
// tests. Each scenario constructs its own Fixture rather than sharing
// process-wide state, so suites can run in parallel and no resource outlives
// its scenario.
package pipetest

import (
	"context"
	"time"

	"github.com/corestream/tensorsink/pkg/elements"
	"github.com/corestream/tensorsink/pkg/pipeline"
	"github.com/corestream/tensorsink/pkg/sink"

	kitlog "github.com/go-kit/kit/log"
	"github.com/pkg/errors"
)

// SinkName is the name the fixture gives its sink, for ByName lookups.
const SinkName = "test_sink"

type config struct {
	logger     kitlog.Logger
	sourceOpts elements.TestSourceOptions
	sinkOpts   sink.Options
	require    elements.VideoCaps
	clock      pipeline.Clock
}

type Option func(*config)

func WithLogger(logger kitlog.Logger) Option {
	return func(cfg *config) { cfg.logger = logger }
}

func WithNumBuffers(n int) Option {
	return func(cfg *config) { cfg.sourceOpts.NumBuffers = n }
}

func WithSourceOptions(opts elements.TestSourceOptions) Option {
	return func(cfg *config) { cfg.sourceOpts = opts }
}

func WithSinkOptions(opts sink.Options) Option {
	return func(cfg *config) { cfg.sinkOpts = opts }
}

// WithRequiredCaps overrides the caps filter requirement, typically to force
// a negotiation failure.
func WithRequiredCaps(require elements.VideoCaps) Option {
	return func(cfg *config) { cfg.require = require }
}

func WithClock(clock pipeline.Clock) Option {
	return func(cfg *config) { cfg.clock = clock }
}

// Fixture is one scenario's pipeline: testsrc → capsfilter → convert →
// tensor sink, mirroring the canonical launch description.
type Fixture struct {
	Pipeline *pipeline.Pipeline
	Source   *elements.TestSource
	Sink     *sink.Sink
}

// Configure builds the pipeline without starting it. A configuration the
// elements reject at Add time is reported as an error with nothing retained.
func Configure(opts ...Option) (*Fixture, error) {
	cfg := &config{
		logger: kitlog.NewNopLogger(),
		sourceOpts: elements.TestSourceOptions{
			NumBuffers:   10,
			Width:        640,
			Height:       480,
			Format:       "RGB",
			FramerateNum: 30,
			FramerateDen: 1,
		},
		sinkOpts: sink.DefaultOptions(),
		require:  elements.VideoCaps{Format: "RGB"},
		// A clock pinned at zero: running time never overtakes buffer
		// timestamps, so conformance runs see no lateness drops.
		clock: new(pipeline.ManualClock),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	fixture := &Fixture{
		Source: elements.NewTestSource("src", cfg.logger, cfg.sourceOpts),
		Sink:   sink.New(SinkName, cfg.logger, cfg.sinkOpts),
	}

	fixture.Pipeline = pipeline.New(cfg.logger, pipeline.Options{Name: "pipetest", Clock: cfg.clock})

	for _, element := range []pipeline.Element{
		fixture.Source,
		elements.NewCapsFilter("filter", cfg.require),
		elements.NewConvert("convert", cfg.logger),
		fixture.Sink,
	} {
		if err := fixture.Pipeline.Add(element); err != nil {
			return nil, errors.Wrap(err, "failed to assemble fixture pipeline")
		}
	}

	return fixture, nil
}

// Setup scopes the scenario: it returns a deadline-bound context and a
// teardown that stops the pipeline and finalizes the sink on every exit path.
func (f *Fixture) Setup(ctx context.Context, timeout time.Duration) (context.Context, func()) {
	ctx, cancel := context.WithTimeout(ctx, timeout)

	teardown := func() {
		f.Pipeline.Stop(context.Background())
		f.Sink.Finalize()
		cancel()
	}

	return ctx, teardown
}

// StreamAll runs the pipeline until its first terminal bus message.
func (f *Fixture) StreamAll(ctx context.Context) (pipeline.Message, error) {
	return f.Pipeline.Run(ctx)
}
