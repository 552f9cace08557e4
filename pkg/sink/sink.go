package sink

import (
	"sync"
	"time"

	"github.com/corestream/tensorsink/internal/telem"
	"github.com/corestream/tensorsink/pkg/pipeline"
	"github.com/corestream/tensorsink/pkg/tensor"

	kitlog "github.com/go-kit/kit/log"
	level "github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	receivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tensorsink_sink_received_buffer_total",
			Help: "Total number of buffers presented to tensor sinks",
		},
	)
	emitTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tensorsink_sink_emit_total",
			Help: "Total number of signal emissions, by signal",
		},
		[]string{"signal"},
	)
	droppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tensorsink_sink_dropped_buffer_total",
			Help: "Total number of buffers dropped before notification, by reason",
		},
		[]string{"reason"},
	)
)

// Stats is a point-in-time snapshot of a sink's delivery accounting. Received
// counts every buffer presented by the pipeline; Forwarded counts the ones
// that passed the rate gate, whether or not a signal fired for them.
type Stats struct {
	Received    uint64
	Forwarded   uint64
	DroppedRate uint64
	DroppedLate uint64
}

// Sink is a terminal pipeline element for tensor streams. It accepts one
// buffer at a time, decides whether to forward it to subscribers according to
// its rate policy, and emits stream-start, new-data and eos signals.
//
// The pipeline guarantees a single in-flight Render call, but property access
// may race with Render from other goroutines, so all state lives behind one
// mutex. Signal callbacks are invoked outside the lock, on the render thread.
type Sink struct {
	name   string
	logger kitlog.Logger

	mu     sync.Mutex
	opts   Options
	clock  pipeline.Clock
	caps   tensor.Caps
	linked bool

	state     pipeline.State
	started   bool // stream-start armed for the current stream
	eosFired  bool
	finalized bool

	lastForwarded    time.Duration
	hasLastForwarded bool

	stats Stats

	subs       []subscription
	nextHandle uint64
}

func New(name string, logger kitlog.Logger, opts Options) *Sink {
	return &Sink{
		name:   name,
		logger: kitlog.With(telem.ComponentLogger(logger, "sink"), "element", name),
		opts:   opts,
	}
}

func (s *Sink) Name() string {
	return s.name
}

// SetClock receives the pipeline clock during Start. Lateness decisions are
// made against it.
func (s *Sink) SetClock(clock pipeline.Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clock = clock
}

// Link accepts only tensor caps. The negotiated caps are retained so
// subscribers can interpret the payloads they receive.
func (s *Sink) Link(upstream pipeline.Caps) (pipeline.Caps, error) {
	caps, ok := upstream.(tensor.Caps)
	if !ok {
		return nil, errors.Errorf("tensor sink requires %s caps, got %s", tensor.MediaType, upstream.MediaType())
	}

	if err := caps.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid tensor caps")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.caps = caps
	s.linked = true

	return caps, nil
}

// Caps returns the negotiated tensor caps. Valid once linked.
func (s *Sink) Caps() (tensor.Caps, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.caps, s.linked
}

// Render handles a single buffer. The buffer is borrowed: it is passed to
// subscribers synchronously and never retained past the call.
//
// Decision order: the first buffer of a stream arms stream-start, a lateness
// drop is evaluated next and wins over the rate gate, then the rate gate
// decides whether subscribers hear about the buffer at all.
func (s *Sink) Render(buf *pipeline.Buffer) (pipeline.Flow, error) {
	s.mu.Lock()

	if s.finalized {
		s.mu.Unlock()
		return pipeline.FlowOK, nil
	}

	s.stats.Received++
	receivedTotal.Inc()

	opts := s.opts

	var fireStreamStart, fireNewData bool
	if !s.started {
		s.started = true
		fireStreamStart = opts.EmitSignal
	}

	var flow pipeline.Flow
	var lateness time.Duration
	if s.clock != nil {
		lateness = s.clock.Now() - buf.Timestamp
	}

	if opts.Sync && opts.Qos && opts.MaxLateness >= 0 && lateness > opts.MaxLateness {
		// Dropped for lateness. This takes precedence over the rate gate and
		// leaves the last forwarded timestamp untouched.
		s.stats.DroppedLate++
		droppedTotal.WithLabelValues("late").Inc()
		flow = pipeline.FlowLate
	} else if opts.RenderRate == 0 || !s.hasLastForwarded || buf.Timestamp-s.lastForwarded >= opts.RenderRate {
		s.lastForwarded = buf.Timestamp
		s.hasLastForwarded = true
		s.stats.Forwarded++
		fireNewData = opts.EmitSignal
		flow = pipeline.FlowOK
	} else {
		s.stats.DroppedRate++
		droppedTotal.WithLabelValues("rate").Inc()
		flow = pipeline.FlowDropped
	}

	if !opts.Silent {
		level.Debug(s.logger).Log("event", "render",
			"timestamp", buf.Timestamp,
			"flow", flow,
			"received", s.stats.Received,
		)
	}

	s.mu.Unlock()

	if fireStreamStart {
		s.emit(SignalStreamStart, nil)
	}
	if fireNewData {
		s.emit(SignalNewData, buf)
	}

	return flow, nil
}

// HandleEOS fires the eos signal exactly once per stream, no matter how many
// times the pipeline calls it.
func (s *Sink) HandleEOS() {
	s.mu.Lock()

	if s.eosFired || s.finalized {
		s.mu.Unlock()
		return
	}

	s.eosFired = true
	fire := s.opts.EmitSignal

	if !s.opts.Silent {
		level.Debug(s.logger).Log("event", "eos", "received", s.stats.Received)
	}

	s.mu.Unlock()

	if fire {
		s.emit(SignalEOS, nil)
	}
}

// ChangeState mirrors pipeline-driven transitions. Entering Paused from Ready
// begins a new stream: the stream-start signal re-arms and the rate gate
// forgets its reference timestamp, since stream time restarts at zero.
func (s *Sink) ChangeState(from, to pipeline.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if from == pipeline.StateReady && to == pipeline.StatePaused {
		s.started = false
		s.eosFired = false
		s.hasLastForwarded = false
	}

	s.state = to

	return nil
}

// State returns the lifecycle stage last mirrored from the pipeline.
func (s *Sink) State() pipeline.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Stats returns a snapshot of the delivery accounting.
func (s *Sink) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stats
}

// LastForwarded returns the timestamp of the most recently forwarded buffer,
// and whether any buffer has been forwarded yet.
func (s *Sink) LastForwarded() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastForwarded, s.hasLastForwarded
}

// Finalize releases the subscription list and silences the element for good.
// Idempotent; no signal fires after Finalize returns.
func (s *Sink) Finalize() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return
	}

	s.finalized = true
	s.subs = nil
	s.state = pipeline.StateNull
}
