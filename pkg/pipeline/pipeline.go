package pipeline

import (
	"context"
	"sync"

	"github.com/corestream/tensorsink/internal/telem"

	kitlog "github.com/go-kit/kit/log"
	level "github.com/go-kit/kit/log/level"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opencensus.io/trace"
)

var (
	bufferTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tensorsink_pipeline_buffer_total",
			Help: "Total number of buffers pushed through pipelines",
		},
	)
	qosEventTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tensorsink_pipeline_qos_event_total",
			Help: "Total number of late buffers reported by sinks",
		},
	)
)

type Options struct {
	Name  string
	Clock Clock // defaults to a running wall clock selected at Start
}

// Pipeline drives a linear chain of elements: one source, any number of
// filters, one sink, linked in Add order. It owns the bus, the clock and the
// streaming goroutine, and walks every element through state transitions.
type Pipeline struct {
	logger   kitlog.Logger
	opts     Options
	bus      *Bus
	elements []Element

	mu       sync.Mutex
	state    State
	clock    Clock
	streamID string
	cancel   context.CancelFunc
	done     chan error
}

func New(logger kitlog.Logger, opts Options) *Pipeline {
	if opts.Name == "" {
		opts.Name = "pipeline"
	}

	return &Pipeline{
		logger: kitlog.With(telem.ComponentLogger(logger, "pipeline"), "pipeline", opts.Name),
		opts:   opts,
		bus:    NewBus(),
	}
}

// Add appends an element to the chain. Elements must be added before Start,
// and names must be unique so ByName lookups are unambiguous.
func (p *Pipeline) Add(element Element) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateNull {
		return errors.New("cannot add elements to a started pipeline")
	}

	for _, existing := range p.elements {
		if existing.Name() == element.Name() {
			return errors.Errorf("duplicate element name: %s", element.Name())
		}
	}

	p.elements = append(p.elements, element)
	return nil
}

// ByName returns the element with the given name, or nil.
func (p *Pipeline) ByName(name string) Element {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, element := range p.elements {
		if element.Name() == name {
			return element
		}
	}

	return nil
}

func (p *Pipeline) Bus() *Bus {
	return p.bus
}

// State returns the pipeline's current lifecycle stage.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state
}

// Start walks the chain up to Playing and begins streaming. Negotiation
// happens on the Ready→Paused edge; any failure rolls every element back to
// Null, posts an ERROR to the bus and returns with nothing retained.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateNull {
		return errors.Errorf("pipeline already started, state %s", p.state)
	}

	source, filters, sink, err := p.chain()
	if err != nil {
		return p.abortLocked(err)
	}

	p.clock = p.opts.Clock
	if p.clock == nil {
		p.clock = NewRunningClock()
	}

	for _, transition := range upward {
		from, to := transition[0], transition[1]

		if to == StatePaused {
			if err := p.negotiate(source, filters, sink); err != nil {
				p.rollback(StateNull)
				return p.abortLocked(err)
			}
		}

		for _, element := range p.elements {
			if slave, ok := element.(ClockSlave); ok && to == StateReady {
				slave.SetClock(p.clock)
			}

			if stateful, ok := element.(Stateful); ok {
				if err := stateful.ChangeState(from, to); err != nil {
					p.rollback(StateNull)
					return p.abortLocked(errors.Wrapf(err, "element %s refused transition to %s", element.Name(), to))
				}
			}
		}

		p.state = to
		p.bus.Post(Message{Kind: MessageStateChanged, Source: p.opts.Name, State: to})
		level.Debug(p.logger).Log("event", "state_changed", "state", to)
	}

	p.streamID = uuid.New().String()
	streamCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan error, 1) // buffered by 1, to ensure progress when reporting an error

	go func() {
		p.done <- p.stream(streamCtx, source, filters, sink)
		close(p.done)
	}()

	return nil
}

// Stop cancels streaming, waits for the loop to exit, then walks the chain
// back down to Null. Safe to call multiple times and after a failed Start.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateNull {
		return nil
	}

	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}

	if p.done != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.done:
			p.done = nil
		}
	}

	p.rollback(StateNull)
	p.state = StateNull
	p.logger.Log("event", "stopped")

	return nil
}

// Run is the whole lifecycle in one call: Start, block until the first
// terminal bus message, Stop. The terminal message is returned so callers can
// distinguish EOS from failure.
func (p *Pipeline) Run(ctx context.Context) (msg Message, err error) {
	ctx, span, logger := telem.Logger(ctx, p.logger)(trace.StartSpan(ctx, "pkg/pipeline.Pipeline.Run"))
	defer span.End()

	if err := p.Start(ctx); err != nil {
		return Message{}, err
	}

	defer func() {
		if stopErr := p.Stop(context.Background()); stopErr != nil && err == nil {
			err = stopErr
		}
	}()

	msg, err = p.bus.WaitTerminal(ctx)
	if err != nil {
		return Message{}, err
	}

	logger.Log("event", "terminal_message", "kind", msg.Kind)
	return msg, nil
}

// chain validates the element layout: exactly one source at the head, one
// sink at the tail, filters between.
func (p *Pipeline) chain() (Source, []Filter, Sink, error) {
	if len(p.elements) < 2 {
		return nil, nil, nil, errors.New("pipeline needs at least a source and a sink")
	}

	source, ok := p.elements[0].(Source)
	if !ok {
		return nil, nil, nil, errors.Errorf("first element %s is not a source", p.elements[0].Name())
	}

	sink, ok := p.elements[len(p.elements)-1].(Sink)
	if !ok {
		return nil, nil, nil, errors.Errorf("last element %s is not a sink", p.elements[len(p.elements)-1].Name())
	}

	filters := []Filter{}
	for _, element := range p.elements[1 : len(p.elements)-1] {
		filter, ok := element.(Filter)
		if !ok {
			return nil, nil, nil, errors.Errorf("element %s is not a filter", element.Name())
		}

		filters = append(filters, filter)
	}

	return source, filters, sink, nil
}

// negotiate pushes caps down the chain, letting each element veto the link.
func (p *Pipeline) negotiate(source Source, filters []Filter, sink Sink) error {
	caps := source.OutputCaps()

	var err error
	for _, filter := range filters {
		if caps, err = filter.Link(caps); err != nil {
			return errors.Wrapf(err, "failed to link %s", filter.Name())
		}
	}

	if _, err = sink.Link(caps); err != nil {
		return errors.Wrapf(err, "failed to link %s", sink.Name())
	}

	return nil
}

// rollback walks stateful elements back down to the target state. Errors on
// the way down are logged and otherwise ignored, teardown must not stall.
func (p *Pipeline) rollback(target State) {
	for _, transition := range downward {
		from, to := transition[0], transition[1]
		if from > p.state || to < target {
			continue
		}

		for idx := len(p.elements) - 1; idx >= 0; idx-- {
			if stateful, ok := p.elements[idx].(Stateful); ok {
				if err := stateful.ChangeState(from, to); err != nil {
					p.logger.Log("event", "rollback_error", "element", p.elements[idx].Name(), "error", err)
				}
			}
		}
	}
}

// abortLocked posts the failure to the bus and resets bookkeeping so a failed
// Start leaves the pipeline exactly as constructed.
func (p *Pipeline) abortLocked(err error) error {
	p.state = StateNull
	p.clock = nil
	p.bus.Post(Message{Kind: MessageError, Source: p.opts.Name, Err: err})
	p.logger.Log("event", "start_failed", "error", err)

	return err
}

// stream is the streaming loop, one goroutine per running pipeline. It pulls
// from the source, pushes through filters in order and renders into the sink,
// strictly serially: there is never more than one in-flight Render.
func (p *Pipeline) stream(ctx context.Context, source Source, filters []Filter, sink Sink) error {
	logger := kitlog.With(p.logger, "stream_id", p.streamID)

	p.bus.Post(Message{Kind: MessageStreamStart, Source: p.opts.Name, StreamID: p.streamID})

	for {
		select {
		case <-ctx.Done():
			level.Debug(logger).Log("event", "context_expired", "msg", "exiting stream loop")
			return nil
		default:
			// continue
		}

		buf, err := source.Produce(ctx)
		if err != nil {
			if errors.Is(err, EndOfStream) {
				for _, element := range p.elements {
					if handler, ok := element.(EOSHandler); ok {
						handler.HandleEOS()
					}
				}

				p.bus.Post(Message{Kind: MessageEOS, Source: source.Name()})
				level.Debug(logger).Log("event", "end_of_stream")
				return nil
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}

			p.bus.Post(Message{Kind: MessageError, Source: source.Name(), Err: err})
			return errors.Wrap(err, "source failed")
		}

		for _, filter := range filters {
			if buf, err = filter.Transform(buf); err != nil {
				p.bus.Post(Message{Kind: MessageError, Source: filter.Name(), Err: err})
				return errors.Wrapf(err, "filter %s failed", filter.Name())
			}
		}

		bufferTotal.Inc()

		flow, err := sink.Render(buf)
		if err != nil {
			p.bus.Post(Message{Kind: MessageError, Source: sink.Name(), Err: err})
			return errors.Wrap(err, "sink failed")
		}

		if flow == FlowLate {
			qosEventTotal.Inc()
			level.Debug(logger).Log("event", "qos_event", "timestamp", buf.Timestamp)
		}
	}
}
