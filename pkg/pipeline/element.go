package pipeline

import (
	"context"
	"errors"
	"time"
)

// EndOfStream is returned by a Source that has exhausted its buffers. The
// pipeline treats it as a clean shutdown signal, not a failure.
var EndOfStream = errors.New("end of stream")

// Caps describes the media format negotiated between two linked elements.
// Concrete caps types live with the elements that produce them.
type Caps interface {
	MediaType() string
}

// Buffer is a single unit of media travelling down the pipeline. Timestamp is
// the presentation time in pipeline running time. Buffers are borrowed: a sink
// must not retain a reference once Render has returned.
type Buffer struct {
	Data      []byte
	Timestamp time.Duration
	Duration  time.Duration
}

// Flow is the status a sink reports for each rendered buffer. The pipeline
// uses it to decide whether a QoS event should be accounted upstream.
type Flow int

const (
	// FlowOK means the buffer was handled and the sink is keeping pace.
	FlowOK Flow = iota
	// FlowDropped means the sink's own delivery policy gated the buffer; the
	// pipeline needs to take no action.
	FlowDropped
	// FlowLate means the buffer was dropped for arriving past its deadline;
	// the pipeline accounts a QoS event.
	FlowLate
)

func (f Flow) String() string {
	switch f {
	case FlowOK:
		return "ok"
	case FlowDropped:
		return "dropped"
	case FlowLate:
		return "late"
	}

	return "unknown"
}

// Element is anything that can be added to a pipeline. Elements are looked up
// by name, so names must be unique within a pipeline.
type Element interface {
	Name() string
}

// Source produces buffers at the head of the pipeline. Produce returns
// EndOfStream once exhausted.
type Source interface {
	Element
	OutputCaps() Caps
	Produce(ctx context.Context) (*Buffer, error)
}

// Filter sits mid-chain, transforming buffers in place. Link is called during
// negotiation with the upstream caps and returns the caps it produces, or an
// error to fail negotiation.
type Filter interface {
	Element
	Link(upstream Caps) (Caps, error)
	Transform(buf *Buffer) (*Buffer, error)
}

// Sink terminates the pipeline. The pipeline guarantees exactly one in-flight
// Render call per sink instance at a time, in arrival order.
type Sink interface {
	Element
	Link(upstream Caps) (Caps, error)
	Render(buf *Buffer) (Flow, error)
}

// Stateful is implemented by elements that want to observe pipeline state
// transitions. Detected by the pipeline, never required.
type Stateful interface {
	ChangeState(from, to State) error
}

// EOSHandler is implemented by elements that want to be told the source has
// drained, before the EOS message is posted to the bus.
type EOSHandler interface {
	HandleEOS()
}

// ClockSlave is implemented by elements that pace rendering against the
// pipeline clock. The pipeline distributes its clock during Start.
type ClockSlave interface {
	SetClock(Clock)
}
