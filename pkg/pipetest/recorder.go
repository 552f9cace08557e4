package pipetest

import (
	"sync"
	"time"

	"github.com/corestream/tensorsink/pkg/pipeline"
	"github.com/corestream/tensorsink/pkg/sink"
)

// Recorder captures signal emissions from a sink, race-safely: signals arrive
// on the render thread while assertions read from the test goroutine.
type Recorder struct {
	// OnNewData, when set before Attach, runs inside the new-data handler.
	// Scenarios use it to adjust properties mid-stream deterministically.
	OnNewData func(buf *pipeline.Buffer)

	mu         sync.Mutex
	counts     map[string]int
	timestamps []time.Duration
}

func NewRecorder() *Recorder {
	return &Recorder{counts: map[string]int{}}
}

// Attach subscribes the recorder to all three sink signals.
func (r *Recorder) Attach(s *sink.Sink) {
	s.Connect(sink.SignalStreamStart, func(*pipeline.Buffer) { r.record(sink.SignalStreamStart, nil) })
	s.Connect(sink.SignalEOS, func(*pipeline.Buffer) { r.record(sink.SignalEOS, nil) })
	s.Connect(sink.SignalNewData, func(buf *pipeline.Buffer) {
		r.record(sink.SignalNewData, buf)

		if r.OnNewData != nil {
			r.OnNewData(buf)
		}
	})
}

func (r *Recorder) record(signal string, buf *pipeline.Buffer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counts[signal]++
	if buf != nil {
		r.timestamps = append(r.timestamps, buf.Timestamp)
	}
}

// Count returns how many times the signal has fired.
func (r *Recorder) Count(signal string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.counts[signal]
}

// Timestamps returns the timestamps of every new-data buffer, in emission
// order.
func (r *Recorder) Timestamps() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]time.Duration{}, r.timestamps...)
}
