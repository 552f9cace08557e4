package sink

import (
	"github.com/corestream/tensorsink/pkg/pipeline"
	"github.com/corestream/tensorsink/pkg/util"
)

// The three signals a tensor sink emits. Any other name is rejected by
// Connect with a zero handle.
const (
	SignalStreamStart = "stream-start"
	SignalNewData     = "new-data"
	SignalEOS         = "eos"
)

// Signals lists every valid signal name.
var Signals = []string{SignalStreamStart, SignalNewData, SignalEOS}

// Handler receives a signal emission. The buffer argument is only non-nil for
// new-data, and is borrowed for the duration of the call.
type Handler func(buf *pipeline.Buffer)

type subscription struct {
	handle uint64
	signal string
	fn     Handler
}

// Connect subscribes fn to the named signal and returns a non-zero handle, or
// zero when the name is not a valid signal. A zero return has no side effect.
// Handlers run synchronously on the render thread, in connect order.
func (s *Sink) Connect(signal string, fn Handler) uint64 {
	if fn == nil || !util.Includes(Signals, signal) {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return 0
	}

	s.nextHandle++
	s.subs = append(s.subs, subscription{handle: s.nextHandle, signal: signal, fn: fn})

	return s.nextHandle
}

// Disconnect removes the subscription identified by handle, reporting whether
// anything was removed.
func (s *Sink) Disconnect(handle uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for idx, sub := range s.subs {
		if sub.handle == handle {
			s.subs = append(s.subs[:idx], s.subs[idx+1:]...)
			return true
		}
	}

	return false
}

// emit invokes every handler connected to the signal. Handlers are collected
// under the lock but invoked outside it, so a handler is free to adjust
// properties mid-stream without deadlocking.
func (s *Sink) emit(signal string, buf *pipeline.Buffer) {
	s.mu.Lock()

	if s.finalized {
		s.mu.Unlock()
		return
	}

	handlers := []Handler{}
	for _, sub := range s.subs {
		if sub.signal == signal {
			handlers = append(handlers, sub.fn)
		}
	}

	s.mu.Unlock()

	emitTotal.WithLabelValues(signal).Inc()

	for _, fn := range handlers {
		fn(buf)
	}
}
