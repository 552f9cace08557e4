package sink

import (
	"time"
)

// Property names accepted by the by-name shim. The typed accessors below are
// the primary interface; the shim exists for dynamic external control and
// keeps the permissive unknown-name contract of classic plugin frameworks.
const (
	PropRenderRate  = "render-rate"
	PropEmitSignal  = "emit-signal"
	PropSilent      = "silent"
	PropSync        = "sync"
	PropMaxLateness = "max-lateness"
	PropQos         = "qos"
)

func (s *Sink) RenderRate() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.opts.RenderRate
}

func (s *Sink) SetRenderRate(rate time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.opts.RenderRate = rate
}

func (s *Sink) EmitSignal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.opts.EmitSignal
}

func (s *Sink) SetEmitSignal(emit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.opts.EmitSignal = emit
}

func (s *Sink) Silent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.opts.Silent
}

func (s *Sink) SetSilent(silent bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.opts.Silent = silent
}

func (s *Sink) Sync() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.opts.Sync
}

func (s *Sink) SetSync(sync bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.opts.Sync = sync
}

func (s *Sink) MaxLateness() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.opts.MaxLateness
}

func (s *Sink) SetMaxLateness(lateness time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.opts.MaxLateness = lateness
}

func (s *Sink) Qos() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.opts.Qos
}

func (s *Sink) SetQos(qos bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.opts.Qos = qos
}

// SetProperty adjusts a property by name. Unknown names and mismatched value
// types are silently ignored: no error, no state change. Numeric values are
// accepted as-is, without clamping.
func (s *Sink) SetProperty(name string, value interface{}) {
	switch name {
	case PropRenderRate:
		if rate, ok := asDuration(value); ok {
			s.SetRenderRate(rate)
		}
	case PropEmitSignal:
		if emit, ok := value.(bool); ok {
			s.SetEmitSignal(emit)
		}
	case PropSilent:
		if silent, ok := value.(bool); ok {
			s.SetSilent(silent)
		}
	case PropSync:
		if sync, ok := value.(bool); ok {
			s.SetSync(sync)
		}
	case PropMaxLateness:
		if lateness, ok := asDuration(value); ok {
			s.SetMaxLateness(lateness)
		}
	case PropQos:
		if qos, ok := value.(bool); ok {
			s.SetQos(qos)
		}
	}
}

// GetProperty reads a property by name. For unknown names it returns
// (nil, false), leaving any caller-held destination untouched.
func (s *Sink) GetProperty(name string) (interface{}, bool) {
	switch name {
	case PropRenderRate:
		return s.RenderRate(), true
	case PropEmitSignal:
		return s.EmitSignal(), true
	case PropSilent:
		return s.Silent(), true
	case PropSync:
		return s.Sync(), true
	case PropMaxLateness:
		return s.MaxLateness(), true
	case PropQos:
		return s.Qos(), true
	}

	return nil, false
}

// asDuration widens the numeric types external controllers plausibly hand us
// into nanosecond durations.
func asDuration(value interface{}) (time.Duration, bool) {
	switch v := value.(type) {
	case time.Duration:
		return v, true
	case int64:
		return time.Duration(v), true
	case uint64:
		return time.Duration(v), true
	case int:
		return time.Duration(v), true
	}

	return 0, false
}
