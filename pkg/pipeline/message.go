package pipeline

import "fmt"

// MessageKind classifies bus messages. Error and Warning are both treated as
// terminal failures by consumers; EOS is terminal success; the rest are
// informational and never end a wait.
type MessageKind int

const (
	MessageError MessageKind = iota
	MessageWarning
	MessageEOS
	MessageStreamStart
	MessageStateChanged
)

func (k MessageKind) String() string {
	switch k {
	case MessageError:
		return "ERROR"
	case MessageWarning:
		return "WARNING"
	case MessageEOS:
		return "EOS"
	case MessageStreamStart:
		return "STREAM_START"
	case MessageStateChanged:
		return "STATE_CHANGED"
	}

	return "UNKNOWN"
}

// Terminal reports whether receiving this kind should end a consumer's wait.
func (k MessageKind) Terminal() bool {
	switch k {
	case MessageError, MessageWarning, MessageEOS:
		return true
	}

	return false
}

// Failed reports whether this kind represents a failure outcome.
func (k MessageKind) Failed() bool {
	return k == MessageError || k == MessageWarning
}

// Message is a single bus message posted by the pipeline.
type Message struct {
	Kind     MessageKind
	Source   string // name of the posting element, or the pipeline itself
	StreamID string // set on STREAM_START, identifies the current stream
	Err      error  // set on ERROR and WARNING
	State    State  // set on STATE_CHANGED
}

func (m Message) String() string {
	switch m.Kind {
	case MessageError, MessageWarning:
		return fmt.Sprintf("%s from %s: %v", m.Kind, m.Source, m.Err)
	case MessageStateChanged:
		return fmt.Sprintf("%s from %s: %s", m.Kind, m.Source, m.State)
	}

	return fmt.Sprintf("%s from %s", m.Kind, m.Source)
}
