package pipeline

// State is the lifecycle stage of a pipeline and of every element in it. The
// pipeline walks elements up through Null→Ready→Paused→Playing on Start, and
// back down on Stop.
type State int

const (
	StateNull State = iota
	StateReady
	StatePaused
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateNull:
		return "NULL"
	case StateReady:
		return "READY"
	case StatePaused:
		return "PAUSED"
	case StatePlaying:
		return "PLAYING"
	}

	return "UNKNOWN"
}

// upward and downward are the transition orders the pipeline walks. Each pair
// is (from, to).
var (
	upward   = [][2]State{{StateNull, StateReady}, {StateReady, StatePaused}, {StatePaused, StatePlaying}}
	downward = [][2]State{{StatePlaying, StatePaused}, {StatePaused, StateReady}, {StateReady, StateNull}}
)
