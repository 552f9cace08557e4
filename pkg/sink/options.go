package sink

import (
	"fmt"
	"time"

	"github.com/alecthomas/kingpin"
)

// DefaultMaxLateness is the lateness tolerance applied unless configured
// otherwise, matching the conventions of base sinks in streaming frameworks.
const DefaultMaxLateness = 30 * time.Millisecond

// Options configures a Sink. Every field can also be adjusted while streaming
// through the typed setters or the by-name property shim.
type Options struct {
	RenderRate  time.Duration // minimum spacing between forwarded buffers, 0 forwards everything
	EmitSignal  bool          // master gate: when false, no signal fires at all
	Silent      bool          // suppress per-buffer diagnostic logging
	Sync        bool          // pace rendering against the pipeline clock
	MaxLateness time.Duration // lateness beyond this drops the buffer, -1 disables
	Qos         bool          // whether lateness drops are active
}

// DefaultOptions returns the defaults a freshly constructed element carries.
func DefaultOptions() Options {
	return Options{
		RenderRate:  0,
		EmitSignal:  true,
		Silent:      true,
		Sync:        true,
		MaxLateness: DefaultMaxLateness,
		Qos:         true,
	}
}

func (opt *Options) Bind(cmd *kingpin.CmdClause, prefix string) *Options {
	cmd.Flag(fmt.Sprintf("%srender-rate", prefix), "Minimum interval between forwarded buffers (0 forwards every buffer)").Default("0").DurationVar(&opt.RenderRate)
	cmd.Flag(fmt.Sprintf("%semit-signal", prefix), "Emit signals for stream-start, new-data and eos").Default("true").BoolVar(&opt.EmitSignal)
	cmd.Flag(fmt.Sprintf("%ssilent", prefix), "Suppress per-buffer diagnostic logging").Default("true").BoolVar(&opt.Silent)
	cmd.Flag(fmt.Sprintf("%ssync", prefix), "Pace rendering against the pipeline clock").Default("true").BoolVar(&opt.Sync)
	cmd.Flag(fmt.Sprintf("%smax-lateness", prefix), "Drop buffers later than this (-1ns disables)").Default("30ms").DurationVar(&opt.MaxLateness)
	cmd.Flag(fmt.Sprintf("%sqos", prefix), "Enable lateness-based quality-of-service drops").Default("true").BoolVar(&opt.Qos)

	return opt
}
