package program

import (
	"errors"
	"math/rand"

	"github.com/robotalks/hmtl.go/pkg/output"
	"github.com/robotalks/hmtl.go/pkg/wire"
)

// NoProgram marks an empty tracker slot.
const NoProgram wire.ProgramType = 0xff

// ErrIncompatible is returned by setup when the output can't run the program.
var ErrIncompatible = errors.New("incompatible output")

// TrackerFlags are flags of a Tracker.
type TrackerFlags byte

const (
	// FlagDone marks the program finished. The tracker is freed on the next run.
	FlagDone TrackerFlags = 1 << iota
	// FlagDeallocState means the scheduler owns State and releases it on free.
	FlagDeallocState
)

// Tracker is the slot state of one output.
type Tracker struct {
	Program wire.ProgramType
	Flags   TrackerFlags
	State   State
}

// Empty indicates no program is installed.
func (t *Tracker) Empty() bool {
	return t.Program == NoProgram
}

// Done indicates the program finished.
func (t *Tracker) Done() bool {
	return t.Flags&FlagDone != 0
}

// Finish marks the program done.
func (t *Tracker) Finish() {
	t.Flags |= FlagDone
}

func (t *Tracker) reset() {
	*t = Tracker{Program: NoProgram}
}

// Clock provides the logical time in milliseconds.
type Clock interface {
	Millis() uint32
}

// Env is the context passed to setup and step.
type Env struct {
	Now     uint32
	Output  output.Output
	Tracker *Tracker
	Rand    *rand.Rand
	Sensors *SensorCache
}

// State is the per-tracker state of a running program.
type State interface {
	// Step advances the program and reports whether the output changed.
	Step(env *Env) bool
}

// Releaser is implemented by states holding resources beyond memory.
type Releaser interface {
	Release()
}

// SetupFunc validates msg against the output and creates the state.
// A nil State with nil error means the program applied once and needs
// no tracker.
type SetupFunc func(msg *wire.ProgramMsg, env *Env) (State, error)

// RunFunc runs a program directly without a tracker or output.
type RunFunc func(env *Env, arg interface{}) bool

// Descriptor is a registered program.
type Descriptor struct {
	Type  wire.ProgramType
	Setup SetupFunc
	Run   RunFunc
}

func reached(now, t uint32) bool {
	return int32(now-t) >= 0
}
