package program

import (
	"errors"
	"math/rand"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/hmtl.go/pkg/output"
	"github.com/robotalks/hmtl.go/pkg/wire"
)

// Registry is a table of program descriptors.
type Registry struct {
	descs map[wire.ProgramType]Descriptor
}

// NewRegistry creates a Registry with descriptors.
func NewRegistry(descs ...Descriptor) *Registry {
	r := &Registry{descs: make(map[wire.ProgramType]Descriptor)}
	return r.Register(descs...)
}

// Register adds or replaces descriptors.
func (r *Registry) Register(descs ...Descriptor) *Registry {
	for _, d := range descs {
		r.descs[d.Type] = d
	}
	return r
}

// Lookup finds a descriptor.
func (r *Registry) Lookup(typ wire.ProgramType) (Descriptor, bool) {
	d, ok := r.descs[typ]
	return d, ok
}

// Scheduler runs one program per output.
type Scheduler struct {
	Registry *Registry
	Clock    Clock
	Rand     *rand.Rand
	Sensors  *SensorCache
	// MaxActive bounds the number of populated trackers.
	MaxActive int

	outputs  output.Set
	trackers []Tracker
	env      Env
}

// NewScheduler creates a Scheduler over outputs with the standard library
// of programs.
func NewScheduler(outputs output.Set, clock Clock) *Scheduler {
	s := &Scheduler{
		Registry:  Library(),
		Clock:     clock,
		Rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
		Sensors:   &SensorCache{},
		MaxActive: len(outputs),
		outputs:   outputs,
		trackers:  make([]Tracker, len(outputs)),
	}
	for i := range s.trackers {
		s.trackers[i].reset()
	}
	return s
}

// Outputs gets the outputs.
func (s *Scheduler) Outputs() output.Set {
	return s.outputs
}

// Tracker gets a copy of the tracker at slot i.
func (s *Scheduler) Tracker(i int) Tracker {
	return s.trackers[i]
}

// Active counts populated trackers.
func (s *Scheduler) Active() (n int) {
	for i := range s.trackers {
		if !s.trackers[i].Empty() {
			n++
		}
	}
	return
}

// HandleMsg installs or clears programs according to msg.
func (s *Scheduler) HandleMsg(msg *wire.ProgramMsg) bool {
	desc, ok := s.Registry.Lookup(msg.Program)
	if msg.Program != wire.ProgramNone && (!ok || desc.Setup == nil) {
		glog.Warningf("program: invalid type %s", msg.Program)
		return false
	}

	if msg.Output == wire.AllOutputs {
		var changed bool
		for i := range s.trackers {
			if s.outputs[i] != nil && s.install(i, msg, desc) {
				changed = true
			}
		}
		return changed
	}

	// indices equal to the output count slip through here and are caught
	// as a missing output below.
	idx := int(msg.Output)
	if idx > len(s.outputs) {
		glog.Warningf("program: invalid output %d", idx)
		return false
	}
	if s.outputs.Get(idx) == nil {
		glog.Warningf("program: no output object %d", idx)
		return false
	}
	return s.install(idx, msg, desc)
}

// Run steps every active program once.
func (s *Scheduler) Run() bool {
	var changed bool
	now := s.Clock.Millis()
	for i := range s.trackers {
		t := &s.trackers[i]
		if t.Empty() {
			continue
		}
		if t.Done() {
			s.free(i)
			continue
		}
		if t.State.Step(s.envFor(i, now)) {
			changed = true
		}
	}
	return changed
}

// RunProgram runs a program directly without a tracker.
func (s *Scheduler) RunProgram(typ wire.ProgramType, arg interface{}) bool {
	desc, ok := s.Registry.Lookup(typ)
	if !ok || desc.Run == nil {
		glog.Warningf("program: %s can't run directly", typ)
		return false
	}
	return desc.Run(s.envFor(-1, s.Clock.Millis()), arg)
}

func (s *Scheduler) install(i int, msg *wire.ProgramMsg, desc Descriptor) bool {
	s.free(i)
	if msg.Program == wire.ProgramNone {
		return true
	}
	if s.MaxActive > 0 && s.Active() >= s.MaxActive {
		glog.Errorf("program: no tracker for %s on output %d, %d active", msg.Program, i, s.Active())
		return false
	}
	t := &s.trackers[i]
	t.Program, t.Flags = msg.Program, 0
	state, err := desc.Setup(msg, s.envFor(i, s.Clock.Millis()))
	if err != nil {
		if errors.Is(err, ErrIncompatible) {
			glog.V(2).Infof("program: %s not applicable to output %d", msg.Program, i)
		} else {
			glog.Warningf("program: %s setup on output %d error: %v", msg.Program, i, err)
		}
		t.reset()
		return false
	}
	if state == nil {
		t.reset()
		return true
	}
	t.State = state
	t.Flags |= FlagDeallocState
	glog.V(3).Infof("program: %s installed on output %d", msg.Program, i)
	return true
}

func (s *Scheduler) free(i int) {
	t := &s.trackers[i]
	if t.Empty() {
		return
	}
	if r, ok := t.State.(Releaser); ok && t.Flags&FlagDeallocState != 0 {
		r.Release()
	}
	glog.V(3).Infof("program: clear %s on output %d", t.Program, i)
	t.reset()
}

func (s *Scheduler) envFor(i int, now uint32) *Env {
	s.env = Env{Now: now, Rand: s.Rand, Sensors: s.Sensors}
	if i >= 0 {
		s.env.Output, s.env.Tracker = s.outputs[i], &s.trackers[i]
	}
	return &s.env
}
