package program

import (
	"sort"

	"github.com/golang/glog"

	"github.com/robotalks/hmtl.go/pkg/output"
	"github.com/robotalks/hmtl.go/pkg/wire"
)

// SensorFullScale is the maximum raw analog reading.
const SensorFullScale = 1023

// Reading is the latest record of a sensor type.
type Reading struct {
	wire.SensorRecord
	// Seq increases on every update.
	Seq  uint32
	Time uint32
}

// SensorCache keeps the latest reading of each sensor type.
type SensorCache struct {
	readings map[wire.SensorType]*Reading
	seq      uint32
}

// Update stores a copy of rec.
func (c *SensorCache) Update(rec wire.SensorRecord, now uint32) {
	if c.readings == nil {
		c.readings = make(map[wire.SensorType]*Reading)
	}
	c.seq++
	data := make([]byte, len(rec.Data))
	copy(data, rec.Data)
	c.readings[rec.Type] = &Reading{
		SensorRecord: wire.SensorRecord{Type: rec.Type, Data: data},
		Seq:          c.seq,
		Time:         now,
	}
}

// Get gets the latest reading.
func (c *SensorCache) Get(typ wire.SensorType) (Reading, bool) {
	if r := c.readings[typ]; r != nil {
		return *r, true
	}
	return Reading{}, false
}

// Records lists the latest reading of every sensor type ordered by type.
func (c *SensorCache) Records() []wire.SensorRecord {
	recs := make([]wire.SensorRecord, 0, len(c.readings))
	for _, r := range c.readings {
		recs = append(recs, r.SensorRecord)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Type < recs[j].Type })
	return recs
}

func runSensorData(env *Env, arg interface{}) bool {
	var rec wire.SensorRecord
	switch v := arg.(type) {
	case wire.SensorRecord:
		rec = v
	case *wire.SensorRecord:
		rec = *v
	default:
		glog.Warningf("program: sensor data with unexpected %T", arg)
		return false
	}
	glog.V(4).Infof("sensor %d: % x", rec.Type, rec.Data)
	env.Sensors.Update(rec, env.Now)
	return true
}

func scaleReading(v uint16) byte {
	if v >= SensorFullScale {
		return 255
	}
	return byte(uint32(v) * 255 / SensorFullScale)
}

// sensorFollower tracks the reading sequence so only new readings update outputs.
type sensorFollower struct {
	typ wire.SensorType
	seq uint32
}

func (f *sensorFollower) next(env *Env) (Reading, bool) {
	r, ok := env.Sensors.Get(f.typ)
	if !ok || r.Seq == f.seq {
		return r, false
	}
	f.seq = r.Seq
	return r, true
}

type levelValueState struct {
	sensorFollower
	sound bool
}

func setupLevelValue(msg *wire.ProgramMsg, env *Env) (State, error) {
	if _, err := colorable(env); err != nil {
		return nil, err
	}
	return &levelValueState{sensorFollower: sensorFollower{typ: wire.SensorLevel}}, nil
}

func setupSoundValue(msg *wire.ProgramMsg, env *Env) (State, error) {
	if _, err := colorable(env); err != nil {
		return nil, err
	}
	return &levelValueState{sensorFollower: sensorFollower{typ: wire.SensorSound}, sound: true}, nil
}

func (s *levelValueState) Step(env *Env) bool {
	r, ok := s.next(env)
	if !ok {
		return false
	}
	var v uint16
	if s.sound {
		for _, ch := range r.Uint16s() {
			if ch > v {
				v = ch
			}
		}
	} else {
		v = r.Uint16(0)
	}
	l := scaleReading(v)
	env.Output.(output.Colorable).SetRGB(output.RGB{l, l, l})
	return true
}

type soundPixelsState struct {
	sensorFollower
}

func setupSoundPixels(msg *wire.ProgramMsg, env *Env) (State, error) {
	if _, err := pixels(env); err != nil {
		return nil, err
	}
	return &soundPixelsState{sensorFollower: sensorFollower{typ: wire.SensorSound}}, nil
}

// Step splits the strip into one segment per channel and lights each
// segment in proportion to its level, colored by channel.
func (s *soundPixelsState) Step(env *Env) bool {
	r, ok := s.next(env)
	if !ok {
		return false
	}
	channels := r.Uint16s()
	p := env.Output.(*output.Pixels)
	p.SetRGB(output.Black)
	if len(channels) == 0 {
		return true
	}
	seg := p.Len() / len(channels)
	if seg == 0 {
		seg, channels = 1, channels[:p.Len()]
	}
	for n, ch := range channels {
		lit := int(scaleReading(ch)) * seg / 255
		color := output.HSV(byte(n*256/len(channels)), 255, 255)
		p.Fill(n*seg, lit, color)
	}
	return true
}
