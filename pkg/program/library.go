package program

import (
	"github.com/robotalks/hmtl.go/pkg/output"
	"github.com/robotalks/hmtl.go/pkg/wire"
)

// Library creates a Registry with all built-in programs.
func Library() *Registry {
	return NewRegistry(
		Descriptor{Type: wire.ProgramBlink, Setup: setupBlink},
		Descriptor{Type: wire.ProgramTimedChange, Setup: setupTimedChange},
		Descriptor{Type: wire.ProgramFade, Setup: setupFade},
		Descriptor{Type: wire.ProgramSparkle, Setup: setupSparkle},
		Descriptor{Type: wire.ProgramCircular, Setup: setupCircular},
		Descriptor{Type: wire.ProgramLevelValue, Setup: setupLevelValue},
		Descriptor{Type: wire.ProgramSoundValue, Setup: setupSoundValue},
		Descriptor{Type: wire.ProgramSoundPixels, Setup: setupSoundPixels},
		Descriptor{Type: wire.ProgramBrightness, Setup: setupBrightness},
		Descriptor{Type: wire.ProgramColor, Setup: setupColor},
		Descriptor{Type: wire.ProgramSensorData, Run: runSensorData},
	)
}

func colorable(env *Env) (output.Colorable, error) {
	if c, ok := env.Output.(output.Colorable); ok {
		return c, nil
	}
	return nil, ErrIncompatible
}

func pixels(env *Env) (*output.Pixels, error) {
	if p, ok := env.Output.(*output.Pixels); ok && p.Len() > 0 {
		return p, nil
	}
	return nil, ErrIncompatible
}

// periodic gates a step to once per period.
type periodic struct {
	started bool
	last    uint32
}

func (p *periodic) due(now uint32, period uint16) bool {
	if p.started && !reached(now, p.last+uint32(period)) {
		return false
	}
	p.started, p.last = true, now
	return true
}

type blinkState struct {
	wire.Blink
	started bool
	on      bool
	next    uint32
}

func setupBlink(msg *wire.ProgramMsg, env *Env) (State, error) {
	if _, err := colorable(env); err != nil {
		return nil, err
	}
	return &blinkState{Blink: wire.ParseBlink(msg.Values)}, nil
}

func (s *blinkState) Step(env *Env) bool {
	if s.started && !reached(env.Now, s.next) {
		return false
	}
	s.started, s.on = true, !s.on
	c := env.Output.(output.Colorable)
	if s.on {
		c.SetRGB(s.On)
		s.next = env.Now + uint32(s.OnPeriod)
	} else {
		c.SetRGB(s.Off)
		s.next = env.Now + uint32(s.OffPeriod)
	}
	return true
}

type timedChangeState struct {
	wire.TimedChange
	started  bool
	changeAt uint32
}

func setupTimedChange(msg *wire.ProgramMsg, env *Env) (State, error) {
	if _, err := colorable(env); err != nil {
		return nil, err
	}
	return &timedChangeState{TimedChange: wire.ParseTimedChange(msg.Values)}, nil
}

func (s *timedChangeState) Step(env *Env) bool {
	c := env.Output.(output.Colorable)
	if !s.started {
		s.started, s.changeAt = true, env.Now+s.Period
		c.SetRGB(s.Start)
		return true
	}
	if int32(env.Now-s.changeAt) > 0 {
		c.SetRGB(s.Stop)
		env.Tracker.Finish()
		return true
	}
	return false
}

type fadeState struct {
	wire.Fade
	started bool
	reverse bool
	start   uint32
}

func setupFade(msg *wire.ProgramMsg, env *Env) (State, error) {
	if _, err := colorable(env); err != nil {
		return nil, err
	}
	return &fadeState{Fade: wire.ParseFade(msg.Values)}, nil
}

func (s *fadeState) Step(env *Env) bool {
	c := env.Output.(output.Colorable)
	from, to := output.RGB(s.Start), output.RGB(s.Stop)
	if s.reverse {
		from, to = to, from
	}
	if !s.started {
		s.started, s.start = true, env.Now
		c.SetRGB(from)
		return true
	}
	var elapsed uint32
	if d := int32(env.Now - s.start); d > 0 {
		elapsed = uint32(d)
	}
	if elapsed >= s.Period {
		c.SetRGB(to)
		if s.Flags&wire.FadeCycle != 0 {
			s.reverse, s.start = !s.reverse, env.Now
		} else {
			env.Tracker.Finish()
		}
		return true
	}
	c.SetRGB(from.Lerp(to, elapsed, s.Period))
	return true
}

type sparkleState struct {
	wire.Sparkle
	periodic
}

func setupSparkle(msg *wire.ProgramMsg, env *Env) (State, error) {
	if _, err := pixels(env); err != nil {
		return nil, err
	}
	return &sparkleState{Sparkle: wire.ParseSparkle(msg.Values)}, nil
}

func (s *sparkleState) Step(env *Env) bool {
	if !s.due(env.Now, s.Period) {
		return false
	}
	p := env.Output.(*output.Pixels)
	for i := 0; i < p.Len(); i++ {
		r := env.Rand.Intn(100)
		switch {
		case r < int(s.SparkleThreshold):
			p.SetPixel(i, output.HSV(
				randRange(env, 0, s.HueMax),
				randRange(env, s.SatMin, s.SatMax),
				randRange(env, s.ValMin, s.ValMax)))
		case r < int(s.SparkleThreshold)+int(s.BGThreshold):
			p.SetPixel(i, s.Background)
		}
	}
	return true
}

func randRange(env *Env, lo, hi byte) byte {
	if hi <= lo {
		return lo
	}
	return lo + byte(env.Rand.Intn(int(hi-lo)+1))
}

type circularState struct {
	wire.Circular
	periodic
	current int
}

func setupCircular(msg *wire.ProgramMsg, env *Env) (State, error) {
	if _, err := pixels(env); err != nil {
		return nil, err
	}
	return &circularState{Circular: wire.ParseCircular(msg.Values)}, nil
}

func (s *circularState) Step(env *Env) bool {
	first := !s.started
	if !s.due(env.Now, s.Period) {
		return false
	}
	p := env.Output.(*output.Pixels)
	n := p.Len()
	if !first {
		s.current = (s.current + 1) % n
	}
	length := int(s.Length)
	if length > n {
		length = n
	}
	if length < 1 {
		length = 1
	}
	p.SetRGB(s.Background)
	for j := 0; j < length; j++ {
		// doubled distance from the window center keeps odd and even lengths integral
		dist := 2*j - (length - 1)
		if dist < 0 {
			dist = -dist
		}
		level := byte(255 * (length + 1 - dist) / (length + 1))
		var c output.RGB
		if s.Pattern == wire.CircularRainbow {
			c = output.HSV(byte(j*256/length), 255, level)
		} else {
			c = output.White.Scale(level)
		}
		p.SetPixel(((s.current-j)%n+n)%n, c)
	}
	return true
}

func setupBrightness(msg *wire.ProgramMsg, env *Env) (State, error) {
	p, err := pixels(env)
	if err != nil {
		return nil, err
	}
	p.SetBrightness(wire.ParseBrightness(msg.Values).Value)
	return nil, nil
}

func setupColor(msg *wire.ProgramMsg, env *Env) (State, error) {
	cm := wire.ParseColor(msg.Values)
	if p, ok := env.Output.(*output.Pixels); ok {
		length := int(cm.Length)
		if length == 0 {
			length = p.Len() - int(cm.Start)
		}
		p.Fill(int(cm.Start), length, cm.Color)
		return nil, nil
	}
	c, err := colorable(env)
	if err != nil {
		return nil, err
	}
	c.SetRGB(cm.Color)
	return nil, nil
}
