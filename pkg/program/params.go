package program

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/robotalks/hmtl.go/pkg/output"
	"github.com/robotalks/hmtl.go/pkg/wire"
)

// Usage describes the arguments of each program for ParsePayload.
var Usage = map[wire.ProgramType]string{
	wire.ProgramNone:        "",
	wire.ProgramBlink:       "ON-MS ON-COLOR OFF-MS OFF-COLOR",
	wire.ProgramTimedChange: "PERIOD-MS START-COLOR STOP-COLOR",
	wire.ProgramLevelValue:  "",
	wire.ProgramSoundValue:  "",
	wire.ProgramFade:        "PERIOD-MS START-COLOR STOP-COLOR [cycle]",
	wire.ProgramSparkle:     "PERIOD-MS [BG-COLOR [SPARKLE% BG% HUE-MAX SAT-MIN SAT-MAX VAL-MIN VAL-MAX]]",
	wire.ProgramSoundPixels: "",
	wire.ProgramCircular:    "PERIOD-MS LENGTH [BG-COLOR [white|rainbow]]",
	wire.ProgramBrightness:  "VALUE",
	wire.ProgramColor:       "COLOR [START [LENGTH]]",
}

type argParser struct {
	args []string
	pos  int
	err  error
}

func (p *argParser) more() bool {
	return p.err == nil && p.pos < len(p.args)
}

func (p *argParser) next(what string) string {
	if p.err != nil {
		return ""
	}
	if p.pos >= len(p.args) {
		p.err = fmt.Errorf("missing %s", what)
		return ""
	}
	s := p.args[p.pos]
	p.pos++
	return s
}

func (p *argParser) uint(what string, bits int) uint64 {
	s := p.next(what)
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		p.err = fmt.Errorf("invalid %s %q", what, s)
	}
	return v
}

func (p *argParser) u8(what string) byte    { return byte(p.uint(what, 8)) }
func (p *argParser) u16(what string) uint16 { return uint16(p.uint(what, 16)) }
func (p *argParser) u32(what string) uint32 { return uint32(p.uint(what, 32)) }

func (p *argParser) color(what string) [3]byte {
	s := p.next(what)
	if p.err != nil {
		return [3]byte{}
	}
	c, err := output.ParseHex(s)
	if err != nil {
		p.err = fmt.Errorf("invalid %s %q: %w", what, s, err)
	}
	return c
}

func (p *argParser) done() error {
	if p.err == nil && p.pos < len(p.args) {
		p.err = fmt.Errorf("unexpected argument %q", p.args[p.pos])
	}
	return p.err
}

// ParsePayload builds the payload of a program from text arguments, see
// Usage. Programs without a typed payload accept up to ProgramValueLen hex
// bytes.
func ParsePayload(typ wire.ProgramType, args []string) (wire.Payload, error) {
	p := &argParser{args: args}
	var payload wire.Payload
	switch typ {
	case wire.ProgramBlink:
		payload = wire.Blink{
			OnPeriod:  p.u16("on period"),
			On:        p.color("on color"),
			OffPeriod: p.u16("off period"),
			Off:       p.color("off color"),
		}
	case wire.ProgramTimedChange:
		payload = wire.TimedChange{
			Period: p.u32("period"),
			Start:  p.color("start color"),
			Stop:   p.color("stop color"),
		}
	case wire.ProgramFade:
		fade := wire.Fade{
			Period: p.u32("period"),
			Start:  p.color("start color"),
			Stop:   p.color("stop color"),
		}
		if p.more() {
			if flag := p.next("flag"); flag == "cycle" {
				fade.Flags |= wire.FadeCycle
			} else {
				p.err = fmt.Errorf("invalid fade flag %q", flag)
			}
		}
		payload = fade
	case wire.ProgramSparkle:
		sparkle := wire.DefaultSparkle(p.u16("period"), [3]byte{})
		if p.more() {
			sparkle.Background = p.color("background")
		}
		if p.more() {
			sparkle.SparkleThreshold = p.u8("sparkle threshold")
			sparkle.BGThreshold = p.u8("background threshold")
			sparkle.HueMax = p.u8("hue max")
			sparkle.SatMin = p.u8("saturation min")
			sparkle.SatMax = p.u8("saturation max")
			sparkle.ValMin = p.u8("value min")
			sparkle.ValMax = p.u8("value max")
		}
		payload = sparkle
	case wire.ProgramCircular:
		circular := wire.Circular{
			Period: p.u16("period"),
			Length: p.u16("length"),
		}
		if p.more() {
			circular.Background = p.color("background")
		}
		if p.more() {
			switch pattern := p.next("pattern"); pattern {
			case "white":
				circular.Pattern = wire.CircularWhite
			case "rainbow":
				circular.Pattern = wire.CircularRainbow
			default:
				p.err = fmt.Errorf("invalid pattern %q", pattern)
			}
		}
		payload = circular
	case wire.ProgramBrightness:
		payload = wire.Brightness{Value: p.u8("brightness")}
	case wire.ProgramColor:
		c := wire.Color{Color: p.color("color")}
		if p.more() {
			c.Start = p.u16("start")
		}
		if p.more() {
			c.Length = p.u16("length")
		}
		payload = c
	default:
		g := wire.Generic{Type: typ}
		raw, err := hex.DecodeString(strings.Join(args, ""))
		if err != nil {
			return nil, fmt.Errorf("invalid hex payload: %w", err)
		}
		if len(raw) > wire.ProgramValueLen {
			return nil, fmt.Errorf("payload %d bytes exceeds %d", len(raw), wire.ProgramValueLen)
		}
		copy(g.Data[:], raw)
		return g, nil
	}
	if err := p.done(); err != nil {
		return nil, fmt.Errorf("%s: %w", typ, err)
	}
	return payload, nil
}

// ParseProgram parses "name args..." into a payload.
func ParseProgram(name string, args []string) (wire.Payload, error) {
	typ, ok := wire.ProgramByName(name)
	if !ok {
		v, err := strconv.ParseUint(name, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("unknown program %q", name)
		}
		typ = wire.ProgramType(v)
	}
	return ParsePayload(typ, args)
}
