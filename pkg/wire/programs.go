package wire

import (
	"encoding/binary"
	"strconv"
)

// ProgramType identifies a program.
type ProgramType byte

// Program types.
const (
	ProgramNone        ProgramType = 0x00
	ProgramBlink       ProgramType = 0x01
	ProgramTimedChange ProgramType = 0x02
	ProgramLevelValue  ProgramType = 0x03
	ProgramSoundValue  ProgramType = 0x04
	ProgramFade        ProgramType = 0x05
	ProgramSparkle     ProgramType = 0x06
	ProgramSoundPixels ProgramType = 0x07
	ProgramCircular    ProgramType = 0x08

	// ProgramSensorData consumes sensor records, it's never installed on an output.
	ProgramSensorData ProgramType = 0x10

	// One-shot programs apply once and never occupy a tracker.
	ProgramBrightness ProgramType = 0x30
	ProgramColor      ProgramType = 0x31
)

var programNames = map[ProgramType]string{
	ProgramNone:        "none",
	ProgramBlink:       "blink",
	ProgramTimedChange: "timed",
	ProgramLevelValue:  "level",
	ProgramSoundValue:  "sound",
	ProgramFade:        "fade",
	ProgramSparkle:     "sparkle",
	ProgramSoundPixels: "soundpixels",
	ProgramCircular:    "circular",
	ProgramSensorData:  "sensordata",
	ProgramBrightness:  "brightness",
	ProgramColor:       "color",
}

// String implements fmt.Stringer.
func (t ProgramType) String() string {
	if name, ok := programNames[t]; ok {
		return name
	}
	return "program(" + strconv.Itoa(int(t)) + ")"
}

// ProgramByName looks up a program type by name.
func ProgramByName(name string) (ProgramType, bool) {
	for t, n := range programNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}

// Payload is a typed program payload.
type Payload interface {
	ProgramType() ProgramType
	Values() [ProgramValueLen]byte
}

// Generic is an untyped payload.
type Generic struct {
	Type ProgramType
	Data [ProgramValueLen]byte
}

// ProgramType implements Payload.
func (p Generic) ProgramType() ProgramType { return p.Type }

// Values implements Payload.
func (p Generic) Values() [ProgramValueLen]byte { return p.Data }

// Blink alternates between two colors.
type Blink struct {
	OnPeriod  uint16
	On        [3]byte
	OffPeriod uint16
	Off       [3]byte
}

// ProgramType implements Payload.
func (p Blink) ProgramType() ProgramType { return ProgramBlink }

// Values implements Payload.
func (p Blink) Values() (v [ProgramValueLen]byte) {
	binary.LittleEndian.PutUint16(v[0:], p.OnPeriod)
	copy(v[2:5], p.On[:])
	binary.LittleEndian.PutUint16(v[5:], p.OffPeriod)
	copy(v[7:10], p.Off[:])
	return
}

// ParseBlink parses a blink payload.
func ParseBlink(v [ProgramValueLen]byte) (p Blink) {
	p.OnPeriod = binary.LittleEndian.Uint16(v[0:])
	copy(p.On[:], v[2:5])
	p.OffPeriod = binary.LittleEndian.Uint16(v[5:])
	copy(p.Off[:], v[7:10])
	return
}

// TimedChange sets Start, then Stop after Period milliseconds.
type TimedChange struct {
	Period uint32
	Start  [3]byte
	Stop   [3]byte
}

// ProgramType implements Payload.
func (p TimedChange) ProgramType() ProgramType { return ProgramTimedChange }

// Values implements Payload.
func (p TimedChange) Values() (v [ProgramValueLen]byte) {
	binary.LittleEndian.PutUint32(v[0:], p.Period)
	copy(v[4:7], p.Start[:])
	copy(v[7:10], p.Stop[:])
	return
}

// ParseTimedChange parses a timed change payload.
func ParseTimedChange(v [ProgramValueLen]byte) (p TimedChange) {
	p.Period = binary.LittleEndian.Uint32(v[0:])
	copy(p.Start[:], v[4:7])
	copy(p.Stop[:], v[7:10])
	return
}

// FadeCycle restarts the fade in the opposite direction when it completes.
const FadeCycle byte = 0x1

// Fade interpolates from Start to Stop over Period milliseconds.
type Fade struct {
	Period uint32
	Start  [3]byte
	Stop   [3]byte
	Flags  byte
}

// ProgramType implements Payload.
func (p Fade) ProgramType() ProgramType { return ProgramFade }

// Values implements Payload.
func (p Fade) Values() (v [ProgramValueLen]byte) {
	binary.LittleEndian.PutUint32(v[0:], p.Period)
	copy(v[4:7], p.Start[:])
	copy(v[7:10], p.Stop[:])
	v[10] = p.Flags
	return
}

// ParseFade parses a fade payload.
func ParseFade(v [ProgramValueLen]byte) (p Fade) {
	p.Period = binary.LittleEndian.Uint32(v[0:])
	copy(p.Start[:], v[4:7])
	copy(p.Stop[:], v[7:10])
	p.Flags = v[10]
	return
}

// Sparkle randomly lights pixels. Thresholds are percentages.
type Sparkle struct {
	Period           uint16
	Background       [3]byte
	SparkleThreshold byte
	BGThreshold      byte
	HueMax           byte
	SatMin           byte
	SatMax           byte
	ValMin           byte
	ValMax           byte
}

// DefaultSparkle is the sparkle used when only period and background are given.
func DefaultSparkle(period uint16, bg [3]byte) Sparkle {
	return Sparkle{
		Period:           period,
		Background:       bg,
		SparkleThreshold: 20,
		BGThreshold:      60,
		HueMax:           255,
		SatMin:           0,
		SatMax:           255,
		ValMin:           0,
		ValMax:           255,
	}
}

// ProgramType implements Payload.
func (p Sparkle) ProgramType() ProgramType { return ProgramSparkle }

// Values implements Payload.
func (p Sparkle) Values() (v [ProgramValueLen]byte) {
	binary.LittleEndian.PutUint16(v[0:], p.Period)
	copy(v[2:5], p.Background[:])
	v[5], v[6] = p.SparkleThreshold, p.BGThreshold
	v[7], v[8], v[9] = p.HueMax, p.SatMin, p.SatMax
	v[10], v[11] = p.ValMin, p.ValMax
	return
}

// ParseSparkle parses a sparkle payload.
func ParseSparkle(v [ProgramValueLen]byte) (p Sparkle) {
	p.Period = binary.LittleEndian.Uint16(v[0:])
	copy(p.Background[:], v[2:5])
	p.SparkleThreshold, p.BGThreshold = v[5], v[6]
	p.HueMax, p.SatMin, p.SatMax = v[7], v[8], v[9]
	p.ValMin, p.ValMax = v[10], v[11]
	return
}

// Circular patterns.
const (
	CircularWhite   byte = 0
	CircularRainbow byte = 1
)

// Circular rotates a window of Length pixels around a pixel ring.
type Circular struct {
	Period     uint16
	Length     uint16
	Background [3]byte
	Pattern    byte
}

// ProgramType implements Payload.
func (p Circular) ProgramType() ProgramType { return ProgramCircular }

// Values implements Payload.
func (p Circular) Values() (v [ProgramValueLen]byte) {
	binary.LittleEndian.PutUint16(v[0:], p.Period)
	binary.LittleEndian.PutUint16(v[2:], p.Length)
	copy(v[4:7], p.Background[:])
	v[7] = p.Pattern
	return
}

// ParseCircular parses a circular payload.
func ParseCircular(v [ProgramValueLen]byte) (p Circular) {
	p.Period = binary.LittleEndian.Uint16(v[0:])
	p.Length = binary.LittleEndian.Uint16(v[2:])
	copy(p.Background[:], v[4:7])
	p.Pattern = v[7]
	return
}

// Brightness sets the brightness scale of a pixel output.
type Brightness struct {
	Value byte
}

// ProgramType implements Payload.
func (p Brightness) ProgramType() ProgramType { return ProgramBrightness }

// Values implements Payload.
func (p Brightness) Values() (v [ProgramValueLen]byte) {
	v[0] = p.Value
	return
}

// ParseBrightness parses a brightness payload.
func ParseBrightness(v [ProgramValueLen]byte) Brightness {
	return Brightness{Value: v[0]}
}

// Color sets a range of pixels. A zero Length extends to the last pixel.
type Color struct {
	Color  [3]byte
	Start  uint16
	Length uint16
}

// ProgramType implements Payload.
func (p Color) ProgramType() ProgramType { return ProgramColor }

// Values implements Payload.
func (p Color) Values() (v [ProgramValueLen]byte) {
	copy(v[0:3], p.Color[:])
	binary.LittleEndian.PutUint16(v[3:], p.Start)
	binary.LittleEndian.PutUint16(v[5:], p.Length)
	return
}

// ParseColor parses a color payload.
func ParseColor(v [ProgramValueLen]byte) (p Color) {
	copy(p.Color[:], v[0:3])
	p.Start = binary.LittleEndian.Uint16(v[3:])
	p.Length = binary.LittleEndian.Uint16(v[5:])
	return
}
