package output

import (
	"github.com/robotalks/hmtl.go/pkg/wire"
)

// Output is a configured output slot.
type Output interface {
	Type() wire.OutputType
	Index() byte
}

// Colorable is an output which accepts colors.
type Colorable interface {
	Output
	SetRGB(RGB)
	RGB() RGB
}

// Slot is embedded by outputs to provide Index.
type Slot struct {
	Num byte
}

// Index implements Output.
func (s Slot) Index() byte { return s.Num }

// Value is a single PWM/digital output.
type Value struct {
	Slot
	Pin   byte
	Value uint16
}

// NewValue creates a Value output.
func NewValue(slot, pin byte) *Value {
	return &Value{Slot: Slot{slot}, Pin: pin}
}

// Type implements Output.
func (o *Value) Type() wire.OutputType { return wire.OutputValue }

// SetRGB implements Colorable. A value output takes the first channel.
func (o *Value) SetRGB(c RGB) { o.Value = uint16(c[0]) }

// RGB implements Colorable.
func (o *Value) RGB() RGB {
	v := o.Value
	if v > 255 {
		v = 255
	}
	return RGB{byte(v), byte(v), byte(v)}
}

// Light is a three channel RGB output.
type Light struct {
	Slot
	Pins  [3]byte
	Color RGB
}

// NewLight creates an RGB output.
func NewLight(slot byte, pins [3]byte) *Light {
	return &Light{Slot: Slot{slot}, Pins: pins}
}

// Type implements Output.
func (o *Light) Type() wire.OutputType { return wire.OutputRGB }

// SetRGB implements Colorable.
func (o *Light) SetRGB(c RGB) { o.Color = c }

// RGB implements Colorable.
func (o *Light) RGB() RGB { return o.Color }

// Pixels is an addressable pixel strip.
type Pixels struct {
	Slot
	DataPin  byte
	ClockPin byte

	pixels     []RGB
	brightness byte
}

// NewPixels creates a strip of n pixels at full brightness.
func NewPixels(slot byte, n int) *Pixels {
	return &Pixels{Slot: Slot{slot}, pixels: make([]RGB, n), brightness: 255}
}

// Type implements Output.
func (o *Pixels) Type() wire.OutputType { return wire.OutputPixels }

// Len is the number of pixels.
func (o *Pixels) Len() int { return len(o.pixels) }

// Pixel gets the color of pixel i.
func (o *Pixels) Pixel(i int) RGB { return o.pixels[i] }

// SetPixel sets the color of pixel i.
func (o *Pixels) SetPixel(i int, c RGB) { o.pixels[i] = c }

// Fill sets n pixels from start, clipped to the strip.
func (o *Pixels) Fill(start, n int, c RGB) {
	for i := start; i < start+n && i < len(o.pixels); i++ {
		if i >= 0 {
			o.pixels[i] = c
		}
	}
}

// SetRGB implements Colorable by setting every pixel.
func (o *Pixels) SetRGB(c RGB) { o.Fill(0, len(o.pixels), c) }

// RGB implements Colorable with the color of the first pixel.
func (o *Pixels) RGB() RGB {
	if len(o.pixels) == 0 {
		return Black
	}
	return o.pixels[0]
}

// Brightness gets the global brightness scale.
func (o *Pixels) Brightness() byte { return o.brightness }

// SetBrightness sets the global brightness scale.
func (o *Pixels) SetBrightness(b byte) { o.brightness = b }

// Shown is the color of pixel i after brightness scaling.
func (o *Pixels) Shown(i int) RGB { return o.pixels[i].Scale(o.brightness) }

// Touch is an MPR121 capacitive sensor.
type Touch struct {
	Slot
	IRQPin     byte
	Thresholds [12]byte
}

// Type implements Output.
func (o *Touch) Type() wire.OutputType { return wire.OutputMPR121 }

// RS485 is a bus transceiver.
type RS485 struct {
	Slot
	RecvPin   byte
	XmitPin   byte
	EnablePin byte
}

// Type implements Output.
func (o *RS485) Type() wire.OutputType { return wire.OutputRS485 }

// XBee is a radio.
type XBee struct {
	Slot
	Baud uint32
}

// Type implements Output.
func (o *XBee) Type() wire.OutputType { return wire.OutputXBee }

// Set holds outputs by slot.
type Set []Output

// Get returns the output in slot i or nil.
func (s Set) Get(i int) Output {
	if i < 0 || i >= len(s) {
		return nil
	}
	return s[i]
}

// LookupByType finds the nth output of a type.
func (s Set) LookupByType(typ wire.OutputType, nth int) (Output, bool) {
	for _, o := range s {
		if o != nil && o.Type() == typ {
			if nth == 0 {
				return o, true
			}
			nth--
		}
	}
	return nil, false
}

// Descriptors lists {type, index} of every populated slot.
func (s Set) Descriptors() []wire.OutputDesc {
	descs := make([]wire.OutputDesc, 0, len(s))
	for _, o := range s {
		if o != nil {
			descs = append(descs, wire.OutputDesc{Type: o.Type(), Index: o.Index()})
		}
	}
	return descs
}

// Apply sets the value or color carried by msg on its output, or on every
// colorable output for wire.AllOutputs. Outputs which can't take colors are
// skipped. Apply reports whether any output changed.
func (s Set) Apply(msg wire.OutputMsg) bool {
	var set func(Colorable)
	switch m := msg.(type) {
	case *wire.ValueMsg:
		set = func(c Colorable) {
			if v, ok := c.(*Value); ok {
				v.Value = m.Value
				return
			}
			l := byte(255)
			if m.Value < 255 {
				l = byte(m.Value)
			}
			c.SetRGB(RGB{l, l, l})
		}
	case *wire.RGBMsg:
		set = func(c Colorable) { c.SetRGB(m.Color) }
	default:
		return false
	}

	idx := msg.OutputHeader().Output
	if idx == wire.AllOutputs {
		var changed bool
		for _, o := range s {
			if c, ok := o.(Colorable); ok {
				set(c)
				changed = true
			}
		}
		return changed
	}
	c, ok := s.Get(int(idx)).(Colorable)
	if !ok {
		return false
	}
	set(c)
	return true
}
