package output

import (
	"encoding/hex"
	"fmt"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// RGB is a 24-bit color.
type RGB [3]byte

// Common colors.
var (
	Black = RGB{0, 0, 0}
	White = RGB{255, 255, 255}
)

// FromUint32 converts 0xRRGGBB.
func FromUint32(v uint32) RGB {
	return RGB{byte(v >> 16), byte(v >> 8), byte(v)}
}

// Uint32 converts to 0xRRGGBB.
func (c RGB) Uint32() uint32 {
	return uint32(c[0])<<16 | uint32(c[1])<<8 | uint32(c[2])
}

// Hex formats the color as RRGGBB.
func (c RGB) Hex() string {
	return hex.EncodeToString(c[:])
}

// String implements fmt.Stringer.
func (c RGB) String() string {
	return "#" + c.Hex()
}

// ParseHex parses RRGGBB with an optional # or 0x prefix.
func ParseHex(s string) (c RGB, err error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.ToLower(s), "#"), "0x")
	if len(s) != 6 {
		return c, fmt.Errorf("invalid color %q", s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return c, fmt.Errorf("invalid color %q: %w", s, err)
	}
	copy(c[:], b)
	return c, nil
}

// Lerp interpolates each channel by num/den towards to.
func (c RGB) Lerp(to RGB, num, den uint32) RGB {
	if den == 0 || num >= den {
		return to
	}
	var out RGB
	for i := range c {
		from, dst := int64(c[i]), int64(to[i])
		out[i] = byte(from + (dst-from)*int64(num)/int64(den))
	}
	return out
}

// Scale scales each channel by s/255.
func (c RGB) Scale(s byte) RGB {
	return RGB{
		byte(uint16(c[0]) * uint16(s) / 255),
		byte(uint16(c[1]) * uint16(s) / 255),
		byte(uint16(c[2]) * uint16(s) / 255),
	}
}

// HSV converts 8-bit hue, saturation and value to RGB.
func HSV(h, s, v byte) RGB {
	c := colorful.Hsv(float64(h)*360/256, float64(s)/255, float64(v)/255)
	r, g, b := c.Clamped().RGB255()
	return RGB{r, g, b}
}
