package output

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/hmtl.go/pkg/wire"
)

func TestColorLerp(t *testing.T) {
	testCases := []struct {
		name     string
		from, to RGB
		num, den uint32
		expect   RGB
	}{
		{"start", Black, White, 0, 1000, Black},
		{"half", Black, White, 500, 1000, RGB{127, 127, 127}},
		{"end", Black, White, 1000, 1000, White},
		{"past end", Black, White, 1500, 1000, White},
		{"zero period", RGB{1, 2, 3}, RGB{4, 5, 6}, 0, 0, RGB{4, 5, 6}},
		{"downwards", RGB{200, 100, 0}, RGB{0, 100, 200}, 1, 4, RGB{150, 100, 50}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, tc.from.Lerp(tc.to, tc.num, tc.den))
		})
	}
}

func TestColorConversions(t *testing.T) {
	c := FromUint32(0x102030)
	require.Equal(t, RGB{0x10, 0x20, 0x30}, c)
	require.Equal(t, uint32(0x102030), c.Uint32())
	require.Equal(t, "102030", c.Hex())
	require.Equal(t, "#102030", c.String())

	for _, s := range []string{"102030", "#102030", "0x102030", "0X102030"} {
		parsed, err := ParseHex(s)
		require.NoError(t, err, s)
		require.Equal(t, c, parsed)
	}
	_, err := ParseHex("12345")
	require.Error(t, err)
	_, err = ParseHex("zz0000")
	require.Error(t, err)
}

func TestColorScale(t *testing.T) {
	require.Equal(t, White, White.Scale(255))
	require.Equal(t, Black, White.Scale(0))
	require.Equal(t, RGB{50, 20, 0}, RGB{255, 102, 0}.Scale(50))
}

func TestHSV(t *testing.T) {
	require.Equal(t, RGB{255, 0, 0}, HSV(0, 255, 255))
	require.Equal(t, Black, HSV(100, 255, 0))
	require.Equal(t, White, HSV(42, 0, 255))
	c := HSV(85, 255, 255)
	require.True(t, c[1] > c[0] && c[1] > c[2], "expect green dominant, got %v", c)
}

func TestColorable(t *testing.T) {
	v := NewValue(0, 3)
	var c Colorable = v
	c.SetRGB(RGB{10, 20, 30})
	require.Equal(t, uint16(10), v.Value)
	v.Value = 1000
	require.Equal(t, White, v.RGB())

	l := NewLight(1, [3]byte{9, 10, 11})
	c = l
	c.SetRGB(RGB{1, 2, 3})
	require.Equal(t, RGB{1, 2, 3}, l.RGB())

	p := NewPixels(2, 4)
	c = p
	c.SetRGB(RGB{4, 5, 6})
	for i := 0; i < p.Len(); i++ {
		require.Equal(t, RGB{4, 5, 6}, p.Pixel(i))
	}

	var o Output = &Touch{}
	_, ok := o.(Colorable)
	require.False(t, ok)
	o = &RS485{}
	_, ok = o.(Colorable)
	require.False(t, ok)
}

func TestPixels(t *testing.T) {
	p := NewPixels(0, 5)
	require.Equal(t, byte(255), p.Brightness())
	p.Fill(3, 10, White)
	p.Fill(-2, 3, RGB{1, 1, 1})
	require.Equal(t, []RGB{{1, 1, 1}, Black, Black, White, White}, p.pixels)
	p.SetBrightness(0)
	require.Equal(t, Black, p.Shown(3))
	require.Equal(t, RGB{1, 1, 1}, p.RGB())
	require.Equal(t, Black, NewPixels(0, 0).RGB())
}

func TestSet(t *testing.T) {
	s := Set{
		NewLight(0, [3]byte{}),
		&RS485{Slot: Slot{1}},
		NewPixels(2, 10),
		NewValue(3, 5),
		NewPixels(4, 3),
	}
	require.Nil(t, s.Get(-1))
	require.Nil(t, s.Get(5))
	require.Equal(t, wire.OutputRS485, s.Get(1).Type())

	o, ok := s.LookupByType(wire.OutputPixels, 1)
	require.True(t, ok)
	require.Equal(t, byte(4), o.Index())
	_, ok = s.LookupByType(wire.OutputPixels, 2)
	require.False(t, ok)

	require.Equal(t, []wire.OutputDesc{
		{Type: wire.OutputRGB, Index: 0},
		{Type: wire.OutputRS485, Index: 1},
		{Type: wire.OutputPixels, Index: 2},
		{Type: wire.OutputValue, Index: 3},
		{Type: wire.OutputPixels, Index: 4},
	}, s.Descriptors())
}

func TestSetApply(t *testing.T) {
	value := NewValue(0, 3)
	light := NewLight(1, [3]byte{})
	strip := NewPixels(2, 3)
	bus := &RS485{Slot: Slot{Num: 3}}
	s := Set{value, light, strip, bus, nil}

	require.True(t, s.Apply(&wire.ValueMsg{Output: 0, Value: 1000}))
	require.Equal(t, uint16(1000), value.Value)
	require.True(t, s.Apply(&wire.ValueMsg{Output: 1, Value: 1000}))
	require.Equal(t, White, light.RGB())
	require.True(t, s.Apply(&wire.RGBMsg{Output: 2, Color: [3]byte{1, 2, 3}}))
	require.Equal(t, RGB{1, 2, 3}, strip.Pixel(2))

	require.False(t, s.Apply(&wire.RGBMsg{Output: 3, Color: [3]byte{1, 2, 3}}))
	require.False(t, s.Apply(&wire.RGBMsg{Output: 4}))
	require.False(t, s.Apply(&wire.RGBMsg{Output: 9}))
	require.False(t, s.Apply(&wire.ProgramMsg{Output: 0}))

	require.True(t, s.Apply(&wire.ValueMsg{Output: wire.AllOutputs, Value: 7}))
	require.Equal(t, uint16(7), value.Value)
	require.Equal(t, RGB{7, 7, 7}, light.RGB())
	require.Equal(t, RGB{7, 7, 7}, strip.Pixel(0))

	require.False(t, Set{bus}.Apply(&wire.RGBMsg{Output: wire.AllOutputs}))
}
