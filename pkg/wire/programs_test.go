package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPayloadRoundTrip(t *testing.T) {
	testCases := []struct {
		payload Payload
		parse   func([ProgramValueLen]byte) Payload
	}{
		{
			Blink{OnPeriod: 1000, On: [3]byte{1, 2, 3}, OffPeriod: 65535, Off: [3]byte{4, 5, 6}},
			func(v [ProgramValueLen]byte) Payload { return ParseBlink(v) },
		},
		{
			TimedChange{Period: 0xfffffffe, Start: [3]byte{9}, Stop: [3]byte{0, 0, 9}},
			func(v [ProgramValueLen]byte) Payload { return ParseTimedChange(v) },
		},
		{
			Fade{Period: 1000, Start: [3]byte{}, Stop: [3]byte{255, 255, 255}, Flags: FadeCycle},
			func(v [ProgramValueLen]byte) Payload { return ParseFade(v) },
		},
		{
			Sparkle{Period: 50, Background: [3]byte{1, 1, 1}, SparkleThreshold: 10, BGThreshold: 30,
				HueMax: 200, SatMin: 1, SatMax: 2, ValMin: 3, ValMax: 4},
			func(v [ProgramValueLen]byte) Payload { return ParseSparkle(v) },
		},
		{
			Circular{Period: 20, Length: 7, Background: [3]byte{0, 0, 8}, Pattern: CircularRainbow},
			func(v [ProgramValueLen]byte) Payload { return ParseCircular(v) },
		},
		{
			Brightness{Value: 128},
			func(v [ProgramValueLen]byte) Payload { return ParseBrightness(v) },
		},
		{
			Color{Color: [3]byte{10, 20, 30}, Start: 3, Length: 300},
			func(v [ProgramValueLen]byte) Payload { return ParseColor(v) },
		},
	}
	for _, tc := range testCases {
		t.Run(tc.payload.ProgramType().String(), func(t *testing.T) {
			msg := NewProgramMsg(4, tc.payload)
			f, err := Decode(Marshal(1, 0, msg))
			require.NoError(t, err)
			decoded, err := f.Output()
			require.NoError(t, err)
			pm := decoded.(*ProgramMsg)
			require.Equal(t, tc.payload.ProgramType(), pm.Program)
			require.Equal(t, tc.payload, tc.parse(pm.Values))
		})
	}
}

func TestBlinkLayout(t *testing.T) {
	// '<HBBBHBBB' + 2 padding bytes
	v := Blink{OnPeriod: 0x0102, On: [3]byte{3, 4, 5}, OffPeriod: 0x0607, Off: [3]byte{8, 9, 10}}.Values()
	require.Equal(t, [ProgramValueLen]byte{0x02, 0x01, 3, 4, 5, 0x07, 0x06, 8, 9, 10, 0, 0}, v)
}

func TestFadeLayout(t *testing.T) {
	// '<LBBBBBBB' + 1 padding byte
	v := Fade{Period: 0x01020304, Start: [3]byte{5, 6, 7}, Stop: [3]byte{8, 9, 10}, Flags: FadeCycle}.Values()
	require.Equal(t, [ProgramValueLen]byte{4, 3, 2, 1, 5, 6, 7, 8, 9, 10, 1, 0}, v)
}

func TestProgramNames(t *testing.T) {
	for _, typ := range []ProgramType{
		ProgramNone, ProgramBlink, ProgramTimedChange, ProgramLevelValue,
		ProgramSoundValue, ProgramFade, ProgramSparkle, ProgramSoundPixels,
		ProgramCircular, ProgramSensorData, ProgramBrightness, ProgramColor,
	} {
		found, ok := ProgramByName(typ.String())
		require.True(t, ok, typ.String())
		require.Equal(t, typ, found)
	}
	_, ok := ProgramByName("bogus")
	require.False(t, ok)
	require.Equal(t, "program(99)", ProgramType(99).String())
}

func TestDefaultSparkle(t *testing.T) {
	p := DefaultSparkle(10, [3]byte{1, 2, 3})
	require.Equal(t, uint16(10), p.Period)
	require.True(t, int(p.SparkleThreshold)+int(p.BGThreshold) <= 100)
	require.Equal(t, p, ParseSparkle(p.Values()))
}
