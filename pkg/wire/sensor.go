package wire

import (
	"encoding/binary"
	"strconv"
)

// SensorType identifies the content of a sensor record.
type SensorType byte

// Sensor types reported by sensor boards.
const (
	// SensorLevel carries one u16 analog level.
	SensorLevel SensorType = 1
	// SensorSound carries one u16 per frequency channel.
	SensorSound SensorType = 2
	// SensorLight carries one u16 ambient light reading.
	SensorLight SensorType = 3
	// SensorTouch carries a u16 bit mask of touched pads.
	SensorTouch SensorType = 4
	// SensorSwitch carries a u8 bit mask of closed switches.
	SensorSwitch SensorType = 5
)

var sensorTypeNames = map[SensorType]string{
	SensorLevel:  "level",
	SensorSound:  "sound",
	SensorLight:  "light",
	SensorTouch:  "touch",
	SensorSwitch: "switch",
}

// String implements fmt.Stringer.
func (t SensorType) String() string {
	if name, ok := sensorTypeNames[t]; ok {
		return name
	}
	return "sensor(" + strconv.Itoa(int(t)) + ")"
}

// SensorRecord is one {type, len, data} record.
type SensorRecord struct {
	Type SensorType
	Data []byte
}

// Uint16 returns the n-th little-endian u16 in Data, or 0.
func (r SensorRecord) Uint16(n int) uint16 {
	if off := n * 2; off+2 <= len(r.Data) {
		return binary.LittleEndian.Uint16(r.Data[off:])
	}
	return 0
}

// Uint16s returns all u16 values in Data.
func (r SensorRecord) Uint16s() []uint16 {
	vals := make([]uint16, len(r.Data)/2)
	for n := range vals {
		vals[n] = binary.LittleEndian.Uint16(r.Data[n*2:])
	}
	return vals
}

// SensorMsg is the body of a SENSOR telemetry frame.
type SensorMsg struct {
	Records []SensorRecord
}

// MsgType implements Body.
func (m *SensorMsg) MsgType() MsgType { return MsgSensor }

// Size implements Body.
func (m *SensorMsg) Size() (n int) {
	for _, r := range m.Records {
		n += 2 + len(r.Data)
	}
	return
}

func (m *SensorMsg) put(b []byte) {
	for _, r := range m.Records {
		b[0], b[1] = byte(r.Type), byte(len(r.Data))
		copy(b[2:], r.Data)
		b = b[2+len(r.Data):]
	}
}

// Sensors decodes the chained records of a SENSOR frame. Records decoded
// before a truncated one are returned along with ErrTruncatedSensor.
func (f *Frame) Sensors() ([]SensorRecord, error) {
	if f.Type != MsgSensor {
		return nil, decodeErr(ErrWrongType, "type", int(f.Type))
	}
	var recs []SensorRecord
	b := f.Body
	for len(b) > 0 {
		if len(b) < 2 {
			return recs, decodeErr(ErrTruncatedSensor, "offset", len(f.Body)-len(b))
		}
		l := int(b[1])
		if 2+l > len(b) {
			return recs, decodeErr(ErrTruncatedSensor, "data_len", l)
		}
		recs = append(recs, SensorRecord{Type: SensorType(b[0]), Data: b[2 : 2+l]})
		b = b[2+l:]
	}
	return recs, nil
}
