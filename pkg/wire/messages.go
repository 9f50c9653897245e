package wire

import "encoding/binary"

// ProgramValueLen is the size of the program payload.
const ProgramValueLen = 12

// OutputHeader prefixes every output sub-message.
type OutputHeader struct {
	Type   OutputType
	Output byte
}

// OutputMsg is the body of an OUTPUT frame.
type OutputMsg interface {
	Body
	OutputHeader() OutputHeader
}

// ValueMsg sets a single value.
type ValueMsg struct {
	Output byte
	Value  uint16
}

// MsgType implements Body.
func (m *ValueMsg) MsgType() MsgType { return MsgOutput }

// Size implements Body.
func (m *ValueMsg) Size() int { return 4 }

// OutputHeader implements OutputMsg.
func (m *ValueMsg) OutputHeader() OutputHeader { return OutputHeader{Type: OutputValue, Output: m.Output} }

func (m *ValueMsg) put(b []byte) {
	b[0], b[1] = byte(OutputValue), m.Output
	binary.LittleEndian.PutUint16(b[2:], m.Value)
}

// RGBMsg sets a color.
type RGBMsg struct {
	Output byte
	Color  [3]byte
}

// MsgType implements Body.
func (m *RGBMsg) MsgType() MsgType { return MsgOutput }

// Size implements Body.
func (m *RGBMsg) Size() int { return 5 }

// OutputHeader implements OutputMsg.
func (m *RGBMsg) OutputHeader() OutputHeader { return OutputHeader{Type: OutputRGB, Output: m.Output} }

func (m *RGBMsg) put(b []byte) {
	b[0], b[1] = byte(OutputRGB), m.Output
	copy(b[2:5], m.Color[:])
}

// ProgramMsg installs a program on an output.
type ProgramMsg struct {
	Output  byte
	Program ProgramType
	Values  [ProgramValueLen]byte
}

// NewProgramMsg creates a ProgramMsg from a typed payload.
func NewProgramMsg(output byte, p Payload) *ProgramMsg {
	return &ProgramMsg{Output: output, Program: p.ProgramType(), Values: p.Values()}
}

// CancelMsg creates a PROGRAM_NONE message clearing the output.
func CancelMsg(output byte) *ProgramMsg {
	return &ProgramMsg{Output: output, Program: ProgramNone}
}

// MsgType implements Body.
func (m *ProgramMsg) MsgType() MsgType { return MsgOutput }

// Size implements Body.
func (m *ProgramMsg) Size() int { return 3 + ProgramValueLen }

// OutputHeader implements OutputMsg.
func (m *ProgramMsg) OutputHeader() OutputHeader {
	return OutputHeader{Type: OutputProgram, Output: m.Output}
}

func (m *ProgramMsg) put(b []byte) {
	b[0], b[1], b[2] = byte(OutputProgram), m.Output, byte(m.Program)
	copy(b[3:], m.Values[:])
}

// Output decodes the output sub-message of an OUTPUT frame.
func (f *Frame) Output() (OutputMsg, error) {
	if err := f.expect(MsgOutput, 2); err != nil {
		return nil, err
	}
	b := f.Body
	switch typ := OutputType(b[0]); typ {
	case OutputValue:
		if len(b) < 4 {
			return nil, decodeErr(ErrBadBody, "size", len(b))
		}
		return &ValueMsg{Output: b[1], Value: binary.LittleEndian.Uint16(b[2:])}, nil
	case OutputRGB:
		if len(b) < 5 {
			return nil, decodeErr(ErrBadBody, "size", len(b))
		}
		m := &RGBMsg{Output: b[1]}
		copy(m.Color[:], b[2:5])
		return m, nil
	case OutputProgram:
		if len(b) < 3+ProgramValueLen {
			return nil, decodeErr(ErrBadBody, "size", len(b))
		}
		m := &ProgramMsg{Output: b[1], Program: ProgramType(b[2])}
		copy(m.Values[:], b[3:])
		return m, nil
	default:
		return nil, decodeErr(ErrBadBody, "output_type", int(typ))
	}
}

// SetAddrMsg assigns a new address to the node with DeviceID.
type SetAddrMsg struct {
	// DeviceID of 0 matches any node.
	DeviceID uint16
	Address  Address
}

// MsgType implements Body.
func (m *SetAddrMsg) MsgType() MsgType { return MsgSetAddr }

// Size implements Body.
func (m *SetAddrMsg) Size() int { return 4 }

func (m *SetAddrMsg) put(b []byte) {
	binary.LittleEndian.PutUint16(b, m.DeviceID)
	binary.LittleEndian.PutUint16(b[2:], uint16(m.Address))
}

// SetAddr decodes a SET_ADDR frame.
func (f *Frame) SetAddr() (*SetAddrMsg, error) {
	if err := f.expect(MsgSetAddr, 4); err != nil {
		return nil, err
	}
	return &SetAddrMsg{
		DeviceID: binary.LittleEndian.Uint16(f.Body),
		Address:  Address(binary.LittleEndian.Uint16(f.Body[2:])),
	}, nil
}

// PollMagic starts a poll response.
const PollMagic byte = 0x5c

const pollFixedSize = 15

// OutputDesc describes one configured output in a poll response.
type OutputDesc struct {
	Type  OutputType
	Index byte
}

// PollResponse describes a node.
type PollResponse struct {
	ProtocolVersion byte
	HardwareVersion byte
	Baud            uint32
	NumOutputs      byte
	Flags           byte
	DeviceID        uint16
	Address         Address
	ObjectType      uint16
	BufferSize      uint16
	MsgVersion      byte
	Outputs         []OutputDesc
}

// MsgType implements Body.
func (m *PollResponse) MsgType() MsgType { return MsgPoll }

// Size implements Body.
func (m *PollResponse) Size() int { return pollFixedSize + 2*len(m.Outputs) }

// Fit drops trailing output descriptors until the frame fits in capacity.
func (m *PollResponse) Fit(capacity int) *PollResponse {
	if capacity > MaxFrameLen {
		capacity = MaxFrameLen
	}
	for len(m.Outputs) > 0 && HeaderSize+m.Size() > capacity {
		m.Outputs = m.Outputs[:len(m.Outputs)-1]
	}
	return m
}

func (m *PollResponse) put(b []byte) {
	b[0] = PollMagic
	b[1] = m.ProtocolVersion
	b[2] = m.HardwareVersion
	b[3] = byte(m.Baud / 1200)
	b[4] = m.NumOutputs
	b[5] = m.Flags
	binary.LittleEndian.PutUint16(b[6:], m.DeviceID)
	binary.LittleEndian.PutUint16(b[8:], uint16(m.Address))
	binary.LittleEndian.PutUint16(b[10:], m.ObjectType)
	binary.LittleEndian.PutUint16(b[12:], m.BufferSize)
	b[14] = m.MsgVersion
	for n, o := range m.Outputs {
		b[pollFixedSize+n*2] = byte(o.Type)
		b[pollFixedSize+n*2+1] = o.Index
	}
}

// PollResponse decodes a POLL reply.
func (f *Frame) PollResponse() (*PollResponse, error) {
	if err := f.expect(MsgPoll, pollFixedSize); err != nil {
		return nil, err
	}
	b := f.Body
	if b[0] != PollMagic {
		return nil, decodeErr(ErrBadBody, "magic", int(b[0]))
	}
	m := &PollResponse{
		ProtocolVersion: b[1],
		HardwareVersion: b[2],
		Baud:            uint32(b[3]) * 1200,
		NumOutputs:      b[4],
		Flags:           b[5],
		DeviceID:        binary.LittleEndian.Uint16(b[6:]),
		Address:         Address(binary.LittleEndian.Uint16(b[8:])),
		ObjectType:      binary.LittleEndian.Uint16(b[10:]),
		BufferSize:      binary.LittleEndian.Uint16(b[12:]),
		MsgVersion:      b[14],
	}
	for rest := b[pollFixedSize:]; len(rest) >= 2; rest = rest[2:] {
		m.Outputs = append(m.Outputs, OutputDesc{Type: OutputType(rest[0]), Index: rest[1]})
	}
	return m, nil
}

// SyncPhase is the phase of a TIMESYNC message.
type SyncPhase byte

// Time sync phases.
const (
	SyncPhaseSync   SyncPhase = 1
	SyncPhaseAck    SyncPhase = 2
	SyncPhaseSet    SyncPhase = 3
	SyncPhaseResync SyncPhase = 4
	SyncPhaseCheck  SyncPhase = 5
)

var syncPhaseNames = [...]string{"", "SYNC", "ACK", "SET", "RESYNC", "CHECK"}

// String implements fmt.Stringer.
func (p SyncPhase) String() string {
	if int(p) < len(syncPhaseNames) && p != 0 {
		return syncPhaseNames[p]
	}
	return "PHASE?"
}

// TimeSync is the body of a TIMESYNC frame.
type TimeSync struct {
	Phase     SyncPhase
	Timestamp uint32
}

// MsgType implements Body.
func (m *TimeSync) MsgType() MsgType { return MsgTimeSync }

// Size implements Body.
func (m *TimeSync) Size() int { return 5 }

func (m *TimeSync) put(b []byte) {
	b[0] = byte(m.Phase)
	binary.LittleEndian.PutUint32(b[1:], m.Timestamp)
}

// TimeSync decodes a TIMESYNC frame.
func (f *Frame) TimeSync() (*TimeSync, error) {
	if err := f.expect(MsgTimeSync, 5); err != nil {
		return nil, err
	}
	return &TimeSync{
		Phase:     SyncPhase(f.Body[0]),
		Timestamp: binary.LittleEndian.Uint32(f.Body[1:]),
	}, nil
}
