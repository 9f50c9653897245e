package wire

import (
	"encoding/binary"
	"fmt"
)

// Header is the fixed frame header.
type Header struct {
	CRC     byte
	Version byte
	Length  byte
	Type    MsgType
	Flags   Flags
	Address Address
}

// Frame is a decoded frame. Body aliases the decoded buffer.
type Frame struct {
	Header
	Body []byte
}

// Body is a message body which can be encoded after a header.
type Body interface {
	// MsgType is the header type of the message.
	MsgType() MsgType
	// Size is the encoded size of the body.
	Size() int

	put(b []byte)
}

// String implements fmt.Stringer.
func (f *Frame) String() string {
	return fmt.Sprintf("%s addr=%s flags=%x len=%d", f.Type, f.Address, f.Flags, f.Length)
}

// Bytes encodes the frame back into bytes.
func (f *Frame) Bytes() []byte {
	buf := make([]byte, HeaderSize+len(f.Body))
	putHeader(buf, len(buf), f.Type, f.Flags, f.Address)
	copy(buf[HeaderSize:], f.Body)
	return buf
}

// Decode validates and decodes a complete frame.
func Decode(data []byte) (*Frame, error) {
	if len(data) < HeaderSize {
		return nil, decodeErr(ErrShortFrame, "size", len(data))
	}
	if data[0] != StartCode {
		return nil, decodeErr(ErrBadStartCode, "startcode", int(data[0]))
	}
	if data[2] != Version {
		return nil, decodeErr(ErrBadVersion, "version", int(data[2]))
	}
	length := int(data[3])
	if length < HeaderSize || length > MaxFrameLen {
		return nil, decodeErr(ErrBadLength, "length", length)
	}
	if length != len(data) {
		return nil, decodeErr(ErrLengthMismatch, "length", length)
	}
	return &Frame{
		Header: Header{
			CRC:     data[1],
			Version: data[2],
			Length:  data[3],
			Type:    MsgType(data[4]),
			Flags:   Flags(data[5]),
			Address: Address(binary.LittleEndian.Uint16(data[6:])),
		},
		Body: data[HeaderSize:length],
	}, nil
}

// Encode writes header and body into buf and returns the frame length.
// It panics with *BufferError if buf can't hold the frame.
func Encode(buf []byte, addr Address, flags Flags, body Body) int {
	n := HeaderSize + body.Size()
	mustFit(buf, n)
	putHeader(buf, n, body.MsgType(), flags, addr)
	body.put(buf[HeaderSize:n])
	return n
}

// EncodeHeader writes a header-only frame (e.g. a POLL request).
func EncodeHeader(buf []byte, addr Address, typ MsgType, flags Flags) int {
	mustFit(buf, HeaderSize)
	putHeader(buf, HeaderSize, typ, flags, addr)
	return HeaderSize
}

// EncodePoll writes a POLL request.
func EncodePoll(buf []byte, addr Address) int {
	return EncodeHeader(buf, addr, MsgPoll, FlagResponse)
}

// EncodeSensorRequest writes a SENSOR request.
func EncodeSensorRequest(buf []byte, addr Address) int {
	return EncodeHeader(buf, addr, MsgSensor, FlagResponse)
}

// Marshal is a convenience to encode into a fresh buffer.
func Marshal(addr Address, flags Flags, body Body) []byte {
	buf := make([]byte, HeaderSize+body.Size())
	Encode(buf, addr, flags, body)
	return buf
}

func mustFit(buf []byte, n int) {
	if n > MaxFrameLen || len(buf) < n {
		panic(&BufferError{Need: n, Have: len(buf)})
	}
}

func putHeader(buf []byte, length int, typ MsgType, flags Flags, addr Address) {
	buf[0] = StartCode
	buf[1] = 0
	buf[2] = Version
	buf[3] = byte(length)
	buf[4] = byte(typ)
	buf[5] = byte(flags)
	binary.LittleEndian.PutUint16(buf[6:], uint16(addr))
}

func (f *Frame) expect(typ MsgType, size int) error {
	if f.Type != typ {
		return decodeErr(ErrWrongType, "type", int(f.Type))
	}
	if len(f.Body) < size {
		return decodeErr(ErrBadBody, "size", len(f.Body))
	}
	return nil
}
