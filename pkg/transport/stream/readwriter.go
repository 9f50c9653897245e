package stream

import (
	"context"
	"encoding/binary"
	"io"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/hmtl.go/pkg/transport"
	"github.com/robotalks/hmtl.go/pkg/wire"
)

// EnvelopeStart is the first byte of every envelope.
const EnvelopeStart byte = 0x55

// EnvelopeHeaderSize is the size of start, dst, src and length.
const EnvelopeHeaderSize = 6

// ReadWriter reads/writes bus envelopes over a byte stream:
//
//	0x55 | dst u16 | src u16 | len u8 | payload
//
// Multi-byte fields are little-endian.
type ReadWriter struct {
	io.ReadWriter
}

// New creates a ReadWriter with io.ReadWriter.
func New(s io.ReadWriter) *ReadWriter {
	return &ReadWriter{s}
}

// ReadPacket reads the next envelope. Bytes before the start byte are
// discarded.
func (p *ReadWriter) ReadPacket() (*transport.Packet, error) {
	var hdr [EnvelopeHeaderSize]byte
	for {
		if _, err := io.ReadFull(p, hdr[:1]); err != nil {
			return nil, err
		}
		if hdr[0] == EnvelopeStart {
			break
		}
	}
	if _, err := io.ReadFull(p, hdr[1:]); err != nil {
		return nil, err
	}
	pkt := &transport.Packet{
		Dest:   wire.Address(binary.LittleEndian.Uint16(hdr[1:])),
		Source: wire.Address(binary.LittleEndian.Uint16(hdr[3:])),
		Data:   make([]byte, hdr[5]),
	}
	_, err := io.ReadFull(p, pkt.Data)
	return pkt, err
}

// WritePacket writes pkt as one envelope.
func (p *ReadWriter) WritePacket(pkt *transport.Packet) error {
	if len(pkt.Data) > 0xff {
		return &transport.TooLargeError{Size: len(pkt.Data), Capacity: 0xff}
	}
	buf := make([]byte, EnvelopeHeaderSize+len(pkt.Data))
	buf[0] = EnvelopeStart
	binary.LittleEndian.PutUint16(buf[1:], uint16(pkt.Dest))
	binary.LittleEndian.PutUint16(buf[3:], uint16(pkt.Source))
	buf[5] = byte(len(pkt.Data))
	copy(buf[EnvelopeHeaderSize:], pkt.Data)
	_, err := p.Write(buf)
	return err
}

// Socket is a bus socket over a byte stream, e.g. an RS485 transceiver on
// a serial port.
type Socket struct {
	*transport.Endpoint
	ReadWriter *ReadWriter

	writeLock sync.Mutex
}

// NewSocket creates a Socket.
func NewSocket(s io.ReadWriter, addr wire.Address) *Socket {
	return &Socket{
		Endpoint:   transport.NewEndpoint(addr, wire.MaxFrameLen),
		ReadWriter: New(s),
	}
}

// SendTo implements transport.Sender.
func (s *Socket) SendTo(dst wire.Address, data []byte) error {
	if err := s.CheckSize(data); err != nil {
		return err
	}
	s.writeLock.Lock()
	defer s.writeLock.Unlock()
	return s.ReadWriter.WritePacket(&transport.Packet{Data: data, Source: s.SourceAddress(), Dest: dst})
}

// Run implements Runnable.
func (s *Socket) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		for {
			pkt, err := s.ReadWriter.ReadPacket()
			if err != nil {
				errCh <- err
				return
			}
			if len(pkt.Data) > s.Capacity() {
				glog.Errorf("stream: drop oversized packet %d from %s", len(pkt.Data), pkt.Source)
				continue
			}
			s.Deliver(pkt)
		}
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the underlying stream if it's an io.Closer.
func (s *Socket) Close() error {
	if closer, ok := s.ReadWriter.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
