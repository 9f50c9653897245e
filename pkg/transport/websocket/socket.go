// Package websocket carries the bus over websocket connections. A Hub relays
// every message to all other connected sockets, making a virtual multi-drop
// bus across the network.
//
// Each binary message is
//
//	dst u16 | src u16 | frame
//
// with little-endian addresses.
package websocket

import (
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/hmtl.go/pkg/transport"
	"github.com/robotalks/hmtl.go/pkg/wire"
)

// MessageHeaderSize is the size of the address prefix.
const MessageHeaderSize = 4

// ErrShortMessage indicates a message without the address prefix.
var ErrShortMessage = errors.New("short websocket message")

// EncodeMessage builds a bus message.
func EncodeMessage(pkt *transport.Packet) []byte {
	msg := make([]byte, MessageHeaderSize+len(pkt.Data))
	binary.LittleEndian.PutUint16(msg[0:], uint16(pkt.Dest))
	binary.LittleEndian.PutUint16(msg[2:], uint16(pkt.Source))
	copy(msg[MessageHeaderSize:], pkt.Data)
	return msg
}

// DecodeMessage parses a bus message.
func DecodeMessage(msg []byte) (*transport.Packet, error) {
	if len(msg) < MessageHeaderSize {
		return nil, ErrShortMessage
	}
	data := make([]byte, len(msg)-MessageHeaderSize)
	copy(data, msg[MessageHeaderSize:])
	return &transport.Packet{
		Dest:   wire.Address(binary.LittleEndian.Uint16(msg[0:])),
		Source: wire.Address(binary.LittleEndian.Uint16(msg[2:])),
		Data:   data,
	}, nil
}

// Socket is a bus socket connected to a Hub.
type Socket struct {
	*transport.Endpoint
	Conn *websocket.Conn

	sendLock sync.Mutex
}

// NewSocket wraps an established connection.
func NewSocket(conn *websocket.Conn, addr wire.Address) *Socket {
	return &Socket{Endpoint: transport.NewEndpoint(addr, wire.MaxFrameLen), Conn: conn}
}

// Dial connects to a hub at url, e.g. ws://host:port/bus.
func Dial(url string, addr wire.Address) (*Socket, error) {
	origin := "http://localhost/"
	if pos := strings.Index(url, "://"); pos > 0 {
		origin = "http" + strings.TrimPrefix(url[:pos], "ws") + url[pos:]
	}
	conn, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, err
	}
	return NewSocket(conn, addr), nil
}

// SendTo implements transport.Sender.
func (s *Socket) SendTo(dst wire.Address, data []byte) error {
	if err := s.CheckSize(data); err != nil {
		return err
	}
	msg := EncodeMessage(&transport.Packet{Data: data, Source: s.SourceAddress(), Dest: dst})
	s.sendLock.Lock()
	defer s.sendLock.Unlock()
	return websocket.Message.Send(s.Conn, msg)
}

// Run implements Runnable.
func (s *Socket) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		for {
			var msg []byte
			if err := websocket.Message.Receive(s.Conn, &msg); err != nil {
				errCh <- err
				return
			}
			pkt, err := DecodeMessage(msg)
			if err != nil {
				glog.Errorf("websocket: %v", err)
				continue
			}
			if len(pkt.Data) > s.Capacity() {
				glog.Errorf("websocket: drop oversized frame %d from %s", len(pkt.Data), pkt.Source)
				continue
			}
			s.Deliver(pkt)
		}
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.Conn.Close()
		return ctx.Err()
	}
}

// Close closes the connection.
func (s *Socket) Close() error {
	return s.Conn.Close()
}
