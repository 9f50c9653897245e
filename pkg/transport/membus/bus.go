// Package membus provides an in-process multi-drop bus. Every frame sent by
// one socket is seen by every other attached socket, which filters on its
// own address the way a shared RS485 line does.
package membus

import (
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/hmtl.go/pkg/transport"
	"github.com/robotalks/hmtl.go/pkg/wire"
)

// Bus is the shared medium.
type Bus struct {
	capacity int

	lock    sync.RWMutex
	sockets map[*Socket]struct{}
}

// New creates a Bus. Zero capacity means wire.MaxFrameLen.
func New(capacity int) *Bus {
	return &Bus{capacity: capacity, sockets: make(map[*Socket]struct{})}
}

// Attach creates a Socket on the bus.
func (b *Bus) Attach(addr wire.Address) *Socket {
	s := &Socket{Endpoint: transport.NewEndpoint(addr, b.capacity), bus: b}
	b.lock.Lock()
	b.sockets[s] = struct{}{}
	b.lock.Unlock()
	return s
}

// Len is the number of attached sockets.
func (b *Bus) Len() int {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return len(b.sockets)
}

func (b *Bus) transmit(from *Socket, pkt *transport.Packet) {
	b.lock.RLock()
	defer b.lock.RUnlock()
	for s := range b.sockets {
		if s == from {
			continue
		}
		data := make([]byte, len(pkt.Data))
		copy(data, pkt.Data)
		if s.Deliver(&transport.Packet{Data: data, Source: pkt.Source, Dest: pkt.Dest}) {
			glog.V(5).Infof("membus: %s -> %s % x", pkt.Source, s.SourceAddress(), data)
		}
	}
}

// Socket is a bus attachment.
type Socket struct {
	*transport.Endpoint
	bus *Bus
}

// SendTo implements transport.Sender.
func (s *Socket) SendTo(dst wire.Address, data []byte) error {
	if s.bus == nil {
		return transport.ErrClosed
	}
	if err := s.CheckSize(data); err != nil {
		return err
	}
	s.bus.transmit(s, &transport.Packet{Data: data, Source: s.SourceAddress(), Dest: dst})
	return nil
}

// Close detaches the socket.
func (s *Socket) Close() error {
	if b := s.bus; b != nil {
		b.lock.Lock()
		delete(b.sockets, s)
		b.lock.Unlock()
		s.bus = nil
	}
	return nil
}
