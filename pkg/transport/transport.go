package transport

import (
	"errors"
	"fmt"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/hmtl.go/pkg/wire"
)

var (
	// ErrClosed indicates the transport is closed.
	ErrClosed = errors.New("transport closed")
)

// TooLargeError is returned when the data exceeds the send capacity.
type TooLargeError struct {
	Size     int
	Capacity int
}

// Error implements error.
func (e *TooLargeError) Error() string {
	return fmt.Sprintf("send %d bytes exceeds capacity %d", e.Size, e.Capacity)
}

// Packet is a frame received from a bus along with its envelope.
type Packet struct {
	Data   []byte
	Source wire.Address
	Dest   wire.Address
}

// Sender sends frames to an address.
type Sender interface {
	SendTo(dst wire.Address, data []byte) error
	// Capacity is the largest frame accepted by SendTo.
	Capacity() int
}

// Socket is an addressable bus transport.
type Socket interface {
	Sender
	// Receive returns the next received packet without blocking.
	Receive() (*Packet, bool)
	// SourceAddress is the local address on the bus.
	SourceAddress() wire.Address
	SetSourceAddress(wire.Address)
}

// DefaultInboxSize is the number of received packets buffered by an Endpoint.
const DefaultInboxSize = 32

// Endpoint carries the state shared by Socket implementations: the local
// address, the send capacity and a non-blocking inbox. Implementations
// embed it and provide SendTo.
type Endpoint struct {
	// Promiscuous accepts packets regardless of destination.
	Promiscuous bool

	capacity int
	inbox    chan *Packet
	addrLock sync.RWMutex
	addr     wire.Address
}

// NewEndpoint creates an Endpoint.
func NewEndpoint(addr wire.Address, capacity int) *Endpoint {
	if capacity <= 0 {
		capacity = wire.MaxFrameLen
	}
	return &Endpoint{
		capacity: capacity,
		inbox:    make(chan *Packet, DefaultInboxSize),
		addr:     addr,
	}
}

// Capacity implements Sender.
func (e *Endpoint) Capacity() int {
	return e.capacity
}

// SetCapacity changes the send capacity before the endpoint is used.
// Non-positive values select wire.MaxFrameLen.
func (e *Endpoint) SetCapacity(capacity int) {
	if capacity <= 0 {
		capacity = wire.MaxFrameLen
	}
	e.capacity = capacity
}

// SourceAddress implements Socket.
func (e *Endpoint) SourceAddress() wire.Address {
	e.addrLock.RLock()
	defer e.addrLock.RUnlock()
	return e.addr
}

// SetSourceAddress implements Socket.
func (e *Endpoint) SetSourceAddress(addr wire.Address) {
	e.addrLock.Lock()
	e.addr = addr
	e.addrLock.Unlock()
}

// Receive implements Socket.
func (e *Endpoint) Receive() (*Packet, bool) {
	select {
	case pkt := <-e.inbox:
		return pkt, true
	default:
		return nil, false
	}
}

// Accepts indicates whether a packet to dst is for this endpoint.
func (e *Endpoint) Accepts(dst wire.Address) bool {
	return e.Promiscuous || dst == wire.Broadcast || dst == e.SourceAddress()
}

// Deliver queues pkt if it's accepted. A full inbox drops the packet.
func (e *Endpoint) Deliver(pkt *Packet) bool {
	if !e.Accepts(pkt.Dest) {
		return false
	}
	select {
	case e.inbox <- pkt:
		return true
	default:
		glog.Errorf("transport: inbox full, drop %d bytes from %s", len(pkt.Data), pkt.Source)
		return false
	}
}

// CheckSize validates data against the capacity.
func (e *Endpoint) CheckSize(data []byte) error {
	if len(data) > e.capacity {
		return &TooLargeError{Size: len(data), Capacity: e.capacity}
	}
	return nil
}
