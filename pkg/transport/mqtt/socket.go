package mqtt

import (
	"context"
	"encoding/binary"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/hmtl.go/pkg/transport"
	"github.com/robotalks/hmtl.go/pkg/wire"
)

// Bus topics are <prefix>bus/<addr> with <prefix>bus/all for broadcast.
const (
	BusTopicPrefix = "bus/"
	BroadcastTopic = BusTopicPrefix + "all"
	// BusTopicFilter matches all bus topics.
	BusTopicFilter = BusTopicPrefix + "+"
)

// ErrShortPayload indicates the payload has no source address.
var ErrShortPayload = errors.New("short bus payload")

// BusTopic is the topic a frame to addr is published on.
func BusTopic(addr wire.Address) string {
	if addr == wire.Broadcast {
		return BroadcastTopic
	}
	return BusTopicPrefix + strconv.Itoa(int(addr))
}

// ParseBusTopic extracts the destination from a bus topic.
func ParseBusTopic(topic string) (wire.Address, bool) {
	if topic == BroadcastTopic {
		return wire.Broadcast, true
	}
	if !strings.HasPrefix(topic, BusTopicPrefix) {
		return 0, false
	}
	n, err := strconv.ParseUint(topic[len(BusTopicPrefix):], 10, 16)
	if err != nil {
		return 0, false
	}
	return wire.Address(n), true
}

// EncodePayload prefixes frame with the little-endian source address.
func EncodePayload(src wire.Address, frame []byte) []byte {
	payload := make([]byte, 2+len(frame))
	binary.LittleEndian.PutUint16(payload, uint16(src))
	copy(payload[2:], frame)
	return payload
}

// DecodePayload splits a bus payload.
func DecodePayload(topic string, payload []byte) (*transport.Packet, error) {
	dst, ok := ParseBusTopic(topic)
	if !ok {
		return nil, errors.New("not a bus topic: " + topic)
	}
	if len(payload) < 2 {
		return nil, ErrShortPayload
	}
	data := make([]byte, len(payload)-2)
	copy(data, payload[2:])
	return &transport.Packet{
		Data:   data,
		Source: wire.Address(binary.LittleEndian.Uint16(payload)),
		Dest:   dst,
	}, nil
}

// SubscribeBus subscribes all bus traffic.
func SubscribeBus(q *Queue, fn func(*transport.Packet)) *Subscription {
	return q.Sub(BusTopicFilter, func(topic string, payload []byte) {
		pkt, err := DecodePayload(topic, payload)
		if err != nil {
			glog.Errorf("mqtt: %q: %v", topic, err)
			return
		}
		fn(pkt)
	})
}

// Socket is a bus socket over MQTT. It subscribes its own address topic and
// the broadcast topic, and drops frames it published itself.
type Socket struct {
	*transport.Endpoint
	Queue *Queue

	subLock sync.Mutex
	addrSub *Subscription
	bcstSub *Subscription
}

// NewSocket creates a Socket.
func NewSocket(q *Queue, addr wire.Address) *Socket {
	return &Socket{Endpoint: transport.NewEndpoint(addr, wire.MaxFrameLen), Queue: q}
}

// SendTo implements transport.Sender.
func (s *Socket) SendTo(dst wire.Address, data []byte) error {
	if err := s.CheckSize(data); err != nil {
		return err
	}
	token := s.Queue.Pub(BusTopic(dst), EncodePayload(s.SourceAddress(), data))
	token.Wait()
	return token.Error()
}

// SetSourceAddress implements transport.Socket and moves the subscription.
func (s *Socket) SetSourceAddress(addr wire.Address) {
	s.subLock.Lock()
	defer s.subLock.Unlock()
	old := s.SourceAddress()
	s.Endpoint.SetSourceAddress(addr)
	if s.addrSub != nil && old != addr {
		s.addrSub.Close()
		s.addrSub = s.Queue.Sub(BusTopic(addr), s.handle)
	}
}

// Run implements Runnable.
func (s *Socket) Run(ctx context.Context) error {
	s.subscribe()
	defer s.unsubscribe()
	<-ctx.Done()
	return ctx.Err()
}

func (s *Socket) subscribe() {
	s.subLock.Lock()
	defer s.subLock.Unlock()
	s.addrSub = s.Queue.Sub(BusTopic(s.SourceAddress()), s.handle)
	s.bcstSub = s.Queue.Sub(BroadcastTopic, s.handle)
}

func (s *Socket) unsubscribe() {
	s.subLock.Lock()
	defer s.subLock.Unlock()
	for _, sub := range []*Subscription{s.addrSub, s.bcstSub} {
		if sub != nil {
			sub.Close()
		}
	}
	s.addrSub, s.bcstSub = nil, nil
}

func (s *Socket) handle(topic string, payload []byte) {
	pkt, err := DecodePayload(topic, payload)
	if err != nil {
		glog.Errorf("mqtt: %q: %v", topic, err)
		return
	}
	if pkt.Source == s.SourceAddress() {
		return
	}
	if len(pkt.Data) > s.Capacity() {
		glog.Errorf("mqtt: drop oversized frame %d from %s", len(pkt.Data), pkt.Source)
		return
	}
	s.Deliver(pkt)
}
