// Package clocksync keeps a logical clock agreed between nodes.
//
// The initiator sends SYNC and hot-waits. The responder records the
// receipt time, replies ACK and waits for SET. The initiator answers the
// ACK with SET carrying its logical time and goes back to idle. The
// responder takes half of the ACK to SET interval as the one-way latency
// and offsets its clock so that it reads the initiator's time plus that
// latency. Only the responder ends up synced.
//
// There is no timeout: a lost ACK or SET leaves the state machine waiting
// until a fresh SYNC arrives.
package clocksync

import (
	"github.com/golang/glog"

	"github.com/robotalks/hmtl.go/pkg/wire"
)

// State is the handshake state.
type State int

// Handshake states.
const (
	StateIdle State = iota
	StateAwaitingAck
	StateAwaitingSet
	StateSynced
)

var stateNames = [...]string{"idle", "awaiting-ack", "awaiting-set", "synced"}

// String implements fmt.Stringer.
func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Sender sends frames to an address, typically a transport socket.
type Sender interface {
	SendTo(dst wire.Address, data []byte) error
	Capacity() int
}

// Clock is a logical clock: the Source plus a negotiated delta.
type Clock struct {
	source  Source
	latency uint32
	delta   int32
	state   State
	// receipt doubles as the SYNC receipt time until SET arrives.
	receipt uint32
}

// New creates a Clock over a Source.
func New(source Source) *Clock {
	return &Clock{source: source}
}

// Millis is the logical time in milliseconds.
func (c *Clock) Millis() uint32 {
	return c.source.Millis() + uint32(c.delta)
}

// Set makes t the current logical time.
func (c *Clock) Set(t uint32) {
	c.delta = int32(t - c.source.Millis())
	glog.V(3).Infof("time set delta=%d", c.delta)
}

// State gets the handshake state.
func (c *Clock) State() State { return c.state }

// Latency is the last measured one-way latency.
func (c *Clock) Latency() uint32 { return c.latency }

// Delta is the offset applied to the source.
func (c *Clock) Delta() int32 { return c.delta }

// Pending indicates a handshake is in flight and the caller should hot-wait.
func (c *Clock) Pending() bool {
	return c.state != StateIdle && c.state != StateSynced
}

// Synchronize starts a handshake with target. A handshake already in
// flight is abandoned. It returns Pending().
func (c *Clock) Synchronize(s Sender, target wire.Address) bool {
	glog.V(3).Infof("SYNC to %s", target)
	c.send(s, target, wire.SyncPhaseSync, 0)
	c.state = StateAwaitingAck
	return c.Pending()
}

// Resynchronize pushes the current logical time to a synced target.
func (c *Clock) Resynchronize(s Sender, target wire.Address) {
	c.send(s, target, wire.SyncPhaseResync, 0)
}

// Check asks target to echo its time for drift measurement.
func (c *Clock) Check(s Sender, target wire.Address) {
	c.send(s, target, wire.SyncPhaseCheck, 0)
}

// Handle processes a TIMESYNC message from source and returns Pending().
func (c *Clock) Handle(s Sender, source wire.Address, msg *wire.TimeSync) bool {
	now := c.source.Millis()
	switch msg.Phase {
	case wire.SyncPhaseCheck:
		glog.V(3).Infof("CHECK from %s ts=%d ms=%d diff=%d",
			source, msg.Timestamp, c.Millis(), int32(msg.Timestamp+c.latency-c.Millis()))
		c.send(s, source, wire.SyncPhaseAck, c.latency)
	case wire.SyncPhaseSync:
		if c.state == StateIdle || c.state == StateSynced {
			glog.V(3).Infof("SYNC from %s", source)
			c.receipt = now
			c.send(s, source, wire.SyncPhaseAck, 0)
			c.state = StateAwaitingSet
		}
	case wire.SyncPhaseResync:
		if c.state == StateSynced {
			c.delta = int32(msg.Timestamp + c.latency - now)
			glog.V(3).Infof("RESYNC from %s delta=%d", source, c.delta)
		}
	case wire.SyncPhaseAck:
		if c.state == StateAwaitingAck {
			glog.V(3).Infof("ACK from %s", source)
			c.send(s, source, wire.SyncPhaseSet, 0)
			c.state = StateIdle
		} else {
			glog.V(3).Infof("ACK from %s ts=%d ms=%d diff=%d",
				source, msg.Timestamp, c.Millis(), int32(c.Millis()-msg.Timestamp))
		}
	case wire.SyncPhaseSet:
		if c.state == StateAwaitingSet {
			c.latency = (now - c.receipt) / 2
			c.delta = int32(msg.Timestamp + c.latency - now)
			c.state = StateSynced
			glog.V(3).Infof("SET from %s ts=%d latency=%d delta=%d",
				source, msg.Timestamp, c.latency, c.delta)
		}
	default:
		glog.Warningf("unknown time sync phase %d from %s", msg.Phase, source)
	}
	return c.Pending()
}

func (c *Clock) send(s Sender, target wire.Address, phase wire.SyncPhase, adjust uint32) {
	msg := &wire.TimeSync{Phase: phase, Timestamp: c.Millis() + adjust}
	size := wire.HeaderSize + msg.Size()
	if s.Capacity() < size {
		glog.Errorf("time sync buffer too small: %d", s.Capacity())
		return
	}
	buf := make([]byte, size)
	wire.Encode(buf, target, 0, msg)
	if err := s.SendTo(target, buf); err != nil {
		glog.Errorf("send %s to %s error: %v", phase, target, err)
	}
}
