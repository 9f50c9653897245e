package sh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/hmtl.go/pkg/clocksync"
	fx "github.com/robotalks/hmtl.go/pkg/framework"
	"github.com/robotalks/hmtl.go/pkg/transport"
	"github.com/robotalks/hmtl.go/pkg/transport/mqtt"
	"github.com/robotalks/hmtl.go/pkg/transport/serial"
	"github.com/robotalks/hmtl.go/pkg/transport/stream"
	"github.com/robotalks/hmtl.go/pkg/transport/websocket"
	"github.com/robotalks/hmtl.go/pkg/wire"
)

// DefaultTimeout is how long a Conn waits for replies.
const DefaultTimeout = time.Second

// ErrTimeout is returned when no reply arrives in time.
var ErrTimeout = errors.New("timeout")

// Conn is a bus connection used to control nodes.
type Conn struct {
	Name    string
	Socket  transport.Socket
	Clock   *clocksync.Clock
	Target  wire.Address
	Timeout time.Duration

	runner *fx.Runner
	closer io.Closer
}

// NewConn creates a Conn over an attached socket.
func NewConn(name string, sock transport.Socket) *Conn {
	return &Conn{
		Name:    name,
		Socket:  sock,
		Clock:   clocksync.New(clocksync.NewSystemSource()),
		Target:  wire.Broadcast,
		Timeout: DefaultTimeout,
	}
}

// Dial connects a bus. url is an MQTT broker (mqtt:// or tcp://), a
// websocket hub (ws:// or wss://) or a serial port name[@baud].
func Dial(url string, addr wire.Address) (*Conn, error) {
	var (
		sock   transport.Socket
		runner fx.Runnable
		closer io.Closer
	)
	switch {
	case strings.HasPrefix(url, "mqtt://"), strings.HasPrefix(url, "tcp://"):
		q, err := mqtt.NewQueueFromURL(url)
		if err != nil {
			return nil, err
		}
		if err := q.Connect(); err != nil {
			return nil, fmt.Errorf("connect %s: %w", url, err)
		}
		s := mqtt.NewSocket(q, addr)
		sock, runner, closer = s, s, q
	case strings.HasPrefix(url, "ws://"), strings.HasPrefix(url, "wss://"):
		s, err := websocket.Dial(url, addr)
		if err != nil {
			return nil, fmt.Errorf("connect %s: %w", url, err)
		}
		sock, runner, closer = s, s, s
	default:
		sc, err := serial.ParseConfig(url)
		if err != nil {
			return nil, err
		}
		port, err := serial.Open(sc)
		if err != nil {
			return nil, err
		}
		s := stream.NewSocket(port, addr)
		sock, runner, closer = s, s, port
	}
	c := NewConn(url, sock)
	c.closer = closer
	c.runner = fx.NewRunner()
	c.runner.Go(fx.NamedRun(url, runner))
	return c, nil
}

// Close disconnects the bus.
func (c *Conn) Close() error {
	if c.runner != nil {
		c.runner.Cancel()
		c.runner.Wait()
	}
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// Send sends body to the target.
func (c *Conn) Send(flags wire.Flags, body wire.Body) error {
	return c.Socket.SendTo(c.Target, wire.Marshal(c.Target, flags, body))
}

func (c *Conn) sendHeader(typ wire.MsgType, flags wire.Flags) error {
	buf := make([]byte, wire.HeaderSize)
	wire.EncodeHeader(buf, c.Target, typ, flags)
	return c.Socket.SendTo(c.Target, buf)
}

// drain discards pending frames so replies aren't mixed with stale ones.
func (c *Conn) drain() {
	for {
		if _, ok := c.Socket.Receive(); !ok {
			return
		}
	}
}

// receive hands every frame received before the timeout to fn until fn
// returns true. It reports whether fn accepted a frame.
func (c *Conn) receive(ctx context.Context, fn func(*wire.Frame) bool) bool {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return false
		}
		pkt, ok := c.Socket.Receive()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		f, err := wire.Decode(pkt.Data)
		if err != nil {
			glog.Errorf("bad frame from %s: %v", pkt.Source, err)
			continue
		}
		if fn(f) {
			return true
		}
	}
	return false
}

// Poll polls the target. A broadcast poll collects replies until the
// timeout, otherwise the first reply returns.
func (c *Conn) Poll(ctx context.Context) ([]*wire.PollResponse, error) {
	c.drain()
	if err := c.sendHeader(wire.MsgPoll, wire.FlagResponse); err != nil {
		return nil, err
	}
	var replies []*wire.PollResponse
	c.receive(ctx, func(f *wire.Frame) bool {
		if f.Type != wire.MsgPoll || !f.Flags.Has(wire.FlagAck) {
			return false
		}
		resp, err := f.PollResponse()
		if err != nil {
			glog.Errorf("bad poll reply: %v", err)
			return false
		}
		replies = append(replies, resp)
		return c.Target != wire.Broadcast
	})
	if len(replies) == 0 && c.Target != wire.Broadcast {
		return nil, ErrTimeout
	}
	return replies, nil
}

// Sensors requests the sensor readings of the target.
func (c *Conn) Sensors(ctx context.Context) ([]wire.SensorRecord, error) {
	c.drain()
	if err := c.sendHeader(wire.MsgSensor, wire.FlagResponse); err != nil {
		return nil, err
	}
	var (
		recs      []wire.SensorRecord
		decodeErr error
	)
	if !c.receive(ctx, func(f *wire.Frame) bool {
		if f.Type != wire.MsgSensor || !f.Flags.Has(wire.FlagAck) {
			return false
		}
		recs, decodeErr = f.Sensors()
		return true
	}) {
		return nil, ErrTimeout
	}
	return recs, decodeErr
}

// SetAddr assigns address to the node with deviceID, 0 matches any node.
func (c *Conn) SetAddr(deviceID uint16, addr wire.Address) error {
	return c.Send(0, &wire.SetAddrMsg{DeviceID: deviceID, Address: addr})
}

// SyncClock runs the clock sync handshake with the target and pushes the
// local time to it.
func (c *Conn) SyncClock(ctx context.Context) error {
	if c.Target == wire.Broadcast {
		return errors.New("sync requires a node address")
	}
	c.drain()
	if !c.Clock.Synchronize(c.Socket, c.Target) {
		return nil
	}
	c.receive(ctx, func(f *wire.Frame) bool {
		if f.Type != wire.MsgTimeSync {
			return false
		}
		msg, err := f.TimeSync()
		if err != nil {
			glog.Errorf("bad time sync: %v", err)
			return false
		}
		return !c.Clock.Handle(c.Socket, c.Target, msg)
	})
	if c.Clock.Pending() {
		return ErrTimeout
	}
	return nil
}
