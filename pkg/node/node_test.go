package node

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/hmtl.go/pkg/clocksync"
	"github.com/robotalks/hmtl.go/pkg/config"
	fx "github.com/robotalks/hmtl.go/pkg/framework"
	"github.com/robotalks/hmtl.go/pkg/output"
	"github.com/robotalks/hmtl.go/pkg/transport/membus"
	"github.com/robotalks/hmtl.go/pkg/wire"
)

type testStdio struct {
	in  *strings.Reader
	buf bytes.Buffer
	mu  sync.Mutex
}

func (s *testStdio) Read(p []byte) (int, error) {
	return s.in.Read(p)
}

func (s *testStdio) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *testStdio) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

type nodeTestCtx struct {
	t       *testing.T
	bus     *membus.Bus
	peer    *membus.Socket
	src     *clocksync.ManualSource
	stdio   *testStdio
	node    *Node
	loop    *fx.Loop
	refresh int
}

func testConfig(addr uint16) *config.Config {
	cfg := config.Default()
	cfg.Address = addr
	cfg.DeviceID = 0x77
	cfg.Console = ""
	cfg.Buses = []config.BusConfig{{Type: config.BusMemory}}
	cfg.Outputs = []config.OutputConfig{
		{Type: "rgb", Pins: []int{3, 5, 6}},
		{Type: "pixels", NumPixels: 4},
	}
	return cfg
}

func newNodeTest(t *testing.T, cfg *config.Config) *nodeTestCtx {
	c := &nodeTestCtx{
		t:     t,
		bus:   membus.New(0),
		src:   clocksync.NewManualSource(1000),
		stdio: &testStdio{in: strings.NewReader("")},
	}
	c.peer = c.bus.Attach(9)
	n, err := New(cfg, Options{Stdio: c.stdio, MemBus: c.bus, Source: c.src})
	require.NoError(t, err)
	n.Refresh = func(output.Set) { c.refresh++ }
	c.node = n
	c.loop = fx.NewLoop()
	c.loop.Add(n)
	return c
}

func (c *nodeTestCtx) send(dst wire.Address, body wire.Body) {
	require.NoError(c.t, c.peer.SendTo(dst, wire.Marshal(dst, 0, body)))
}

func (c *nodeTestCtx) step() bool {
	return c.loop.Step(context.Background())
}

func (c *nodeTestCtx) light() *output.Light {
	return c.node.Outputs[0].(*output.Light)
}

func TestNewFromConfig(t *testing.T) {
	cfg := testConfig(4)
	cfg.Console = "-"
	cfg.Startup = []config.CommandConfig{{Output: "0", RGB: "#010203"}}
	c := newNodeTest(t, cfg)

	n := c.node
	require.Len(t, n.Outputs, 2)
	require.Len(t, n.Sockets, 1)
	require.NotNil(t, n.Console)
	require.Equal(t, wire.Address(4), n.Router.Address())
	require.Equal(t, uint16(0x77), n.Router.Identity.DeviceID)
	require.Equal(t, wire.Version, n.Router.Identity.ProtocolVersion)
	require.Equal(t, uint32(57600), n.Router.Identity.Baud)
	require.Equal(t, 2, c.bus.Len())

	require.NoError(t, n.Start())
	require.Equal(t, "ready\n", c.stdio.String())
	require.Equal(t, output.RGB{1, 2, 3}, c.light().Color)

	// startup frames addressed to the node aren't forwarded
	_, ok := c.peer.Receive()
	require.False(t, ok)
	require.NoError(t, n.Close())
}

func TestStartupBroadcastForwarded(t *testing.T) {
	cfg := testConfig(4)
	broadcast := uint16(wire.Broadcast)
	cfg.Startup = []config.CommandConfig{{Address: &broadcast, Output: "all", RGB: "#00ff00"}}
	c := newNodeTest(t, cfg)
	require.NoError(t, c.node.Start())
	require.Equal(t, output.RGB{0, 255, 0}, c.light().Color)
	pkt, ok := c.peer.Receive()
	require.True(t, ok)
	f, err := wire.Decode(pkt.Data)
	require.NoError(t, err)
	require.Equal(t, wire.Broadcast, f.Address)
}

func TestLoopAppliesOutputs(t *testing.T) {
	c := newNodeTest(t, testConfig(1))
	require.NoError(t, c.node.Start())

	require.False(t, c.step())
	require.Zero(t, c.refresh)

	c.send(1, &wire.RGBMsg{Output: 0, Color: [3]byte{10, 20, 30}})
	require.True(t, c.step())
	require.Equal(t, 1, c.refresh)
	require.Equal(t, output.RGB{10, 20, 30}, c.light().Color)

	c.send(1, wire.NewProgramMsg(0, wire.Fade{Period: 1000, Stop: [3]byte{200, 0, 0}}))
	c.step()
	require.Equal(t, 1, c.node.Scheduler.Active())
	c.src.Advance(1000)
	require.True(t, c.step())
	require.Equal(t, output.RGB{200, 0, 0}, c.light().Color)

	// other addresses are ignored
	c.send(2, &wire.RGBMsg{Output: 0, Color: [3]byte{1, 1, 1}})
	c.step()
	require.Equal(t, output.RGB{200, 0, 0}, c.light().Color)
}

func TestPollIdentity(t *testing.T) {
	c := newNodeTest(t, testConfig(1))
	req := make([]byte, wire.HeaderSize)
	wire.EncodePoll(req, 1)
	require.NoError(t, c.peer.SendTo(1, req))
	c.step()

	pkt, ok := c.peer.Receive()
	require.True(t, ok)
	f, err := wire.Decode(pkt.Data)
	require.NoError(t, err)
	resp, err := f.PollResponse()
	require.NoError(t, err)
	require.Equal(t, uint16(0x77), resp.DeviceID)
	require.Equal(t, wire.Address(1), resp.Address)
	require.Equal(t, byte(2), resp.NumOutputs)
	require.Equal(t, []wire.OutputDesc{
		{Type: wire.OutputRGB, Index: 0},
		{Type: wire.OutputPixels, Index: 1},
	}, resp.Outputs)
}

func TestSensorReply(t *testing.T) {
	c := newNodeTest(t, testConfig(1))
	rec := wire.SensorRecord{Type: wire.SensorLight, Data: []byte{0x34, 0x12}}
	require.NoError(t, c.peer.SendTo(1, wire.Marshal(1, wire.FlagAck, &wire.SensorMsg{Records: []wire.SensorRecord{rec}})))
	c.step()
	require.Equal(t, []wire.SensorRecord{rec}, c.node.Scheduler.Sensors.Records())
}

func TestOpenErrors(t *testing.T) {
	cfg := testConfig(1)
	_, err := New(cfg, Options{})
	require.Error(t, err)

	cfg = testConfig(1)
	cfg.Buses = []config.BusConfig{{Type: "can"}}
	_, err = New(cfg, Options{MemBus: membus.New(0)})
	require.Error(t, err)

	cfg = testConfig(1)
	cfg.Outputs = []config.OutputConfig{{Type: "pixels"}}
	_, err = New(cfg, Options{MemBus: membus.New(0)})
	require.Error(t, err)
}

func TestSyncClock(t *testing.T) {
	bus := membus.New(0)
	srcA, srcB := clocksync.NewManualSource(5000), clocksync.NewManualSource(1000)
	a, err := New(testConfig(1), Options{MemBus: bus, Source: srcA})
	require.NoError(t, err)
	b, err := New(testConfig(2), Options{MemBus: bus, Source: srcB})
	require.NoError(t, err)

	loopB := fx.NewLoop()
	loopB.Interval = time.Millisecond
	loopB.Add(b)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loopB.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// reads b state from its loop goroutine
	query := func() (clocksync.State, uint32) {
		type result struct {
			state  clocksync.State
			millis uint32
		}
		ch := make(chan result, 1)
		loopB.PreRunAt(fx.PrLvTop, fx.ControlFunc(func(fx.ControlContext) error {
			ch <- result{b.Clock.State(), b.Clock.Millis()}
			return nil
		}))
		r := <-ch
		return r.state, r.millis
	}

	syncCtx, syncCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer syncCancel()
	require.NoError(t, a.SyncClock(syncCtx, 2))
	require.False(t, a.Clock.Pending())

	require.Eventually(t, func() bool {
		state, millis := query()
		return state == clocksync.StateSynced && millis == 5000
	}, 5*time.Second, 5*time.Millisecond)
}

func TestSyncClockNoBus(t *testing.T) {
	cfg := testConfig(1)
	cfg.Buses = nil
	n, err := New(cfg, Options{})
	require.NoError(t, err)
	require.ErrorIs(t, n.SyncClock(context.Background(), 2), ErrNoBus)
}
