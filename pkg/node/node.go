// Package node assembles an HMTL node from its configuration: outputs,
// program scheduler, logical clock, router, console and bus sockets, all
// driven by a framework.Loop.
package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/golang/glog"

	"github.com/robotalks/hmtl.go/pkg/clocksync"
	"github.com/robotalks/hmtl.go/pkg/config"
	fx "github.com/robotalks/hmtl.go/pkg/framework"
	"github.com/robotalks/hmtl.go/pkg/output"
	"github.com/robotalks/hmtl.go/pkg/program"
	"github.com/robotalks/hmtl.go/pkg/router"
	"github.com/robotalks/hmtl.go/pkg/transport"
	"github.com/robotalks/hmtl.go/pkg/transport/membus"
	"github.com/robotalks/hmtl.go/pkg/transport/mqtt"
	"github.com/robotalks/hmtl.go/pkg/transport/serial"
	"github.com/robotalks/hmtl.go/pkg/transport/stream"
	"github.com/robotalks/hmtl.go/pkg/transport/websocket"
	"github.com/robotalks/hmtl.go/pkg/wire"
)

// ErrNoBus is returned when an operation requires a bus socket.
var ErrNoBus = errors.New("no bus socket")

// Options provides the resources a Node can't open from configuration.
type Options struct {
	// Stdio is the console "-", default stdin and stdout.
	Stdio io.ReadWriter
	// MemBus is attached by memory buses.
	MemBus *membus.Bus
	// Source is the monotonic time source, default the system clock.
	Source clocksync.Source
}

// Node is a configured HMTL node.
type Node struct {
	Config    *config.Config
	Outputs   output.Set
	Clock     *clocksync.Clock
	Scheduler *program.Scheduler
	Router    *router.Router
	Console   *transport.Console
	Sockets   []transport.Socket

	// Refresh pushes outputs after an iteration changed them.
	Refresh func(output.Set)

	runners []fx.Runnable
	closers []io.Closer
}

type stdio struct {
	io.Reader
	io.Writer
}

// New creates a Node and opens its console and buses.
func New(cfg *config.Config, opts Options) (*Node, error) {
	outputs, err := cfg.BuildOutputs()
	if err != nil {
		return nil, err
	}
	src := opts.Source
	if src == nil {
		src = clocksync.NewSystemSource()
	}
	clock := clocksync.New(src)
	n := &Node{
		Config:    cfg,
		Outputs:   outputs,
		Clock:     clock,
		Scheduler: program.NewScheduler(outputs, clock),
		Refresh:   LogOutputs,
	}

	if err := n.openConsole(opts); err != nil {
		n.Close()
		return nil, err
	}
	for i, b := range cfg.Buses {
		sock, err := n.openBus(b, opts)
		if err != nil {
			n.Close()
			return nil, fmt.Errorf("bus %d (%s): %w", i, b.Type, err)
		}
		n.Sockets = append(n.Sockets, sock)
	}

	var console router.Console
	if n.Console != nil {
		console = n.Console
	}
	r := router.New(wire.Address(cfg.Address), console, n.Sockets...)
	r.Identity = router.Identity{
		DeviceID:        cfg.DeviceID,
		ProtocolVersion: wire.Version,
		HardwareVersion: cfg.HardwareVersion,
		Baud:            cfg.Baud,
		Flags:           cfg.Flags,
		ObjectType:      cfg.ObjectType,
	}
	r.Scheduler = n.Scheduler
	r.Clock = n.Clock
	r.Sensors = router.SensorSourceFunc(n.Scheduler.Sensors.Records)
	n.Router = r
	return n, nil
}

func (n *Node) openConsole(opts Options) error {
	switch n.Config.Console {
	case "":
		return nil
	case "-":
		rw := opts.Stdio
		if rw == nil {
			rw = stdio{Reader: os.Stdin, Writer: os.Stdout}
		}
		n.Console = transport.NewConsole(rw)
	default:
		sc, err := serial.ParseConfig(n.Config.Console)
		if err != nil {
			return err
		}
		port, err := serial.Open(sc)
		if err != nil {
			return err
		}
		n.closers = append(n.closers, port)
		n.Console = transport.NewConsole(port)
	}
	n.runners = append(n.runners, fx.NamedRun("console", n.Console))
	return nil
}

func (n *Node) openBus(b config.BusConfig, opts Options) (transport.Socket, error) {
	addr := wire.Address(n.Config.Address)
	switch b.Type {
	case config.BusMemory:
		if opts.MemBus == nil {
			return nil, errors.New("memory bus not available")
		}
		return opts.MemBus.Attach(addr), nil
	case config.BusStream:
		sc, err := serial.ParseConfig(b.Port)
		if err != nil {
			return nil, err
		}
		port, err := serial.Open(sc)
		if err != nil {
			return nil, err
		}
		sock := stream.NewSocket(port, addr)
		withCapacity(sock.Endpoint, b.Capacity)
		n.runners = append(n.runners, fx.NamedRun("stream:"+sc.Name, fx.CloseOnExit(sock, port)))
		return sock, nil
	case config.BusMQTT:
		q, err := mqtt.NewQueueFromURL(b.URL)
		if err != nil {
			return nil, err
		}
		if err := q.Connect(); err != nil {
			return nil, err
		}
		n.closers = append(n.closers, q)
		sock := mqtt.NewSocket(q, addr)
		withCapacity(sock.Endpoint, b.Capacity)
		n.runners = append(n.runners, fx.NamedRun("mqtt", sock))
		return sock, nil
	case config.BusWebSocket:
		sock, err := websocket.Dial(b.URL, addr)
		if err != nil {
			return nil, err
		}
		withCapacity(sock.Endpoint, b.Capacity)
		n.runners = append(n.runners, fx.NamedRun("websocket", fx.CloseOnExit(sock, sock)))
		return sock, nil
	}
	return nil, fmt.Errorf("unknown bus type %q", b.Type)
}

func withCapacity(e *transport.Endpoint, capacity int) {
	if capacity > 0 {
		e.SetCapacity(capacity)
	}
}

// Start announces the node on the console and processes the startup
// commands as console frames.
func (n *Node) Start() error {
	n.Router.Start()
	frames, err := n.Config.StartupFrames()
	if err != nil {
		return err
	}
	for _, f := range frames {
		n.Router.Inject(f)
	}
	glog.Infof("node %s started: %d outputs, %d buses", n.Router.Address(), len(n.Outputs), len(n.Sockets))
	return nil
}

// AddToLoop implements framework.LoopAdder.
func (n *Node) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvSense, fx.ControlFunc(func(ctx fx.ControlContext) error {
		if n.Router.Check() {
			ctx.MarkChanged()
		}
		return nil
	}))
	loop.AddController(fx.PrLvAcuate, fx.ControlFunc(func(ctx fx.ControlContext) error {
		if n.Scheduler.Run() {
			ctx.MarkChanged()
		}
		return nil
	}))
	loop.AddController(fx.PrLvPostProc, fx.ControlFunc(func(ctx fx.ControlContext) error {
		if ctx.Changed() && n.Refresh != nil {
			n.Refresh(n.Outputs)
		}
		return nil
	}))
	loop.AddRunnable(n.runners...)
}

// Run starts the node and runs it in a loop until ctx is done.
func (n *Node) Run(ctx context.Context) error {
	if err := n.Start(); err != nil {
		return err
	}
	loop := fx.NewLoop()
	loop.Interval = n.Config.Tick
	loop.Add(n)
	return loop.Run(ctx)
}

// SyncClock runs a clock sync handshake with target over the first bus
// socket, processing incoming frames until it completes.
func (n *Node) SyncClock(ctx context.Context, target wire.Address) error {
	if len(n.Sockets) == 0 {
		return ErrNoBus
	}
	if !n.Clock.Synchronize(n.Sockets[0], target) {
		return nil
	}
	for n.Clock.Pending() {
		if err := ctx.Err(); err != nil {
			return err
		}
		n.Router.Check()
		runtime.Gosched()
	}
	return nil
}

// Close releases the opened devices.
func (n *Node) Close() error {
	var errs fx.AggregatedError
	for _, c := range n.closers {
		errs.Add(c.Close())
	}
	n.closers = nil
	return errs.Aggregate()
}

// LogOutputs logs the state of every colorable output.
func LogOutputs(outputs output.Set) {
	if !glog.V(2) {
		return
	}
	parts := make([]string, 0, len(outputs))
	for _, o := range outputs {
		if c, ok := o.(output.Colorable); ok {
			parts = append(parts, fmt.Sprintf("%d:%s=%s", o.Index(), o.Type(), c.RGB()))
		}
	}
	glog.Infof("outputs %s", strings.Join(parts, " "))
}
