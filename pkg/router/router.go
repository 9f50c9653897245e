// Package router moves frames between the console and the bus sockets of a
// node and dispatches the frames addressed to the node.
package router

import (
	"io"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/hmtl.go/pkg/clocksync"
	"github.com/robotalks/hmtl.go/pkg/program"
	"github.com/robotalks/hmtl.go/pkg/transport"
	"github.com/robotalks/hmtl.go/pkg/wire"
)

// Console lines.
const (
	ReadyLine = "ready\n"
	AckLine   = "ok\n"
)

// Ready line timing.
const (
	// ReadyThreshold is the console idle time before ready lines are resent.
	ReadyThreshold = 10 * time.Second
	// ReadyResendPeriod is the interval between ready lines.
	ReadyResendPeriod = time.Second
)

// Console is the local byte link.
type Console interface {
	ReadByte() (byte, bool)
	io.Writer
}

// SensorSource provides the records sent in reply to a SENSOR request.
type SensorSource interface {
	Sensors() []wire.SensorRecord
}

// SensorSourceFunc is the func form of SensorSource.
type SensorSourceFunc func() []wire.SensorRecord

// Sensors implements SensorSource.
func (f SensorSourceFunc) Sensors() []wire.SensorRecord {
	return f()
}

// Identity is the node information reported in POLL replies.
type Identity struct {
	DeviceID        uint16
	ProtocolVersion byte
	HardwareVersion byte
	Baud            uint32
	Flags           byte
	ObjectType      uint16
}

// Source is where a frame came from. A nil Socket is the console.
type Source struct {
	Socket  transport.Socket
	Address wire.Address
}

// IsConsole indicates the frame came from the console.
func (s Source) IsConsole() bool {
	return s.Socket == nil
}

// Router owns the node address and dispatches frames.
type Router struct {
	Identity  Identity
	Console   Console
	Sockets   []transport.Socket
	Scheduler *program.Scheduler
	Clock     *clocksync.Clock
	Sensors   SensorSource

	// Sleep delays broadcast POLL replies.
	Sleep func(time.Duration)
	// Now is the wall clock for console ready lines.
	Now func() time.Time

	address     wire.Address
	assembler   wire.Assembler
	lastConsole time.Time
	lastReady   time.Time
}

// New creates a Router.
func New(addr wire.Address, console Console, sockets ...transport.Socket) *Router {
	return &Router{
		Identity: Identity{ProtocolVersion: wire.Version},
		Console:  console,
		Sockets:  sockets,
		Sleep:    time.Sleep,
		Now:      time.Now,
		address:  addr,
	}
}

// Address gets the node address.
func (r *Router) Address() wire.Address {
	return r.address
}

// SetAddress changes the node address and retags all sockets.
func (r *Router) SetAddress(addr wire.Address) {
	r.address = addr
	for _, s := range r.Sockets {
		s.SetSourceAddress(addr)
	}
}

// Start announces the node on the console.
func (r *Router) Start() {
	now := r.Now()
	r.lastConsole, r.lastReady = now, now
	r.writeConsole([]byte(ReadyLine))
}

// Check drains the console and every socket, processing complete frames.
// It reports whether any output may need refreshing.
func (r *Router) Check() bool {
	changed := r.checkConsole()
	for _, s := range r.Sockets {
		if r.checkSocket(s) {
			changed = true
		}
	}
	r.serveReady()
	return changed
}

// Inject handles data as if it was received on the console, without the
// console acknowledgement. It's used for startup commands.
func (r *Router) Inject(data []byte) bool {
	f, err := wire.Decode(data)
	if err != nil {
		glog.Errorf("router: invalid injected frame: %v", err)
		return false
	}
	r.forwardAll(f)
	return r.Process(f, Source{})
}

func (r *Router) checkConsole() (changed bool) {
	if r.Console == nil {
		return false
	}
	for {
		b, ok := r.Console.ReadByte()
		if !ok {
			return
		}
		pr := r.assembler.Parse(b)
		if pr.Resync {
			glog.Errorf("router: console resync at byte %02x", b)
		}
		if pr.State != wire.AssembleComplete {
			continue
		}
		r.lastConsole = r.Now()
		glog.V(5).Infof("router: console frame % x", pr.Frame)
		r.writeConsole([]byte(AckLine))
		f, err := wire.Decode(pr.Frame)
		if err != nil {
			glog.Errorf("router: console frame: %v", err)
			continue
		}
		r.forwardAll(f)
		if r.Process(f, Source{}) {
			changed = true
		}
	}
}

func (r *Router) checkSocket(s transport.Socket) (changed bool) {
	for {
		pkt, ok := s.Receive()
		if !ok {
			return
		}
		f, err := wire.Decode(pkt.Data)
		if err != nil {
			glog.Errorf("router: frame from %s: %v", pkt.Source, err)
			continue
		}
		if r.Process(f, Source{Socket: s, Address: pkt.Source}) {
			changed = true
		}
	}
}

func (r *Router) serveReady() {
	if r.Console == nil {
		return
	}
	now := r.Now()
	if now.Sub(r.lastConsole) > ReadyThreshold && now.Sub(r.lastReady) > ReadyResendPeriod {
		r.writeConsole([]byte(ReadyLine))
		r.lastReady = now
	}
}

func (r *Router) forwardAll(f *wire.Frame) {
	for _, s := range r.Sockets {
		r.Forward(f, s)
	}
}

// Forward sends f on s when it's addressed elsewhere or broadcast.
func (r *Router) Forward(f *wire.Frame, s transport.Sender) bool {
	if f.Address == r.address && f.Address != wire.Broadcast {
		return false
	}
	if int(f.Length) > s.Capacity() {
		glog.Errorf("router: frame %d larger than send buffer %d", f.Length, s.Capacity())
		return false
	}
	if err := s.SendTo(f.Address, f.Bytes()); err != nil {
		glog.Errorf("router: forward to %s error: %v", f.Address, err)
		return false
	}
	glog.V(4).Infof("router: forwarded %s", f)
	return true
}

// Process handles a frame addressed to this node and reports whether an
// output changed.
func (r *Router) Process(f *wire.Frame, src Source) bool {
	if f.Address != r.address && f.Address != wire.Broadcast {
		return false
	}
	if f.Flags.Has(wire.FlagAck) && f.Address != wire.Broadcast {
		// replies to this address may be meant for whoever is on the console
		glog.V(4).Infof("router: ack %s to console", f)
		r.writeConsole(f.Bytes())
		if f.Type != wire.MsgSensor {
			return false
		}
	}

	switch f.Type {
	case wire.MsgOutput:
		r.handleOutput(f)
		return true
	case wire.MsgPoll:
		r.handlePoll(f, src)
	case wire.MsgSetAddr:
		r.handleSetAddr(f, src)
	case wire.MsgSensor:
		r.handleSensor(f, src)
	case wire.MsgTimeSync:
		r.handleTimeSync(f, src)
	default:
		glog.Warningf("router: unknown message %s", f)
	}
	return false
}

func (r *Router) handleOutput(f *wire.Frame) {
	msg, err := f.Output()
	if err != nil {
		glog.Errorf("router: %v", err)
		return
	}
	if pm, ok := msg.(*wire.ProgramMsg); ok {
		if r.Scheduler != nil {
			r.Scheduler.HandleMsg(pm)
		}
		return
	}
	if r.Scheduler == nil || !r.Scheduler.Outputs().Apply(msg) {
		glog.Warningf("router: output %d can't take %T", msg.OutputHeader().Output, msg)
	}
}

func (r *Router) handlePoll(f *wire.Frame, src Source) {
	sender := r.replySender(src)
	resp := &wire.PollResponse{
		ProtocolVersion: r.Identity.ProtocolVersion,
		HardwareVersion: r.Identity.HardwareVersion,
		Baud:            r.Identity.Baud,
		Flags:           r.Identity.Flags,
		DeviceID:        r.Identity.DeviceID,
		Address:         r.address,
		ObjectType:      r.Identity.ObjectType,
		BufferSize:      uint16(sender.Capacity()),
		MsgVersion:      wire.Version,
	}
	if r.Scheduler != nil {
		outputs := r.Scheduler.Outputs()
		resp.NumOutputs = byte(len(outputs))
		resp.Outputs = outputs.Descriptors()
	}
	resp.Fit(sender.Capacity())
	if len(resp.Outputs) < int(resp.NumOutputs) {
		glog.Warningf("router: poll reply truncated to %d outputs", len(resp.Outputs))
	}

	if !src.IsConsole() && f.Address == wire.Broadcast {
		delay := time.Duration(r.address) * 2 * time.Millisecond
		glog.V(3).Infof("router: delay poll reply %s", delay)
		r.Sleep(delay)
	}
	r.reply(sender, src.Address, f.Flags, resp)
}

func (r *Router) handleSetAddr(f *wire.Frame, src Source) {
	msg, err := f.SetAddr()
	if err != nil {
		glog.Errorf("router: %v", err)
		return
	}
	if msg.DeviceID != 0 && msg.DeviceID != r.Identity.DeviceID {
		return
	}
	r.address = msg.Address
	if src.IsConsole() {
		for _, s := range r.Sockets {
			s.SetSourceAddress(msg.Address)
		}
	} else {
		src.Socket.SetSourceAddress(msg.Address)
	}
	glog.Infof("router: address changed to %s", msg.Address)
}

func (r *Router) handleSensor(f *wire.Frame, src Source) {
	if f.Flags.Has(wire.FlagAck) {
		recs, err := f.Sensors()
		if err != nil {
			glog.Errorf("router: %v", err)
		}
		for _, rec := range recs {
			if r.Scheduler != nil {
				r.Scheduler.RunProgram(wire.ProgramSensorData, rec)
			}
		}
		return
	}
	if !f.Flags.Has(wire.FlagResponse) || r.Sensors == nil {
		return
	}
	sender := r.replySender(src)
	msg := &wire.SensorMsg{}
	for _, rec := range r.Sensors.Sensors() {
		if wire.HeaderSize+msg.Size()+2+len(rec.Data) > sender.Capacity() {
			glog.Warningf("router: sensor reply truncated at type %d", rec.Type)
			break
		}
		msg.Records = append(msg.Records, rec)
	}
	r.reply(sender, src.Address, 0, msg)
}

func (r *Router) handleTimeSync(f *wire.Frame, src Source) {
	msg, err := f.TimeSync()
	if err != nil {
		glog.Errorf("router: %v", err)
		return
	}
	if r.Clock != nil {
		r.Clock.Handle(r.replySender(src), src.Address, msg)
	}
}

func (r *Router) reply(s transport.Sender, dst wire.Address, reqFlags wire.Flags, body wire.Body) {
	flags := wire.FlagAck
	if reqFlags.Has(wire.FlagResponse) {
		flags |= wire.FlagResponse
	}
	size := wire.HeaderSize + body.Size()
	if size > s.Capacity() {
		glog.Errorf("router: %s reply %d larger than send buffer %d", body.MsgType(), size, s.Capacity())
		return
	}
	buf := make([]byte, size)
	wire.Encode(buf, dst, flags, body)
	if err := s.SendTo(dst, buf); err != nil {
		glog.Errorf("router: reply to %s error: %v", dst, err)
	}
}

// replySender picks the transport replies go out on. Console replies are
// limited by the first socket's buffer when there is one.
func (r *Router) replySender(src Source) transport.Sender {
	if !src.IsConsole() {
		return src.Socket
	}
	capacity := wire.MaxFrameLen
	if len(r.Sockets) > 0 {
		capacity = r.Sockets[0].Capacity()
	}
	return &consoleSender{r: r, capacity: capacity}
}

func (r *Router) writeConsole(data []byte) {
	if r.Console == nil {
		return
	}
	if _, err := r.Console.Write(data); err != nil {
		glog.Errorf("router: console write error: %v", err)
	}
}

type consoleSender struct {
	r        *Router
	capacity int
}

func (s *consoleSender) SendTo(_ wire.Address, data []byte) error {
	s.r.writeConsole(data)
	return nil
}

func (s *consoleSender) Capacity() int {
	return s.capacity
}
