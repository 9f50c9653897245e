package sh

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/hmtl.go/pkg/config"
	"github.com/robotalks/hmtl.go/pkg/output"
	"github.com/robotalks/hmtl.go/pkg/program"
	"github.com/robotalks/hmtl.go/pkg/transport/serial"
	"github.com/robotalks/hmtl.go/pkg/wire"
)

// ParseAddress parses a node address or "all".
func ParseAddress(s string) (wire.Address, error) {
	if s == "all" || s == "*" {
		return wire.Broadcast, nil
	}
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return wire.Address(v), nil
}

// FormatPoll prints a poll reply into friendly string for display.
func FormatPoll(resp *wire.PollResponse) string {
	var w bytes.Buffer
	fmt.Fprintf(&w, "%s: device=%04x hw=%d proto=%d baud=%d flags=%02x object=%d buffer=%d",
		resp.Address, resp.DeviceID, resp.HardwareVersion, resp.ProtocolVersion,
		resp.Baud, resp.Flags, resp.ObjectType, resp.BufferSize)
	for _, o := range resp.Outputs {
		fmt.Fprintf(&w, " %d:%s", o.Index, o.Type)
	}
	if len(resp.Outputs) < int(resp.NumOutputs) {
		fmt.Fprintf(&w, " (%d of %d outputs)", len(resp.Outputs), resp.NumOutputs)
	}
	return w.String()
}

// ProgramCommand builds "OUTPUT ARGS..." into a PROGRAM message.
func ProgramCommand(typ wire.ProgramType, args []string) (*wire.ProgramMsg, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("output required")
	}
	out, err := config.OutputIndex(args[0])
	if err != nil {
		return nil, err
	}
	p, err := program.ParsePayload(typ, args[1:])
	if err != nil {
		return nil, err
	}
	return wire.NewProgramMsg(out, p), nil
}

func sendOutput(c *ishell.Context, conn *Conn, msg wire.OutputMsg) {
	if err := conn.Send(0, msg); err != nil {
		c.Err(err)
	}
}

func programCmd(typ wire.ProgramType) *ishell.Cmd {
	return &ishell.Cmd{
		Name: typ.String(),
		Help: "OUTPUT " + program.Usage[typ],
		Func: MustBeConnected(func(c *ishell.Context, conn *Conn) {
			msg, err := ProgramCommand(typ, c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			sendOutput(c, conn, msg)
		}),
	}
}

var (
	// ConnectCmd connects a bus.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[URL]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			url := s.DefaultURL()
			if len(c.Args) > 0 {
				url = c.Args[0]
			}
			if err := s.Connect(url); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd disconnects current bus.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}

	// TargetCmd selects the destination node.
	TargetCmd = ishell.Cmd{
		Name:    "target",
		Aliases: []string{"t"},
		Help:    "ADDRESS|all",
		Func: MustBeConnected(func(c *ishell.Context, conn *Conn) {
			if len(c.Args) != 1 {
				c.Println(conn.Target)
				return
			}
			addr, err := ParseAddress(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			ShellFrom(c).SetTarget(addr)
		}),
	}

	// PortsCmd lists serial ports.
	PortsCmd = ishell.Cmd{
		Name: "ports",
		Help: "",
		Func: func(c *ishell.Context) {
			ports, err := serial.Ports()
			if err != nil {
				c.Err(err)
				return
			}
			ShellFrom(c).Print(c, ports)
		},
	}

	// ValueCmd sets an output value.
	ValueCmd = ishell.Cmd{
		Name:    "value",
		Aliases: []string{"v"},
		Help:    "OUTPUT VALUE",
		Func: MustBeConnected(func(c *ishell.Context, conn *Conn) {
			if len(c.Args) != 2 {
				c.Err(fmt.Errorf("OUTPUT VALUE expected"))
				return
			}
			out, err := config.OutputIndex(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			v, err := strconv.ParseUint(c.Args[1], 0, 16)
			if err != nil {
				c.Err(fmt.Errorf("invalid value %q", c.Args[1]))
				return
			}
			sendOutput(c, conn, &wire.ValueMsg{Output: out, Value: uint16(v)})
		}),
	}

	// RGBCmd sets an output color.
	RGBCmd = ishell.Cmd{
		Name: "rgb",
		Help: "OUTPUT COLOR",
		Func: MustBeConnected(func(c *ishell.Context, conn *Conn) {
			if len(c.Args) != 2 {
				c.Err(fmt.Errorf("OUTPUT COLOR expected"))
				return
			}
			out, err := config.OutputIndex(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			color, err := output.ParseHex(c.Args[1])
			if err != nil {
				c.Err(err)
				return
			}
			sendOutput(c, conn, &wire.RGBMsg{Output: out, Color: color})
		}),
	}

	// ProgramCmd installs any program by name or number.
	ProgramCmd = ishell.Cmd{
		Name:    "program",
		Aliases: []string{"p"},
		Help:    "OUTPUT NAME|TYPE [ARGS...]",
		Func: MustBeConnected(func(c *ishell.Context, conn *Conn) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("OUTPUT NAME expected"))
				return
			}
			out, err := config.OutputIndex(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			p, err := program.ParseProgram(c.Args[1], c.Args[2:])
			if err != nil {
				c.Err(err)
				return
			}
			sendOutput(c, conn, wire.NewProgramMsg(out, p))
		}),
	}

	// CancelCmd clears the program of an output.
	CancelCmd = ishell.Cmd{
		Name: "cancel",
		Help: "[OUTPUT]",
		Func: MustBeConnected(func(c *ishell.Context, conn *Conn) {
			out := wire.AllOutputs
			if len(c.Args) > 0 {
				var err error
				if out, err = config.OutputIndex(c.Args[0]); err != nil {
					c.Err(err)
					return
				}
			}
			sendOutput(c, conn, wire.CancelMsg(out))
		}),
	}

	// PollCmd polls the target.
	PollCmd = ishell.Cmd{
		Name: "poll",
		Help: "",
		Func: MustBeConnected(func(c *ishell.Context, conn *Conn) {
			replies, err := conn.Poll(context.Background())
			if err != nil {
				c.Err(err)
				return
			}
			s := ShellFrom(c)
			if s.OutputJSON {
				if replies == nil {
					replies = []*wire.PollResponse{}
				}
				s.Print(c, replies)
				return
			}
			if len(replies) == 0 {
				c.Println("No nodes found")
				return
			}
			sort.Slice(replies, func(i, j int) bool { return replies[i].Address < replies[j].Address })
			for _, resp := range replies {
				c.Println(FormatPoll(resp))
			}
		}),
	}

	// SetAddrCmd assigns a node address.
	SetAddrCmd = ishell.Cmd{
		Name: "setaddr",
		Help: "DEVICE_ID ADDRESS",
		Func: MustBeConnected(func(c *ishell.Context, conn *Conn) {
			if len(c.Args) != 2 {
				c.Err(fmt.Errorf("DEVICE_ID ADDRESS expected"))
				return
			}
			id, err := strconv.ParseUint(c.Args[0], 0, 16)
			if err != nil {
				c.Err(fmt.Errorf("invalid device id %q", c.Args[0]))
				return
			}
			addr, err := ParseAddress(c.Args[1])
			if err != nil || addr == wire.Broadcast {
				c.Err(fmt.Errorf("invalid address %q", c.Args[1]))
				return
			}
			if err := conn.SetAddr(uint16(id), addr); err != nil {
				c.Err(err)
			}
		}),
	}

	// SensorCmd requests sensor readings.
	SensorCmd = ishell.Cmd{
		Name:    "sensor",
		Aliases: []string{"s"},
		Help:    "",
		Func: MustBeConnected(func(c *ishell.Context, conn *Conn) {
			recs, err := conn.Sensors(context.Background())
			if err != nil {
				c.Err(err)
				return
			}
			s := ShellFrom(c)
			if s.OutputJSON {
				s.Print(c, recs)
				return
			}
			for _, rec := range recs {
				c.Printf("%s: % x\n", rec.Type, rec.Data)
			}
		}),
	}

	// SyncCmd synchronizes the target clock with the shell.
	SyncCmd = ishell.Cmd{
		Name: "sync",
		Help: "",
		Func: MustBeConnected(func(c *ishell.Context, conn *Conn) {
			if err := conn.SyncClock(context.Background()); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		}),
	}
)

func init() {
	AddCmds(
		&ValueCmd,
		&RGBCmd,
		&ProgramCmd,
		&CancelCmd,
		&PollCmd,
		&SetAddrCmd,
		&SensorCmd,
		&SyncCmd,
	)
	types := make([]wire.ProgramType, 0, len(program.Usage))
	for typ, usage := range program.Usage {
		if usage != "" {
			types = append(types, typ)
		}
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	for _, typ := range types {
		AddCmds(programCmd(typ))
	}
}
