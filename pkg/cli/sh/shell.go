package sh

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/hmtl.go/pkg/env"
	"github.com/robotalks/hmtl.go/pkg/wire"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool

	Shell  *ishell.Shell
	Config *env.Config
	Conn   *Conn
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool
	target     = "all"

	// commands
	commands = []*ishell.Cmd{
		&ConnectCmd,
		&DisconnectCmd,
		&TargetCmd,
		&PortsCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.StringVar(&target, "target", target, "Target node address or all.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context, conn *Conn)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		conn := ShellFrom(c).Conn
		if conn == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c, conn)
	}
}

// Print prints v as JSON or with its String method.
func (s *Shell) Print(c *ishell.Context, v interface{}) {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(v)
}

// LocalAddress is the bus address of the shell.
func (s *Shell) LocalAddress() wire.Address {
	if s.Config != nil && s.Config.Address >= 0 {
		return wire.Address(s.Config.Address)
	}
	return 0
}

// DefaultURL picks the bus from the environment.
func (s *Shell) DefaultURL() string {
	if s.Config == nil {
		return ""
	}
	if s.Config.MQTTURL != "" {
		return s.Config.MQTTURL
	}
	return s.Config.HubURL
}

// Connect connects a bus.
func (s *Shell) Connect(url string) error {
	if url == "" {
		return fmt.Errorf("bus url required")
	}
	conn, err := Dial(url, s.LocalAddress())
	if err != nil {
		return err
	}
	if s.Conn != nil {
		conn.Target = s.Conn.Target
		s.Conn.Close()
	} else if addr, err := ParseAddress(target); err == nil {
		conn.Target = addr
	}
	s.Conn = conn
	s.updatePrompt()
	return nil
}

// Disconnect disconnects current bus.
func (s *Shell) Disconnect() {
	if s.Conn != nil {
		s.Conn.Close()
		s.Conn = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// SetTarget changes the node commands are sent to.
func (s *Shell) SetTarget(addr wire.Address) {
	if s.Conn != nil {
		s.Conn.Target = addr
		s.updatePrompt()
	}
}

func (s *Shell) updatePrompt() {
	name := "all"
	if s.Conn.Target != wire.Broadcast {
		name = s.Conn.Target.String()
	}
	s.Shell.SetPrompt(fmt.Sprintf("%s [%s] > ", s.Conn.Name, name))
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if url := s.DefaultURL(); s.AutoConnect && url != "" {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", url)
		}
		if err := s.Connect(url); err != nil {
			log.Fatalf("connect %q failed: %v", url, err)
		}
	}
	defer s.Disconnect()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig()).WithAutoConnect(true).Run(flag.Args()...)
}
