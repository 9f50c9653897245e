package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/robotalks/hmtl.go/pkg/output"
	"github.com/robotalks/hmtl.go/pkg/program"
	"github.com/robotalks/hmtl.go/pkg/wire"
)

// Bus types.
const (
	BusMemory    = "memory"
	BusStream    = "stream"
	BusMQTT      = "mqtt"
	BusWebSocket = "websocket"
)

// MaxOutputs is the number of addressable output slots.
const MaxOutputs = int(wire.AllOutputs) - 1

// Config represents the node configuration.
type Config struct {
	Address         uint16          `yaml:"address"`
	DeviceID        uint16          `yaml:"device_id"`
	HardwareVersion byte            `yaml:"hardware_version"`
	Baud            uint32          `yaml:"baud"`
	Flags           byte            `yaml:"flags"`
	ObjectType      uint16          `yaml:"object_type"`
	Console         string          `yaml:"console"`
	Tick            time.Duration   `yaml:"tick"`
	Buses           []BusConfig     `yaml:"buses"`
	Outputs         []OutputConfig  `yaml:"outputs"`
	Startup         []CommandConfig `yaml:"startup"`
}

// BusConfig configures a bus socket.
type BusConfig struct {
	Type string `yaml:"type"`
	// Port is a serial port "name[@baud]" for stream buses.
	Port string `yaml:"port,omitempty"`
	// URL is the broker or hub url for mqtt and websocket buses.
	URL      string `yaml:"url,omitempty"`
	Capacity int    `yaml:"capacity,omitempty"`
}

// OutputConfig configures an output slot.
type OutputConfig struct {
	Type      string `yaml:"type"`
	Pins      []int  `yaml:"pins,omitempty"`
	NumPixels int    `yaml:"num_pixels,omitempty"`
	Baud      uint32 `yaml:"baud,omitempty"`
}

// CommandConfig is an output command processed at startup as if it was
// received on the console.
type CommandConfig struct {
	// Address defaults to the node address.
	Address *uint16 `yaml:"address,omitempty"`
	// Output is a slot number or "all".
	Output  string   `yaml:"output"`
	Value   *uint16  `yaml:"value,omitempty"`
	RGB     string   `yaml:"rgb,omitempty"`
	Program string   `yaml:"program,omitempty"`
	Args    []string `yaml:"args,omitempty"`
}

// Default returns the configuration of a node with a single RGB light.
func Default() *Config {
	return &Config{
		Address: 1,
		Baud:    57600,
		Console: "-",
		Tick:    10 * time.Millisecond,
		Outputs: []OutputConfig{
			{Type: "rgb", Pins: []int{9, 10, 11}},
		},
	}
}

// Load loads configuration from a YAML file. A missing file gives the
// defaults.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (c *Config) ensureDefaults() {
	def := Default()

	if c.Baud == 0 {
		c.Baud = def.Baud
	}
	if c.Tick == 0 {
		c.Tick = def.Tick
	}
}

// Validate checks the configuration is usable by a node.
func (c *Config) Validate() error {
	var errs []error
	if wire.Address(c.Address) == wire.Broadcast {
		errs = append(errs, fmt.Errorf("address %#x is the broadcast address", c.Address))
	}
	if len(c.Outputs) > MaxOutputs {
		errs = append(errs, fmt.Errorf("%d outputs exceeds %d", len(c.Outputs), MaxOutputs))
	}
	for i, o := range c.Outputs {
		if _, err := o.Build(byte(i)); err != nil {
			errs = append(errs, fmt.Errorf("output %d: %w", i, err))
		}
	}
	for i, b := range c.Buses {
		if err := b.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("bus %d: %w", i, err))
		}
	}
	for i, cmd := range c.Startup {
		if _, err := cmd.Frame(wire.Address(c.Address)); err != nil {
			errs = append(errs, fmt.Errorf("startup %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// BuildOutputs creates the output set in slot order.
func (c *Config) BuildOutputs() (output.Set, error) {
	set := make(output.Set, len(c.Outputs))
	for i, o := range c.Outputs {
		out, err := o.Build(byte(i))
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		set[i] = out
	}
	return set, nil
}

// StartupFrames encodes the startup commands.
func (c *Config) StartupFrames() ([][]byte, error) {
	frames := make([][]byte, 0, len(c.Startup))
	for i, cmd := range c.Startup {
		f, err := cmd.Frame(wire.Address(c.Address))
		if err != nil {
			return nil, fmt.Errorf("startup %d: %w", i, err)
		}
		frames = append(frames, f)
	}
	return frames, nil
}

// Validate checks the bus type and its required fields.
func (b BusConfig) Validate() error {
	switch b.Type {
	case BusMemory:
	case BusStream:
		if b.Port == "" {
			return fmt.Errorf("%s bus requires port", b.Type)
		}
	case BusMQTT, BusWebSocket:
		if b.URL == "" {
			return fmt.Errorf("%s bus requires url", b.Type)
		}
	default:
		return fmt.Errorf("unknown bus type %q", b.Type)
	}
	if b.Capacity < 0 || b.Capacity > wire.MaxFrameLen {
		return fmt.Errorf("capacity %d out of range", b.Capacity)
	}
	return nil
}

func (o OutputConfig) pin(i int) byte {
	if i < len(o.Pins) {
		return byte(o.Pins[i])
	}
	return 0
}

// Build creates the output object for slot.
func (o OutputConfig) Build(slot byte) (output.Output, error) {
	typ, ok := wire.OutputTypeByName(o.Type)
	if !ok {
		return nil, fmt.Errorf("unknown output type %q", o.Type)
	}
	for _, p := range o.Pins {
		if p < 0 || p > 255 {
			return nil, fmt.Errorf("invalid pin %d", p)
		}
	}
	switch typ {
	case wire.OutputValue:
		if len(o.Pins) != 1 {
			return nil, fmt.Errorf("value output requires 1 pin")
		}
		return output.NewValue(slot, o.pin(0)), nil
	case wire.OutputRGB:
		if len(o.Pins) != 3 {
			return nil, fmt.Errorf("rgb output requires 3 pins")
		}
		return output.NewLight(slot, [3]byte{o.pin(0), o.pin(1), o.pin(2)}), nil
	case wire.OutputPixels:
		if o.NumPixels <= 0 {
			return nil, fmt.Errorf("pixels output requires num_pixels")
		}
		return output.NewPixels(slot, o.NumPixels), nil
	case wire.OutputMPR121:
		return &output.Touch{Slot: output.Slot{Num: slot}, IRQPin: o.pin(0)}, nil
	case wire.OutputRS485:
		return &output.RS485{Slot: output.Slot{Num: slot}, RecvPin: o.pin(0), XmitPin: o.pin(1), EnablePin: o.pin(2)}, nil
	case wire.OutputXBee:
		return &output.XBee{Slot: output.Slot{Num: slot}, Baud: o.Baud}, nil
	}
	return nil, fmt.Errorf("output type %s can't be configured", typ)
}

// OutputIndex parses a slot number or "all".
func OutputIndex(s string) (byte, error) {
	if s == "all" || s == "" {
		return wire.AllOutputs, nil
	}
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil || v >= uint64(wire.AllOutputs) {
		return 0, fmt.Errorf("invalid output %q", s)
	}
	return byte(v), nil
}

// Body builds the output message of the command.
func (c CommandConfig) Body() (wire.OutputMsg, error) {
	out, err := OutputIndex(c.Output)
	if err != nil {
		return nil, err
	}
	set := 0
	var msg wire.OutputMsg
	if c.Value != nil {
		set++
		msg = &wire.ValueMsg{Output: out, Value: *c.Value}
	}
	if c.RGB != "" {
		set++
		color, err := output.ParseHex(c.RGB)
		if err != nil {
			return nil, err
		}
		msg = &wire.RGBMsg{Output: out, Color: color}
	}
	if c.Program != "" {
		set++
		p, err := program.ParseProgram(strings.ToLower(c.Program), c.Args)
		if err != nil {
			return nil, err
		}
		msg = wire.NewProgramMsg(out, p)
	}
	if set != 1 {
		return nil, fmt.Errorf("exactly one of value, rgb and program is required")
	}
	return msg, nil
}

// Frame encodes the command addressed to Address or addr.
func (c CommandConfig) Frame(addr wire.Address) ([]byte, error) {
	msg, err := c.Body()
	if err != nil {
		return nil, err
	}
	if c.Address != nil {
		addr = wire.Address(*c.Address)
	}
	return wire.Marshal(addr, 0, msg), nil
}
