// Package serial opens serial ports for the console and RS485 bus links.
package serial

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"
	"go.bug.st/serial"
)

// DefaultBaud is the console baud rate used by nodes.
const DefaultBaud = 57600

// Config specifies a port.
type Config struct {
	Name string
	Baud int
	// ReadTimeout makes Read return 0 bytes when idle. Zero blocks.
	ReadTimeout time.Duration
}

// ParseConfig parses "name[@baud]".
func ParseConfig(s string) (Config, error) {
	cfg := Config{Name: s, Baud: DefaultBaud}
	if pos := strings.LastIndex(s, "@"); pos >= 0 {
		cfg.Name = s[:pos]
		if _, err := fmt.Sscanf(s[pos+1:], "%d", &cfg.Baud); err != nil || cfg.Baud <= 0 {
			return cfg, fmt.Errorf("invalid baud rate in %q", s)
		}
	}
	if cfg.Name == "" {
		return cfg, fmt.Errorf("missing port name in %q", s)
	}
	return cfg, nil
}

// Mode builds the 8N1 port mode.
func (c Config) Mode() *serial.Mode {
	baud := c.Baud
	if baud <= 0 {
		baud = DefaultBaud
	}
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// Open opens the port.
func Open(c Config) (serial.Port, error) {
	port, err := serial.Open(c.Name, c.Mode())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", c.Name, err)
	}
	if c.ReadTimeout > 0 {
		if err := port.SetReadTimeout(c.ReadTimeout); err != nil {
			port.Close()
			return nil, err
		}
	}
	glog.V(1).Infof("serial: opened %s at %d", c.Name, c.Mode().BaudRate)
	return port, nil
}

// Ports lists available ports.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}
