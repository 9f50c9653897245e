// Package env provides the common command line and environment setup of
// hmtl commands.
package env

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/robotalks/hmtl.go/pkg/config"
)

// Config provides common options to load a node configuration.
type Config struct {
	// ConfigFile is the YAML node configuration.
	ConfigFile string
	// Address overrides the configured address when not negative.
	Address int
	// DeviceID overrides the configured device id when not negative.
	DeviceID int
	// Console overrides the configured console.
	Console string

	// MQTTURL adds an MQTT bus, e.g. mqtt://host:port/topic-prefix
	MQTTURL string
	// HubURL adds a websocket bus, e.g. ws://host:port/bus
	HubURL string
}

var defaultConfig = Config{
	ConfigFile: "hmtl.yaml",
	Address:    -1,
	DeviceID:   -1,
}

func init() {
	loadEnv(&defaultConfig, os.Getenv)
}

func loadEnv(c *Config, getenv func(string) string) {
	if val := getenv("HMTL_CONFIG"); val != "" {
		c.ConfigFile = val
	}
	if val := getenv("HMTL_ADDRESS"); val != "" {
		if v, err := strconv.ParseUint(val, 0, 16); err == nil {
			c.Address = int(v)
		}
	}
	if val := getenv("HMTL_CONSOLE"); val != "" {
		c.Console = val
	}
	if val := getenv("HMTL_MQTT_URL"); val != "" {
		c.MQTTURL = val
	}
	if val := getenv("HMTL_HUB_URL"); val != "" {
		c.HubURL = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.ConfigFile, "config", defaultConfig.ConfigFile, "Node configuration file")
	flag.IntVar(&defaultConfig.Address, "addr", defaultConfig.Address, "Node address, negative keeps the configured one")
	flag.IntVar(&defaultConfig.DeviceID, "device-id", defaultConfig.DeviceID, "Device ID, negative keeps the configured one")
	flag.StringVar(&defaultConfig.Console, "console", defaultConfig.Console, "Console: - for stdio or serial port name[@baud]")
	flag.StringVar(&defaultConfig.MQTTURL, "mqtt", defaultConfig.MQTTURL, "MQTT broker URL")
	flag.StringVar(&defaultConfig.HubURL, "hub", defaultConfig.HubURL, "Websocket hub URL")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Apply overrides cfg with the command line options. A node without a
// device id gets one derived from the machine id.
func (c *Config) Apply(cfg *config.Config) {
	if c.Address >= 0 {
		cfg.Address = uint16(c.Address)
	}
	if c.DeviceID >= 0 {
		cfg.DeviceID = uint16(c.DeviceID)
	}
	if cfg.DeviceID == 0 {
		cfg.DeviceID = DeviceID()
	}
	if c.Console != "" {
		cfg.Console = c.Console
	}
	if c.MQTTURL != "" && !hasBus(cfg, config.BusMQTT, c.MQTTURL) {
		cfg.Buses = append(cfg.Buses, config.BusConfig{Type: config.BusMQTT, URL: c.MQTTURL})
	}
	if c.HubURL != "" && !hasBus(cfg, config.BusWebSocket, c.HubURL) {
		cfg.Buses = append(cfg.Buses, config.BusConfig{Type: config.BusWebSocket, URL: c.HubURL})
	}
}

func hasBus(cfg *config.Config, typ, url string) bool {
	for _, b := range cfg.Buses {
		if b.Type == typ && b.URL == url {
			return true
		}
	}
	return false
}

// Load loads the node configuration and applies the overrides.
func (c *Config) Load() (*config.Config, error) {
	cfg, err := config.Load(c.ConfigFile)
	if err != nil {
		return nil, err
	}
	c.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", c.ConfigFile, err)
	}
	return cfg, nil
}

// MustLoad loads the node configuration and fails on error.
func (c *Config) MustLoad() *config.Config {
	cfg, err := c.Load()
	if err != nil {
		log.Fatalln(err)
	}
	return cfg
}
