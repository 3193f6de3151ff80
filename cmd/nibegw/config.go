package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/grid-x/nibe"
	"gopkg.in/yaml.v3"
)

const (
	defaultClientID    = "nibegw"
	defaultTopicPrefix = "nibe"
	defaultMQTTTimeout = 5 * time.Second
)

// Config is the daemon configuration file.
type Config struct {
	Pump      PumpConfig      `yaml:"pump"`
	Transport TransportConfig `yaml:"transport"`
	Ack       AckConfig       `yaml:"ack"`
	Poll      PollConfig      `yaml:"poll"`
	Coils     []CoilConfig    `yaml:"coils"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type PumpConfig struct {
	Model string `yaml:"model"`
}

// TransportConfig selects exactly one of serial or udp.
type TransportConfig struct {
	Serial *SerialConfig `yaml:"serial"`
	UDP    *UDPConfig    `yaml:"udp"`
}

type SerialConfig struct {
	Device   string `yaml:"device"`
	BaudRate int    `yaml:"baud_rate"`
}

type UDPConfig struct {
	// Gateway host
	Address string `yaml:"address"`
	// Local listen address, ":9999" if empty
	Listen string `yaml:"listen"`
}

// AckConfig selects the acknowledged sub-addresses. MODBUS40 defaults to
// true.
type AckConfig struct {
	Modbus40 *bool `yaml:"modbus40"`
	RMU40    bool  `yaml:"rmu40"`
	SMS40    bool  `yaml:"sms40"`
}

type PollConfig struct {
	Interval     time.Duration `yaml:"interval"`
	Refresh      time.Duration `yaml:"refresh"`
	Timeout      time.Duration `yaml:"timeout"`
	EnableReads  bool          `yaml:"enable_reads"`
	EnableWrites bool          `yaml:"enable_writes"`
}

type CoilConfig struct {
	Address uint16        `yaml:"address"`
	Refresh time.Duration `yaml:"refresh"`
}

type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
	// Timeout of connect and publish
	Timeout time.Duration `yaml:"timeout"`
}

type MetricsConfig struct {
	// Listen address of the /metrics endpoint, disabled if empty
	Listen string `yaml:"listen"`
}

// Load reads, validates and normalizes the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	Normalize(&cfg)
	return &cfg, nil
}

// Validate checks configuration correctness.
// It does not mutate the configuration.
func Validate(cfg *Config) error {
	model, err := nibe.ParsePumpModel(cfg.Pump.Model)
	if err != nil {
		return err
	}

	t := cfg.Transport
	switch {
	case t.Serial != nil && t.UDP != nil:
		return errors.New("transport: serial and udp are mutually exclusive")
	case t.Serial != nil:
		if t.Serial.Device == "" {
			return errors.New("transport.serial: device is required")
		}
		if t.Serial.BaudRate < 0 {
			return fmt.Errorf("transport.serial: invalid baud_rate %d", t.Serial.BaudRate)
		}
	case t.UDP != nil:
		if t.UDP.Address == "" {
			return errors.New("transport.udp: address is required")
		}
	default:
		return errors.New("transport: serial or udp is required")
	}

	if cfg.Poll.Interval < 0 || cfg.Poll.Refresh < 0 || cfg.Poll.Timeout < 0 {
		return errors.New("poll: durations must not be negative")
	}

	seen := make(map[uint16]bool, len(cfg.Coils))
	for _, c := range cfg.Coils {
		if _, ok := nibe.Lookup(model, c.Address); !ok {
			return fmt.Errorf("coil %d: not a variable of %s", c.Address, model)
		}
		if seen[c.Address] {
			return fmt.Errorf("coil %d: listed twice", c.Address)
		}
		if c.Refresh < 0 {
			return fmt.Errorf("coil %d: refresh must not be negative", c.Address)
		}
		seen[c.Address] = true
	}

	if cfg.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt: invalid qos %d", cfg.MQTT.QoS)
	}
	return nil
}

// Normalize applies defaults. It must be called after Validate.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	if model, err := nibe.ParsePumpModel(cfg.Pump.Model); err == nil {
		cfg.Pump.Model = string(model)
	}
	if cfg.Ack.Modbus40 == nil {
		enabled := nibe.DefaultAckPolicy.Modbus40
		cfg.Ack.Modbus40 = &enabled
	}
	if cfg.Poll.Interval == 0 {
		cfg.Poll.Interval = nibe.DefaultPollInterval
	}
	if cfg.Poll.Refresh == 0 {
		cfg.Poll.Refresh = nibe.DefaultRefresh
	}
	if cfg.Poll.Timeout == 0 {
		cfg.Poll.Timeout = nibe.DefaultRequestTimeout
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = defaultClientID
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = defaultTopicPrefix
	}
	if cfg.MQTT.Timeout == 0 {
		cfg.MQTT.Timeout = defaultMQTTTimeout
	}
}

// AckPolicy returns the configured acknowledgement policy.
func (cfg *Config) AckPolicy() nibe.AckPolicy {
	policy := nibe.AckPolicy{RMU40: cfg.Ack.RMU40, SMS40: cfg.Ack.SMS40}
	if cfg.Ack.Modbus40 != nil {
		policy.Modbus40 = *cfg.Ack.Modbus40
	}
	return policy
}

// PollerConfig returns the poller settings.
func (cfg *Config) PollerConfig() nibe.PollerConfig {
	return nibe.PollerConfig{
		Model:        nibe.PumpModel(cfg.Pump.Model),
		Interval:     cfg.Poll.Interval,
		Refresh:      cfg.Poll.Refresh,
		Timeout:      cfg.Poll.Timeout,
		EnableReads:  cfg.Poll.EnableReads,
		EnableWrites: cfg.Poll.EnableWrites,
	}
}

// Connector creates an unconnected connector for the configured transport.
func (cfg *Config) Connector(logger *debugAdapter) *nibe.Connector {
	if u := cfg.Transport.UDP; u != nil {
		t := nibe.NewUDPTransport(u.Address)
		if u.Listen != "" {
			t.ListenAddress = u.Listen
		}
		if logger != nil {
			t.Logger = logger
		}
		c := t.Connector()
		if logger != nil {
			c.Logger = logger
		}
		return c
	}

	s := cfg.Transport.Serial
	t := nibe.NewSerialTransport(s.Device)
	if s.BaudRate != 0 {
		t.BaudRate = s.BaudRate
	}
	if logger != nil {
		t.Logger = logger
	}
	c := nibe.NewConnector(t.Open)
	c.Ack = cfg.AckPolicy()
	if logger != nil {
		c.Logger = logger
	}
	return c
}
