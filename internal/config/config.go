// Package config loads and validates the param-actuator YAML configuration.
//
// YAML is a superset of JSON, so a JSON configuration file is accepted too.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/param-actuator/internal/logic"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Upper bounds accepted by the actuation API. Duration is in seconds.
const (
	MaxDuration  = 15
	MaxIntensity = 100
)

// Config is the root configuration structure.
type Config struct {
	API            APIConfig         `yaml:"api"`
	CooldownMs     int               `yaml:"cooldown_ms"`
	Operations     map[string]int    `yaml:"operations"`
	Parameters     []ParameterConfig `yaml:"parameters"`
	OSC            OSCConfig         `yaml:"osc"`
	HTTP           HTTPConfig        `yaml:"http"`
	MDNS           MDNSConfig        `yaml:"mdns"`
	MQTT           MQTTConfig        `yaml:"mqtt"`
	Interlock      InterlockConfig   `yaml:"interlock"`
	Logging        LoggingConfig     `yaml:"logging"`
	ReloadInterval time.Duration     `yaml:"reload_interval"`
}

// APIConfig contains the actuation API target and credentials.
type APIConfig struct {
	URL        string        `yaml:"url"`
	Username   string        `yaml:"username"`
	APIKey     string        `yaml:"api_key"`
	Name       string        `yaml:"name"`
	ShareCodes []string      `yaml:"share_codes"`
	Timeout    time.Duration `yaml:"timeout"`
}

// ParameterConfig is one watched parameter rule.
type ParameterConfig struct {
	Name                string      `yaml:"name"`
	ActivationThreshold float64     `yaml:"activation_threshold"`
	DebounceThreshold   float64     `yaml:"debounce_threshold"`
	Operation           string      `yaml:"operation"`
	Duration            RangeConfig `yaml:"duration"`
	Intensity           RangeConfig `yaml:"intensity"`
}

// RangeConfig is an inclusive min/max pair.
type RangeConfig struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// OSCConfig contains the inbound OSC listener settings.
type OSCConfig struct {
	Host string `yaml:"host"`
	// Port 0 selects a free port, searching upward from a random start in
	// [PortMin, PortMax].
	Port    int    `yaml:"port"`
	PortMin int    `yaml:"port_min"`
	PortMax int    `yaml:"port_max"`
	Address string `yaml:"address"`
}

// HTTPConfig controls the OSCQuery and status HTTP server.
type HTTPConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MDNSConfig controls service advertisement.
type MDNSConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// MQTTConfig contains the optional event mirror settings.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	BufferSize  int    `yaml:"buffer_size"`
}

// InterlockConfig describes an optional hardware safety switch.
type InterlockConfig struct {
	Chip      string `yaml:"chip"`
	Pin       int    `yaml:"pin"`
	ActiveLow bool   `yaml:"active_low"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns a Config populated with defaults.
func Default() Config {
	return Config{
		API: APIConfig{
			URL:     "https://do.pishock.com/api/apioperate",
			Name:    "param-actuator",
			Timeout: 10 * time.Second,
		},
		CooldownMs: 2000,
		Operations: defaultOperations(),
		OSC: OSCConfig{
			Host:    "0.0.0.0",
			PortMin: 11000,
			PortMax: 33000,
			Address: "/avatar",
		},
		HTTP: HTTPConfig{Enabled: true},
		MDNS: MDNSConfig{Enabled: true},
		MQTT: MQTTConfig{
			ClientID:    "param-actuator",
			TopicPrefix: "param-actuator",
			BufferSize:  100,
		},
		Interlock: InterlockConfig{
			Chip: "gpiochip0",
			Pin:  -1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		ReloadInterval: 5 * time.Second,
	}
}

func defaultOperations() map[string]int {
	return map[string]int{
		"shock":   0,
		"vibrate": 1,
		"beep":    2,
	}
}

// Load reads, parses and validates the file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(b)
}

// Parse decodes and validates a YAML (or JSON) document.
// Unknown fields are rejected.
func Parse(b []byte) (*Config, error) {
	cfg := Default()
	// A configured operation table replaces the defaults instead of merging.
	cfg.Operations = nil

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if len(cfg.Operations) == 0 {
		cfg.Operations = defaultOperations()
	}
	// Operation names are matched case-insensitively.
	ops := make(map[string]int, len(cfg.Operations))
	for name, code := range cfg.Operations {
		ops[strings.ToLower(name)] = code
	}
	cfg.Operations = ops

	if cfg.MDNS.ServiceName == "" {
		cfg.MDNS.ServiceName = cfg.API.Name
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the gate cannot work with.
func (c *Config) Validate() error {
	if len(c.Parameters) == 0 {
		return fmt.Errorf("%w: no parameters configured", ErrInvalid)
	}
	if c.CooldownMs < 0 {
		return fmt.Errorf("%w: cooldown_ms must not be negative", ErrInvalid)
	}

	for i, p := range c.Parameters {
		if p.Name == "" {
			return fmt.Errorf("%w: parameters[%d]: name is empty", ErrInvalid, i)
		}
		if _, ok := c.Operations[strings.ToLower(p.Operation)]; !ok {
			return fmt.Errorf("%w: parameters[%d] (%s): unknown operation %q", ErrInvalid, i, p.Name, p.Operation)
		}
		if err := p.Duration.validate(MaxDuration); err != nil {
			return fmt.Errorf("%w: parameters[%d] (%s): duration: %v", ErrInvalid, i, p.Name, err)
		}
		if err := p.Intensity.validate(MaxIntensity); err != nil {
			return fmt.Errorf("%w: parameters[%d] (%s): intensity: %v", ErrInvalid, i, p.Name, err)
		}
	}

	if c.OSC.Port < 0 || c.OSC.Port > 65535 {
		return fmt.Errorf("%w: osc.port %d out of range", ErrInvalid, c.OSC.Port)
	}
	if c.OSC.Port == 0 && (c.OSC.PortMin <= 0 || c.OSC.PortMax > 65535 || c.OSC.PortMin > c.OSC.PortMax) {
		return fmt.Errorf("%w: osc.port_min/port_max must satisfy 0 < min <= max <= 65535", ErrInvalid)
	}
	if c.ReloadInterval < 0 {
		return fmt.Errorf("%w: reload_interval must not be negative", ErrInvalid)
	}
	return nil
}

func (r RangeConfig) validate(limit float64) error {
	if math.IsNaN(r.Min) || math.IsNaN(r.Max) || r.Min < 0 || r.Max > limit {
		return fmt.Errorf("[%v, %v] outside [0, %v]", r.Min, r.Max, limit)
	}
	if math.Ceil(r.Min) > math.Floor(r.Max) {
		return fmt.Errorf("no integer in [%v, %v]", r.Min, r.Max)
	}
	return nil
}

// Ruleset converts the configuration into the gate's per-event snapshot.
func (c *Config) Ruleset() logic.Ruleset {
	rules := make([]logic.Rule, len(c.Parameters))
	for i, p := range c.Parameters {
		rules[i] = logic.Rule{
			Param:               p.Name,
			ActivationThreshold: p.ActivationThreshold,
			DebounceThreshold:   p.DebounceThreshold,
			Operation:           p.Operation,
			Duration:            logic.Range{Min: p.Duration.Min, Max: p.Duration.Max},
			Intensity:           logic.Range{Min: p.Intensity.Min, Max: p.Intensity.Max},
		}
	}
	return logic.Ruleset{
		Rules:        rules,
		BaseCooldown: time.Duration(c.CooldownMs) * time.Millisecond,
		Operations:   c.Operations,
	}
}

// OperationNames returns the configured operation names, sorted.
func (c *Config) OperationNames() []string {
	names := make([]string, 0, len(c.Operations))
	for name := range c.Operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
