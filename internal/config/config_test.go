package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validYAML = `
api:
  username: alice
  api_key: secret
  name: avatar-bridge
  share_codes: [ABC123, DEF456]
cooldown_ms: 2000
parameters:
  - name: Contact
    activation_threshold: 0.5
    debounce_threshold: 0.3
    operation: Vibrate
    duration: {min: 1, max: 1}
    intensity: {min: 10, max: 10}
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.API.Username != "alice" || cfg.API.APIKey != "secret" {
		t.Errorf("credentials not loaded: %+v", cfg.API)
	}
	if len(cfg.API.ShareCodes) != 2 {
		t.Errorf("ShareCodes: got %v", cfg.API.ShareCodes)
	}
	if cfg.API.URL != Default().API.URL {
		t.Errorf("API URL default not applied: %q", cfg.API.URL)
	}
	if cfg.MDNS.ServiceName != "avatar-bridge" {
		t.Errorf("MDNS.ServiceName should default to api.name, got %q", cfg.MDNS.ServiceName)
	}
	if cfg.OSC.PortMin != 11000 || cfg.OSC.PortMax != 33000 {
		t.Errorf("OSC port range defaults: got %d-%d", cfg.OSC.PortMin, cfg.OSC.PortMax)
	}
	if cfg.ReloadInterval != 5*time.Second {
		t.Errorf("ReloadInterval: got %v", cfg.ReloadInterval)
	}
}

func TestLoadJSON(t *testing.T) {
	content := `{
  "api": {"username": "bob", "share_codes": ["X1"]},
  "cooldown_ms": 500,
  "operations": {"Shock": 0, "Vibrate": 1},
  "parameters": [
    {"name": "Tail", "activation_threshold": 0.8, "debounce_threshold": 0.1,
     "operation": "shock", "duration": {"min": 1, "max": 3}, "intensity": {"min": 5, "max": 25}}
  ]
}`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load JSON: %v", err)
	}
	if cfg.CooldownMs != 500 {
		t.Errorf("CooldownMs: got %d", cfg.CooldownMs)
	}
	if len(cfg.Operations) != 2 {
		t.Errorf("configured operations should replace defaults, got %v", cfg.Operations)
	}
	if cfg.Operations["shock"] != 0 || cfg.Operations["vibrate"] != 1 {
		t.Errorf("operation names should be lowercased, got %v", cfg.Operations)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseRejectsUnknownField(t *testing.T) {
	_, err := Parse([]byte(validYAML + "bogus: 1\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidateAcceptsLimits(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cfg.Parameters[0].Duration = RangeConfig{Min: 0, Max: MaxDuration}
	cfg.Parameters[0].Intensity = RangeConfig{Min: 0, Max: MaxIntensity}
	if err := cfg.Validate(); err != nil {
		t.Errorf("limits should be accepted: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no parameters", func(c *Config) { c.Parameters = nil }},
		{"empty name", func(c *Config) { c.Parameters[0].Name = "" }},
		{"unknown operation", func(c *Config) { c.Parameters[0].Operation = "zap" }},
		{"inverted duration", func(c *Config) { c.Parameters[0].Duration = RangeConfig{Min: 3, Max: 1} }},
		{"no integer in intensity", func(c *Config) { c.Parameters[0].Intensity = RangeConfig{Min: 1.2, Max: 1.8} }},
		{"duration above maximum", func(c *Config) { c.Parameters[0].Duration = RangeConfig{Min: 1, Max: MaxDuration + 1} }},
		{"huge duration", func(c *Config) { c.Parameters[0].Duration = RangeConfig{Min: 1e12, Max: 1e12} }},
		{"negative duration", func(c *Config) { c.Parameters[0].Duration = RangeConfig{Min: -2, Max: 1} }},
		{"intensity above maximum", func(c *Config) { c.Parameters[0].Intensity = RangeConfig{Min: 50, Max: MaxIntensity + 1} }},
		{"NaN intensity", func(c *Config) { c.Parameters[0].Intensity = RangeConfig{Min: math.NaN(), Max: 10} }},
		{"negative cooldown", func(c *Config) { c.CooldownMs = -1 }},
		{"port out of range", func(c *Config) { c.OSC.Port = 70000 }},
		{"inverted port range", func(c *Config) { c.OSC.PortMin, c.OSC.PortMax = 30000, 20000 }},
		{"negative reload interval", func(c *Config) { c.ReloadInterval = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(validYAML))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			tt.mutate(cfg)
			err = cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestRuleset(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	rs := cfg.Ruleset()
	if rs.BaseCooldown != 2*time.Second {
		t.Errorf("BaseCooldown: got %v", rs.BaseCooldown)
	}
	if len(rs.Rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rs.Rules))
	}
	r := rs.Rules[0]
	if r.Param != "Contact" || r.ActivationThreshold != 0.5 || r.DebounceThreshold != 0.3 {
		t.Errorf("unexpected rule: %+v", r)
	}
	if r.Duration.Min != 1 || r.Intensity.Max != 10 {
		t.Errorf("ranges not copied: %+v", r)
	}
	if rs.Operations["vibrate"] != 1 {
		t.Errorf("operations: %v", rs.Operations)
	}
}

func TestOperationNamesSorted(t *testing.T) {
	cfg := Default()
	got := cfg.OperationNames()
	want := []string{"beep", "shock", "vibrate"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}
