// Package mqtt mirrors trigger and lifecycle events to an MQTT broker, with
// abstraction for testing.
package mqtt

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/sweeney/param-actuator/internal/logic"
)

// ErrNotConnected is returned when a message could only be buffered.
var ErrNotConnected = errors.New("mqtt: client not connected")

// Topics builds topic names under a common prefix.
type Topics struct {
	Prefix string
}

// Triggers is the topic for fired actuations.
func (t Topics) Triggers() string { return t.Prefix + "/triggers" }

// System is the topic for lifecycle events.
func (t Topics) System() string { return t.Prefix + "/system" }

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishTrigger sends a fired actuation.
	// Returns error if publishing fails (should not crash the process).
	PublishTrigger(event TriggerEvent) error

	// PublishSystem sends a system lifecycle event.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// TriggerEvent is one fire mirrored to the broker.
type TriggerEvent struct {
	Timestamp time.Time
	Fire      logic.Fire
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown).
type SystemEvent struct {
	Timestamp time.Time
	Event     string // e.g., "STARTUP", "SHUTDOWN", "OFFLINE"
	Reason    string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	Port      int    // OSC port, startup only
	Retained  bool   // Whether the message should be retained by the broker
}

// Payload represents the trigger message payload structure.
type Payload struct {
	Trigger TriggerPayload `json:"trigger"`
}

// TriggerPayload contains the trigger details.
type TriggerPayload struct {
	Timestamp  string `json:"timestamp"`
	Param      string `json:"param"`
	Operation  string `json:"operation"`
	Code       int    `json:"code"`
	Intensity  int    `json:"intensity"`
	Duration   int    `json:"duration"`
	CooldownMs int64  `json:"cooldown_ms"`
}

// FormatPayload creates the JSON payload for a trigger event.
func FormatPayload(event TriggerEvent) ([]byte, error) {
	payload := Payload{
		Trigger: TriggerPayload{
			Timestamp:  event.Timestamp.UTC().Format(time.RFC3339),
			Param:      event.Fire.Param,
			Operation:  event.Fire.Operation,
			Code:       event.Fire.Code,
			Intensity:  event.Fire.Intensity,
			Duration:   event.Fire.Duration,
			CooldownMs: event.Fire.Cooldown.Milliseconds(),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
	Port      int    `json:"osc_port,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
			Port:      event.Port,
		},
	}
	return json.Marshal(payload)
}

// NopPublisher discards everything. Used when no broker is configured.
type NopPublisher struct{}

// PublishTrigger does nothing.
func (NopPublisher) PublishTrigger(TriggerEvent) error { return nil }

// PublishSystem does nothing.
func (NopPublisher) PublishSystem(SystemEvent) error { return nil }

// Close does nothing.
func (NopPublisher) Close() error { return nil }

// IsConnected always reports false.
func (NopPublisher) IsConnected() bool { return false }
