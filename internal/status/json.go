package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Name          string       `json:"name"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Gate          GateJSON     `json:"gate"`
	Counts        CountsJSON   `json:"counts"`
	LastFire      *FireJSON    `json:"last_fire,omitempty"`
	Dispatch      DispatchJSON `json:"dispatch"`
	OSC           OSCJSON      `json:"osc"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Config        ConfigJSON   `json:"config"`
}

// GateJSON reports the gate's blocking state.
type GateJSON struct {
	CooldownActive bool     `json:"cooldown_active"`
	Debounced      []string `json:"debounced"`
}

// CountsJSON is the JSON representation of action counts.
type CountsJSON struct {
	Fires           int `json:"fires"`
	Suppressed      int `json:"suppressed"`
	DebounceCleared int `json:"debounce_cleared"`
	Noop            int `json:"noop"`
	Dropped         int `json:"dropped"`
}

// FireJSON describes the most recent fire.
type FireJSON struct {
	Timestamp  string `json:"timestamp"`
	Param      string `json:"param"`
	Operation  string `json:"operation"`
	Intensity  int    `json:"intensity"`
	Duration   int    `json:"duration"`
	CooldownMs int64  `json:"cooldown_ms"`
}

// DispatchJSON reports outbound request counters.
type DispatchJSON struct {
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
	Skipped int64 `json:"skipped"`
}

// OSCJSON reports listener counters.
type OSCJSON struct {
	Port      int   `json:"port"`
	Received  int64 `json:"received"`
	Malformed int64 `json:"malformed"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	CooldownMs int      `json:"cooldown_ms"`
	Params     []string `json:"params"`
	Devices    int      `json:"devices"`
	Reloads    int64    `json:"reloads"`
}

func buildInner(snap Snapshot) StatusInner {
	debounced := snap.Debounced
	if debounced == nil {
		debounced = []string{}
	}
	params := snap.Config.Params
	if params == nil {
		params = []string{}
	}

	inner := StatusInner{
		Name:          snap.Config.Name,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Gate:          GateJSON{CooldownActive: snap.CooldownActive, Debounced: debounced},
		Counts: CountsJSON{
			Fires:           snap.Counts.Fires,
			Suppressed:      snap.Counts.Suppressed,
			DebounceCleared: snap.Counts.DebounceCleared,
			Noop:            snap.Counts.Noop,
			Dropped:         snap.Counts.Dropped,
		},
		Dispatch: DispatchJSON{
			Sent:    snap.Dispatch.Sent,
			Failed:  snap.Dispatch.Failed,
			Skipped: snap.Dispatch.Skipped,
		},
		OSC: OSCJSON{
			Port:      snap.Config.OSCPort,
			Received:  snap.OSC.Received,
			Malformed: snap.OSC.Malformed,
		},
		MQTT: MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			CooldownMs: snap.Config.CooldownMs,
			Params:     params,
			Devices:    snap.Config.Devices,
			Reloads:    snap.Reloads,
		},
	}

	if snap.LastFire != nil {
		inner.LastFire = &FireJSON{
			Timestamp:  snap.LastFireAt.UTC().Format(time.RFC3339),
			Param:      snap.LastFire.Param,
			Operation:  snap.LastFire.Operation,
			Intensity:  snap.LastFire.Intensity,
			Duration:   snap.LastFire.Duration,
			CooldownMs: snap.LastFire.Cooldown.Milliseconds(),
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}
