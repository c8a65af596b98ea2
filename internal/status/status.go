// Package status provides a thread-safe status tracker for the param-actuator daemon.
// It is read by the HTTP status handlers.
package status

import (
	"sort"
	"sync"
	"time"

	"github.com/sweeney/param-actuator/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	Name       string
	OSCPort    int
	CooldownMs int
	Params     []string
	Devices    int
	Broker     string
}

// Counts tallies routed actions by kind.
type Counts struct {
	Fires           int
	Suppressed      int
	DebounceCleared int
	Noop            int
	Dropped         int // updates without a numeric value
}

// DispatchStats mirrors the dispatcher's counters. This is a local copy to
// avoid importing internal/actuator from status.
type DispatchStats struct {
	Sent    int64
	Failed  int64
	Skipped int64
}

// OSCStats counts listener traffic.
type OSCStats struct {
	Received  int64
	Malformed int64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Counts         Counts
	LastFire       *logic.Fire
	LastFireAt     time.Time
	CooldownActive bool
	Debounced      []string
	Dispatch       DispatchStats
	OSC            OSCStats
	MQTTConnected  bool
	Reloads        int64
	StartTime      time.Time
	Now            time.Time
	Config         Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Record tallies the actions produced by one update.
func (t *Tracker) Record(actions []logic.Action, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, a := range actions {
		switch a.Kind {
		case logic.ActionFire:
			t.snap.Counts.Fires++
			f := *a.Fire
			t.snap.LastFire = &f
			t.snap.LastFireAt = now
		case logic.ActionSuppressed:
			t.snap.Counts.Suppressed++
		case logic.ActionDebounceCleared:
			t.snap.Counts.DebounceCleared++
		default:
			t.snap.Counts.Noop++
		}
		if a.Kind == logic.ActionFire && a.DebounceCleared {
			t.snap.Counts.DebounceCleared++
		}
	}
}

// RecordDropped counts an update that carried no numeric value.
func (t *Tracker) RecordDropped() {
	t.mu.Lock()
	t.snap.Counts.Dropped++
	t.mu.Unlock()
}

// SetGate copies the cooldown flag and the debounced parameter names.
func (t *Tracker) SetGate(st logic.GateState) {
	names := make([]string, 0, len(st.Debounce))
	for name := range st.Debounce {
		names = append(names, name)
	}
	sort.Strings(names)

	t.mu.Lock()
	t.snap.CooldownActive = st.CooldownActive
	t.snap.Debounced = names
	t.mu.Unlock()
}

// SetDispatch sets the dispatcher counters.
func (t *Tracker) SetDispatch(s DispatchStats) {
	t.mu.Lock()
	t.snap.Dispatch = s
	t.mu.Unlock()
}

// SetOSC sets the listener counters.
func (t *Tracker) SetOSC(s OSCStats) {
	t.mu.Lock()
	t.snap.OSC = s
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetReloads sets the number of successful config reloads.
func (t *Tracker) SetReloads(n int64) {
	t.mu.Lock()
	t.snap.Reloads = n
	t.mu.Unlock()
}

// SetConfig replaces the displayed configuration after a reload.
func (t *Tracker) SetConfig(cfg Config) {
	t.mu.Lock()
	t.snap.Config = cfg
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.LastFire != nil {
		f := *s.LastFire
		s.LastFire = &f
	}
	s.Debounced = append([]string(nil), s.Debounced...)
	s.Config.Params = append([]string(nil), s.Config.Params...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
