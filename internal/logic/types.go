// Package logic contains the trigger-gating state machine for avatar parameters.
// This package has NO external dependencies (no OSC, HTTP, MQTT, OS, or time.Sleep).
// Time is injected through a Scheduler and randomness through a Sampler.
package logic

import "time"

// Range is an inclusive numeric range read from configuration.
type Range struct {
	Min float64
	Max float64
}

// Rule describes one watched parameter.
type Rule struct {
	// Param is matched as a suffix of the inbound OSC address.
	Param               string
	ActivationThreshold float64
	DebounceThreshold   float64
	// Operation is looked up case-insensitively in Ruleset.Operations.
	Operation string
	Duration  Range
	Intensity Range
}

// Ruleset is an immutable snapshot of everything the router and gate consult
// for a single update.
type Ruleset struct {
	Rules        []Rule
	BaseCooldown time.Duration
	Operations   map[string]int
}

// Update is one inbound parameter message.
type Update struct {
	Address   string
	Arguments []any
}

// ActionKind is the outcome of evaluating one rule against one value.
type ActionKind string

const (
	ActionNoop            ActionKind = "NOOP"
	ActionFire            ActionKind = "FIRE"
	ActionSuppressed      ActionKind = "SUPPRESSED"
	ActionDebounceCleared ActionKind = "DEBOUNCE_CLEARED"
)

// Fire is the actuation handed to the Dispatcher.
type Fire struct {
	Param     string
	Operation string
	Code      int
	Intensity int
	Duration  int
	// Cooldown is the delay after which the global cooldown is released.
	Cooldown time.Duration
}

// Action reports what Evaluate decided.
type Action struct {
	Kind  ActionKind
	Param string
	Value float64
	// Fire is set only when Kind is ActionFire.
	Fire *Fire
	// DebounceCleared is true whenever the debounce slot was cleared by this
	// update, including the rare case where the same update also fired.
	DebounceCleared bool
	// Reason explains SUPPRESSED and some NOOP results.
	Reason string
}

// GateState is a point-in-time copy of the gate's mutable state.
type GateState struct {
	CooldownActive bool
	// Debounce maps armed parameter names to their stored debounce threshold.
	Debounce map[string]float64
	Fires    int
}
