package logic

import (
	"strings"
	"sync"
	"time"
)

// Scheduler runs f once after d has elapsed. Scheduled calls are never
// cancelled.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

// Dispatcher performs an actuation. Dispatch must return without waiting for
// network I/O; the gate never inspects its outcome.
type Dispatcher interface {
	Dispatch(fire Fire)
}

// Gate decides whether a parameter value fires an actuation.
// A single global cooldown blocks every parameter after any fire, and a
// per-parameter debounce blocks a parameter until its value falls back to
// the stored debounce threshold.
type Gate struct {
	mu             sync.Mutex
	cooldownActive bool
	debounce       map[string]float64
	fires          int

	sched   Scheduler
	sampler Sampler
	disp    Dispatcher
}

// NewGate creates a gate with no cooldown and no armed debounces.
func NewGate(sched Scheduler, sampler Sampler, disp Dispatcher) *Gate {
	return &Gate{
		debounce: make(map[string]float64),
		sched:    sched,
		sampler:  sampler,
		disp:     disp,
	}
}

// Evaluate applies one value for rule and returns the resulting action.
// The fire check runs first, then the debounce-clear check; both are always
// attempted.
func (g *Gate) Evaluate(rs Ruleset, rule Rule, value float64) Action {
	action := Action{Kind: ActionNoop, Param: rule.Param, Value: value}

	g.mu.Lock()

	_, armed := g.debounce[rule.Param]
	if value >= rule.ActivationThreshold && !g.cooldownActive && !armed {
		if fire, ok := g.fireLocked(rs, rule); ok {
			action.Kind = ActionFire
			action.Fire = &fire
		} else {
			action.Reason = "unknown operation"
		}
	} else if value >= rule.ActivationThreshold {
		action.Kind = ActionSuppressed
		if g.cooldownActive {
			action.Reason = "cooldown"
		} else {
			action.Reason = "debounce"
		}
	}

	if stored, ok := g.debounce[rule.Param]; ok && value <= stored {
		delete(g.debounce, rule.Param)
		action.DebounceCleared = true
		if action.Kind != ActionFire {
			action.Kind = ActionDebounceCleared
			action.Reason = ""
		}
	}

	g.mu.Unlock()

	if action.Fire != nil && g.disp != nil {
		g.disp.Dispatch(*action.Fire)
	}
	return action
}

// fireLocked commits cooldown and debounce state and schedules the release.
// Returns false without touching state if the operation cannot be resolved.
func (g *Gate) fireLocked(rs Ruleset, rule Rule) (Fire, bool) {
	code, ok := rs.Operations[strings.ToLower(rule.Operation)]
	if !ok {
		return Fire{}, false
	}

	g.cooldownActive = true
	g.debounce[rule.Param] = rule.DebounceThreshold
	g.fires++

	duration := g.sampler.Sample(rule.Duration.Min, rule.Duration.Max)
	intensity := g.sampler.Sample(rule.Intensity.Min, rule.Intensity.Max)
	cooldown := rs.BaseCooldown + time.Duration(duration)*time.Second

	g.sched.AfterFunc(cooldown, g.releaseCooldown)

	return Fire{
		Param:     rule.Param,
		Operation: rule.Operation,
		Code:      code,
		Intensity: intensity,
		Duration:  duration,
		Cooldown:  cooldown,
	}, true
}

func (g *Gate) releaseCooldown() {
	g.mu.Lock()
	g.cooldownActive = false
	g.mu.Unlock()
}

// State returns a copy of the gate's current state.
func (g *Gate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()

	debounce := make(map[string]float64, len(g.debounce))
	for k, v := range g.debounce {
		debounce[k] = v
	}
	return GateState{
		CooldownActive: g.cooldownActive,
		Debounce:       debounce,
		Fires:          g.fires,
	}
}
