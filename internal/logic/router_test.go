package logic

import (
	"testing"
	"time"
)

func TestRouteSuffixMatch(t *testing.T) {
	g, _, disp := setupGate(t)
	r := NewRouter(g)
	rs := testRuleset(contactRule())

	actions := r.Route(rs, Update{Address: "/avatar/parameters/Contact", Arguments: []any{float32(0.9)}})
	if len(actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(actions))
	}
	if actions[0].Kind != ActionFire {
		t.Errorf("expected FIRE, got %s", actions[0].Kind)
	}
	if disp.count() != 1 {
		t.Errorf("expected 1 dispatch, got %d", disp.count())
	}
}

func TestRouteNonMatchingDropped(t *testing.T) {
	g, _, disp := setupGate(t)
	r := NewRouter(g)
	rs := testRuleset(contactRule())

	actions := r.Route(rs, Update{Address: "/avatar/parameters/ContactX", Arguments: []any{float32(1)}})
	if len(actions) != 0 {
		t.Errorf("expected no actions, got %d", len(actions))
	}
	if disp.count() != 0 {
		t.Error("no dispatch expected")
	}
}

func TestRouteMalformedDropped(t *testing.T) {
	tests := []struct {
		name string
		args []any
	}{
		{"no arguments", nil},
		{"empty arguments", []any{}},
		{"string value", []any{"0.9"}},
		{"nil value", []any{nil}},
		{"blob value", []any{[]byte{1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, clk, disp := setupGate(t)
			r := NewRouter(g)
			rs := testRuleset(contactRule())

			actions := r.Route(rs, Update{Address: "/avatar/parameters/Contact", Arguments: tt.args})
			if actions != nil {
				t.Errorf("expected nil actions, got %v", actions)
			}
			st := g.State()
			if st.CooldownActive || len(st.Debounce) != 0 {
				t.Errorf("gate state changed: %+v", st)
			}
			if disp.count() != 0 || clk.Pending() != 0 {
				t.Error("no dispatch or timer expected")
			}
		})
	}
}

func TestRouteTwoRulesSameSuffixIndependent(t *testing.T) {
	g, clk, disp := setupGate(t)
	r := NewRouter(g)

	head := contactRule()
	head.Param = "Head_Contact"
	contact := contactRule()
	rs := testRuleset(head, contact)
	rs.BaseCooldown = 0

	// Both rules match; the first fires, the second is blocked by the
	// global cooldown that the first just armed.
	actions := r.Route(rs, Update{Address: "/avatar/parameters/Head_Contact", Arguments: []any{float32(1)}})
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	if actions[0].Kind != ActionFire || actions[0].Param != "Head_Contact" {
		t.Errorf("action 0: got %s/%s", actions[0].Kind, actions[0].Param)
	}
	if actions[1].Kind != ActionSuppressed || actions[1].Param != "Contact" {
		t.Errorf("action 1: got %s/%s", actions[1].Kind, actions[1].Param)
	}

	clk.Advance(time.Second)

	// Cooldown over; Head_Contact is still debounced, Contact is free.
	actions = r.Route(rs, Update{Address: "/avatar/parameters/Head_Contact", Arguments: []any{float32(1)}})
	if actions[0].Kind != ActionSuppressed || actions[0].Reason != "debounce" {
		t.Errorf("action 0: got %s(%s), want SUPPRESSED(debounce)", actions[0].Kind, actions[0].Reason)
	}
	if actions[1].Kind != ActionFire {
		t.Errorf("action 1: got %s, want FIRE", actions[1].Kind)
	}

	st := g.State()
	if len(st.Debounce) != 2 {
		t.Errorf("expected both params debounced, got %v", st.Debounce)
	}
	if disp.count() != 2 {
		t.Errorf("expected 2 dispatches, got %d", disp.count())
	}

	clk.Advance(time.Second)

	// A low value on the shared address clears each rule's own slot.
	r.Route(rs, Update{Address: "/avatar/parameters/Head_Contact", Arguments: []any{float32(0)}})
	st = g.State()
	if _, ok := st.Debounce["Head_Contact"]; ok {
		t.Error("Head_Contact debounce should have cleared")
	}
	if _, ok := st.Debounce["Contact"]; ok {
		t.Error("Contact debounce should have cleared from the shared update")
	}
}

func TestRouteEmptyParamNeverMatches(t *testing.T) {
	g, _, _ := setupGate(t)
	r := NewRouter(g)
	rule := contactRule()
	rule.Param = ""

	if actions := r.Route(testRuleset(rule), Update{Address: "/avatar/parameters/Contact", Arguments: []any{float32(1)}}); len(actions) != 0 {
		t.Errorf("empty param must not match, got %d actions", len(actions))
	}
}

func TestNumericValue(t *testing.T) {
	tests := []struct {
		name string
		args []any
		want float64
		ok   bool
	}{
		{"float32", []any{float32(0.5)}, 0.5, true},
		{"float64", []any{0.25}, 0.25, true},
		{"int32", []any{int32(3)}, 3, true},
		{"int64", []any{int64(4)}, 4, true},
		{"int", []any{5}, 5, true},
		{"bool true", []any{true}, 1, true},
		{"bool false", []any{false}, 0, true},
		{"first argument only", []any{float32(1), "x"}, 1, true},
		{"string", []any{"1"}, 0, false},
		{"empty", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NumericValue(tt.args)
			if ok != tt.ok || got != tt.want {
				t.Errorf("NumericValue(%v) = (%v, %v), want (%v, %v)", tt.args, got, ok, tt.want, tt.ok)
			}
		})
	}
}
