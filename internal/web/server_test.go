package web

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/param-actuator/internal/logging"
	"github.com/sweeney/param-actuator/internal/logic"
	"github.com/sweeney/param-actuator/internal/oscquery"
	"github.com/sweeney/param-actuator/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker, *Hub) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := status.NewTracker(start, status.Config{
		Name:       "param-actuator",
		OSCPort:    12345,
		CooldownMs: 2000,
		Params:     []string{"Contact"},
		Devices:    1,
		Broker:     "tcp://192.168.1.200:1883",
	})

	q := oscquery.NewServer("param-actuator", "127.0.0.1", 12345)
	q.AddMethod("/avatar", "avatar parameters", oscquery.AccessWrite)

	hub := NewHub(logging.Discard(), func() json.RawMessage { return status.FormatJSON(tr.Snapshot()) })
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := New(tr, q, hub, logging.Discard())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return ts, tr, hub
}

func getJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Record([]logic.Action{
		{Kind: logic.ActionFire, Param: "Contact", Fire: &logic.Fire{Param: "Contact", Operation: "vibrate", Intensity: 40, Duration: 2, Cooldown: 4 * time.Second}},
		{Kind: logic.ActionSuppressed, Param: "Contact", Reason: "cooldown"},
	}, time.Now())
	tr.SetMQTTConnected(true)

	var sj status.StatusJSON
	resp := getJSON(t, ts.URL+"/status.json", &sj)

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}
	if sj.Status.Counts.Fires != 1 || sj.Status.Counts.Suppressed != 1 {
		t.Errorf("Counts: got %+v", sj.Status.Counts)
	}
	if sj.Status.LastFire == nil || sj.Status.LastFire.Param != "Contact" {
		t.Errorf("LastFire: got %+v", sj.Status.LastFire)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.OSC.Port != 12345 {
		t.Errorf("OSC.Port: got %d, want 12345", sj.Status.OSC.Port)
	}
}

func TestHTMLEndpoint(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.SetGate(logic.GateState{CooldownActive: true, Debounce: map[string]float64{"Contact": 0.3}})

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	body := string(b)
	if !strings.Contains(body, "Contact") {
		t.Error("expected debounced parameter on the page")
	}
	if !strings.Contains(body, `class="active"`) {
		t.Error("expected active cooldown marker")
	}
}

func TestRootServesOSCQuery(t *testing.T) {
	ts, _, _ := newTestServer(t)

	var node oscquery.Node
	getJSON(t, ts.URL+"/", &node)
	if node.FullPath != "/" || node.Contents["avatar"] == nil {
		t.Errorf("unexpected root node: %+v", node)
	}

	var info oscquery.HostInfo
	getJSON(t, ts.URL+"/?HOST_INFO", &info)
	if info.OSCPort != 12345 || info.OSCTransport != "UDP" {
		t.Errorf("unexpected host info: %+v", info)
	}

	var avatar oscquery.Node
	getJSON(t, ts.URL+"/avatar", &avatar)
	if avatar.Access != oscquery.AccessWrite {
		t.Errorf("avatar access: got %d, want %d", avatar.Access, oscquery.AccessWrite)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp := getJSON(t, ts.URL+"/nonexistent", nil)
	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestNilQueryHandler(t *testing.T) {
	srv := New(status.NewTracker(time.Now(), status.Config{}), nil, nil, logging.Discard())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != 404 {
		t.Errorf("status: got %d, want 404", rec.Code)
	}
}

func TestWebSocketFeed(t *testing.T) {
	ts, _, hub := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var init envelope
	if err := conn.ReadJSON(&init); err != nil {
		t.Fatalf("read state_init: %v", err)
	}
	if init.Type != "state_init" {
		t.Fatalf("first frame: got %q, want state_init", init.Type)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	hub.BroadcastAction(logic.Action{
		Kind:  logic.ActionFire,
		Param: "Contact",
		Value: 0.9,
		Fire:  &logic.Fire{Param: "Contact", Operation: "beep", Intensity: 10, Duration: 1, Cooldown: 3 * time.Second},
	}, at)

	var frame struct {
		Type string     `json:"type"`
		Ts   time.Time  `json:"ts"`
		Data ActionData `json:"data"`
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read action: %v", err)
	}
	if frame.Type != "action" || frame.Data.Kind != "FIRE" || frame.Data.Param != "Contact" {
		t.Errorf("unexpected frame: %+v", frame)
	}
	if frame.Data.CooldownMs != 3000 || frame.Data.Operation != "beep" {
		t.Errorf("unexpected fire data: %+v", frame.Data)
	}
	if !frame.Ts.Equal(at) {
		t.Errorf("ts: got %v, want %v", frame.Ts, at)
	}
}

func TestBroadcastWithoutClientsDoesNotBlock(t *testing.T) {
	hub := NewHub(logging.Discard(), nil)

	done := make(chan struct{})
	go func() {
		// Hub is not running; the queue fills and further frames drop.
		for i := 0; i < 500; i++ {
			hub.BroadcastAction(logic.Action{Kind: logic.ActionNoop, Param: "Contact"}, time.Now())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("BroadcastAction blocked")
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := New(status.NewTracker(time.Now(), status.Config{}), nil, nil, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/status.json")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
