// Command param-actuator listens for avatar parameter updates over OSC and
// turns threshold crossings into rate-limited actuation requests.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/sweeney/param-actuator/internal/actuator"
	"github.com/sweeney/param-actuator/internal/clock"
	"github.com/sweeney/param-actuator/internal/config"
	"github.com/sweeney/param-actuator/internal/gpio"
	"github.com/sweeney/param-actuator/internal/logging"
	"github.com/sweeney/param-actuator/internal/logic"
	"github.com/sweeney/param-actuator/internal/mqtt"
	"github.com/sweeney/param-actuator/internal/osc"
	"github.com/sweeney/param-actuator/internal/oscquery"
	"github.com/sweeney/param-actuator/internal/status"
	"github.com/sweeney/param-actuator/internal/web"
)

var version = "dev"

// statusInterval is how often component counters are copied into the
// status snapshot.
const statusInterval = time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config file")
	logLevel := flag.String("log-level", "", "Override logging.level (debug, info, warn, error)")
	printConfig := flag.Bool("print-config", false, "Print the effective rules and exit")

	flag.Parse()

	boot := logging.New(config.LoggingConfig{Level: "info", Format: "text", Output: "stderr"}, version)

	path := *configPath
	if arg := flag.Arg(0); arg != "" {
		path = config.ResolvePath(arg, *configPath, boot)
	}

	if err := run(path, *logLevel, *printConfig); err != nil {
		boot.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(path, logLevel string, printConfig bool) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if printConfig {
		return printRules(os.Stdout, cfg)
	}

	logger := logging.New(cfg.Logging, version)
	store := config.NewStore(cfg)

	// Initialize interlock
	var interlock gpio.Reader = gpio.Disabled{}
	if cfg.Interlock.Pin >= 0 {
		r, err := gpio.NewRealReader(cfg.Interlock.Chip, cfg.Interlock.Pin, cfg.Interlock.ActiveLow)
		if err != nil {
			return fmt.Errorf("init interlock: %w", err)
		}
		interlock = r
		logger.Info("interlock enabled", "chip", cfg.Interlock.Chip, "pin", cfg.Interlock.Pin)
	}
	defer interlock.Close()

	dispatcher := actuator.NewHTTPDispatcher(func() actuator.Target {
		return targetFrom(store.Load())
	}, interlock, logger.With("component", "actuator"))
	defer dispatcher.Wait()

	gate := logic.NewGate(clock.Real{}, logic.NewRandomRange(nil), dispatcher)
	router := logic.NewRouter(gate)

	// Bind OSC
	port, err := choosePort(cfg.OSC)
	if err != nil {
		return err
	}
	listener, err := osc.Listen(cfg.OSC.Host, port, logger.With("component", "osc"))
	if err != nil {
		return fmt.Errorf("listen osc: %w", err)
	}
	defer listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan logic.Update, 256)
	go func() {
		if err := listener.Serve(ctx, updates); err != nil {
			logger.Error("osc listener stopped", "error", err)
		}
	}()

	tracker := status.NewTracker(time.Now(), statusConfig(cfg, port))

	var feed actionFeed
	httpPort := 0
	if cfg.HTTP.Enabled {
		hub, err := startHTTP(ctx, cfg, port, tracker, logger)
		if err != nil {
			return err
		}
		feed = hub
		httpPort = port
	}
	if cfg.MDNS.Enabled {
		advertise(ctx, cfg.MDNS.ServiceName, httpPort, port, logger.With("component", "mdns"))
	}

	// Initialize MQTT
	var publisher mqtt.Publisher = mqtt.NopPublisher{}
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			BufferSize:  cfg.MQTT.BufferSize,
		}, logger.With("component", "mqtt"))
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		publisher = p
	}
	defer publisher.Close()

	startup := mqtt.SystemEvent{Timestamp: time.Now(), Event: "STARTUP", Port: port, Retained: true}
	if err := publisher.PublishSystem(startup); err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
		logger.Warn("failed to publish startup event", "error", err)
	}

	logger.Info("started",
		"osc_port", port,
		"parameters", len(cfg.Parameters),
		"devices", len(cfg.API.ShareCodes),
		"cooldown_ms", cfg.CooldownMs,
	)

	configLogger := logger.With("component", "config")
	var reload <-chan struct{}
	poll := false
	notifier, err := config.NewNotifier(path, configLogger)
	switch {
	case err == nil:
		defer notifier.Close()
		go notifier.Run(ctx)
		reload = notifier.Changes()
	case cfg.ReloadInterval > 0:
		configLogger.Warn("file watcher unavailable, polling config", "error", err, "interval", cfg.ReloadInterval)
		reload = config.Poll(ctx, cfg.ReloadInterval)
		poll = true
	default:
		configLogger.Warn("file watcher unavailable and reload_interval is 0, config will not reload", "error", err)
	}

	statusTicker := time.NewTicker(statusInterval)
	defer statusTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	connStatus, _ := publisher.(mqtt.ConnectionStatus)

	d := &daemon{
		store:      store,
		watcher:    config.NewWatcher(path, store, configLogger),
		poll:       poll,
		router:     router,
		gate:       gate,
		publisher:  publisher,
		mqttStatus: connStatus,
		tracker:    tracker,
		feed:       feed,
		logger:     logger,
		port:       port,
		dispatchStats: func() status.DispatchStats {
			s := dispatcher.Stats()
			return status.DispatchStats{Sent: s.Sent, Failed: s.Failed, Skipped: s.Skipped}
		},
		oscStats: func() status.OSCStats {
			return status.OSCStats{Received: listener.Received(), Malformed: listener.Dropped()}
		},
	}
	return d.runLoop(time.Now, updates, reload, statusTicker.C, sigCh)
}

// actionFeed receives every routed action for live display.
type actionFeed interface {
	BroadcastAction(a logic.Action, at time.Time)
}

type daemon struct {
	store      *config.Store
	watcher    *config.Watcher
	poll       bool
	router     *logic.Router
	gate       *logic.Gate
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	feed       actionFeed
	logger     *slog.Logger
	port       int

	dispatchStats func() status.DispatchStats
	oscStats      func() status.OSCStats

	publishes sync.WaitGroup
}

// runLoop serves updates until a signal arrives. reload delivers config file
// changes and tick drives the status refresh; either may be nil.
func (d *daemon) runLoop(now func() time.Time, updates <-chan logic.Update, reload <-chan struct{}, tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			d.logger.Info("shutting down", "signal", s.String())
			d.publishes.Wait()

			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName(s),
				Retained:  true,
			}
			if err := d.publisher.PublishSystem(event); err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
				d.logger.Warn("failed to publish shutdown event", "error", err)
			}
			return nil

		case u := <-updates:
			d.handle(u, now())

		case <-reload:
			d.reload()
			d.refresh()

		case <-tick:
			d.refresh()
		}
	}
}

// reload applies a changed config file. A poll only reloads when the file's
// stat differs; a file event always reloads.
func (d *daemon) reload() {
	if d.watcher == nil {
		return
	}
	check := d.watcher.Reload
	if d.poll {
		check = d.watcher.Check
	}
	if ok, _ := check(); ok {
		d.tracker.SetConfig(statusConfig(d.store.Load(), d.port))
		d.tracker.SetReloads(d.store.Reloads())
	}
}

// handle routes one update against the current config snapshot.
func (d *daemon) handle(u logic.Update, t time.Time) {
	if _, ok := logic.NumericValue(u.Arguments); !ok {
		d.logger.Debug("dropping update without numeric value", "address", u.Address)
		d.tracker.RecordDropped()
		return
	}

	actions := d.router.Route(d.store.Load().Ruleset(), u)
	for _, a := range actions {
		switch a.Kind {
		case logic.ActionFire:
			f := *a.Fire
			d.logger.Info("fire",
				"param", f.Param,
				"operation", f.Operation,
				"intensity", f.Intensity,
				"duration", f.Duration,
				"cooldown_ms", f.Cooldown.Milliseconds(),
			)
			d.publishTrigger(mqtt.TriggerEvent{Timestamp: t, Fire: f})
		case logic.ActionSuppressed:
			d.logger.Debug("suppressed", "param", a.Param, "value", a.Value, "reason", a.Reason)
		case logic.ActionDebounceCleared:
			d.logger.Debug("debounce cleared", "param", a.Param, "value", a.Value)
		default:
			if a.Reason != "" {
				d.logger.Warn("not fired", "param", a.Param, "reason", a.Reason)
			}
		}
		if d.feed != nil {
			d.feed.BroadcastAction(a, t)
		}
	}

	d.tracker.Record(actions, t)
	d.tracker.SetGate(d.gate.State())
}

// publishTrigger mirrors a fire without holding up the loop.
func (d *daemon) publishTrigger(ev mqtt.TriggerEvent) {
	d.publishes.Add(1)
	go func() {
		defer d.publishes.Done()
		if err := d.publisher.PublishTrigger(ev); err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
			d.logger.Warn("publish error", "error", err)
		}
	}()
}

// refresh copies counters owned by other components into the tracker.
func (d *daemon) refresh() {
	d.tracker.SetGate(d.gate.State())
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
	if d.dispatchStats != nil {
		d.tracker.SetDispatch(d.dispatchStats())
	}
	if d.oscStats != nil {
		d.tracker.SetOSC(d.oscStats())
	}
}

func startHTTP(ctx context.Context, cfg *config.Config, port int, tracker *status.Tracker, logger *slog.Logger) (*web.Hub, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(cfg.OSC.Host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("listen http: %w", err)
	}

	query := oscquery.NewServer(cfg.MDNS.ServiceName, advertisedIP(cfg.OSC.Host), port)
	query.AddMethod(cfg.OSC.Address, "avatar parameter updates", oscquery.AccessWrite)

	httpLogger := logger.With("component", "http")
	hub := web.NewHub(httpLogger, func() json.RawMessage {
		return status.FormatJSON(tracker.Snapshot())
	})
	go hub.Run(ctx)

	srv := web.New(tracker, query, hub, httpLogger)
	go func() {
		if err := srv.Run(ctx, ln); err != nil {
			httpLogger.Error("http server error", "error", err)
		}
	}()
	httpLogger.Info("oscquery and status server listening", "addr", ln.Addr().String())
	return hub, nil
}

// advertise announces the daemon over mDNS until ctx is canceled. httpPort
// is 0 when the HTTP server is off, in which case only OSC is announced.
func advertise(ctx context.Context, name string, httpPort, oscPort int, logger *slog.Logger) {
	adv, err := oscquery.Advertise(name, httpPort, oscPort, logger)
	if err != nil {
		logger.Warn("mdns advertisement failed", "error", err)
		return
	}
	go func() {
		<-ctx.Done()
		adv.Shutdown()
	}()
}

// choosePort returns the configured port, or searches upward from a random
// start in the configured range and wraps around once.
func choosePort(c config.OSCConfig) (int, error) {
	if c.Port != 0 {
		return c.Port, nil
	}
	start := c.PortMin + rand.IntN(c.PortMax-c.PortMin+1)
	port, err := osc.FindPort(c.Host, start, c.PortMax)
	if errors.Is(err, osc.ErrNoFreePort) && start > c.PortMin {
		port, err = osc.FindPort(c.Host, c.PortMin, start-1)
	}
	if err != nil {
		return 0, fmt.Errorf("find osc port: %w", err)
	}
	return port, nil
}

func advertisedIP(host string) string {
	if host == "" || host == "0.0.0.0" || host == "::" {
		return "127.0.0.1"
	}
	return host
}

func targetFrom(cfg *config.Config) actuator.Target {
	return actuator.Target{
		URL:        cfg.API.URL,
		Username:   cfg.API.Username,
		APIKey:     cfg.API.APIKey,
		Name:       cfg.API.Name,
		ShareCodes: cfg.API.ShareCodes,
		Timeout:    cfg.API.Timeout,
	}
}

func statusConfig(cfg *config.Config, port int) status.Config {
	params := make([]string, len(cfg.Parameters))
	for i, p := range cfg.Parameters {
		params[i] = p.Name
	}
	return status.Config{
		Name:       cfg.API.Name,
		OSCPort:    port,
		CooldownMs: cfg.CooldownMs,
		Params:     params,
		Devices:    len(cfg.API.ShareCodes),
		Broker:     cfg.MQTT.Broker,
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

func printRules(w io.Writer, cfg *config.Config) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "PARAM\tACTIVATE\tDEBOUNCE\tOPERATION\tDURATION\tINTENSITY\n")
	for _, p := range cfg.Parameters {
		fmt.Fprintf(tw, "%s\t%g\t%g\t%s\t%g-%g\t%g-%g\n",
			p.Name, p.ActivationThreshold, p.DebounceThreshold, p.Operation,
			p.Duration.Min, p.Duration.Max, p.Intensity.Min, p.Intensity.Max)
	}
	fmt.Fprintf(tw, "\ncooldown_ms: %d\toperations: %v\tdevices: %d\n", cfg.CooldownMs, cfg.OperationNames(), len(cfg.API.ShareCodes))
	return tw.Flush()
}
