package actuator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sweeney/param-actuator/internal/gpio"
	"github.com/sweeney/param-actuator/internal/logic"
)

const defaultTimeout = 10 * time.Second

// HTTPDispatcher posts each fire to every configured device concurrently.
// Failures are logged and counted, never returned.
type HTTPDispatcher struct {
	client    *http.Client
	target    func() Target
	interlock gpio.Reader
	logger    *slog.Logger

	wg      sync.WaitGroup
	sent    atomic.Int64
	failed  atomic.Int64
	skipped atomic.Int64
}

// NewHTTPDispatcher creates a dispatcher. target is called once per fire so
// credentials and device codes follow configuration reloads. A nil interlock
// never holds off actuation.
func NewHTTPDispatcher(target func() Target, interlock gpio.Reader, logger *slog.Logger) *HTTPDispatcher {
	if interlock == nil {
		interlock = gpio.Disabled{}
	}
	return &HTTPDispatcher{
		client:    &http.Client{},
		target:    target,
		interlock: interlock,
		logger:    logger,
	}
}

// Dispatch starts the requests for f and returns immediately.
func (d *HTTPDispatcher) Dispatch(f logic.Fire) {
	t := d.target()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		engaged, err := d.interlock.Engaged()
		if err != nil {
			d.logger.Warn("interlock read failed, sending anyway", "error", err)
		}
		if engaged {
			d.skipped.Add(int64(len(t.ShareCodes)))
			d.logger.Warn("interlock engaged, actuation skipped", "param", f.Param, "operation", f.Operation)
			return
		}

		for _, code := range t.ShareCodes {
			d.wg.Add(1)
			go func(code string) {
				defer d.wg.Done()
				d.send(t, code, f)
			}(code)
		}
	}()
}

func (d *HTTPDispatcher) send(t Target, code string, f logic.Fire) {
	logger := d.logger.With("code", code, "param", f.Param, "operation", f.Operation)

	if err := d.post(t, NewRequest(t, code, f)); err != nil {
		d.failed.Add(1)
		logger.Warn("actuation request failed", "error", err)
		return
	}
	d.sent.Add(1)
	logger.Debug("actuation request sent", "intensity", f.Intensity, "duration", f.Duration)
}

func (d *HTTPDispatcher) post(t Target, req Request) error {
	body, err := FormatRequest(req)
	if err != nil {
		return fmt.Errorf("format request: %w", err)
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Wait blocks until every in-flight request has finished.
func (d *HTTPDispatcher) Wait() {
	d.wg.Wait()
}

// Stats returns request outcome counters.
func (d *HTTPDispatcher) Stats() Stats {
	return Stats{
		Sent:    d.sent.Load(),
		Failed:  d.failed.Load(),
		Skipped: d.skipped.Load(),
	}
}
