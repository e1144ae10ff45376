// Package readiness blocks until the front-end endpoint answers.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"

	"github.com/johnbasrai/cr8s-quickstart/internal/model"
)

// Polling defaults for the front-end dev server.
const (
	DefaultURL      = "http://localhost:8080"
	DefaultInterval = 2000 * time.Millisecond
	DefaultDelay    = 1000 * time.Millisecond
	DefaultWindow   = 1000 * time.Millisecond
	DefaultTimeout  = 60 * time.Second
)

// Waiter polls URL until it returns a 2xx status.
//
// The first poll happens after Delay. Once a poll succeeds the Waiter
// sleeps for Window and checks again; only a second success counts as
// ready. Everything is bounded by the timeout passed to Wait.
type Waiter struct {
	URL      string
	Interval time.Duration
	Delay    time.Duration
	Window   time.Duration

	client *http.Client
	logger *log.Logger
}

// NewWaiter returns a Waiter with the default endpoint and timings.
func NewWaiter(logger *log.Logger) *Waiter {
	return &Waiter{
		URL:      DefaultURL,
		Interval: DefaultInterval,
		Delay:    DefaultDelay,
		Window:   DefaultWindow,
		client:   &http.Client{},
		logger:   logger,
	}
}

// Wait blocks until the endpoint is ready or timeout elapses. In dry-run
// the planned poll is logged and no request is made.
func (w *Waiter) Wait(ctx context.Context, timeout time.Duration, mode model.ExecutionMode) error {
	timeoutMS := timeout.Milliseconds()
	if mode.IsDryRun() {
		w.logger.Info("would wait", "url", w.URL, "timeout_ms", timeoutMS,
			"interval_ms", w.Interval.Milliseconds(), "delay_ms", w.Delay.Milliseconds(),
			"window_ms", w.Window.Milliseconds())
		return nil
	}
	w.logger.Info("Waiting for frontend to be ready...", "url", w.URL, "timeout_ms", timeoutMS)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := sleep(ctx, w.Delay); err != nil {
		return w.notReady(timeout, err)
	}

	poll := backoff.WithContext(backoff.NewConstantBackOff(w.Interval), ctx)
	for {
		poll.Reset()
		err := backoff.RetryNotify(func() error { return w.check(ctx) }, poll,
			func(err error, next time.Duration) {
				w.logger.Debug("endpoint not ready", "url", w.URL, "err", err, "retry_in", next)
			})
		if err != nil {
			return w.notReady(timeout, err)
		}

		if err := sleep(ctx, w.Window); err != nil {
			return w.notReady(timeout, err)
		}
		if err := w.check(ctx); err != nil {
			w.logger.Debug("endpoint did not stay ready, polling again", "url", w.URL, "err", err)
			continue
		}

		w.logger.Info("✅ Frontend is ready", "url", w.URL)
		return nil
	}
}

// check performs one GET and reports whether it returned 2xx.
func (w *Waiter) check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.URL, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (w *Waiter) notReady(timeout time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return model.NewCLIError(model.ExitNotReady,
			fmt.Sprintf("%s not ready after %s", w.URL, timeout))
	}
	return model.WrapCLIError(model.ExitNotReady, fmt.Sprintf("%s not ready", w.URL), err)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
