package runner

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// WaitConfig describes a service to poll before a run starts.
type WaitConfig struct {
	URL      string
	Status   int
	Timeout  time.Duration
	Interval time.Duration
}

// WaitFor polls cfg.URL until it answers with cfg.Status or the timeout
// expires.
func WaitFor(ctx context.Context, cfg WaitConfig, logger *slog.Logger) error {
	if cfg.Status == 0 {
		cfg.Status = http.StatusOK
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	logger.Info("waiting for service", "url", cfg.URL, "status", cfg.Status, "timeout", cfg.Timeout)

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client := &http.Client{
		Timeout: 5 * time.Second, // Per-request timeout
	}

	var lastErr error
	var lastStatus int

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
		if err != nil {
			return fmt.Errorf("wait for %s: %w", cfg.URL, err)
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
		} else {
			lastStatus = resp.StatusCode
			resp.Body.Close()
			if resp.StatusCode == cfg.Status {
				logger.Info("service is ready", "url", cfg.URL, "status", resp.StatusCode)
				return nil
			}
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("service %s not ready after %v: %w", cfg.URL, cfg.Timeout, lastErr)
			}
			return fmt.Errorf("service %s not ready after %v: got status %d, expected %d",
				cfg.URL, cfg.Timeout, lastStatus, cfg.Status)
		case <-time.After(cfg.Interval):
		}
	}
}
