package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"prohori/internal/config"
	"prohori/internal/domain"
	"prohori/internal/metrics"
	"prohori/pkg/e"
)

// AlertDispatcher drains the SOS queue and delivers each alert to the
// responder webhook. Without a webhook URL alerts are logged and dropped.
type AlertDispatcher struct {
	logger *slog.Logger
	cfg    config.DispatchConfig
	queue  AlertQueue
	http   *http.Client
}

func NewAlertDispatcher(logger *slog.Logger, cfg config.DispatchConfig, q AlertQueue) *AlertDispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &AlertDispatcher{
		logger: logger,
		cfg:    cfg,
		queue:  q,
		http:   &http.Client{Timeout: cfg.Timeout},
	}
}

// Run blocks until ctx is done.
func (d *AlertDispatcher) Run(ctx context.Context) error {
	d.logger.Info("alert dispatcher started", slog.String("url", d.cfg.URL), slog.Int("workers", d.cfg.Workers))

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < d.cfg.Workers; i++ {
		worker := i
		g.Go(func() error {
			d.loop(ctx, worker)
			return nil
		})
	}
	err := g.Wait()

	d.logger.Info("alert dispatcher stopped")
	return err
}

func (d *AlertDispatcher) loop(ctx context.Context, worker int) {
	l := d.logger.With(slog.Int("worker", worker))
	for {
		if ctx.Err() != nil {
			return
		}

		alert, err := d.queue.Dequeue(ctx, d.cfg.PollTimeout)
		if err != nil {
			switch {
			case errors.Is(err, e.ErrAlertQueueEmpty):
			case ctx.Err() != nil:
				return
			default:
				l.Error("dequeue failed", slog.Any("error", err))
				sleep(ctx, 500*time.Millisecond)
			}
			continue
		}

		d.Deliver(ctx, alert)
	}
}

// Deliver posts one alert with bounded retry and reports whether it was
// accepted.
func (d *AlertDispatcher) Deliver(ctx context.Context, alert domain.SosDispatch) bool {
	if d.cfg.URL == "" {
		metrics.DispatchTotal.WithLabelValues("logged").Inc()
		d.logger.Info("SOS alert dispatched to log",
			slog.String("alert_id", alert.AlertID.String()),
			slog.Float64("lat", alert.Lat),
			slog.Float64("lng", alert.Lng),
		)
		return true
	}

	body, err := json.Marshal(alert)
	if err != nil {
		metrics.DispatchTotal.WithLabelValues("dropped").Inc()
		d.logger.Error("marshal alert failed", slog.Any("error", err))
		return false
	}

	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			metrics.DispatchTotal.WithLabelValues("canceled").Inc()
			return false
		}

		err := d.post(ctx, body)
		if err == nil {
			metrics.DispatchTotal.WithLabelValues("delivered").Inc()
			return true
		}

		d.logger.Warn("alert delivery failed",
			slog.String("alert_id", alert.AlertID.String()),
			slog.Int("attempt", attempt),
			slog.String("reason", err.Error()),
		)
		if attempt < d.cfg.MaxAttempts {
			sleep(ctx, time.Duration(attempt)*d.cfg.Backoff)
		}
	}

	metrics.DispatchTotal.WithLabelValues("failed").Inc()
	d.logger.Error("alert dropped after retries",
		slog.String("alert_id", alert.AlertID.String()),
		slog.Int("attempts", d.cfg.MaxAttempts),
	)
	return false
}

func (d *AlertDispatcher) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %s", resp.Status)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
