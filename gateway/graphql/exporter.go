package graphql

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/c360/opscore/errors"
	"github.com/c360/opscore/event"
	"github.com/c360/opscore/metric"
	"github.com/c360/opscore/natsclient"
	"github.com/c360/opscore/pkg/retry"
	"github.com/c360/opscore/pkg/worker"
)

// Exporter mirrors domain events to NATS subjects asynchronously. Mutations
// submit and move on; a slow or unreachable broker never extends a write's
// latency. Export is best-effort: events that still fail after retries are
// logged and dropped.
type Exporter struct {
	pool   *worker.Pool[event.Event]
	client *natsclient.Client
	logger *slog.Logger
	retry  retry.Config
}

// ExporterConfig controls the export pipeline.
type ExporterConfig struct {
	Workers   int          `json:"workers"`
	QueueSize int          `json:"queue_size"`
	Retry     retry.Config `json:"retry"`
}

// DefaultExporterConfig returns a sensible default configuration
func DefaultExporterConfig() ExporterConfig {
	return ExporterConfig{
		Workers:   2,
		QueueSize: 512,
		Retry: retry.Config{
			MaxAttempts:  3,
			InitialDelay: 50 * time.Millisecond,
			MaxDelay:     time.Second,
			Multiplier:   2.0,
			AddJitter:    true,
		},
	}
}

// NewExporter creates the export pipeline. Call Start before submitting.
func NewExporter(client *natsclient.Client, config ExporterConfig, logger *slog.Logger, registry metric.Registrar) (*Exporter, error) {
	if client == nil {
		return nil, errors.WrapValidation(errors.ErrInvalidConfig, "gateway", "NewExporter", "nil client check")
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Exporter{
		client: client,
		logger: logger,
		retry:  config.Retry,
	}

	var opts []worker.Option[event.Event]
	if registry != nil {
		opts = append(opts, worker.WithMetrics[event.Event](registry, "event_export"))
	}

	e.pool = worker.NewPool(config.Workers, config.QueueSize, e.export, opts...)
	return e, nil
}

// Start begins processing submitted events.
func (e *Exporter) Start(ctx context.Context) error {
	return e.pool.Start(ctx)
}

// Stop drains the queue, waiting up to timeout.
func (e *Exporter) Stop(timeout time.Duration) error {
	return e.pool.Stop(timeout)
}

// Submit enqueues an event for export. Never blocks; a full queue drops
// the event with a log line, which matches the bus's best-effort contract.
func (e *Exporter) Submit(evt event.Event) {
	if err := e.pool.Submit(evt); err != nil {
		e.logger.Warn("event export dropped", "type", evt.Type(), "error", err)
	}
}

// export publishes one event, retrying transient failures.
func (e *Exporter) export(ctx context.Context, evt event.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		e.logger.Error("event marshal failed", "type", evt.Type(), "error", err)
		return err
	}

	err = retry.Do(ctx, e.retry, func() error {
		return e.client.Publish(evt.Subject(), data)
	})
	if err != nil {
		e.logger.Warn("event export failed", "type", evt.Type(), "subject", evt.Subject(), "error", err)
		return err
	}
	return nil
}
