package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/medibook/booking-api/internal/model"
	"github.com/medibook/booking-api/internal/repository"
	"github.com/medibook/booking-api/pkg/logger"
	"github.com/medibook/booking-api/pkg/messaging"
	"github.com/medibook/booking-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	// MaxRetries is the per-event budget before the event moves to the
	// dead-letter table.
	MaxRetries int
}

// OutboxProcessor polls the transactional outbox and relays lifecycle
// events to the broker. Events that exhaust their retry budget move to
// the dead-letter table rather than blocking the queue.
type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *OutboxProcessor {
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		panic("RetryAttempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		panic("RetryDelay must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 5
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if err := p.processEvents(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

func (p *OutboxProcessor) processEvents(ctx context.Context) error {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.repo.GetPendingEventsWithLock(ctx, p.config.BatchSize)
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "error").Inc()
		return fmt.Errorf("failed to get pending events: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "success").Inc()

	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "Failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType)
			continue
		}
	}

	return nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	err := retry(p.config.RetryAttempts, p.config.RetryDelay, func() error {
		return p.broker.Publish(ctx, event.EventType, event.Payload)
	})

	if err != nil {
		p.metrics.OutboxEventsFailed.Inc()
		if event.RetryCount+1 >= p.config.MaxRetries {
			return p.deadLetter(ctx, event, err)
		}
		errStr := err.Error()
		retryAt := time.Now().Add(backoff(event.RetryCount, p.config.RetryDelay))
		if updateErr := p.repo.UpdateStatusTx(ctx, nil, event.ID, string(model.OutboxStatusFailed), &errStr, &retryAt); updateErr != nil {
			p.logger.Error(updateErr, "Failed to update event status")
		}
		return err
	}

	p.metrics.OutboxEventsProcessed.Inc()
	if err := p.repo.UpdateStatusTx(ctx, nil, event.ID, string(model.OutboxStatusProcessed), nil, nil); err != nil {
		p.logger.Error(err, "Failed to update event status", "event_id", event.ID.String())
		return err
	}

	return nil
}

func (p *OutboxProcessor) deadLetter(ctx context.Context, event *model.OutboxEvent, cause error) error {
	tx, err := p.repo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin dead-letter tx: %w", err)
	}
	defer tx.Rollback()

	if err := p.repo.MoveToDeadLetter(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to move event to dead letter: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dead-letter tx: %w", err)
	}

	p.logger.Error(cause, "Event moved to dead letter",
		"event_id", event.ID.String(),
		"event_type", event.EventType,
		"retries", event.RetryCount)
	return nil
}

// Cleanup deletes processed events older than the retention window.
func (p *OutboxProcessor) Cleanup(ctx context.Context, retention time.Duration) error {
	deleted, err := p.repo.DeleteProcessedBefore(ctx, time.Now().Add(-retention))
	if err != nil {
		return fmt.Errorf("failed to clean up outbox: %w", err)
	}
	if deleted > 0 {
		p.logger.Info("Cleaned up processed outbox events", "deleted", deleted)
	}
	return nil
}

func backoff(retryCount int, base time.Duration) time.Duration {
	d := base
	for i := 0; i < retryCount; i++ {
		d *= 2
		if d > 5*time.Minute {
			return 5 * time.Minute
		}
	}
	return d
}

func retry(attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return err
}
