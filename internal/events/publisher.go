package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kestrelbank/ledger-service/internal/domain"
)

// PublisherConfig tunes the bounded retry behaviour of the publisher.
type PublisherConfig struct {
	Stream           string
	MaxAttempts      int
	BaseDelay        time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// Publisher forwards integration envelopes onto a Redis stream. Failed
// publishes are retried with exponential backoff up to MaxAttempts, behind a
// circuit breaker so a sustained outage sheds load instead of piling up
// blocked publishers. It never panics and never terminates the process: the
// worst outcome is ErrTransportUnavailable back to the caller.
type Publisher struct {
	client      *redis.Client
	stream      string
	breaker     *Breaker
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger
}

func NewPublisher(client *redis.Client, cfg PublisherConfig, logger *slog.Logger) *Publisher {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}
	if cfg.BreakerThreshold < 1 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client:      client,
		stream:      cfg.Stream,
		breaker:     NewBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown),
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		logger:      logger,
	}
}

// Publish appends the envelope to the stream, attempting at least once unless
// the circuit is already open.
func (p *Publisher) Publish(ctx context.Context, envelope Envelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if !p.breaker.Allow() {
			return fmt.Errorf("publish %s: circuit open: %w", envelope.Subject, domain.ErrTransportUnavailable)
		}
		err := p.client.XAdd(ctx, &redis.XAddArgs{
			Stream: p.stream,
			Values: map[string]any{"event": payload},
		}).Err()
		if err == nil {
			p.breaker.Success()
			return nil
		}
		p.breaker.Failure()
		lastErr = err
		p.logger.Warn("publish attempt failed",
			"subject", envelope.Subject, "attempt", attempt+1, "error", err)

		if attempt < p.maxAttempts-1 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("publish %s: %v: %w", envelope.Subject, ctx.Err(), domain.ErrTransportUnavailable)
			case <-time.After(p.baseDelay << attempt):
			}
		}
	}
	return fmt.Errorf("publish %s after %d attempts: %v: %w",
		envelope.Subject, p.maxAttempts, lastErr, domain.ErrTransportUnavailable)
}

// HandleEvent adapts the publisher to the dispatcher's Handler signature.
func (p *Publisher) HandleEvent(ctx context.Context, event domain.Event) error {
	return p.Publish(ctx, Translate(event))
}
