package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kestrelbank/ledger-service/internal/domain"
	"github.com/kestrelbank/ledger-service/internal/events"
)

const dedupTTL = 24 * time.Hour

// processedLog is the dedup slice of the event store used by the projector.
type processedLog interface {
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
}

// viewStore is the view-cache surface the projector writes through.
type viewStore interface {
	Get(ctx context.Context, key string) (*AccountView, bool)
	Set(ctx context.Context, key string, view *AccountView)
}

// Projector consumes the integration event stream through a consumer group
// and folds each envelope into the account view cache. Delivery is
// at-least-once, so every envelope is checked against the event-store dedup
// cache; an envelope is marked processed only after it has been applied, and
// a failed apply stays unmarked and unacked so redelivery re-applies it.
// Re-applying is safe: balance envelopes carry absolute balances.
type Projector struct {
	client        *goredis.Client
	store         processedLog
	views         viewStore
	repo          domain.AccountRepository
	group         string
	consumer      string
	stream        string
	batchSize     int64
	blockDuration time.Duration
	logger        *slog.Logger
}

type ProjectorConfig struct {
	Group         string
	Consumer      string
	Stream        string
	BatchSize     int64
	BlockDuration time.Duration
}

func NewProjector(
	client *goredis.Client,
	store processedLog,
	views viewStore,
	repo domain.AccountRepository,
	cfg ProjectorConfig,
	logger *slog.Logger,
) *Projector {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 10
	}
	if cfg.BlockDuration == 0 {
		cfg.BlockDuration = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Projector{
		client:        client,
		store:         store,
		views:         views,
		repo:          repo,
		group:         cfg.Group,
		consumer:      cfg.Consumer,
		stream:        cfg.Stream,
		batchSize:     cfg.BatchSize,
		blockDuration: cfg.BlockDuration,
		logger:        logger,
	}
}

// Start runs the consume loop until the context is cancelled.
func (p *Projector) Start(ctx context.Context) error {
	err := p.client.XGroupCreateMkStream(ctx, p.stream, p.group, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	p.logger.Info("projector started", "stream", p.stream, "group", p.group, "consumer", p.consumer)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("projector stopping", "stream", p.stream)
			return ctx.Err()
		default:
			if err := p.readMessages(ctx); err != nil {
				p.logger.Warn("error reading messages", "error", err)
				time.Sleep(time.Second)
			}
		}
	}
}

func (p *Projector) readMessages(ctx context.Context) error {
	streams, err := p.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
		Group:    p.group,
		Consumer: p.consumer,
		Streams:  []string{p.stream, ">"},
		Count:    p.batchSize,
		Block:    p.blockDuration,
	}).Result()

	if err == goredis.Nil {
		return nil // No messages
	}
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			if err := p.processMessage(ctx, message); err != nil {
				p.logger.Warn("failed to process message, leaving unacked", "messageId", message.ID, "error", err)
				continue
			}
			if err := p.client.XAck(ctx, p.stream, p.group, message.ID).Err(); err != nil {
				p.logger.Warn("failed to ack message", "messageId", message.ID, "error", err)
			}
		}
	}
	return nil
}

func (p *Projector) processMessage(ctx context.Context, message goredis.XMessage) error {
	raw, ok := message.Values["event"].(string)
	if !ok {
		return fmt.Errorf("invalid message format")
	}
	var envelope events.Envelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	eventID := envelope.Data["eventId"]
	if eventID != "" {
		seen, err := p.store.IsProcessed(ctx, eventID)
		if err != nil {
			return err
		}
		if seen {
			p.logger.Info("duplicate event skipped", "eventId", eventID, "subject", envelope.Subject)
			return nil
		}
	}
	if err := p.apply(ctx, envelope); err != nil {
		return err
	}
	// Marked only after a successful apply: if the mark itself fails the
	// message stays unacked and the redelivered apply overwrites the view
	// with the same absolute state.
	if eventID != "" {
		if _, err := p.store.MarkProcessed(ctx, eventID, dedupTTL); err != nil {
			return err
		}
	}
	return nil
}

func (p *Projector) apply(ctx context.Context, envelope events.Envelope) error {
	accountID := envelope.Data["accountId"]
	if accountID == "" {
		return fmt.Errorf("envelope %s carries no account id", envelope.Subject)
	}
	occurredAt, _ := time.Parse(time.RFC3339Nano, envelope.Data["occurredAt"])

	switch envelope.Subject {
	case domain.AccountOpened:
		view := &AccountView{
			ID:        accountID,
			Name:      envelope.Data["name"],
			OpenedAt:  occurredAt,
			UpdatedAt: occurredAt,
		}
		p.views.Set(ctx, viewKey(accountID), view)
		return nil

	case domain.Deposited, domain.Withdrawn:
		view, err := p.loadView(ctx, accountID)
		if err != nil {
			return err
		}
		balance, err := strconv.ParseInt(envelope.Data["balance"], 10, 64)
		if err != nil {
			return fmt.Errorf("envelope %s carries bad balance %q", envelope.Subject, envelope.Data["balance"])
		}
		view.Balance = balance
		view.UpdatedAt = occurredAt
		p.views.Set(ctx, viewKey(accountID), view)
		return nil

	case domain.AccountClosed:
		view, err := p.loadView(ctx, accountID)
		if err != nil {
			return err
		}
		view.ClosedAt = &occurredAt
		view.UpdatedAt = occurredAt
		p.views.Set(ctx, viewKey(accountID), view)
		return nil

	case domain.PasswordUpdated:
		// Credential material is not projected; only freshen the timestamp.
		if view, ok := p.views.Get(ctx, viewKey(accountID)); ok {
			view.UpdatedAt = occurredAt
			p.views.Set(ctx, viewKey(accountID), view)
		}
		return nil

	default:
		p.logger.Info("unrecognised subject ignored", "subject", envelope.Subject)
		return nil
	}
}

// loadView returns the cached view, rebuilding it from the write store after
// a cache eviction.
func (p *Projector) loadView(ctx context.Context, accountID string) (*AccountView, error) {
	if view, ok := p.views.Get(ctx, viewKey(accountID)); ok {
		return view, nil
	}
	account, err := p.repo.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return NewAccountView(account), nil
}
