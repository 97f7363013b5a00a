package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zapkart/zapkart-backend/pkg/config"
	"github.com/zapkart/zapkart-backend/pkg/db/models"
	"github.com/zapkart/zapkart-backend/pkg/enums"
	"github.com/zapkart/zapkart-backend/pkg/logger"
	"github.com/zapkart/zapkart-backend/pkg/redis"
)

// Handler consumes one decoded outbox event. Returning an error leaves the row
// unpublished for a later retry.
type Handler func(ctx context.Context, envelope PayloadEnvelope, event models.OutboxEvent) error

// Store is the persistence surface the poller drains.
type Store interface {
	FetchUnpublished(limit int) ([]models.OutboxEvent, error)
	MarkPublished(id uuid.UUID) error
	MarkFailed(id uuid.UUID, err error) error
}

// Poller drains unpublished outbox rows and dispatches them to registered
// handlers. A redis SETNX guard keeps redelivery at-most-once per event even
// when several poller replicas run.
type Poller struct {
	store       Store
	deduper     redis.Deduper
	handlers    map[enums.OutboxEventType]Handler
	logg        *logger.Logger
	batchSize   int
	interval    time.Duration
	maxAttempts int
}

// NewPoller wires the dispatch loop. Handlers must be registered before Run.
func NewPoller(store Store, deduper redis.Deduper, cfg config.OutboxConfig, logg *logger.Logger) (*Poller, error) {
	if store == nil {
		return nil, fmt.Errorf("outbox store is required")
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 50
	}
	interval := time.Duration(cfg.PollIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &Poller{
		store:       store,
		deduper:     deduper,
		handlers:    make(map[enums.OutboxEventType]Handler),
		logg:        logg,
		batchSize:   batch,
		interval:    interval,
		maxAttempts: maxAttempts,
	}, nil
}

// Register binds a handler to an event type. Last registration wins.
func (p *Poller) Register(eventType enums.OutboxEventType, h Handler) {
	if h == nil {
		return
	}
	p.handlers[eventType] = h
}

// Run drains the outbox until the context is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.ProcessBatch(ctx); err != nil && p.logg != nil {
				p.logg.Error(ctx, "outbox batch failed", err)
			}
		}
	}
}

// ProcessBatch handles one fetch-dispatch cycle. Exported so workers and tests
// can drive the loop directly.
func (p *Poller) ProcessBatch(ctx context.Context) error {
	rows, err := p.store.FetchUnpublished(p.batchSize)
	if err != nil {
		return fmt.Errorf("fetch unpublished: %w", err)
	}
	for _, row := range rows {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.processRow(ctx, row)
	}
	return nil
}

func (p *Poller) processRow(ctx context.Context, row models.OutboxEvent) {
	if row.AttemptCount >= p.maxAttempts {
		// Poison row: park it as published so the queue keeps moving. The
		// last_error column preserves what went wrong.
		if p.logg != nil {
			p.logg.Warn(ctx, fmt.Sprintf("outbox event %s exhausted %d attempts, parking", row.ID, row.AttemptCount))
		}
		if err := p.store.MarkPublished(row.ID); err != nil && p.logg != nil {
			p.logg.Error(ctx, "park poison outbox row", err)
		}
		return
	}

	handler, ok := p.handlers[row.EventType]
	if !ok {
		p.fail(ctx, row, fmt.Errorf("no handler for event type %s", row.EventType))
		return
	}

	var envelope PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &envelope); err != nil {
		p.fail(ctx, row, fmt.Errorf("decode envelope: %w", err))
		return
	}

	var claimedKey string
	if p.deduper != nil && envelope.EventID != "" {
		key := p.deduper.DedupeKey("outbox", envelope.EventID)
		won, err := p.deduper.SetNX(ctx, key, "1", 24*time.Hour)
		if err != nil {
			p.fail(ctx, row, fmt.Errorf("dedupe guard: %w", err))
			return
		}
		if !won {
			// Another replica already delivered it.
			_ = p.store.MarkPublished(row.ID)
			return
		}
		claimedKey = key
	}

	if err := handler(ctx, envelope, row); err != nil {
		// Release the claim, otherwise the retry would see a held marker
		// and park the row without the handler ever running again.
		if claimedKey != "" {
			if delErr := p.deduper.Del(ctx, claimedKey); delErr != nil && p.logg != nil {
				p.logg.Error(ctx, "release dedupe claim", delErr)
			}
		}
		p.fail(ctx, row, err)
		return
	}
	if err := p.store.MarkPublished(row.ID); err != nil && p.logg != nil {
		p.logg.Error(ctx, "mark outbox row published", err)
	}
}

func (p *Poller) fail(ctx context.Context, row models.OutboxEvent, err error) {
	if p.logg != nil {
		fields := map[string]any{
			"event_id":   row.ID.String(),
			"event_type": row.EventType,
		}
		p.logg.Error(p.logg.WithFields(ctx, fields), "outbox dispatch failed", err)
	}
	if markErr := p.store.MarkFailed(row.ID, err); markErr != nil && p.logg != nil {
		p.logg.Error(ctx, "mark outbox row failed", markErr)
	}
}
