// Package retry re-drives outbound messages that never got a server ack.
// Pending messages ARE the retry queue; there is no separate table.
package retry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pvanzin/taverna/internal/bus"
	"github.com/pvanzin/taverna/internal/store"
	"go.uber.org/zap"
)

// DefaultInterval is how often the pending queue is rescanned.
const DefaultInterval = 30 * time.Second

// MessageSender re-hands a pending message to the protocol engine. The
// engine owns network retry/backoff; this runner only owns the queue and the
// bookkeeping.
type MessageSender interface {
	Send(ctx context.Context, accountID, counterpartID int64, body, originID string) error
}

// Runner periodically rescans pending outbound messages of all enabled
// accounts and resends them. Delivery state advances only when the server
// acks through the ingestion path, never here.
type Runner struct {
	db       *store.DB
	sender   MessageSender
	bus      *bus.Bus
	logger   *zap.Logger
	interval time.Duration
	cancel   context.CancelFunc
}

// NewRunner creates a retry runner. interval <= 0 selects DefaultInterval.
func NewRunner(db *store.DB, sender MessageSender, b *bus.Bus, logger *zap.Logger, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		db:       db,
		sender:   sender,
		bus:      b,
		logger:   logger,
		interval: interval,
	}
}

// Start begins the rescan loop.
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	go r.loop(ctx)
}

// Stop stops the loop.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Runner) loop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.ProcessPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// ProcessPending runs one rescan across all enabled accounts.
func (r *Runner) ProcessPending(ctx context.Context) {
	accounts, err := r.db.ListAccounts()
	if err != nil {
		r.logger.Error("failed to list accounts", zap.Error(err))
		return
	}

	for _, acc := range accounts {
		if !acc.Enabled {
			continue
		}
		r.processAccount(ctx, acc.ID)
	}
}

func (r *Runner) processAccount(ctx context.Context, accountID int64) {
	pending, err := r.db.PendingMessages(accountID)
	if err != nil {
		r.logger.Error("failed to read retry queue", zap.Error(err), zap.Int64("account_id", accountID))
		return
	}
	if len(pending) == 0 {
		return
	}
	r.logger.Info("retrying pending messages", zap.Int64("account_id", accountID), zap.Int("count", len(pending)))

	for _, msg := range pending {
		now := time.Now().UnixMilli()
		if msg.FirstRetryAttempt == 0 {
			if err := r.db.InitRetryTracking(msg.ID, now); err != nil {
				r.logger.Error("failed to init retry tracking", zap.Error(err), zap.Int64("message", msg.ID))
				continue
			}
		}

		// A resend is a new stanza and needs a fresh origin id so later acks
		// and dedup match the copy actually on the wire.
		originID := uuid.NewString()
		if err := r.db.UpdateOriginID(msg.ID, originID); err != nil {
			r.logger.Error("failed to update origin id", zap.Error(err), zap.Int64("message", msg.ID))
			continue
		}

		if err := r.sender.Send(ctx, accountID, msg.CounterpartID, msg.Body, originID); err != nil {
			r.logger.Warn("resend failed", zap.Error(err), zap.Int64("message", msg.ID))
			r.bus.Publish(bus.Event{
				Kind:      bus.KindRetryFailed,
				Timestamp: time.Now(),
				Payload:   map[string]any{"message_id": msg.ID, "error": err.Error()},
			})
			continue
		}

		if err := r.db.IncrementRetry(msg.ID, now); err != nil {
			r.logger.Error("failed to increment retry count", zap.Error(err), zap.Int64("message", msg.ID))
		}
		r.bus.Publish(bus.Event{
			Kind:      bus.KindRetrySent,
			Timestamp: time.Now(),
			Payload:   map[string]any{"message_id": msg.ID, "origin_id": originID},
		})
	}
}
