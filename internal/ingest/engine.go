// Package ingest drives events from the protocol collaborator into the
// store: entity resolution, idempotent insertion, receipt handling.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/pvanzin/taverna/internal/bus"
	"github.com/pvanzin/taverna/internal/store"
	"go.uber.org/zap"
)

// Engine subscribes to "proto.*" events on the bus and records them exactly
// once. Duplicate redelivery (history replay, carbons from other devices) is
// a logged no-op, never an error.
type Engine struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewEngine creates a new ingestion engine.
func NewEngine(db *store.DB, b *bus.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:     db,
		bus:    b,
		logger: logger,
	}
}

// Start subscribes to protocol events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("proto.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindProtoMessage:
		ev, ok := evt.Payload.(*MessageEvent)
		if !ok {
			return
		}
		if _, err := e.IngestMessage(ev); err != nil {
			e.logger.Error("failed to ingest message", zap.Error(err), zap.String("stanza_id", ev.StanzaID))
		}
	case bus.KindProtoFile:
		ev, ok := evt.Payload.(*FileEvent)
		if !ok {
			return
		}
		if _, err := e.IngestFile(ev); err != nil {
			e.logger.Error("failed to ingest file transfer", zap.Error(err), zap.String("stanza_id", ev.StanzaID))
		}
	case bus.KindProtoCall:
		ev, ok := evt.Payload.(*CallEvent)
		if !ok {
			return
		}
		if _, err := e.IngestCall(ev); err != nil {
			e.logger.Error("failed to ingest call", zap.Error(err), zap.String("counterpart", ev.Counterpart))
		}
	case bus.KindProtoReceipt:
		ev, ok := evt.Payload.(*ReceiptEvent)
		if !ok {
			return
		}
		if err := e.HandleReceipt(ev); err != nil {
			e.logger.Error("failed to handle receipt", zap.Error(err), zap.String("identifier", ev.Identifier))
		}
	}
}

// IngestMessage resolves entities and records the message exactly once.
func (e *Engine) IngestMessage(ev *MessageEvent) (store.IngestResult, error) {
	counterpartID, conv, err := e.resolve(ev.AccountID, ev.Counterpart, ev.Kind)
	if err != nil {
		return store.IngestResult{}, err
	}

	var reply *store.Reply
	if ev.ReplyTo != "" {
		reply = &store.Reply{QuotedStanzaID: ev.ReplyTo, QuotedSender: ev.ReplySender}
	}

	result, err := e.db.IngestMessage(conv.ID, &store.Message{
		AccountID:           ev.AccountID,
		CounterpartID:       counterpartID,
		CounterpartResource: ev.Resource,
		Direction:           ev.Direction,
		Kind:                ev.Kind,
		Time:                ev.Time,
		LocalTime:           ev.LocalTime,
		Body:                ev.Body,
		Encrypted:           ev.Encrypted,
		Marked:              ev.Delivery,
		StanzaID:            ev.StanzaID,
		OriginID:            ev.OriginID,
		MessageID:           ev.MessageID,
		Carbon:              ev.Carbon,
	}, reply)
	if err != nil {
		return result, fmt.Errorf("ingest message: %w", err)
	}

	e.publishResult(bus.KindStoreMessage, conv.ID, result, zap.String("stanza_id", ev.StanzaID))
	return result, nil
}

// IngestFile resolves entities and records the file transfer exactly once.
func (e *Engine) IngestFile(ev *FileEvent) (store.IngestResult, error) {
	counterpartID, conv, err := e.resolve(ev.AccountID, ev.Counterpart, ev.Kind)
	if err != nil {
		return store.IngestResult{}, err
	}

	result, err := e.db.IngestFileTransfer(conv.ID, &store.FileTransfer{
		AccountID:     ev.AccountID,
		CounterpartID: counterpartID,
		Direction:     ev.Direction,
		Time:          ev.Time,
		LocalTime:     ev.LocalTime,
		FileName:      ev.FileName,
		Path:          ev.Path,
		URL:           ev.URL,
		MimeType:      ev.MimeType,
		Size:          ev.Size,
		State:         ev.State,
		Encrypted:     ev.Encrypted,
		Provider:      ev.Provider,
		Carbon:        ev.Carbon,
		StanzaID:      ev.StanzaID,
		OriginID:      ev.OriginID,
		MessageID:     ev.MessageID,
	})
	if err != nil {
		return result, fmt.Errorf("ingest file transfer: %w", err)
	}

	e.publishResult(bus.KindStoreFile, conv.ID, result, zap.String("stanza_id", ev.StanzaID))
	return result, nil
}

// IngestCall records a signaled call.
func (e *Engine) IngestCall(ev *CallEvent) (store.IngestResult, error) {
	counterpartID, conv, err := e.resolve(ev.AccountID, ev.Counterpart, store.ConversationDirect)
	if err != nil {
		return store.IngestResult{}, err
	}

	result, err := e.db.IngestCall(conv.ID, &store.Call{
		AccountID:           ev.AccountID,
		CounterpartID:       counterpartID,
		CounterpartResource: ev.Resource,
		OurResource:         ev.OurResource,
		Direction:           ev.Direction,
		Time:                ev.Time,
		LocalTime:           ev.LocalTime,
		EndTime:             ev.EndTime,
		Encrypted:           ev.Encrypted,
		State:               ev.State,
		Media:               ev.Media,
	})
	if err != nil {
		return result, fmt.Errorf("ingest call: %w", err)
	}

	e.publishResult(bus.KindStoreCall, conv.ID, result, zap.String("counterpart", ev.Counterpart))
	return result, nil
}

// HandleReceipt advances the delivery state of the referenced outbound
// message. Unknown identifiers are a no-op: the ack may refer to a message
// sent before this store existed.
func (e *Engine) HandleReceipt(ev *ReceiptEvent) error {
	var (
		updated int64
		err     error
	)
	switch ev.Kind {
	case ReceiptServerAck:
		updated, err = e.db.AckDelivery(ev.AccountID, ev.Identifier)
	case ReceiptDelivered:
		var counterpartID int64
		// Read-only lookup: a receipt must never intern a new address.
		if counterpartID, err = e.db.LookupAddress(ev.Counterpart); err == nil && counterpartID != 0 {
			updated, err = e.db.MarkDelivered(ev.AccountID, counterpartID, ev.Identifier)
		}
	case ReceiptDisplayed:
		var counterpartID int64
		if counterpartID, err = e.db.LookupAddress(ev.Counterpart); err == nil && counterpartID != 0 {
			updated, err = e.db.MarkDisplayedUpTo(ev.AccountID, counterpartID, ev.Identifier)
		}
	default:
		return fmt.Errorf("unknown receipt kind %d", ev.Kind)
	}
	if err != nil {
		return fmt.Errorf("handle receipt: %w", err)
	}

	if updated > 0 {
		e.bus.Publish(bus.Event{
			Kind:      bus.KindStoreDelivery,
			Timestamp: time.Now(),
			Payload:   ev,
		})
	} else {
		e.logger.Debug("receipt matched no message", zap.String("identifier", ev.Identifier))
	}
	return nil
}

func (e *Engine) resolve(accountID int64, counterpart string, kind store.ConversationKind) (int64, *store.Conversation, error) {
	counterpartID, err := e.db.ResolveAddress(counterpart)
	if err != nil {
		return 0, nil, err
	}
	conv, err := e.db.ResolveConversation(accountID, counterpartID, kind)
	if err != nil {
		return 0, nil, err
	}
	return counterpartID, conv, nil
}

func (e *Engine) publishResult(kind string, conversationID int64, result store.IngestResult, field zap.Field) {
	if result.Duplicate {
		e.logger.Debug("duplicate event, already recorded", field)
		e.bus.Publish(bus.Event{
			Kind:      bus.KindStoreDuplicate,
			Timestamp: time.Now(),
			Payload:   conversationID,
		})
		return
	}
	e.bus.Publish(bus.Event{
		Kind:      kind,
		Timestamp: time.Now(),
		Payload: map[string]int64{
			"conversation_id": conversationID,
			"record_id":       result.RecordID,
			"item_id":         result.ItemID,
		},
	})
}
