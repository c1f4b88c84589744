// Package ingest ties the classifier, store and broadcaster together: it
// is the only writer of conversation history and the only publisher of
// live events.
package ingest

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/chatd/internal/bus"
	"github.com/matheus3301/chatd/internal/status"
	"github.com/matheus3301/chatd/internal/store"
	"github.com/matheus3301/chatd/internal/webhook"
	"go.uber.org/zap"
)

// localIDPrefix namespaces locally generated message ids. Provider ids
// never carry this prefix, so a local send cannot collide with an
// externally assigned identity.
const localIDPrefix = "local_"

// Engine processes inbound payloads and local sends. Both paths converge
// on the same insert-then-publish sequence; the publish always happens
// after the write is durably committed, so a subscriber never sees a live
// event for a message a concurrent history fetch could miss.
type Engine struct {
	db      *store.DB
	bus     *bus.Bus
	logger  *zap.Logger
	account string
}

// NewEngine creates an ingestion engine. accountAddress is the
// authoritative identity of the account holder, used to derive message
// directionality; when empty, directionality falls back to comparing the
// sender against the payload contact.
func NewEngine(db *store.DB, b *bus.Bus, logger *zap.Logger, accountAddress string) *Engine {
	return &Engine{
		db:      db,
		bus:     b,
		logger:  logger,
		account: accountAddress,
	}
}

// Process ingests one raw external payload. Unrecognized payloads are
// logged and skipped without error and without touching the store; only
// infrastructure failures propagate, and those are retryable by the
// caller.
func (e *Engine) Process(raw []byte) error {
	evt, err := webhook.Classify(raw)
	if errors.Is(err, webhook.ErrUnrecognized) {
		e.logger.Warn("skipping unrecognized payload")
		return nil
	}
	if err != nil {
		return fmt.Errorf("classify payload: %w", err)
	}

	switch evt.Kind {
	case webhook.KindMessage:
		return e.ingestMessage(evt.Message)
	case webhook.KindStatus:
		return e.ingestStatus(evt.Status)
	default:
		return nil
	}
}

func (e *Engine) ingestMessage(ev *webhook.MessageEvent) error {
	m := &store.Message{
		ConversationID: ev.ConversationID,
		MessageID:      ev.MessageID,
		CorrelationID:  ev.MessageID,
		DisplayName:    ev.DisplayName,
		Address:        ev.Address,
		Body:           ev.Body,
		FromMe:         e.fromMe(ev),
		Status:         status.Sent,
		Timestamp:      ev.Timestamp.UnixMilli(),
		Raw:            ev.Raw,
	}

	inserted, err := e.db.InsertMessage(m)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if !inserted {
		// Replayed delivery of a message we already hold.
		e.logger.Debug("duplicate message absorbed",
			zap.String("conversation_id", m.ConversationID),
			zap.String("message_id", m.MessageID))
		return nil
	}

	e.logger.Info("message ingested",
		zap.String("conversation_id", m.ConversationID),
		zap.String("message_id", m.MessageID))
	e.publishCreated(m)
	return nil
}

func (e *Engine) ingestStatus(ev *webhook.StatusEvent) error {
	incoming := status.Parse(ev.Status)
	n, err := e.db.AdvanceStatus(ev.MessageID, ev.CorrelationID, incoming)
	if err != nil {
		return fmt.Errorf("advance status: %w", err)
	}
	// Zero matched rows is fine: the status may have raced ahead of its
	// message, or be a stale replay. Status changes are not published to
	// subscribers; clients pick them up on their next history fetch.
	e.logger.Info("status event applied",
		zap.String("message_id", ev.MessageID),
		zap.String("correlation_id", ev.CorrelationID),
		zap.String("status", string(incoming)),
		zap.Int64("rows", n))
	return nil
}

// SendMessage records a locally originated message and fans it out. The
// id is generated under the reserved local namespace and the write is
// synchronous: a failure surfaces to the caller, who must re-invoke.
func (e *Engine) SendMessage(conversationID, displayName, address, text string) (*store.Message, error) {
	m := &store.Message{
		ConversationID: conversationID,
		MessageID:      localIDPrefix + uuid.New().String(),
		DisplayName:    displayName,
		Address:        address,
		Body:           text,
		FromMe:         true,
		Status:         status.Sent,
		Timestamp:      time.Now().UnixMilli(),
	}

	if _, err := e.db.InsertMessage(m); err != nil {
		return nil, fmt.Errorf("record local message: %w", err)
	}

	e.publishCreated(m)
	return m, nil
}

// fromMe derives directionality from which side authored the message:
// against the configured account identity when available, else against
// the payload contact (the counterparty).
func (e *Engine) fromMe(ev *webhook.MessageEvent) bool {
	if e.account != "" {
		return ev.From == e.account
	}
	return ev.From != ev.Address
}

// publishCreated runs strictly after the insert committed. Fan-out is
// best-effort; nothing here can roll back or fail the write.
func (e *Engine) publishCreated(m *store.Message) {
	e.bus.Publish(bus.TopicConversation(m.ConversationID), bus.Event{
		Kind:      bus.KindMessageCreated,
		Timestamp: time.Now(),
		Payload:   *m,
	})

	summary, err := e.db.GetConversation(m.ConversationID)
	if err != nil {
		e.logger.Error("failed to load summary for fan-out", zap.Error(err),
			zap.String("conversation_id", m.ConversationID))
		return
	}
	if summary == nil {
		return
	}
	e.bus.Publish(bus.TopicConversations, bus.Event{
		Kind:      bus.KindConversationUpdated,
		Timestamp: time.Now(),
		Payload:   *summary,
	})
}
