package store

import "github.com/matheus3301/chatd/internal/status"

// Message is one stored message. (conversation_id, message_id) is unique:
// replaying the payload that produced a message can never create a second
// row. Status is the only field mutated after creation.
type Message struct {
	ID             int64         `json:"id"`
	ConversationID string        `json:"conversation_id"`
	MessageID      string        `json:"message_id"`
	CorrelationID  string        `json:"correlation_id,omitempty"`
	DisplayName    string        `json:"display_name"`
	Address        string        `json:"address"`
	Body           string        `json:"body"`
	FromMe         bool          `json:"from_me"`
	Status         status.Status `json:"status"`
	Timestamp      int64         `json:"timestamp"`
	Raw            []byte        `json:"-"`
}

// Summary is the derived per-conversation row shown in a conversation
// list: the latest message's text and timestamp alongside the contact
// fields. It is never stored or mutated independently.
type Summary struct {
	ConversationID string `json:"conversation_id"`
	DisplayName    string `json:"display_name"`
	Address        string `json:"address"`
	LastMessage    string `json:"last_message"`
	LastTime       int64  `json:"last_time"`
}
