package bus

import "time"

// Event kinds published by the ingestion engine.
const (
	// KindMessageCreated carries a full store.Message on the topic of the
	// conversation it belongs to.
	KindMessageCreated = "message.created"
	// KindConversationUpdated carries a store.Summary on the global topic.
	KindConversationUpdated = "conversation.updated"
)

// TopicConversations is the global topic every connected subscriber
// receives summary updates on, regardless of which conversations it joined.
const TopicConversations = "conversations"

// TopicConversation returns the topic name for one conversation.
func TopicConversation(conversationID string) string {
	return "conversation/" + conversationID
}

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
