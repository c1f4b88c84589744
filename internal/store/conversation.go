package store

import "database/sql"

// ListConversations returns one summary per distinct conversation,
// populated from that conversation's max-timestamp message (ties broken
// by insertion order), ordered by that timestamp descending. The summary
// is derived on read; nothing in the schema stores it.
func (db *DB) ListConversations() ([]Summary, error) {
	rows, err := db.Query(`
		SELECT m.conversation_id, m.display_name, m.address, m.body, m.timestamp
		FROM messages m
		WHERE m.id = (
			SELECT id FROM messages
			WHERE conversation_id = m.conversation_id
			ORDER BY timestamp DESC, id DESC
			LIMIT 1
		)
		ORDER BY m.timestamp DESC, m.id DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var summaries []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ConversationID, &s.DisplayName, &s.Address, &s.LastMessage, &s.LastTime); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// GetConversation returns the summary for one conversation, or nil if it
// has no messages yet.
func (db *DB) GetConversation(conversationID string) (*Summary, error) {
	row := db.QueryRow(`
		SELECT conversation_id, display_name, address, body, timestamp
		FROM messages
		WHERE conversation_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT 1`, conversationID)

	var s Summary
	err := row.Scan(&s.ConversationID, &s.DisplayName, &s.Address, &s.LastMessage, &s.LastTime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
