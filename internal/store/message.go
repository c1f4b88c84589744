package store

import (
	"database/sql"
	"time"

	"github.com/matheus3301/chatd/internal/status"
)

// maxRawBytes bounds the retained raw-payload snapshot per message.
const maxRawBytes = 16 << 10

// InsertMessage writes a message only if (conversation_id, message_id)
// does not already exist. Returns whether a row was inserted; a replayed
// or concurrently duplicated insert is a benign no-op, not an error. On
// insert the message's storage ID is filled in.
func (db *DB) InsertMessage(m *Message) (bool, error) {
	raw := m.Raw
	if len(raw) > maxRawBytes {
		raw = raw[:maxRawBytes]
	}
	now := time.Now().UnixMilli()
	res, err := db.Exec(`
		INSERT INTO messages (conversation_id, message_id, correlation_id, display_name, address, body, from_me, status, timestamp, raw, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id, message_id) DO NOTHING`,
		m.ConversationID, m.MessageID, m.CorrelationID, m.DisplayName, m.Address, m.Body, m.FromMe, string(m.Status), m.Timestamp, raw, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, err
	}
	m.ID = id
	return true, nil
}

// AdvanceStatus applies the status lattice to every message matched by
// the primary identity when present, else the secondary identity. Rows
// whose current status already outranks the incoming one are untouched,
// and matching zero rows is success: a status event may arrive before its
// message is visible. Returns the number of rows advanced.
func (db *DB) AdvanceStatus(messageID, correlationID string, incoming status.Status) (int64, error) {
	match, identity := `message_id = ?2`, messageID
	if messageID == "" {
		match, identity = `correlation_id = ?2`, correlationID
	}

	res, err := db.Exec(`
		UPDATE messages SET status = ?1
		WHERE `+match+`
		AND (CASE status WHEN 'sent' THEN 0 WHEN 'delivered' THEN 1 WHEN 'read' THEN 2 ELSE -1 END)
		  < (CASE ?1 WHEN 'sent' THEN 0 WHEN 'delivered' THEN 1 WHEN 'read' THEN 2 ELSE -1 END)`,
		string(incoming), identity)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetMessage returns one message by its unique identity, or nil if absent.
func (db *DB) GetMessage(conversationID, messageID string) (*Message, error) {
	row := db.QueryRow(`
		SELECT id, conversation_id, message_id, correlation_id, display_name, address, body, from_me, status, timestamp
		FROM messages
		WHERE conversation_id = ? AND message_id = ?`, conversationID, messageID)

	var m Message
	var st string
	err := row.Scan(&m.ID, &m.ConversationID, &m.MessageID, &m.CorrelationID, &m.DisplayName, &m.Address, &m.Body, &m.FromMe, &st, &m.Timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.Status = status.Status(st)
	return &m, nil
}

// ListMessages returns all messages for a conversation ordered ascending
// by timestamp, ties broken by insertion order. The order is stable
// across repeated calls with no new writes.
func (db *DB) ListMessages(conversationID string) ([]Message, error) {
	rows, err := db.Query(`
		SELECT id, conversation_id, message_id, correlation_id, display_name, address, body, from_me, status, timestamp
		FROM messages
		WHERE conversation_id = ?
		ORDER BY timestamp ASC, id ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		var st string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.MessageID, &m.CorrelationID, &m.DisplayName, &m.Address, &m.Body, &m.FromMe, &st, &m.Timestamp); err != nil {
			return nil, err
		}
		m.Status = status.Status(st)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
