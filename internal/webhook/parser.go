// Package webhook classifies raw provider payloads into normalized events
// ready for ingestion. Payloads are not schema-validated upstream, so every
// missing piece of substructure is a skippable ErrUnrecognized, never a
// panic or a partial result.
package webhook

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrUnrecognized marks a payload (or payload entry) that cannot be routed
// to message insertion or status update. Callers log and skip; state is
// never mutated for unrecognized payloads.
var ErrUnrecognized = errors.New("unrecognized payload")

// Kind routes a classified event.
type Kind int

const (
	KindMessage Kind = iota
	KindStatus
)

// MessageEvent is a normalized inbound message ready for insertion.
type MessageEvent struct {
	ConversationID string
	DisplayName    string
	Address        string
	MessageID      string
	From           string
	Body           string
	Timestamp      time.Time
	Raw            json.RawMessage
}

// StatusEvent is a normalized delivery-status update. MessageID is the
// primary identity; CorrelationID is the secondary identity used when the
// primary is not yet known to the sender of the event.
type StatusEvent struct {
	MessageID     string
	CorrelationID string
	Status        string
}

// Event is the result of classifying one payload.
type Event struct {
	Kind    Kind
	Message *MessageEvent
	Status  *StatusEvent
}

type payload struct {
	MetaData struct {
		Entry []struct {
			Changes []struct {
				Value value `json:"value"`
			} `json:"changes"`
		} `json:"entry"`
	} `json:"metaData"`
}

type value struct {
	Contacts []contact     `json:"contacts"`
	Messages []message     `json:"messages"`
	Statuses []statusEntry `json:"statuses"`
}

type contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type message struct {
	ID        string       `json:"id"`
	From      string       `json:"from"`
	Timestamp epochSeconds `json:"timestamp"`
	Text      struct {
		Body string `json:"body"`
	} `json:"text"`
	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON retains the original message entry verbatim so the store
// can keep a raw snapshot for audit.
func (m *message) UnmarshalJSON(data []byte) error {
	type plain message
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = message(p)
	m.Raw = append(json.RawMessage(nil), data...)
	return nil
}

type statusEntry struct {
	ID        string `json:"id"`
	MetaMsgID string `json:"meta_msg_id"`
	Status    string `json:"status"`
}

// epochSeconds decodes provider timestamps, which arrive as integer epoch
// seconds encoded either as a JSON number or a string.
type epochSeconds struct {
	time.Time
}

func (t *epochSeconds) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	t.Time = time.Unix(secs, 0).UTC()
	return nil
}

// Classify inspects one raw payload and routes it. Message lists win over
// status lists; only the first contact, message and status entries are
// considered, matching the provider's one-entry-per-delivery contract.
func Classify(raw []byte) (*Event, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, ErrUnrecognized
	}

	if len(p.MetaData.Entry) == 0 || len(p.MetaData.Entry[0].Changes) == 0 {
		return nil, ErrUnrecognized
	}
	v := p.MetaData.Entry[0].Changes[0].Value

	switch {
	case len(v.Messages) > 0:
		return classifyMessage(v)
	case len(v.Statuses) > 0:
		return classifyStatus(v.Statuses[0])
	default:
		return nil, ErrUnrecognized
	}
}

func classifyMessage(v value) (*Event, error) {
	if len(v.Contacts) == 0 {
		return nil, ErrUnrecognized
	}
	c := v.Contacts[0]
	m := v.Messages[0]
	if c.WaID == "" || m.ID == "" {
		return nil, ErrUnrecognized
	}

	return &Event{
		Kind: KindMessage,
		Message: &MessageEvent{
			ConversationID: c.WaID,
			DisplayName:    c.Profile.Name,
			Address:        c.WaID,
			MessageID:      m.ID,
			From:           m.From,
			Body:           m.Text.Body,
			Timestamp:      m.Timestamp.Time,
			Raw:            m.Raw,
		},
	}, nil
}

func classifyStatus(s statusEntry) (*Event, error) {
	if s.ID == "" && s.MetaMsgID == "" {
		return nil, ErrUnrecognized
	}

	return &Event{
		Kind: KindStatus,
		Status: &StatusEvent{
			MessageID:     s.ID,
			CorrelationID: s.MetaMsgID,
			Status:        s.Status,
		},
	}, nil
}
