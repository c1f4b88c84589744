package client

import (
	"context"
	"strings"

	"github.com/matheus3301/chatd/internal/api"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Stream is one live websocket subscription. The connection carries the
// global summary feed from the moment it opens; per-conversation topics
// are joined explicitly.
type Stream struct {
	conn *websocket.Conn
}

// Stream dials the daemon's websocket endpoint.
func (c *Client) Stream(ctx context.Context) (*Stream, error) {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/api/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, err
	}
	return &Stream{conn: conn}, nil
}

// Join subscribes the stream to one conversation's message.created feed.
func (s *Stream) Join(ctx context.Context, conversationID string) error {
	return wsjson.Write(ctx, s.conn, api.Command{Action: "join", ConversationID: conversationID})
}

// Leave drops one conversation subscription.
func (s *Stream) Leave(ctx context.Context, conversationID string) error {
	return wsjson.Write(ctx, s.conn, api.Command{Action: "leave", ConversationID: conversationID})
}

// Next blocks until the next event frame arrives or ctx is done.
func (s *Stream) Next(ctx context.Context) (*api.EventFrame, error) {
	var frame api.EventFrame
	if err := wsjson.Read(ctx, s.conn, &frame); err != nil {
		return nil, err
	}
	return &frame, nil
}

// Close tears the connection down.
func (s *Stream) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
