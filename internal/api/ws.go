package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/matheus3301/chatd/internal/bus"
	"github.com/matheus3301/chatd/internal/store"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Command is a frame sent by the subscriber to manage its topic
// membership. Joining a conversation is always explicit; it is never a
// side effect of connecting.
type Command struct {
	Action         string `json:"action"`
	ConversationID string `json:"conversation_id"`
}

// EventFrame is a frame pushed to the subscriber.
type EventFrame struct {
	Kind           string         `json:"kind"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Message        *store.Message `json:"message,omitempty"`
	Summary        *store.Summary `json:"summary,omitempty"`
}

// handleWS serves one live subscriber. Every connection receives
// conversation.updated events from the global topic; message.created
// events require a join command per conversation. Delivery is
// best-effort: a disconnected subscriber misses events and catches up on
// its next history fetch.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess := &wsSession{
		bus:    s.bus,
		conn:   conn,
		logger: s.logger,
		out:    make(chan EventFrame, 64),
		unsubs: make(map[string]func()),
	}
	defer sess.teardown()

	globalCh, unsubGlobal := s.bus.Subscribe(bus.TopicConversations, 64)
	defer unsubGlobal()
	go sess.forward(ctx, globalCh)

	go sess.readLoop(ctx, cancel)

	sess.writeLoop(ctx)
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

type wsSession struct {
	bus    *bus.Bus
	conn   *websocket.Conn
	logger *zap.Logger
	out    chan EventFrame

	mu     sync.Mutex
	unsubs map[string]func()
}

// readLoop consumes join/leave commands until the peer goes away, then
// cancels the session.
func (sess *wsSession) readLoop(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	for {
		var cmd Command
		if err := wsjson.Read(ctx, sess.conn, &cmd); err != nil {
			return
		}
		switch cmd.Action {
		case "join":
			sess.join(ctx, cmd.ConversationID)
		case "leave":
			sess.leave(cmd.ConversationID)
		}
	}
}

func (sess *wsSession) join(ctx context.Context, conversationID string) {
	if conversationID == "" {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if _, ok := sess.unsubs[conversationID]; ok {
		return
	}
	ch, unsub := sess.bus.Subscribe(bus.TopicConversation(conversationID), 64)
	sess.unsubs[conversationID] = unsub
	go sess.forward(ctx, ch)
}

func (sess *wsSession) leave(conversationID string) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if unsub, ok := sess.unsubs[conversationID]; ok {
		unsub()
		delete(sess.unsubs, conversationID)
	}
}

// forward translates bus events into outbound frames. The send is
// non-blocking: a subscriber that cannot keep up loses its own events
// without affecting the bus or other subscribers.
func (sess *wsSession) forward(ctx context.Context, ch <-chan bus.Event) {
	for {
		select {
		case evt := <-ch:
			frame := EventFrame{Kind: evt.Kind}
			switch p := evt.Payload.(type) {
			case store.Message:
				frame.ConversationID = p.ConversationID
				frame.Message = &p
			case store.Summary:
				frame.ConversationID = p.ConversationID
				frame.Summary = &p
			}
			select {
			case sess.out <- frame:
			default:
			}
		case <-ctx.Done():
			return
		}
	}
}

func (sess *wsSession) writeLoop(ctx context.Context) {
	for {
		select {
		case frame := <-sess.out:
			if err := wsjson.Write(ctx, sess.conn, frame); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (sess *wsSession) teardown() {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	for id, unsub := range sess.unsubs {
		unsub()
		delete(sess.unsubs, id)
	}
}
