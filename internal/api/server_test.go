package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/chatd/internal/bus"
	"github.com/matheus3301/chatd/internal/ingest"
	"github.com/matheus3301/chatd/internal/store"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func testServer(t *testing.T) (*Server, *store.DB, *bus.Bus) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	b := bus.New()
	engine := ingest.NewEngine(db, b, zap.NewNop(), "")
	return NewServer(db, engine, b, zap.NewNop()), db, b
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	return w
}

func TestHealth(t *testing.T) {
	srv, _, _ := testServer(t)
	w := doJSON(t, srv, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestSendAndList(t *testing.T) {
	srv, _, _ := testServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/messages/send",
		`{"conversation_id":"c1","display_name":"Ravi","address":"919937320320","text":"hello"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body)
	}

	var sent store.Message
	if err := json.Unmarshal(w.Body.Bytes(), &sent); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(sent.MessageID, "local_") {
		t.Errorf("message id = %q, want local_ prefix", sent.MessageID)
	}
	if sent.ID == 0 {
		t.Error("response carries no storage id")
	}

	w = doJSON(t, srv, http.MethodGet, "/api/messages/c1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var msgs []store.Message
	if err := json.Unmarshal(w.Body.Bytes(), &msgs); err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].MessageID != sent.MessageID {
		t.Errorf("history = %+v, want the sent message", msgs)
	}
}

func TestSendValidation(t *testing.T) {
	srv, _, _ := testServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing conversation_id", `{"text":"hi"}`},
		{"missing text", `{"conversation_id":"c1"}`},
		{"not json", `nope`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, srv, http.MethodPost, "/api/messages/send", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestListMessagesEmptyConversation(t *testing.T) {
	srv, _, _ := testServer(t)

	w := doJSON(t, srv, http.MethodGet, "/api/messages/never-seen", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("body = %q, want empty JSON array", got)
	}
}

func TestWebhookIngestion(t *testing.T) {
	srv, db, _ := testServer(t)

	payload := `{"metaData":{"entry":[{"changes":[{"value":{
		"contacts":[{"wa_id":"c1","profile":{"name":"Ravi"}}],
		"messages":[{"id":"m1","from":"c1","timestamp":"1629816561","text":{"body":"hi"}}]
	}}]}]}}`

	w := doJSON(t, srv, http.MethodPost, "/api/webhook", payload)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204: %s", w.Code, w.Body)
	}

	m, err := db.GetMessage("c1", "m1")
	if err != nil {
		t.Fatal(err)
	}
	if m == nil {
		t.Fatal("webhook payload not ingested")
	}
}

func TestWebhookUnrecognizedAcknowledged(t *testing.T) {
	srv, db, _ := testServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/webhook", `{"neither":"kind"}`)
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204 (unrecognized is not the provider's problem)", w.Code)
	}

	summaries, err := db.ListConversations()
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 0 {
		t.Errorf("unrecognized payload mutated the store")
	}
}

func TestConversationsEndpoint(t *testing.T) {
	srv, _, _ := testServer(t)

	doJSON(t, srv, http.MethodPost, "/api/messages/send", `{"conversation_id":"c1","text":"first"}`)
	doJSON(t, srv, http.MethodPost, "/api/messages/send", `{"conversation_id":"c2","text":"second"}`)

	w := doJSON(t, srv, http.MethodGet, "/api/conversations", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var summaries []store.Summary
	if err := json.Unmarshal(w.Body.Bytes(), &summaries); err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}
	// Most recent conversation first.
	if summaries[0].ConversationID != "c2" {
		t.Errorf("summaries[0] = %q, want c2", summaries[0].ConversationID)
	}
}

func TestWebsocketTopicIsolationAndGlobalFeed(t *testing.T) {
	srv, _, _ := testServer(t)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.CloseNow()

	if err := wsjson.Write(ctx, conn, Command{Action: "join", ConversationID: "a"}); err != nil {
		t.Fatal(err)
	}
	// Give the join a moment to register before publishing.
	time.Sleep(50 * time.Millisecond)

	send := func(conv, text string) {
		body, _ := json.Marshal(map[string]string{"conversation_id": conv, "text": text})
		resp, err := http.Post(ts.URL+"/api/messages/send", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("send to %s: status %d", conv, resp.StatusCode)
		}
	}

	send("b", "not for us")
	send("a", "for us")

	// Expect: summary for b (global feed), then message + summary for a.
	// Never a message.created for b.
	var gotMessageA bool
	var summaries []string
	for i := 0; i < 3; i++ {
		var frame EventFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			t.Fatalf("read frame %d: %v", i, err)
		}
		switch frame.Kind {
		case bus.KindMessageCreated:
			if frame.ConversationID != "a" {
				t.Fatalf("received message.created for %q, joined only a", frame.ConversationID)
			}
			gotMessageA = true
		case bus.KindConversationUpdated:
			summaries = append(summaries, frame.ConversationID)
		}
	}

	if !gotMessageA {
		t.Error("no message.created for joined conversation")
	}
	if len(summaries) != 2 {
		t.Errorf("got %d summary frames, want 2 (global feed covers all conversations)", len(summaries))
	}
}
