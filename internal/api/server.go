// Package api exposes the synchronous request surface and the live
// websocket feed over HTTP. Transport framing lives here; all semantics
// live in the ingestion engine and the store.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/matheus3301/chatd/internal/bus"
	"github.com/matheus3301/chatd/internal/ingest"
	"github.com/matheus3301/chatd/internal/store"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Server is the HTTP handler for the daemon API.
type Server struct {
	db     *store.DB
	engine *ingest.Engine
	bus    *bus.Bus
	logger *zap.Logger
	mux    *http.ServeMux
}

// NewServer creates the API server over the given store, engine and bus.
func NewServer(db *store.DB, engine *ingest.Engine, b *bus.Bus, logger *zap.Logger) *Server {
	s := &Server{
		db:     db,
		engine: engine,
		bus:    b,
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/messages/send", s.handleSend)
	mux.HandleFunc("GET /api/messages/{conversation_id}", s.handleListMessages)
	mux.HandleFunc("GET /api/conversations", s.handleListConversations)
	mux.HandleFunc("POST /api/webhook", s.handleWebhook)
	mux.HandleFunc("GET /api/ws", s.handleWS)
	s.mux = mux
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type sendRequest struct {
	ConversationID string `json:"conversation_id"`
	DisplayName    string `json:"display_name"`
	Address        string `json:"address"`
	Text           string `json:"text"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ConversationID == "" || req.Text == "" {
		writeError(w, http.StatusBadRequest, "conversation_id and text are required")
		return
	}

	msg, err := s.engine.SendMessage(req.ConversationID, req.DisplayName, req.Address, req.Text)
	if err != nil {
		// No retry or queuing here: the caller re-invokes send.
		s.logger.Error("send failed", zap.Error(err), zap.String("conversation_id", req.ConversationID))
		writeError(w, http.StatusInternalServerError, "send failed")
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("conversation_id")
	msgs, err := s.db.ListMessages(conversationID)
	if err != nil {
		s.logger.Error("list messages failed", zap.Error(err), zap.String("conversation_id", conversationID))
		writeError(w, http.StatusInternalServerError, "list messages failed")
		return
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleListConversations(w http.ResponseWriter, _ *http.Request) {
	summaries, err := s.db.ListConversations()
	if err != nil {
		s.logger.Error("list conversations failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list conversations failed")
		return
	}
	if summaries == nil {
		summaries = []store.Summary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

// handleWebhook ingests one provider payload. Unrecognized payloads are
// acknowledged so the provider does not redeliver garbage forever; only
// infrastructure failures return an error status, which the provider will
// retry.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if err := s.engine.Process(raw); err != nil {
		s.logger.Error("webhook ingestion failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "ingestion failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
