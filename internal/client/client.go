// Package client wraps the daemon's HTTP and websocket API for use by
// chatctl and other subscribers.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/matheus3301/chatd/internal/store"
)

// Client is a typed HTTP client for the daemon.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the daemon listening at baseURL
// (e.g. http://127.0.0.1:8080).
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

// Send records a locally originated message and returns the stored row.
func (c *Client) Send(ctx context.Context, conversationID, displayName, address, text string) (*store.Message, error) {
	body, err := json.Marshal(map[string]string{
		"conversation_id": conversationID,
		"display_name":    displayName,
		"address":         address,
		"text":            text,
	})
	if err != nil {
		return nil, err
	}

	var msg store.Message
	if err := c.do(ctx, http.MethodPost, "/api/messages/send", body, http.StatusCreated, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Messages fetches the full ascending history of one conversation.
func (c *Client) Messages(ctx context.Context, conversationID string) ([]store.Message, error) {
	var msgs []store.Message
	if err := c.do(ctx, http.MethodGet, "/api/messages/"+conversationID, nil, http.StatusOK, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Conversations fetches the summary list, most recent first.
func (c *Client) Conversations(ctx context.Context) ([]store.Summary, error) {
	var summaries []store.Summary
	if err := c.do(ctx, http.MethodGet, "/api/conversations", nil, http.StatusOK, &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

// Webhook submits one raw provider payload for ingestion.
func (c *Client) Webhook(ctx context.Context, raw []byte) error {
	return c.do(ctx, http.MethodPost, "/api/webhook", raw, http.StatusNoContent, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, wantStatus int, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != wantStatus {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
