// Package view reconstructs a consistent conversation view on a
// subscriber from a point-in-time history fetch plus a live event stream,
// tolerating live events that arrive before, during or after the fetch.
package view

import (
	"sync"

	"github.com/matheus3301/chatd/internal/store"
)

// Phase is the lifecycle of one open conversation view.
type Phase int

const (
	Empty Phase = iota
	Loading
	Ready
)

// View merges a history fetch with live message.created events into one
// deduplicated, time-ordered list. Live events are appended to the tail;
// that is correct because the broadcaster only publishes after commit, so
// a live message's timestamp is never older than the fetched history.
// The view is not authoritative and converges to server state on the next
// fetch.
type View struct {
	mu      sync.Mutex
	phase   Phase
	entries []store.Message
	pending []store.Message
	refresh chan struct{}
}

// New creates an empty view.
func New() *View {
	return &View{
		refresh: make(chan struct{}, 1),
	}
}

// Phase returns the current lifecycle phase.
func (v *View) Phase() Phase {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.phase
}

// RefreshCh signals that Entries changed. The channel is buffered and
// coalescing, never blocking.
func (v *View) RefreshCh() <-chan struct{} {
	return v.refresh
}

// BeginLoad marks the start of a history fetch. Live events arriving
// until SeedHistory resolves are buffered, not dropped.
func (v *View) BeginLoad() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.phase = Loading
}

// SeedHistory installs the fetched history and drains any events that
// were buffered while the fetch was in flight, then enters Ready.
func (v *View) SeedHistory(msgs []store.Message) {
	v.mu.Lock()
	v.entries = append([]store.Message(nil), msgs...)
	for _, m := range v.pending {
		v.appendLocked(m)
	}
	v.pending = nil
	v.phase = Ready
	v.mu.Unlock()
	v.signalRefresh()
}

// ApplyLive feeds one live message into the view. Before the history
// fetch resolves the message is buffered; once Ready it is appended
// through dedupe.
func (v *View) ApplyLive(m store.Message) {
	v.mu.Lock()
	if v.phase != Ready {
		v.pending = append(v.pending, m)
		v.mu.Unlock()
		return
	}
	changed := v.appendLocked(m)
	v.mu.Unlock()
	if changed {
		v.signalRefresh()
	}
}

// Entries returns a copy of the merged list.
func (v *View) Entries() []store.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]store.Message(nil), v.entries...)
}

// appendLocked appends m unless an entry already shares its external
// message id or its storage id. The dual key matters because a local send
// can surface twice: once via the synchronous send response and once via
// the broadcast echo, in either order.
func (v *View) appendLocked(m store.Message) bool {
	for _, existing := range v.entries {
		if existing.MessageID != "" && m.MessageID != "" && existing.MessageID == m.MessageID {
			return false
		}
		if existing.ID != 0 && m.ID != 0 && existing.ID == m.ID {
			return false
		}
	}
	v.entries = append(v.entries, m)
	return true
}

func (v *View) signalRefresh() {
	select {
	case v.refresh <- struct{}{}:
	default:
	}
}
