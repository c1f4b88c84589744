package view

import (
	"testing"

	"github.com/matheus3301/chatd/internal/store"
)

func msg(id int64, messageID, body string, ts int64) store.Message {
	return store.Message{ID: id, ConversationID: "c1", MessageID: messageID, Body: body, Timestamp: ts}
}

func ids(entries []store.Message) []string {
	out := make([]string, 0, len(entries))
	for _, m := range entries {
		out = append(out, m.MessageID)
	}
	return out
}

func TestPhaseTransitions(t *testing.T) {
	v := New()
	if v.Phase() != Empty {
		t.Errorf("initial phase = %v, want Empty", v.Phase())
	}
	v.BeginLoad()
	if v.Phase() != Loading {
		t.Errorf("phase = %v, want Loading", v.Phase())
	}
	v.SeedHistory(nil)
	if v.Phase() != Ready {
		t.Errorf("phase = %v, want Ready", v.Phase())
	}
}

// A live event that duplicates a fetched message must not appear twice,
// no matter that it arrived while the fetch was still in flight.
func TestBufferedEventDedupedAgainstHistory(t *testing.T) {
	v := New()
	v.BeginLoad()

	// Echoed local send arrives before the fetch resolves.
	v.ApplyLive(msg(1, "m1", "hi", 1000))

	v.SeedHistory([]store.Message{msg(1, "m1", "hi", 1000)})

	entries := v.Entries()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1: %v", len(entries), ids(entries))
	}
}

func TestBufferedNewEventRetained(t *testing.T) {
	v := New()
	v.BeginLoad()

	v.ApplyLive(msg(2, "m2", "new while loading", 2000))
	v.SeedHistory([]store.Message{msg(1, "m1", "hi", 1000)})

	entries := v.Entries()
	want := []string{"m1", "m2"}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	for i, w := range want {
		if entries[i].MessageID != w {
			t.Errorf("entries[%d] = %q, want %q", i, entries[i].MessageID, w)
		}
	}
}

func TestEventsBufferedBeforeLoadStarts(t *testing.T) {
	v := New()

	// Subscribed but fetch not yet issued.
	v.ApplyLive(msg(2, "m2", "early", 2000))
	v.BeginLoad()
	v.SeedHistory(nil)

	if got := len(v.Entries()); got != 1 {
		t.Errorf("got %d entries, want 1 (pre-load event must not be dropped)", got)
	}
}

func TestLiveAppendAfterReady(t *testing.T) {
	v := New()
	v.BeginLoad()
	v.SeedHistory([]store.Message{msg(1, "m1", "hi", 1000)})

	v.ApplyLive(msg(2, "m2", "live", 2000))
	v.ApplyLive(msg(2, "m2", "live echo", 2000))

	entries := v.Entries()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %v", len(entries), ids(entries))
	}
	if entries[1].MessageID != "m2" {
		t.Errorf("tail = %q, want m2", entries[1].MessageID)
	}
}

// Send response and broadcast echo may disagree on which identity they
// carry; either shared key suffices to dedupe.
func TestDualKeyDedupe(t *testing.T) {
	t.Run("by message id", func(t *testing.T) {
		v := New()
		v.SeedHistory([]store.Message{msg(0, "local_abc", "mine", 1000)})
		v.ApplyLive(msg(7, "local_abc", "mine", 1000))
		if got := len(v.Entries()); got != 1 {
			t.Errorf("got %d entries, want 1", got)
		}
	})

	t.Run("by storage id", func(t *testing.T) {
		v := New()
		v.SeedHistory([]store.Message{msg(7, "local_abc", "mine", 1000)})
		v.ApplyLive(msg(7, "", "mine", 1000))
		if got := len(v.Entries()); got != 1 {
			t.Errorf("got %d entries, want 1", got)
		}
	})

	t.Run("zero ids never match each other", func(t *testing.T) {
		v := New()
		v.SeedHistory([]store.Message{msg(0, "m1", "a", 1000)})
		v.ApplyLive(msg(0, "m2", "b", 2000))
		if got := len(v.Entries()); got != 2 {
			t.Errorf("got %d entries, want 2", got)
		}
	})
}

func TestRefreshSignal(t *testing.T) {
	v := New()
	v.BeginLoad()
	v.SeedHistory([]store.Message{msg(1, "m1", "hi", 1000)})

	select {
	case <-v.RefreshCh():
	default:
		t.Fatal("no refresh signal after seeding")
	}

	// A deduped event must not signal.
	v.ApplyLive(msg(1, "m1", "hi", 1000))
	select {
	case <-v.RefreshCh():
		t.Error("refresh signaled for a deduped event")
	default:
	}
}

func TestEntriesReturnsCopy(t *testing.T) {
	v := New()
	v.SeedHistory([]store.Message{msg(1, "m1", "hi", 1000)})

	entries := v.Entries()
	entries[0].Body = "mutated"

	if v.Entries()[0].Body != "hi" {
		t.Error("Entries exposed internal state")
	}
}
