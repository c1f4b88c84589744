package status

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		raw  string
		want Status
	}{
		{"sent", Sent},
		{"delivered", Delivered},
		{"read", Read},
		{"unknown", Unknown},
		{"seen", Unknown},
		{"", Unknown},
	}

	for _, tt := range tests {
		if got := Parse(tt.raw); got != tt.want {
			t.Errorf("Parse(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestAdvance(t *testing.T) {
	tests := []struct {
		name     string
		current  Status
		incoming Status
		want     Status
	}{
		{"sent to delivered", Sent, Delivered, Delivered},
		{"delivered to read", Delivered, Read, Read},
		{"sent to read skips delivered", Sent, Read, Read},
		{"stale replay ignored", Delivered, Sent, Delivered},
		{"duplicate is no-op", Read, Read, Read},
		{"read never regresses", Read, Delivered, Read},
		{"unknown current yields to any", Unknown, Sent, Sent},
		{"unknown incoming never advances", Delivered, Unknown, Delivered},
		{"unknown on unknown", Unknown, Unknown, Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Advance(tt.current, tt.incoming); got != tt.want {
				t.Errorf("Advance(%q, %q) = %q, want %q", tt.current, tt.incoming, got, tt.want)
			}
		})
	}
}

// The final status must equal the maximum-rank status seen regardless of
// the order events arrive in.
func TestAdvanceOrderIndependent(t *testing.T) {
	orders := [][]Status{
		{Sent, Delivered, Read},
		{Read, Delivered, Sent},
		{Delivered, Read, Sent},
		{Read, Sent, Delivered},
	}

	for _, order := range orders {
		current := Sent
		for _, incoming := range order {
			current = Advance(current, incoming)
		}
		if current != Read {
			t.Errorf("order %v ended at %q, want %q", order, current, Read)
		}
	}
}
