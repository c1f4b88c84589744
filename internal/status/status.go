package status

// Status represents the delivery status of a message.
type Status string

const (
	Sent      Status = "sent"
	Delivered Status = "delivered"
	Read      Status = "read"
	Unknown   Status = "unknown"
)

// ranks orders statuses for advancement. Unknown is unordered and ranks
// below every known status.
var ranks = map[Status]int{
	Sent:      0,
	Delivered: 1,
	Read:      2,
	Unknown:   -1,
}

// Rank returns the lattice rank of a status. Unrecognized values rank as
// Unknown.
func Rank(s Status) int {
	if r, ok := ranks[s]; ok {
		return r
	}
	return ranks[Unknown]
}

// Parse normalizes an external status string. Values outside the lattice
// map to Unknown rather than failing.
func Parse(raw string) Status {
	s := Status(raw)
	if _, ok := ranks[s]; ok {
		return s
	}
	return Unknown
}

// Advance returns the status a message should hold after receiving an
// incoming status event. The incoming status wins only when it strictly
// outranks the current one; stale and duplicate events are no-ops, so
// Advance is idempotent and never regresses a message.
func Advance(current, incoming Status) Status {
	if Rank(incoming) > Rank(current) {
		return incoming
	}
	return current
}
