package types

// Event represents a typed event emitted during state transitions.
type Event struct {
	ID         string            `json:"id"`
	Sequence   uint64            `json:"sequence"`
	Timestamp  uint64            `json:"timestamp"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
