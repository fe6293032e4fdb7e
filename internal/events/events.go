package events

import "github.com/zsprackett/usagebar/internal/usage"

const (
	TypeFetchStarted = "fetch_started"
	TypeSnapshot     = "snapshot"
	TypeFetchFailed  = "fetch_failed"
)

// Event is a real-time update pushed to web clients.
type Event struct {
	Type  string      `json:"type"`
	State usage.State `json:"state"`
}

// Broadcaster sends events to connected web clients. Broadcast must not block.
type Broadcaster interface {
	Broadcast(e Event)
}
