package realtime

import "encoding/json"

// EventType is the kind of row change carried by an event.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// AllEvents subscribes to every change type for the scope's filter.
var AllEvents = []EventType{EventInsert, EventUpdate, EventDelete}

// Event is one row change delivered on a subscription. Granularity is
// table+filter: consumers refetch rather than patch, so New/Old are carried
// raw and most handlers never decode them.
type Event struct {
	Table string          `json:"table"`
	Type  EventType       `json:"type"`
	New   json.RawMessage `json:"new,omitempty"`
	Old   json.RawMessage `json:"old,omitempty"`
}

// clientFrame is what a subscriber sends to join a channel.
type clientFrame struct {
	Action string      `json:"action"`
	Topic  string      `json:"topic"`
	Table  string      `json:"table"`
	Filter string      `json:"filter,omitempty"`
	Events []EventType `json:"events,omitempty"`
}

// serverFrame is what the feed sends back: change events interleaved with
// heartbeats.
type serverFrame struct {
	Type  string `json:"type"` // "change" | "heartbeat" | "error"
	Topic string `json:"topic,omitempty"`
	Event *Event `json:"event,omitempty"`
	Error string `json:"error,omitempty"`
}
