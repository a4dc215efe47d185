package types

import "time"

// EventType classifies audit events
type EventType string

const (
	EventCall   EventType = "CALL"
	EventResult EventType = "RESULT"
	EventError  EventType = "ERROR"
)

// Event is one immutable entry of the audit history. A CALL event stands on
// its own; RESULT and ERROR events point back at their CALL via RelatedID.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"eventType"`
	Method    *string     `json:"method,omitempty"`
	Params    interface{} `json:"params,omitempty"`
	Result    interface{} `json:"result,omitempty"`
	RelatedID *string     `json:"relatedId,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
