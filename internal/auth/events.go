package auth

import (
	"context"
	"time"
)

// EventType names an auth event. Values are used as MQTT topic segments,
// audit actions and metric tags.
type EventType string

const (
	EventSignup          EventType = "signup"
	EventSigninSucceeded EventType = "signin_succeeded"
	EventSigninFailed    EventType = "signin_failed"
	EventLockout         EventType = "lockout"
	EventSignout         EventType = "signout"
	EventRefresh         EventType = "refresh"
)

// Event is something that happened to an account. It never carries
// passwords or token values.
type Event struct {
	Type       EventType      `json:"type"`
	UserID     string         `json:"user_id,omitempty"`
	Identifier string         `json:"identifier,omitempty"`
	ClientIP   string         `json:"client_ip,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	At         time.Time      `json:"at"`
}

// EventSink receives auth events. Record must not block the request for
// long and must not fail it; sinks log their own errors.
type EventSink interface {
	Record(ctx context.Context, e Event)
}

type discardSink struct{}

func (discardSink) Record(context.Context, Event) {}
