// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"profile_server/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Profile Domain Events
// =============================================================================

// ProfileChanged is published when any part of a user's profile changes
// upstream and cached aggregates for that user must be discarded.
type ProfileChanged struct {
	BaseEvent
	UserID string   `json:"uid"`
	Fields []string `json:"fields,omitempty"`
}

func (e ProfileChanged) EventName() string { return "profile.changed" }

// NewProfileChanged builds a ProfileChanged event stamped with the current time.
func NewProfileChanged(userID string, fields ...string) ProfileChanged {
	return ProfileChanged{BaseEvent: NewBaseEvent(), UserID: userID, Fields: fields}
}
