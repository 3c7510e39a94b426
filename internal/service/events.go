package service

import (
	"context"
	"time"
)

// Event types published after a transition commits.
const (
	EventApplicationSubmitted  = "application.submitted"
	EventApplicationApproved   = "application.approved"
	EventApplicationRejected   = "application.rejected"
	EventApplicationTerminated = "application.terminated"
	EventApplicationWithdrawn  = "application.withdrawn"
	EventApplicationExpired    = "application.expired"
	EventMissionLaunched       = "mission.launched"
	EventMissionCompleted      = "mission.completed"
)

// Event describes a committed workflow transition.
type Event struct {
	Type          string
	ApplicationID uint64
	MissionID     uint64
	AirspaceID    uint64
	UserID        uint64
	Status        string
	Reason        string
	At            time.Time
}

// Publisher delivers events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }
