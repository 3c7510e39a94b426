// Package queue carries workflow events to RabbitMQ and feeds analysis
// results from the inference workers into the ingestion service.
package queue

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/iliyamo/highway-inspection/internal/service"
)

// FlightEvent is the wire form of a committed workflow transition.
type FlightEvent struct {
	Type          string `json:"type"`
	ApplicationID uint64 `json:"application_id,omitempty"`
	MissionID     uint64 `json:"mission_id,omitempty"`
	AirspaceID    uint64 `json:"airspace_id,omitempty"`
	UserID        uint64 `json:"user_id,omitempty"`
	Status        string `json:"status,omitempty"`
	Reason        string `json:"reason,omitempty"`
	OccurredAt    string `json:"occurred_at"`
}

func newFlightEvent(ev service.Event) FlightEvent {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	return FlightEvent{
		Type:          ev.Type,
		ApplicationID: ev.ApplicationID,
		MissionID:     ev.MissionID,
		AirspaceID:    ev.AirspaceID,
		UserID:        ev.UserID,
		Status:        ev.Status,
		Reason:        ev.Reason,
		OccurredAt:    at.UTC().Format(time.RFC3339),
	}
}

// errEmptyMessage marks a delivery with no results in it.
var errEmptyMessage = errors.New("analysis message carries no results")

// decodeAnalysis accepts a single result object, a bare array or
// {"results": [...]}.
func decodeAnalysis(body []byte) ([]service.ResultInput, error) {
	body = bytes.TrimSpace(body)
	if bytes.HasPrefix(body, []byte("[")) {
		var list []service.ResultInput
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return nil, errEmptyMessage
		}
		return list, nil
	}
	var batch struct {
		Results []service.ResultInput `json:"results"`
	}
	if err := json.Unmarshal(body, &batch); err != nil {
		return nil, err
	}
	if batch.Results != nil {
		if len(batch.Results) == 0 {
			return nil, errEmptyMessage
		}
		return batch.Results, nil
	}
	var one service.ResultInput
	if err := json.Unmarshal(body, &one); err != nil {
		return nil, err
	}
	if one.MissionID == 0 && one.VideoID == 0 && one.TargetType == "" {
		return nil, errEmptyMessage
	}
	return []service.ResultInput{one}, nil
}
