package model

import (
	"encoding/json"
	"time"
)

// VideoFormat is the container format of an uploaded inspection video.
type VideoFormat string

const (
	FormatMP4 VideoFormat = "mp4"
	FormatAVI VideoFormat = "avi"
	FormatMOV VideoFormat = "mov"
	FormatMKV VideoFormat = "mkv"
)

// Valid reports whether f is an accepted container.
func (f VideoFormat) Valid() bool {
	switch f {
	case FormatMP4, FormatAVI, FormatMOV, FormatMKV:
		return true
	}
	return false
}

// Video is footage collected during a mission.
type Video struct {
	ID            uint64      `json:"id"`
	MissionID     uint64      `json:"mission_id"`
	VideoPath     string      `json:"video_path"`
	CollectedTime time.Time   `json:"collected_time"`
	RoadSection   *string     `json:"road_section,omitempty"`
	FileFormat    VideoFormat `json:"file_format"`
	FileSize      *int64      `json:"file_size,omitempty"`
	Duration      *int        `json:"duration,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// AnalysisResult is one detection reported by the inference workers.
type AnalysisResult struct {
	ID           uint64          `json:"id"`
	MissionID    uint64          `json:"mission_id"`
	VideoID      uint64          `json:"video_id"`
	TargetType   string          `json:"target_type"`
	OccurredTime time.Time       `json:"occurred_time"`
	BoundingBox  json.RawMessage `json:"bounding_box,omitempty"`
	Confidence   *float64        `json:"confidence,omitempty"`
	ResultImage  *string         `json:"result_image,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// AlertSeverity ranks an alert.
type AlertSeverity string

const (
	SeverityLow    AlertSeverity = "low"
	SeverityMedium AlertSeverity = "medium"
	SeverityHigh   AlertSeverity = "high"
)

// Valid reports whether s is a known severity.
func (s AlertSeverity) Valid() bool {
	return s == SeverityLow || s == SeverityMedium || s == SeverityHigh
}

// AlertStatus is the handling state of an alert.
type AlertStatus string

const (
	AlertNew        AlertStatus = "new"
	AlertConfirmed  AlertStatus = "confirmed"
	AlertProcessing AlertStatus = "processing"
	AlertClosed     AlertStatus = "closed"
)

// Valid reports whether s is a known handling state.
func (s AlertStatus) Valid() bool {
	switch s {
	case AlertNew, AlertConfirmed, AlertProcessing, AlertClosed:
		return true
	}
	return false
}

// Active reports whether the alert still needs attention.
func (s AlertStatus) Active() bool {
	return s == AlertNew || s == AlertConfirmed || s == AlertProcessing
}

// AlertEvent is a road incident raised from analysis or by an operator.
type AlertEvent struct {
	ID           uint64        `json:"id"`
	Title        string        `json:"title"`
	EventType    string        `json:"event_type"`
	Severity     AlertSeverity `json:"severity"`
	RoadSection  *string       `json:"road_section,omitempty"`
	OccurredTime time.Time     `json:"occurred_time"`
	VideoID      *uint64       `json:"video_id,omitempty"`
	MissionID    *uint64       `json:"mission_id,omitempty"`
	Status       AlertStatus   `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}
