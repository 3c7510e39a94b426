package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/iliyamo/highway-inspection/internal/model"
)

// VideoInput registers footage collected during a mission.
type VideoInput struct {
	MissionID     uint64            `json:"mission_id"`
	VideoPath     string            `json:"video_path"`
	CollectedTime string            `json:"collected_time"`
	RoadSection   *string           `json:"road_section,omitempty"`
	FileFormat    model.VideoFormat `json:"file_format"`
	FileSize      *int64            `json:"file_size,omitempty"`
	Duration      *int              `json:"duration,omitempty"`
}

// AlertInput raises an alert.
type AlertInput struct {
	Title        string              `json:"title"`
	EventType    string              `json:"event_type"`
	Severity     model.AlertSeverity `json:"severity"`
	RoadSection  *string             `json:"road_section,omitempty"`
	OccurredTime string              `json:"occurred_time"`
	VideoID      *uint64             `json:"video_id,omitempty"`
	MissionID    *uint64             `json:"mission_id,omitempty"`
}

// ArtifactService manages mission videos, their analysis results and
// alerts. Operators reach a video through the mission they flew.
type ArtifactService struct {
	base
}

// NewArtifactService builds the artifact service.
func NewArtifactService(d Deps) *ArtifactService {
	return &ArtifactService{base: newBase(d)}
}

// CreateVideo records a video for a mission the caller operated.
func (s *ArtifactService) CreateVideo(ctx context.Context, caller Caller, in VideoInput) (*model.Video, error) {
	v := validation{}
	vid := &model.Video{
		MissionID:   in.MissionID,
		VideoPath:   strings.TrimSpace(in.VideoPath),
		RoadSection: in.RoadSection,
		FileFormat:  model.VideoFormat(strings.ToLower(string(in.FileFormat))),
		FileSize:    in.FileSize,
		Duration:    in.Duration,
	}
	if vid.MissionID == 0 {
		v.add("mission_id", "required")
	}
	if vid.VideoPath == "" {
		v.add("video_path", "required")
	}
	if !vid.FileFormat.Valid() {
		v.add("file_format", "must be mp4, avi, mov or mkv")
	}
	if t, err := s.times.Parse(in.CollectedTime); err != nil {
		v.add("collected_time", err.Error())
	} else {
		vid.CollectedTime = t
	}
	if vid.FileSize != nil && *vid.FileSize < 0 {
		v.add("file_size", "must not be negative")
	}
	if vid.Duration != nil && *vid.Duration < 0 {
		v.add("duration", "must not be negative")
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	err := s.store.InTx(ctx, func(tx Store) error {
		m, err := tx.Missions().GetByID(ctx, vid.MissionID)
		if err != nil {
			return err
		}
		if !caller.IsAdmin() && m.OperatorID != caller.UserID {
			return fmt.Errorf("%w: mission %d", ErrNotOwner, m.ID)
		}
		return tx.Videos().Create(ctx, vid)
	})
	if err != nil {
		return nil, err
	}
	return vid, nil
}

// GetVideo returns a video visible to the caller.
func (s *ArtifactService) GetVideo(ctx context.Context, caller Caller, id uint64) (*model.Video, error) {
	vid, err := s.store.Videos().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller.IsAdmin() {
		return vid, nil
	}
	m, err := s.store.Missions().GetByID(ctx, vid.MissionID)
	if err != nil {
		return nil, err
	}
	if m.OperatorID != caller.UserID {
		return nil, fmt.Errorf("%w: video %d", ErrNotOwner, id)
	}
	return vid, nil
}

// ListVideos pages through videos; operators see videos of their missions.
func (s *ArtifactService) ListVideos(ctx context.Context, caller Caller, f VideoFilter) (model.PageResult[model.Video], error) {
	if !caller.IsAdmin() {
		f.OperatorID = caller.UserID
	}
	f.Page = f.Page.Normalize()
	items, total, err := s.store.Videos().List(ctx, f)
	if err != nil {
		return model.PageResult[model.Video]{}, err
	}
	return model.NewPageResult(items, total, f.Page), nil
}

// VideoResults lists the analysis results of a video.
func (s *ArtifactService) VideoResults(ctx context.Context, caller Caller, id uint64) ([]model.AnalysisResult, error) {
	if _, err := s.GetVideo(ctx, caller, id); err != nil {
		return nil, err
	}
	return s.store.Results().ListByVideo(ctx, id)
}

// CreateAlert raises an alert. It is called by the AI collaborator and
// needs no caller identity.
func (s *ArtifactService) CreateAlert(ctx context.Context, in AlertInput) (*model.AlertEvent, error) {
	v := validation{}
	a := &model.AlertEvent{
		Title:       strings.TrimSpace(in.Title),
		EventType:   strings.TrimSpace(in.EventType),
		Severity:    in.Severity,
		RoadSection: in.RoadSection,
		VideoID:     in.VideoID,
		MissionID:   in.MissionID,
		Status:      model.AlertNew,
	}
	if a.Severity == "" {
		a.Severity = model.SeverityMedium
	}
	if a.Title == "" {
		v.add("title", "required")
	}
	if a.EventType == "" {
		v.add("event_type", "required")
	}
	if !a.Severity.Valid() {
		v.add("severity", "must be low, medium or high")
	}
	if t, err := s.times.Parse(in.OccurredTime); err != nil {
		v.add("occurred_time", err.Error())
	} else {
		a.OccurredTime = t
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	err := s.store.InTx(ctx, func(tx Store) error {
		if a.MissionID != nil {
			if _, err := tx.Missions().GetByID(ctx, *a.MissionID); err != nil {
				return err
			}
		}
		if a.VideoID != nil {
			if _, err := tx.Videos().GetByID(ctx, *a.VideoID); err != nil {
				return err
			}
		}
		return tx.Alerts().Create(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetAlert returns one alert.
func (s *ArtifactService) GetAlert(ctx context.Context, id uint64) (*model.AlertEvent, error) {
	return s.store.Alerts().GetByID(ctx, id)
}

// ListAlerts pages through alerts.
func (s *ArtifactService) ListAlerts(ctx context.Context, f AlertFilter) (model.PageResult[model.AlertEvent], error) {
	f.Page = f.Page.Normalize()
	items, total, err := s.store.Alerts().List(ctx, f)
	if err != nil {
		return model.PageResult[model.AlertEvent]{}, err
	}
	return model.NewPageResult(items, total, f.Page), nil
}

// ListActiveAlerts returns alerts that are not closed, newest first.
func (s *ArtifactService) ListActiveAlerts(ctx context.Context) ([]model.AlertEvent, error) {
	return s.store.Alerts().ListActive(ctx)
}

// UpdateAlertStatus moves an alert to status.
func (s *ArtifactService) UpdateAlertStatus(ctx context.Context, id uint64, status model.AlertStatus) (*model.AlertEvent, error) {
	if !status.Valid() {
		return nil, invalidField("status", "must be new, confirmed, processing or closed")
	}
	var out *model.AlertEvent
	err := s.store.InTx(ctx, func(tx Store) error {
		if _, err := tx.Alerts().GetByID(ctx, id); err != nil {
			return err
		}
		if err := tx.Alerts().SetStatus(ctx, id, status); err != nil {
			return err
		}
		a, err := tx.Alerts().GetByID(ctx, id)
		out = a
		return err
	})
	return out, err
}
