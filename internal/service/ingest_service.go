package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/highway-inspection/internal/model"
)

// MaxBatchResults bounds a single batch submission.
const MaxBatchResults = 500

// ResultInput is one detection submitted by the inference workers, over
// HTTP or the analysis queue.
type ResultInput struct {
	MissionID    uint64          `json:"mission_id"`
	VideoID      uint64          `json:"video_id"`
	TargetType   string          `json:"target_type"`
	OccurredTime string          `json:"occurred_time"`
	BoundingBox  json.RawMessage `json:"bounding_box,omitempty"`
	Confidence   *float64        `json:"confidence,omitempty"`
	ResultImage  *string         `json:"result_image,omitempty"`
}

// IngestService accepts analysis results from the trusted AI collaborator.
type IngestService struct {
	base
}

// NewIngestService builds the ingestion entry point.
func NewIngestService(d Deps) *IngestService {
	return &IngestService{base: newBase(d)}
}

// SubmitResult stores one result and returns the number created.
func (s *IngestService) SubmitResult(ctx context.Context, in ResultInput) (int, error) {
	return s.submit(ctx, []ResultInput{in}, false)
}

// SubmitResults stores a batch atomically: either every result is created
// or none is.
func (s *IngestService) SubmitResults(ctx context.Context, in []ResultInput) (int, error) {
	if len(in) == 0 {
		return 0, invalidField("results", "at least one result is required")
	}
	if len(in) > MaxBatchResults {
		return 0, invalidField("results", fmt.Sprintf("at most %d results per batch", MaxBatchResults))
	}
	return s.submit(ctx, in, true)
}

func (s *IngestService) submit(ctx context.Context, in []ResultInput, batch bool) (int, error) {
	rows := make([]model.AnalysisResult, len(in))
	v := validation{}
	for i, r := range in {
		prefix := ""
		if batch {
			prefix = fmt.Sprintf("results[%d].", i)
		}
		rows[i] = s.toResult(r, prefix, v)
	}
	if err := v.err(); err != nil {
		return 0, err
	}

	err := s.store.InTx(ctx, func(tx Store) error {
		seen := map[uint64]uint64{} // video -> mission
		for i := range rows {
			r := &rows[i]
			if mid, ok := seen[r.VideoID]; !ok {
				if _, err := tx.Missions().GetByID(ctx, r.MissionID); err != nil {
					return err
				}
				video, err := tx.Videos().GetByID(ctx, r.VideoID)
				if err != nil {
					return err
				}
				if video.MissionID != r.MissionID {
					return invalidField("video_id", fmt.Sprintf("video %d does not belong to mission %d", r.VideoID, r.MissionID))
				}
				seen[r.VideoID] = r.MissionID
			} else if mid != r.MissionID {
				return invalidField("video_id", fmt.Sprintf("video %d does not belong to mission %d", r.VideoID, r.MissionID))
			}
			if err := tx.Results().Create(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.Debug("analysis results stored", zap.Int("count", len(rows)))
	return len(rows), nil
}

func (s *IngestService) toResult(in ResultInput, prefix string, v validation) model.AnalysisResult {
	r := model.AnalysisResult{
		MissionID:   in.MissionID,
		VideoID:     in.VideoID,
		TargetType:  strings.TrimSpace(in.TargetType),
		Confidence:  in.Confidence,
		ResultImage: in.ResultImage,
	}
	if r.MissionID == 0 {
		v.add(prefix+"mission_id", "required")
	}
	if r.VideoID == 0 {
		v.add(prefix+"video_id", "required")
	}
	if r.TargetType == "" || len(r.TargetType) > 50 {
		v.add(prefix+"target_type", "must be 1-50 characters")
	}
	if t, err := s.times.Parse(in.OccurredTime); err != nil {
		v.add(prefix+"occurred_time", err.Error())
	} else {
		r.OccurredTime = t
	}
	if c := in.Confidence; c != nil && (*c < 0 || *c > 1) {
		v.add(prefix+"confidence", "must be between 0 and 1")
	}
	if bb := in.BoundingBox; len(bb) > 0 && string(bb) != "null" {
		var probe any
		if err := json.Unmarshal(bb, &probe); err != nil {
			v.add(prefix+"bounding_box", "must be valid JSON")
		} else {
			r.BoundingBox = bb
		}
	}
	return r
}
