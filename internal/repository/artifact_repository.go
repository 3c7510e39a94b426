package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/highway-inspection/internal/model"
	"github.com/iliyamo/highway-inspection/internal/service"
)

// VideoRepo reads and writes videos.
type VideoRepo struct{ q querier }

const videoCols = `v.id, v.mission_id, v.video_path, v.collected_time, v.road_section, v.file_format, v.file_size, v.duration, v.created_at`

func scanVideo(row interface{ Scan(...any) error }) (model.Video, error) {
	var (
		v        model.Video
		section  sql.NullString
		size     sql.NullInt64
		duration sql.NullInt32
	)
	err := row.Scan(&v.ID, &v.MissionID, &v.VideoPath, &v.CollectedTime, &section, &v.FileFormat, &size, &duration, &v.CreatedAt)
	if section.Valid {
		v.RoadSection = &section.String
	}
	if size.Valid {
		v.FileSize = &size.Int64
	}
	if duration.Valid {
		d := int(duration.Int32)
		v.Duration = &d
	}
	return v, err
}

func (r VideoRepo) Create(ctx context.Context, v *model.Video) error {
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO videos (mission_id, video_path, collected_time, road_section, file_format, file_size, duration) VALUES (?,?,?,?,?,?,?)",
		v.MissionID, v.VideoPath, v.CollectedTime, v.RoadSection, v.FileFormat, v.FileSize, v.Duration)
	if err != nil {
		return err
	}
	v.ID, err = lastID(res)
	v.CreatedAt = time.Now().UTC()
	return err
}

func (r VideoRepo) GetByID(ctx context.Context, id uint64) (*model.Video, error) {
	v, err := scanVideo(r.q.QueryRowContext(ctx, "SELECT "+videoCols+" FROM videos v WHERE v.id=?", id))
	if err != nil {
		return nil, noRows(err, "video", id)
	}
	return &v, nil
}

func (r VideoRepo) List(ctx context.Context, f service.VideoFilter) ([]model.Video, int, error) {
	var w filter
	from := "videos v"
	if f.MissionID != 0 {
		w.add("v.mission_id=?", f.MissionID)
	}
	if f.OperatorID != 0 {
		from += " JOIN missions m ON m.id = v.mission_id"
		w.add("m.operator_id=?", f.OperatorID)
	}
	var total int
	if err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+from+" WHERE "+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args := append(append([]any{}, w.args...), f.PageSize, f.Offset())
	rows, err := r.q.QueryContext(ctx, "SELECT "+videoCols+" FROM "+from+" WHERE "+w.String()+
		" ORDER BY v.collected_time DESC, v.id DESC LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []model.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	return out, total, rows.Err()
}

// ResultRepo reads and writes analysis_results.
type ResultRepo struct{ q querier }

func (r ResultRepo) Create(ctx context.Context, res *model.AnalysisResult) error {
	var bbox any
	if len(res.BoundingBox) > 0 {
		bbox = string(res.BoundingBox)
	}
	result, err := r.q.ExecContext(ctx,
		"INSERT INTO analysis_results (mission_id, video_id, target_type, occurred_time, bounding_box, confidence, result_image) VALUES (?,?,?,?,?,?,?)",
		res.MissionID, res.VideoID, res.TargetType, res.OccurredTime, bbox, res.Confidence, res.ResultImage)
	if err != nil {
		return err
	}
	res.ID, err = lastID(result)
	res.CreatedAt = time.Now().UTC()
	return err
}

func (r ResultRepo) ListByVideo(ctx context.Context, videoID uint64) ([]model.AnalysisResult, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, mission_id, video_id, target_type, occurred_time,
		bounding_box, confidence, result_image, created_at
		FROM analysis_results WHERE video_id=? ORDER BY occurred_time, id`, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AnalysisResult
	for rows.Next() {
		var (
			res   model.AnalysisResult
			bbox  []byte
			conf  sql.NullFloat64
			image sql.NullString
		)
		if err := rows.Scan(&res.ID, &res.MissionID, &res.VideoID, &res.TargetType, &res.OccurredTime,
			&bbox, &conf, &image, &res.CreatedAt); err != nil {
			return nil, err
		}
		if len(bbox) > 0 {
			res.BoundingBox = bbox
		}
		if conf.Valid {
			res.Confidence = &conf.Float64
		}
		if image.Valid {
			res.ResultImage = &image.String
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// AlertRepo reads and writes alert_events.
type AlertRepo struct{ q querier }

const alertCols = `id, title, event_type, severity, road_section, occurred_time, video_id, mission_id, status, created_at, updated_at`

func scanAlert(row interface{ Scan(...any) error }) (model.AlertEvent, error) {
	var (
		a                  model.AlertEvent
		section            sql.NullString
		videoID, missionID sql.NullInt64
	)
	err := row.Scan(&a.ID, &a.Title, &a.EventType, &a.Severity, &section, &a.OccurredTime,
		&videoID, &missionID, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if section.Valid {
		a.RoadSection = &section.String
	}
	if videoID.Valid {
		id := uint64(videoID.Int64)
		a.VideoID = &id
	}
	if missionID.Valid {
		id := uint64(missionID.Int64)
		a.MissionID = &id
	}
	return a, err
}

func (r AlertRepo) Create(ctx context.Context, a *model.AlertEvent) error {
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO alert_events (title, event_type, severity, road_section, occurred_time, video_id, mission_id, status) VALUES (?,?,?,?,?,?,?,?)",
		a.Title, a.EventType, a.Severity, a.RoadSection, a.OccurredTime, a.VideoID, a.MissionID, a.Status)
	if err != nil {
		return err
	}
	if a.ID, err = lastID(res); err != nil {
		return err
	}
	got, err := r.GetByID(ctx, a.ID)
	if err != nil {
		return err
	}
	*a = *got
	return nil
}

func (r AlertRepo) GetByID(ctx context.Context, id uint64) (*model.AlertEvent, error) {
	a, err := scanAlert(r.q.QueryRowContext(ctx, "SELECT "+alertCols+" FROM alert_events WHERE id=?", id))
	if err != nil {
		return nil, noRows(err, "alert", id)
	}
	return &a, nil
}

func (r AlertRepo) SetStatus(ctx context.Context, id uint64, status model.AlertStatus) error {
	res, err := r.q.ExecContext(ctx, "UPDATE alert_events SET status=? WHERE id=?", status, id)
	if err != nil {
		return err
	}
	return checkAffected(res, "alert", id)
}

func (r AlertRepo) List(ctx context.Context, f service.AlertFilter) ([]model.AlertEvent, int, error) {
	var w filter
	if f.Status != "" {
		w.add("status=?", f.Status)
	}
	if f.Severity != "" {
		w.add("severity=?", f.Severity)
	}
	if f.MissionID != 0 {
		w.add("mission_id=?", f.MissionID)
	}
	var total int
	if err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM alert_events WHERE "+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args := append(append([]any{}, w.args...), f.PageSize, f.Offset())
	out, err := r.query(ctx, "SELECT "+alertCols+" FROM alert_events WHERE "+w.String()+
		" ORDER BY occurred_time DESC, id DESC LIMIT ? OFFSET ?", args...)
	return out, total, err
}

func (r AlertRepo) ListActive(ctx context.Context) ([]model.AlertEvent, error) {
	return r.query(ctx, "SELECT "+alertCols+" FROM alert_events WHERE status<>? ORDER BY occurred_time DESC, id DESC",
		model.AlertClosed)
}

func (r AlertRepo) query(ctx context.Context, q string, args ...any) ([]model.AlertEvent, error) {
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AlertEvent
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
