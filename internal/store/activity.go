package store

import (
	"database/sql"
	"fmt"

	"go.uber.org/multierr"

	"github.com/askelund/dagsplan/internal/model"
)

type ActivityStore struct {
	db *sql.DB
}

func NewActivityStore(db *sql.DB) *ActivityStore {
	return &ActivityStore{db: db}
}

func scanActivity(scanner interface{ Scan(...any) error }) (*model.Activity, error) {
	var a model.Activity
	var completed int
	var seriesID sql.NullString

	err := scanner.Scan(
		&a.ID, &a.ChildID, &a.Title, &a.Description, &a.Icon, &a.Color,
		&a.Time, &a.DurationMinutes, &a.Date, &completed, &a.ActivityType,
		&a.Points, &seriesID, &a.AudioURL, &a.ImageURL, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Completed = completed != 0
	if seriesID.Valid {
		a.SeriesID = seriesID.String
	}
	return &a, nil
}

const activityCols = `id, child_id, title, description, icon, color, time, duration_minutes, date, completed, activity_type, points, series_id, audio_url, image_url, created_at, updated_at`

func (s *ActivityStore) Create(a model.Activity) (*model.Activity, error) {
	var seriesID sql.NullString
	if a.SeriesID != "" {
		seriesID = sql.NullString{String: a.SeriesID, Valid: true}
	}
	var completed int
	if a.Completed {
		completed = 1
	}

	result, err := s.db.Exec(
		`INSERT INTO activities
		 (child_id, title, description, icon, color, time, duration_minutes, date, completed, activity_type, points, series_id, audio_url, image_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ChildID, a.Title, a.Description, a.Icon, a.Color, a.Time,
		a.DurationMinutes, a.Date, completed, a.ActivityType, a.Points,
		seriesID, a.AudioURL, a.ImageURL,
	)
	if err != nil {
		return nil, fmt.Errorf("insert activity: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ActivityStore) GetByID(id int64) (*model.Activity, error) {
	row := s.db.QueryRow(`SELECT `+activityCols+` FROM activities WHERE id = ?`, id)
	a, err := scanActivity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	return a, nil
}

// ListQuery narrows a listing. Zero values mean "any".
type ListQuery struct {
	ChildID int64
	Date    string
}

// List returns activities matching the query, ordered by date then time.
func (s *ActivityStore) List(q ListQuery) ([]model.Activity, error) {
	query := `SELECT ` + activityCols + ` FROM activities WHERE 1=1`
	var args []any
	if q.ChildID != 0 {
		query += ` AND child_id = ?`
		args = append(args, q.ChildID)
	}
	if q.Date != "" {
		query += ` AND date = ?`
		args = append(args, q.Date)
	}
	query += ` ORDER BY date, time`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var activities []model.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, *a)
	}
	return activities, rows.Err()
}

// ListBySeries returns all activities sharing a series id, ordered by date.
func (s *ActivityStore) ListBySeries(seriesID string) ([]model.Activity, error) {
	rows, err := s.db.Query(
		`SELECT `+activityCols+` FROM activities WHERE series_id = ? ORDER BY date, time`,
		seriesID,
	)
	if err != nil {
		return nil, fmt.Errorf("list series activities: %w", err)
	}
	defer rows.Close()

	var activities []model.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, *a)
	}
	return activities, rows.Err()
}

func (s *ActivityStore) Update(id int64, a model.Activity) (*model.Activity, error) {
	_, err := s.db.Exec(
		`UPDATE activities SET title = ?, description = ?, icon = ?, color = ?, time = ?,
		 duration_minutes = ?, date = ?, activity_type = ?, points = ?, audio_url = ?, image_url = ?
		 WHERE id = ?`,
		a.Title, a.Description, a.Icon, a.Color, a.Time,
		a.DurationMinutes, a.Date, a.ActivityType, a.Points, a.AudioURL, a.ImageURL,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("update activity: %w", err)
	}
	return s.GetByID(id)
}

// SetCompleted sets the completion flag unconditionally. Used by the parent
// dashboard, which may toggle in either direction; the child path goes through
// the ledger instead so bonus points are credited exactly once.
func (s *ActivityStore) SetCompleted(id int64, completed bool) (*model.Activity, error) {
	var c int
	if completed {
		c = 1
	}
	_, err := s.db.Exec(`UPDATE activities SET completed = ? WHERE id = ?`, c, id)
	if err != nil {
		return nil, fmt.Errorf("set completed: %w", err)
	}
	return s.GetByID(id)
}

func (s *ActivityStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM activities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	return nil
}

// DeleteSeriesFrom deletes every activity in the series dated on or after
// fromDate (YYYY-MM-DD, compared lexically). Activities strictly before the
// cutoff are preserved. Deletes are per-record and best-effort: a failure on
// one record does not stop the rest, and the accumulated error reports every
// record that could not be removed.
func (s *ActivityStore) DeleteSeriesFrom(seriesID, fromDate string) (int, error) {
	activities, err := s.ListBySeries(seriesID)
	if err != nil {
		return 0, err
	}

	var deleted int
	var errs error
	for _, a := range activities {
		if a.Date < fromDate {
			continue
		}
		if _, err := s.db.Exec(`DELETE FROM activities WHERE id = ?`, a.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delete activity %d: %w", a.ID, err))
			continue
		}
		deleted++
	}
	return deleted, errs
}
