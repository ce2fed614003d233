package recurrence

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/askelund/dagsplan/internal/model"
)

var (
	// ErrNoWeekdays is returned when a recurrence request selects no days.
	ErrNoWeekdays = errors.New("at least one weekday is required")
	// ErrWeekCount is returned when the week count is below 1.
	ErrWeekCount = errors.New("week count must be at least 1")
)

// Template holds the per-activity fields repeated across every generated
// instance. Date, series id, and completion state are stamped by Expand.
type Template struct {
	ChildID         int64
	Title           string
	Description     string
	Icon            string
	Color           string
	Time            string // HH:MM
	DurationMinutes int
	ActivityType    string
	Points          int
	AudioURL        string
	ImageURL        string
}

// Expand generates one activity per (selected weekday x week), all sharing a
// freshly generated series id. Weekdays use time.Weekday numbering
// (0 = Sunday). Week 0 is anchored at the Monday on or before now; within a
// week, Sunday lands 6 days after the anchor and any other day d lands d-1
// days after it. Weekdays are treated as a set: duplicates collapse, and
// dates come out in ascending order regardless of input order.
//
// Expand is pure apart from the series id; persisting the records is the
// caller's job.
func Expand(tmpl Template, weekdays []time.Weekday, weeks int, now time.Time) ([]model.Activity, error) {
	if len(weekdays) == 0 {
		return nil, ErrNoWeekdays
	}
	if weeks < 1 {
		return nil, ErrWeekCount
	}

	offsets := weekOffsets(weekdays)

	seriesID := uuid.NewString()
	anchor := weekStart(now)

	activities := make([]model.Activity, 0, len(offsets)*weeks)
	for week := 0; week < weeks; week++ {
		monday := anchor.AddDate(0, 0, 7*week)
		for _, offset := range offsets {
			date := monday.AddDate(0, 0, offset)

			activities = append(activities, model.Activity{
				ChildID:         tmpl.ChildID,
				Title:           tmpl.Title,
				Description:     tmpl.Description,
				Icon:            tmpl.Icon,
				Color:           tmpl.Color,
				Time:            tmpl.Time,
				DurationMinutes: tmpl.DurationMinutes,
				Date:            date.Format("2006-01-02"),
				Completed:       false,
				ActivityType:    tmpl.ActivityType,
				Points:          tmpl.Points,
				SeriesID:        seriesID,
				AudioURL:        tmpl.AudioURL,
				ImageURL:        tmpl.ImageURL,
			})
		}
	}

	return activities, nil
}

// weekOffsets maps weekdays to their distance from the Monday anchor,
// deduplicated and sorted ascending.
func weekOffsets(weekdays []time.Weekday) []int {
	var seen [7]bool
	for _, day := range weekdays {
		offset := int(day) - int(time.Monday)
		if offset < 0 {
			offset += 7 // Sunday
		}
		seen[offset] = true
	}

	offsets := make([]int, 0, len(weekdays))
	for offset, ok := range seen {
		if ok {
			offsets = append(offsets, offset)
		}
	}
	return offsets
}

// weekStart returns the Monday at midnight on or before t.
func weekStart(t time.Time) time.Time {
	offset := int(t.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset += 7
	}
	monday := t.AddDate(0, 0, -offset)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, t.Location())
}
