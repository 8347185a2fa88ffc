package analytics

import (
	"fmt"
	"strings"
	"time"
)

// Week is an ISO-8601 week of a week-based year
type Week struct {
	Year int `json:"year"`
	Week int `json:"week"`
}

func (w Week) String() string {
	return fmt.Sprintf("%04d-W%02d", w.Year, w.Week)
}

// ISOWeek returns the ISO-8601 week containing t, in t's location. The week
// belongs to the year of its Thursday, so 2024-12-30 is week 1 of 2025.
func ISOWeek(t time.Time) Week {
	year, week := t.ISOWeek()
	return Week{Year: year, Week: week}
}

// WeeksBetween returns how many ISO weeks later lies after earlier. Both are
// read as calendar dates in later's location. The count is exact across year
// boundaries, including 53-week years; it is negative when earlier is in a
// later week.
func WeeksBetween(earlier, later time.Time) int {
	loc := later.Location()
	from := weekMonday(civilDate(earlier.In(loc)))
	to := weekMonday(civilDate(later))
	return int(to.Sub(from) / (7 * 24 * time.Hour))
}

// civilDate drops the time of day and zone, keeping the calendar date as
// read in t's location. Arithmetic on the result is free of DST shifts.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// weekMonday returns the Monday starting the ISO week of a civil date
func weekMonday(date time.Time) time.Time {
	offset := (int(date.Weekday()) + 6) % 7
	return date.AddDate(0, 0, -offset)
}

func monthStart(year int, month time.Month, loc *time.Location) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, loc)
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

// Timeline is the window the counterparty distribution is computed over
type Timeline string

const (
	TimelineWeek  Timeline = "week"
	TimelineMonth Timeline = "month"
	TimelineYear  Timeline = "year"
)

// ParseTimeline validates a timeline name
func ParseTimeline(s string) (Timeline, error) {
	switch t := Timeline(strings.ToLower(strings.TrimSpace(s))); t {
	case TimelineWeek, TimelineMonth, TimelineYear:
		return t, nil
	}
	return "", ErrInvalidTimeline
}

// Start returns the beginning of the current period containing ref. Weeks
// start on Monday.
func (tl Timeline) Start(ref time.Time) time.Time {
	loc := ref.Location()
	y, m, d := ref.Date()
	switch tl {
	case TimelineWeek:
		offset := (int(ref.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	case TimelineYear:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	default:
		return monthStart(y, m, loc)
	}
}

// Errors
var (
	ErrInvalidTimeline = &Error{Code: "INVALID_TIMELINE", Message: "timeline must be week, month or year"}
)

// Error represents an analytics input error
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
