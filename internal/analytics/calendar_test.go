package analytics

import (
	"errors"
	"testing"
	"time"
)

func TestISOWeek(t *testing.T) {
	tests := []struct {
		date     time.Time
		expected Week
	}{
		{date(2024, time.December, 29), Week{2024, 52}},
		{date(2024, time.December, 30), Week{2025, 1}},
		{date(2025, time.January, 2), Week{2025, 1}},
		{date(2025, time.January, 6), Week{2025, 2}},
		{date(2020, time.December, 31), Week{2020, 53}},
		{date(2021, time.January, 1), Week{2020, 53}},
		{date(2021, time.January, 4), Week{2021, 1}},
		{date(2026, time.December, 31), Week{2026, 53}},
	}

	for _, tt := range tests {
		t.Run(tt.date.Format("2006-01-02"), func(t *testing.T) {
			if got := ISOWeek(tt.date); got != tt.expected {
				t.Errorf("ISOWeek(%s) = %s, want %s", tt.date.Format("2006-01-02"), got, tt.expected)
			}
		})
	}
}

func TestWeeksBetween_YearBoundary(t *testing.T) {
	tests := []struct {
		name     string
		earlier  time.Time
		later    time.Time
		expected int
	}{
		// 2024-12-30 is the Monday of ISO week 2025-W01, so this pair is 0
		// weeks apart rather than 1. Counting from week Mondays keeps the
		// distance small and non-negative; it never wraps to 52.
		{"same ISO week across new year", date(2024, time.December, 30), date(2025, time.January, 2), 0},
		{"consecutive weeks across new year", date(2024, time.December, 29), date(2025, time.January, 2), 1},
		{"after a 53-week year", date(2020, time.December, 28), date(2021, time.January, 4), 1},
		{"two years apart", date(2023, time.January, 4), date(2025, time.January, 8), 105},
		{"same day", date(2025, time.March, 5), date(2025, time.March, 5), 0},
		{"future record", date(2025, time.March, 20), date(2025, time.March, 5), -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WeeksBetween(tt.earlier, tt.later); got != tt.expected {
				t.Errorf("WeeksBetween = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestWeeksBetween_NeverWrapsToFiftyTwo(t *testing.T) {
	// every day of the first ISO week of 2025 seen from the day after
	for d := date(2024, time.December, 30); d.Before(date(2025, time.January, 6)); d = d.AddDate(0, 0, 1) {
		got := WeeksBetween(d, date(2025, time.January, 6))
		if got != 1 {
			t.Errorf("WeeksBetween(%s, 2025-01-06) = %d, want 1", d.Format("2006-01-02"), got)
		}
	}
}

func TestTimeline_Start(t *testing.T) {
	ref := time.Date(2025, time.March, 16, 18, 45, 0, 0, time.UTC) // Sunday

	tests := []struct {
		timeline Timeline
		expected time.Time
	}{
		{TimelineWeek, time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)},
		{TimelineMonth, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)},
		{TimelineYear, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(string(tt.timeline), func(t *testing.T) {
			if got := tt.timeline.Start(ref); !got.Equal(tt.expected) {
				t.Errorf("Start = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseTimeline(t *testing.T) {
	for _, s := range []string{"week", "Month", " year "} {
		if _, err := ParseTimeline(s); err != nil {
			t.Errorf("ParseTimeline(%q) unexpected error %v", s, err)
		}
	}
	if _, err := ParseTimeline("quarter"); !errors.Is(err, ErrInvalidTimeline) {
		t.Errorf("expected ErrInvalidTimeline, got %v", err)
	}
}
