package common

import (
	"testing"
	"time"
)

func TestTruncateToDate(t *testing.T) {
	riyadh := time.FixedZone("AST", 3*60*60)

	tests := []struct {
		name     string
		input    time.Time
		expected time.Time
	}{
		{
			name:     "truncate afternoon time",
			input:    time.Date(2025, 10, 17, 14, 23, 45, 123456789, time.UTC),
			expected: time.Date(2025, 10, 17, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "truncate midnight (already truncated)",
			input:    time.Date(2025, 10, 17, 0, 0, 0, 0, time.UTC),
			expected: time.Date(2025, 10, 17, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "truncate just before midnight",
			input:    time.Date(2025, 10, 17, 23, 59, 59, 999999999, time.UTC),
			expected: time.Date(2025, 10, 17, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "non-UTC location keeps local calendar day",
			input:    time.Date(2025, 10, 17, 1, 30, 0, 0, riyadh),
			expected: time.Date(2025, 10, 17, 0, 0, 0, 0, riyadh),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TruncateToDate(tt.input)

			if !result.Equal(tt.expected) {
				t.Errorf("TruncateToDate(%v) = %v, want %v", tt.input, result, tt.expected)
			}

			if result.Location() != tt.input.Location() {
				t.Errorf("Expected location %v, got %v", tt.input.Location(), result.Location())
			}
		})
	}
}

func TestWeekStart(t *testing.T) {
	tests := []struct {
		name     string
		input    time.Time
		expected string
	}{
		{
			name:     "monday morning maps to itself",
			input:    time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC),
			expected: "2026-10-12",
		},
		{
			name:     "wednesday maps to previous monday",
			input:    time.Date(2026, 10, 14, 15, 4, 5, 0, time.UTC),
			expected: "2026-10-12",
		},
		{
			name:     "sunday late night still belongs to the week",
			input:    time.Date(2026, 10, 18, 23, 59, 59, 0, time.UTC),
			expected: "2026-10-12",
		},
		{
			name:     "week crossing a month boundary",
			input:    time.Date(2026, 11, 1, 12, 0, 0, 0, time.UTC),
			expected: "2026-10-26",
		},
		{
			name:     "week crossing a year boundary",
			input:    time.Date(2027, 1, 2, 8, 0, 0, 0, time.UTC),
			expected: "2026-12-28",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := WeekStart(tt.input)
			if got := result.Format(DateKeyLayout); got != tt.expected {
				t.Errorf("WeekStart(%v) = %s, want %s", tt.input, got, tt.expected)
			}
			if result.Weekday() != time.Monday {
				t.Errorf("WeekStart(%v) weekday = %v, want Monday", tt.input, result.Weekday())
			}
			if result.Hour() != 0 || result.Minute() != 0 || result.Second() != 0 {
				t.Errorf("WeekStart(%v) not at midnight: %v", tt.input, result)
			}
		})
	}
}

func TestDayKeyAndWeekKey(t *testing.T) {
	ts := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	if got := DayKey(ts); got != "2026-10-14" {
		t.Errorf("DayKey() = %s, want 2026-10-14", got)
	}
	if got := WeekKey(ts); got != "2026-10-12" {
		t.Errorf("WeekKey() = %s, want 2026-10-12", got)
	}
}

func TestFixedClock(t *testing.T) {
	start := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	clock := NewFixedClock(start)

	if !clock.Now().Equal(start) {
		t.Fatalf("Now() = %v, want %v", clock.Now(), start)
	}

	clock.Advance(24 * time.Hour)
	if got := DayKey(clock.Now()); got != "2026-10-15" {
		t.Errorf("after Advance DayKey() = %s, want 2026-10-15", got)
	}

	clock.Set(start)
	if !clock.Now().Equal(start) {
		t.Errorf("after Set Now() = %v, want %v", clock.Now(), start)
	}
}

func TestSystemClock_Location(t *testing.T) {
	loc := time.FixedZone("AST", 3*60*60)
	clock := SystemClock{Location: loc}

	if clock.Now().Location() != loc {
		t.Errorf("expected location %v, got %v", loc, clock.Now().Location())
	}
}
