package grid

import (
	"math"
	"testing"
	"time"
)

func TestTimeToOffset(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want float64
	}{
		{name: "midnight", at: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), want: 0},
		{name: "nine", at: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC), want: 540},
		{name: "nine thirty", at: time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC), want: 570},
		{name: "last quarter", at: time.Date(2024, 3, 4, 23, 45, 0, 0, time.UTC), want: 1425},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := TimeToOffset(tc.at); got != tc.want {
				t.Errorf("TimeToOffset() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTimeToOffsetMonotonic(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	prev := -1.0
	for m := 0; m < 24*60; m++ {
		got := TimeToOffset(day.Add(time.Duration(m) * time.Minute))
		if got < prev {
			t.Fatalf("offset decreased at minute %d: %v < %v", m, got, prev)
		}
		prev = got
	}
}

func TestOffsetToSnappedMinutes(t *testing.T) {
	tests := []struct {
		offset float64
		want   int
	}{
		{0, 0},
		{7, 0},
		{7.5, 15},
		{22, 15},
		{23, 30},
		{37, 30},
		{38, 45},
		{59, 45},
		{60, 45},
		{500, 45},
		{-10, 0},
		{math.NaN(), 0},
	}
	for _, tc := range tests {
		if got := OffsetToSnappedMinutes(tc.offset); got != tc.want {
			t.Errorf("OffsetToSnappedMinutes(%v) = %d, want %d", tc.offset, got, tc.want)
		}
	}
}

func TestOffsetToSnappedMinutesRange(t *testing.T) {
	valid := map[int]bool{0: true, 15: true, 30: true, 45: true}
	for off := -30.0; off <= 90; off += 0.25 {
		if got := OffsetToSnappedMinutes(off); !valid[got] {
			t.Fatalf("OffsetToSnappedMinutes(%v) = %d, not a quarter hour", off, got)
		}
	}
}

func TestSnapDelta(t *testing.T) {
	tests := []struct {
		delta float64
		want  float64
	}{
		{0, 0},
		{7, 0},
		{8, 15},
		{37, 30},
		{38, 45},
		{-37, -30},
		{-52, -45},
	}
	for _, tc := range tests {
		if got := SnapDelta(tc.delta); got != tc.want {
			t.Errorf("SnapDelta(%v) = %v, want %v", tc.delta, got, tc.want)
		}
	}
}

func TestHeightDurationConversions(t *testing.T) {
	if got := HeightToDuration(90); got != 90*time.Minute {
		t.Errorf("HeightToDuration(90) = %v, want 90m", got)
	}
	if got := DurationToHeight(45 * time.Minute); got != 45 {
		t.Errorf("DurationToHeight(45m) = %v, want 45", got)
	}
	if got := DurationToHeight(-time.Hour); got != 0 {
		t.Errorf("DurationToHeight(-1h) = %v, want 0", got)
	}
}

func TestWeekStartingSunday(t *testing.T) {
	wed := time.Date(2024, 3, 6, 15, 4, 5, 0, time.UTC)
	week := WeekStartingSunday(wed)

	want := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)
	if !week[0].Equal(want) {
		t.Fatalf("week[0] = %v, want %v", week[0], want)
	}
	for i, day := range week {
		if day.Weekday() != time.Weekday(i) {
			t.Errorf("week[%d] weekday = %v, want %v", i, day.Weekday(), time.Weekday(i))
		}
		if day.Hour() != 0 || day.Minute() != 0 {
			t.Errorf("week[%d] not at midnight: %v", i, day)
		}
	}
	if !WeekContains(week, wed) {
		t.Error("expected week to contain its anchor date")
	}
	if WeekContains(week, wed.AddDate(0, 0, 7)) {
		t.Error("expected following week to be excluded")
	}
}

func TestWeekStartingSundayAcrossMonth(t *testing.T) {
	week := WeekStartingSunday(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	if week[0].Month() != time.February || week[0].Day() != 25 {
		t.Errorf("week[0] = %v, want Feb 25", week[0])
	}
	if week[6].Month() != time.March || week[6].Day() != 2 {
		t.Errorf("week[6] = %v, want Mar 2", week[6])
	}
}

func TestDayAt(t *testing.T) {
	day := time.Date(2024, 3, 6, 23, 59, 59, 999, time.UTC)
	got := DayAt(day, 14, 15)
	want := time.Date(2024, 3, 6, 14, 15, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("DayAt() = %v, want %v", got, want)
	}
	if !SameDay(got, day) {
		t.Error("expected DayAt to stay on the same day")
	}
}
