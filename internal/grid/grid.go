// Package grid maps between wall-clock time and the pixel space of the
// weekly time grid.
package grid

import (
	"math"
	"time"
)

const (
	// HourHeight is the pixel height of one hour row.
	HourHeight = 60.0
	// HoursPerDay is the number of hour rows rendered per day column.
	HoursPerDay = 24
	// DaysPerWeek is the number of day columns rendered per week.
	DaysPerWeek = 7
	// SnapMinutes is the granularity every drop and resize snaps to.
	SnapMinutes = 15
	// SnapQuantum is the pixel height of one snap unit.
	SnapQuantum = HourHeight / (60 / SnapMinutes)
	// MinEventHeight keeps zero-length events clickable.
	MinEventHeight = 20.0
	// MinEventDuration is the span of time MinEventHeight covers.
	MinEventDuration = time.Duration(MinEventHeight/HourHeight*60) * time.Minute
)

// pixelsPerMinute keeps offsets exact for whole minutes.
const pixelsPerMinute = HourHeight / 60

// TimeToOffset returns the vertical pixel offset of t's time of day,
// (hours + minutes/60) * HourHeight.
func TimeToOffset(t time.Time) float64 {
	return float64(t.Hour()*60+t.Minute()) * pixelsPerMinute
}

// OffsetToSnappedMinutes converts a pixel offset inside one hour row into a
// minute value snapped to the nearest quarter hour. The result is always one
// of 0, 15, 30 or 45.
func OffsetToSnappedMinutes(offsetWithinHour float64) int {
	if math.IsNaN(offsetWithinHour) {
		return 0
	}
	raw := offsetWithinHour / HourHeight * 60
	snapped := int(math.Round(raw/SnapMinutes)) * SnapMinutes
	if snapped < 0 {
		return 0
	}
	if snapped > 60-SnapMinutes {
		return 60 - SnapMinutes
	}
	return snapped
}

// SnapDelta rounds a pixel delta to the nearest whole snap quantum.
func SnapDelta(delta float64) float64 {
	if math.IsNaN(delta) {
		return 0
	}
	return math.Round(delta/SnapQuantum) * SnapQuantum
}

// HeightToDuration converts a pixel height into the duration it represents,
// rounded to the minute.
func HeightToDuration(height float64) time.Duration {
	return time.Duration(math.Round(height/HourHeight*60)) * time.Minute
}

// DurationToHeight converts a duration into its pixel height. Negative
// durations are treated as zero.
func DurationToHeight(d time.Duration) float64 {
	if d < 0 {
		d = 0
	}
	return d.Minutes() * pixelsPerMinute
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DayAt returns the calendar day of day at hour:minute:00.000.
func DayAt(day time.Time, hour, minute int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, day.Location())
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// WeekStartingSunday returns the seven days of the week containing t,
// starting from the Sunday on or before t, each at midnight.
func WeekStartingSunday(t time.Time) [DaysPerWeek]time.Time {
	var days [DaysPerWeek]time.Time
	y, m, d := t.Date()
	sunday := d - int(t.Weekday())
	for i := range days {
		// time.Date normalizes day overflow, which keeps DST transitions at midnight.
		days[i] = time.Date(y, m, sunday+i, 0, 0, 0, 0, t.Location())
	}
	return days
}

// WeekContains reports whether t falls inside the given week.
func WeekContains(week [DaysPerWeek]time.Time, t time.Time) bool {
	for _, day := range week {
		if SameDay(day, t) {
			return true
		}
	}
	return false
}
