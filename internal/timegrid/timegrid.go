// Package timegrid provides the fixed daily time grid of the practice and
// the calendar-week arithmetic used by the scheduling operations.
package timegrid

import (
	"fmt"
	"time"

	"turnero/internal/model"
)

const (
	// DefaultStartHour is the first bookable hour of the day.
	DefaultStartHour = 11
	// DefaultEndHour is the end of the grid, exclusive (last slot 17:30).
	DefaultEndHour = 18
	// DefaultStepMinutes is the slot granularity.
	DefaultStepMinutes = 30
	// DaysPerWeek is the number of days per week.
	DaysPerWeek = 7

	// dateLayout is the ISO day format used for all Appointment.Date values.
	dateLayout = "2006-01-02"
)

// Slots returns the ordered HH:MM labels from startHour (inclusive) to
// endHour (exclusive), stepping stepMin minutes. With the defaults this
// yields 14 entries, 11:00 through 17:30.
func Slots(startHour, endHour, stepMin int) []string {
	if stepMin <= 0 {
		stepMin = DefaultStepMinutes
	}
	out := make([]string, 0, (endHour-startHour)*60/stepMin)
	for m := startHour * 60; m < endHour*60; m += stepMin {
		out = append(out, MinutesToClock(m))
	}
	return out
}

// StandardSlots returns the default practice grid.
func StandardSlots() []string {
	return Slots(DefaultStartHour, DefaultEndHour, DefaultStepMinutes)
}

// MinutesToClock converts minutes from midnight to an "HH:MM" label.
func MinutesToClock(mins int) string {
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

// DateKey formats a time as the ISO day key used throughout the book.
func DateKey(t time.Time) string {
	return t.Format(dateLayout)
}

// ParseDate parses an ISO day key. The result is midnight UTC; all grid
// arithmetic is done on whole days, so the location never matters.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

// MondayOf returns the Monday of the week containing t, at midnight.
func MondayOf(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	shift := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -shift)
}

// AddDays returns t shifted by n calendar days.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// SameWeek reports whether a and b fall in the same Mon-Sun week.
func SameWeek(a, b time.Time) bool {
	return MondayOf(a).Equal(MondayOf(b))
}

// IsOccupied reports whether some appointment holds exactly this
// (date, time) pair.
func IsOccupied(appointments []model.Appointment, date, clock string) bool {
	for _, a := range appointments {
		if a.Date == date && a.Time == clock {
			return true
		}
	}
	return false
}
