// Package recur expands a trigger appointment into a recurring series and
// renumbers session labels across a series.
package recur

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "turnero/internal/log"
	"turnero/internal/model"
	"turnero/internal/session"
	"turnero/internal/timegrid"
)

// maxCandidates caps a single expansion as a safety net against absurd week
// counts; one year of daily appointments is far beyond any real series.
const maxCandidates = 366

// ErrBadTriggerDate is returned when the trigger's date is not an ISO day.
var ErrBadTriggerDate = errors.New("recur: trigger date is not YYYY-MM-DD")

// Expand enumerates the candidate appointments for a new series.
//
// The scan window is the (weekCount+1)*7 consecutive days starting at the
// Monday of the week containing the trigger's date, so weekCount 0 still
// covers the trigger's own week and a same-week repeat is possible. Each day
// whose weekday is in weekdays yields one clone of the trigger dated to that
// day with a fresh id. Candidates come back in chronological order.
//
// Callers fall back to the single-save path when the result has zero or one
// entries.
func Expand(trigger model.Appointment, weekdays []time.Weekday, weekCount int) ([]model.Appointment, error) {
	start, err := timegrid.ParseDate(trigger.Date)
	if err != nil {
		return nil, ErrBadTriggerDate
	}
	if weekCount < 0 {
		weekCount = 0
	}

	byday := rruleWeekdays(weekdays)
	if len(byday) == 0 {
		return nil, nil
	}

	monday := timegrid.MondayOf(start)
	last := timegrid.AddDays(monday, (weekCount+1)*timegrid.DaysPerWeek-1)

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   monday,
		Until:     last,
		Byweekday: byday,
	})
	if err != nil {
		return nil, err
	}

	days := r.All()
	if len(days) > maxCandidates {
		appLog.Error("recurrence expansion truncated", errors.New("candidate cap reached"),
			"cap", maxCandidates, "weeks", weekCount)
		days = days[:maxCandidates]
	}

	out := make([]model.Appointment, 0, len(days))
	for _, d := range days {
		c := trigger.Clone()
		c.ID = model.NewID()
		c.Date = timegrid.DateKey(d)
		out = append(out, c)
	}
	return out, nil
}

// rruleWeekdays maps a weekday set to rrule's representation, deduplicated.
func rruleWeekdays(weekdays []time.Weekday) []rrule.Weekday {
	table := map[time.Weekday]rrule.Weekday{
		time.Monday:    rrule.MO,
		time.Tuesday:   rrule.TU,
		time.Wednesday: rrule.WE,
		time.Thursday:  rrule.TH,
		time.Friday:    rrule.FR,
		time.Saturday:  rrule.SA,
		time.Sunday:    rrule.SU,
	}
	seen := make(map[time.Weekday]bool, len(weekdays))
	out := make([]rrule.Weekday, 0, len(weekdays))
	for _, wd := range weekdays {
		if seen[wd] {
			continue
		}
		seen[wd] = true
		out = append(out, table[wd])
	}
	return out
}

// NumberSeries assigns session labels to a freshly expanded series. The
// trigger's parsed integer seeds the sequence: sorted chronologically, the
// first candidate keeps that number and each subsequent one increments by 1,
// preserving the suffix. An unparseable trigger label leaves every candidate
// untouched.
func NumberSeries(candidates []model.Appointment, trigger model.Appointment) {
	lbl := session.Parse(trigger.Session)
	if !lbl.OK {
		return
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Before(candidates[j])
	})
	for i := range candidates {
		candidates[i].Session = lbl.With(lbl.Number + i)
	}
}

// RenumberFuture reassigns session numbers to every appointment of the
// trigger's patient strictly later than the trigger (by date, then time),
// continuing from the trigger's number. Other patients' appointments, and
// anything on or before the trigger, are untouched. An unparseable trigger
// label disables renumbering entirely.
//
// The input slice is not modified; the renumbered copy is returned.
func RenumberFuture(appointments []model.Appointment, trigger model.Appointment) []model.Appointment {
	lbl := session.Parse(trigger.Session)
	if !lbl.OK {
		return appointments
	}

	out := make([]model.Appointment, len(appointments))
	copy(out, appointments)

	var future []int
	for i, a := range out {
		if a.PatientID != trigger.PatientID || a.ID == trigger.ID {
			continue
		}
		if trigger.Before(a) {
			future = append(future, i)
		}
	}
	sort.Slice(future, func(i, j int) bool {
		return out[future[i]].Before(out[future[j]])
	})

	n := lbl.Number
	for _, idx := range future {
		n++
		out[idx].Session = lbl.With(n)
	}
	return out
}
