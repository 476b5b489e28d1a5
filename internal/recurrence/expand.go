package recurrence

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/teambition/rrule-go"

	"github.com/stanstork/schedule-api/internal/models"
)

const (
	// MaxOccurrences is the largest series the API accepts. Expand itself has
	// no cap; callers enforce this before persisting.
	MaxOccurrences = 365

	// WarnOccurrences marks series large enough to be worth flagging to the
	// user before saving.
	WarnOccurrences = 100
)

// Supported reports whether Expand produces occurrences for t. Weekly and
// monthly are declared repeat types but have no expansion rule.
func Supported(t models.RepeatType) bool {
	return t == models.RepeatDaily
}

// Expand returns the start of every occurrence of a repeating event, one per
// calendar day from repeatStart's date through repeatEnd's date inclusive.
// Each start carries baseStart's time of day in baseStart's location.
//
// An empty slice is returned when the type has no expansion rule, when
// repeatEnd falls on a date before repeatStart, or when baseEnd is not after
// baseStart.
func Expand(baseStart, baseEnd time.Time, repeatType models.RepeatType, repeatStart, repeatEnd time.Time) []time.Time {
	if !Supported(repeatType) {
		return []time.Time{}
	}
	if !baseEnd.After(baseStart) {
		return []time.Time{}
	}

	// Range bounds are calendar dates: only their year, month and day count.
	first := atTimeOfDay(repeatStart, baseStart)
	last := atTimeOfDay(repeatEnd, baseStart)
	if last.Before(first) {
		return []time.Time{}
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: first,
		Until:   last,
	})
	if err != nil {
		log.Error().Err(err).
			Time("repeat_start", first).
			Time("repeat_end", last).
			Msg("failed to build daily rule")
		return []time.Time{}
	}

	dates := r.All()
	if dates == nil {
		return []time.Time{}
	}
	return dates
}

// ExpandEvent fills ev.Repeat.Dates from the event's own start and the given
// first repeat day. It is a no-op for events without a repeat rule.
func ExpandEvent(ev *models.Event, repeatStart time.Time) {
	if ev == nil || ev.Repeat == nil {
		return
	}
	ev.Repeat.Dates = Expand(ev.StartDate, ev.EndDate, ev.Repeat.Type, repeatStart, ev.Repeat.EndDate)
}

// Occurrences lists the concrete intervals of an event. Repeating events get
// one occurrence per stored date, each lasting as long as the base event; a
// repeat rule without dates falls back to the base interval.
func Occurrences(ev models.Event) []models.Occurrence {
	if ev.Repeat == nil || len(ev.Repeat.Dates) == 0 {
		return []models.Occurrence{{EventID: ev.ID, Start: ev.StartDate, End: ev.EndDate}}
	}

	dur := ev.Duration()
	out := make([]models.Occurrence, 0, len(ev.Repeat.Dates))
	for _, start := range ev.Repeat.Dates {
		out = append(out, models.Occurrence{
			EventID: ev.ID,
			Start:   start,
			End:     start.Add(dur),
		})
	}
	return out
}

// DaySpan counts the calendar days between the dates of from and to,
// inclusive of both ends. It is zero when to falls before from.
func DaySpan(from, to time.Time) int {
	a := civilDate(from)
	b := civilDate(to)
	if b.Before(a) {
		return 0
	}
	return int(b.Sub(a)/(24*time.Hour)) + 1
}

func atTimeOfDay(day, clock time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0, clock.Location())
}

// civilDate maps t's calendar date onto UTC midnight so that day arithmetic
// is free of DST shifts.
func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
