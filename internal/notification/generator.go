package notification

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stanstork/schedule-api/internal/models"
	"github.com/stanstork/schedule-api/internal/recurrence"
)

// Classification windows, measured from now to the occurrence start and
// rounded up to whole units.
const (
	startingSoonMinutes = 15
	startingHours       = 2
	startingDayHours    = 24
	upcomingDays        = 7
	locationDays        = 3
)

// Result is the outcome of one generation pass. ToDelete holds each id at
// most once.
type Result struct {
	ToCreate []models.EventNotification
	ToDelete []string
}

// Generator turns events into event notifications relative to a point in
// time. It keeps no state between calls.
type Generator struct {
	logger zerolog.Logger
	newID  func() string
}

func NewGenerator(logger zerolog.Logger) *Generator {
	return &Generator{
		logger: logger.With().Str("component", "notification_generator").Logger(),
		newID:  uuid.NewString,
	}
}

// Generate classifies every occurrence of events against now and returns the
// notifications missing from existing, plus the ids of existing
// notifications whose occurrence has already ended. Manual notifications in
// existing are ignored. Calling it again with ToCreate merged into existing
// and ToDelete removed yields an empty result.
func (g *Generator) Generate(events []models.Event, now time.Time, existing []models.EventNotification) Result {
	var res Result

	covered := make(map[OccurrenceKey]struct{}, len(existing))
	pruned := make(map[string]struct{})
	for _, n := range existing {
		if n.IsManual() {
			continue
		}
		if !n.OccurrenceEnd.After(now) {
			if _, seen := pruned[n.ID]; !seen && n.ID != "" {
				pruned[n.ID] = struct{}{}
				res.ToDelete = append(res.ToDelete, n.ID)
			}
			continue
		}
		covered[KeyFor(n.EventID, n.OccurrenceStart)] = struct{}{}
	}

	for _, ev := range events {
		for _, occ := range recurrence.Occurrences(ev) {
			if !occ.End.After(occ.Start) {
				g.logger.Warn().
					Str("event_id", ev.ID).
					Time("occurrence_start", occ.Start).
					Time("occurrence_end", occ.End).
					Msg("skipping occurrence that ends before it starts")
				continue
			}
			if !occ.End.After(now) {
				continue
			}

			key := KeyFor(ev.ID, occ.Start)
			if _, ok := covered[key]; ok {
				continue
			}

			typ, msg, ok := classify(ev, occ, now)
			if !ok {
				continue
			}
			covered[key] = struct{}{}

			res.ToCreate = append(res.ToCreate, models.EventNotification{
				ID:              g.newID(),
				UserID:          ev.UserID,
				EventID:         ev.ID,
				EventTitle:      ev.Title,
				Source:          models.SourceGenerated,
				Type:            typ,
				Message:         msg,
				OccurrenceStart: occ.Start,
				OccurrenceEnd:   occ.End,
				CreatedAt:       now,
				IsRead:          false,
			})
		}
	}

	return res
}

// classify decides which notification, if any, an unfinished occurrence
// deserves at now. Occurrences more than upcomingDays away get none.
func classify(ev models.Event, occ models.Occurrence, now time.Time) (models.NotificationType, string, bool) {
	if !now.Before(occ.Start) && !now.After(occ.End) {
		return models.NotificationOngoing, ongoingMessage(ev.Title, ev.Location), true
	}

	until := occ.Start.Sub(now)
	minutes := ceilUnits(until, time.Minute)
	hours := ceilUnits(until, time.Hour)
	days := ceilUnits(until, 24*time.Hour)
	date := formatDate(occ.Start.In(now.Location()))

	switch {
	case minutes <= startingSoonMinutes:
		return models.NotificationStarting, startingMessage(ev.Title, minutes, "minute", "", ev.Location), true
	case hours <= startingHours:
		return models.NotificationStarting, startingMessage(ev.Title, hours, "hour", "", ev.Location), true
	case hours <= startingDayHours:
		return models.NotificationStarting, startingMessage(ev.Title, hours, "hour", date, ev.Location), true
	case days <= upcomingDays:
		location := ""
		if days <= locationDays {
			location = ev.Location
		}
		return models.NotificationUpcoming, upcomingMessage(ev.Title, days, date, location), true
	}
	return "", "", false
}

func ceilUnits(d, unit time.Duration) int64 {
	n := int64(d / unit)
	if d%unit != 0 {
		n++
	}
	return n
}
