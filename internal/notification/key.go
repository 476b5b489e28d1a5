package notification

import (
	"time"

	"github.com/stanstork/schedule-api/internal/models"
)

// OccurrenceKey identifies the occurrence a notification describes: the
// event plus the occurrence start rounded to the minute in UTC. Two
// notifications with equal keys are duplicates. Starts on either side of a
// :30 second boundary round apart even when only seconds separate them.
type OccurrenceKey struct {
	EventID string
	Minute  time.Time
}

func KeyFor(eventID string, start time.Time) OccurrenceKey {
	return OccurrenceKey{EventID: eventID, Minute: KeyMinute(start)}
}

// KeyMinute is the start component of an OccurrenceKey. It is also what the
// notifications table stores in occurrence_minute.
func KeyMinute(start time.Time) time.Time {
	return models.OccurrenceMinute(start)
}
