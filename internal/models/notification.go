package models

import "time"

type NotificationType string

const (
	NotificationUpcoming NotificationType = "upcoming"
	NotificationStarting NotificationType = "starting"
	NotificationOngoing  NotificationType = "ongoing"

	// Kinds a user may author by hand.
	NotificationEvent    NotificationType = "event"
	NotificationSystem   NotificationType = "system"
	NotificationReminder NotificationType = "reminder"
)

func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationUpcoming, NotificationStarting, NotificationOngoing,
		NotificationEvent, NotificationSystem, NotificationReminder:
		return true
	}
	return false
}

// IsManual reports whether t is one of the user-authored kinds.
func (t NotificationType) IsManual() bool {
	switch t {
	case NotificationEvent, NotificationSystem, NotificationReminder:
		return true
	}
	return false
}

// NotificationSource tells generated rows apart from the ones a user posted.
type NotificationSource string

const (
	SourceGenerated NotificationSource = "generated"
	SourceManual    NotificationSource = "manual"
)

// EventNotification describes the state of one event occurrence relative to
// the moment it was generated. Manual notifications share the table; they
// carry a title and an optional event link but no occurrence.
type EventNotification struct {
	ID              string             `json:"id" db:"id"`
	UserID          string             `json:"user_id" db:"user_id"`
	EventID         string             `json:"event_id,omitempty" db:"event_id"`
	EventTitle      string             `json:"event_title" db:"event_title"`
	Source          NotificationSource `json:"source" db:"source"`
	Title           string             `json:"title,omitempty" db:"title"`
	Type            NotificationType   `json:"type" db:"type"`
	Message         string             `json:"message" db:"message"`
	OccurrenceStart time.Time          `json:"occurrence_start" db:"occurrence_start"`
	OccurrenceEnd   time.Time          `json:"occurrence_end" db:"occurrence_end"`
	ScheduledFor    *time.Time         `json:"scheduled_for,omitempty" db:"scheduled_for"`
	CreatedAt       time.Time          `json:"created_at" db:"created_at"`
	IsRead          bool               `json:"is_read" db:"is_read"`
}

// IsManual reports whether the notification was posted by its user rather
// than derived from an event occurrence.
func (n EventNotification) IsManual() bool {
	return n.Source == SourceManual
}

type NotificationFilter struct {
	Type       NotificationType
	UnreadOnly bool
	Limit      int
}

type NotificationStats struct {
	Total    int `json:"total_notifications" db:"total_notifications"`
	Unread   int `json:"unread_notifications" db:"unread_notifications"`
	Upcoming int `json:"upcoming_notifications" db:"upcoming_notifications"`
	Starting int `json:"starting_notifications" db:"starting_notifications"`
	Ongoing  int `json:"ongoing_notifications" db:"ongoing_notifications"`
	Manual   int `json:"manual_notifications" db:"manual_notifications"`
}

// OccurrenceMinute normalises an occurrence start for duplicate detection:
// UTC, rounded to the nearest minute.
func OccurrenceMinute(start time.Time) time.Time {
	return start.UTC().Round(time.Minute)
}
