package models

import "time"

type RepeatType string

const (
	RepeatDaily   RepeatType = "daily"
	RepeatWeekly  RepeatType = "weekly"
	RepeatMonthly RepeatType = "monthly"
)

// IsValid reports whether t is a declared repeat type. Declared does not
// mean expandable; see recurrence.Supported.
func (t RepeatType) IsValid() bool {
	switch t {
	case RepeatDaily, RepeatWeekly, RepeatMonthly:
		return true
	}
	return false
}

type Reminder struct {
	Enabled bool `json:"enabled"`
	Minutes int  `json:"minutes"`
}

// Repeat is stored alongside the event. Dates holds every occurrence start,
// ascending, precomputed when the event is written.
type Repeat struct {
	Type    RepeatType  `json:"type"`
	EndDate time.Time   `json:"end_date"`
	Dates   []time.Time `json:"dates"`
}

type Event struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	CategoryID  string    `json:"category_id" db:"category_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description,omitempty" db:"description"`
	StartDate   time.Time `json:"start_date" db:"start_date"`
	EndDate     time.Time `json:"end_date" db:"end_date"`
	AllDay      bool      `json:"all_day" db:"all_day"`
	Location    string    `json:"location,omitempty" db:"location"`
	Reminder    *Reminder `json:"reminder,omitempty" db:"reminder"`
	Repeat      *Repeat   `json:"repeat,omitempty" db:"repeat"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Duration is the length of a single occurrence.
func (e Event) Duration() time.Duration {
	return e.EndDate.Sub(e.StartDate)
}

// SeriesEnd is the end of the event's last occurrence.
func (e Event) SeriesEnd() time.Time {
	if e.Repeat == nil || len(e.Repeat.Dates) == 0 {
		return e.EndDate
	}
	return e.Repeat.Dates[len(e.Repeat.Dates)-1].Add(e.Duration())
}

// IsRepeating reports whether the event carries a repeat rule.
func (e Event) IsRepeating() bool {
	return e.Repeat != nil
}

// Occurrence is one concrete interval on which an event happens. It is
// derived, never persisted.
type Occurrence struct {
	EventID string
	Start   time.Time
	End     time.Time
}

// EventFilter narrows event listings.
type EventFilter struct {
	From       *time.Time
	To         *time.Time
	CategoryID string
}

type EventStats struct {
	TotalEvents    int `json:"total_events" db:"total_events"`
	UpcomingEvents int `json:"upcoming_events" db:"upcoming_events"`
	PastEvents     int `json:"past_events" db:"past_events"`
}
