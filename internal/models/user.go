package models

import "time"

type User struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// UserStats summarises a user's calendar for the profile page.
type UserStats struct {
	TotalEvents     int `json:"total_events" db:"total_events"`
	TotalCategories int `json:"total_categories" db:"total_categories"`
	UpcomingEvents  int `json:"upcoming_events" db:"upcoming_events"`
	PastEvents      int `json:"past_events" db:"past_events"`
}
