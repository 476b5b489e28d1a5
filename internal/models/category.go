package models

import "time"

type Category struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Name        string    `json:"name" db:"name"`
	Color       string    `json:"color" db:"color"`
	Description string    `json:"description,omitempty" db:"description"`
	IsDefault   bool      `json:"is_default" db:"is_default"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultCategories are created for every newly registered user.
var DefaultCategories = []Category{
	{Name: "Work", Color: "#3B82F6", IsDefault: true},
	{Name: "Personal", Color: "#10B981", IsDefault: true},
	{Name: "Family", Color: "#F59E0B", IsDefault: true},
	{Name: "Health", Color: "#EF4444", IsDefault: true},
	{Name: "Study", Color: "#8B5CF6", IsDefault: true},
	{Name: "Entertainment", Color: "#06B6D4", IsDefault: true},
}
