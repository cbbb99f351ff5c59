package models

import "time"

// Student represents a learner on the roster.
type Student struct {
	ID        string     `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	BirthDate *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Classroom string     `db:"classroom" json:"classroom"`
	Notes     string     `db:"notes" json:"notes"`
	Active    bool       `db:"active" json:"active"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// StudentFilter captures filtering criteria for listing students.
type StudentFilter struct {
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
