package models

import "time"

// Internship binds an intern to an assigned tutor for a placement period. The
// workflow engine resolves tutor-stage authorization through this record.
type Internship struct {
	ID           string     `db:"id" json:"id"`
	InternID     string     `db:"intern_id" json:"internId"`
	TutorID      string     `db:"tutor_id" json:"tutorId"`
	Organization string     `db:"organization" json:"organization"`
	Subject      string     `db:"subject" json:"subject"`
	StartDate    time.Time  `db:"start_date" json:"startDate"`
	EndDate      *time.Time `db:"end_date" json:"endDate,omitempty"`
	Active       bool       `db:"active" json:"active"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// InternshipFilter constrains internship listings.
type InternshipFilter struct {
	InternID string
	TutorID  string
	Active   *bool
	Limit    int
	Offset   int
}
