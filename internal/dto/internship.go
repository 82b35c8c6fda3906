package dto

// CreateInternshipInput binds an intern to a tutor for a placement.
type CreateInternshipInput struct {
	InternID     string  `json:"internId" binding:"required"`
	TutorID      string  `json:"tutorId" binding:"required"`
	Organization string  `json:"organization" binding:"required"`
	Subject      string  `json:"subject"`
	StartDate    string  `json:"startDate" binding:"required"`
	EndDate      *string `json:"endDate"`
}

// UpdateInternshipInput carries mutable placement fields.
type UpdateInternshipInput struct {
	TutorID      *string `json:"tutorId"`
	Organization *string `json:"organization"`
	Subject      *string `json:"subject"`
	EndDate      *string `json:"endDate"`
	Active       *bool   `json:"active"`
}
