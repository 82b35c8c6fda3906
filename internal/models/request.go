package models

import "time"

// RequestType enumerates the closed set of intern request categories.
type RequestType string

const (
	RequestTypeConvention  RequestType = "CONVENTION"
	RequestTypeExtension   RequestType = "EXTENSION"
	RequestTypeLeave       RequestType = "LEAVE"
	RequestTypeAttestation RequestType = "ATTESTATION"
	RequestTypeEvaluation  RequestType = "EVALUATION"
	RequestTypeOther       RequestType = "OTHER"
)

// RequestPriority is informational only and never affects transition rules.
type RequestPriority string

const (
	RequestPriorityLow    RequestPriority = "LOW"
	RequestPriorityMedium RequestPriority = "MEDIUM"
	RequestPriorityHigh   RequestPriority = "HIGH"
	RequestPriorityUrgent RequestPriority = "URGENT"
)

// RequestStatus is the lifecycle discriminator. SUBMITTED is declared for wire
// compatibility but submit routes straight to TUTOR_REVIEW, so it is never
// persisted.
type RequestStatus string

const (
	RequestStatusDraft         RequestStatus = "DRAFT"
	RequestStatusSubmitted     RequestStatus = "SUBMITTED"
	RequestStatusTutorReview   RequestStatus = "TUTOR_REVIEW"
	RequestStatusHRReview      RequestStatus = "HR_REVIEW"
	RequestStatusFinanceReview RequestStatus = "FINANCE_REVIEW"
	RequestStatusApproved      RequestStatus = "APPROVED"
	RequestStatusRejected      RequestStatus = "REJECTED"
)

// Terminal reports whether no further transition is permitted.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}

// RequestEvent names the operations an actor may apply to a request.
type RequestEvent string

const (
	RequestEventSubmit  RequestEvent = "submit"
	RequestEventApprove RequestEvent = "approve"
	RequestEventReject  RequestEvent = "reject"
)

// Request is an intern-submitted request moving through the approval chain.
type Request struct {
	ID          string          `db:"id" json:"id"`
	InternID    string          `db:"intern_id" json:"internId"`
	Type        RequestType     `db:"type" json:"type"`
	Title       string          `db:"title" json:"title"`
	Description string          `db:"description" json:"description"`
	Priority    RequestPriority `db:"priority" json:"priority"`
	Status      RequestStatus   `db:"status" json:"status"`

	SubmittedAt       *time.Time `db:"submitted_at" json:"submittedAt,omitempty"`
	TutorApprovedBy   *string    `db:"tutor_approved_by" json:"tutorApprovedBy,omitempty"`
	TutorApprovedAt   *time.Time `db:"tutor_approved_at" json:"tutorApprovedAt,omitempty"`
	HRApprovedBy      *string    `db:"hr_approved_by" json:"hrApprovedBy,omitempty"`
	HRApprovedAt      *time.Time `db:"hr_approved_at" json:"hrApprovedAt,omitempty"`
	FinanceApprovedBy *string    `db:"finance_approved_by" json:"financeApprovedBy,omitempty"`
	FinanceApprovedAt *time.Time `db:"finance_approved_at" json:"financeApprovedAt,omitempty"`
	FinalApprovedAt   *time.Time `db:"final_approved_at" json:"finalApprovedAt,omitempty"`
	RejectionReason   *string    `db:"rejection_reason" json:"rejectionReason,omitempty"`
	ReviewComment     *string    `db:"review_comment" json:"reviewComment,omitempty"`

	DueDate   *time.Time `db:"due_date" json:"dueDate,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
}

// RequestScope restricts a listing to the rows an actor may see. Fields are
// OR-combined; All short-circuits the scope entirely (admin).
type RequestScope struct {
	All         bool
	OwnerID     string
	TutorID     string
	StageStatus RequestStatus
}

// RequestFilter combines the capability scope with pure narrowing criteria.
type RequestFilter struct {
	Scope    RequestScope
	Statuses []RequestStatus
	Type     RequestType
	Search   string
	Limit    int
	Offset   int
}

// TransitionEvent is published once per successful status change and consumed
// asynchronously by the notification dispatcher.
type TransitionEvent struct {
	RequestID   string        `json:"requestId"`
	RequestType RequestType   `json:"requestType"`
	InternID    string        `json:"internId"`
	FromStatus  RequestStatus `json:"fromStatus"`
	ToStatus    RequestStatus `json:"toStatus"`
	ActorID     string        `json:"actorId"`
	ActorRole   UserRole      `json:"actorRole"`
	Reason      string        `json:"reason,omitempty"`
	OccurredAt  time.Time     `json:"occurredAt"`
}
