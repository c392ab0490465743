package models

import "time"

// ResponseStatus is the lifecycle state of a survey response.
type ResponseStatus string

const (
	StatusNotStarted  ResponseStatus = "not_started"
	StatusInProgress  ResponseStatus = "in_progress"
	StatusSubmitted   ResponseStatus = "submitted"
	StatusUnderReview ResponseStatus = "under_review"
	StatusApproved    ResponseStatus = "approved"
)

var statusRank = map[ResponseStatus]int{
	StatusNotStarted:  0,
	StatusInProgress:  1,
	StatusSubmitted:   2,
	StatusUnderReview: 3,
	StatusApproved:    4,
}

// Rank orders statuses; unknown statuses rank lowest.
func (s ResponseStatus) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// Before reports whether s precedes other in the lifecycle.
func (s ResponseStatus) Before(other ResponseStatus) bool {
	return s.Rank() < other.Rank()
}

// SurveyResponse is a student's single response to a survey.
type SurveyResponse struct {
	ID          string         `db:"id" json:"id"`
	SurveyID    string         `db:"survey_id" json:"survey_id"`
	StudentID   string         `db:"student_id" json:"student_id"`
	AdvisorID   *string        `db:"advisor_id" json:"advisor_id,omitempty"`
	Status      ResponseStatus `db:"status" json:"status"`
	SubmittedAt *time.Time     `db:"submitted_at" json:"submitted_at,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// SubmitRequest carries a student's answers keyed by question id. Identity
// fields come from the route and token, never from the body.
type SubmitRequest struct {
	SurveyID  string                 `json:"-"`
	StudentID string                 `json:"-"`
	Answers   map[string]AnswerValue `json:"answers" validate:"required"`
}

// SurveyForm is what a student sees before submitting.
type SurveyForm struct {
	Survey    Survey                      `json:"survey"`
	Response  *SurveyResponse             `json:"response,omitempty"`
	Questions []OrderedQuestion           `json:"questions"`
	Answers   map[string]AnswerValue      `json:"answers"`
	Required  map[string]bool             `json:"required"`
	Evidence  map[string][]EvidenceUpload `json:"evidence"`
}

// SurveyAssignment asks an advisor's student to complete a survey by a date.
type SurveyAssignment struct {
	ID          string     `db:"id" json:"id"`
	SurveyID    string     `db:"survey_id" json:"survey_id"`
	AdvisorID   string     `db:"advisor_id" json:"advisor_id"`
	StudentID   string     `db:"student_id" json:"student_id"`
	AssignedAt  time.Time  `db:"assigned_at" json:"assigned_at"`
	DueDate     *time.Time `db:"due_date" json:"due_date,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}
