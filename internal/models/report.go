package models

import "time"

// ReportSubject is everything a composite report is built from.
type ReportSubject struct {
	Response   SurveyResponse
	Student    User
	Survey     Survey
	Categories []Category
	Questions  []OrderedQuestion
	Answers    []Answer
	Feedback   []Feedback
}

// ShareLink is a signed, expiring link to a rendered report.
type ShareLink struct {
	Token       string    `json:"token"`
	ResponseID  string    `json:"response_id"`
	Fingerprint string    `json:"fingerprint"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// EvidenceAccess is the outcome of probing an evidence link.
type EvidenceAccess struct {
	OK         bool   `json:"ok"`
	Accessible bool   `json:"accessible"`
	Status     int    `json:"status,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// DueDateEvent is emitted for assignments nearing or past their due date.
type DueDateEvent struct {
	AssignmentID string    `json:"assignment_id"`
	SurveyID     string    `json:"survey_id"`
	StudentID    string    `json:"student_id"`
	AdvisorID    string    `json:"advisor_id"`
	DueDate      time.Time `json:"due_date"`
	Kind         string    `json:"kind"`
}

const (
	EventDueSoon = "assignment.due_soon"
	EventPastDue = "assignment.past_due"
)
