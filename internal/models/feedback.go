package models

import "time"

// Feedback is an advisor's assessment of a student's answers in a category.
type Feedback struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	SurveyID     string    `db:"survey_id" json:"survey_id"`
	CategoryID   string    `db:"category_id" json:"category_id"`
	AdvisorID    string    `db:"advisor_id" json:"advisor_id"`
	QuestionID   *string   `db:"question_id" json:"question_id,omitempty"`
	Score        *int      `db:"score" json:"score,omitempty"`
	AverageScore *float64  `db:"average_score" json:"average_score,omitempty"`
	Comments     *string   `db:"comments" json:"comments,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// CategoryRating is one entry of a ratings-mode feedback request.
type CategoryRating struct {
	Score   int    `json:"score" validate:"min=0,max=5"`
	Comment string `json:"comment,omitempty" validate:"max=2000"`
}

// FeedbackRequest creates or updates feedback. Either CategoryID or Ratings
// must be present.
type FeedbackRequest struct {
	StudentID  string                    `json:"student_id" validate:"required"`
	SurveyID   string                    `json:"survey_id" validate:"required"`
	CategoryID string                    `json:"category_id" validate:"required_without=Ratings"`
	QuestionID *string                   `json:"question_id,omitempty"`
	Score      *int                      `json:"score,omitempty" validate:"omitempty,min=1,max=5"`
	Comments   *string                   `json:"comments,omitempty" validate:"omitempty,max=4000"`
	Ratings    map[string]CategoryRating `json:"ratings,omitempty" validate:"omitempty,dive"`
}

// FeedbackSummary aggregates the feedback shown in a report.
type FeedbackSummary struct {
	TotalEntries  int      `json:"total_entries"`
	ScoredEntries int      `json:"scored_entries"`
	AverageScore  *float64 `json:"average_score"`
}
