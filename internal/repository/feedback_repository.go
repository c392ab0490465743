package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/survey-review-api/internal/models"
)

const feedbackColumns = `id, student_id, survey_id, category_id, advisor_id, question_id, score, average_score, comments, created_at, updated_at`

// FeedbackRepository persists advisor feedback.
type FeedbackRepository struct {
	db *sqlx.DB
}

// NewFeedbackRepository constructs the repository.
func NewFeedbackRepository(db *sqlx.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// Create inserts a feedback row.
func (r *FeedbackRepository) Create(ctx context.Context, feedback *models.Feedback) error {
	if feedback.ID == "" {
		feedback.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	feedback.CreatedAt = now
	feedback.UpdatedAt = now
	const query = `INSERT INTO feedback (id, student_id, survey_id, category_id, advisor_id, question_id, score, average_score, comments, created_at, updated_at)
VALUES (:id, :student_id, :survey_id, :category_id, :advisor_id, :question_id, :score, :average_score, :comments, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, feedback); err != nil {
		return fmt.Errorf("create feedback: %w", err)
	}
	return nil
}

// Update overwrites score and comments and bumps updated_at.
func (r *FeedbackRepository) Update(ctx context.Context, feedback *models.Feedback) error {
	feedback.UpdatedAt = time.Now().UTC()
	const query = `UPDATE feedback SET category_id = :category_id, question_id = :question_id, score = :score,
average_score = :average_score, comments = :comments, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, feedback); err != nil {
		return fmt.Errorf("update feedback: %w", err)
	}
	return nil
}

// FindByID returns one feedback row.
func (r *FeedbackRepository) FindByID(ctx context.Context, id string) (*models.Feedback, error) {
	query := `SELECT ` + feedbackColumns + ` FROM feedback WHERE id = $1`
	var feedback models.Feedback
	if err := r.db.GetContext(ctx, &feedback, query, id); err != nil {
		return nil, err
	}
	return &feedback, nil
}

// ListForStudent returns a student's feedback for a survey, newest first.
func (r *FeedbackRepository) ListForStudent(ctx context.Context, studentID, surveyID string) ([]models.Feedback, error) {
	query := `SELECT ` + feedbackColumns + ` FROM feedback WHERE student_id = $1 AND survey_id = $2 ORDER BY created_at DESC, id`
	var feedback []models.Feedback
	if err := r.db.SelectContext(ctx, &feedback, query, studentID, surveyID); err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	return feedback, nil
}
