package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/survey-review-api/internal/models"
)

// AssignmentRepository reads survey assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// ListOpenDueBefore returns incomplete assignments due at or before until.
func (r *AssignmentRepository) ListOpenDueBefore(ctx context.Context, until time.Time) ([]models.SurveyAssignment, error) {
	const query = `SELECT id, survey_id, advisor_id, student_id, assigned_at, due_date, completed_at
FROM survey_assignments
WHERE completed_at IS NULL AND due_date IS NOT NULL AND due_date <= $1
ORDER BY due_date, id`
	var assignments []models.SurveyAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, until); err != nil {
		return nil, fmt.Errorf("list due assignments: %w", err)
	}
	return assignments, nil
}
