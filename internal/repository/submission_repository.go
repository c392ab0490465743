package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/survey-review-api/internal/models"
	"github.com/noah-isme/survey-review-api/pkg/database"
)

// AnswerWriter is the set of writes a submission performs inside one
// transaction.
type AnswerWriter interface {
	EnsureResponse(ctx context.Context, surveyID, studentID string, advisorID *string) (*models.SurveyResponse, error)
	UpsertAnswer(ctx context.Context, responseID, questionID string, value models.AnswerValue) (*models.Answer, error)
	RecordEvidence(ctx context.Context, upload *models.EvidenceUpload) error
	AdvanceStatus(ctx context.Context, responseID string, target models.ResponseStatus) (bool, error)
	CompleteAssignment(ctx context.Context, surveyID, studentID string) error
}

// SubmissionRepository runs submission writes transactionally.
type SubmissionRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// RunInTx executes fn with a writer bound to a single transaction. Any error
// from fn rolls back every write.
func (r *SubmissionRepository) RunInTx(ctx context.Context, fn func(AnswerWriter) error) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return fn(&submissionTx{tx: tx, now: r.now})
	})
}

type submissionTx struct {
	tx  *sqlx.Tx
	now func() time.Time
}

const responseColumns = `id, survey_id, student_id, advisor_id, status, submitted_at, created_at, updated_at`

// EnsureResponse finds or creates the (student, survey) response row. An
// advisor already on the row is kept.
func (s *submissionTx) EnsureResponse(ctx context.Context, surveyID, studentID string, advisorID *string) (*models.SurveyResponse, error) {
	now := s.now()
	query := `INSERT INTO survey_responses (id, survey_id, student_id, advisor_id, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (student_id, survey_id) DO UPDATE SET advisor_id = COALESCE(survey_responses.advisor_id, EXCLUDED.advisor_id)
RETURNING ` + responseColumns
	var response models.SurveyResponse
	if err := s.tx.QueryRowxContext(ctx, query, uuid.NewString(), surveyID, studentID, advisorID, models.StatusInProgress, now).StructScan(&response); err != nil {
		return nil, fmt.Errorf("ensure survey response: %w", err)
	}
	return &response, nil
}

// UpsertAnswer writes one answer per (response, question). Rewriting the
// same value keeps the row and its updated_at untouched.
func (s *submissionTx) UpsertAnswer(ctx context.Context, responseID, questionID string, value models.AnswerValue) (*models.Answer, error) {
	kind, payload := value.Encode()
	const query = `INSERT INTO answers (id, response_id, question_id, value_kind, value, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (response_id, question_id) DO UPDATE SET
    value_kind = EXCLUDED.value_kind,
    value = EXCLUDED.value,
    updated_at = CASE WHEN answers.value_kind = EXCLUDED.value_kind AND answers.value = EXCLUDED.value
        THEN answers.updated_at ELSE EXCLUDED.updated_at END
RETURNING id, response_id, question_id, value_kind, value, created_at, updated_at`
	var answer models.Answer
	if err := s.tx.QueryRowxContext(ctx, query, uuid.NewString(), responseID, questionID, kind, payload, s.now()).StructScan(&answer); err != nil {
		return nil, fmt.Errorf("upsert answer %s: %w", questionID, err)
	}
	answer.Value = value
	return &answer, nil
}

// RecordEvidence stores an evidence link once per (response, question, link).
func (s *submissionTx) RecordEvidence(ctx context.Context, upload *models.EvidenceUpload) error {
	if upload.ID == "" {
		upload.ID = uuid.NewString()
	}
	if upload.CreatedAt.IsZero() {
		upload.CreatedAt = s.now()
	}
	const query = `INSERT INTO evidence_uploads (id, response_id, question_id, answer_id, student_id, link, created_at)
VALUES (:id, :response_id, :question_id, :answer_id, :student_id, :link, :created_at)
ON CONFLICT (response_id, question_id, link) DO NOTHING`
	if _, err := s.tx.NamedExecContext(ctx, query, upload); err != nil {
		return fmt.Errorf("record evidence: %w", err)
	}
	return nil
}

// AdvanceStatus moves the response to target only from an earlier status.
// It reports whether the row changed.
func (s *submissionTx) AdvanceStatus(ctx context.Context, responseID string, target models.ResponseStatus) (bool, error) {
	earlier := make([]string, 0, 4)
	for _, st := range []models.ResponseStatus{models.StatusNotStarted, models.StatusInProgress, models.StatusSubmitted, models.StatusUnderReview, models.StatusApproved} {
		if st.Before(target) {
			earlier = append(earlier, string(st))
		}
	}
	const query = `UPDATE survey_responses SET status = $2, submitted_at = COALESCE(submitted_at, $3), updated_at = $3
WHERE id = $1 AND status = ANY($4)`
	res, err := s.tx.ExecContext(ctx, query, responseID, target, s.now(), pq.Array(earlier))
	if err != nil {
		return false, fmt.Errorf("advance response status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("advance response status: %w", err)
	}
	return affected > 0, nil
}

// CompleteAssignment marks the student's open assignment for the survey done.
func (s *submissionTx) CompleteAssignment(ctx context.Context, surveyID, studentID string) error {
	const query = `UPDATE survey_assignments SET completed_at = $3 WHERE survey_id = $1 AND student_id = $2 AND completed_at IS NULL`
	if _, err := s.tx.ExecContext(ctx, query, surveyID, studentID, s.now()); err != nil {
		return fmt.Errorf("complete assignment: %w", err)
	}
	return nil
}
