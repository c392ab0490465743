package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/survey-review-api/internal/models"
)

// ResponseRepository reads survey responses with their answers and evidence.
type ResponseRepository struct {
	db *sqlx.DB
}

// NewResponseRepository constructs the repository.
func NewResponseRepository(db *sqlx.DB) *ResponseRepository {
	return &ResponseRepository{db: db}
}

// FindByID returns a response.
func (r *ResponseRepository) FindByID(ctx context.Context, id string) (*models.SurveyResponse, error) {
	query := `SELECT ` + responseColumns + ` FROM survey_responses WHERE id = $1`
	var response models.SurveyResponse
	if err := r.db.GetContext(ctx, &response, query, id); err != nil {
		return nil, err
	}
	return &response, nil
}

// FindByStudentSurvey returns the student's response to a survey.
func (r *ResponseRepository) FindByStudentSurvey(ctx context.Context, studentID, surveyID string) (*models.SurveyResponse, error) {
	query := `SELECT ` + responseColumns + ` FROM survey_responses WHERE student_id = $1 AND survey_id = $2`
	var response models.SurveyResponse
	if err := r.db.GetContext(ctx, &response, query, studentID, surveyID); err != nil {
		return nil, err
	}
	return &response, nil
}

// ListBySurvey returns every response to a survey.
func (r *ResponseRepository) ListBySurvey(ctx context.Context, surveyID string) ([]models.SurveyResponse, error) {
	query := `SELECT ` + responseColumns + ` FROM survey_responses WHERE survey_id = $1 ORDER BY created_at, id`
	var responses []models.SurveyResponse
	if err := r.db.SelectContext(ctx, &responses, query, surveyID); err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	return responses, nil
}

// ListAnswers returns the decoded answers of one response.
func (r *ResponseRepository) ListAnswers(ctx context.Context, responseID string) ([]models.Answer, error) {
	return r.ListAnswersForResponses(ctx, []string{responseID})
}

// ListAnswersForResponses returns decoded answers for several responses.
func (r *ResponseRepository) ListAnswersForResponses(ctx context.Context, responseIDs []string) ([]models.Answer, error) {
	if len(responseIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT id, response_id, question_id, value_kind, value, created_at, updated_at
FROM answers WHERE response_id = ANY($1) ORDER BY response_id, question_id`
	var answers []models.Answer
	if err := r.db.SelectContext(ctx, &answers, query, pq.Array(responseIDs)); err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	for i := range answers {
		if err := answers[i].Decode(); err != nil {
			return nil, err
		}
	}
	return answers, nil
}

// ListEvidence returns the evidence links recorded for a response.
func (r *ResponseRepository) ListEvidence(ctx context.Context, responseID string) ([]models.EvidenceUpload, error) {
	const query = `SELECT id, response_id, question_id, answer_id, student_id, link, created_at
FROM evidence_uploads WHERE response_id = $1 ORDER BY question_id, created_at`
	var uploads []models.EvidenceUpload
	if err := r.db.SelectContext(ctx, &uploads, query, responseID); err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	return uploads, nil
}
