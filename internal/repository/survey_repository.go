package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/survey-review-api/internal/models"
)

const questionColumns = `q.id, q.category_id, q.question, q.question_order, q.question_type, q.options, q.required,
        q.depends_on_question_id, q.depends_on_value, q.created_at, q.updated_at`

// SurveyRepository reads surveys and manages their questions.
type SurveyRepository struct {
	db *sqlx.DB
}

// NewSurveyRepository constructs the repository.
func NewSurveyRepository(db *sqlx.DB) *SurveyRepository {
	return &SurveyRepository{db: db}
}

// FindByID returns a survey.
func (r *SurveyRepository) FindByID(ctx context.Context, id string) (*models.Survey, error) {
	const query = `SELECT id, title, description, track, active, created_at, updated_at FROM surveys WHERE id = $1`
	var survey models.Survey
	if err := r.db.GetContext(ctx, &survey, query, id); err != nil {
		return nil, err
	}
	return &survey, nil
}

// ListCategories returns a survey's categories in display order.
func (r *SurveyRepository) ListCategories(ctx context.Context, surveyID string) ([]models.Category, error) {
	const query = `SELECT id, survey_id, name, description, category_order FROM categories WHERE survey_id = $1 ORDER BY category_order, id`
	var categories []models.Category
	if err := r.db.SelectContext(ctx, &categories, query, surveyID); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// FindCategory returns one category.
func (r *SurveyRepository) FindCategory(ctx context.Context, id string) (*models.Category, error) {
	const query = `SELECT id, survey_id, name, description, category_order FROM categories WHERE id = $1`
	var category models.Category
	if err := r.db.GetContext(ctx, &category, query, id); err != nil {
		return nil, err
	}
	return &category, nil
}

// ListQuestions returns every question of a survey ordered by category order,
// then question order.
func (r *SurveyRepository) ListQuestions(ctx context.Context, surveyID string) ([]models.OrderedQuestion, error) {
	query := `SELECT ` + questionColumns + `, c.name AS category_name, c.category_order
        FROM questions q
        JOIN categories c ON c.id = q.category_id
        WHERE c.survey_id = $1
        ORDER BY c.category_order, q.question_order, q.id`
	var questions []models.OrderedQuestion
	if err := r.db.SelectContext(ctx, &questions, query, surveyID); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return questions, nil
}

// FindQuestion returns a question by id.
func (r *SurveyRepository) FindQuestion(ctx context.Context, id string) (*models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions q WHERE q.id = $1`
	var question models.Question
	if err := r.db.GetContext(ctx, &question, query, id); err != nil {
		return nil, err
	}
	return &question, nil
}

// CreateQuestion inserts a question.
func (r *SurveyRepository) CreateQuestion(ctx context.Context, question *models.Question) error {
	if question.ID == "" {
		question.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	question.CreatedAt = now
	question.UpdatedAt = now
	const query = `INSERT INTO questions (id, category_id, question, question_order, question_type, options, required, depends_on_question_id, depends_on_value, created_at, updated_at)
VALUES (:id, :category_id, :question, :question_order, :question_type, :options, :required, :depends_on_question_id, :depends_on_value, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, question); err != nil {
		return fmt.Errorf("create question: %w", err)
	}
	return nil
}

// UpdateQuestion overwrites a question's editable fields.
func (r *SurveyRepository) UpdateQuestion(ctx context.Context, question *models.Question) error {
	question.UpdatedAt = time.Now().UTC()
	const query = `UPDATE questions SET category_id = :category_id, question = :question, question_order = :question_order,
question_type = :question_type, options = :options, required = :required, depends_on_question_id = :depends_on_question_id,
depends_on_value = :depends_on_value, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, question)
	if err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update question %s: no rows", question.ID)
	}
	return nil
}
