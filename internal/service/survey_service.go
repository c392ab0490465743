package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/survey-review-api/internal/models"
	appErrors "github.com/noah-isme/survey-review-api/pkg/errors"
)

type surveyRepository interface {
	FindByID(ctx context.Context, id string) (*models.Survey, error)
	FindCategory(ctx context.Context, id string) (*models.Category, error)
	ListQuestions(ctx context.Context, surveyID string) ([]models.OrderedQuestion, error)
	FindQuestion(ctx context.Context, id string) (*models.Question, error)
	CreateQuestion(ctx context.Context, question *models.Question) error
	UpdateQuestion(ctx context.Context, question *models.Question) error
}

type responseReader interface {
	FindByID(ctx context.Context, id string) (*models.SurveyResponse, error)
	FindByStudentSurvey(ctx context.Context, studentID, surveyID string) (*models.SurveyResponse, error)
	ListBySurvey(ctx context.Context, surveyID string) ([]models.SurveyResponse, error)
	ListAnswers(ctx context.Context, responseID string) ([]models.Answer, error)
	ListAnswersForResponses(ctx context.Context, responseIDs []string) ([]models.Answer, error)
	ListEvidence(ctx context.Context, responseID string) ([]models.EvidenceUpload, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// QuestionRequest creates or replaces a question.
type QuestionRequest struct {
	CategoryID          string              `json:"category_id" validate:"required"`
	Text                string              `json:"question" validate:"required,max=2000"`
	Order               int                 `json:"order" validate:"min=1"`
	Type                models.QuestionType `json:"type" validate:"required,oneof=multiple_choice scale short_answer evidence"`
	Options             []string            `json:"options" validate:"omitempty,dive,max=500"`
	Required            bool                `json:"required"`
	DependsOnQuestionID *string             `json:"depends_on_question_id,omitempty"`
	DependsOnValue      *string             `json:"depends_on_value,omitempty" validate:"required_with=DependsOnQuestionID"`
}

// SurveyService serves survey forms and question authoring.
type SurveyService struct {
	surveys   surveyRepository
	responses responseReader
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSurveyService constructs SurveyService.
func NewSurveyService(surveys surveyRepository, responses responseReader, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *SurveyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SurveyService{surveys: surveys, responses: responses, audit: audit, validator: validate, logger: logger}
}

// Form returns the survey with the student's saved answers and which
// questions are currently required.
func (s *SurveyService) Form(ctx context.Context, surveyID, studentID string) (*models.SurveyForm, error) {
	survey, err := s.surveys.FindByID(ctx, surveyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "survey not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load survey")
	}
	questions, err := s.surveys.ListQuestions(ctx, surveyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load questions")
	}

	form := &models.SurveyForm{
		Survey:    *survey,
		Questions: questions,
		Answers:   map[string]models.AnswerValue{},
		Evidence:  map[string][]models.EvidenceUpload{},
	}

	response, err := s.responses.FindByStudentSurvey(ctx, studentID, surveyID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load response")
	default:
		form.Response = response
		answers, err := s.responses.ListAnswers(ctx, response.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load answers")
		}
		for _, a := range answers {
			form.Answers[a.QuestionID] = a.Value
		}
		uploads, err := s.responses.ListEvidence(ctx, response.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evidence")
		}
		for _, u := range uploads {
			form.Evidence[u.QuestionID] = append(form.Evidence[u.QuestionID], u)
		}
	}

	form.Required = ComputeRequirements(questions, form.Answers)
	return form, nil
}

// CreateQuestion adds a question after checking its dependency graph.
func (s *SurveyService) CreateQuestion(ctx context.Context, actorID string, req QuestionRequest) (*models.Question, error) {
	question := questionFromRequest(req)
	return s.saveQuestion(ctx, actorID, question, true)
}

// UpdateQuestion replaces an existing question.
func (s *SurveyService) UpdateQuestion(ctx context.Context, actorID, id string, req QuestionRequest) (*models.Question, error) {
	existing, err := s.surveys.FindQuestion(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "question not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load question")
	}
	question := questionFromRequest(req)
	question.ID = existing.ID
	question.CreatedAt = existing.CreatedAt
	return s.saveQuestion(ctx, actorID, question, false)
}

func (s *SurveyService) saveQuestion(ctx context.Context, actorID string, question *models.Question, create bool) (*models.Question, error) {
	if err := s.validator.Struct(QuestionRequest{
		CategoryID:          question.CategoryID,
		Text:                question.Text,
		Order:               question.Order,
		Type:                question.Type,
		Options:             question.Options,
		DependsOnQuestionID: question.DependsOnQuestionID,
		DependsOnValue:      question.DependsOnValue,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid question payload")
	}
	if question.Type == models.QuestionMultipleChoice && len(question.Options) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "multiple choice questions need options")
	}

	category, err := s.surveys.FindCategory(ctx, question.CategoryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "category not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category")
	}
	existing, err := s.surveys.ListQuestions(ctx, category.SurveyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load questions")
	}

	graph := make([]models.Question, 0, len(existing)+1)
	for _, q := range existing {
		if q.ID != question.ID {
			graph = append(graph, q.Question)
		}
	}
	if create && question.ID == "" {
		// the repository assigns the id on insert; a placeholder lets the
		// graph check see the new node
		question.ID = "new:" + question.CategoryID
	}
	graph = append(graph, *question)
	if err := ValidateDependencyGraph(graph); err != nil {
		return nil, err
	}
	if create {
		question.ID = ""
		err = s.surveys.CreateQuestion(ctx, question)
	} else {
		err = s.surveys.UpdateQuestion(ctx, question)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save question")
	}

	action := models.AuditActionQuestionUpdate
	if create {
		action = models.AuditActionQuestionCreate
	}
	s.recordAudit(ctx, actorID, category.SurveyID, action, map[string]interface{}{
		"question_id": question.ID,
		"category_id": question.CategoryID,
		"type":        question.Type,
	})
	return question, nil
}

func (s *SurveyService) recordAudit(ctx context.Context, actorID, surveyID, action string, metadata map[string]interface{}) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(metadata)
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		SurveyID: &surveyID,
		ActorID:  actorID,
		Action:   action,
		Metadata: payload,
	}); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

func questionFromRequest(req QuestionRequest) *models.Question {
	q := &models.Question{
		CategoryID: strings.TrimSpace(req.CategoryID),
		Text:       strings.TrimSpace(req.Text),
		Order:      req.Order,
		Type:       req.Type,
		Options:    models.ParseStringList(""),
		Required:   req.Required,
	}
	for _, opt := range req.Options {
		if t := strings.TrimSpace(opt); t != "" {
			q.Options = append(q.Options, t)
		}
	}
	if req.DependsOnQuestionID != nil && strings.TrimSpace(*req.DependsOnQuestionID) != "" {
		dep := strings.TrimSpace(*req.DependsOnQuestionID)
		q.DependsOnQuestionID = &dep
		q.DependsOnValue = req.DependsOnValue
	}
	return q
}
