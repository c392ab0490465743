package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/survey-review-api/internal/models"
	"github.com/noah-isme/survey-review-api/internal/repository"
	appErrors "github.com/noah-isme/survey-review-api/pkg/errors"
)

type surveyQuestionReader interface {
	FindByID(ctx context.Context, id string) (*models.Survey, error)
	ListQuestions(ctx context.Context, surveyID string) ([]models.OrderedQuestion, error)
}

type submissionStore interface {
	RunInTx(ctx context.Context, fn func(repository.AnswerWriter) error) error
}

// Submission outcomes recorded in metrics.
const (
	SubmissionAccepted        = "accepted"
	SubmissionMissingRequired = "missing_required"
	SubmissionInvalid         = "validation_failed"
	SubmissionFailed          = "error"
)

// SubmissionService validates and stores a student's answers.
type SubmissionService struct {
	surveys surveyQuestionReader
	users   userReader
	store   submissionStore
	metrics *MetricsService
	logger  *zap.Logger
}

// NewSubmissionService constructs SubmissionService.
func NewSubmissionService(surveys surveyQuestionReader, users userReader, store submissionStore, metrics *MetricsService, logger *zap.Logger) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{surveys: surveys, users: users, store: store, metrics: metrics, logger: logger}
}

// Submit stores the answers in req for req.StudentID.
//
// Required questions left blank fail with MISSING_REQUIRED before anything is
// written. Everything else happens in one transaction: a rejected evidence
// link or a storage failure rolls back every answer of the submission.
// Resubmitting the same answers leaves the stored rows unchanged. The
// response advisor comes from the student record and only fills an empty
// slot.
func (s *SubmissionService) Submit(ctx context.Context, req models.SubmitRequest) (*models.SurveyResponse, error) {
	if strings.TrimSpace(req.SurveyID) == "" || strings.TrimSpace(req.StudentID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "survey and student are required")
	}
	if _, err := s.surveys.FindByID(ctx, req.SurveyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "survey not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load survey")
	}
	questions, err := s.surveys.ListQuestions(ctx, req.SurveyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load questions")
	}
	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	answers := make(map[string]models.AnswerValue, len(req.Answers))
	for id, v := range req.Answers {
		answers[id] = v.Normalized()
	}

	if missing := missingRequired(questions, answers); len(missing) > 0 {
		s.metrics.RecordSubmission(SubmissionMissingRequired)
		return nil, appErrors.MissingRequired(missing)
	}

	var response *models.SurveyResponse
	err = s.store.RunInTx(ctx, func(w repository.AnswerWriter) error {
		resp, err := w.EnsureResponse(ctx, req.SurveyID, req.StudentID, student.AdvisorID)
		if err != nil {
			return err
		}
		for _, q := range questions {
			value, ok := answers[q.ID]
			if !ok || value.IsZero() || DependencyUnanswered(q.Question, answers) {
				continue
			}
			isEvidence := q.Type == models.QuestionEvidence && !value.IsBlank()
			if isEvidence {
				if err := ValidateLink(value.String()); err != nil {
					return appErrors.ValidationFailed(q.ID, err)
				}
			}
			answer, err := w.UpsertAnswer(ctx, resp.ID, q.ID, value)
			if err != nil {
				return err
			}
			if isEvidence {
				upload := &models.EvidenceUpload{
					ResponseID: resp.ID,
					QuestionID: q.ID,
					AnswerID:   answer.ID,
					StudentID:  req.StudentID,
					Link:       value.String(),
				}
				if err := w.RecordEvidence(ctx, upload); err != nil {
					return err
				}
			}
		}
		advanced, err := w.AdvanceStatus(ctx, resp.ID, models.StatusSubmitted)
		if err != nil {
			return err
		}
		if advanced {
			resp.Status = models.StatusSubmitted
		}
		if err := w.CompleteAssignment(ctx, req.SurveyID, req.StudentID); err != nil {
			return err
		}
		response = resp
		return nil
	})
	if err != nil {
		var typed *appErrors.Error
		if errors.As(err, &typed) {
			s.metrics.RecordSubmission(SubmissionInvalid)
			return nil, typed
		}
		s.metrics.RecordSubmission(SubmissionFailed)
		s.logger.Error("survey submission rolled back",
			zap.String("survey_id", req.SurveyID),
			zap.String("student_id", req.StudentID),
			zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save survey response")
	}

	s.metrics.RecordSubmission(SubmissionAccepted)
	s.logger.Info("survey submitted",
		zap.String("survey_id", req.SurveyID),
		zap.String("student_id", req.StudentID),
		zap.String("response_id", response.ID))
	return response, nil
}

// missingRequired lists required questions without a usable answer, in
// question order.
func missingRequired(questions []models.OrderedQuestion, answers map[string]models.AnswerValue) []string {
	var missing []string
	for _, q := range questions {
		if DependencyUnanswered(q.Question, answers) {
			continue
		}
		if IsRequired(q.Question, answers) && answers[q.ID].IsBlank() {
			missing = append(missing, q.ID)
		}
	}
	return missing
}
