package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/survey-review-api/internal/models"
	appErrors "github.com/noah-isme/survey-review-api/pkg/errors"
)

type feedbackRepository interface {
	Create(ctx context.Context, feedback *models.Feedback) error
	Update(ctx context.Context, feedback *models.Feedback) error
	FindByID(ctx context.Context, id string) (*models.Feedback, error)
	ListForStudent(ctx context.Context, studentID, surveyID string) ([]models.Feedback, error)
}

type categoryReader interface {
	ListCategories(ctx context.Context, surveyID string) ([]models.Category, error)
	FindCategory(ctx context.Context, id string) (*models.Category, error)
}

// FeedbackService records advisor feedback on survey responses.
type FeedbackService struct {
	repo       feedbackRepository
	categories categoryReader
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewFeedbackService constructs FeedbackService.
func NewFeedbackService(repo feedbackRepository, categories categoryReader, validate *validator.Validate, logger *zap.Logger) *FeedbackService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackService{repo: repo, categories: categories, validator: validate, logger: logger}
}

// Create stores feedback from advisorID. A request carrying Ratings is
// stored as one entry on the survey's first category with the mean of the
// positive scores.
func (s *FeedbackService) Create(ctx context.Context, advisorID string, req models.FeedbackRequest) (*models.Feedback, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid feedback payload")
	}
	feedback := &models.Feedback{
		StudentID: req.StudentID,
		SurveyID:  req.SurveyID,
		AdvisorID: advisorID,
	}
	if err := s.apply(ctx, feedback, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, feedback); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create feedback")
	}
	s.logger.Info("feedback recorded",
		zap.String("feedback_id", feedback.ID),
		zap.String("student_id", feedback.StudentID),
		zap.String("advisor_id", advisorID))
	return feedback, nil
}

// Update replaces the content of an existing entry. Advisors may only edit
// their own feedback.
func (s *FeedbackService) Update(ctx context.Context, actorID string, role models.UserRole, id string, req models.FeedbackRequest) (*models.Feedback, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid feedback payload")
	}
	feedback, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "feedback not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load feedback")
	}
	if role != models.RoleAdmin && feedback.AdvisorID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "feedback belongs to another advisor")
	}
	if feedback.StudentID != req.StudentID || feedback.SurveyID != req.SurveyID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student and survey cannot change")
	}
	feedback.QuestionID, feedback.Score, feedback.AverageScore, feedback.Comments = nil, nil, nil, nil
	if err := s.apply(ctx, feedback, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, feedback); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update feedback")
	}
	return feedback, nil
}

// ListForStudent returns feedback for a student's survey, newest first.
func (s *FeedbackService) ListForStudent(ctx context.Context, studentID, surveyID string) ([]models.Feedback, models.FeedbackSummary, error) {
	feedback, err := s.repo.ListForStudent(ctx, studentID, surveyID)
	if err != nil {
		return nil, models.FeedbackSummary{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list feedback")
	}
	return feedback, Summarize(feedback), nil
}

func (s *FeedbackService) apply(ctx context.Context, feedback *models.Feedback, req models.FeedbackRequest) error {
	if len(req.Ratings) > 0 {
		categories, err := s.categories.ListCategories(ctx, req.SurveyID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load categories")
		}
		if len(categories) == 0 {
			return appErrors.Clone(appErrors.ErrValidation, "survey has no categories")
		}
		payload, err := json.Marshal(req.Ratings)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ratings")
		}
		comments := string(payload)
		feedback.CategoryID = categories[0].ID
		feedback.AverageScore = averageRating(req.Ratings)
		feedback.Comments = &comments
		return nil
	}

	category, err := s.categories.FindCategory(ctx, req.CategoryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "category not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category")
	}
	if category.SurveyID != req.SurveyID {
		return appErrors.Clone(appErrors.ErrValidation, "category does not belong to survey")
	}
	feedback.CategoryID = category.ID
	feedback.QuestionID = req.QuestionID
	feedback.Score = req.Score
	if req.Comments != nil {
		trimmed := strings.TrimSpace(*req.Comments)
		feedback.Comments = &trimmed
	}
	return nil
}

// averageRating is the mean of the positive scores, or nil when none are.
func averageRating(ratings map[string]models.CategoryRating) *float64 {
	var sum, n int
	for _, r := range ratings {
		if r.Score > 0 {
			sum += r.Score
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := math.Round(float64(sum)/float64(n)*100) / 100
	return &avg
}

// Summarize counts feedback entries and averages their scores. Ratings-mode
// entries contribute their average.
func Summarize(feedback []models.Feedback) models.FeedbackSummary {
	summary := models.FeedbackSummary{TotalEntries: len(feedback)}
	var sum float64
	for _, f := range feedback {
		switch {
		case f.AverageScore != nil:
			sum += *f.AverageScore
		case f.Score != nil:
			sum += float64(*f.Score)
		default:
			continue
		}
		summary.ScoredEntries++
	}
	if summary.ScoredEntries > 0 {
		avg := math.Round(sum/float64(summary.ScoredEntries)*100) / 100
		summary.AverageScore = &avg
	}
	return summary
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
