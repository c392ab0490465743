package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/survey-review-api/internal/models"
	appErrors "github.com/noah-isme/survey-review-api/pkg/errors"
	"github.com/noah-isme/survey-review-api/pkg/export"
)

type exportResponseReader interface {
	ListBySurvey(ctx context.Context, surveyID string) ([]models.SurveyResponse, error)
	ListAnswersForResponses(ctx context.Context, responseIDs []string) ([]models.Answer, error)
}

// ExportFile is a rendered export ready to be sent as an attachment.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
	Rows        int
}

// ExportService flattens survey responses into tabular exports.
type ExportService struct {
	surveys   surveyQuestionReader
	responses exportResponseReader
	users     userReader
	logger    *zap.Logger
}

// NewExportService constructs ExportService.
func NewExportService(surveys surveyQuestionReader, responses exportResponseReader, users userReader, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{surveys: surveys, responses: responses, users: users, logger: logger}
}

// ExportResponses renders one row per student and one column per question in
// survey order. format is csv (default) or pdf.
func (s *ExportService) ExportResponses(ctx context.Context, surveyID, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	exporter, err := export.ForFormat(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported export format")
	}
	dataset, err := s.Dataset(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	body, err := exporter.Render(*dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("survey-%s-responses.%s", surveyID, exporter.Extension()),
		ContentType: exporter.ContentType(),
		Body:        body,
		Rows:        len(dataset.Rows),
	}, nil
}

// Dataset builds the export table for a survey.
func (s *ExportService) Dataset(ctx context.Context, surveyID string) (*export.Dataset, error) {
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
	responses, err := s.responses.ListBySurvey(ctx, surveyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load responses")
	}

	ids := make([]string, 0, len(responses))
	for _, r := range responses {
		ids = append(ids, r.ID)
	}
	answers, err := s.responses.ListAnswersForResponses(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load answers")
	}
	byResponse := make(map[string]map[string]models.AnswerValue, len(responses))
	for _, a := range answers {
		if byResponse[a.ResponseID] == nil {
			byResponse[a.ResponseID] = map[string]models.AnswerValue{}
		}
		byResponse[a.ResponseID][a.QuestionID] = a.Value
	}

	headers := []string{"Student", "Status", "Submitted At"}
	columns := make([]string, len(questions))
	for i, q := range questions {
		columns[i] = fmt.Sprintf("%s %d. %s", q.CategoryName, q.Order, q.Text)
		headers = append(headers, columns[i])
	}

	dataset := &export.Dataset{Title: survey.Title, Headers: headers}
	for _, r := range responses {
		row := map[string]string{
			"Student": r.StudentID,
			"Status":  string(r.Status),
		}
		if user, err := s.users.FindByID(ctx, r.StudentID); err == nil {
			row["Student"] = user.FullName
		} else if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("export student lookup failed", zap.String("student_id", r.StudentID), zap.Error(err))
		}
		if r.SubmittedAt != nil {
			row["Submitted At"] = r.SubmittedAt.UTC().Format("2006-01-02 15:04")
		}
		for i, q := range questions {
			if v, ok := byResponse[r.ID][q.ID]; ok {
				row[columns[i]] = v.Display()
			}
		}
		dataset.Rows = append(dataset.Rows, row)
	}
	return dataset, nil
}
