package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"html/template"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/survey-review-api/internal/models"
	appErrors "github.com/noah-isme/survey-review-api/pkg/errors"
	"github.com/noah-isme/survey-review-api/pkg/render"
	"github.com/noah-isme/survey-review-api/pkg/storage"
)

type reportSurveyReader interface {
	FindByID(ctx context.Context, id string) (*models.Survey, error)
	ListCategories(ctx context.Context, surveyID string) ([]models.Category, error)
	ListQuestions(ctx context.Context, surveyID string) ([]models.OrderedQuestion, error)
}

type reportResponseReader interface {
	FindByID(ctx context.Context, id string) (*models.SurveyResponse, error)
	ListAnswers(ctx context.Context, responseID string) ([]models.Answer, error)
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type feedbackLister interface {
	ListForStudent(ctx context.Context, studentID, surveyID string) ([]models.Feedback, error)
}

type shareSigner interface {
	Generate(subject, fingerprint string) (string, time.Time, error)
	Parse(token string) (storage.ShareClaims, error)
}

// ReportServiceConfig tunes composite report generation.
type ReportServiceConfig struct {
	CacheTTL      time.Duration
	RenderTimeout time.Duration
}

// ReportService renders a student's composite survey report to PDF.
type ReportService struct {
	surveys   reportSurveyReader
	responses reportResponseReader
	users     userReader
	feedback  feedbackLister
	renderer  render.Renderer
	cache     *ReportCache
	signer    shareSigner
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       ReportServiceConfig
}

// NewReportService constructs the report service. renderer may be nil, in
// which case every render fails with MISSING_DEPENDENCY.
func NewReportService(surveys reportSurveyReader, responses reportResponseReader, users userReader, feedback feedbackLister, renderer render.Renderer, cache *ReportCache, signer shareSigner, metrics *MetricsService, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = NewReportCache(nil, metrics, cfg.CacheTTL, logger, false)
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = 30 * time.Second
	}
	return &ReportService{
		surveys:   surveys,
		responses: responses,
		users:     users,
		feedback:  feedback,
		renderer:  renderer,
		cache:     cache,
		signer:    signer,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

// RenderedReport is a generated PDF and the fingerprint it was built from.
type RenderedReport struct {
	Body        []byte
	Fingerprint string
	CacheHit    bool
	Filename    string
}

// Render returns the composite PDF for a response.
func (s *ReportService) Render(ctx context.Context, responseID string) ([]byte, error) {
	report, err := s.RenderReport(ctx, responseID)
	if err != nil {
		return nil, err
	}
	return report.Body, nil
}

// RenderReport is Render with the fingerprint and cache status attached.
func (s *ReportService) RenderReport(ctx context.Context, responseID string) (*RenderedReport, error) {
	if s.renderer == nil || !s.renderer.Available() {
		s.metrics.RecordRender(RenderOutcomeMissingDependency, 0)
		return nil, appErrors.ErrMissingDependency
	}

	subject, err := s.LoadSubject(ctx, responseID)
	if err != nil {
		return nil, err
	}
	return s.renderSubject(ctx, subject, Fingerprint(*subject))
}

// Authorize checks that actorID may read the report of responseID. Students
// may only read their own; advisors and admins may read any.
func (s *ReportService) Authorize(ctx context.Context, responseID, actorID string, role models.UserRole) error {
	if role == models.RoleAdmin || role == models.RoleAdvisor {
		return nil
	}
	response, err := s.responses.FindByID(ctx, responseID)
	if err != nil {
		return notFoundOrInternal(err, "response not found", "failed to load response")
	}
	if response.StudentID != actorID {
		return appErrors.Clone(appErrors.ErrForbidden, "report belongs to another student")
	}
	return nil
}

// ResetCache drops every cached report.
func (s *ReportService) ResetCache(ctx context.Context) (int, error) {
	return s.cache.Reset(ctx)
}

// LoadSubject gathers the response, student, survey, questions, answers and
// feedback of a report.
func (s *ReportService) LoadSubject(ctx context.Context, responseID string) (*models.ReportSubject, error) {
	response, err := s.responses.FindByID(ctx, responseID)
	if err != nil {
		return nil, notFoundOrInternal(err, "response not found", "failed to load response")
	}
	student, err := s.users.FindByID(ctx, response.StudentID)
	if err != nil {
		return nil, notFoundOrInternal(err, "student not found", "failed to load student")
	}
	survey, err := s.surveys.FindByID(ctx, response.SurveyID)
	if err != nil {
		return nil, notFoundOrInternal(err, "survey not found", "failed to load survey")
	}
	categories, err := s.surveys.ListCategories(ctx, response.SurveyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load categories")
	}
	questions, err := s.surveys.ListQuestions(ctx, response.SurveyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load questions")
	}
	answers, err := s.responses.ListAnswers(ctx, response.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load answers")
	}
	feedback, err := s.feedback.ListForStudent(ctx, response.StudentID, response.SurveyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load feedback")
	}
	return &models.ReportSubject{
		Response:   *response,
		Student:    *student,
		Survey:     *survey,
		Categories: categories,
		Questions:  questions,
		Answers:    answers,
		Feedback:   feedback,
	}, nil
}

func (s *ReportService) renderSubject(ctx context.Context, subject *models.ReportSubject, fingerprint string) (*RenderedReport, error) {
	start := time.Now()
	// Callers sharing one flight share its failure, which is logged once.
	body, hit, err := s.cache.FetchStatus(ctx, subject.Response.ID, fingerprint, s.cfg.CacheTTL, func(ctx context.Context) ([]byte, error) {
		body, err := s.renderDocument(ctx, subject)
		if err != nil {
			s.metrics.RecordRender(RenderOutcomeError, time.Since(start))
			s.logger.Error("composite report generation failed",
				zap.String("response_id", subject.Response.ID),
				zap.String("fingerprint", fingerprint),
				zap.Error(err))
		}
		return body, err
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrGeneration.Code, appErrors.ErrGeneration.Status,
			appErrors.ErrGeneration.Message+": "+err.Error())
	}
	if !hit {
		s.metrics.RecordRender(RenderOutcomeSuccess, time.Since(start))
	}
	return &RenderedReport{
		Body:        body,
		Fingerprint: fingerprint,
		CacheHit:    hit,
		Filename:    reportFilename(subject),
	}, nil
}

// ShareLink issues a signed link bound to the report's current fingerprint.
func (s *ReportService) ShareLink(ctx context.Context, responseID string) (*models.ShareLink, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "report sharing is not configured")
	}
	subject, err := s.LoadSubject(ctx, responseID)
	if err != nil {
		return nil, err
	}
	fp := Fingerprint(*subject)
	token, expiresAt, err := s.signer.Generate(subject.Response.ID, fp)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign share link")
	}
	return &models.ShareLink{Token: token, ResponseID: subject.Response.ID, Fingerprint: fp, ExpiresAt: expiresAt}, nil
}

// ResolveShareLink renders the report behind token. Links issued before the
// report last changed are rejected.
func (s *ReportService) ResolveShareLink(ctx context.Context, token string) (*RenderedReport, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "share link not found")
	}
	claims, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "share link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid share link")
	}
	if s.renderer == nil || !s.renderer.Available() {
		s.metrics.RecordRender(RenderOutcomeMissingDependency, 0)
		return nil, appErrors.ErrMissingDependency
	}
	subject, err := s.LoadSubject(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	fp := Fingerprint(*subject)
	if fp != claims.Fingerprint {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report has changed since the link was shared")
	}
	return s.renderSubject(ctx, subject, fp)
}

func notFoundOrInternal(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}

func (s *ReportService) renderDocument(ctx context.Context, subject *models.ReportSubject) ([]byte, error) {
	doc, err := BuildReportHTML(subject)
	if err != nil {
		return nil, err
	}
	renderCtx, cancel := context.WithTimeout(ctx, s.cfg.RenderTimeout)
	defer cancel()
	return s.renderer.Render(renderCtx, doc, map[string]string{
		render.OptTitle: subject.Survey.Title,
		render.OptPaper: "A4",
	})
}

func reportFilename(subject *models.ReportSubject) string {
	return "survey-report-" + subject.Response.ID + ".pdf"
}

type reportAnswer struct {
	Question string
	Answer   string
}

type reportCategory struct {
	Name    string
	Answers []reportAnswer
}

type reportFeedback struct {
	Category string
	Score    string
	Comments string
	Date     string
}

type reportView struct {
	Title       string
	Student     string
	Status      string
	SubmittedAt string
	Categories  []reportCategory
	Summary     models.FeedbackSummary
	Average     string
	Feedback    []reportFeedback
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p><b>Student:</b> {{.Student}}<br><b>Status:</b> {{.Status}}{{if .SubmittedAt}}<br><b>Submitted:</b> {{.SubmittedAt}}{{end}}</p>
{{range .Categories}}<h2>{{.Name}}</h2>
<table>
{{range .Answers}}<tr><td><b>{{.Question}}</b></td><td>{{.Answer}}</td></tr>
{{end}}</table>
{{end}}<h2>Feedback summary</h2>
<p>Entries: {{.Summary.TotalEntries}}<br>Scored: {{.Summary.ScoredEntries}}<br>Average score: {{.Average}}</p>
{{if .Feedback}}<h2>Advisor feedback</h2>
<table>
{{range .Feedback}}<tr><td><b>{{.Category}}</b></td><td>{{.Score}}</td><td>{{.Comments}}</td><td>{{.Date}}</td></tr>
{{end}}</table>
{{end}}</body>
</html>
`))

// BuildReportHTML lays out answers per category followed by the feedback
// summary and feedback grouped by category, newest first.
func BuildReportHTML(subject *models.ReportSubject) (string, error) {
	answers := make(map[string]models.AnswerValue, len(subject.Answers))
	for _, a := range subject.Answers {
		answers[a.QuestionID] = a.Value
	}

	view := reportView{
		Title:   subject.Survey.Title,
		Student: subject.Student.FullName,
		Status:  string(subject.Response.Status),
		Summary: Summarize(subject.Feedback),
		Average: "none",
	}
	if subject.Response.SubmittedAt != nil {
		view.SubmittedAt = subject.Response.SubmittedAt.UTC().Format("2006-01-02 15:04 MST")
	}
	if view.Summary.AverageScore != nil {
		view.Average = formatScore(*view.Summary.AverageScore)
	}

	categoryNames := make(map[string]string, len(subject.Categories))
	categoryOrder := make(map[string]int, len(subject.Categories))
	for _, c := range subject.Categories {
		categoryNames[c.ID] = c.Name
		categoryOrder[c.ID] = c.Order
	}

	var current *reportCategory
	for _, q := range subject.Questions {
		if current == nil || current.Name != q.CategoryName {
			view.Categories = append(view.Categories, reportCategory{Name: q.CategoryName})
			current = &view.Categories[len(view.Categories)-1]
		}
		text := "-"
		if v, ok := answers[q.ID]; ok && !v.IsBlank() {
			text = v.Display()
		}
		current.Answers = append(current.Answers, reportAnswer{Question: q.Text, Answer: text})
	}

	feedback := append([]models.Feedback(nil), subject.Feedback...)
	sort.SliceStable(feedback, func(i, j int) bool {
		oi, oj := categoryOrder[feedback[i].CategoryID], categoryOrder[feedback[j].CategoryID]
		if oi != oj {
			return oi < oj
		}
		if feedback[i].CategoryID != feedback[j].CategoryID {
			return feedback[i].CategoryID < feedback[j].CategoryID
		}
		return feedback[i].CreatedAt.After(feedback[j].CreatedAt)
	})
	for _, f := range feedback {
		entry := reportFeedback{
			Category: categoryNames[f.CategoryID],
			Score:    "-",
			Date:     f.CreatedAt.UTC().Format("2006-01-02"),
		}
		if entry.Category == "" {
			entry.Category = f.CategoryID
		}
		switch {
		case f.AverageScore != nil:
			entry.Score = formatScore(*f.AverageScore)
		case f.Score != nil:
			entry.Score = formatScore(float64(*f.Score))
		}
		if f.Comments != nil {
			entry.Comments = *f.Comments
		}
		view.Feedback = append(view.Feedback, entry)
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}
