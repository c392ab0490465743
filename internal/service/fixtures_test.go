package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/survey-review-api/internal/models"
	"github.com/noah-isme/survey-review-api/internal/repository"
)

func strPtr(s string) *string { return &s }

func intPtr(v int) *int { return &v }

var fixtureTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// surveyFixture returns a survey with one category holding:
//
//	q-club   Yes/No multiple choice, optional by default
//	q-goals  short answer, required by default
//	q-port   evidence, required by default
//	q-which  short answer that applies once q-club is "Yes"
func surveyFixture() *fakeSurveyRepo {
	cat := models.Category{ID: "cat-1", SurveyID: "survey-1", Name: "Academics", Order: 1}
	question := func(id string, order int, typ models.QuestionType, text string) models.OrderedQuestion {
		return models.OrderedQuestion{
			Question: models.Question{
				ID:         id,
				CategoryID: cat.ID,
				Text:       text,
				Order:      order,
				Type:       typ,
				Options:    models.StringList{},
				CreatedAt:  fixtureTime,
				UpdatedAt:  fixtureTime,
			},
			CategoryName:  cat.Name,
			CategoryOrder: cat.Order,
		}
	}
	club := question("q-club", 1, models.QuestionMultipleChoice, "Did you join a club?")
	club.Options = models.StringList{"Yes", "No"}
	which := question("q-which", 4, models.QuestionShortAnswer, "Which club?")
	which.DependsOnQuestionID = strPtr("q-club")
	which.DependsOnValue = strPtr("Yes")

	return &fakeSurveyRepo{
		surveys:    map[string]*models.Survey{"survey-1": {ID: "survey-1", Title: "Spring Review", Active: true}},
		categories: []models.Category{cat},
		questions: []models.OrderedQuestion{
			club,
			question("q-goals", 2, models.QuestionShortAnswer, "Describe your goals"),
			question("q-port", 3, models.QuestionEvidence, "Portfolio link"),
			which,
		},
	}
}

type fakeSurveyRepo struct {
	mu         sync.Mutex
	surveys    map[string]*models.Survey
	categories []models.Category
	questions  []models.OrderedQuestion
	created    []*models.Question
	updated    []*models.Question
	listErr    error
}

func (f *fakeSurveyRepo) FindByID(_ context.Context, id string) (*models.Survey, error) {
	s, ok := f.surveys[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return s, nil
}

func (f *fakeSurveyRepo) ListCategories(_ context.Context, surveyID string) ([]models.Category, error) {
	var out []models.Category
	for _, c := range f.categories {
		if c.SurveyID == surveyID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeSurveyRepo) FindCategory(_ context.Context, id string) (*models.Category, error) {
	for i := range f.categories {
		if f.categories[i].ID == id {
			return &f.categories[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSurveyRepo) ListQuestions(_ context.Context, surveyID string) ([]models.OrderedQuestion, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if _, ok := f.surveys[surveyID]; !ok {
		return nil, nil
	}
	return append([]models.OrderedQuestion(nil), f.questions...), nil
}

func (f *fakeSurveyRepo) FindQuestion(_ context.Context, id string) (*models.Question, error) {
	for _, q := range f.questions {
		if q.ID == id {
			copied := q.Question
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSurveyRepo) CreateQuestion(_ context.Context, q *models.Question) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if q.ID == "" {
		q.ID = fmt.Sprintf("q-new-%d", len(f.created)+1)
	}
	f.created = append(f.created, q)
	return nil
}

func (f *fakeSurveyRepo) UpdateQuestion(_ context.Context, q *models.Question) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, q)
	return nil
}

// fakeAnswerStore keeps committed submission state in memory. RunInTx works
// on a copy and only keeps it when fn succeeds.
type fakeAnswerStore struct {
	mu        sync.Mutex
	state     answerState
	failOn    map[string]error
	clock     time.Time
	txCount   int
	rollbacks int
}

type answerState struct {
	responses map[string]*models.SurveyResponse
	answers   map[string]models.Answer
	evidence  []models.EvidenceUpload
	completed []string
}

func newFakeAnswerStore() *fakeAnswerStore {
	return &fakeAnswerStore{
		state: answerState{
			responses: map[string]*models.SurveyResponse{},
			answers:   map[string]models.Answer{},
		},
		failOn: map[string]error{},
		clock:  fixtureTime,
	}
}

func (s answerState) clone() answerState {
	out := answerState{
		responses: make(map[string]*models.SurveyResponse, len(s.responses)),
		answers:   make(map[string]models.Answer, len(s.answers)),
		evidence:  append([]models.EvidenceUpload(nil), s.evidence...),
		completed: append([]string(nil), s.completed...),
	}
	for k, v := range s.responses {
		copied := *v
		out.responses[k] = &copied
	}
	for k, v := range s.answers {
		out.answers[k] = v
	}
	return out
}

func (f *fakeAnswerStore) RunInTx(ctx context.Context, fn func(repository.AnswerWriter) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txCount++
	w := &fakeAnswerWriter{store: f, state: f.state.clone()}
	if err := fn(w); err != nil {
		f.rollbacks++
		return err
	}
	f.state = w.state
	return nil
}

// answers returns committed answers sorted by question id.
func (f *fakeAnswerStore) answers() []models.Answer {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Answer, 0, len(f.state.answers))
	for _, a := range f.state.answers {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out
}

type fakeAnswerWriter struct {
	store *fakeAnswerStore
	state answerState
}

func (w *fakeAnswerWriter) tick() time.Time {
	w.store.clock = w.store.clock.Add(time.Minute)
	return w.store.clock
}

func (w *fakeAnswerWriter) EnsureResponse(_ context.Context, surveyID, studentID string, advisorID *string) (*models.SurveyResponse, error) {
	if err := w.store.failOn["ensure"]; err != nil {
		return nil, err
	}
	key := surveyID + "/" + studentID
	if r, ok := w.state.responses[key]; ok {
		if r.AdvisorID == nil {
			r.AdvisorID = advisorID
		}
		return r, nil
	}
	now := w.tick()
	r := &models.SurveyResponse{
		ID:        "resp-" + studentID,
		SurveyID:  surveyID,
		StudentID: studentID,
		AdvisorID: advisorID,
		Status:    models.StatusInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
	w.state.responses[key] = r
	return r, nil
}

func (w *fakeAnswerWriter) UpsertAnswer(_ context.Context, responseID, questionID string, value models.AnswerValue) (*models.Answer, error) {
	if err := w.store.failOn[questionID]; err != nil {
		return nil, err
	}
	key := responseID + "/" + questionID
	kind, payload := value.Encode()
	existing, ok := w.state.answers[key]
	if ok && existing.Value.Equal(value) {
		return &existing, nil
	}
	now := w.tick()
	a := models.Answer{
		ID:         "ans-" + questionID,
		ResponseID: responseID,
		QuestionID: questionID,
		Kind:       kind,
		Payload:    payload,
		Value:      value,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if ok {
		a.CreatedAt = existing.CreatedAt
	}
	w.state.answers[key] = a
	return &a, nil
}

func (w *fakeAnswerWriter) RecordEvidence(_ context.Context, upload *models.EvidenceUpload) error {
	for _, e := range w.state.evidence {
		if e.ResponseID == upload.ResponseID && e.QuestionID == upload.QuestionID && e.Link == upload.Link {
			return nil
		}
	}
	w.state.evidence = append(w.state.evidence, *upload)
	return nil
}

func (w *fakeAnswerWriter) AdvanceStatus(_ context.Context, responseID string, target models.ResponseStatus) (bool, error) {
	for _, r := range w.state.responses {
		if r.ID == responseID && r.Status.Before(target) {
			r.Status = target
			now := w.store.clock
			r.SubmittedAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (w *fakeAnswerWriter) CompleteAssignment(_ context.Context, surveyID, studentID string) error {
	if err := w.store.failOn["complete"]; err != nil {
		return err
	}
	w.state.completed = append(w.state.completed, surveyID+"/"+studentID)
	return nil
}

type fakeResponseReader struct {
	responses map[string]*models.SurveyResponse
	answers   map[string][]models.Answer
	evidence  map[string][]models.EvidenceUpload
}

func (f *fakeResponseReader) FindByID(_ context.Context, id string) (*models.SurveyResponse, error) {
	if r, ok := f.responses[id]; ok {
		return r, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeResponseReader) FindByStudentSurvey(_ context.Context, studentID, surveyID string) (*models.SurveyResponse, error) {
	for _, r := range f.responses {
		if r.StudentID == studentID && r.SurveyID == surveyID {
			return r, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeResponseReader) ListBySurvey(_ context.Context, surveyID string) ([]models.SurveyResponse, error) {
	var out []models.SurveyResponse
	for _, r := range f.responses {
		if r.SurveyID == surveyID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeResponseReader) ListAnswers(_ context.Context, responseID string) ([]models.Answer, error) {
	return append([]models.Answer(nil), f.answers[responseID]...), nil
}

func (f *fakeResponseReader) ListAnswersForResponses(_ context.Context, ids []string) ([]models.Answer, error) {
	var out []models.Answer
	for _, id := range ids {
		out = append(out, f.answers[id]...)
	}
	return out, nil
}

func (f *fakeResponseReader) ListEvidence(_ context.Context, responseID string) ([]models.EvidenceUpload, error) {
	return f.evidence[responseID], nil
}

type fakeUsers map[string]*models.User

func (f fakeUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

type fakeFeedbackRepo struct {
	items   map[string]*models.Feedback
	created int
}

func newFakeFeedbackRepo(items ...models.Feedback) *fakeFeedbackRepo {
	repo := &fakeFeedbackRepo{items: map[string]*models.Feedback{}}
	for i := range items {
		item := items[i]
		repo.items[item.ID] = &item
	}
	return repo
}

func (f *fakeFeedbackRepo) Create(_ context.Context, fb *models.Feedback) error {
	f.created++
	if fb.ID == "" {
		fb.ID = fmt.Sprintf("fb-%d", f.created)
	}
	fb.CreatedAt = fixtureTime
	fb.UpdatedAt = fixtureTime
	copied := *fb
	f.items[fb.ID] = &copied
	return nil
}

func (f *fakeFeedbackRepo) Update(_ context.Context, fb *models.Feedback) error {
	if _, ok := f.items[fb.ID]; !ok {
		return sql.ErrNoRows
	}
	fb.UpdatedAt = fb.UpdatedAt.Add(time.Hour)
	copied := *fb
	f.items[fb.ID] = &copied
	return nil
}

func (f *fakeFeedbackRepo) FindByID(_ context.Context, id string) (*models.Feedback, error) {
	if fb, ok := f.items[id]; ok {
		copied := *fb
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeFeedbackRepo) ListForStudent(_ context.Context, studentID, surveyID string) ([]models.Feedback, error) {
	var out []models.Feedback
	for _, fb := range f.items {
		if fb.StudentID == studentID && fb.SurveyID == surveyID {
			out = append(out, *fb)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type recordingAudit struct {
	logs []*models.AuditLog
	err  error
}

func (r *recordingAudit) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	r.logs = append(r.logs, log)
	return r.err
}
