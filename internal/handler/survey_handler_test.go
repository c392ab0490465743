package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/survey-review-api/internal/models"
	"github.com/noah-isme/survey-review-api/internal/service"
	appErrors "github.com/noah-isme/survey-review-api/pkg/errors"
)

type fakeSurveyService struct {
	form      *models.SurveyForm
	err       error
	lastActor string
	lastID    string
	lastReq   service.QuestionRequest
}

func (f *fakeSurveyService) Form(_ context.Context, surveyID, studentID string) (*models.SurveyForm, error) {
	f.lastID = surveyID
	f.lastActor = studentID
	return f.form, f.err
}

func (f *fakeSurveyService) CreateQuestion(_ context.Context, actorID string, req service.QuestionRequest) (*models.Question, error) {
	f.lastActor = actorID
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.Question{ID: "q-new", CategoryID: req.CategoryID, Text: req.Text}, nil
}

func (f *fakeSurveyService) UpdateQuestion(_ context.Context, actorID, id string, req service.QuestionRequest) (*models.Question, error) {
	f.lastActor = actorID
	f.lastID = id
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.Question{ID: id, Text: req.Text}, nil
}

type fakeSubmissionService struct {
	last models.SubmitRequest
	err  error
}

func (f *fakeSubmissionService) Submit(_ context.Context, req models.SubmitRequest) (*models.SurveyResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.SurveyResponse{ID: "resp-" + req.StudentID, SurveyID: req.SurveyID, StudentID: req.StudentID, Status: models.StatusSubmitted}, nil
}

func TestSurveyHandlerFormUsesCallerIdentity(t *testing.T) {
	surveys := &fakeSurveyService{form: &models.SurveyForm{Survey: models.Survey{ID: "survey-1"}}}
	h := NewSurveyHandler(surveys, &fakeSubmissionService{})

	c, rec := newTestContext(http.MethodGet, "/surveys/survey-1/form", nil, studentClaims("stu-1"))
	c.Params = gin.Params{{Key: "id", Value: "survey-1"}}
	h.Form(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stu-1", surveys.lastActor)
	assert.Equal(t, "survey-1", surveys.lastID)
}

func TestSurveyHandlerFormRequiresClaims(t *testing.T) {
	h := NewSurveyHandler(&fakeSurveyService{}, &fakeSubmissionService{})

	c, rec := newTestContext(http.MethodGet, "/surveys/survey-1/form", nil, nil)
	h.Form(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSurveyHandlerSubmitIgnoresBodyIdentity(t *testing.T) {
	submissions := &fakeSubmissionService{}
	h := NewSurveyHandler(&fakeSurveyService{}, submissions)

	body := `{"student_id":"someone-else","advisor_id":"adv-9","answers":{"q-goals":"Learn Go","q-club":["Chess"]}}`
	c, rec := newTestContext(http.MethodPost, "/surveys/survey-1/submit", body, studentClaims("stu-1"))
	c.Params = gin.Params{{Key: "id", Value: "survey-1"}}
	h.Submit(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stu-1", submissions.last.StudentID)
	assert.Equal(t, "survey-1", submissions.last.SurveyID)
	assert.Equal(t, "Learn Go", submissions.last.Answers["q-goals"].String())
	assert.Equal(t, models.AnswerStructured, submissions.last.Answers["q-club"].Kind())
}

func TestSurveyHandlerSubmitMissingRequired(t *testing.T) {
	submissions := &fakeSubmissionService{err: appErrors.MissingRequired([]string{"q-goals"})}
	h := NewSurveyHandler(&fakeSurveyService{}, submissions)

	c, rec := newTestContext(http.MethodPost, "/surveys/survey-1/submit", `{"answers":{}}`, studentClaims("stu-1"))
	c.Params = gin.Params{{Key: "id", Value: "survey-1"}}
	h.Submit(c)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	env := decodeEnvelope(rec)
	assert.Equal(t, "MISSING_REQUIRED", env.Error["code"])
}

func TestSurveyHandlerSubmitRejectsMalformedBody(t *testing.T) {
	submissions := &fakeSubmissionService{}
	h := NewSurveyHandler(&fakeSurveyService{}, submissions)

	c, rec := newTestContext(http.MethodPost, "/surveys/survey-1/submit", `{"answers":`, studentClaims("stu-1"))
	h.Submit(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, submissions.last.StudentID)
}

func TestSurveyHandlerCreateQuestion(t *testing.T) {
	surveys := &fakeSurveyService{}
	h := NewSurveyHandler(surveys, &fakeSubmissionService{})

	req := service.QuestionRequest{CategoryID: "cat-1", Text: "Why?", Order: 5, Type: models.QuestionShortAnswer}
	c, rec := newTestContext(http.MethodPost, "/surveys/survey-1/questions", req, advisorClaims("adv-1"))
	h.CreateQuestion(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "adv-1", surveys.lastActor)
	var question models.Question
	require.NoError(t, json.Unmarshal(decodeEnvelope(rec).Data, &question))
	assert.Equal(t, "q-new", question.ID)
}

func TestSurveyHandlerUpdateQuestionCycle(t *testing.T) {
	surveys := &fakeSurveyService{err: appErrors.ErrDependencyCycle}
	h := NewSurveyHandler(surveys, &fakeSubmissionService{})

	req := service.QuestionRequest{CategoryID: "cat-1", Text: "Which club?", Order: 4, Type: models.QuestionShortAnswer}
	c, rec := newTestContext(http.MethodPut, "/questions/q-which", req, advisorClaims("adv-1"))
	c.Params = gin.Params{{Key: "id", Value: "q-which"}}
	h.UpdateQuestion(c)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "q-which", surveys.lastID)
}
