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
	appErrors "github.com/noah-isme/survey-review-api/pkg/errors"
)

type fakeFeedbackService struct {
	items     []models.Feedback
	summary   models.FeedbackSummary
	err       error
	lastActor string
	lastRole  models.UserRole
	lastID    string
	lastReq   models.FeedbackRequest
	listArgs  [2]string
}

func (f *fakeFeedbackService) Create(_ context.Context, advisorID string, req models.FeedbackRequest) (*models.Feedback, error) {
	f.lastActor = advisorID
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.Feedback{ID: "fb-1", AdvisorID: advisorID, StudentID: req.StudentID, SurveyID: req.SurveyID}, nil
}

func (f *fakeFeedbackService) Update(_ context.Context, actorID string, role models.UserRole, id string, req models.FeedbackRequest) (*models.Feedback, error) {
	f.lastActor = actorID
	f.lastRole = role
	f.lastID = id
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.Feedback{ID: id}, nil
}

func (f *fakeFeedbackService) ListForStudent(_ context.Context, studentID, surveyID string) ([]models.Feedback, models.FeedbackSummary, error) {
	f.listArgs = [2]string{studentID, surveyID}
	return f.items, f.summary, f.err
}

func TestFeedbackHandlerCreate(t *testing.T) {
	svc := &fakeFeedbackService{}
	h := NewFeedbackHandler(svc)

	body := `{"student_id":"stu-1","survey_id":"survey-1","category_id":"cat-1","score":4}`
	c, rec := newTestContext(http.MethodPost, "/feedback", body, advisorClaims("adv-1"))
	h.Create(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "adv-1", svc.lastActor)
	require.NotNil(t, svc.lastReq.Score)
	assert.Equal(t, 4, *svc.lastReq.Score)
}

func TestFeedbackHandlerUpdateForbidden(t *testing.T) {
	svc := &fakeFeedbackService{err: appErrors.ErrForbidden}
	h := NewFeedbackHandler(svc)

	c, rec := newTestContext(http.MethodPut, "/feedback/fb-1", `{"student_id":"stu-1","survey_id":"survey-1","category_id":"cat-1"}`, advisorClaims("adv-2"))
	c.Params = gin.Params{{Key: "id", Value: "fb-1"}}
	h.Update(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "fb-1", svc.lastID)
	assert.Equal(t, models.RoleAdvisor, svc.lastRole)
}

func TestFeedbackHandlerListIncludesSummary(t *testing.T) {
	avg := 3.5
	svc := &fakeFeedbackService{summary: models.FeedbackSummary{TotalEntries: 0, AverageScore: &avg}}
	h := NewFeedbackHandler(svc)

	c, rec := newTestContext(http.MethodGet, "/surveys/survey-1/students/stu-1/feedback", nil, studentClaims("stu-1"))
	c.Params = gin.Params{{Key: "id", Value: "survey-1"}, {Key: "studentId", Value: "stu-1"}}
	h.ListForStudent(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, [2]string{"stu-1", "survey-1"}, svc.listArgs)

	var payload struct {
		Items   []models.Feedback      `json:"items"`
		Summary models.FeedbackSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(rec).Data, &payload))
	assert.NotNil(t, payload.Items)
	assert.Empty(t, payload.Items)
	require.NotNil(t, payload.Summary.AverageScore)
	assert.Equal(t, 3.5, *payload.Summary.AverageScore)
}
