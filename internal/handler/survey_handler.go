package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/survey-review-api/internal/models"
	"github.com/noah-isme/survey-review-api/internal/service"
	"github.com/noah-isme/survey-review-api/pkg/response"
)

type surveyService interface {
	Form(ctx context.Context, surveyID, studentID string) (*models.SurveyForm, error)
	CreateQuestion(ctx context.Context, actorID string, req service.QuestionRequest) (*models.Question, error)
	UpdateQuestion(ctx context.Context, actorID, id string, req service.QuestionRequest) (*models.Question, error)
}

type submissionService interface {
	Submit(ctx context.Context, req models.SubmitRequest) (*models.SurveyResponse, error)
}

// SurveyHandler serves survey forms, submissions and question authoring.
type SurveyHandler struct {
	surveys     surveyService
	submissions submissionService
}

// NewSurveyHandler constructs the handler.
func NewSurveyHandler(surveys surveyService, submissions submissionService) *SurveyHandler {
	return &SurveyHandler{surveys: surveys, submissions: submissions}
}

// Form godoc
// @Summary Survey form for the current student
// @Tags Surveys
// @Produce json
// @Param id path string true "Survey ID"
// @Success 200 {object} response.Envelope
// @Router /surveys/{id}/form [get]
func (h *SurveyHandler) Form(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	form, err := h.surveys.Form(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, form, nil)
}

// Submit godoc
// @Summary Submit survey answers
// @Tags Surveys
// @Accept json
// @Produce json
// @Param id path string true "Survey ID"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /surveys/{id}/submit [post]
func (h *SurveyHandler) Submit(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req models.SubmitRequest
	if !bindJSON(c, &req) {
		return
	}
	req.SurveyID = c.Param("id")
	req.StudentID = claims.UserID

	resp, err := h.submissions.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// CreateQuestion godoc
// @Summary Add a question to a survey category
// @Tags Questions
// @Accept json
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /surveys/{id}/questions [post]
func (h *SurveyHandler) CreateQuestion(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req service.QuestionRequest
	if !bindJSON(c, &req) {
		return
	}
	question, err := h.surveys.CreateQuestion(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, question)
}

// UpdateQuestion replaces a question.
func (h *SurveyHandler) UpdateQuestion(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req service.QuestionRequest
	if !bindJSON(c, &req) {
		return
	}
	question, err := h.surveys.UpdateQuestion(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, question, nil)
}
