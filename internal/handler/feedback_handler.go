package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/survey-review-api/internal/models"
	"github.com/noah-isme/survey-review-api/pkg/response"
)

type feedbackService interface {
	Create(ctx context.Context, advisorID string, req models.FeedbackRequest) (*models.Feedback, error)
	Update(ctx context.Context, actorID string, role models.UserRole, id string, req models.FeedbackRequest) (*models.Feedback, error)
	ListForStudent(ctx context.Context, studentID, surveyID string) ([]models.Feedback, models.FeedbackSummary, error)
}

// FeedbackHandler exposes advisor feedback endpoints.
type FeedbackHandler struct {
	service feedbackService
}

// NewFeedbackHandler constructs the handler.
func NewFeedbackHandler(service feedbackService) *FeedbackHandler {
	return &FeedbackHandler{service: service}
}

type feedbackList struct {
	Items   []models.Feedback      `json:"items"`
	Summary models.FeedbackSummary `json:"summary"`
}

// Create godoc
// @Summary Record feedback for a student
// @Tags Feedback
// @Accept json
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /feedback [post]
func (h *FeedbackHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req models.FeedbackRequest
	if !bindJSON(c, &req) {
		return
	}
	feedback, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, feedback)
}

// Update godoc
// @Summary Update feedback
// @Tags Feedback
// @Accept json
// @Produce json
// @Param id path string true "Feedback ID"
// @Success 200 {object} response.Envelope
// @Router /feedback/{id} [put]
func (h *FeedbackHandler) Update(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req models.FeedbackRequest
	if !bindJSON(c, &req) {
		return
	}
	feedback, err := h.service.Update(c.Request.Context(), claims.UserID, claims.Role, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, feedback, nil)
}

// ListForStudent returns a student's feedback for a survey with its summary.
func (h *FeedbackHandler) ListForStudent(c *gin.Context) {
	items, summary, err := h.service.ListForStudent(c.Request.Context(), c.Param("studentId"), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if items == nil {
		items = []models.Feedback{}
	}
	response.JSON(c, http.StatusOK, feedbackList{Items: items, Summary: summary}, nil)
}
