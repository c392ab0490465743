package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/survey-review-api/internal/models"
	appErrors "github.com/noah-isme/survey-review-api/pkg/errors"
	"github.com/noah-isme/survey-review-api/pkg/response"
)

type evidenceChecker interface {
	CheckAccess(ctx context.Context, link string) models.EvidenceAccess
}

// EvidenceHandler probes evidence links.
type EvidenceHandler struct {
	checker evidenceChecker
}

// NewEvidenceHandler constructs the handler.
func NewEvidenceHandler(checker evidenceChecker) *EvidenceHandler {
	return &EvidenceHandler{checker: checker}
}

// CheckAccess godoc
// @Summary Check whether an evidence link can be opened
// @Tags Evidence
// @Produce json
// @Param url query string true "Google Drive link"
// @Success 200 {object} response.Envelope
// @Router /evidence/check-access [get]
func (h *EvidenceHandler) CheckAccess(c *gin.Context) {
	link := strings.TrimSpace(c.Query("url"))
	if link == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "url is required"))
		return
	}
	response.JSON(c, http.StatusOK, h.checker.CheckAccess(c.Request.Context(), link), nil)
}
