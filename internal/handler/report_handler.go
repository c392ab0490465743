package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/survey-review-api/internal/middleware"
	"github.com/noah-isme/survey-review-api/internal/models"
	"github.com/noah-isme/survey-review-api/internal/service"
	"github.com/noah-isme/survey-review-api/pkg/response"
)

type reportService interface {
	Authorize(ctx context.Context, responseID, actorID string, role models.UserRole) error
	RenderReport(ctx context.Context, responseID string) (*service.RenderedReport, error)
	ShareLink(ctx context.Context, responseID string) (*models.ShareLink, error)
	ResolveShareLink(ctx context.Context, token string) (*service.RenderedReport, error)
	ResetCache(ctx context.Context) (int, error)
}

const contentTypePDF = "application/pdf"

// ReportHandler serves composite PDF reports.
type ReportHandler struct {
	reports reportService
}

// NewReportHandler constructs a report handler.
func NewReportHandler(reports reportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Composite godoc
// @Summary Composite report for a survey response
// @Tags Reports
// @Produce application/pdf
// @Param id path string true "Response ID"
// @Success 200 {file} binary
// @Failure 503 {object} response.Envelope
// @Router /reports/responses/{id} [get]
func (h *ReportHandler) Composite(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id := c.Param("id")
	if err := h.reports.Authorize(c.Request.Context(), id, claims.UserID, claims.Role); err != nil {
		response.Error(c, err)
		return
	}
	report, err := h.reports.RenderReport(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, report.CacheHit, report.Fingerprint)
	response.Inline(c, contentTypePDF, report.Filename, report.Body)
}

// Share godoc
// @Summary Create a signed share link for a report
// @Tags Reports
// @Produce json
// @Param id path string true "Response ID"
// @Success 201 {object} response.Envelope
// @Router /reports/responses/{id}/share [post]
func (h *ReportHandler) Share(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id := c.Param("id")
	if err := h.reports.Authorize(c.Request.Context(), id, claims.UserID, claims.Role); err != nil {
		response.Error(c, err)
		return
	}
	link, err := h.reports.ShareLink(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, link)
}

// Shared streams a report through a share token. No authentication.
func (h *ReportHandler) Shared(c *gin.Context) {
	report, err := h.reports.ResolveShareLink(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, report.CacheHit, report.Fingerprint)
	response.Inline(c, contentTypePDF, report.Filename, report.Body)
}

// ResetCache godoc
// @Summary Drop every cached report
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/reports/cache/reset [post]
func (h *ReportHandler) ResetCache(c *gin.Context) {
	deleted, err := h.reports.ResetCache(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": deleted}, nil)
}
