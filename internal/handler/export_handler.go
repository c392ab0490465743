package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/survey-review-api/internal/service"
	"github.com/noah-isme/survey-review-api/pkg/response"
)

const headerExportRows = "X-Export-Rows"

type exportService interface {
	ExportResponses(ctx context.Context, surveyID, format string) (*service.ExportFile, error)
}

// ExportHandler streams survey response exports.
type ExportHandler struct {
	exports exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(exports exportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Responses godoc
// @Summary Export survey responses
// @Tags Exports
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Survey ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /surveys/{id}/responses/export [get]
func (h *ExportHandler) Responses(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	file, err := h.exports.ExportResponses(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header(headerExportRows, strconv.Itoa(file.Rows))
	response.Attachment(c, file.ContentType, file.Filename, file.Body)
}
