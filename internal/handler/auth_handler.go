package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/survey-review-api/internal/models"
	appErrors "github.com/noah-isme/survey-review-api/pkg/errors"
	"github.com/noah-isme/survey-review-api/pkg/response"
)

type profileReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// AuthHandler exposes the authenticated user's profile. Tokens are issued by
// the external sign-in flow.
type AuthHandler struct {
	users profileReader
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(users profileReader) *AuthHandler {
	return &AuthHandler{users: users}
}

// Me godoc
// @Summary Get current user
// @Description Returns the authenticated user's profile
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	user, err := h.users.FindByID(c.Request.Context(), claims.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "user not found"))
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}
