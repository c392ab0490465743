package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/survey-review-api/internal/middleware"
	"github.com/noah-isme/survey-review-api/internal/models"
	appErrors "github.com/noah-isme/survey-review-api/pkg/errors"
	"github.com/noah-isme/survey-review-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

// requireClaims writes 401 and returns nil when the request is anonymous.
func requireClaims(c *gin.Context) *models.JWTClaims {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
	}
	return claims
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return false
	}
	return true
}
