package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academy-api/internal/middleware"
	"github.com/noah-isme/academy-api/internal/models"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// scopeFromContext resolves the caller's branch scope from verified claims.
func scopeFromContext(c *gin.Context) (models.Scope, error) {
	claims := claimsFromContext(c)
	if claims == nil {
		return models.Scope{}, appErrors.ErrUnauthorized
	}
	return models.ScopeFromClaims(claims), nil
}

func invalidPayload(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
}
