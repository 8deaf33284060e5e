package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/matricula-api/internal/middleware"
	"github.com/noah-isme/matricula-api/internal/models"
	appErrors "github.com/noah-isme/matricula-api/pkg/errors"
	"github.com/noah-isme/matricula-api/pkg/response"
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

// actorFromContext writes a 401 and returns false when the request carries no identity.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return claims.Actor(), true
}

func invalidPayload(c *gin.Context, err error) {
	response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if value, err := strconv.Atoi(c.Query(key)); err == nil {
		return value
	}
	return fallback
}
