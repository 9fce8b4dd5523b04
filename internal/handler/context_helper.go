package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/eduschedule-api/internal/middleware"
	"github.com/noah-isme/eduschedule-api/internal/models"
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

// requestScope extracts the tenant and actor from the verified claims.
// Both are empty on unauthenticated routes.
func requestScope(c *gin.Context) (schoolID, userID string) {
	claims := claimsFromContext(c)
	if claims == nil {
		return "", ""
	}
	return claims.SchoolID, claims.UserID
}
