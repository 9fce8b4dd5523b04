package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eduschedule-api/internal/models"
)

func roleRouter(claims *models.JWTClaims, allowed ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	if claims != nil {
		router.Use(func(c *gin.Context) {
			c.Set(ContextUserKey, claims)
			c.Next()
		})
	}
	router.POST("/generate", RequireRoles(allowed...), func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})
	return router
}

func TestRequireRolesAllowsListedRole(t *testing.T) {
	router := roleRouter(&models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin}, models.RoleAdmin, models.RoleSuperAdmin)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/generate", nil))

	require.Equal(t, http.StatusAccepted, w.Code)
}

func TestRequireRolesRejectsOtherRole(t *testing.T) {
	router := roleRouter(&models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}, models.RoleAdmin, models.RoleSuperAdmin)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/generate", nil))

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRolesRejectsMissingClaims(t *testing.T) {
	router := roleRouter(nil, models.RoleAdmin)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/generate", nil))

	require.Equal(t, http.StatusUnauthorized, w.Code)
}
