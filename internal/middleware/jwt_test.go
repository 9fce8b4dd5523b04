package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eduschedule-api/internal/models"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims *models.JWTClaims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func protectedRouter(secret string) (*gin.Engine, *models.JWTClaims) {
	gin.SetMode(gin.TestMode)
	captured := &models.JWTClaims{}
	router := gin.New()
	router.GET("/protected", JWT(secret), func(c *gin.Context) {
		if value, ok := c.Get(ContextUserKey); ok {
			if claims, ok := value.(*models.JWTClaims); ok {
				*captured = *claims
			}
		}
		c.Status(http.StatusOK)
	})
	return router, captured
}

func TestJWTAcceptsValidToken(t *testing.T) {
	router, captured := protectedRouter(testSecret)
	token := signToken(t, &models.JWTClaims{
		UserID:   "user-1",
		SchoolID: "school-1",
		Role:     models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testSecret)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", captured.UserID)
	assert.Equal(t, "school-1", captured.SchoolID)
	assert.Equal(t, models.RoleAdmin, captured.Role)
}

func TestJWTRejectsMissingHeader(t *testing.T) {
	router, _ := protectedRouter(testSecret)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTRejectsMalformedHeader(t *testing.T) {
	router, _ := protectedRouter(testSecret)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token abc")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	router, _ := protectedRouter(testSecret)
	token := signToken(t, &models.JWTClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, "other-secret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTRejectsExpiredToken(t *testing.T) {
	router, _ := protectedRouter(testSecret)
	token := signToken(t, &models.JWTClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}, testSecret)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}
