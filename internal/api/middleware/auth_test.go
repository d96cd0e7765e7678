package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/promptshield/promptshield/backend/internal/config"
	"github.com/promptshield/promptshield/backend/internal/models"
	"github.com/promptshield/promptshield/backend/internal/services"
)

func setupAuthRouter(t *testing.T) (*gin.Engine, *services.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))

	auth := services.NewAuthService(db, config.Config{JWTSecret: "test-secret"})

	router := gin.New()
	protected := router.Group("/")
	protected.Use(AuthMiddleware(auth))
	protected.GET("/whoami", func(c *gin.Context) {
		user := c.MustGet("user").(*models.User)
		c.JSON(http.StatusOK, gin.H{"email": user.Email, "role": c.GetString("role")})
	})

	admin := protected.Group("/")
	admin.Use(RequireRole("admin"))
	admin.GET("/admin-only", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	return router, auth
}

func get(router *gin.Engine, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	router, _ := setupAuthRouter(t)

	w := get(router, "/whoami", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Authorization header required")
}

func TestAuthMiddleware_NotBearer(t *testing.T) {
	router, _ := setupAuthRouter(t)

	w := get(router, "/whoami", "Basic dXNlcjpwYXNz")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Bearer token required")
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	router, _ := setupAuthRouter(t)

	w := get(router, "/whoami", "Bearer not-a-real-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router, auth := setupAuthRouter(t)
	_, err := auth.Register("admin@example.com", "password123", "Admin")
	require.NoError(t, err)
	token, err := auth.Login("admin@example.com", "password123")
	require.NoError(t, err)

	w := get(router, "/whoami", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "admin@example.com")
}

func TestRequireRole(t *testing.T) {
	router, auth := setupAuthRouter(t)
	_, err := auth.Register("admin@example.com", "password123", "Admin")
	require.NoError(t, err)
	_, err = auth.Register("rev@example.com", "password123", "Reviewer")
	require.NoError(t, err)

	adminToken, err := auth.Login("admin@example.com", "password123")
	require.NoError(t, err)
	reviewerToken, err := auth.Login("rev@example.com", "password123")
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, get(router, "/admin-only", "Bearer "+adminToken).Code)
	assert.Equal(t, http.StatusForbidden, get(router, "/admin-only", "Bearer "+reviewerToken).Code)
}
