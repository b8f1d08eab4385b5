package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/crawlfrontier/frontier/utils"
)

func TestAuthRequired(t *testing.T) {
	originalSecret := os.Getenv("JWT_SECRET_KEY")
	os.Setenv("JWT_SECRET_KEY", "test-secret-key-for-auth-middleware")
	defer func() {
		if originalSecret != "" {
			os.Setenv("JWT_SECRET_KEY", originalSecret)
		} else {
			os.Unsetenv("JWT_SECRET_KEY")
		}
	}()

	gin.SetMode(gin.TestMode)

	newProtectedRouter := func() *gin.Engine {
		router := gin.New()
		router.Use(AuthRequired())
		router.GET("/protected", func(c *gin.Context) {
			operator, _ := c.Get("operator")
			c.JSON(200, gin.H{"operator": operator})
		})
		return router
	}

	t.Run("should allow request with valid token", func(t *testing.T) {
		router := newProtectedRouter()

		token, err := utils.GenerateJWT("test-operator-123", 15*time.Minute)
		assert.NoError(t, err)

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("should reject request without authorization header", func(t *testing.T) {
		router := newProtectedRouter()

		req := httptest.NewRequest("GET", "/protected", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("should reject request with invalid token format", func(t *testing.T) {
		router := newProtectedRouter()

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "InvalidFormat token")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("should reject request with missing Bearer prefix", func(t *testing.T) {
		router := newProtectedRouter()

		token, err := utils.GenerateJWT("test-operator", 15*time.Minute)
		assert.NoError(t, err)

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("should reject request with invalid token", func(t *testing.T) {
		router := newProtectedRouter()

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer invalid.token.here")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("should reject request with expired token", func(t *testing.T) {
		router := newProtectedRouter()

		token, err := utils.GenerateJWT("test-operator", -1*time.Hour)
		assert.NoError(t, err)

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("should set operator in context for valid token", func(t *testing.T) {
		expectedOperator := "operator-set-in-context"
		var capturedOperator string

		router := gin.New()
		router.Use(AuthRequired())
		router.GET("/protected", func(c *gin.Context) {
			operator, exists := c.Get("operator")
			if exists {
				capturedOperator = operator.(string)
			}
			c.JSON(200, gin.H{"operator": operator})
		})

		token, err := utils.GenerateJWT(expectedOperator, 15*time.Minute)
		assert.NoError(t, err)

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, expectedOperator, capturedOperator)
	})

	t.Run("should allow request with a valid internal API key, bypassing JWT", func(t *testing.T) {
		originalKey := internalAPIKey
		internalAPIKey = "shared-internal-key"
		defer func() { internalAPIKey = originalKey }()

		router := newProtectedRouter()

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("X-Internal-API-Key", "shared-internal-key")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
