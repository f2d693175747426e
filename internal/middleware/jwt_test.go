package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusworks/campus/internal/models"
	appErrors "github.com/campusworks/campus/pkg/errors"
)

type stubValidator struct {
	claims *models.JWTClaims
	err    error
	seen   string
}

func (s *stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	s.seen = token
	if s.err != nil {
		return nil, s.err
	}
	return s.claims, nil
}

func newJWTRouter(validator *stubValidator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(JWT(validator))
	router.GET("/protected", func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, claims.UserID)
	})
	return router
}

func TestJWTMiddlewareAcceptsBearerToken(t *testing.T) {
	validator := &stubValidator{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleStudent}}
	router := newJWTRouter(validator)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer tok-123")
	router.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "u1", recorder.Body.String())
	assert.Equal(t, "tok-123", validator.seen)
}

func TestJWTMiddlewareMissingHeader(t *testing.T) {
	router := newJWTRouter(&stubValidator{})

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestJWTMiddlewareMalformedHeader(t *testing.T) {
	router := newJWTRouter(&stubValidator{})

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestJWTMiddlewareInvalidToken(t *testing.T) {
	validator := &stubValidator{err: appErrors.Clone(appErrors.ErrUnauthorized, "token expired")}
	router := newJWTRouter(validator)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer expired")
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestJWTMiddlewareUnexpectedValidatorError(t *testing.T) {
	validator := &stubValidator{err: errors.New("boom")}
	router := newJWTRouter(validator)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer tok")
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
}
