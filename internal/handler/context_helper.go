package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campusworks/campus/internal/middleware"
	"github.com/campusworks/campus/internal/models"
	appErrors "github.com/campusworks/campus/pkg/errors"
	"github.com/campusworks/campus/pkg/response"
)

// claimsFromContext returns the authenticated claims or writes a 401 and
// reports false.
func claimsFromContext(c *gin.Context) (*models.JWTClaims, bool) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return claims, true
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func queryBool(c *gin.Context, key string) bool {
	value, _ := strconv.ParseBool(c.Query(key))
	return value
}
