package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/campusworks/campus/internal/models"
	appErrors "github.com/campusworks/campus/pkg/errors"
	"github.com/campusworks/campus/pkg/response"
)

// RequireRoles allows only the listed roles past this point. The role comes
// from the verified token claims, never from anything the client sent in the
// request body.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !claims.Role.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "unknown role"))
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
