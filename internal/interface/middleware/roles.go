package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/miskit/backoffice/pkg/response"
)

// RequireRoles guards a route with an allow-list of roles. It runs after
// Auth and rejects with 403 before the handler is reached; the failure is an
// authorization error, distinct from validation.
func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		ident, ok := IdentityFromCtx(c)
		if !ok {
			response.AbortError(c, http.StatusUnauthorized, "missing identity", nil)
			return
		}
		if _, ok := allowed[ident.Permission]; !ok {
			response.AbortError(c, http.StatusForbidden, "insufficient role", nil)
			return
		}
		c.Next()
	}
}
