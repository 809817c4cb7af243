package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/miskit/backoffice/internal/application"
	"github.com/miskit/backoffice/internal/domain/entity"
	"github.com/miskit/backoffice/pkg/helpers"
	"github.com/miskit/backoffice/pkg/response"
)

const identityKey = "identity"

// Auth validates the access-token cookie and checks that a live session
// exists in redis. On success it builds the caller's Identity and stores it
// in the gin context for handlers to thread into service calls.
func Auth(rdb *redis.Client, jwt *helpers.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie("access_token")
		if err != nil || token == "" {
			response.AbortError(c, http.StatusUnauthorized, "missing access token", nil)
			return
		}
		claims, err := jwt.ParseAccessToken(token)
		if err != nil {
			response.AbortError(c, http.StatusUnauthorized, "invalid access token", nil)
			return
		}

		if rdb != nil {
			key := application.SessionKey(claims.UserID)
			data, err := rdb.HGetAll(c.Request.Context(), key).Result()
			if err != nil || len(data) == 0 || data["sid"] != claims.SessionID {
				response.AbortError(c, http.StatusUnauthorized, "session not found", nil)
				return
			}
		}

		var ttl time.Duration
		if claims.ExpiresAt != nil {
			ttl = time.Until(claims.ExpiresAt.Time)
		}
		c.Set(identityKey, entity.Identity{
			Token:      token,
			UserID:     claims.UserID,
			Issuer:     claims.Issuer,
			ClientID:   claims.Username,
			Permission: claims.Role,
			Duration:   ttl,
		})
		c.Next()
	}
}

// IdentityFromCtx returns the Identity stored by Auth. The bool is false on
// routes that never went through the auth middleware.
func IdentityFromCtx(c *gin.Context) (entity.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return entity.Identity{}, false
	}
	ident, ok := v.(entity.Identity)
	return ident, ok
}

// UserIDParam parses the ":userId" path parameter.
func UserIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
