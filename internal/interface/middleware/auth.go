package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/campus-identity/pkg/helpers"
	"github.com/oksasatya/campus-identity/pkg/response"
)

// Context keys set by Auth.
const (
	CtxUserID       = "userID"
	CtxSessionID    = "sessionID"
	CtxTokenPurpose = "tokenPurpose"
	CtxAccessToken  = "accessToken"
	CtxTokenExpiry  = "tokenExpiry"
)

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if t, err := c.Cookie(helpers.AccessCookie); err == nil {
		return t
	}
	return ""
}

// Auth validates the access token (Bearer header or access_token cookie) and
// ensures the session it names is still live in Redis. Recovery tokens are
// checked against the recovery session instead of the regular one.
func Auth(rdb *redis.Client, jwt *helpers.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			response.Abort(c, http.StatusUnauthorized, "missing access token", nil)
			return
		}
		claims, err := jwt.ParseAccessToken(token)
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, "invalid access token", err.Error())
			return
		}

		if rdb != nil {
			key := helpers.SessionKeyFor(claims.Purpose, claims.UserID)
			if !helpers.SessionLive(c.Request.Context(), rdb, key, claims.SessionID) {
				response.Abort(c, http.StatusUnauthorized, "session not found", nil)
				return
			}
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxSessionID, claims.SessionID)
		c.Set(CtxTokenPurpose, claims.Purpose)
		c.Set(CtxAccessToken, token)
		if claims.ExpiresAt != nil {
			c.Set(CtxTokenExpiry, claims.ExpiresAt.Time)
		}
		c.Next()
	}
}

// SessionOnly refuses recovery tokens. Recovery sessions may only read the
// session and change the password.
func SessionOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(CtxTokenPurpose) == helpers.PurposeRecovery {
			response.Abort(c, http.StatusForbidden, "recovery session cannot access this resource", nil)
			return
		}
		c.Next()
	}
}
