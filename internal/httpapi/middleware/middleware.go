package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/supportdesk/platform/internal/common"
	"github.com/supportdesk/platform/internal/session"
)

const (
	UserIDKey    = "user_id"
	ClaimsKey    = "claims"
	RequestIDKey = "request_id"
)

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[Recovery] panic: %v", r)
				common.Fail(c, http.StatusInternalServerError, 50000, "internal error")
				c.Abort()
			}
		}()
		c.Next()
	}
}

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(RequestIDKey, rid)
		c.Header("X-Request-ID", rid)
		c.Next()
	}
}

// AuthRequired validates the bearer credential against the active
// session on every request. A decoded token whose session row is gone
// gets a distinct message so the client prompts re-login instead of
// treating it as a malformed request; a store error rejects outright.
func AuthRequired(authority *session.Authority) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			common.Fail(c, http.StatusUnauthorized, 40100, "missing bearer token")
			c.Abort()
			return
		}
		bearer := strings.TrimPrefix(header, "Bearer ")

		claims, err := authority.Validate(c.Request.Context(), bearer)
		if err != nil {
			switch {
			case errors.Is(err, session.ErrSessionInvalid):
				common.Fail(c, http.StatusUnauthorized, 40102, "session invalid, please log in again")
			case errors.Is(err, session.ErrMalformedCredential):
				common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
			default:
				common.Fail(c, http.StatusUnauthorized, 40103, "could not validate session")
			}
			c.Abort()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}
