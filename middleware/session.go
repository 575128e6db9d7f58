package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// SessionCookieName is the cookie holding the anonymous cart session id
	SessionCookieName = "cart_session"
	// SessionHeader lets API clients send the session id without cookies
	SessionHeader = "X-Session-ID"

	sessionContextKey = "session_id"
)

// Session ensures every request carries a cart session id, issuing one when
// the client sent none or an invalid one. The id is echoed in SessionHeader.
func Session(ttl time.Duration, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader(SessionHeader)
		if sessionID == "" {
			sessionID, _ = c.Cookie(SessionCookieName)
		}

		if _, err := uuid.Parse(sessionID); err != nil {
			sessionID = uuid.NewString()
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookieName, sessionID, int(ttl.Seconds()), "/", "", secure, true)
		c.Header(SessionHeader, sessionID)
		c.Set(sessionContextKey, sessionID)

		c.Next()
	}
}

// GetSessionID returns the cart session id set by Session
func GetSessionID(c *gin.Context) string {
	return c.GetString(sessionContextKey)
}
