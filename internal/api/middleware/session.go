package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/scribe/internal/services"
	"github.com/yoockh/scribe/internal/utils"
)

// Session resolves the caller from a Bearer token or the session cookie.
// Requests without a valid session continue as guests.
func Session(svc services.SessionService, l *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, fromCookie := sessionToken(c)
		if token == "" {
			c.Next()
			return
		}

		s, err := svc.Resolve(c.Request.Context(), token)
		switch {
		case err == nil:
			c.Set(CtxUserID, s.UserID)
			c.Set(CtxUsername, s.Username)
			c.Set(CtxSessionID, s.ID)
		case utils.IsCode(err, utils.CodeUnauthorized):
			if fromCookie {
				c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
			}
		default:
			l.WithError(err).Warn("session lookup failed")
		}
		c.Next()
	}
}

func sessionToken(c *gin.Context) (string, bool) {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")), false
	}
	if v, err := c.Cookie(SessionCookie); err == nil && v != "" {
		return v, true
	}
	return "", false
}

// RequireSession stops guests: browsers go to /login, API clients get 401.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, ok := c.Get(CtxUserID); ok {
			if uid, ok := id.(uint); ok && uid != 0 {
				c.Next()
				return
			}
		}

		if WantsHTML(c) {
			RedirectWithNotice(c, "/login", NoticeWarning, "Please log in first.")
			c.Abort()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"code":    utils.CodeUnauthorized,
			"message": "login required",
		})
	}
}
