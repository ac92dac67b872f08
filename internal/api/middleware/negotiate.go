package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// Context keys set by Session.
const (
	CtxUserID    = "user_id"
	CtxUsername  = "username"
	CtxSessionID = "session_id"
)

const (
	SessionCookie = "session"
	NoticeCookie  = "notice"
)

// Notice levels, shown as the page banner style.
const (
	NoticeInfo    = "info"
	NoticeWarning = "warning"
	NoticeDanger  = "danger"
)

// WantsHTML is true when the client prefers text/html over JSON, which is
// what browsers send on navigation and form posts.
func WantsHTML(c *gin.Context) bool {
	return c.NegotiateFormat(gin.MIMEJSON, gin.MIMEHTML) == gin.MIMEHTML
}

// SetNotice stores a one-shot message for the next rendered page.
func SetNotice(c *gin.Context, level, msg string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(NoticeCookie, url.QueryEscape(level+"|"+msg), 60, "/", "", false, true)
}

// TakeNotice reads and clears the pending notice.
func TakeNotice(c *gin.Context) (level, msg string) {
	raw, err := c.Cookie(NoticeCookie)
	if err != nil || raw == "" {
		return "", ""
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(NoticeCookie, "", -1, "/", "", false, true)

	v, err := url.QueryUnescape(raw)
	if err != nil {
		return "", ""
	}
	level, msg, ok := strings.Cut(v, "|")
	if !ok {
		return NoticeInfo, v
	}
	return level, msg
}

// RedirectWithNotice answers a browser with a notice and a 303 to path.
func RedirectWithNotice(c *gin.Context, path, level, msg string) {
	SetNotice(c, level, msg)
	c.Redirect(http.StatusSeeOther, path)
}
