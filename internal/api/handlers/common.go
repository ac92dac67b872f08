package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/scribe/internal/api/middleware"
	"github.com/yoockh/scribe/internal/utils"
)

type APIError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

// writeError answers API clients with {code, message}. Browsers get a
// notice and a 303 to back, except for internal errors which always
// surface as a generic 500.
func writeError(c *gin.Context, err error, back string) {
	status := utils.HTTPStatus(err)
	_ = c.Error(err)

	var ae *utils.AppError
	if !errors.As(err, &ae) || status == http.StatusInternalServerError {
		if middleware.WantsHTML(c) {
			render(c, http.StatusInternalServerError, "error.html", gin.H{
				"Message": "Something went wrong on our side.",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, APIError{
			Code:    utils.CodeInternal,
			Message: "internal server error",
		})
		return
	}

	if middleware.WantsHTML(c) {
		level := middleware.NoticeDanger
		if ae.Code == utils.CodeInvalidArgument || ae.Code == utils.CodeUnauthorized {
			level = middleware.NoticeWarning
		}
		middleware.RedirectWithNotice(c, back, level, ae.Message)
		return
	}
	c.JSON(status, APIError{Code: ae.Code, Message: ae.Message})
}

// currentUser returns the session user, or 0 for guests.
func currentUser(c *gin.Context) (uint, string) {
	id, _ := c.Get(middleware.CtxUserID)
	name, _ := c.Get(middleware.CtxUsername)
	uid, _ := id.(uint)
	uname, _ := name.(string)
	return uid, uname
}

func requireUserID(c *gin.Context) (uint, bool) {
	if uid, _ := currentUser(c); uid != 0 {
		return uid, true
	}
	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "login required", nil), "/login")
	return 0, false
}

// render adds the session user and any pending notice to a page.
func render(c *gin.Context, status int, page string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	uid, uname := currentUser(c)
	if uid != 0 {
		data["Username"] = uname
	}
	if level, msg := middleware.TakeNotice(c); msg != "" {
		data["NoticeLevel"] = level
		data["Notice"] = msg
	}
	c.HTML(status, page, data)
}
