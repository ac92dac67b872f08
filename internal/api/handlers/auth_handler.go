package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/scribe/internal/api/middleware"
	"github.com/yoockh/scribe/internal/services"
	"github.com/yoockh/scribe/internal/utils"
)

type AuthHandler struct {
	users        services.UserService
	sessions     services.SessionService
	cookieSecure bool
}

func NewAuthHandler(users services.UserService, sessions services.SessionService, cookieSecure bool) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions, cookieSecure: cookieSecure}
}

type RegisterRequest struct {
	Username string `form:"username" json:"username" binding:"required,username"`
	Password string `form:"password" json:"password" binding:"required"`
}

// LoginRequest has no binding rules: every bad login is the same 401.
type LoginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

type UserResponse struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

func (h *AuthHandler) RegisterPage(c *gin.Context) {
	render(c, http.StatusOK, "register.html", gin.H{"Title": "Register"})
}

func (h *AuthHandler) LoginPage(c *gin.Context) {
	render(c, http.StatusOK, "login.html", gin.H{"Title": "Log in"})
}

func (h *AuthHandler) Register(c *gin.Context) {
	const op = "AuthHandler.Register"

	var req RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, bindingMessage(err), err), "/register")
		return
	}

	u, err := h.users.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, err, "/register")
		return
	}

	if middleware.WantsHTML(c) {
		middleware.RedirectWithNotice(c, "/login", middleware.NoticeInfo, "Account created, you can log in now.")
		return
	}
	c.JSON(http.StatusCreated, UserResponse{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	_ = c.ShouldBind(&req)

	ctx := c.Request.Context()
	u, err := h.users.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		writeError(c, err, "/login")
		return
	}

	token, session, err := h.sessions.Start(ctx, u)
	if err != nil {
		writeError(c, err, "/login")
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, token, int(h.sessions.TTL().Seconds()), "/", "", h.cookieSecure, true)

	if middleware.WantsHTML(c) {
		middleware.RedirectWithNotice(c, "/", middleware.NoticeInfo, "Welcome back, "+u.Username+".")
		return
	}
	c.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		User:      UserResponse{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt},
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if sid, ok := c.Get(middleware.CtxSessionID); ok {
		if err := h.sessions.End(c.Request.Context(), sid.(string)); err != nil {
			writeError(c, err, "/")
			return
		}
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", h.cookieSecure, true)

	if middleware.WantsHTML(c) {
		middleware.RedirectWithNotice(c, "/", middleware.NoticeInfo, "You have been logged out.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}
