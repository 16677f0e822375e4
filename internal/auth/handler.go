package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"student-records/internal/web"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const msgBadLogin = "Please enter a correct username and password. Note that both fields may be case-sensitive."

type LoginForm struct {
	Username string `form:"username" validate:"required,max=150"`
	Password string `form:"password" validate:"required"`
	Next     string `form:"next"`
}

type Handler struct {
	service   *Service
	logger    *slog.Logger
	validator *validator.Validate
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service:   service,
		logger:    logger,
		validator: validator.New(),
	}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	accounts := router.Group("/accounts")
	accounts.GET("/login/", h.LoginPage)
	accounts.POST("/login/", h.Login)
	accounts.POST("/logout/", h.Logout)
}

func (h *Handler) LoginPage(c *gin.Context) {
	h.renderLogin(c, http.StatusOK, "", safeNext(c.Query("next")), "")
}

func (h *Handler) Login(c *gin.Context) {
	var form LoginForm
	if err := c.ShouldBind(&form); err != nil {
		h.logger.WarnContext(c.Request.Context(), "failed to bind login form", "error", err)
		h.renderLogin(c, http.StatusBadRequest, "", safeNext(form.Next), msgBadLogin)
		return
	}
	next := safeNext(form.Next)

	if err := h.validator.Struct(form); err != nil {
		h.logger.WarnContext(c.Request.Context(), "validation failed", "error", err)
		h.renderLogin(c, http.StatusOK, form.Username, next, msgBadLogin)
		return
	}

	token, user, err := h.service.Login(c.Request.Context(), form.Username, form.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			h.logger.WarnContext(c.Request.Context(), "login rejected", "username", form.Username)
			h.renderLogin(c, http.StatusOK, form.Username, next, msgBadLogin)
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "login failed", "error", err)
		c.String(http.StatusInternalServerError, "Internal server error")
		return
	}

	h.logger.InfoContext(c.Request.Context(), "user logged in", "username", user.Username)

	SetSessionCookie(c, h.service.cookie, token)
	c.Redirect(http.StatusFound, next)
}

func (h *Handler) Logout(c *gin.Context) {
	if token := sessionToken(c, h.service.cookie); token != "" {
		if err := h.service.Logout(c.Request.Context(), token); err != nil {
			h.logger.ErrorContext(c.Request.Context(), "logout failed", "error", err)
			c.String(http.StatusInternalServerError, "Internal server error")
			return
		}
	}

	ClearSessionCookie(c, h.service.cookie)

	h.logger.InfoContext(c.Request.Context(), "user logged out")

	c.Redirect(http.StatusFound, LoginPath)
}

func (h *Handler) renderLogin(c *gin.Context, status int, username, next, message string) {
	web.Render(c, status, "login.html", gin.H{
		"Title":    "Log in",
		"Username": username,
		"Next":     next,
		"Error":    message,
	})
}

// safeNext keeps redirects on this site: only absolute local paths are
// accepted, anything else becomes "/".
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") {
		return "/"
	}
	if strings.HasPrefix(next, "//") || strings.HasPrefix(next, `/\`) {
		return "/"
	}
	return next
}
