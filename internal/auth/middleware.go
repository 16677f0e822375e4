package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"student-records/internal/web"

	"github.com/gin-gonic/gin"
)

type contextKey string

const userKey contextKey = "auth.user"

const LoginPath = "/accounts/login/"

// WithUser attaches the signed-in user to ctx.
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// CurrentUser returns the user set by RequirePage or RequireAPI.
func CurrentUser(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userKey).(*User)
	return user, ok
}

func setUser(c *gin.Context, user *User) {
	c.Request = c.Request.WithContext(WithUser(c.Request.Context(), user))
	c.Set(web.UserKey, user.Username)
}

// RequirePage redirects anonymous visitors to the login page, keeping the
// requested path in next.
func RequirePage(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user := service.sessionUser(c); user != nil {
			setUser(c, user)
			c.Next()
			return
		}

		target := LoginPath + "?next=" + url.QueryEscape(c.Request.URL.RequestURI())
		c.Redirect(http.StatusFound, target)
		c.Abort()
	}
}

// RequireAPI accepts either the session cookie or HTTP Basic credentials.
func RequireAPI(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user := service.sessionUser(c); user != nil {
			setUser(c, user)
			c.Next()
			return
		}

		username, password, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", `Basic realm="api"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Authentication credentials were not provided."})
			return
		}

		user, err := service.AuthenticateBasic(c.Request.Context(), username, password)
		if err != nil {
			if !errors.Is(err, ErrInvalidCredentials) {
				service.logger.ErrorContext(c.Request.Context(), "basic authentication failed", "error", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
				return
			}
			service.logger.WarnContext(c.Request.Context(), "invalid basic credentials", "username", username)
			c.Header("WWW-Authenticate", `Basic realm="api"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid username/password."})
			return
		}

		setUser(c, user)
		c.Next()
	}
}

// sessionUser resolves the session cookie, or returns nil when there is
// no usable session.
func (s *Service) sessionUser(c *gin.Context) *User {
	token := sessionToken(c, s.cookie)
	if token == "" {
		return nil
	}

	user, err := s.Authenticate(c.Request.Context(), token)
	if err != nil {
		s.logger.WarnContext(c.Request.Context(), "rejected session cookie", "path", c.Request.URL.Path, "error", err)
		return nil
	}
	return user
}
