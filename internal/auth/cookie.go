package auth

import (
	"net/http"
	"time"

	"student-records/internal/config"

	"github.com/gin-gonic/gin"
)

// CookieConfig describes the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
	MaxAge int
}

func newCookieConfig(cfg config.AuthConfig, ttl time.Duration) CookieConfig {
	name := cfg.CookieName
	if name == "" {
		name = "sessionid"
	}
	return CookieConfig{
		Name:   name,
		Secure: cfg.SecureCookies,
		MaxAge: int(ttl.Seconds()),
	}
}

// SetSessionCookie stores token in an HttpOnly cookie. Lax keeps the
// cookie on top-level navigation from other sites.
func SetSessionCookie(c *gin.Context, cfg CookieConfig, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     cfg.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   cfg.MaxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearSessionCookie(c *gin.Context, cfg CookieConfig) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     cfg.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func sessionToken(c *gin.Context, cfg CookieConfig) string {
	cookie, err := c.Request.Cookie(cfg.Name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
