package web

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	csrfCookie = "csrftoken"
	csrfKey    = "web.csrf"

	// CSRFField is the hidden form field carrying the token.
	CSRFField = "csrfmiddlewaretoken"
	// CSRFHeader is accepted instead of the form field.
	CSRFHeader = "X-CSRFToken"

	csrfMaxAge = 365 * 24 * 60 * 60

	msgCSRFFailed = "CSRF verification failed. Request aborted."
)

// CSRF issues a per-browser token cookie and rejects unsafe requests
// whose form field or header does not echo it.
func CSRF(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(csrfCookie)
		if err == nil {
			_, err = uuid.Parse(token)
		}
		if err != nil {
			token = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(csrfCookie, token, csrfMaxAge, "/", "", secure, false)
			// a freshly minted token cannot have been echoed back
			err = http.ErrNoCookie
		}
		c.Set(csrfKey, token)

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			c.Next()
			return
		}

		sent := c.PostForm(CSRFField)
		if sent == "" {
			sent = c.GetHeader(CSRFHeader)
		}
		if err != nil || subtle.ConstantTimeCompare([]byte(sent), []byte(token)) != 1 {
			c.String(http.StatusForbidden, msgCSRFFailed)
			c.Abort()
			return
		}
		c.Next()
	}
}

// CSRFToken is the token for forms rendered in this request, empty when
// the CSRF middleware is not mounted.
func CSRFToken(c *gin.Context) string {
	return c.GetString(csrfKey)
}
