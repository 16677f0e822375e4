package web

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	flashCookie = "flash"

	// UserKey holds the signed-in username in the gin context.
	UserKey = "web.user"
)

var funcs = template.FuncMap{
	"add":  func(a, b int) int { return a + b },
	"sub":  func(a, b int) int { return a - b },
	"year": func() int { return time.Now().Year() },
}

// Templates parses every embedded page template. Pages are addressed by
// file name, e.g. "student_list.html".
func Templates() (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
}

// SetFlash stores a one-shot notice shown on the next rendered page.
func SetFlash(c *gin.Context, message string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookie, message, 60, "/", "", false, true)
}

// PopFlash returns the pending notice, if any, and clears it.
func PopFlash(c *gin.Context) string {
	// gin escapes and unescapes the value itself
	message, err := c.Cookie(flashCookie)
	if err != nil || message == "" {
		return ""
	}
	c.SetCookie(flashCookie, "", -1, "/", "", false, true)
	return message
}

// Render executes a page template with the signed-in user, any pending
// flash notice and the CSRF token added to data.
func Render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["User"] = c.GetString(UserKey)
	data["Flash"] = PopFlash(c)
	data["CSRFToken"] = CSRFToken(c)
	c.HTML(status, name, data)
}
