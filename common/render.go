package common

import (
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// TemplateFuncs must be set on the engine before the templates are loaded.
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"now": func() time.Time {
			return time.Now()
		},
		"add": func(a, b int) int {
			return a + b
		},
		"sub": func(a, b int) int {
			return a - b
		},
		"join": strings.Join,
		"media": func(path string) string {
			if path == "" {
				return ""
			}
			return "/media/" + strings.TrimPrefix(path, "/")
		},
		"date": func(t time.Time) string {
			return t.Format("Jan 2, 2006 15:04")
		},
		"truncate": truncate,
		"errorFor": func(errs map[string]string, field string) string {
			return errs[field]
		},
	}
}

// Render adds the current user and pending flash messages to data before
// rendering the named template.
func Render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["currentUser"] = CurrentUser(c.Request.Context())
	data["messages"] = Flashes(c)
	c.HTML(status, name, data)
}

// RenderError renders the shared error page for err and logs internal errors.
func RenderError(c *gin.Context, err error) {
	appErr := AsAppError(err)
	status := http.StatusInternalServerError
	switch appErr.Kind {
	case KindNotFound:
		status = http.StatusNotFound
	case KindForbidden:
		status = http.StatusForbidden
	case KindValidation:
		status = http.StatusBadRequest
	case KindUnauthenticated:
		c.Redirect(http.StatusFound, LoginPath)
		return
	default:
		Log.WithError(appErr.Err).WithField("path", c.Request.URL.Path).Error(appErr.Message)
	}
	Render(c, status, "error.html", gin.H{
		"error":  appErr.Message,
		"status": status,
	})
}

// truncate cuts s to at most n runes, ending in an ellipsis when cut.
func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}
