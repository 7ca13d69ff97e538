package common

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"inkwell/models"
)

const (
	sessionUserKey = "user_id"
	LoginPath      = "/accounts/login"
)

// UserLoader resolves the user stored in the session.
type UserLoader func(ctx context.Context, id uint) (*models.User, error)

// LoadUser puts the session's user, if any, into the request context. A
// session pointing at a user that no longer exists is cleared.
func LoadUser(load UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := sessionUserID(sessions.Default(c))
		if !ok {
			c.Next()
			return
		}

		user, err := load(c.Request.Context(), id)
		if err != nil {
			if !IsKind(err, KindNotFound) {
				Log.WithError(err).WithField("user_id", id).Error("failed to load session user")
			}
			session := sessions.Default(c)
			session.Delete(sessionUserKey)
			if err := session.Save(); err != nil {
				Log.WithError(err).Warn("failed to clear stale session")
			}
			c.Next()
			return
		}

		c.Request = c.Request.WithContext(WithUser(c.Request.Context(), user))
		c.Set("user", user)
		c.Next()
	}
}

// RequireAuth sends anonymous visitors to the login page, remembering where
// they were going.
func RequireAuth(c *gin.Context) {
	if CurrentUser(c.Request.Context()) == nil {
		c.Redirect(http.StatusFound, LoginPath+"?next="+url.QueryEscape(returnPath(c.Request)))
		c.Abort()
		return
	}
	c.Next()
}

// returnPath is where to go after logging in. Form targets only accept POST,
// so those requests return to the page the form was on.
func returnPath(r *http.Request) string {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return r.URL.RequestURI()
	}
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" || (ref.Host != "" && ref.Host != r.Host) {
		return "/"
	}
	return ref.RequestURI()
}

func Login(c *gin.Context, user *models.User) error {
	session := sessions.Default(c)
	session.Clear()
	session.Set(sessionUserKey, user.ID)
	return session.Save()
}

func Logout(c *gin.Context) error {
	session := sessions.Default(c)
	session.Clear()
	return session.Save()
}

func sessionUserID(session sessions.Session) (uint, bool) {
	switch v := session.Get(sessionUserKey).(type) {
	case uint:
		return v, v != 0
	case int:
		return uint(v), v > 0
	}
	return 0, false
}
