package common

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell/models"
)

func setupAuthRouter(users map[uint]*models.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(sessions.Sessions("test-session", cookie.NewStore([]byte("secret"))))
	router.Use(LoadUser(func(ctx context.Context, id uint) (*models.User, error) {
		if user, ok := users[id]; ok {
			return user, nil
		}
		return nil, ErrNotFound("user", id)
	}))

	router.GET("/login/:id", func(c *gin.Context) {
		var id uint
		fmt.Sscan(c.Param("id"), &id)
		Login(c, &models.User{ID: id})
		c.Status(http.StatusNoContent)
	})
	router.GET("/logout", func(c *gin.Context) {
		Logout(c)
		c.Status(http.StatusNoContent)
	})
	router.GET("/private", RequireAuth, func(c *gin.Context) {
		c.String(http.StatusOK, CurrentUser(c.Request.Context()).Username)
	})
	router.POST("/private/like", RequireAuth, func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func serve(router *gin.Engine, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequireAuth_Anonymous(t *testing.T) {
	router := setupAuthRouter(nil)

	w := serve(router, "/private?x=1", nil)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/accounts/login?next=%2Fprivate%3Fx%3D1", w.Header().Get("Location"))
}

func TestLoginAndLogout(t *testing.T) {
	router := setupAuthRouter(map[uint]*models.User{7: {ID: 7, Username: "alice"}})

	login := serve(router, "/login/7", nil)
	require.Equal(t, http.StatusNoContent, login.Code)
	cookies := login.Result().Cookies()

	w := serve(router, "/private", cookies)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", w.Body.String())

	logout := serve(router, "/logout", cookies)
	w = serve(router, "/private", logout.Result().Cookies())
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestLoadUser_StaleSession(t *testing.T) {
	router := setupAuthRouter(map[uint]*models.User{})

	login := serve(router, "/login/9", nil)
	w := serve(router, "/private", login.Result().Cookies())

	assert.Equal(t, http.StatusFound, w.Code)
}

func TestRequireAuth_PostReturnsToReferer(t *testing.T) {
	router := setupAuthRouter(nil)

	cases := []struct {
		name    string
		referer string
		next    string
	}{
		{"same site", "http://example.com/post/hello?page=2", "/post/hello?page=2"},
		{"relative", "/post/hello", "/post/hello"},
		{"other site", "http://evil.test/post/hello", "/"},
		{"missing", "", "/"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/private/like", nil)
			if tc.referer != "" {
				req.Header.Set("Referer", tc.referer)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusFound, w.Code)
			assert.Equal(t, "/accounts/login?next="+url.QueryEscape(tc.next), w.Header().Get("Location"))
		})
	}
}
