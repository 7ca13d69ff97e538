package accounts

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"inkwell/common"
	"inkwell/media"
	"inkwell/models"
	"inkwell/repository"
	"inkwell/service"
)

type AccountsModule struct {
	accounts *service.Accounts
	media    *media.Store
}

type registerForm struct {
	Username  string `form:"username" binding:"required,max=150,username"`
	Email     string `form:"email" binding:"required,email,max=254"`
	Password1 string `form:"password1" binding:"required"`
	Password2 string `form:"password2" binding:"required,eqfield=Password1"`
}

type loginForm struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

type profileForm struct {
	Username  string `form:"username" binding:"required,max=150,username"`
	Email     string `form:"email" binding:"required,email,max=254"`
	FirstName string `form:"first_name" binding:"max=150"`
	LastName  string `form:"last_name" binding:"max=150"`
	Bio       string `form:"bio" binding:"max=500"`
	Website   string `form:"website" binding:"omitempty,url,max=200"`
	Location  string `form:"location" binding:"max=100"`
}

func NewAccountsModule(accounts *service.Accounts, mediaStore *media.Store) *AccountsModule {
	return &AccountsModule{accounts: accounts, media: mediaStore}
}

func (a *AccountsModule) RegisterRoutes(router gin.IRouter) {
	group := router.Group("/accounts")
	{
		group.GET("/register", a.registerPage)
		group.POST("/register", a.registerPost)
		group.GET("/login", a.loginPage)
		group.POST("/login", a.loginPost)
		group.POST("/logout", a.logout)

		group.GET("/profile", common.RequireAuth, a.profile)
		group.GET("/profile/:username", common.RequireAuth, a.profile)
		group.GET("/edit", common.RequireAuth, a.editPage)
		group.POST("/edit", common.RequireAuth, a.editPost)
		group.POST("/follow/:username", common.RequireAuth, a.follow)
	}
}

func (a *AccountsModule) registerPage(c *gin.Context) {
	if common.CurrentUser(c.Request.Context()) != nil {
		c.Redirect(http.StatusFound, "/")
		return
	}
	a.renderRegister(c, http.StatusOK, registerForm{}, nil)
}

func (a *AccountsModule) registerPost(c *gin.Context) {
	var form registerForm
	if err := c.ShouldBind(&form); err != nil {
		a.renderRegister(c, http.StatusBadRequest, form, common.FieldErrors(err))
		return
	}

	user, err := a.accounts.Register(c.Request.Context(), service.RegisterInput{
		Username: form.Username,
		Email:    form.Email,
		Password: form.Password1,
	})
	if err != nil {
		if appErr := common.AsAppError(err); appErr.Kind == common.KindValidation {
			a.renderRegister(c, http.StatusBadRequest, form, appErr.Fields)
			return
		}
		common.RenderError(c, err)
		return
	}

	common.Flash(c, common.FlashSuccess, "Account created for "+user.Username+"! You can now log in.")
	c.Redirect(http.StatusFound, common.LoginPath)
}

func (a *AccountsModule) renderRegister(c *gin.Context, status int, form registerForm, errs map[string]string) {
	// never echo passwords back
	form.Password1, form.Password2 = "", ""
	common.Render(c, status, "accounts_register.html", gin.H{
		"title":  "Register",
		"form":   form,
		"errors": errs,
	})
}

func (a *AccountsModule) loginPage(c *gin.Context) {
	if common.CurrentUser(c.Request.Context()) != nil {
		c.Redirect(http.StatusFound, "/")
		return
	}
	a.renderLogin(c, http.StatusOK, "", c.Query("next"), "")
}

func (a *AccountsModule) loginPost(c *gin.Context) {
	next := c.PostForm("next")
	if next == "" {
		next = c.Query("next")
	}

	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		a.renderLogin(c, http.StatusBadRequest, form.Username, next, "Please enter a correct username and password.")
		return
	}

	user, err := a.accounts.Authenticate(c.Request.Context(), form.Username, form.Password)
	if err != nil {
		if appErr := common.AsAppError(err); appErr.Kind == common.KindValidation {
			a.renderLogin(c, http.StatusBadRequest, form.Username, next, appErr.Message)
			return
		}
		common.RenderError(c, err)
		return
	}

	if err := common.Login(c, user); err != nil {
		common.RenderError(c, common.ErrInternal(err))
		return
	}

	common.Log.WithField("user_id", user.ID).Info("user logged in")
	c.Redirect(http.StatusFound, safeNext(next))
}

func (a *AccountsModule) renderLogin(c *gin.Context, status int, username, next, message string) {
	common.Render(c, status, "accounts_login.html", gin.H{
		"title":    "Login",
		"username": username,
		"next":     next,
		"error":    message,
	})
}

func (a *AccountsModule) logout(c *gin.Context) {
	if err := common.Logout(c); err != nil {
		common.Log.WithError(err).Warn("failed to clear session")
	}
	c.Redirect(http.StatusFound, "/")
}

func (a *AccountsModule) profile(c *gin.Context) {
	view, err := a.accounts.Profile(c.Request.Context(), c.Param("username"), repository.ParsePage(c.Query("page")))
	if err != nil {
		common.RenderError(c, err)
		return
	}

	common.Render(c, http.StatusOK, "accounts_profile.html", gin.H{
		"title":          view.User.Username,
		"profile_user":   view.User,
		"profile":        view.User.Profile,
		"page":           view.Posts,
		"posts":          view.Posts.Posts,
		"liked_posts":    view.LikedPosts,
		"total_posts":    view.TotalPosts,
		"total_likes":    view.TotalLikes,
		"followers":      view.Followers,
		"following":      view.Following,
		"is_following":   view.IsFollowing,
		"is_own_profile": view.IsOwnProfile,
	})
}

func (a *AccountsModule) editPage(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := a.accounts.GetUser(ctx, common.CurrentUser(ctx).ID)
	if err != nil {
		common.RenderError(c, err)
		return
	}

	form := profileForm{
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
	if p := user.Profile; p != nil {
		form.Bio = p.Bio
		form.Website = p.Website
		form.Location = p.Location
	}
	a.renderEdit(c, http.StatusOK, user.Profile, form, nil)
}

func (a *AccountsModule) editPost(c *gin.Context) {
	ctx := c.Request.Context()
	current := common.CurrentUser(ctx)

	var form profileForm
	if err := c.ShouldBind(&form); err != nil {
		a.renderEdit(c, http.StatusBadRequest, current.Profile, form, common.FieldErrors(err))
		return
	}

	avatar, err := a.media.FromForm(c, "avatar", media.Avatars)
	if err != nil {
		a.editError(c, current.Profile, form, err)
		return
	}

	_, replaced, err := a.accounts.UpdateProfile(ctx, service.ProfileInput{
		Username:  form.Username,
		Email:     form.Email,
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Bio:       form.Bio,
		Website:   form.Website,
		Location:  form.Location,
		Avatar:    avatar,
	})
	if err != nil {
		a.media.Remove(avatar)
		a.editError(c, current.Profile, form, err)
		return
	}
	a.media.Remove(replaced)

	common.Flash(c, common.FlashSuccess, "Your profile has been updated!")
	c.Redirect(http.StatusFound, "/accounts/profile")
}

func (a *AccountsModule) editError(c *gin.Context, profile *models.Profile, form profileForm, err error) {
	appErr := common.AsAppError(err)
	if appErr.Kind != common.KindValidation {
		common.RenderError(c, err)
		return
	}
	a.renderEdit(c, http.StatusBadRequest, profile, form, appErr.Fields)
}

func (a *AccountsModule) renderEdit(c *gin.Context, status int, profile *models.Profile, form profileForm, errs map[string]string) {
	common.Render(c, status, "accounts_edit_profile.html", gin.H{
		"title":   "Edit Profile",
		"profile": profile,
		"form":    form,
		"errors":  errs,
	})
}

func (a *AccountsModule) follow(c *gin.Context) {
	username := c.Param("username")
	profileURL := "/accounts/profile/" + url.PathEscape(username)

	following, err := a.accounts.ToggleFollow(c.Request.Context(), username)
	if err != nil {
		if common.IsKind(err, common.KindForbidden) {
			common.Flash(c, common.FlashError, common.AsAppError(err).Message)
			c.Redirect(http.StatusFound, profileURL)
			return
		}
		common.RenderError(c, err)
		return
	}

	if following {
		common.Flash(c, common.FlashSuccess, "You are now following "+username+"!")
	} else {
		common.Flash(c, common.FlashInfo, "You unfollowed "+username)
	}
	c.Redirect(http.StatusFound, profileURL)
}

// safeNext only follows local paths after login.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	if u, err := url.Parse(next); err != nil || u.Host != "" || u.Scheme != "" {
		return "/"
	}
	return next
}
