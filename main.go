package main

import (
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"inkwell/accounts"
	"inkwell/blog"
	"inkwell/cache"
	"inkwell/common"
	"inkwell/database"
	"inkwell/media"
	"inkwell/repository"
	"inkwell/service"
	"inkwell/site"
)

// rendered posts untouched for this long are pruned at startup
const renderCacheMaxAge = 30 * 24 * time.Hour

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		common.Log.WithError(err).Fatal("Failed to load config")
	}
	common.InitLogger(cfg.Env)

	db, err := common.ConnectDb(cfg.DatabaseURL)
	if err != nil {
		common.Log.WithError(err).Fatal("Failed to connect to database")
	}

	if err := database.RunMigrations(db); err != nil {
		common.Log.WithError(err).Fatal("Failed to run migrations")
	}

	if cfg.Env == common.ProdEnv {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), common.RequestLogger())

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 14,
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
	})
	router.Use(sessions.Sessions("inkwell-session", store))

	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewProfileRepository(db)

	postService := service.NewPosts(postRepo, commentRepo)
	commentService := service.NewComments(commentRepo, postRepo)
	accountService := service.NewAccounts(userRepo, profileRepo, postRepo)

	router.Use(common.LoadUser(accountService.GetUser))

	router.SetFuncMap(common.TemplateFuncs())
	router.LoadHTMLGlob("*/views/*.html")

	router.Static("/public", "./public")
	router.Static("/media", cfg.MediaDir)

	renderCache := cache.New(cfg.CacheDir)
	if err := renderCache.ClearOld(renderCacheMaxAge); err != nil {
		common.Log.WithError(err).Warn("Failed to prune render cache")
	}
	mediaStore := media.New(cfg.MediaDir)

	blog.NewBlogModule(postService, commentService, mediaStore, renderCache).RegisterRoutes(router)
	accounts.NewAccountsModule(accountService, mediaStore).RegisterRoutes(router)
	site.NewSiteModule(postRepo, cfg.SiteURL).RegisterRoutes(router)

	common.Log.WithField("port", cfg.Port).Info("Starting server")
	if err := router.Run(":" + cfg.Port); err != nil {
		common.Log.WithError(err).Fatal("Failed to start server")
	}
}
