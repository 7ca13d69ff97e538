package blog

import (
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"inkwell/cache"
	"inkwell/common"
	"inkwell/media"
	"inkwell/models"
	"inkwell/repository"
	"inkwell/service"
)

type BlogModule struct {
	posts    *service.Posts
	comments *service.Comments
	media    *media.Store
	cache    *cache.Store
}

type postForm struct {
	Title   string `form:"title" binding:"required,max=200"`
	Content string `form:"content" binding:"required"`
	Tags    string `form:"tags" binding:"max=500"`
}

type commentForm struct {
	Body string `form:"body" binding:"required,max=10000"`
}

func NewBlogModule(posts *service.Posts, comments *service.Comments, mediaStore *media.Store, renderCache *cache.Store) *BlogModule {
	return &BlogModule{
		posts:    posts,
		comments: comments,
		media:    mediaStore,
		cache:    renderCache,
	}
}

func (b *BlogModule) RegisterRoutes(router gin.IRouter) {
	router.GET("/", b.index)
	router.GET("/tag/:tag", b.postsByTag)

	router.GET("/post/new", common.RequireAuth, b.newPost)
	router.POST("/post/new", common.RequireAuth, b.createPost)
	router.GET("/post/:slug", b.postDetail)
	router.POST("/post/:slug", common.RequireAuth, b.addComment)
	router.GET("/post/:slug/edit", common.RequireAuth, b.editPost)
	router.POST("/post/:slug/edit", common.RequireAuth, b.updatePost)
	router.GET("/post/:slug/delete", common.RequireAuth, b.confirmDelete)
	router.POST("/post/:slug/delete", common.RequireAuth, b.deletePost)
	router.POST("/post/:slug/like", common.RequireAuth, b.likePost)
	router.POST("/comment/:id/delete", common.RequireAuth, b.deleteComment)
}

func (b *BlogModule) index(c *gin.Context) {
	filter := repository.PostFilter{
		Search:  c.Query("search"),
		TagSlug: c.Query("tag"),
	}
	b.renderList(c, filter)
}

func (b *BlogModule) postsByTag(c *gin.Context) {
	b.renderList(c, repository.PostFilter{TagSlug: c.Param("tag")})
}

func (b *BlogModule) renderList(c *gin.Context, filter repository.PostFilter) {
	page, err := b.posts.List(c.Request.Context(), filter, repository.ParsePage(c.Query("page")))
	if err != nil {
		common.RenderError(c, err)
		return
	}

	common.Render(c, http.StatusOK, "blog_home.html", gin.H{
		"page":         page,
		"posts":        page.Posts,
		"search_query": filter.Search,
		"tag_slug":     filter.TagSlug,
	})
}

func (b *BlogModule) postDetail(c *gin.Context) {
	b.renderDetail(c, http.StatusOK, commentForm{}, nil)
}

func (b *BlogModule) renderDetail(c *gin.Context, status int, form commentForm, errs map[string]string) {
	detail, err := b.posts.Detail(c.Request.Context(), c.Param("slug"))
	if err != nil {
		common.RenderError(c, err)
		return
	}

	post := detail.Post
	contentHTML := b.cache.Rendered(post.Slug, post.UpdatedAt, func() string {
		return renderMarkdown(post.Content)
	})

	common.Render(c, status, "blog_post_detail.html", gin.H{
		"post":           post,
		"contentHTML":    template.HTML(contentHTML),
		"comments":       detail.Comments,
		"comment_form":   form,
		"errors":         errs,
		"user_has_liked": detail.HasLiked,
	})
}

func (b *BlogModule) addComment(c *gin.Context) {
	slug := c.Param("slug")

	var form commentForm
	if err := c.ShouldBind(&form); err != nil {
		b.renderDetail(c, http.StatusBadRequest, form, common.FieldErrors(err))
		return
	}

	if _, err := b.comments.Add(c.Request.Context(), slug, form.Body); err != nil {
		if appErr := common.AsAppError(err); appErr.Kind == common.KindValidation {
			b.renderDetail(c, http.StatusBadRequest, form, appErr.Fields)
			return
		}
		common.RenderError(c, err)
		return
	}

	common.Flash(c, common.FlashSuccess, "Comment added successfully!")
	c.Redirect(http.StatusFound, postURL(slug))
}

func (b *BlogModule) newPost(c *gin.Context) {
	b.renderForm(c, http.StatusOK, "Create New Post", nil, postForm{}, nil)
}

func (b *BlogModule) createPost(c *gin.Context) {
	var form postForm
	if err := c.ShouldBind(&form); err != nil {
		b.renderForm(c, http.StatusBadRequest, "Create New Post", nil, form, common.FieldErrors(err))
		return
	}

	image, err := b.media.FromForm(c, "image", media.PostImages)
	if err != nil {
		b.formError(c, "Create New Post", nil, form, err)
		return
	}

	post, err := b.posts.Create(c.Request.Context(), service.PostInput{
		Title:   form.Title,
		Content: form.Content,
		Image:   image,
		Tags:    form.Tags,
	})
	if err != nil {
		b.media.Remove(image)
		b.formError(c, "Create New Post", nil, form, err)
		return
	}

	common.Flash(c, common.FlashSuccess, "Post created successfully!")
	c.Redirect(http.StatusFound, postURL(post.Slug))
}

func (b *BlogModule) editPost(c *gin.Context) {
	post, err := b.posts.Editable(c.Request.Context(), c.Param("slug"))
	if err != nil {
		b.refuse(c, err)
		return
	}

	form := postForm{
		Title:   post.Title,
		Content: post.Content,
		Tags:    strings.Join(post.TagNames(), ", "),
	}
	b.renderForm(c, http.StatusOK, "Edit Post", post, form, nil)
}

func (b *BlogModule) updatePost(c *gin.Context) {
	ctx := c.Request.Context()

	// refuse before touching the upload
	post, err := b.posts.Editable(ctx, c.Param("slug"))
	if err != nil {
		b.refuse(c, err)
		return
	}

	var form postForm
	if err := c.ShouldBind(&form); err != nil {
		b.renderForm(c, http.StatusBadRequest, "Edit Post", post, form, common.FieldErrors(err))
		return
	}

	image, err := b.media.FromForm(c, "image", media.PostImages)
	if err != nil {
		b.formError(c, "Edit Post", post, form, err)
		return
	}

	previousImage := post.Image
	updated, err := b.posts.Update(ctx, post.Slug, service.PostInput{
		Title:   form.Title,
		Content: form.Content,
		Image:   image,
		Tags:    form.Tags,
	})
	if err != nil {
		b.media.Remove(image)
		if common.IsKind(err, common.KindForbidden) {
			b.refuse(c, err)
			return
		}
		b.formError(c, "Edit Post", post, form, err)
		return
	}

	if image != "" && previousImage != "" && previousImage != image {
		b.media.Remove(previousImage)
	}
	if err := b.cache.Clear(updated.Slug); err != nil {
		common.Log.WithError(err).WithField("slug", updated.Slug).Warn("failed to clear render cache")
	}

	common.Flash(c, common.FlashSuccess, "Post updated successfully!")
	c.Redirect(http.StatusFound, postURL(updated.Slug))
}

func (b *BlogModule) confirmDelete(c *gin.Context) {
	post, err := b.posts.Deletable(c.Request.Context(), c.Param("slug"))
	if err != nil {
		b.refuse(c, err)
		return
	}

	common.Render(c, http.StatusOK, "blog_post_confirm_delete.html", gin.H{
		"post": post,
	})
}

func (b *BlogModule) deletePost(c *gin.Context) {
	post, err := b.posts.Delete(c.Request.Context(), c.Param("slug"))
	if err != nil {
		b.refuse(c, err)
		return
	}

	b.media.Remove(post.Image)
	if err := b.cache.Clear(post.Slug); err != nil {
		common.Log.WithError(err).WithField("slug", post.Slug).Warn("failed to clear render cache")
	}

	common.Flash(c, common.FlashSuccess, "Post deleted successfully!")
	c.Redirect(http.StatusFound, "/")
}

func (b *BlogModule) likePost(c *gin.Context) {
	slug := c.Param("slug")

	liked, err := b.posts.ToggleLike(c.Request.Context(), slug)
	if err != nil {
		common.RenderError(c, err)
		return
	}

	if liked {
		common.Flash(c, common.FlashSuccess, "Post liked!")
	} else {
		common.Flash(c, common.FlashInfo, "Post unliked.")
	}
	c.Redirect(http.StatusFound, postURL(slug))
}

func (b *BlogModule) deleteComment(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.RenderError(c, common.ErrNotFound("comment", c.Param("id")))
		return
	}

	comment, err := b.comments.Get(ctx, uint(id))
	if err != nil {
		common.RenderError(c, err)
		return
	}
	slug := comment.Post.Slug

	if _, err := b.comments.Delete(ctx, comment.ID); err != nil {
		if common.IsKind(err, common.KindForbidden) {
			common.Flash(c, common.FlashError, common.AsAppError(err).Message)
			c.Redirect(http.StatusFound, postURL(slug))
			return
		}
		common.RenderError(c, err)
		return
	}

	common.Flash(c, common.FlashSuccess, "Comment deleted successfully!")
	c.Redirect(http.StatusFound, postURL(slug))
}

// refuse turns an ownership failure into a notice on the untouched post and
// renders every other error as usual.
func (b *BlogModule) refuse(c *gin.Context, err error) {
	if common.IsKind(err, common.KindForbidden) {
		common.Flash(c, common.FlashError, common.AsAppError(err).Message)
		c.Redirect(http.StatusFound, postURL(c.Param("slug")))
		return
	}
	common.RenderError(c, err)
}

func (b *BlogModule) formError(c *gin.Context, title string, post *models.Post, form postForm, err error) {
	appErr := common.AsAppError(err)
	if appErr.Kind != common.KindValidation {
		common.RenderError(c, err)
		return
	}
	errs := appErr.Fields
	if len(errs) == 0 {
		errs = map[string]string{"__all__": appErr.Message}
	}
	b.renderForm(c, http.StatusBadRequest, title, post, form, errs)
}

func (b *BlogModule) renderForm(c *gin.Context, status int, title string, post *models.Post, form postForm, errs map[string]string) {
	common.Render(c, status, "blog_post_form.html", gin.H{
		"title":  title,
		"post":   post,
		"form":   form,
		"errors": errs,
	})
}

func postURL(slug string) string {
	return "/post/" + slug
}
