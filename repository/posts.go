package repository

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"inkwell/common"
	"inkwell/models"
)

// PostFilter narrows a listing. Zero values mean no filter.
type PostFilter struct {
	Search   string // case-insensitive substring of title, content or a tag name
	TagSlug  string // exact tag slug
	AuthorID uint
}

type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetBySlug(ctx context.Context, slug string) (*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter PostFilter, page int) (*PostPage, error)
	ToggleLike(ctx context.Context, postID, userID uint) (bool, error)
	HasLiked(ctx context.Context, postID, userID uint) (bool, error)
	LikedBy(ctx context.Context, userID uint, limit int) ([]models.Post, error)
	CountByAuthor(ctx context.Context, authorID uint) (int64, error)
	LikesReceived(ctx context.Context, authorID uint) (int64, error)
	Published(ctx context.Context) ([]models.Post, error)
	TagSlugs(ctx context.Context) ([]string, error)
}

type postRepository struct {
	db *gorm.DB

	// takenSlugs is a field so tests can blind it and force the insert race.
	takenSlugs func(ctx context.Context, base string) (map[string]bool, error)
}

func NewPostRepository(db *gorm.DB) PostRepository {
	r := &postRepository{db: db}
	r.takenSlugs = r.slugsInUse
	return r
}

// Create inserts post and its tags. A post without a slug gets one derived
// from its title: the first of base, base-1, base-2, ... that is free. The
// unique index on slug is the arbiter; losing an insert race to another
// request moves on to the next candidate instead of failing.
func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	post.Tags = NormalizeTags(post.Tags)

	if post.Slug != "" {
		return errors.Wrap(r.insert(ctx, post), "create post")
	}

	base := Slugify(post.Title)
	taken, err := r.takenSlugs(ctx, base)
	if err != nil {
		return errors.Wrap(err, "look up slugs")
	}

	for n := 0; ; n++ {
		if err := ctx.Err(); err != nil {
			post.Slug = ""
			return err
		}

		candidate := slugCandidate(base, n)
		if taken[candidate] {
			continue
		}

		post.Slug = candidate
		err := r.insert(ctx, post)
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err) {
			post.Slug = ""
			return errors.Wrap(err, "create post")
		}
		common.Log.WithField("slug", candidate).Debug("slug taken concurrently, trying next")
	}
}

func (r *postRepository) insert(ctx context.Context, post *models.Post) error {
	tags := post.Tags
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post.ID = 0
		if err := tx.Omit(clause.Associations).Create(post).Error; err != nil {
			return err
		}
		return insertTags(tx, post.ID, tags)
	})
	if err != nil {
		post.ID = 0
	}
	return err
}

func insertTags(tx *gorm.DB, postID uint, tags []models.PostTag) error {
	if len(tags) == 0 {
		return nil
	}
	for i := range tags {
		tags[i].ID = 0
		tags[i].PostID = postID
	}
	return tx.Create(&tags).Error
}

// slugsInUse returns base and every base-* slug already stored.
func (r *postRepository) slugsInUse(ctx context.Context, base string) (map[string]bool, error) {
	var slugs []string
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where(`slug = ? OR slug LIKE ? ESCAPE '\'`, base, likeEscaper.Replace(base)+"-%").
		Pluck("slug", &slugs).Error
	if err != nil {
		return nil, err
	}

	taken := make(map[string]bool, len(slugs))
	for _, s := range slugs {
		taken[s] = true
	}
	return taken, nil
}

func (r *postRepository) GetBySlug(ctx context.Context, slug string) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Preload("Author").
		Preload("Tags", orderTags).
		Where("slug = ?", slug).
		First(&post).Error
	if err != nil {
		return nil, notFound(err, "post", slug)
	}

	posts := []models.Post{post}
	if err := r.attachCounts(ctx, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// Update saves the editable fields and replaces the tag set. The slug is
// never touched.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	post.Tags = NormalizeTags(post.Tags)
	post.UpdatedAt = time.Now()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Post{}).Where("id = ?", post.ID).Updates(map[string]interface{}{
			"title":      post.Title,
			"content":    post.Content,
			"image":      post.Image,
			"updated_at": post.UpdatedAt,
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return common.ErrNotFound("post", post.ID)
		}

		if err := tx.Where("post_id = ?", post.ID).Delete(&models.PostTag{}).Error; err != nil {
			return err
		}
		return insertTags(tx, post.ID, post.Tags)
	})
	if common.IsKind(err, common.KindNotFound) {
		return err
	}
	return errors.Wrap(err, "update post")
}

// Delete removes the post together with its comments, likes and tags.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deletePostChildren(tx, []uint{id}); err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&models.Post{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return common.ErrNotFound("post", id)
		}
		return nil
	})
	if common.IsKind(err, common.KindNotFound) {
		return err
	}
	return errors.Wrap(err, "delete post")
}

func deletePostChildren(tx *gorm.DB, postIDs []uint) error {
	if len(postIDs) == 0 {
		return nil
	}
	for _, child := range []interface{}{&models.Comment{}, &models.PostLike{}, &models.PostTag{}} {
		if err := tx.Where("post_id IN ?", postIDs).Delete(child).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *postRepository) List(ctx context.Context, filter PostFilter, page int) (*PostPage, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Scopes(filterPosts(filter)).Count(&total).Error; err != nil {
		return nil, errors.Wrap(err, "count posts")
	}

	result := &PostPage{Total: total}
	result.Number, result.NumPages = clampPage(page, total)

	err := r.db.WithContext(ctx).
		Scopes(filterPosts(filter)).
		Preload("Author").
		Preload("Tags", orderTags).
		Order("posts.created_at DESC, posts.id DESC").
		Limit(PageSize).
		Offset(result.offset()).
		Find(&result.Posts).Error
	if err != nil {
		return nil, errors.Wrap(err, "list posts")
	}

	if err := r.attachCounts(ctx, result.Posts); err != nil {
		return nil, err
	}
	return result, nil
}

// filterPosts uses EXISTS for tag matches, so a post matching on several
// fields or several tags is still listed once.
func filterPosts(filter PostFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if filter.Search != "" {
			pattern := containsPattern(filter.Search)
			db = db.Where(`(LOWER(posts.title) LIKE ? ESCAPE '\'`+
				` OR LOWER(posts.content) LIKE ? ESCAPE '\'`+
				` OR EXISTS (SELECT 1 FROM post_tags WHERE post_tags.post_id = posts.id AND LOWER(post_tags.name) LIKE ? ESCAPE '\'))`,
				pattern, pattern, pattern)
		}
		if filter.TagSlug != "" {
			db = db.Where("EXISTS (SELECT 1 FROM post_tags WHERE post_tags.post_id = posts.id AND post_tags.slug = ?)", filter.TagSlug)
		}
		if filter.AuthorID != 0 {
			db = db.Where("posts.author_id = ?", filter.AuthorID)
		}
		return db
	}
}

func orderTags(db *gorm.DB) *gorm.DB {
	return db.Order("post_tags.id")
}

type postCount struct {
	PostID uint
	N      int64
}

// attachCounts fills LikeCount and CommentCount for posts.
func (r *postRepository) attachCounts(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}

	likes, err := r.countByPost(ctx, &models.PostLike{}, ids)
	if err != nil {
		return errors.Wrap(err, "count likes")
	}
	comments, err := r.countByPost(ctx, &models.Comment{}, ids)
	if err != nil {
		return errors.Wrap(err, "count comments")
	}

	for i := range posts {
		posts[i].LikeCount = likes[posts[i].ID]
		posts[i].CommentCount = comments[posts[i].ID]
	}
	return nil
}

func (r *postRepository) countByPost(ctx context.Context, model interface{}, ids []uint) (map[uint]int64, error) {
	var rows []postCount
	err := r.db.WithContext(ctx).Model(model).
		Select("post_id, COUNT(*) AS n").
		Where("post_id IN ?", ids).
		Group("post_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.PostID] = row.N
	}
	return counts, nil
}

// ToggleLike adds userID to the post's liked-by set, or removes it when
// already there. It reports whether the user likes the post afterwards.
func (r *postRepository) ToggleLike(ctx context.Context, postID, userID uint) (bool, error) {
	liked := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.PostLike{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			return nil
		}

		liked = true
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.PostLike{PostID: postID, UserID: userID}).Error
	})
	if err != nil {
		return false, errors.Wrap(err, "toggle like")
	}
	return liked, nil
}

func (r *postRepository) HasLiked(ctx context.Context, postID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PostLike{}).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "check like")
	}
	return count > 0, nil
}

// LikedBy returns the newest posts userID has liked.
func (r *postRepository) LikedBy(ctx context.Context, userID uint, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("EXISTS (SELECT 1 FROM post_likes WHERE post_likes.post_id = posts.id AND post_likes.user_id = ?)", userID).
		Order("posts.created_at DESC, posts.id DESC").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, errors.Wrap(err, "list liked posts")
	}
	return posts, nil
}

func (r *postRepository) CountByAuthor(ctx context.Context, authorID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).Where("author_id = ?", authorID).Count(&count).Error
	return count, errors.Wrap(err, "count posts")
}

// LikesReceived counts likes over every post authorID wrote.
func (r *postRepository) LikesReceived(ctx context.Context, authorID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PostLike{}).
		Joins("JOIN posts ON posts.id = post_likes.post_id").
		Where("posts.author_id = ?", authorID).
		Count(&count).Error
	return count, errors.Wrap(err, "count likes received")
}

// Published returns the slug and last update of every post, newest first.
func (r *postRepository) Published(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).
		Select("id", "slug", "updated_at").
		Order("created_at DESC, id DESC").
		Find(&posts).Error
	return posts, errors.Wrap(err, "list published posts")
}

// TagSlugs returns every tag slug in use, sorted.
func (r *postRepository) TagSlugs(ctx context.Context) ([]string, error) {
	var slugs []string
	err := r.db.WithContext(ctx).Model(&models.PostTag{}).
		Distinct("slug").
		Order("slug").
		Pluck("slug", &slugs).Error
	return slugs, errors.Wrap(err, "list tag slugs")
}

// ParseTags splits a comma separated tag field.
func ParseTags(raw string) []models.PostTag {
	var tags []models.PostTag
	for _, name := range strings.Split(raw, ",") {
		tags = append(tags, models.PostTag{Name: name})
	}
	return NormalizeTags(tags)
}

// NormalizeTags trims names, drops tags without a usable slug and keeps the
// first spelling of each slug.
func NormalizeTags(tags []models.PostTag) []models.PostTag {
	seen := make(map[string]bool, len(tags))
	out := make([]models.PostTag, 0, len(tags))
	for _, t := range tags {
		name := strings.TrimSpace(t.Name)
		if r := []rune(name); len(r) > maxTagLength {
			name = strings.TrimSpace(string(r[:maxTagLength]))
		}
		slug := TagSlug(name)
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true
		out = append(out, models.PostTag{Name: name, Slug: slug})
	}
	return out
}
