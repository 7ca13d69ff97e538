package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell/common"
	"inkwell/models"
)

func TestPostCreate_SlugCollisions(t *testing.T) {
	db := setupTestDB(t)
	author := createTestUser(t, db, "alice")

	first := createTestPost(t, db, author, "Hello, World!", "")
	second := createTestPost(t, db, author, "Hello World", "")
	third := createTestPost(t, db, author, "hello world?", "")

	assert.Equal(t, "hello-world", first.Slug)
	assert.Equal(t, "hello-world-1", second.Slug)
	assert.Equal(t, "hello-world-2", third.Slug)
}

func TestPostCreate_SlugPrefixIsNotACollision(t *testing.T) {
	db := setupTestDB(t)
	author := createTestUser(t, db, "alice")

	createTestPost(t, db, author, "Hello World Again", "")
	post := createTestPost(t, db, author, "Hello World", "")

	assert.Equal(t, "hello-world", post.Slug)
}

func TestPostCreate_LosesInsertRace(t *testing.T) {
	db := setupTestDB(t)
	author := createTestUser(t, db, "alice")
	createTestPost(t, db, author, "Race", "go")

	repo := NewPostRepository(db).(*postRepository)
	// the pre-check sees nothing, as if the other insert had not committed yet
	repo.takenSlugs = func(ctx context.Context, base string) (map[string]bool, error) {
		return map[string]bool{}, nil
	}

	post := &models.Post{AuthorID: author.ID, Title: "Race", Content: "again", Tags: ParseTags("go")}
	require.NoError(t, repo.Create(context.Background(), post))

	assert.Equal(t, "race-1", post.Slug)
	assert.NotZero(t, post.ID)
	assert.Equal(t, int64(2), count(t, db, &models.PostTag{}))
}

func TestPostCreate_CancelledContext(t *testing.T) {
	db := setupTestDB(t)
	author := createTestUser(t, db, "alice")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	post := &models.Post{AuthorID: author.ID, Title: "Never", Content: "stored"}
	err := NewPostRepository(db).Create(ctx, post)

	assert.Error(t, err)
	assert.Empty(t, post.Slug)
	assert.Equal(t, int64(0), count(t, db, &models.Post{}))
}

func TestPostGetBySlug(t *testing.T) {
	db := setupTestDB(t)
	author := createTestUser(t, db, "alice")
	created := createTestPost(t, db, author, "Go Tips", "go, tips")
	repo := NewPostRepository(db)

	post, err := repo.GetBySlug(context.Background(), created.Slug)
	require.NoError(t, err)
	assert.Equal(t, "Go Tips", post.Title)
	assert.Equal(t, "alice", post.Author.Username)
	assert.Equal(t, []string{"go", "tips"}, post.TagNames())

	_, err = repo.GetBySlug(context.Background(), "missing")
	assert.True(t, common.IsKind(err, common.KindNotFound))
}

func TestPostUpdate_KeepsSlugAndReplacesTags(t *testing.T) {
	db := setupTestDB(t)
	author := createTestUser(t, db, "alice")
	post := createTestPost(t, db, author, "Original", "old, stale")
	repo := NewPostRepository(db)

	post.Title = "Renamed"
	post.Tags = ParseTags("fresh")
	require.NoError(t, repo.Update(context.Background(), post))

	stored, err := repo.GetBySlug(context.Background(), "original")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", stored.Title)
	assert.Equal(t, []string{"fresh"}, stored.TagNames())
}

func TestPostDelete_Cascades(t *testing.T) {
	db := setupTestDB(t)
	author := createTestUser(t, db, "alice")
	reader := createTestUser(t, db, "bob")
	post := createTestPost(t, db, author, "Doomed", "a, b")
	kept := createTestPost(t, db, author, "Kept", "a")
	repo := NewPostRepository(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.Comment{PostID: post.ID, UserID: reader.ID, Body: "bye"}).Error)
	require.NoError(t, db.Create(&models.Comment{PostID: kept.ID, UserID: reader.ID, Body: "stay"}).Error)
	_, err := repo.ToggleLike(ctx, post.ID, reader.ID)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, post.ID))

	assert.Equal(t, int64(1), count(t, db, &models.Post{}))
	assert.Equal(t, int64(1), count(t, db, &models.Comment{}))
	assert.Equal(t, int64(0), count(t, db, &models.PostLike{}))
	assert.Equal(t, int64(1), count(t, db, &models.PostTag{}))

	err = repo.Delete(ctx, post.ID)
	assert.True(t, common.IsKind(err, common.KindNotFound))
}

func TestPostList_NewestFirstWithCounts(t *testing.T) {
	db := setupTestDB(t)
	author := createTestUser(t, db, "alice")
	reader := createTestUser(t, db, "bob")
	older := createTestPost(t, db, author, "Older", "")
	newer := createTestPost(t, db, author, "Newer", "")
	repo := NewPostRepository(db)
	ctx := context.Background()

	_, err := repo.ToggleLike(ctx, older.ID, reader.ID)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.Comment{PostID: older.ID, UserID: reader.ID, Body: "hi"}).Error)

	page, err := repo.List(ctx, PostFilter{}, 1)
	require.NoError(t, err)
	require.Len(t, page.Posts, 2)

	assert.Equal(t, newer.ID, page.Posts[0].ID)
	assert.Equal(t, older.ID, page.Posts[1].ID)
	assert.Equal(t, int64(1), page.Posts[1].LikeCount)
	assert.Equal(t, int64(1), page.Posts[1].CommentCount)
	assert.Equal(t, int64(0), page.Posts[0].LikeCount)
	assert.Equal(t, "alice", page.Posts[0].Author.Username)
}

func TestPostList_SearchListsEachPostOnce(t *testing.T) {
	db := setupTestDB(t)
	author := createTestUser(t, db, "alice")
	createTestPost(t, db, author, "Go tips", "go, golang, gopher")
	createTestPost(t, db, author, "Rust notes", "rust")

	page, err := NewPostRepository(db).List(context.Background(), PostFilter{Search: "GO"}, 1)
	require.NoError(t, err)

	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, "Go tips", page.Posts[0].Title)
}

func TestPostList_SearchMatchesTagNames(t *testing.T) {
	db := setupTestDB(t)
	author := createTestUser(t, db, "alice")
	createTestPost(t, db, author, "Untitled", "Databases")

	page, err := NewPostRepository(db).List(context.Background(), PostFilter{Search: "databa"}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
}

func TestPostList_SearchEscapesWildcards(t *testing.T) {
	db := setupTestDB(t)
	author := createTestUser(t, db, "alice")
	createTestPost(t, db, author, "100% done", "")
	createTestPost(t, db, author, "1000 done", "")
	createTestPost(t, db, author, "snake_case", "")
	createTestPost(t, db, author, "snakeXcase", "")

	repo := NewPostRepository(db)

	page, err := repo.List(context.Background(), PostFilter{Search: "100%"}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	page, err = repo.List(context.Background(), PostFilter{Search: "snake_"}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
}

func TestPostList_TagFilter(t *testing.T) {
	db := setupTestDB(t)
	author := createTestUser(t, db, "alice")
	createTestPost(t, db, author, "One", "Web Dev, go")
	createTestPost(t, db, author, "Two", "go")
	createTestPost(t, db, author, "Three", "rust")

	repo := NewPostRepository(db)

	page, err := repo.List(context.Background(), PostFilter{TagSlug: "web-dev"}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	page, err = repo.List(context.Background(), PostFilter{TagSlug: "go"}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	page, err = repo.List(context.Background(), PostFilter{TagSlug: "nothing"}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), page.Total)
	assert.Equal(t, 1, page.Number)
	assert.Equal(t, 1, page.NumPages)
}

func TestPostList_AuthorFilter(t *testing.T) {
	db := setupTestDB(t)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	createTestPost(t, db, alice, "Mine", "")
	createTestPost(t, db, bob, "Yours", "")

	page, err := NewPostRepository(db).List(context.Background(), PostFilter{AuthorID: bob.ID}, 1)
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, "Yours", page.Posts[0].Title)
}

func TestPostList_PagesAreClamped(t *testing.T) {
	db := setupTestDB(t)
	author := createTestUser(t, db, "alice")
	for i := 0; i < 14; i++ {
		createTestPost(t, db, author, fmt.Sprintf("Post %d", i), "")
	}
	repo := NewPostRepository(db)
	ctx := context.Background()

	page, err := repo.List(ctx, PostFilter{}, 1)
	require.NoError(t, err)
	assert.Len(t, page.Posts, PageSize)
	assert.Equal(t, 3, page.NumPages)
	assert.Equal(t, int64(14), page.Total)

	page, err = repo.List(ctx, PostFilter{}, 99)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Number)
	assert.Len(t, page.Posts, 2)

	page, err = repo.List(ctx, PostFilter{}, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Number)
}

func TestToggleLike(t *testing.T) {
	db := setupTestDB(t)
	author := createTestUser(t, db, "alice")
	reader := createTestUser(t, db, "bob")
	post := createTestPost(t, db, author, "Likeable", "")
	repo := NewPostRepository(db)
	ctx := context.Background()

	liked, err := repo.ToggleLike(ctx, post.ID, reader.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, int64(1), count(t, db, &models.PostLike{}))

	has, err := repo.HasLiked(ctx, post.ID, reader.ID)
	require.NoError(t, err)
	assert.True(t, has)

	liked, err = repo.ToggleLike(ctx, post.ID, reader.ID)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Equal(t, int64(0), count(t, db, &models.PostLike{}))
}

func TestLikedByAndLikesReceived(t *testing.T) {
	db := setupTestDB(t)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	carol := createTestUser(t, db, "carol")
	first := createTestPost(t, db, alice, "First", "")
	second := createTestPost(t, db, alice, "Second", "")
	repo := NewPostRepository(db)
	ctx := context.Background()

	for _, like := range []struct{ post, user uint }{
		{first.ID, bob.ID}, {second.ID, bob.ID}, {first.ID, carol.ID},
	} {
		_, err := repo.ToggleLike(ctx, like.post, like.user)
		require.NoError(t, err)
	}

	received, err := repo.LikesReceived(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), received)

	liked, err := repo.LikedBy(ctx, bob.ID, 1)
	require.NoError(t, err)
	require.Len(t, liked, 1)
	assert.Equal(t, second.ID, liked[0].ID)

	n, err := repo.CountByAuthor(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestPublishedAndTagSlugs(t *testing.T) {
	db := setupTestDB(t)
	author := createTestUser(t, db, "alice")
	createTestPost(t, db, author, "One", "go, web dev")
	createTestPost(t, db, author, "Two", "go")
	repo := NewPostRepository(db)

	posts, err := repo.Published(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "two", posts[0].Slug)
	assert.False(t, posts[0].UpdatedAt.IsZero())

	slugs, err := repo.TagSlugs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "web-dev"}, slugs)
}

func TestNormalizeTags(t *testing.T) {
	tags := ParseTags(" Go , go, GO!, ###, Web Dev,, ")

	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.Name)
	}
	assert.Equal(t, []string{"Go", "Web Dev"}, names)
	assert.Equal(t, "web-dev", tags[1].Slug)
}
