// Package service holds the operations behind every route. The acting user is
// always taken from the context, never from the request.
package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"inkwell/common"
	"inkwell/models"
	"inkwell/repository"
)

const maxTitleLength = 200

type PostInput struct {
	Title   string
	Content string
	Image   string // stored media path, empty keeps no image
	Tags    string // comma separated
}

// PostDetail is everything the detail page shows.
type PostDetail struct {
	Post     *models.Post
	Comments []models.Comment
	HasLiked bool
}

type Posts struct {
	posts    repository.PostRepository
	comments repository.CommentRepository
}

func NewPosts(posts repository.PostRepository, comments repository.CommentRepository) *Posts {
	return &Posts{posts: posts, comments: comments}
}

func (s *Posts) List(ctx context.Context, filter repository.PostFilter, page int) (*repository.PostPage, error) {
	return s.posts.List(ctx, filter, page)
}

func (s *Posts) Create(ctx context.Context, in PostInput) (*models.Post, error) {
	user, err := common.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validatePost(in); err != nil {
		return nil, err
	}

	post := &models.Post{
		AuthorID: user.ID,
		Author:   *user,
		Title:    strings.TrimSpace(in.Title),
		Content:  in.Content,
		Image:    in.Image,
		Tags:     repository.ParseTags(in.Tags),
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}

	common.Log.WithField("slug", post.Slug).WithField("user_id", user.ID).Info("post created")
	return post, nil
}

func (s *Posts) Detail(ctx context.Context, slug string) (*PostDetail, error) {
	post, err := s.posts.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByPost(ctx, post.ID)
	if err != nil {
		return nil, err
	}

	detail := &PostDetail{Post: post, Comments: comments}
	if user := common.CurrentUser(ctx); user != nil {
		if detail.HasLiked, err = s.posts.HasLiked(ctx, post.ID, user.ID); err != nil {
			return nil, err
		}
	}
	return detail, nil
}

// Editable loads the post for its author and refuses everyone else.
func (s *Posts) Editable(ctx context.Context, slug string) (*models.Post, error) {
	return s.owned(ctx, slug, "You can only edit your own posts!")
}

// Deletable is Editable for the delete confirmation.
func (s *Posts) Deletable(ctx context.Context, slug string) (*models.Post, error) {
	return s.owned(ctx, slug, "You can only delete your own posts!")
}

func (s *Posts) owned(ctx context.Context, slug, refusal string) (*models.Post, error) {
	user, err := common.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	post, err := s.posts.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != user.ID {
		return nil, common.ErrForbidden(refusal)
	}
	return post, nil
}

// Update applies in to the author's post. An empty in.Image keeps the current
// image. The slug never changes.
func (s *Posts) Update(ctx context.Context, slug string, in PostInput) (*models.Post, error) {
	post, err := s.Editable(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := validatePost(in); err != nil {
		return nil, err
	}

	post.Title = strings.TrimSpace(in.Title)
	post.Content = in.Content
	if in.Image != "" {
		post.Image = in.Image
	}
	post.Tags = repository.ParseTags(in.Tags)

	if err := s.posts.Update(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// Delete removes the author's post and returns what was deleted.
func (s *Posts) Delete(ctx context.Context, slug string) (*models.Post, error) {
	post, err := s.Deletable(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := s.posts.Delete(ctx, post.ID); err != nil {
		return nil, err
	}

	common.Log.WithField("slug", post.Slug).WithField("user_id", post.AuthorID).Info("post deleted")
	return post, nil
}

// ToggleLike likes the post for the current user, or unlikes it when already
// liked. It reports the state after the toggle.
func (s *Posts) ToggleLike(ctx context.Context, slug string) (bool, error) {
	user, err := common.RequireUser(ctx)
	if err != nil {
		return false, err
	}
	post, err := s.posts.GetBySlug(ctx, slug)
	if err != nil {
		return false, err
	}
	return s.posts.ToggleLike(ctx, post.ID, user.ID)
}

func validatePost(in PostInput) error {
	fields := map[string]string{}
	title := strings.TrimSpace(in.Title)
	switch {
	case title == "":
		fields["title"] = "This field is required."
	case utf8.RuneCountInString(title) > maxTitleLength:
		fields["title"] = "Ensure this value has at most 200 characters."
	}
	if strings.TrimSpace(in.Content) == "" {
		fields["content"] = "This field is required."
	}
	if len(fields) > 0 {
		return common.ErrValidation("Please correct the errors below.", fields)
	}
	return nil
}
