package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"inkwell/common"
	"inkwell/models"
	"inkwell/repository"
)

const maxCommentLength = 10000

type Comments struct {
	comments repository.CommentRepository
	posts    repository.PostRepository
}

func NewComments(comments repository.CommentRepository, posts repository.PostRepository) *Comments {
	return &Comments{comments: comments, posts: posts}
}

// Add appends a comment by the current user to the post.
func (s *Comments) Add(ctx context.Context, slug, body string) (*models.Comment, error) {
	user, err := common.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, common.ErrValidation("Please correct the errors below.", map[string]string{"body": "This field is required."})
	}
	if utf8.RuneCountInString(body) > maxCommentLength {
		return nil, common.ErrValidation("Please correct the errors below.", map[string]string{"body": "Comment too long (max 10000 characters)."})
	}

	post, err := s.posts.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		PostID: post.ID,
		UserID: user.ID,
		User:   *user,
		Body:   body,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	comment.Post = post
	return comment, nil
}

func (s *Comments) Get(ctx context.Context, id uint) (*models.Comment, error) {
	return s.comments.GetByID(ctx, id)
}

// Delete removes the comment if the current user wrote it. The post's author
// gets no special treatment.
func (s *Comments) Delete(ctx context.Context, id uint) (*models.Comment, error) {
	user, err := common.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	comment, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if comment.UserID != user.ID {
		return nil, common.ErrForbidden("You can only delete your own comments!")
	}
	if err := s.comments.Delete(ctx, id); err != nil {
		return nil, err
	}
	return comment, nil
}
