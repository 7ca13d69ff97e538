package service

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"inkwell/common"
	"inkwell/models"
	"inkwell/repository"
)

const (
	likedPostsOnProfile = 5
	minPasswordLength   = 8
	maxPasswordBytes    = 72 // bcrypt input limit
)

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type ProfileInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Bio       string
	Website   string
	Location  string
	Avatar    string // stored media path, empty keeps the current avatar
}

// ProfileView is everything the profile page shows.
type ProfileView struct {
	User         *models.User
	Posts        *repository.PostPage
	LikedPosts   []models.Post
	TotalPosts   int64
	TotalLikes   int64 // likes received over all of the user's posts
	Followers    int64
	Following    int64
	IsFollowing  bool
	IsOwnProfile bool
}

type Accounts struct {
	users    repository.UserRepository
	profiles repository.ProfileRepository
	posts    repository.PostRepository
	hashCost int
}

func NewAccounts(users repository.UserRepository, profiles repository.ProfileRepository, posts repository.PostRepository) *Accounts {
	return &Accounts{users: users, profiles: profiles, posts: posts, hashCost: bcrypt.DefaultCost}
}

// WithHashCost lowers the bcrypt cost, for tests.
func (s *Accounts) WithHashCost(cost int) *Accounts {
	s.hashCost = cost
	return s
}

func (s *Accounts) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)

	fields := map[string]string{}
	if len(in.Password) < minPasswordLength {
		fields["password"] = "This password is too short. It must contain at least 8 characters."
	} else if len(in.Password) > maxPasswordBytes {
		fields["password"] = "This password is too long. It must contain at most 72 bytes."
	}
	if err := s.checkUnique(ctx, username, email, 0, fields); err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		return nil, common.ErrValidation("Please correct the errors below.", fields)
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, common.ErrInternal(err)
	}

	user := &models.User{Username: username, Email: email, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	common.Log.WithField("user_id", user.ID).WithField("username", user.Username).Info("user registered")
	return user, nil
}

// Authenticate checks a username/password pair. Both failure cases give the
// same message.
func (s *Accounts) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	invalid := common.ErrValidation("Please enter a correct username and password.", nil)

	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if common.IsKind(err, common.KindNotFound) {
		return nil, invalid
	}
	if err != nil {
		return nil, err
	}
	if !checkPasswordHash(password, user.PasswordHash) {
		return nil, invalid
	}
	return user, nil
}

func (s *Accounts) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// Profile builds the profile page of username, or of the current user when
// username is empty.
func (s *Accounts) Profile(ctx context.Context, username string, page int) (*ProfileView, error) {
	viewer, err := common.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	user := viewer
	if username != "" && username != viewer.Username {
		if user, err = s.users.GetByUsername(ctx, username); err != nil {
			return nil, err
		}
	}
	profile, err := s.profileOf(ctx, user)
	if err != nil {
		return nil, err
	}

	view := &ProfileView{User: user, IsOwnProfile: user.ID == viewer.ID}
	if view.Posts, err = s.posts.List(ctx, repository.PostFilter{AuthorID: user.ID}, page); err != nil {
		return nil, err
	}
	if view.LikedPosts, err = s.posts.LikedBy(ctx, user.ID, likedPostsOnProfile); err != nil {
		return nil, err
	}
	if view.TotalPosts, err = s.posts.CountByAuthor(ctx, user.ID); err != nil {
		return nil, err
	}
	if view.TotalLikes, err = s.posts.LikesReceived(ctx, user.ID); err != nil {
		return nil, err
	}
	if view.Followers, err = s.profiles.CountFollowers(ctx, profile.ID); err != nil {
		return nil, err
	}
	if view.Following, err = s.profiles.CountFollowing(ctx, user.ID); err != nil {
		return nil, err
	}
	if !view.IsOwnProfile {
		if view.IsFollowing, err = s.profiles.IsFollower(ctx, profile.ID, viewer.ID); err != nil {
			return nil, err
		}
	}
	return view, nil
}

// UpdateProfile saves the current user's account and profile fields. It
// returns the avatar path that was replaced, if any, so the caller can remove
// the old file.
func (s *Accounts) UpdateProfile(ctx context.Context, in ProfileInput) (*models.User, string, error) {
	current, err := common.RequireUser(ctx)
	if err != nil {
		return nil, "", err
	}
	user, err := s.users.GetByID(ctx, current.ID)
	if err != nil {
		return nil, "", err
	}

	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	fields := map[string]string{}
	if err := s.checkUnique(ctx, username, email, user.ID, fields); err != nil {
		return nil, "", err
	}
	if len(fields) > 0 {
		return nil, "", common.ErrValidation("Please correct the errors below.", fields)
	}

	profile, err := s.profileOf(ctx, user)
	if err != nil {
		return nil, "", err
	}

	user.Username = username
	user.Email = email
	user.FirstName = strings.TrimSpace(in.FirstName)
	user.LastName = strings.TrimSpace(in.LastName)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, "", err
	}

	replaced := ""
	profile.Bio = in.Bio
	profile.Website = strings.TrimSpace(in.Website)
	profile.Location = strings.TrimSpace(in.Location)
	if in.Avatar != "" {
		replaced = profile.Avatar
		profile.Avatar = in.Avatar
	}
	if err := s.profiles.Update(ctx, profile); err != nil {
		return nil, "", err
	}

	user.Profile = profile
	return user, replaced, nil
}

// ToggleFollow makes the current user follow username, or unfollow when they
// already do. Following yourself is refused without touching anything.
func (s *Accounts) ToggleFollow(ctx context.Context, username string) (bool, error) {
	actor, err := common.RequireUser(ctx)
	if err != nil {
		return false, err
	}
	target, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	if target.ID == actor.ID {
		return false, common.ErrForbidden("You cannot follow yourself!")
	}

	profile, err := s.profileOf(ctx, target)
	if err != nil {
		return false, err
	}
	following, err := s.profiles.ToggleFollower(ctx, profile.ID, actor.ID)
	if err != nil {
		return false, err
	}

	common.Log.WithField("user_id", actor.ID).WithField("target", target.Username).WithField("following", following).Info("follow toggled")
	return following, nil
}

func (s *Accounts) profileOf(ctx context.Context, user *models.User) (*models.Profile, error) {
	if user.Profile != nil && user.Profile.ID != 0 {
		return user.Profile, nil
	}
	return s.profiles.GetByUserID(ctx, user.ID)
}

func (s *Accounts) checkUnique(ctx context.Context, username, email string, exceptID uint, fields map[string]string) error {
	taken, err := s.users.UsernameTaken(ctx, username, exceptID)
	if err != nil {
		return err
	}
	if taken {
		fields["username"] = "A user with that username already exists."
	}

	taken, err = s.users.EmailTaken(ctx, email, exceptID)
	if err != nil {
		return err
	}
	if taken {
		fields["email"] = "A user with that email already exists."
	}
	return nil
}

func (s *Accounts) hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	return string(bytes), err
}

func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
