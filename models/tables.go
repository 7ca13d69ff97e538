package models

import "time"

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"size:254;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"` // never rendered
	FirstName    string    `gorm:"size:150" json:"first_name"`
	LastName     string    `gorm:"size:150" json:"last_name"`
	CreatedAt    time.Time `json:"created_at"`
	Profile      *Profile  `gorm:"foreignKey:UserID" json:"profile,omitempty"`
}

// FullName falls back to the username when no name was given.
func (u User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	}
	return u.Username
}

type Profile struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Bio       string    `gorm:"type:text" json:"bio"`
	Avatar    string    `json:"avatar"` // path under the media dir, empty when unset
	Website   string    `gorm:"size:200" json:"website"`
	Location  string    `gorm:"size:100" json:"location"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileFollower is the follower set of a profile. The composite key is what
// makes a follow idempotent under concurrent requests.
type ProfileFollower struct {
	ProfileID uint `gorm:"primaryKey"`
	UserID    uint `gorm:"primaryKey;index"`
	CreatedAt time.Time
}

type Post struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	AuthorID  uint      `gorm:"not null;index" json:"author_id"`
	Author    User      `gorm:"foreignKey:AuthorID" json:"author"`
	Title     string    `gorm:"size:200;not null" json:"title"`
	Slug      string    `gorm:"size:200;uniqueIndex;not null" json:"slug"`
	Content   string    `gorm:"type:text" json:"content"`
	Image     string    `json:"image"`
	Tags      []PostTag `gorm:"foreignKey:PostID" json:"tags"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// computed per query, never stored
	LikeCount    int64 `gorm:"-" json:"like_count"`
	CommentCount int64 `gorm:"-" json:"comment_count"`
}

// TagNames returns the tag names in insertion order.
func (p Post) TagNames() []string {
	names := make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		names = append(names, t.Name)
	}
	return names
}

type PostTag struct {
	ID     uint   `gorm:"primaryKey;autoIncrement" json:"-"`
	PostID uint   `gorm:"not null;uniqueIndex:idx_post_tag" json:"-"`
	Name   string `gorm:"size:100;not null;index" json:"name"`
	Slug   string `gorm:"size:100;not null;index;uniqueIndex:idx_post_tag" json:"slug"`
}

// PostLike is the liked-by set of a post.
type PostLike struct {
	PostID    uint `gorm:"primaryKey"`
	UserID    uint `gorm:"primaryKey;index"`
	CreatedAt time.Time
}

type Comment struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	Post      *Post     `gorm:"foreignKey:PostID" json:"-"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
