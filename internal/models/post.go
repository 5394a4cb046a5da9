package models

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Post is an entry in the global forum.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Likes     int       `gorm:"not null;default:0" json:"likes"`
	Comments  int       `gorm:"not null;default:0" json:"comments"`
	Shares    int       `gorm:"not null;default:0" json:"shares"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName keeps the forum table name used by the schema.
func (Post) TableName() string {
	return "global_posts"
}

// Like marks that a user liked a post. At most one row exists per pair.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_post_likes_pair" json:"post_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_post_likes_pair" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Like.
func (Like) TableName() string {
	return "post_likes"
}

// Comment is a reply on a forum post.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	UserID    uint      `gorm:"not null" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
	Username  string    `gorm:"-" json:"username"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Comment.
func (Comment) TableName() string {
	return "post_comments"
}

// Author is the author block rendered next to a post.
type Author struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// PostView is a post as presented to one viewer.
type PostView struct {
	ID        uint      `json:"id"`
	Author    Author    `json:"author"`
	Content   string    `json:"content"`
	Likes     int       `json:"likes"`
	Comments  int       `json:"comments"`
	Shares    int       `json:"shares"`
	Liked     bool      `json:"liked"`
	CreatedAt time.Time `json:"created_at"`
	TimeAgo   string    `json:"time_ago"`
}

// NewPostView formats a post with its joined author for viewer-facing output.
func NewPostView(p Post, liked bool, now time.Time) PostView {
	return PostView{
		ID: p.ID,
		Author: Author{
			ID:       p.UserID,
			Username: p.User.Username,
			Avatar:   AvatarInitial(p.User.Username),
		},
		Content:   p.Content,
		Likes:     p.Likes,
		Comments:  p.Comments,
		Shares:    p.Shares,
		Liked:     liked,
		CreatedAt: p.CreatedAt,
		TimeAgo:   TimeAgo(p.CreatedAt, now),
	}
}

// LikeResult is the authoritative state after a like toggle.
type LikeResult struct {
	PostID uint `json:"post_id"`
	Likes  int  `json:"likes"`
	Liked  bool `json:"liked"`
}

// CreatePostRequest is the payload for a new forum post.
type CreatePostRequest struct {
	Content string `json:"content" validate:"max=1000"`
}

// CreateCommentRequest is the payload for a new comment.
type CreateCommentRequest struct {
	Content string `json:"content" validate:"max=1000"`
}

// AvatarInitial is the upper-cased first letter of a username.
func AvatarInitial(username string) string {
	username = strings.TrimSpace(username)
	if username == "" {
		return "?"
	}
	r, _ := utf8.DecodeRuneInString(username)
	return string(unicode.ToUpper(r))
}

// TimeAgo renders a coarse relative time label.
func TimeAgo(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute")
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour")
	default:
		return plural(int(d/(24*time.Hour)), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
