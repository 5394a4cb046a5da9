package service

import (
	"context"
	"strings"
	"time"

	"workit/internal/models"
	"workit/internal/observability"
	"workit/internal/repository"
	"workit/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// PostService implements the global forum.
type PostService struct {
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	userRepo    repository.UserRepository
	pub         EventPublisher
	now         func() time.Time
}

func NewPostService(
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
	userRepo repository.UserRepository,
	pub EventPublisher,
) *PostService {
	return &PostService{
		postRepo:    postRepo,
		commentRepo: commentRepo,
		userRepo:    userRepo,
		pub:         pub,
		now:         systemNow,
	}
}

func counters(p *models.Post) models.PostUpdatePayload {
	return models.PostUpdatePayload{
		PostID:   p.ID,
		Likes:    p.Likes,
		Comments: p.Comments,
		Shares:   p.Shares,
	}
}

// ListPosts returns every post newest first, flagged with the viewer's likes.
func (s *PostService) ListPosts(ctx context.Context, viewerID uint) ([]models.PostView, error) {
	posts, err := s.postRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	likedIDs, err := s.postRepo.LikedPostIDs(ctx, viewerID, ids)
	if err != nil {
		return nil, err
	}
	liked := make(map[uint]bool, len(likedIDs))
	for _, id := range likedIDs {
		liked[id] = true
	}

	now := s.now()
	views := make([]models.PostView, 0, len(posts))
	for _, p := range posts {
		views = append(views, models.NewPostView(p, liked[p.ID], now))
	}
	return views, nil
}

// GetPost returns a single post with its author.
func (s *PostService) GetPost(ctx context.Context, postID uint) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, postID)
}

func normalizeContent(content, field string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", models.NewValidationError(field + " content is required")
	}
	return content, nil
}

func (s *PostService) CreatePost(ctx context.Context, userID uint, req models.CreatePostRequest) (*models.PostView, error) {
	content, err := normalizeContent(req.Content, "post")
	if err != nil {
		return nil, err
	}
	req.Content = content
	if err := validation.Struct(req); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	post := &models.Post{UserID: userID, Content: content}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	author, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	post.User = *author

	view := models.NewPostView(*post, false, s.now())
	publish(ctx, s.pub, models.EventPostCreated, view)
	return &view, nil
}

// ToggleLike flips the viewer's like and returns the authoritative counter.
func (s *PostService) ToggleLike(ctx context.Context, postID, userID uint) (result *models.LikeResult, err error) {
	ctx, span := observability.StartSpan(ctx, "service", "ToggleLike",
		attribute.Int64("post_id", int64(postID)),
		attribute.Int64("user_id", int64(userID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	post, liked, err := s.postRepo.ToggleLike(ctx, postID, userID)
	if err != nil {
		return nil, err
	}

	update := counters(post)
	update.ActorID = userID
	update.Liked = liked
	publish(ctx, s.pub, models.EventPostUpdated, update)

	return &models.LikeResult{PostID: post.ID, Likes: post.Likes, Liked: liked}, nil
}

// AddComment stores a comment and bumps the post's counter atomically.
func (s *PostService) AddComment(ctx context.Context, postID, userID uint, req models.CreateCommentRequest) (*models.Comment, error) {
	content, err := normalizeContent(req.Content, "comment")
	if err != nil {
		return nil, err
	}
	req.Content = content
	if err := validation.Struct(req); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	comment := &models.Comment{PostID: postID, UserID: userID, Content: content}
	post, err := s.commentRepo.Create(ctx, comment)
	if err != nil {
		return nil, err
	}
	if author, err := s.userRepo.GetByID(ctx, userID); err == nil {
		comment.Username = author.Username
	}

	publish(ctx, s.pub, models.EventCommentCreated, comment)
	publish(ctx, s.pub, models.EventPostUpdated, counters(post))
	return comment, nil
}

// ListComments returns a post's comments oldest first.
func (s *PostService) ListComments(ctx context.Context, postID uint) ([]models.Comment, error) {
	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByPost(ctx, postID)
}

// SharePost counts a share and returns the post for rendering its card.
func (s *PostService) SharePost(ctx context.Context, postID uint) (*models.Post, error) {
	post, err := s.postRepo.IncrementShares(ctx, postID)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.pub, models.EventPostUpdated, counters(post))
	return post, nil
}
