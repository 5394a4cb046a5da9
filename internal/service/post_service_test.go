package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"workit/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		listFn: func(_ context.Context) ([]models.Post, error) { return nil, nil },
		getByIDFn: func(_ context.Context, id uint) (*models.Post, error) {
			return &models.Post{ID: id}, nil
		},
		likedPostIDsFn: func(_ context.Context, _ uint, _ []uint) ([]uint, error) { return nil, nil },
		createFn: func(_ context.Context, p *models.Post) error {
			p.ID = 1
			return nil
		},
		toggleLikeFn: func(_ context.Context, id, _ uint) (*models.Post, bool, error) {
			return &models.Post{ID: id, Likes: 1}, true, nil
		},
		incrementSharesFn: func(_ context.Context, id uint) (*models.Post, error) {
			return &models.Post{ID: id, Shares: 1}, nil
		},
	}
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn: func(_ context.Context, c *models.Comment) (*models.Post, error) {
			c.ID = 1
			return &models.Post{ID: c.PostID, Comments: 1}, nil
		},
		listByPostFn: func(_ context.Context, _ uint) ([]models.Comment, error) { return []models.Comment{}, nil },
	}
}

func TestPostService_ListPostsMarksViewerLikes(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	posts := noopPostRepo()
	posts.listFn = func(_ context.Context) ([]models.Post, error) {
		return []models.Post{
			{ID: 2, UserID: 1, User: models.User{ID: 1, Username: "alice"}, Content: "new", CreatedAt: now.Add(-30 * time.Second)},
			{ID: 1, UserID: 2, User: models.User{ID: 2, Username: "bob"}, Content: "old", CreatedAt: now.Add(-3 * time.Hour)},
		}, nil
	}
	posts.likedPostIDsFn = func(_ context.Context, userID uint, ids []uint) ([]uint, error) {
		assert.Equal(t, uint(7), userID)
		assert.Equal(t, []uint{2, 1}, ids)
		return []uint{1}, nil
	}

	svc := NewPostService(posts, noopCommentRepo(), noopUserRepo(), nil)
	svc.now = func() time.Time { return now }

	views, err := svc.ListPosts(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.False(t, views[0].Liked)
	assert.Equal(t, "just now", views[0].TimeAgo)
	assert.Equal(t, "A", views[0].Author.Avatar)
	assert.True(t, views[1].Liked)
	assert.Equal(t, "3 hours ago", views[1].TimeAgo)
}

func TestPostService_CreatePost(t *testing.T) {
	pub := &recordingPublisher{}
	var stored *models.Post
	posts := noopPostRepo()
	posts.createFn = func(_ context.Context, p *models.Post) error {
		p.ID = 11
		stored = p
		return nil
	}
	svc := NewPostService(posts, noopCommentRepo(), noopUserRepo(), pub)

	_, err := svc.CreatePost(context.Background(), 3, models.CreatePostRequest{Content: "   "})
	assert.True(t, models.IsCode(err, models.CodeValidation))
	assert.Nil(t, stored)

	view, err := svc.CreatePost(context.Background(), 3, models.CreatePostRequest{Content: " hello forum "})
	require.NoError(t, err)
	assert.Equal(t, "hello forum", stored.Content)
	assert.Equal(t, uint(11), view.ID)
	assert.Zero(t, view.Likes)
	assert.Equal(t, []string{models.EventPostCreated}, pub.types())
	assert.Empty(t, pub.events[0].UserIDs, "new posts go to everyone")
}

func TestPostService_ToggleLike(t *testing.T) {
	likes := 5
	liked := false
	posts := noopPostRepo()
	posts.toggleLikeFn = func(_ context.Context, id, _ uint) (*models.Post, bool, error) {
		if liked {
			likes--
		} else {
			likes++
		}
		liked = !liked
		return &models.Post{ID: id, Likes: likes}, liked, nil
	}
	pub := &recordingPublisher{}
	svc := NewPostService(posts, noopCommentRepo(), noopUserRepo(), pub)

	res, err := svc.ToggleLike(context.Background(), 1, 9)
	require.NoError(t, err)
	assert.Equal(t, models.LikeResult{PostID: 1, Likes: 6, Liked: true}, *res)

	res, err = svc.ToggleLike(context.Background(), 1, 9)
	require.NoError(t, err)
	assert.Equal(t, models.LikeResult{PostID: 1, Likes: 5, Liked: false}, *res)

	require.Len(t, pub.events, 2)
	payload := pub.events[0].Payload.(models.PostUpdatePayload)
	assert.Equal(t, uint(9), payload.ActorID)
	assert.True(t, payload.Liked)

	posts.toggleLikeFn = func(_ context.Context, _, _ uint) (*models.Post, bool, error) {
		return nil, false, models.NewInternalError(errors.New("db down"))
	}
	_, err = svc.ToggleLike(context.Background(), 1, 9)
	assert.True(t, models.IsCode(err, models.CodeInternal))
	assert.Len(t, pub.events, 2, "failed toggles publish nothing")
}

func TestPostService_AddComment(t *testing.T) {
	pub := &recordingPublisher{}
	users := noopUserRepo()
	users.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
		return &models.User{ID: id, Username: "carol"}, nil
	}
	svc := NewPostService(noopPostRepo(), noopCommentRepo(), users, pub)

	c, err := svc.AddComment(context.Background(), 5, 3, models.CreateCommentRequest{Content: " nice "})
	require.NoError(t, err)
	assert.Equal(t, "nice", c.Content)
	assert.Equal(t, "carol", c.Username)
	assert.Equal(t, []string{models.EventCommentCreated, models.EventPostUpdated}, pub.types())

	_, err = svc.AddComment(context.Background(), 5, 3, models.CreateCommentRequest{})
	assert.True(t, models.IsCode(err, models.CodeValidation))
}

func TestPostService_ListCommentsMissingPost(t *testing.T) {
	posts := noopPostRepo()
	posts.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return nil, models.NewNotFoundError("Post", id)
	}
	_, err := NewPostService(posts, noopCommentRepo(), noopUserRepo(), nil).ListComments(context.Background(), 4)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostService_SharePost(t *testing.T) {
	pub := &recordingPublisher{}
	p, err := NewPostService(noopPostRepo(), noopCommentRepo(), noopUserRepo(), pub).SharePost(context.Background(), 8)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Shares)
	assert.Equal(t, []string{models.EventPostUpdated}, pub.types())
}
