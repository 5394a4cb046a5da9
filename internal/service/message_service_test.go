package service

import (
	"context"
	"strings"
	"testing"

	"workit/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMessageRepo() *messageRepoStub {
	return &messageRepoStub{
		conversationFn: func(_ context.Context, _, _ uint) ([]models.Message, error) { return []models.Message{}, nil },
		createFn: func(_ context.Context, m *models.Message) error {
			m.ID = 100
			return nil
		},
		markReadFn:     func(_ context.Context, _, _ uint) ([]models.Message, error) { return nil, nil },
		unreadCountsFn: func(_ context.Context, _ uint) (map[uint]int64, error) { return map[uint]int64{}, nil },
	}
}

func TestMessageService_Send(t *testing.T) {
	t.Run("WhitespaceIsRejectedWithoutWrites", func(t *testing.T) {
		repo := newMessageRepo()
		created := false
		repo.createFn = func(_ context.Context, _ *models.Message) error {
			created = true
			return nil
		}
		pub := &recordingPublisher{}
		_, err := NewMessageService(repo, noopUserRepo(), pub).Send(context.Background(), 1, models.SendMessageRequest{ReceiverID: 2, Content: " \n\t "})
		assert.True(t, models.IsCode(err, models.CodeValidation))
		assert.False(t, created)
		assert.Empty(t, pub.types())
	})

	t.Run("TooLong", func(t *testing.T) {
		_, err := NewMessageService(newMessageRepo(), noopUserRepo(), nil).Send(context.Background(), 1, models.SendMessageRequest{ReceiverID: 2, Content: strings.Repeat("a", 2001)})
		assert.True(t, models.IsCode(err, models.CodeValidation))
	})

	t.Run("Self", func(t *testing.T) {
		_, err := NewMessageService(newMessageRepo(), noopUserRepo(), nil).Send(context.Background(), 1, models.SendMessageRequest{ReceiverID: 1, Content: "me"})
		assert.True(t, models.IsCode(err, models.CodeValidation))
	})

	t.Run("UnknownReceiver", func(t *testing.T) {
		users := noopUserRepo()
		users.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
			return nil, models.NewNotFoundError("User", id)
		}
		_, err := NewMessageService(newMessageRepo(), users, nil).Send(context.Background(), 1, models.SendMessageRequest{ReceiverID: 9, Content: "hi"})
		assert.True(t, models.IsCode(err, models.CodeNotFound))
	})

	t.Run("PublishesToBothParties", func(t *testing.T) {
		pub := &recordingPublisher{}
		msg, err := NewMessageService(newMessageRepo(), noopUserRepo(), pub).Send(context.Background(), 1, models.SendMessageRequest{ReceiverID: 2, Content: "  hello  "})
		require.NoError(t, err)
		assert.Equal(t, "hello", msg.Content)
		assert.Equal(t, uint(100), msg.ID)

		require.Len(t, pub.events, 1)
		assert.Equal(t, models.EventMessageCreated, pub.events[0].Type)
		assert.ElementsMatch(t, []uint{1, 2}, pub.events[0].UserIDs)
	})
}

func TestMessageService_MarkRead(t *testing.T) {
	repo := newMessageRepo()
	repo.markReadFn = func(_ context.Context, reader, peer uint) ([]models.Message, error) {
		return []models.Message{
			{ID: 1, SenderID: peer, ReceiverID: reader, IsRead: true},
			{ID: 2, SenderID: peer, ReceiverID: reader, IsRead: true},
		}, nil
	}
	pub := &recordingPublisher{}
	changed, err := NewMessageService(repo, noopUserRepo(), pub).MarkRead(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Len(t, changed, 2)
	assert.Equal(t, []string{models.EventMessageUpdated, models.EventMessageUpdated}, pub.types())

	empty, err := NewMessageService(newMessageRepo(), noopUserRepo(), pub).MarkRead(context.Background(), 1, 3)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestMessageService_ConversationUnknownPeer(t *testing.T) {
	users := noopUserRepo()
	users.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
		return nil, models.NewNotFoundError("User", id)
	}
	_, err := NewMessageService(newMessageRepo(), users, nil).Conversation(context.Background(), 1, 42)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}
