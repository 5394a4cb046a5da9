package repository

import (
	"context"

	"workit/internal/models"

	"gorm.io/gorm"
)

// MessageRepository defines persistence operations for direct messages.
type MessageRepository interface {
	Conversation(ctx context.Context, userA, userB uint) ([]models.Message, error)
	Create(ctx context.Context, message *models.Message) error
	MarkRead(ctx context.Context, readerID, peerID uint) ([]models.Message, error)
	UnreadCounts(ctx context.Context, userID uint) (map[uint]int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Conversation returns the full history between two users, oldest first.
func (r *messageRepository) Conversation(ctx context.Context, userA, userB uint) ([]models.Message, error) {
	messages := []models.Message{}
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", userA, userB, userB, userA).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return messages, nil
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// MarkRead flags every unread message from peer to reader and returns the rows it changed.
func (r *messageRepository) MarkRead(ctx context.Context, readerID, peerID uint) ([]models.Message, error) {
	var changed []models.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("sender_id = ? AND receiver_id = ? AND is_read = ?", peerID, readerID, false).
			Order("id ASC").
			Find(&changed).Error; err != nil {
			return err
		}
		if len(changed) == 0 {
			return nil
		}
		ids := make([]uint, 0, len(changed))
		for i := range changed {
			ids = append(ids, changed[i].ID)
			changed[i].IsRead = true
		}
		return tx.Model(&models.Message{}).Where("id IN ?", ids).Update("is_read", true).Error
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return changed, nil
}

// UnreadCounts maps each sender to the number of unread messages they sent userID.
func (r *messageRepository) UnreadCounts(ctx context.Context, userID uint) (map[uint]int64, error) {
	var rows []struct {
		SenderID uint
		Count    int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Select("sender_id, COUNT(*) AS count").
		Where("receiver_id = ? AND is_read = ?", userID, false).
		Group("sender_id").
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.SenderID] = row.Count
	}
	return counts, nil
}
