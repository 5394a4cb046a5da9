package service

import (
	"context"
	"strings"

	"workit/internal/models"
	"workit/internal/repository"
	"workit/internal/validation"
)

// MessageService handles direct messages between two users.
type MessageService struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	pub         EventPublisher
}

func NewMessageService(messageRepo repository.MessageRepository, userRepo repository.UserRepository, pub EventPublisher) *MessageService {
	return &MessageService{messageRepo: messageRepo, userRepo: userRepo, pub: pub}
}

// Conversation returns the full history between userID and peerID, oldest first.
func (s *MessageService) Conversation(ctx context.Context, userID, peerID uint) ([]models.Message, error) {
	if _, err := s.userRepo.GetByID(ctx, peerID); err != nil {
		return nil, err
	}
	return s.messageRepo.Conversation(ctx, userID, peerID)
}

// Send stores a message and pushes it to both participants.
func (s *MessageService) Send(ctx context.Context, senderID uint, req models.SendMessageRequest) (*models.Message, error) {
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		return nil, models.NewValidationError("message content is required")
	}
	if err := validation.Struct(req); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if req.ReceiverID == senderID {
		return nil, models.NewValidationError("cannot send a message to yourself")
	}
	if _, err := s.userRepo.GetByID(ctx, req.ReceiverID); err != nil {
		return nil, err
	}

	msg := &models.Message{
		SenderID:   senderID,
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, err
	}
	publish(ctx, s.pub, models.EventMessageCreated, msg, msg.SenderID, msg.ReceiverID)
	return msg, nil
}

// MarkRead marks messages from peerID to readerID as read and pushes each
// changed row to both participants.
func (s *MessageService) MarkRead(ctx context.Context, readerID, peerID uint) ([]models.Message, error) {
	changed, err := s.messageRepo.MarkRead(ctx, readerID, peerID)
	if err != nil {
		return nil, err
	}
	for i := range changed {
		publish(ctx, s.pub, models.EventMessageUpdated, changed[i], readerID, peerID)
	}
	if changed == nil {
		changed = []models.Message{}
	}
	return changed, nil
}

// UnreadCounts maps each peer to the number of unread messages they sent userID.
func (s *MessageService) UnreadCounts(ctx context.Context, userID uint) (map[uint]int64, error) {
	return s.messageRepo.UnreadCounts(ctx, userID)
}
