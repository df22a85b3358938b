package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/contentfilter"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/repository"
	"github.com/google/uuid"
)

// SendResult is a stored message plus whatever the filter removed. The
// blocked items are for the audit log, not for the receiver.
type SendResult struct {
	Message      *models.Message
	BlockedItems []string
}

type MessageService struct {
	repo      *repository.MessageRepository
	gate      *MessageGate
	filter    *contentfilter.Filter
	profiles  ProfileDirectory
	maxLength int
}

func NewMessageService(
	repo *repository.MessageRepository,
	gate *MessageGate,
	filter *contentfilter.Filter,
	profiles ProfileDirectory,
	maxLength int,
) *MessageService {
	return &MessageService{
		repo:      repo,
		gate:      gate,
		filter:    filter,
		profiles:  profiles,
		maxLength: maxLength,
	}
}

// Send checks the gate, filters the text and stores only the filtered form.
func (s *MessageService) Send(ctx context.Context, senderID, receiverID uuid.UUID, raw string) (*SendResult, error) {
	if senderID == receiverID {
		return nil, fmt.Errorf("%w: cannot message yourself", ErrForbidden)
	}
	content := strings.TrimSpace(raw)
	if content == "" {
		return nil, fmt.Errorf("%w: message is empty", ErrInvalidArgument)
	}
	if s.maxLength > 0 && utf8.RuneCountInString(content) > s.maxLength {
		return nil, fmt.Errorf("%w: message longer than %d characters", ErrInvalidArgument, s.maxLength)
	}

	decision, err := s.gate.CanMessage(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if err := decision.Err(); err != nil {
		return nil, err
	}

	res := filterText(s.filter, senderID, "message", content)
	msg := &models.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    res.Filtered,
	}
	if err := s.repo.Append(ctx, msg); err != nil {
		return nil, err
	}
	metrics.MessagesSent.Inc()

	return &SendResult{Message: msg, BlockedItems: res.BlockedItems}, nil
}

// Conversation returns the thread between viewer and other, oldest first,
// after marking everything other sent to viewer as read.
func (s *MessageService) Conversation(ctx context.Context, viewerID, otherID uuid.UUID) ([]models.Message, error) {
	decision, err := s.gate.CanMessage(ctx, viewerID, otherID)
	if err != nil {
		return nil, err
	}
	if err := decision.Err(); err != nil {
		return nil, err
	}

	if _, err := s.repo.MarkRead(ctx, viewerID, otherID); err != nil {
		return nil, fmt.Errorf("failed to mark messages read: %w", err)
	}
	msgs, err := s.repo.ListConversation(ctx, viewerID, otherID)
	if err != nil {
		return nil, err
	}

	names := s.profiles.DisplayNames(ctx, []uuid.UUID{viewerID, otherID})
	for i := range msgs {
		msgs[i].SenderName = names[msgs[i].SenderID]
	}
	return msgs, nil
}

func (s *MessageService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}
