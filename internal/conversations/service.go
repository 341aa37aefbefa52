package conversations

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/esakrissa/modern-isoner/internal/policy"
	"github.com/esakrissa/modern-isoner/internal/shared"
)

// Queue hands freshly stored user messages to the processing pipeline.
// Implemented by the jobs package; nil disables the hand-off.
type Queue interface {
	EnqueueProcessMessage(ctx context.Context, messageID, conversationID uuid.UUID, content, contentType string) error
}

// MessageObserver counts stored messages. Satisfied by
// *observability.Metrics.
type MessageObserver interface {
	RecordMessageAppended(sender string)
}

// Service wraps the conversation store behind the row-level policy guard.
type Service struct {
	repo     Repository
	guard    *policy.Guard
	queue    Queue
	observer MessageObserver
	logger   *slog.Logger
}

// NewService constructs a new Service. Queue and observer may be nil.
func NewService(repo Repository, guard *policy.Guard, queue Queue, observer MessageObserver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, guard: guard, queue: queue, observer: observer, logger: logger}
}

// SendResult describes the stored inbound message.
type SendResult struct {
	MessageID      uuid.UUID
	ConversationID uuid.UUID
}

// UserConversations lists the caller's own conversations, most recently
// active first. A caller can never list another user's threads.
func (s *Service) UserConversations(ctx context.Context, caller, userID uuid.UUID) ([]Conversation, error) {
	if err := s.guard.CanAccessConversation(caller, userID); err != nil {
		return nil, err
	}
	return s.repo.ListUserConversations(ctx, userID)
}

// ConversationMessages returns the thread's messages in insertion order.
// The ownership predicate runs before any message row is read.
func (s *Service) ConversationMessages(ctx context.Context, caller, conversationID uuid.UUID) ([]Message, error) {
	conv, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CanAccessConversation(caller, conv.UserID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, conversationID)
}

// SendMessage stores an inbound user message. When conversationID is Nil a
// new conversation is started for the caller. The insert and the
// last_message_at bump are one atomic unit; the processing hand-off happens
// only after the transaction commits.
func (s *Service) SendMessage(ctx context.Context, caller, conversationID uuid.UUID, content, contentType string) (SendResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return SendResult{}, fmt.Errorf("%w: content required", shared.ErrValidation)
	}
	if contentType == "" {
		contentType = "text"
	}
	if caller == uuid.Nil {
		return SendResult{}, shared.ErrPermissionDenied
	}

	if conversationID == uuid.Nil {
		conv, err := s.repo.CreateConversation(ctx, caller)
		if err != nil {
			return SendResult{}, err
		}
		conversationID = conv.ID
	} else {
		conv, err := s.repo.GetConversation(ctx, conversationID)
		if err != nil {
			return SendResult{}, err
		}
		if err := s.guard.CanAccessConversation(caller, conv.UserID); err != nil {
			return SendResult{}, err
		}
		if conv.Status != StatusActive {
			return SendResult{}, fmt.Errorf("%w: conversation is %s", shared.ErrValidation, conv.Status)
		}
	}

	msg, err := s.repo.AppendMessage(ctx, conversationID, SenderUser, content, contentType, false)
	if err != nil {
		return SendResult{}, err
	}
	if s.observer != nil {
		s.observer.RecordMessageAppended(string(SenderUser))
	}

	if s.queue != nil {
		if err := s.queue.EnqueueProcessMessage(ctx, msg.ID, conversationID, content, contentType); err != nil {
			// The message is durably stored; delivery retries belong to the
			// queue, so a failed enqueue is logged, not surfaced.
			s.logger.Error("enqueue process message", slog.String("message_id", msg.ID.String()), slog.Any("error", err))
		}
	}

	return SendResult{MessageID: msg.ID, ConversationID: conversationID}, nil
}

// InsertBotMessage appends a bot reply. Bot messages are born processed.
// Invoked by the worker's reply path under its service identity, so no
// caller predicate applies here.
func (s *Service) InsertBotMessage(ctx context.Context, conversationID uuid.UUID, content, contentType string) (uuid.UUID, error) {
	if strings.TrimSpace(content) == "" {
		return uuid.Nil, fmt.Errorf("%w: content required", shared.ErrValidation)
	}
	if contentType == "" {
		contentType = "text"
	}
	msg, err := s.repo.AppendMessage(ctx, conversationID, SenderBot, content, contentType, true)
	if err != nil {
		return uuid.Nil, err
	}
	if s.observer != nil {
		s.observer.RecordMessageAppended(string(SenderBot))
	}
	return msg.ID, nil
}

// MarkProcessed records that the processing pipeline consumed the message.
// Returns false when the message was already consumed, so a redelivered
// task can skip its follow-up work.
func (s *Service) MarkProcessed(ctx context.Context, messageID uuid.UUID) (bool, error) {
	changed, err := s.repo.MarkProcessed(ctx, messageID)
	if err != nil {
		return false, err
	}
	if !changed {
		s.logger.Debug("message already processed", slog.String("message_id", messageID.String()))
	}
	return changed, nil
}

// CloseConversation transitions the caller's conversation to closed.
func (s *Service) CloseConversation(ctx context.Context, caller, conversationID uuid.UUID) error {
	conv, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if err := s.guard.CanAccessConversation(caller, conv.UserID); err != nil {
		return err
	}
	return s.repo.UpdateStatus(ctx, conversationID, StatusClosed)
}

// ExpireIdle expires active conversations idle for longer than the window.
func (s *Service) ExpireIdle(ctx context.Context, window time.Duration) (int64, error) {
	return s.repo.ExpireIdle(ctx, time.Now().UTC().Add(-window))
}
