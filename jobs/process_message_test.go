package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type stubProcessor struct {
	marked           []uuid.UUID
	markErr          error
	alreadyProcessed bool
	replies          []string
	replyErr         error
	expired          int64
}

func (p *stubProcessor) MarkProcessed(ctx context.Context, messageID uuid.UUID) (bool, error) {
	if p.markErr != nil {
		return false, p.markErr
	}
	p.marked = append(p.marked, messageID)
	return !p.alreadyProcessed, nil
}

func (p *stubProcessor) InsertBotMessage(ctx context.Context, conversationID uuid.UUID, content, contentType string) (uuid.UUID, error) {
	if p.replyErr != nil {
		return uuid.Nil, p.replyErr
	}
	p.replies = append(p.replies, content)
	return uuid.New(), nil
}

func (p *stubProcessor) ExpireIdle(ctx context.Context, window time.Duration) (int64, error) {
	return p.expired, nil
}

func TestProcessMessageHandler(t *testing.T) {
	ctx := context.Background()
	processor := &stubProcessor{}
	handler := NewProcessMessageHandler(processor, nil)

	messageID := uuid.New()
	task, err := NewProcessMessageTask(ProcessMessagePayload{
		MessageID:      messageID,
		ConversationID: uuid.New(),
		Content:        "please book a room for friday",
		ContentType:    "text",
	})
	require.NoError(t, err)

	require.NoError(t, handler.Handle(ctx, task))
	require.Equal(t, []uuid.UUID{messageID}, processor.marked)
	require.Len(t, processor.replies, 1)
	require.Contains(t, processor.replies[0], "book a hotel")
}

func TestProcessMessageHandlerSkipsReplyOnRedelivery(t *testing.T) {
	ctx := context.Background()
	processor := &stubProcessor{alreadyProcessed: true}
	handler := NewProcessMessageHandler(processor, nil)

	task, err := NewProcessMessageTask(ProcessMessagePayload{
		MessageID:      uuid.New(),
		ConversationID: uuid.New(),
		Content:        "hello again",
	})
	require.NoError(t, err)

	require.NoError(t, handler.Handle(ctx, task))
	require.Empty(t, processor.replies, "a redelivered task must not duplicate the reply")
}

func TestProcessMessageHandlerRetriesFailedReply(t *testing.T) {
	ctx := context.Background()
	replyErr := errors.New("db down")
	handler := NewProcessMessageHandler(&stubProcessor{replyErr: replyErr}, nil)

	task, err := NewProcessMessageTask(ProcessMessagePayload{
		MessageID:      uuid.New(),
		ConversationID: uuid.New(),
		Content:        "hello",
	})
	require.NoError(t, err)

	err = handler.Handle(ctx, task)
	require.ErrorIs(t, err, replyErr)
	require.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestProcessMessageHandlerSkipsMalformedPayload(t *testing.T) {
	ctx := context.Background()
	processor := &stubProcessor{}
	handler := NewProcessMessageHandler(processor, nil)

	err := handler.Handle(ctx, asynq.NewTask(TaskTypeProcessMessage, []byte("not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	task, err := NewProcessMessageTask(ProcessMessagePayload{})
	require.NoError(t, err)
	err = handler.Handle(ctx, task)
	require.ErrorIs(t, err, asynq.SkipRetry)

	require.Empty(t, processor.marked)
}

func TestProcessMessageHandlerPropagatesErrorForRetry(t *testing.T) {
	ctx := context.Background()
	storeErr := errors.New("db down")
	handler := NewProcessMessageHandler(&stubProcessor{markErr: storeErr}, nil)

	task, err := NewProcessMessageTask(ProcessMessagePayload{MessageID: uuid.New()})
	require.NoError(t, err)

	err = handler.Handle(ctx, task)
	require.ErrorIs(t, err, storeErr)
	require.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestExpireConversationsHandler(t *testing.T) {
	ctx := context.Background()
	handler := NewExpireConversationsHandler(&stubProcessor{expired: 3}, 72*time.Hour, nil)

	require.NoError(t, handler.Handle(ctx, NewExpireConversationsTask()))
}
