package conversations

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/esakrissa/modern-isoner/internal/policy"
	"github.com/esakrissa/modern-isoner/internal/shared"
)

type memoryConvRepo struct {
	conversations map[uuid.UUID]Conversation
	messages      map[uuid.UUID][]Message
	clock         time.Time

	// beforeAppend runs inside AppendMessage before the status check,
	// standing in for a concurrent writer that sneaks in between the
	// service's read and the append.
	beforeAppend func()
}

func newMemoryConvRepo() *memoryConvRepo {
	return &memoryConvRepo{
		conversations: make(map[uuid.UUID]Conversation),
		messages:      make(map[uuid.UUID][]Message),
		clock:         time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (r *memoryConvRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *memoryConvRepo) CreateConversation(ctx context.Context, userID uuid.UUID) (Conversation, error) {
	now := r.tick()
	conv := Conversation{ID: uuid.New(), UserID: userID, StartedAt: now, LastMessageAt: now, Status: StatusActive}
	r.conversations[conv.ID] = conv
	return conv, nil
}

func (r *memoryConvRepo) GetConversation(ctx context.Context, id uuid.UUID) (Conversation, error) {
	conv, ok := r.conversations[id]
	if !ok {
		return Conversation{}, shared.ErrNotFound
	}
	return conv, nil
}

func (r *memoryConvRepo) ListUserConversations(ctx context.Context, userID uuid.UUID) ([]Conversation, error) {
	var out []Conversation
	for _, conv := range r.conversations {
		if conv.UserID == userID {
			out = append(out, conv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out, nil
}

func (r *memoryConvRepo) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	msgs := append([]Message(nil), r.messages[conversationID]...)
	sort.Slice(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}

func (r *memoryConvRepo) AppendMessage(ctx context.Context, conversationID uuid.UUID, sender SenderType, content, contentType string, processed bool) (Message, error) {
	if r.beforeAppend != nil {
		r.beforeAppend()
	}
	conv, ok := r.conversations[conversationID]
	if !ok {
		return Message{}, shared.ErrNotFound
	}
	if sender == SenderUser && conv.Status != StatusActive {
		return Message{}, fmt.Errorf("%w: conversation is %s", shared.ErrValidation, conv.Status)
	}
	msg := Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderType:     sender,
		Content:        content,
		ContentType:    contentType,
		CreatedAt:      r.tick(),
		Processed:      processed,
	}
	r.messages[conversationID] = append(r.messages[conversationID], msg)
	conv.LastMessageAt = msg.CreatedAt
	r.conversations[conversationID] = conv
	return msg, nil
}

func (r *memoryConvRepo) MarkProcessed(ctx context.Context, messageID uuid.UUID) (bool, error) {
	for convID, msgs := range r.messages {
		for i, msg := range msgs {
			if msg.ID != messageID {
				continue
			}
			if msg.Processed {
				return false, nil
			}
			msgs[i].Processed = true
			r.messages[convID] = msgs
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryConvRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	conv, ok := r.conversations[id]
	if !ok {
		return shared.ErrNotFound
	}
	conv.Status = status
	r.conversations[id] = conv
	return nil
}

func (r *memoryConvRepo) ExpireIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for id, conv := range r.conversations {
		if conv.Status == StatusActive && conv.LastMessageAt.Before(cutoff) {
			conv.Status = StatusExpired
			r.conversations[id] = conv
			n++
		}
	}
	return n, nil
}

type fullAccessResolver struct{}

func (fullAccessResolver) HasPermission(ctx context.Context, userID uuid.UUID, permission string) (bool, error) {
	return true, nil
}

type recordingQueue struct {
	enqueued []uuid.UUID
	err      error
}

func (q *recordingQueue) EnqueueProcessMessage(ctx context.Context, messageID, conversationID uuid.UUID, content, contentType string) error {
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, messageID)
	return nil
}

func newTestService(repo Repository, queue Queue) *Service {
	return NewService(repo, policy.NewGuard(fullAccessResolver{}), queue, nil, nil)
}

func TestSendMessageStartsConversation(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryConvRepo()
	queue := &recordingQueue{}
	svc := newTestService(repo, queue)
	caller := uuid.New()

	res, err := svc.SendMessage(ctx, caller, uuid.Nil, "hello", "text")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, res.ConversationID)
	require.NotEqual(t, uuid.Nil, res.MessageID)

	conv, err := repo.GetConversation(ctx, res.ConversationID)
	require.NoError(t, err)
	require.Equal(t, caller, conv.UserID)
	require.Equal(t, StatusActive, conv.Status)

	msgs, err := repo.ListMessages(ctx, res.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, SenderUser, msgs[0].SenderType)
	require.False(t, msgs[0].Processed)
	require.Equal(t, []uuid.UUID{res.MessageID}, queue.enqueued)
}

func TestSendMessageBumpsLastMessageAt(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryConvRepo()
	svc := newTestService(repo, nil)
	caller := uuid.New()

	res, err := svc.SendMessage(ctx, caller, uuid.Nil, "first", "text")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, caller, res.ConversationID, "second", "text")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, caller, res.ConversationID, "third", "text")
	require.NoError(t, err)

	msgs, err := svc.ConversationMessages(ctx, caller, res.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, "first", msgs[0].Content)
	require.Equal(t, "second", msgs[1].Content)
	require.Equal(t, "third", msgs[2].Content)

	conv, err := repo.GetConversation(ctx, res.ConversationID)
	require.NoError(t, err)
	require.Equal(t, msgs[2].CreatedAt, conv.LastMessageAt)
}

func TestSendMessageRejectsForeignConversation(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryConvRepo()
	svc := newTestService(repo, nil)

	owner := uuid.New()
	res, err := svc.SendMessage(ctx, owner, uuid.Nil, "mine", "text")
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, uuid.New(), res.ConversationID, "intruding", "text")
	require.ErrorIs(t, err, shared.ErrPermissionDenied)

	msgs, err := repo.ListMessages(ctx, res.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 1, "denied send must not store a row")
}

func TestSendMessageRejectsClosedConversation(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryConvRepo()
	svc := newTestService(repo, nil)
	caller := uuid.New()

	res, err := svc.SendMessage(ctx, caller, uuid.Nil, "hello", "text")
	require.NoError(t, err)
	require.NoError(t, svc.CloseConversation(ctx, caller, res.ConversationID))

	_, err = svc.SendMessage(ctx, caller, res.ConversationID, "too late", "text")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSendMessageLosesRaceAgainstClose(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryConvRepo()
	svc := newTestService(repo, nil)
	caller := uuid.New()

	res, err := svc.SendMessage(ctx, caller, uuid.Nil, "hello", "text")
	require.NoError(t, err)

	// The thread closes after the service's status read but before the
	// append. The append must still refuse the row.
	repo.beforeAppend = func() {
		conv := repo.conversations[res.ConversationID]
		conv.Status = StatusClosed
		repo.conversations[res.ConversationID] = conv
	}

	_, err = svc.SendMessage(ctx, caller, res.ConversationID, "squeezed in", "text")
	require.ErrorIs(t, err, shared.ErrValidation)

	repo.beforeAppend = nil
	msgs, err := repo.ListMessages(ctx, res.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 1, "the racing send must not land in the closed thread")
}

func TestSendMessageValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemoryConvRepo(), nil)

	_, err := svc.SendMessage(ctx, uuid.New(), uuid.Nil, "   ", "text")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.SendMessage(ctx, uuid.Nil, uuid.Nil, "hello", "text")
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestSendMessageSurvivesEnqueueFailure(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryConvRepo()
	queue := &recordingQueue{err: errors.New("broker down")}
	svc := newTestService(repo, queue)
	caller := uuid.New()

	res, err := svc.SendMessage(ctx, caller, uuid.Nil, "hello", "text")
	require.NoError(t, err, "a failed hand-off must not fail the send")

	msgs, err := repo.ListMessages(ctx, res.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestUserConversationsOrderedByActivity(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryConvRepo()
	svc := newTestService(repo, nil)
	caller := uuid.New()

	first, err := svc.SendMessage(ctx, caller, uuid.Nil, "old thread", "text")
	require.NoError(t, err)
	second, err := svc.SendMessage(ctx, caller, uuid.Nil, "new thread", "text")
	require.NoError(t, err)

	// Fresh traffic moves the older thread back to the top.
	_, err = svc.SendMessage(ctx, caller, first.ConversationID, "follow-up", "text")
	require.NoError(t, err)

	convs, err := svc.UserConversations(ctx, caller, caller)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	require.Equal(t, first.ConversationID, convs[0].ID)
	require.Equal(t, second.ConversationID, convs[1].ID)
}

func TestUserConversationsDeniedForOthers(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemoryConvRepo(), nil)

	_, err := svc.UserConversations(ctx, uuid.New(), uuid.New())
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestConversationMessagesDeniedForNonOwner(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryConvRepo()
	svc := newTestService(repo, nil)

	owner := uuid.New()
	res, err := svc.SendMessage(ctx, owner, uuid.Nil, "secret", "text")
	require.NoError(t, err)

	_, err = svc.ConversationMessages(ctx, uuid.New(), res.ConversationID)
	require.ErrorIs(t, err, shared.ErrPermissionDenied)

	_, err = svc.ConversationMessages(ctx, owner, uuid.New())
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestInsertBotMessageBornProcessed(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryConvRepo()
	svc := newTestService(repo, nil)
	caller := uuid.New()

	res, err := svc.SendMessage(ctx, caller, uuid.Nil, "question", "text")
	require.NoError(t, err)

	botID, err := svc.InsertBotMessage(ctx, res.ConversationID, "answer", "text")
	require.NoError(t, err)

	msgs, err := repo.ListMessages(ctx, res.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, botID, msgs[1].ID)
	require.Equal(t, SenderBot, msgs[1].SenderType)
	require.True(t, msgs[1].Processed)
}

func TestMarkProcessedIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryConvRepo()
	svc := newTestService(repo, nil)
	caller := uuid.New()

	res, err := svc.SendMessage(ctx, caller, uuid.Nil, "hello", "text")
	require.NoError(t, err)

	changed, err := svc.MarkProcessed(ctx, res.MessageID)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = svc.MarkProcessed(ctx, res.MessageID)
	require.NoError(t, err, "redelivery must be harmless")
	require.False(t, changed, "redelivery must report the message as already consumed")

	msgs, err := repo.ListMessages(ctx, res.ConversationID)
	require.NoError(t, err)
	require.True(t, msgs[0].Processed)
}

func TestExpireIdleOnlyTouchesStaleActive(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryConvRepo()
	svc := newTestService(repo, nil)
	caller := uuid.New()

	// The cutoff is computed against the wall clock, so the fixture clock is
	// anchored to it here.
	repo.clock = time.Now().UTC().Add(-100 * time.Hour)
	stale, err := svc.SendMessage(ctx, caller, uuid.Nil, "idle", "text")
	require.NoError(t, err)
	closed, err := svc.SendMessage(ctx, caller, uuid.Nil, "done", "text")
	require.NoError(t, err)
	require.NoError(t, svc.CloseConversation(ctx, caller, closed.ConversationID))

	repo.clock = time.Now().UTC().Add(-time.Hour)
	fresh, err := svc.SendMessage(ctx, caller, uuid.Nil, "recent", "text")
	require.NoError(t, err)

	n, err := svc.ExpireIdle(ctx, 72*time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	conv, err := repo.GetConversation(ctx, stale.ConversationID)
	require.NoError(t, err)
	require.Equal(t, StatusExpired, conv.Status)

	conv, err = repo.GetConversation(ctx, closed.ConversationID)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, conv.Status)

	conv, err = repo.GetConversation(ctx, fresh.ConversationID)
	require.NoError(t, err)
	require.Equal(t, StatusActive, conv.Status)
}
