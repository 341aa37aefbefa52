package conversations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/esakrissa/modern-isoner/internal/platform/db"
	"github.com/esakrissa/modern-isoner/internal/shared"
)

// Repository defines persistence operations for conversations and messages.
type Repository interface {
	CreateConversation(ctx context.Context, userID uuid.UUID) (Conversation, error)
	GetConversation(ctx context.Context, id uuid.UUID) (Conversation, error)
	ListUserConversations(ctx context.Context, userID uuid.UUID) ([]Conversation, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error)
	AppendMessage(ctx context.Context, conversationID uuid.UUID, sender SenderType, content, contentType string, processed bool) (Message, error)
	MarkProcessed(ctx context.Context, messageID uuid.UUID) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	ExpireIdle(ctx context.Context, cutoff time.Time) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// CreateConversation starts a new active conversation for the user.
func (r *PGRepository) CreateConversation(ctx context.Context, userID uuid.UUID) (Conversation, error) {
	var conv Conversation
	err := r.pool.QueryRow(ctx, `
		INSERT INTO conversations (id, user_id, started_at, last_message_at, status)
		VALUES (gen_random_uuid(), $1, NOW(), NOW(), $2)
		RETURNING id, user_id, started_at, last_message_at, status`, userID, StatusActive).
		Scan(&conv.ID, &conv.UserID, &conv.StartedAt, &conv.LastMessageAt, &conv.Status)
	if err != nil {
		return Conversation{}, err
	}
	return conv, nil
}

// GetConversation fetches a conversation by ID.
func (r *PGRepository) GetConversation(ctx context.Context, id uuid.UUID) (Conversation, error) {
	var conv Conversation
	err := r.pool.QueryRow(ctx, `SELECT id, user_id, started_at, last_message_at, status FROM conversations WHERE id = $1`, id).
		Scan(&conv.ID, &conv.UserID, &conv.StartedAt, &conv.LastMessageAt, &conv.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Conversation{}, shared.ErrNotFound
		}
		return Conversation{}, err
	}
	return conv, nil
}

// ListUserConversations returns the user's conversations, most recently
// active first.
func (r *PGRepository) ListUserConversations(ctx context.Context, userID uuid.UUID) ([]Conversation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, started_at, last_message_at, status
		FROM conversations
		WHERE user_id = $1
		ORDER BY last_message_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var convs []Conversation
	for rows.Next() {
		var conv Conversation
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.StartedAt, &conv.LastMessageAt, &conv.Status); err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

// ListMessages returns the conversation's messages in insertion order.
func (r *PGRepository) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, conversation_id, sender_type, content, content_type, created_at, processed
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderType, &msg.Content, &msg.ContentType, &msg.CreatedAt, &msg.Processed); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// AppendMessage inserts a message and advances the owning conversation's
// last_message_at to the new row's created_at as one atomic unit. The
// conversation row is locked first, so a concurrent reader never observes
// the message without the updated timestamp or vice versa. The lifecycle
// state is rechecked under the lock: a close racing a user send loses.
func (r *PGRepository) AppendMessage(ctx context.Context, conversationID uuid.UUID, sender SenderType, content, contentType string, processed bool) (Message, error) {
	var msg Message
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var status Status
		err := tx.QueryRow(ctx, `SELECT status FROM conversations WHERE id = $1 FOR UPDATE`, conversationID).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return err
		}
		if sender == SenderUser && status != StatusActive {
			return fmt.Errorf("%w: conversation is %s", shared.ErrValidation, status)
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO messages (id, conversation_id, sender_type, content, content_type, created_at, processed)
			VALUES (gen_random_uuid(), $1, $2, $3, $4, NOW(), $5)
			RETURNING id, conversation_id, sender_type, content, content_type, created_at, processed`,
			conversationID, sender, content, contentType, processed).
			Scan(&msg.ID, &msg.ConversationID, &msg.SenderType, &msg.Content, &msg.ContentType, &msg.CreatedAt, &msg.Processed)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE conversations SET last_message_at = $2 WHERE id = $1`, conversationID, msg.CreatedAt)
		return err
	})
	if err != nil {
		return Message{}, err
	}
	return msg, nil
}

// MarkProcessed flips the processed flag. The flag is set exactly once:
// an already-processed or unknown message changes nothing and returns
// false, which keeps retried deliveries harmless.
func (r *PGRepository) MarkProcessed(ctx context.Context, messageID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE messages SET processed = TRUE WHERE id = $1 AND processed = FALSE`, messageID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateStatus transitions the conversation lifecycle state.
func (r *PGRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE conversations SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ExpireIdle marks active conversations with no traffic since the cutoff
// as expired. Returns the number of rows transitioned.
func (r *PGRepository) ExpireIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE conversations SET status = $1
		WHERE status = $2 AND last_message_at < $3`, StatusExpired, StatusActive, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
