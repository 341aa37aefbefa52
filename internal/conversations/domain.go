package conversations

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a conversation.
type Status string

const (
	StatusActive  Status = "active"
	StatusClosed  Status = "closed"
	StatusExpired Status = "expired"
)

// SenderType identifies which side of the conversation produced a message.
type SenderType string

const (
	SenderUser SenderType = "user"
	SenderBot  SenderType = "bot"
)

// Conversation is a message thread owned by exactly one user.
type Conversation struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	StartedAt     time.Time
	LastMessageAt time.Time
	Status        Status
}

// Message is an immutable entry in a conversation. Only the processed flag
// changes after insertion, and only once.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	SenderType     SenderType
	Content        string
	ContentType    string
	CreatedAt      time.Time
	Processed      bool
}
