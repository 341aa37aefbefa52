package jobs

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeProcessMessage marks a stored inbound message for processing.
	TaskTypeProcessMessage = "message:process"
	// TaskTypeExpireConversations sweeps idle conversations.
	TaskTypeExpireConversations = "conversation:expire"
)

// ProcessMessagePayload carries a stored message through the queue. The
// row is the source of truth; the payload repeats content so downstream
// consumers avoid a read.
type ProcessMessagePayload struct {
	MessageID      uuid.UUID `json:"message_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Content        string    `json:"content"`
	ContentType    string    `json:"content_type"`
}

// NewProcessMessageTask constructs an Asynq task.
func NewProcessMessageTask(payload ProcessMessagePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeProcessMessage, data), nil
}

// NewExpireConversationsTask constructs the idle-sweep task.
func NewExpireConversationsTask() *asynq.Task {
	return asynq.NewTask(TaskTypeExpireConversations, nil)
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueProcessMessage enqueues a message-processing task. Satisfies
// conversations.Queue.
func (c *Client) EnqueueProcessMessage(ctx context.Context, messageID, conversationID uuid.UUID, content, contentType string) error {
	task, err := NewProcessMessageTask(ProcessMessagePayload{
		MessageID:      messageID,
		ConversationID: conversationID,
		Content:        content,
		ContentType:    contentType,
	})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
