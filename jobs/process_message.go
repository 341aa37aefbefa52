package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/esakrissa/modern-isoner/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// MessageProcessor is the slice of the conversations service the worker
// needs. The full NLP hop lives outside this system; the worker records
// consumption and stores the built-in keyword-matched reply.
type MessageProcessor interface {
	MarkProcessed(ctx context.Context, messageID uuid.UUID) (bool, error)
	InsertBotMessage(ctx context.Context, conversationID uuid.UUID, content, contentType string) (uuid.UUID, error)
	ExpireIdle(ctx context.Context, window time.Duration) (int64, error)
}

// ProcessMessageHandler handles TaskTypeProcessMessage tasks.
type ProcessMessageHandler struct {
	processor MessageProcessor
	logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewProcessMessageHandler constructs the handler.
func NewProcessMessageHandler(processor MessageProcessor, logger *slog.Logger) *ProcessMessageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessMessageHandler{processor: processor, logger: logger}
}

func (h *ProcessMessageHandler) metrics() *jobmetrics.Metrics {
	if h.Metrics != nil {
		return h.Metrics
	}
	return defaultJobMetrics
}

// Handle consumes a queued message. Deliveries are at-least-once; the
// processed flag is the delivery gate, so a redelivery after the gate
// flips never issues a duplicate reply.
func (h *ProcessMessageHandler) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := h.metrics().Track(TaskTypeProcessMessage)
	var payload ProcessMessagePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(asynq.SkipRetry)
	}
	if payload.MessageID == uuid.Nil {
		return tracker.End(asynq.SkipRetry)
	}
	changed, err := h.processor.MarkProcessed(ctx, payload.MessageID)
	if err != nil {
		h.logger.Error("mark processed", slog.String("message_id", payload.MessageID.String()), slog.Any("error", err))
		return tracker.End(err)
	}
	if !changed {
		h.logger.Info("duplicate delivery, reply skipped", slog.String("message_id", payload.MessageID.String()))
		return tracker.End(nil)
	}
	if _, err := h.processor.InsertBotMessage(ctx, payload.ConversationID, composeReply(payload.Content), "text"); err != nil {
		h.logger.Error("insert bot reply", slog.String("conversation_id", payload.ConversationID.String()), slog.Any("error", err))
		return tracker.End(err)
	}
	h.logger.Info("message processed",
		slog.String("message_id", payload.MessageID.String()),
		slog.String("conversation_id", payload.ConversationID.String()))
	return tracker.End(nil)
}

// ExpireConversationsHandler handles TaskTypeExpireConversations tasks.
type ExpireConversationsHandler struct {
	processor MessageProcessor
	window    time.Duration
	logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewExpireConversationsHandler constructs the sweep handler.
func NewExpireConversationsHandler(processor MessageProcessor, window time.Duration, logger *slog.Logger) *ExpireConversationsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpireConversationsHandler{processor: processor, window: window, logger: logger}
}

func (h *ExpireConversationsHandler) metrics() *jobmetrics.Metrics {
	if h.Metrics != nil {
		return h.Metrics
	}
	return defaultJobMetrics
}

// Handle expires conversations idle past the configured window.
func (h *ExpireConversationsHandler) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := h.metrics().Track(TaskTypeExpireConversations)
	expired, err := h.processor.ExpireIdle(ctx, h.window)
	if err != nil {
		return tracker.End(err)
	}
	if expired > 0 {
		h.logger.Info("conversations expired", slog.Int64("count", expired))
	}
	return tracker.End(nil)
}
