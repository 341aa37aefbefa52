package conversations

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/esakrissa/modern-isoner/internal/platform/httpx"
	"github.com/esakrissa/modern-isoner/internal/shared"
)

// Handler exposes conversation and message endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers conversation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listConversations)
	r.Get("/{conversationID}/messages", h.listMessages)
	r.Post("/{conversationID}/close", h.closeConversation)
}

// MountMessageRoutes registers the message send endpoint.
func (h *Handler) MountMessageRoutes(r chi.Router) {
	r.Post("/send", h.sendMessage)
}

type conversationResponse struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	StartedAt     time.Time `json:"started_at"`
	LastMessageAt time.Time `json:"last_message_at"`
	Status        Status    `json:"status"`
}

type messageResponse struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	SenderType     SenderType `json:"sender_type"`
	Content        string     `json:"content"`
	ContentType    string     `json:"content_type"`
	CreatedAt      time.Time  `json:"created_at"`
	Processed      bool       `json:"processed"`
}

func (h *Handler) listConversations(w http.ResponseWriter, r *http.Request) {
	caller, _ := shared.CallerFromContext(r.Context())
	convs, err := h.service.UserConversations(r.Context(), caller, caller)
	if err != nil {
		httpx.RespondConcealed(w, err)
		return
	}
	out := make([]conversationResponse, 0, len(convs))
	for _, conv := range convs {
		out = append(out, conversationResponse{
			ID:            conv.ID,
			UserID:        conv.UserID,
			StartedAt:     conv.StartedAt,
			LastMessageAt: conv.LastMessageAt,
			Status:        conv.Status,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"conversations": out})
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	conversationID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid conversation id")
		return
	}
	caller, _ := shared.CallerFromContext(r.Context())
	msgs, err := h.service.ConversationMessages(r.Context(), caller, conversationID)
	if err != nil {
		httpx.RespondConcealed(w, err)
		return
	}
	out := make([]messageResponse, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, messageResponse{
			ID:             msg.ID,
			ConversationID: msg.ConversationID,
			SenderType:     msg.SenderType,
			Content:        msg.Content,
			ContentType:    msg.ContentType,
			CreatedAt:      msg.CreatedAt,
			Processed:      msg.Processed,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"messages": out})
}

func (h *Handler) closeConversation(w http.ResponseWriter, r *http.Request) {
	conversationID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid conversation id")
		return
	}
	caller, _ := shared.CallerFromContext(r.Context())
	if err := h.service.CloseConversation(r.Context(), caller, conversationID); err != nil {
		httpx.RespondConcealed(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

type sendMessageRequest struct {
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
	Content        string     `json:"content" validate:"required"`
	ContentType    string     `json:"content_type" validate:"omitempty,oneof=text image audio location"`
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	caller, _ := shared.CallerFromContext(r.Context())
	conversationID := uuid.Nil
	if req.ConversationID != nil {
		conversationID = *req.ConversationID
	}
	result, err := h.service.SendMessage(r.Context(), caller, conversationID, req.Content, req.ContentType)
	if err != nil {
		httpx.RespondConcealed(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{
		"message_id":      result.MessageID,
		"conversation_id": result.ConversationID,
		"status":          "sent",
	})
}
