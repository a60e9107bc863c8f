package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/CalosDev/aquitado-ops/internal/domain"
)

// ConversationReader is the read-side view of the conversation store.
type ConversationReader interface {
	ListConversations(ctx context.Context, organizationID string, limit int) ([]domain.Conversation, error)
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)
	ListMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
}

type ConversationHandler struct {
	store ConversationReader
}

func NewConversationHandler(store ConversationReader) *ConversationHandler {
	return &ConversationHandler{store: store}
}

// List returns conversations, optionally filtered by organization_id.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	organizationID := r.URL.Query().Get("organization_id")
	limit := queryInt(r, "limit", 50)

	conversations, err := h.store.ListConversations(r.Context(), organizationID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"conversations": conversations,
		"count":         len(conversations),
	})
}

// Messages returns the messages of one conversation.
func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := queryInt(r, "limit", 50)

	conversation, err := h.store.GetConversation(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get conversation")
		return
	}
	if conversation == nil {
		respondError(w, http.StatusNotFound, "conversation not found")
		return
	}

	messages, err := h.store.ListMessages(r.Context(), id, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"conversation": conversation,
		"messages":     messages,
		"count":        len(messages),
	})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
