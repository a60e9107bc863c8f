package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/CalosDev/aquitado-ops/internal/domain"
)

type fakeConversationReader struct {
	conversations []domain.Conversation
	conversation  *domain.Conversation
	messages      []domain.Message
	gotOrgID      string
	gotLimit      int
}

func (f *fakeConversationReader) ListConversations(ctx context.Context, organizationID string, limit int) ([]domain.Conversation, error) {
	f.gotOrgID = organizationID
	f.gotLimit = limit
	return f.conversations, nil
}

func (f *fakeConversationReader) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	return f.conversation, nil
}

func (f *fakeConversationReader) ListMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	return f.messages, nil
}

func TestConversationList(t *testing.T) {
	reader := &fakeConversationReader{
		conversations: []domain.Conversation{
			{ID: "conv-1", OrganizationID: "org-1", CustomerPhone: "18095551234"},
		},
	}
	h := NewConversationHandler(reader)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations?organization_id=org-1&limit=10", nil)
	rec := httptest.NewRecorder()

	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
	if reader.gotOrgID != "org-1" || reader.gotLimit != 10 {
		t.Errorf("filter not forwarded: org %q limit %d", reader.gotOrgID, reader.gotLimit)
	}

	var resp struct {
		Conversations []domain.Conversation `json:"conversations"`
		Count         int                   `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Count != 1 || len(resp.Conversations) != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestConversationListDefaultLimit(t *testing.T) {
	reader := &fakeConversationReader{}
	h := NewConversationHandler(reader)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations?limit=bogus", nil)
	rec := httptest.NewRecorder()

	h.List(rec, req)

	if reader.gotLimit != 50 {
		t.Errorf("expected default limit 50, got %d", reader.gotLimit)
	}
}

func TestConversationMessages(t *testing.T) {
	reader := &fakeConversationReader{
		conversation: &domain.Conversation{ID: "conv-1", OrganizationID: "org-1"},
		messages: []domain.Message{
			{ID: "msg-1", ConversationID: "conv-1", Direction: domain.DirectionInbound},
			{ID: "msg-2", ConversationID: "conv-1", Direction: domain.DirectionOutbound},
		},
	}

	r := chi.NewRouter()
	r.Get("/api/v1/conversations/{id}/messages", NewConversationHandler(reader).Messages)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/conv-1/messages", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Messages []domain.Message `json:"messages"`
		Count    int              `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Count != 2 {
		t.Errorf("count: got %d, want 2", resp.Count)
	}
}

func TestConversationMessagesNotFound(t *testing.T) {
	reader := &fakeConversationReader{conversation: nil}

	r := chi.NewRouter()
	r.Get("/api/v1/conversations/{id}/messages", NewConversationHandler(reader).Messages)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/missing/messages", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusNotFound)
	}
}
