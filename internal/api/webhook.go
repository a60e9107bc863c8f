package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/CalosDev/aquitado-ops/internal/whatsapp"
)

// maxWebhookBody caps inbound webhook payloads at 1 MiB.
const maxWebhookBody = 1 << 20

// Processor consumes one raw webhook delivery.
type Processor interface {
	Process(ctx context.Context, raw []byte, source string) (int, error)
}

type WebhookHandler struct {
	processor   Processor
	verifyToken string
	logger      *slog.Logger
}

func NewWebhookHandler(processor Processor, verifyToken string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{processor: processor, verifyToken: verifyToken, logger: logger}
}

// Verify answers the provider's subscription handshake by echoing the
// challenge when the verify token matches.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	echo, ok := whatsapp.VerifyChallenge(
		q.Get("hub.mode"),
		q.Get("hub.verify_token"),
		q.Get("hub.challenge"),
		h.verifyToken,
	)
	if !ok {
		h.logger.Warn("webhook verification rejected", "mode", q.Get("hub.mode"))
		respondError(w, http.StatusForbidden, "verification failed")
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(echo))
}

// Receive ingests one webhook delivery. A processing failure returns 500 so
// the provider redelivers; already-seen messages inside the retry are skipped
// by the processor's dedup.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) == 0 {
		respondError(w, http.StatusBadRequest, "empty request body")
		return
	}

	processed, err := h.processor.Process(r.Context(), body, "whatsapp")
	if err != nil {
		h.logger.Error("webhook processing failed", "error", err)
		respondError(w, http.StatusInternalServerError, "processing failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int{"messages_processed": processed})
}
