package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/CalosDev/aquitado-ops/internal/ops"
	ws "github.com/CalosDev/aquitado-ops/internal/websocket"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(processor Processor, conversations ConversationReader, composer *ops.Composer, hub *ws.Hub, verifyToken string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// CORS for dashboard
	r.Use(corsMiddleware)

	// Handlers
	webhookHandler := NewWebhookHandler(processor, verifyToken, logger)
	conversationHandler := NewConversationHandler(conversations)
	dashHandler := NewDashboardHandler(composer, hub)

	// Provider webhook endpoints
	r.Get("/webhooks/whatsapp", webhookHandler.Verify)
	r.Post("/webhooks/whatsapp", webhookHandler.Receive)

	// WebSocket endpoint
	r.Get("/ws", hub.HandleWebSocket)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler())
		r.Get("/dashboard", dashHandler.Dashboard)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)
			r.Get("/{id}/messages", conversationHandler.Messages)
		})
	})

	return r
}

// corsMiddleware adds CORS headers for dashboard development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
