package api

import (
	"net/http"

	"github.com/CalosDev/aquitado-ops/internal/ops"
	ws "github.com/CalosDev/aquitado-ops/internal/websocket"
)

type DashboardHandler struct {
	composer *ops.Composer
	hub      *ws.Hub
}

func NewDashboardHandler(composer *ops.Composer, hub *ws.Hub) *DashboardHandler {
	return &DashboardHandler{composer: composer, hub: hub}
}

// Dashboard returns the composed operational view plus live client count.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	type dashboardResponse struct {
		*ops.Dashboard
		WebSocketClients int `json:"websocket_clients"`
	}

	clients := 0
	if h.hub != nil {
		clients = h.hub.ClientCount()
	}

	respondJSON(w, http.StatusOK, dashboardResponse{
		Dashboard:        h.composer.Dashboard(r.Context()),
		WebSocketClients: clients,
	})
}
