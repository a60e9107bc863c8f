package api

import (
	"net/http"
)

// HealthResponse represents the service liveness response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// HealthHandler returns the liveness check handler. Dependency health lives
// on the dashboard endpoint; this only reports that the process is serving.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, HealthResponse{
			Status:  "healthy",
			Version: "1.0.0",
		})
	}
}
