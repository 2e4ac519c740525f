package handlers

import (
	"net/http"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Connectors int    `json:"connectors"`
}

// ConnectorCounter reports how many connectors are live.
type ConnectorCounter interface {
	Len() int
}

// HealthHandler handles health check requests
type HealthHandler struct {
	version    string
	connectors ConnectorCounter
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, connectors ConnectorCounter) *HealthHandler {
	return &HealthHandler{version: version, connectors: connectors}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: h.version,
	}
	if h.connectors != nil {
		resp.Connectors = h.connectors.Len()
	}
	writeJSON(w, http.StatusOK, resp)
}
