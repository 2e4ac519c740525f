package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bimakw/dex-connector/internal/config"
	"github.com/bimakw/dex-connector/internal/domain/services"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
	})
}

// writeServiceError maps connector errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		priceErr *services.PriceError
		initErr  *services.InitializationError
		cfgErr   *services.ConfigurationError
	)

	switch {
	case errors.As(err, &priceErr):
		writeError(w, http.StatusNotFound, "no_route", err.Error())
	case errors.As(err, &initErr):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error:   "service_uninitialized",
			Message: initErr.Message,
			Code:    initErr.Code,
		})
	case errors.As(err, &cfgErr):
		writeError(w, http.StatusInternalServerError, "configuration_error", err.Error())
	case errors.Is(err, config.ErrUnknownNetwork):
		writeError(w, http.StatusNotFound, "unknown_network", err.Error())
	case errors.Is(err, services.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "invalid_amount", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", err.Error())
	default:
		writeError(w, http.StatusBadGateway, "upstream_error", err.Error())
	}
}
