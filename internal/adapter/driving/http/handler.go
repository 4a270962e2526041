// Package httphandler implements the JSON API driving adapter.
package httphandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	openaiadapter "github.com/ericfisherdev/chatrelay/internal/adapter/driven/openai"
	"github.com/ericfisherdev/chatrelay/internal/application"
)

// Error messages returned in the "error" field of JSON responses.
const (
	msgNoCredential     = "API key not configured"
	msgMissingInput     = "user_input is required"
	msgUpstreamFailed   = "upstream request failed"
	msgUpstreamTimedOut = "upstream request timed out"
)

// StatusClientClosedRequest is recorded when the caller disconnects before the
// upstream answers. Nothing reaches the client; the code only shows up in logs.
const StatusClientClosedRequest = 499

// Handler is the HTTP driving adapter that serves the JSON API.
type Handler struct {
	chatSvc   *application.ChatService
	statusSvc *application.StatusService
	logger    *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	chatSvc *application.ChatService,
	statusSvc *application.StatusService,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		chatSvc:   chatSvc,
		statusSvc: statusSvc,
		logger:    logger,
	}
}

// RegisterAPIRoutes registers the JSON API routes on the provided mux.
func RegisterAPIRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("GET /{$}", h.Home)
	mux.HandleFunc("GET /chat", h.Chat)
}

// NewServeMux creates an http.Handler with the API routes registered and
// wrapped with the standard middleware chain.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	RegisterAPIRoutes(mux, h)
	return ApplyMiddleware(mux, logger)
}

// Home is the liveness check. It always returns the fixed status payload.
func (h *Handler) Home(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: h.statusSvc.Current().Message})
}

// Chat forwards the user_input query parameter to the upstream model and
// relays its reply. A missing credential is reported in the body with a 200,
// matching the behaviour clients already depend on.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if !query.Has("user_input") {
		writeError(w, http.StatusUnprocessableEntity, msgMissingInput)
		return
	}
	input := query.Get("user_input")

	ex, err := h.chatSvc.Ask(r.Context(), input)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, ChatResponse{AIAnswer: ex.Answer})
	case errors.Is(err, application.ErrNoCredential):
		writeJSON(w, http.StatusOK, errorResponse{Error: msgNoCredential})
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("upstream timed out", "input_len", len(input), "error", err)
		writeError(w, http.StatusGatewayTimeout, msgUpstreamTimedOut)
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		h.logger.Debug("chat request cancelled by client")
		w.WriteHeader(StatusClientClosedRequest)
	default:
		h.logger.Error("upstream chat failed",
			"input_len", len(input),
			"upstream_status", openaiadapter.StatusCode(err),
			"error", err,
		)
		writeError(w, http.StatusBadGateway, msgUpstreamFailed)
	}
}
