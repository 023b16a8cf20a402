package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"chat-relay/internal/domain"
	"chat-relay/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// ChatRelay answers one raw chat request body.
type ChatRelay interface {
	Handle(ctx context.Context, body []byte) usecase.Result
}

// Handler exposes a ChatRelay over HTTP and API Gateway proxy events.
type Handler struct {
	relay  ChatRelay
	logger *slog.Logger
}

func NewHandler(relay ChatRelay, logger *slog.Logger) (*Handler, error) {
	if relay == nil {
		return nil, errors.New("handler: relay must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{relay: relay, logger: logger}, nil
}

// respond maps one chat request to a status code and JSON body. It never
// panics: anything unexpected becomes a 500 carrying the panic message.
func (h *Handler) respond(ctx context.Context, correlationID, method string, body []byte) (status int, payload []byte) {
	defer func() {
		if p := recover(); p != nil {
			msg := fmt.Sprint(p)
			h.logger.ErrorContext(ctx, "chat handler panicked", "correlation_id", correlationID, "panic", msg)
			status, payload = http.StatusInternalServerError, mustJSON(domain.ErrorResponse{Error: msg})
		}
	}()

	if method != http.MethodPost {
		return http.StatusMethodNotAllowed, mustJSON(domain.ErrorResponse{Error: "Method not allowed"})
	}

	res := h.relay.Handle(ctx, body)
	h.logger.InfoContext(ctx, "chat turn handled",
		"correlation_id", correlationID,
		"kind", res.Kind,
		"reason", res.Reason,
	)
	if !res.Delivered() {
		return http.StatusBadRequest, mustJSON(domain.ErrorResponse{Error: res.Text})
	}
	return http.StatusOK, mustJSON(domain.ChatResponse{Response: res.Text, Status: domain.StatusSuccess})
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("handler: encode response: %v", err))
	}
	return b
}

// correlationID returns the inbound id when present, otherwise a new one.
func correlationID(inbound string) string {
	if id := strings.TrimSpace(inbound); id != "" {
		return id
	}
	return newUUID()
}

var newUUID = func() string {
	return uuid.NewString()
}
