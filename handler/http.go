package handler

import (
	"io"
	"net/http"

	"chat-relay/internal/domain"
	"chat-relay/internal/usecase"
)

const maxBodyBytes = 1 << 20

// ServeHTTP handles /api/chat/.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := correlationID(r.Header.Get(correlationHeader))
	w.Header().Set(correlationHeader, id)

	var body []byte
	if r.Method == http.MethodPost {
		var err error
		body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			h.logger.WarnContext(r.Context(), "read chat body", "correlation_id", id, "err", err)
			writeJSON(w, http.StatusBadRequest, mustJSON(domain.ErrorResponse{Error: usecase.MsgInvalidJSON}))
			return
		}
	}

	status, payload := h.respond(r.Context(), id, r.Method, body)
	if status == http.StatusMethodNotAllowed {
		w.Header().Set("Allow", http.MethodPost)
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

// NewMux routes the chat endpoint, a health probe and, when metrics is
// non-nil, the metrics endpoint.
func NewMux(h *Handler, metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/api/chat/", h)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []byte(`{"status":"ok"}`))
	})
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	return mux
}
