package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chat-relay/internal/domain"
	"chat-relay/internal/integrations/gemini"
)

// Generator produces the model's reply for a fully built prompt.
type Generator interface {
	GenerateContent(ctx context.Context, apiKey, prompt string) (string, error)
}

// Observer receives one call per handled turn. Implementations must be safe
// for concurrent use.
type Observer interface {
	ObserveResult(r Result)
	ObserveUpstream(r Result, elapsed time.Duration)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// Relay forwards chat messages to the upstream model and folds every upstream
// failure into an assistant reply. It holds no mutable state and is safe for
// concurrent use.
type Relay struct {
	gen      Generator
	apiKey   string
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

type RelayOption func(*Relay)

func WithLogger(l *slog.Logger) RelayOption {
	return func(r *Relay) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithObserver(o Observer) RelayOption {
	return func(r *Relay) {
		r.observer = o
	}
}

// NewRelay builds a Relay. An empty apiKey is accepted: every turn then
// answers with MsgAPIKeyMissing without calling the generator.
func NewRelay(gen Generator, apiKey string, opts ...RelayOption) (*Relay, error) {
	if gen == nil {
		return nil, errors.New("usecase: generator must not be nil")
	}
	r := &Relay{
		gen:    gen,
		apiKey: strings.TrimSpace(apiKey),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Handle decodes a raw chat request body and answers it.
func (r *Relay) Handle(ctx context.Context, body []byte) Result {
	msg, res, ok := decodeMessage(body)
	if !ok {
		r.observe(res)
		return res
	}
	return r.Reply(ctx, msg)
}

// Reply answers one user message.
func (r *Relay) Reply(ctx context.Context, message string) Result {
	var res Result
	switch {
	case strings.TrimSpace(message) == "":
		res = clientError(ReasonEmptyMessage, MsgMessageRequired)
	case r.apiKey == "":
		res = upstreamError(ReasonAPIKeyMissing, MsgAPIKeyMissing)
	default:
		res = r.callUpstream(ctx, message)
	}
	r.observe(res)
	return res
}

func (r *Relay) callUpstream(ctx context.Context, message string) (res Result) {
	start := r.now()
	defer func() {
		if p := recover(); p != nil {
			r.logger.ErrorContext(ctx, "upstream call panicked", "panic", fmt.Sprint(p))
			res = upstreamError(ReasonUnexpected, MsgUnexpected)
		}
		if r.observer != nil {
			r.observer.ObserveUpstream(res, r.now().Sub(start))
		}
	}()

	text, err := r.gen.GenerateContent(ctx, r.apiKey, buildPrompt(message))
	if err != nil {
		res = classifyUpstreamError(err)
		r.logger.WarnContext(ctx, "upstream call failed",
			"reason", res.Reason,
			"upstream_status", res.UpstreamStatus,
			"err", err,
		)
		return res
	}
	return success(text)
}

func (r *Relay) observe(res Result) {
	if r.observer != nil {
		r.observer.ObserveResult(res)
	}
}

// classifyUpstreamError is the single mapping from upstream failures to the
// reply shown in place of the model's answer.
func classifyUpstreamError(err error) Result {
	var transportErr *gemini.TransportError
	switch {
	case errors.Is(err, gemini.ErrNoText):
		return upstreamError(ReasonNoText, MsgNoText)
	case errors.As(err, &transportErr):
		return upstreamError(ReasonUpstreamUnreachable, MsgUpstreamUnreachable)
	}
	if status, ok := upstreamStatusCode(err); ok {
		return upstreamStatusError(status)
	}
	return upstreamError(ReasonUnexpected, MsgUnexpected)
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

// decodeMessage extracts the message field. Syntax errors and bodies that are
// not an object with a string message are both reported as invalid JSON.
func decodeMessage(body []byte) (string, Result, bool) {
	var req domain.ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", clientError(ReasonInvalidJSON, MsgInvalidJSON), false
	}
	if strings.TrimSpace(req.Message) == "" {
		return "", clientError(ReasonEmptyMessage, MsgMessageRequired), false
	}
	return req.Message, Result{}, true
}
