package usecase

import "fmt"

// Kind is the coarse classification of a chat turn.
type Kind string

const (
	// KindSuccess carries the model's reply.
	KindSuccess Kind = "success"
	// KindUpstreamError carries an apologetic reply that stands in for the
	// model's answer. It is still delivered as a successful chat turn.
	KindUpstreamError Kind = "upstream_error"
	// KindClientError rejects the request before anything is sent upstream.
	KindClientError Kind = "client_error"
)

// Reason refines Kind for logs and metrics.
type Reason string

const (
	ReasonOK                  Reason = "ok"
	ReasonInvalidJSON         Reason = "invalid_json"
	ReasonEmptyMessage        Reason = "empty_message"
	ReasonAPIKeyMissing       Reason = "api_key_missing"
	ReasonNoText              Reason = "no_text"
	ReasonUpstreamStatus      Reason = "upstream_status"
	ReasonUpstreamUnreachable Reason = "upstream_unreachable"
	ReasonUnexpected          Reason = "unexpected"
)

// Client-facing texts. The upstream ones are shown to the user as the
// assistant's reply.
const (
	MsgInvalidJSON         = "Invalid JSON"
	MsgMessageRequired     = "Message is required"
	MsgAPIKeyMissing       = "API key not configured. Please add your Gemini API key to the .env file."
	MsgNoText              = "Sorry, I couldn't generate a response. Please try again."
	msgUpstreamStatus      = "Sorry, I encountered an error. Please try again later. (Status: %d)"
	MsgUpstreamUnreachable = "Sorry, I'm having trouble connecting to the AI service. Please try again later."
	MsgUnexpected          = "Sorry, something went wrong. Please try again."
)

// Result is the outcome of one chat turn. For KindSuccess and
// KindUpstreamError, Text is the assistant reply; for KindClientError it is the
// error message returned to the caller.
type Result struct {
	Kind   Kind
	Reason Reason
	Text   string
	// UpstreamStatus is set for ReasonUpstreamStatus.
	UpstreamStatus int
}

func success(text string) Result {
	return Result{Kind: KindSuccess, Reason: ReasonOK, Text: text}
}

func clientError(reason Reason, msg string) Result {
	return Result{Kind: KindClientError, Reason: reason, Text: msg}
}

func upstreamError(reason Reason, msg string) Result {
	return Result{Kind: KindUpstreamError, Reason: reason, Text: msg}
}

func upstreamStatusError(status int) Result {
	r := upstreamError(ReasonUpstreamStatus, fmt.Sprintf(msgUpstreamStatus, status))
	r.UpstreamStatus = status
	return r
}

// Delivered reports whether the result is returned to the caller as a chat
// reply rather than as an error.
func (r Result) Delivered() bool {
	return r.Kind != KindClientError
}
