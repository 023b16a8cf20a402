package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-relay/internal/integrations/gemini"
)

type mockGenerator struct {
	text      string
	err       error
	panicWith any
	callCount int
	apiKey    string
	prompt    string
}

func (m *mockGenerator) GenerateContent(_ context.Context, apiKey, prompt string) (string, error) {
	m.callCount++
	m.apiKey = apiKey
	m.prompt = prompt
	if m.panicWith != nil {
		panic(m.panicWith)
	}
	return m.text, m.err
}

type recordingObserver struct {
	mu       sync.Mutex
	results  []Result
	upstream []Result
}

func (o *recordingObserver) ObserveResult(r Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, r)
}

func (o *recordingObserver) ObserveUpstream(r Result, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.upstream = append(o.upstream, r)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRelay(t *testing.T, gen Generator, apiKey string, opts ...RelayOption) *Relay {
	t.Helper()
	opts = append([]RelayOption{WithLogger(quietLogger())}, opts...)
	r, err := NewRelay(gen, apiKey, opts...)
	require.NoError(t, err)
	return r
}

func TestNewRelay_ValidatesGenerator(t *testing.T) {
	_, err := NewRelay(nil, "key")
	require.Error(t, err)
	require.Contains(t, err.Error(), "generator")
}

func TestHandle_ClientErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		reason Reason
		text   string
	}{
		{name: "truncated json", body: `{`, reason: ReasonInvalidJSON, text: "Invalid JSON"},
		{name: "empty body", body: ``, reason: ReasonInvalidJSON, text: "Invalid JSON"},
		{name: "trailing data", body: `{"message":"hi"} {}`, reason: ReasonInvalidJSON, text: "Invalid JSON"},
		{name: "non-string message", body: `{"message":42}`, reason: ReasonInvalidJSON, text: "Invalid JSON"},
		{name: "array body", body: `["hi"]`, reason: ReasonInvalidJSON, text: "Invalid JSON"},
		{name: "empty object", body: `{}`, reason: ReasonEmptyMessage, text: "Message is required"},
		{name: "empty message", body: `{"message":""}`, reason: ReasonEmptyMessage, text: "Message is required"},
		{name: "blank message", body: `{"message":"  \n"}`, reason: ReasonEmptyMessage, text: "Message is required"},
		{name: "null message", body: `{"message":null}`, reason: ReasonEmptyMessage, text: "Message is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gen := &mockGenerator{text: "unused"}
			r := newTestRelay(t, gen, "key")

			res := r.Handle(context.Background(), []byte(tc.body))
			require.Equal(t, KindClientError, res.Kind)
			require.Equal(t, tc.reason, res.Reason)
			require.Equal(t, tc.text, res.Text)
			require.False(t, res.Delivered())
			require.Zero(t, gen.callCount, "client errors must never reach upstream")
		})
	}
}

func TestHandle_MissingAPIKey(t *testing.T) {
	for _, key := range []string{"", "   "} {
		gen := &mockGenerator{text: "unused"}
		r := newTestRelay(t, gen, key)

		res := r.Handle(context.Background(), []byte(`{"message":"hi"}`))
		require.Equal(t, KindUpstreamError, res.Kind)
		require.Equal(t, ReasonAPIKeyMissing, res.Reason)
		require.Equal(t, "API key not configured. Please add your Gemini API key to the .env file.", res.Text)
		require.True(t, res.Delivered())
		require.Zero(t, gen.callCount)
	}
}

func TestHandle_HappyPath(t *testing.T) {
	gen := &mockGenerator{text: "Hello!"}
	r := newTestRelay(t, gen, " key-1 ")

	res := r.Handle(context.Background(), []byte(`{"message":"hi there"}`))
	require.Equal(t, Result{Kind: KindSuccess, Reason: ReasonOK, Text: "Hello!"}, res)
	require.Equal(t, 1, gen.callCount)
	require.Equal(t, "key-1", gen.apiKey)
	require.Equal(t, buildPrompt("hi there"), gen.prompt)
}

func TestBuildPrompt(t *testing.T) {
	got := buildPrompt("What is Go?")
	require.True(t, strings.HasPrefix(got, "You are a friendly and reliable AI personal assistant."))
	require.True(t, strings.HasSuffix(got, "would. User: What is Go?\n\nAssistant:"))
}

func TestReply_MapsUpstreamErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		reason Reason
		text   string
		status int
	}{
		{name: "no text", err: fmt.Errorf("%w: no candidates", gemini.ErrNoText), reason: ReasonNoText, text: "Sorry, I couldn't generate a response. Please try again."},
		{name: "status 503", err: &gemini.StatusError{StatusCode: 503}, reason: ReasonUpstreamStatus, text: "Sorry, I encountered an error. Please try again later. (Status: 503)", status: 503},
		{name: "status 429 wrapped", err: fmt.Errorf("outer: %w", &gemini.StatusError{StatusCode: 429}), reason: ReasonUpstreamStatus, text: "Sorry, I encountered an error. Please try again later. (Status: 429)", status: 429},
		{name: "transport", err: &gemini.TransportError{Err: context.DeadlineExceeded}, reason: ReasonUpstreamUnreachable, text: "Sorry, I'm having trouble connecting to the AI service. Please try again later."},
		{name: "unexpected", err: errors.New("gemini: decode response: boom"), reason: ReasonUnexpected, text: "Sorry, something went wrong. Please try again."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			obs := &recordingObserver{}
			r := newTestRelay(t, &mockGenerator{err: tc.err}, "key", WithObserver(obs))

			res := r.Reply(context.Background(), "hi")
			require.Equal(t, KindUpstreamError, res.Kind)
			require.Equal(t, tc.reason, res.Reason)
			require.Equal(t, tc.text, res.Text)
			require.Equal(t, tc.status, res.UpstreamStatus)
			require.True(t, res.Delivered())

			require.Equal(t, []Result{res}, obs.results)
			require.Equal(t, []Result{res}, obs.upstream)
		})
	}
}

func TestReply_RecoversGeneratorPanic(t *testing.T) {
	gen := &mockGenerator{panicWith: "nil map write"}
	r := newTestRelay(t, gen, "key")

	res := r.Reply(context.Background(), "hi")
	require.Equal(t, KindUpstreamError, res.Kind)
	require.Equal(t, ReasonUnexpected, res.Reason)
	require.Equal(t, MsgUnexpected, res.Text)
}

func TestReply_ObserverSkipsUpstreamForLocalOutcomes(t *testing.T) {
	obs := &recordingObserver{}
	r := newTestRelay(t, &mockGenerator{}, "", WithObserver(obs))

	r.Handle(context.Background(), []byte(`{`))
	r.Handle(context.Background(), []byte(`{"message":"hi"}`))

	require.Len(t, obs.results, 2)
	require.Equal(t, ReasonInvalidJSON, obs.results[0].Reason)
	require.Equal(t, ReasonAPIKeyMissing, obs.results[1].Reason)
	require.Empty(t, obs.upstream)
}

// ---------------------------------------------------------------------------
// Relay over the real Gemini client against a mock upstream
// ---------------------------------------------------------------------------

func newGeminiRelay(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Relay {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := gemini.NewClient(gemini.WithBaseURL(srv.URL), gemini.WithTimeout(timeout))
	require.NoError(t, err)
	return newTestRelay(t, client, "sk-test")
}

func TestRelayWithGemini_Replies(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "success", status: 200, body: `{"candidates":[{"content":{"parts":[{"text":"Hello!"}]}}]}`, want: "Hello!"},
		{name: "empty candidates", status: 200, body: `{"candidates":[]}`, want: "Sorry, I couldn't generate a response. Please try again."},
		{name: "service unavailable", status: 503, body: `{}`, want: "Sorry, I encountered an error. Please try again later. (Status: 503)"},
		{name: "garbage body", status: 200, body: `<html>`, want: "Sorry, something went wrong. Please try again."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newGeminiRelay(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}, 2*time.Second)

			res := r.Handle(context.Background(), []byte(`{"message":"hi"}`))
			require.True(t, res.Delivered())
			require.Equal(t, tc.want, res.Text)
		})
	}
}

func TestRelayWithGemini_Timeout(t *testing.T) {
	r := newGeminiRelay(t, func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(200)
	}, 50*time.Millisecond)

	res := r.Handle(context.Background(), []byte(`{"message":"hi"}`))
	require.Equal(t, ReasonUpstreamUnreachable, res.Reason)
	require.Equal(t, "Sorry, I'm having trouble connecting to the AI service. Please try again later.", res.Text)
}

func TestRelayWithGemini_SendsFixedConfigForEveryMessage(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
	)
	r := newGeminiRelay(t, func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		mu.Unlock()
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}, 2*time.Second)

	for _, msg := range []string{"hi", `quote " and \ slash`, strings.Repeat("long ", 500)} {
		res := r.Reply(context.Background(), msg)
		require.Equal(t, KindSuccess, res.Kind)
	}

	require.Len(t, bodies, 3)
	for _, b := range bodies {
		require.Contains(t, b, `"generationConfig":{"temperature":0.7,"topK":40,"topP":0.95,"maxOutputTokens":500,"stopSequences":[]}`)
		require.Contains(t, b, `"safetySettings":[{"category":"HARM_CATEGORY_HARASSMENT","threshold":"BLOCK_MEDIUM_AND_ABOVE"},{"category":"HARM_CATEGORY_HATE_SPEECH","threshold":"BLOCK_MEDIUM_AND_ABOVE"},{"category":"HARM_CATEGORY_SEXUALLY_EXPLICIT","threshold":"BLOCK_MEDIUM_AND_ABOVE"},{"category":"HARM_CATEGORY_DANGEROUS_CONTENT","threshold":"BLOCK_MEDIUM_AND_ABOVE"}]`)
	}
}
