package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"brand-relay/internal/brand"
	"brand-relay/internal/cors"
	"brand-relay/internal/domain"
	"brand-relay/internal/integrations/openai"
	"brand-relay/internal/persona"
	"brand-relay/internal/usecase"
)

type stubLLM struct {
	reply string
	err   error
	calls int
	last  domain.CompletionRequest
}

func (s *stubLLM) Chat(_ context.Context, _ string, in domain.CompletionRequest) (string, error) {
	s.calls++
	s.last = in
	return s.reply, s.err
}

type panicRelay struct{}

func (panicRelay) Relay(context.Context, usecase.RelayInput) (usecase.RelayOutput, error) {
	panic("boom")
}

type fakeRecorder struct {
	records []domain.UsageRecord
	err     error
}

func (f *fakeRecorder) RecordUsage(_ context.Context, rec domain.UsageRecord) error {
	f.records = append(f.records, rec)
	return f.err
}

func testPolicy(t *testing.T) *cors.Policy {
	t.Helper()
	p, err := cors.NewPolicy(cors.DefaultOrigins(), cors.MatchStrict)
	require.NoError(t, err)
	return p
}

func newTestHandler(t *testing.T, llm *stubLLM, apiKey string, opts ...Option) *Handler {
	t.Helper()
	svc, err := usecase.NewRelayService(llm, brand.NewResolver(persona.Embedded()), apiKey, "")
	require.NoError(t, err)
	h, err := NewHandler(svc, testPolicy(t), opts...)
	require.NoError(t, err)
	return h
}

func makeEvent(method, body, origin string) events.APIGatewayProxyRequest {
	headers := map[string]string{"Content-Type": "application/json"}
	if origin != "" {
		headers["origin"] = origin
	}
	return events.APIGatewayProxyRequest{
		HTTPMethod: method,
		Path:       "/api/chat",
		Headers:    headers,
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func TestNewHandler_ValidatesDependencies(t *testing.T) {
	_, err := NewHandler(nil, testPolicy(t))
	require.Error(t, err)

	_, err = NewHandler(panicRelay{}, nil)
	require.Error(t, err)
}

func TestHandle_HappyPath_EchoesAllowedOrigin(t *testing.T) {
	llm := &stubLLM{reply: "stub-reply"}
	h := newTestHandler(t, llm, "sk-test")

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, `{"message":"hi","site":"renterrate.com"}`, "https://renterrate.com"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "stub-reply", parseBody[chatResponse](t, resp.Body).Reply)
	require.JSONEq(t, `{"reply":"stub-reply"}`, resp.Body)

	require.Equal(t, "application/json", resp.Headers["Content-Type"])
	require.Equal(t, "https://renterrate.com", resp.Headers["Access-Control-Allow-Origin"])
	require.Equal(t, "POST, OPTIONS", resp.Headers["Access-Control-Allow-Methods"])
	require.Equal(t, "Content-Type", resp.Headers["Access-Control-Allow-Headers"])
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])

	require.Equal(t, 1, llm.calls)
	require.Contains(t, llm.last.Messages[0].Content, "RenterRate")
	require.Contains(t, llm.last.Messages[0].Content, "Hostname: renterrate.com.")
}

func TestHandle_DefaultSite(t *testing.T) {
	llm := &stubLLM{reply: "ok"}
	h := newTestHandler(t, llm, "sk-test")

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, `{"message":"hi"}`, ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "https://txchya.com", resp.Headers["Access-Control-Allow-Origin"])
	require.Contains(t, llm.last.Messages[0].Content, "active on Txchyon. Hostname: Txchya.com.")
}

func TestHandle_UnknownOriginFallsBack(t *testing.T) {
	h := newTestHandler(t, &stubLLM{reply: "ok"}, "sk-test")

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, `{"message":"hi"}`, "https://txchya.com.evil.example"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "https://txchya.com", resp.Headers["Access-Control-Allow-Origin"])
}

func TestHandle_MissingCredential(t *testing.T) {
	llm := &stubLLM{reply: "never"}
	h := newTestHandler(t, llm, "")

	for _, body := range []string{`{"message":"hi","site":"everrank.app"}`, `{"message":"hello"}`} {
		resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, body, "https://everrank.app"))
		require.NoError(t, err)
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		require.Equal(t, "application/json", resp.Headers["Content-Type"])
		require.Contains(t, parseBody[errorResponse](t, resp.Body).Error, "Configuration Error")
	}
	require.Zero(t, llm.calls)
}

func TestHandle_MalformedBody(t *testing.T) {
	llm := &stubLLM{reply: "never"}
	h := newTestHandler(t, llm, "sk-test")

	for _, body := range []string{`not-json`, ``, `{"message":"   "}`, `{"site":"everrank.app"}`, `{"message":7}`} {
		resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, body, ""))
		require.NoError(t, err)
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode, body)
		out := parseBody[errorResponse](t, resp.Body)
		require.True(t, strings.HasPrefix(out.Error, "Neural Link Failed: "), out.Error)
	}
	require.Zero(t, llm.calls)
}

func TestHandle_Base64Body(t *testing.T) {
	h := newTestHandler(t, &stubLLM{reply: "decoded"}, "sk-test")

	event := makeEvent(http.MethodPost, base64.StdEncoding.EncodeToString([]byte(`{"message":"hi"}`)), "")
	event.IsBase64Encoded = true
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "decoded", parseBody[chatResponse](t, resp.Body).Reply)

	event.Body = "%%%"
	resp, err = h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "Neural Link Failed: Invalid JSON body", parseBody[errorResponse](t, resp.Body).Error)
}

func TestHandle_UpstreamError(t *testing.T) {
	llm := &stubLLM{err: &openai.HTTPStatusError{StatusCode: http.StatusTooManyRequests, Message: "Rate limit reached"}}
	h := newTestHandler(t, llm, "sk-test")

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, `{"message":"hi"}`, "https://everrank.app"))
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "Neural Link Failed: 429 Rate limit reached", parseBody[errorResponse](t, resp.Body).Error)
	require.Equal(t, "https://everrank.app", resp.Headers["Access-Control-Allow-Origin"])
	require.NotContains(t, resp.Body, "goroutine")
}

func TestHandle_Preflight(t *testing.T) {
	llm := &stubLLM{}
	h := newTestHandler(t, llm, "")

	for _, body := range []string{``, `not-json`, `{"message":"hi"}`} {
		resp, err := h.Handle(context.Background(), makeEvent(http.MethodOptions, body, "https://everrank.app"))
		require.NoError(t, err)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
		require.Empty(t, resp.Body)
		require.Equal(t, map[string]string{
			"Access-Control-Allow-Origin":  "https://everrank.app",
			"Access-Control-Allow-Methods": "POST, OPTIONS",
			"Access-Control-Allow-Headers": "Content-Type",
		}, resp.Headers)
	}
	require.Zero(t, llm.calls)
}

func TestHandle_MethodNotAllowed(t *testing.T) {
	h := newTestHandler(t, &stubLLM{}, "sk-test")

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodGet, "", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	require.Equal(t, "POST, OPTIONS", resp.Headers["Allow"])
	require.Equal(t, "Method Not Allowed", parseBody[errorResponse](t, resp.Body).Error)
}

func TestHandle_RecoversPanic(t *testing.T) {
	rec := &fakeRecorder{}
	h, err := NewHandler(panicRelay{}, testPolicy(t), WithUsageRecorder(rec))
	require.NoError(t, err)

	event := makeEvent(http.MethodPost, `{"message":"hi","site":"renterrate.com"}`, "https://renterrate.com")
	event.Headers["X-Correlation-Id"] = "req-panic"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "Neural Link Failed: Unknown Error", parseBody[errorResponse](t, resp.Body).Error)
	require.Equal(t, "https://renterrate.com", resp.Headers["Access-Control-Allow-Origin"])
	require.Equal(t, "req-panic", resp.Headers["X-Correlation-Id"])

	require.Len(t, rec.records, 1)
	require.Equal(t, "INTERNAL_ERROR", rec.records[0].Kind)
	require.Equal(t, 500, rec.records[0].Status)
	require.Equal(t, "renterrate.com", rec.records[0].Site)
	require.Equal(t, "req-panic", rec.records[0].RequestID)
}

func TestHandle_InvalidUpstreamResponse(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer upstream.Close()

	svc, err := usecase.NewRelayService(openai.NewClient(openai.WithBaseURL(upstream.URL)), brand.NewResolver(persona.Embedded()), "sk-test", "")
	require.NoError(t, err)
	rec := &fakeRecorder{}
	h, err := NewHandler(svc, testPolicy(t), WithUsageRecorder(rec))
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, `{"message":"hi"}`, ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "Neural Link Failed: Invalid response from upstream.", parseBody[errorResponse](t, resp.Body).Error)
	require.Len(t, rec.records, 1)
	require.Equal(t, "UPSTREAM_ERROR", rec.records[0].Kind)
	require.Equal(t, "Txchyon", rec.records[0].Brand)
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	h := newTestHandler(t, &stubLLM{reply: "ok"}, "sk-test")

	event := makeEvent(http.MethodPost, `{"message":"hi"}`, "")
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}

func TestHandle_RecordsUsage(t *testing.T) {
	rec := &fakeRecorder{}
	h := newTestHandler(t, &stubLLM{reply: "ok"}, "sk-test", WithUsageRecorder(rec))
	tick := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time {
		tick = tick.Add(150 * time.Millisecond)
		return tick
	}

	event := makeEvent(http.MethodPost, `{"message":"hi","site":"billing.everrank.app"}`, "https://billing.everrank.app")
	event.Headers["X-Correlation-Id"] = "req-1"
	_, err := h.Handle(context.Background(), event)
	require.NoError(t, err)

	_, err = h.Handle(context.Background(), makeEvent(http.MethodPost, `not-json`, "https://evil.example"))
	require.NoError(t, err)

	_, err = h.Handle(context.Background(), makeEvent(http.MethodOptions, "", ""))
	require.NoError(t, err)

	require.Len(t, rec.records, 2)
	require.Equal(t, domain.UsageRecord{
		RequestID:     "req-1",
		Brand:         "EverRank",
		Site:          "billing.everrank.app",
		Kind:          "OK",
		Status:        200,
		OriginAllowed: true,
		LatencyMs:     150,
	}, rec.records[0])
	require.Equal(t, "MALFORMED_REQUEST", rec.records[1].Kind)
	require.Equal(t, 500, rec.records[1].Status)
	require.False(t, rec.records[1].OriginAllowed)
	require.Empty(t, rec.records[1].Brand)
}

func TestHandle_UsageFailureDoesNotChangeResponse(t *testing.T) {
	h := newTestHandler(t, &stubLLM{reply: "ok"}, "sk-test", WithUsageRecorder(&fakeRecorder{err: errors.New("dynamodb down")}))

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, `{"message":"hi"}`, ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"reply":"ok"}`, resp.Body)
}

func TestServeHTTP_AdaptsRequest(t *testing.T) {
	llm := &stubLLM{reply: "over http"}
	h := newTestHandler(t, llm, "sk-test")

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hi","site":"nextscanner.com"}`))
	req.Header.Set("Origin", "http://localhost:4321")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"reply":"over http"}`, rr.Body.String())
	require.Equal(t, "http://localhost:4321", rr.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, llm.last.Messages[0].Content, "Next Scanner")

	req = httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Empty(t, rr.Body.String())
	require.Empty(t, rr.Header().Get("Content-Type"))
}
