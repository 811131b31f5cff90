package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"brand-relay/internal/cors"
	"brand-relay/internal/domain"
	"brand-relay/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	usageTimeout      = 2 * time.Second
	kindOK            = "OK"
)

type Relayer interface {
	Relay(ctx context.Context, in usecase.RelayInput) (usecase.RelayOutput, error)
}

type UsageRecorder interface {
	RecordUsage(ctx context.Context, rec domain.UsageRecord) error
}

type chatResponse struct {
	Reply string `json:"reply"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler serves POST and OPTIONS for the chat endpoint behind an API
// Gateway proxy integration.
type Handler struct {
	relay Relayer
	cors  *cors.Policy
	usage UsageRecorder
	now   func() time.Time
}

type Option func(*Handler)

// WithUsageRecorder enables the usage ledger. Recording is best-effort.
func WithUsageRecorder(r UsageRecorder) Option {
	return func(h *Handler) {
		h.usage = r
	}
}

func NewHandler(relay Relayer, policy *cors.Policy, opts ...Option) (*Handler, error) {
	if relay == nil {
		return nil, errors.New("handler: relay must not be nil")
	}
	if policy == nil {
		return nil, errors.New("handler: cors policy must not be nil")
	}
	h := &Handler{relay: relay, cors: policy, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle never returns an error: every failure is rendered as a JSON
// envelope so API Gateway passes it through unchanged.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (resp events.APIGatewayProxyResponse, err error) {
	corrID := headerValue(event.Headers, correlationHeader)
	if corrID == "" {
		corrID = newUUID()
	}
	origin := headerValue(event.Headers, "Origin")
	log := slog.With("correlation_id", corrID, "method", event.HTTPMethod, "path", event.Path)

	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "panic recovered in handler", "panic", r, "stack", string(debug.Stack()))
			resp = h.jsonResponse(http.StatusInternalServerError, errorResponse{Error: (&usecase.Error{}).PublicMessage()}, origin, corrID)
			err = nil
		}
	}()

	switch strings.ToUpper(event.HTTPMethod) {
	case http.MethodOptions:
		return h.preflight(origin), nil
	case http.MethodPost:
		return h.chat(ctx, log, event, origin, corrID), nil
	default:
		out := h.jsonResponse(http.StatusMethodNotAllowed, errorResponse{Error: "Method Not Allowed"}, origin, corrID)
		out.Headers["Allow"] = cors.AllowMethods
		return out, nil
	}
}

func (h *Handler) preflight(origin string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusNoContent,
		Headers:    h.cors.Headers(origin),
	}
}

func (h *Handler) chat(ctx context.Context, log *slog.Logger, event events.APIGatewayProxyRequest, origin, corrID string) events.APIGatewayProxyResponse {
	start := h.now()
	rec := domain.UsageRecord{
		RequestID:     corrID,
		OriginAllowed: h.cors.Allows(origin),
	}

	out, err := h.relayEvent(ctx, log, event, &rec)

	var resp events.APIGatewayProxyResponse
	if err != nil {
		ue := usecase.AsError(err)
		log.ErrorContext(ctx, "chat relay failed", "kind", ue.Kind, "reason", ue.Reason, "err", ue.Err)
		rec.Kind = string(ue.Kind)
		resp = h.jsonResponse(http.StatusInternalServerError, errorResponse{Error: ue.PublicMessage()}, origin, corrID)
	} else {
		rec.Kind = kindOK
		resp = h.jsonResponse(http.StatusOK, chatResponse{Reply: out.Reply}, origin, corrID)
	}
	rec.Brand = string(out.Brand)
	rec.Status = resp.StatusCode
	rec.LatencyMs = h.now().Sub(start).Milliseconds()
	h.recordUsage(ctx, log, rec)
	return resp
}

// relayEvent turns a panic in the relay into an internal error so the
// request is still answered and recorded.
func (h *Handler) relayEvent(ctx context.Context, log *slog.Logger, event events.APIGatewayProxyRequest, rec *domain.UsageRecord) (out usecase.RelayOutput, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "panic recovered in relay", "panic", r, "stack", string(debug.Stack()))
			out = usecase.RelayOutput{}
			err = &usecase.Error{
				Kind:   usecase.ErrorInternal,
				Reason: "panic",
				Err:    fmt.Errorf("handler: relay panic: %v", r),
			}
		}
	}()

	body, err := decodeBody(event)
	if err != nil {
		return usecase.RelayOutput{}, err
	}
	in, err := usecase.ParseRequest(body)
	if err != nil {
		return usecase.RelayOutput{}, err
	}
	rec.Site = in.Site
	return h.relay.Relay(ctx, in)
}

func (h *Handler) recordUsage(ctx context.Context, log *slog.Logger, rec domain.UsageRecord) {
	if h.usage == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), usageTimeout)
	defer cancel()
	if err := h.usage.RecordUsage(ctx, rec); err != nil {
		log.WarnContext(ctx, "usage record failed", "err", err)
	}
}

func (h *Handler) jsonResponse(status int, payload any, origin, corrID string) events.APIGatewayProxyResponse {
	headers := h.cors.Headers(origin)
	headers["Content-Type"] = "application/json"
	headers[correlationHeader] = corrID

	body, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"Neural Link Failed: Unknown Error"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    headers,
		Body:       string(body),
	}
}

func decodeBody(event events.APIGatewayProxyRequest) (string, error) {
	if !event.IsBase64Encoded {
		return event.Body, nil
	}
	raw, err := base64.StdEncoding.DecodeString(event.Body)
	if err != nil {
		return "", &usecase.Error{
			Kind:   usecase.ErrorMalformedRequest,
			Reason: "invalid_base64_body",
			Detail: "Invalid JSON body",
			Err:    fmt.Errorf("handler: decode base64 body: %w", err),
		}
	}
	return string(raw), nil
}

// headerValue looks a header up case-insensitively; API Gateway forwards
// header names exactly as the client sent them.
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

var newUUID = func() string {
	return uuid.NewString()
}
