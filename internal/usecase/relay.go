package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"

	"brand-relay/internal/brand"
	"brand-relay/internal/domain"
	"brand-relay/internal/integrations/openai"
)

const (
	DefaultSite  = "Txchya.com"
	DefaultModel = "gpt-4o-mini"
	MaxTokens    = 500
)

type LLMClient interface {
	Chat(ctx context.Context, apiKey string, in domain.CompletionRequest) (string, error)
}

type BrandResolver interface {
	Resolve(site string) domain.BrandProfile
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type statusSummarizer interface {
	Summary() string
}

// chatRequest is the wire shape posted by the widget.
type chatRequest struct {
	Message *string `json:"message"`
	Site    *string `json:"site"`
}

type RelayInput struct {
	Message string
	Site    string
}

type RelayOutput struct {
	Reply string
	Brand domain.Brand
}

// RelayService holds only immutable configuration and is safe for
// concurrent use.
type RelayService struct {
	llm      LLMClient
	resolver BrandResolver
	apiKey   string
	model    string
}

// NewRelayService does not require apiKey: a missing credential is reported
// per request as a configuration error.
func NewRelayService(llm LLMClient, resolver BrandResolver, apiKey, model string) (*RelayService, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if resolver == nil {
		return nil, errors.New("usecase: brand resolver must not be nil")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	return &RelayService{
		llm:      llm,
		resolver: resolver,
		apiKey:   strings.TrimSpace(apiKey),
		model:    model,
	}, nil
}

// ParseRequest decodes a request body. An absent or null site becomes
// DefaultSite; a missing message is left empty for Relay to reject.
func ParseRequest(body string) (RelayInput, error) {
	var req chatRequest
	dec := json.NewDecoder(bytes.NewBufferString(strings.TrimSpace(body)))
	if err := dec.Decode(&req); err != nil {
		return RelayInput{}, newError(ErrorMalformedRequest, "invalid_json", "Invalid JSON body", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return RelayInput{}, newError(ErrorMalformedRequest, "trailing_data", "Invalid JSON body", err)
	}

	in := RelayInput{Site: DefaultSite}
	if req.Message != nil {
		in.Message = *req.Message
	}
	if req.Site != nil {
		in.Site = *req.Site
	}
	return in, nil
}

func (s *RelayService) Relay(ctx context.Context, in RelayInput) (RelayOutput, error) {
	if s.apiKey == "" {
		slog.ErrorContext(ctx, "upstream API key not configured")
		return RelayOutput{}, newError(ErrorConfiguration, "api_key_missing", "", nil)
	}
	if strings.TrimSpace(in.Message) == "" {
		return RelayOutput{}, newError(ErrorMalformedRequest, "empty_message", "message is required", nil)
	}

	profile := s.resolver.Resolve(in.Site)
	prompt := brand.Compose(profile, in.Site)

	slog.InfoContext(ctx, "relaying chat request", "brand", profile.Brand, "site", in.Site)

	reply, err := s.llm.Chat(ctx, s.apiKey, domain.CompletionRequest{
		Model:     s.model,
		MaxTokens: MaxTokens,
		Messages: []domain.ChatMessage{
			{Role: "system", Content: prompt},
			{Role: "user", Content: in.Message},
		},
	})
	if err != nil {
		return RelayOutput{Brand: profile.Brand}, upstreamError(err)
	}

	return RelayOutput{Reply: reply, Brand: profile.Brand}, nil
}

func upstreamError(err error) *Error {
	var summarizer statusSummarizer
	if errors.As(err, &summarizer) {
		reason := "upstream_status"
		if status, ok := upstreamStatusCode(err); ok && status == 429 {
			reason = "upstream_rate_limited"
		}
		return newError(ErrorUpstream, reason, summarizer.Summary(), err)
	}
	if errors.Is(err, openai.ErrInvalidResponse) {
		return newError(ErrorUpstream, "upstream_invalid_response", "Invalid response from upstream.", err)
	}
	var timeout interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &timeout) && timeout.Timeout()) {
		return newError(ErrorUpstream, "upstream_timeout", "Request timed out.", err)
	}
	return newError(ErrorUpstream, "upstream_error", "Connection error.", err)
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
