package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
)

const maxBodyBytes = 1 << 20

// ServeHTTP adapts a plain HTTP request to the proxy event shape so the dev
// server exercises exactly the code path Lambda runs.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	event, err := proxyRequest(r)
	if err != nil {
		slog.WarnContext(r.Context(), "read request body failed", "err", err)
		event.Body = ""
	}
	resp, _ := h.Handle(r.Context(), event)
	writeProxyResponse(w, resp)
}

func proxyRequest(r *http.Request) (events.APIGatewayProxyRequest, error) {
	headers := make(map[string]string, len(r.Header))
	for k, vs := range r.Header {
		if len(vs) > 0 {
			headers[k] = vs[0]
		}
	}
	query := make(map[string]string, len(r.URL.Query()))
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			query[k] = vs[0]
		}
	}
	event := events.APIGatewayProxyRequest{
		HTTPMethod:            r.Method,
		Path:                  r.URL.Path,
		Headers:               headers,
		QueryStringParameters: query,
	}
	if r.Body == nil {
		return event, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return event, err
	}
	event.Body = string(body)
	return event, nil
}

func writeProxyResponse(w http.ResponseWriter, resp events.APIGatewayProxyResponse) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		_, _ = io.WriteString(w, resp.Body)
	}
}
