package provider

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// maxEnvelopeBytes bounds how much of a successful body is buffered for inspection.
const maxEnvelopeBytes = 8 << 20

// EnvelopeTransport is an http.RoundTripper that turns HTTP 2xx responses
// carrying a non-null top-level "error" field into a *ProviderError.
// Routing services such as OpenRouter report upstream failures this way,
// and the OpenAI client would otherwise decode them as an empty completion.
type EnvelopeTransport struct {
	inner http.RoundTripper
}

// NewEnvelopeTransport creates an EnvelopeTransport. If inner is nil,
// http.DefaultTransport is used.
func NewEnvelopeTransport(inner http.RoundTripper) *EnvelopeTransport {
	if inner == nil {
		inner = http.DefaultTransport
	}
	return &EnvelopeTransport{inner: inner}
}

type errorEnvelope struct {
	Error json.RawMessage `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Code    any    `json:"code"`
}

// RoundTrip implements http.RoundTripper.
func (t *EnvelopeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.inner.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxEnvelopeBytes))
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}

	if message, ok := envelopeError(body); ok {
		return nil, NewProviderError("chat_completion", 0, message, ErrUpstreamError)
	}

	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

// envelopeError extracts the message of a top-level error field.
func envelopeError(body []byte) (string, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return "", false
	}

	var env errorEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return "", false
	}

	raw := bytes.TrimSpace(env.Error)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("false")) {
		return "", false
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if text = strings.TrimSpace(text); text != "" {
			return text, true
		}
		return "provider error", true
	}

	var detail errorDetail
	if err := json.Unmarshal(raw, &detail); err == nil && strings.TrimSpace(detail.Message) != "" {
		return strings.TrimSpace(detail.Message), true
	}

	return "provider error", true
}

// HeaderTransport adds fixed headers to every outbound request.
type HeaderTransport struct {
	inner   http.RoundTripper
	headers http.Header
}

// NewHeaderTransport creates a HeaderTransport. Empty header values are skipped.
func NewHeaderTransport(inner http.RoundTripper, headers map[string]string) *HeaderTransport {
	if inner == nil {
		inner = http.DefaultTransport
	}
	h := http.Header{}
	for k, v := range headers {
		if v != "" {
			h.Set(k, v)
		}
	}
	return &HeaderTransport{inner: inner, headers: h}
}

// RoundTrip implements http.RoundTripper.
func (t *HeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) == 0 {
		return t.inner.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	for k, vs := range t.headers {
		for _, v := range vs {
			clone.Header.Set(k, v)
		}
	}
	return t.inner.RoundTrip(clone)
}
