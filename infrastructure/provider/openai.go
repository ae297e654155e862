package provider

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Defaults for the OpenRouter-compatible chat endpoint.
const (
	DefaultBaseURL     = "https://openrouter.ai/api/v1"
	DefaultChatModel   = "mistralai/mistral-7b-instruct"
	DefaultTimeout     = 15 * time.Second
	DefaultTemperature = 0.8
)

// OpenAIProvider generates chat completions through an OpenAI-compatible API.
type OpenAIProvider struct {
	client    *openai.Client
	chatModel string
	retry     RetryPolicy
}

// OpenAIConfig holds configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	ChatModel string
	// Timeout bounds each attempt, not the whole retried call.
	Timeout time.Duration
	Retry   RetryPolicy
	// Referer and Title are sent as the OpenRouter attribution headers
	// HTTP-Referer and X-Title when set.
	Referer string
	Title   string
	// Transport is the base round tripper, http.DefaultTransport when nil.
	Transport http.RoundTripper
}

// NewOpenAIProviderFromConfig creates a provider from configuration.
func NewOpenAIProviderFromConfig(cfg OpenAIConfig) *OpenAIProvider {
	config := openai.DefaultConfig(cfg.APIKey)

	config.BaseURL = DefaultBaseURL
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var transport http.RoundTripper = NewEnvelopeTransport(cfg.Transport)
	transport = NewHeaderTransport(transport, map[string]string{
		"HTTP-Referer": cfg.Referer,
		"X-Title":      cfg.Title,
	})

	config.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}

	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = DefaultChatModel
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 && retry.InitialDelay == 0 && retry.Retryable == nil {
		retry = DefaultRetryPolicy()
	}
	if retry.Retryable == nil {
		retry.Retryable = IsRetryable
	}

	return &OpenAIProvider{
		client:    openai.NewClientWithConfig(config),
		chatModel: chatModel,
		retry:     retry,
	}
}

// Model returns the chat model name.
func (p *OpenAIProvider) Model() string { return p.chatModel }

// ChatCompletion generates a chat completion.
func (p *OpenAIProvider) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error) {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages()))
	for i, m := range req.Messages() {
		messages[i] = openai.ChatCompletionMessage{
			Role:    m.Role(),
			Content: m.Content(),
		}
	}

	openaiReq := openai.ChatCompletionRequest{
		Model:    p.chatModel,
		Messages: messages,
	}

	if req.MaxTokens() > 0 {
		openaiReq.MaxTokens = req.MaxTokens()
	}
	if req.Temperature() > 0 {
		openaiReq.Temperature = float32(req.Temperature())
	}

	var resp openai.ChatCompletionResponse
	err := p.retry.Do(ctx, func() error {
		var callErr error
		resp, callErr = p.client.CreateChatCompletion(ctx, openaiReq)
		return callErr
	})
	if err != nil {
		return ChatCompletionResponse{}, wrapError("chat_completion", err)
	}

	if len(resp.Choices) == 0 {
		return ChatCompletionResponse{}, NewProviderError("chat_completion", 0, "empty completion", ErrNoChoices)
	}

	usage := NewUsage(
		resp.Usage.PromptTokens,
		resp.Usage.CompletionTokens,
		resp.Usage.TotalTokens,
	)

	return NewChatCompletionResponse(
		resp.Choices[0].Message.Content,
		string(resp.Choices[0].FinishReason),
		usage,
	), nil
}

// IsRetryable reports whether err is a transient failure: a connection error,
// a timeout, HTTP 429 or a 5xx status. Explicit error payloads, other 4xx
// statuses and cancellation are terminal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == 0 {
			return true
		}
		return retryableStatus(reqErr.HTTPStatusCode)
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// wrapError wraps an OpenAI error into a ProviderError, keeping any
// ProviderError already present in the chain.
func wrapError(operation string, err error) error {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return NewProviderError(operation, apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewProviderError(operation, reqErr.HTTPStatusCode, "request failed", err)
	}

	return NewProviderError(operation, 0, "request failed", err)
}

var _ TextGenerator = (*OpenAIProvider)(nil)
