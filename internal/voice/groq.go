package voice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/ent0n29/voicecall/internal/faults"
)

const (
	ProviderGroq = "groq"

	DefaultGroqBaseURL = "https://api.groq.com/openai/v1"
)

type GroqConfig struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// GroqClient implements ChatCompleter against Groq's OpenAI-compatible API.
type GroqClient struct {
	client *openai.Client
}

func NewGroqClient(cfg GroqConfig) *GroqClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = DefaultGroqBaseURL
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		oc.BaseURL = strings.TrimRight(base, "/")
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	return &GroqClient{client: openai.NewClientWithConfig(oc)}
}

func (c *GroqClient) Complete(ctx context.Context, model string, messages []ChatMessage) ([]string, error) {
	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, faults.Upstream(ProviderGroq, openAIStatus(err), fmt.Errorf("chat completion: %w", err))
	}

	out := make([]string, 0, len(resp.Choices))
	for _, choice := range resp.Choices {
		out = append(out, choice.Message.Content)
	}
	return out, nil
}

func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
