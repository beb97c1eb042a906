package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/haniff/arena/internal/core"
)

const (
	openaiDefaultEndpoint = "https://api.openai.com/v1"

	// maxResponseSize caps the provider response body read (10MB).
	maxResponseSize = 10 * 1024 * 1024
)

// openaiBackend calls the OpenAI Chat Completions API. It also serves
// unknown providers with an endpoint override, since the chat-completions
// shape is the de facto standard for OpenAI-compatible local servers.
type openaiBackend struct{}

type openaiRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Messages    []ChatMessage `json:"messages"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (b *openaiBackend) generate(ctx context.Context, client *http.Client, req Request, apiKey string) (string, error) {
	endpoint := req.Binding.Endpoint
	if endpoint == "" {
		endpoint = openaiDefaultEndpoint
	}

	messages := make([]ChatMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, req.Messages...)

	body, err := json.Marshal(openaiRequest{
		Model:       req.Binding.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Messages:    messages,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(endpoint, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", &apiError{
			provider: req.Binding.Provider,
			model:    req.Binding.Model,
			status:   resp.StatusCode,
			body:     strings.TrimSpace(string(raw)),
		}
	}

	var parsed openaiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", core.WrapError(core.KindUpstreamMalformed, err, "%s returned invalid JSON", req.Binding)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", core.NewError(core.KindUpstreamMalformed, "%s returned no completion", req.Binding)
	}
	return parsed.Choices[0].Message.Content, nil
}
