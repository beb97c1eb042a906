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
	anthropicDefaultEndpoint = "https://api.anthropic.com"
	anthropicVersion         = "2023-06-01"
)

// anthropicBackend calls the Anthropic Messages API.
type anthropicBackend struct{}

type anthropicRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	System      string        `json:"system,omitempty"`
	Messages    []ChatMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (b *anthropicBackend) generate(ctx context.Context, client *http.Client, req Request, apiKey string) (string, error) {
	endpoint := req.Binding.Endpoint
	if endpoint == "" {
		endpoint = anthropicDefaultEndpoint
	}

	body, err := json.Marshal(anthropicRequest{
		Model:       req.Binding.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		System:      req.SystemPrompt,
		Messages:    req.Messages,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(endpoint, "/")+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

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

	var parsed anthropicResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", core.WrapError(core.KindUpstreamMalformed, err, "%s returned invalid JSON", req.Binding)
	}
	for _, block := range parsed.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", core.NewError(core.KindUpstreamMalformed, "%s returned no text content", req.Binding)
}
