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

const ollamaDefaultEndpoint = "http://localhost:11434"

// ollamaBackend calls a local Ollama server. No credentials required.
type ollamaBackend struct{}

type ollamaRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

func (b *ollamaBackend) generate(ctx context.Context, client *http.Client, req Request, _ string) (string, error) {
	endpoint := req.Binding.Endpoint
	if endpoint == "" {
		endpoint = ollamaDefaultEndpoint
	}

	messages := make([]ChatMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, req.Messages...)

	body, err := json.Marshal(ollamaRequest{
		Model:    req.Binding.Model,
		Messages: messages,
		Stream:   false,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(endpoint, "/")+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

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

	var parsed ollamaResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", core.WrapError(core.KindUpstreamMalformed, err, "%s returned invalid JSON", req.Binding)
	}
	if parsed.Message.Content == "" {
		return "", core.NewError(core.KindUpstreamMalformed, "%s returned empty message", req.Binding)
	}
	return parsed.Message.Content, nil
}
