// Package gateway provides the uniform text-generation primitive over
// heterogeneous model providers. Retry and error normalization live here
// so that higher layers only ever see terminal success or a classified
// failure kind.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/haniff/arena/internal/catalog"
	"github.com/haniff/arena/internal/core"
)

const (
	// DefaultRequestTimeout bounds a single provider request. Expiry counts
	// as a transient failure subject to retry.
	DefaultRequestTimeout = 2 * time.Minute

	// maxAttempts is the total number of tries per Generate call.
	maxAttempts = 3

	// backoffBase is the delay before the first retry; it doubles per
	// attempt (1s, 2s).
	backoffBase = 1 * time.Second
)

// ChatMessage is one entry in the conversation handed to a model.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request carries everything needed for one generation call.
type Request struct {
	Binding      core.ModelBinding
	SystemPrompt string
	Messages     []ChatMessage
	Temperature  float64
	MaxTokens    int
}

// Gateway is the single interface the engine generates text through.
type Gateway interface {
	// Generate produces a single response string for the request, or a
	// classified error. It honors ctx cancellation promptly.
	Generate(ctx context.Context, req Request) (string, error)
}

// backend turns a request into one provider API call, no retries.
type backend interface {
	generate(ctx context.Context, client *http.Client, req Request, apiKey string) (string, error)
}

// HTTPGateway dispatches requests to provider backends over HTTPS (or a
// local endpoint) with retry and error normalization.
type HTTPGateway struct {
	client    *http.Client
	backoff   time.Duration
	lookupEnv func(string) string
}

// New creates a gateway with the default HTTP client.
func New() *HTTPGateway {
	return &HTTPGateway{
		client:    &http.Client{Timeout: DefaultRequestTimeout},
		backoff:   backoffBase,
		lookupEnv: os.Getenv,
	}
}

// Generate implements Gateway. On transient failures (connection errors,
// timeouts, HTTP 429, HTTP >= 500) it retries with exponential backoff;
// other failures surface immediately.
func (g *HTTPGateway) Generate(ctx context.Context, req Request) (string, error) {
	be, err := g.backendFor(req.Binding)
	if err != nil {
		return "", err
	}

	apiKey, err := g.resolveAPIKey(req.Binding)
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := g.backoff << (attempt - 1)
			slog.Info("Retrying provider call after backoff",
				"provider", req.Binding.Provider,
				"model", req.Binding.Model,
				"attempt", attempt+1,
				"max_attempts", maxAttempts,
				"backoff", backoff,
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", core.WrapError(core.KindCancelled, ctx.Err(), "generation cancelled for %s", req.Binding)
			}
		}

		text, err := be.generate(ctx, g.client, req, apiKey)
		if err == nil {
			if attempt > 0 {
				slog.Info("Provider call succeeded after retry",
					"provider", req.Binding.Provider,
					"attempt", attempt+1,
				)
			}
			return text, nil
		}

		if ctx.Err() != nil {
			return "", core.WrapError(core.KindCancelled, ctx.Err(), "generation cancelled for %s", req.Binding)
		}

		if !isRetriable(err) {
			slog.Debug("Provider error is not retriable, failing immediately",
				"provider", req.Binding.Provider,
				"error", err,
			)
			return "", g.normalize(err, req.Binding)
		}

		lastErr = err
		slog.Warn("Provider call failed, will retry",
			"provider", req.Binding.Provider,
			"model", req.Binding.Model,
			"attempt", attempt+1,
			"max_attempts", maxAttempts,
			"error", err,
		)
	}

	slog.Error("Provider call failed after all retries",
		"provider", req.Binding.Provider,
		"model", req.Binding.Model,
		"attempts", maxAttempts,
		"error", lastErr,
	)
	return "", core.WrapError(core.KindUpstreamUnavailable, lastErr,
		"%s unavailable after %d attempts", req.Binding, maxAttempts)
}

// backendFor selects a backend for the binding's provider tag. Unknown
// tags are allowed through the OpenAI-compatible backend when the binding
// carries an endpoint override (local pass-through).
func (g *HTTPGateway) backendFor(binding core.ModelBinding) (backend, error) {
	switch binding.Provider {
	case "anthropic":
		return &anthropicBackend{}, nil
	case "openai":
		return &openaiBackend{}, nil
	case "ollama":
		return &ollamaBackend{}, nil
	default:
		if binding.Endpoint != "" {
			return &openaiBackend{}, nil
		}
		return nil, core.NewError(core.KindInvalidConfig, "unknown provider %q with no endpoint override", binding.Provider)
	}
}

// resolveAPIKey reads the credential named by the binding, falling back to
// the catalog's env var for the provider. A missing key for a provider
// that requires one surfaces upstream_auth; bindings with no key
// reference at all are permitted (local case).
func (g *HTTPGateway) resolveAPIKey(binding core.ModelBinding) (string, error) {
	envVar := binding.APIKeyEnvVar
	if envVar == "" {
		if info := catalog.ProviderByID(binding.Provider); info != nil {
			envVar = info.APIKeyEnvVar
		}
	}
	if envVar == "" {
		return "", nil
	}

	key := g.lookupEnv(envVar)
	if key == "" {
		return "", core.NewError(core.KindUpstreamAuth,
			"credential %s for %s is not set", envVar, binding)
	}
	return key, nil
}

// normalize maps a backend error to a stable kind with provider/model
// context. Raw provider errors are wrapped, never surfaced verbatim.
func (g *HTTPGateway) normalize(err error, binding core.ModelBinding) error {
	if core.KindOf(err) != "" {
		return err
	}

	var apiErr *apiError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.status == http.StatusUnauthorized || apiErr.status == http.StatusForbidden:
			return core.WrapError(core.KindUpstreamAuth, err, "%s rejected credentials", binding)
		default:
			return core.WrapError(core.KindUpstreamMalformed, err, "%s rejected request", binding)
		}
	}
	return core.WrapError(core.KindUpstreamMalformed, err, "%s returned unusable response", binding)
}

// isRetriable reports whether an error is worth retrying: connection
// errors, timeouts, HTTP 429 and HTTP >= 500.
func isRetriable(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr.status == http.StatusTooManyRequests || apiErr.status >= 500
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true
		}
		var netErr net.Error
		if errors.As(urlErr, &netErr) {
			return true
		}
		var opErr *net.OpError
		return errors.As(urlErr, &opErr)
	}

	return false
}
