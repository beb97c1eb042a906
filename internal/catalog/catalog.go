// Package catalog enumerates the providers and models exposed to clients.
package catalog

// ModelInfo describes a single model offered by a provider.
type ModelInfo struct {
	ModelID         string `json:"model_id"`
	DisplayName     string `json:"display_name"`
	Description     string `json:"description"`
	ContextWindow   int    `json:"context_window"`
	MaxOutputTokens int    `json:"max_output_tokens"`
	Recommended     bool   `json:"recommended"`
	PricingTier     string `json:"pricing_tier"`
}

// ProviderInfo describes a provider and its models.
type ProviderInfo struct {
	ProviderID       string      `json:"provider_id"`
	DisplayName      string      `json:"display_name"`
	Description      string      `json:"description"`
	APIKeyEnvVar     string      `json:"api_key_env_var,omitempty"`
	DocumentationURL string      `json:"documentation_url"`
	Models           []ModelInfo `json:"models"`
}

var providers = []ProviderInfo{
	{
		ProviderID:       "anthropic",
		DisplayName:      "Anthropic",
		Description:      "Claude models by Anthropic",
		APIKeyEnvVar:     "ANTHROPIC_API_KEY",
		DocumentationURL: "https://docs.anthropic.com/",
		Models: []ModelInfo{
			{
				ModelID:         "claude-3-5-sonnet-20241022",
				DisplayName:     "Claude 3.5 Sonnet",
				Description:     "Most intelligent model, balanced performance and speed",
				ContextWindow:   200000,
				MaxOutputTokens: 8192,
				Recommended:     true,
				PricingTier:     "standard",
			},
			{
				ModelID:         "claude-3-opus-20240229",
				DisplayName:     "Claude 3 Opus",
				Description:     "Most powerful model for complex tasks",
				ContextWindow:   200000,
				MaxOutputTokens: 4096,
				PricingTier:     "premium",
			},
		},
	},
	{
		ProviderID:       "openai",
		DisplayName:      "OpenAI",
		Description:      "GPT models by OpenAI",
		APIKeyEnvVar:     "OPENAI_API_KEY",
		DocumentationURL: "https://platform.openai.com/docs/",
		Models: []ModelInfo{
			{
				ModelID:         "gpt-4o",
				DisplayName:     "GPT-4o",
				Description:     "Fastest and most affordable flagship model",
				ContextWindow:   128000,
				MaxOutputTokens: 16384,
				Recommended:     true,
				PricingTier:     "standard",
			},
			{
				ModelID:         "gpt-4-turbo",
				DisplayName:     "GPT-4 Turbo",
				Description:     "Previous generation, strong reasoning",
				ContextWindow:   128000,
				MaxOutputTokens: 4096,
				PricingTier:     "standard",
			},
		},
	},
	{
		ProviderID:       "ollama",
		DisplayName:      "Ollama",
		Description:      "Locally hosted open models via Ollama",
		DocumentationURL: "https://ollama.com/",
		Models: []ModelInfo{
			{
				ModelID:         "llama3.1",
				DisplayName:     "Llama 3.1",
				Description:     "Meta's open model running locally",
				ContextWindow:   128000,
				MaxOutputTokens: 4096,
				Recommended:     true,
				PricingTier:     "free",
			},
			{
				ModelID:         "mistral",
				DisplayName:     "Mistral 7B",
				Description:     "Compact open model running locally",
				ContextWindow:   32000,
				MaxOutputTokens: 4096,
				PricingTier:     "free",
			},
		},
	},
}

// Providers returns the static provider catalog.
func Providers() []ProviderInfo {
	out := make([]ProviderInfo, len(providers))
	copy(out, providers)
	return out
}

// ProviderByID returns a provider by its tag, or nil if unknown.
func ProviderByID(providerID string) *ProviderInfo {
	for i := range providers {
		if providers[i].ProviderID == providerID {
			return &providers[i]
		}
	}
	return nil
}

// IsKnown reports whether the provider tag appears in the catalog.
func IsKnown(providerID string) bool {
	return ProviderByID(providerID) != nil
}
