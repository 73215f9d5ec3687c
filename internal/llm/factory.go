package llm

import (
	"fmt"
	"strings"
	"time"

	"gitpilot/internal/domain"
	"gitpilot/internal/retry"
)

// Provider names accepted in AgentConfig.Provider.
const (
	ProviderGemini     = "gemini"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
)

// Providers lists every supported provider; the first is the default.
var Providers = []string{ProviderGemini, ProviderOpenAI, ProviderAnthropic, ProviderOpenRouter, ProviderOllama}

// SecretGetter returns a secret by name (e.g. "gemini_api_key"). Used to resolve API keys.
type SecretGetter func(name string) (string, error)

// SecretName is the secret holding the API key for provider.
func SecretName(provider string) string { return provider + "_api_key" }

// NeedsKey reports whether provider authenticates with an API key.
func NeedsKey(provider string) bool { return provider != ProviderOllama }

// NewModel returns a ChatModel for the given agent config, wrapped with retry
// logic when retryCfg asks for retries. An empty provider selects Gemini.
func NewModel(cfg *domain.AgentConfig, getSecret SecretGetter, retryCfg *domain.RetryConfig) (domain.ChatModel, error) {
	base, err := newBaseModel(cfg, getSecret)
	if err != nil {
		return nil, err
	}
	return wrapWithRetry(base, retryCfg), nil
}

// newBaseModel creates the raw model without retry wrapping.
func newBaseModel(cfg *domain.AgentConfig, getSecret SecretGetter) (domain.ChatModel, error) {
	provider, model := ProviderGemini, ""
	if cfg != nil {
		model = cfg.Model
		if cfg.Provider != "" {
			provider = strings.ToLower(cfg.Provider)
		}
	}
	switch provider {
	case ProviderGemini:
		return resolveKeyedModel(provider, getSecret, func(key string) domain.ChatModel {
			return NewGeminiModel(key, model)
		})
	case ProviderOpenAI:
		return resolveKeyedModel(provider, getSecret, func(key string) domain.ChatModel {
			return NewOpenAIModel(key, model)
		})
	case ProviderAnthropic:
		return resolveKeyedModel(provider, getSecret, func(key string) domain.ChatModel {
			return NewAnthropicModel(key, model)
		})
	case ProviderOpenRouter:
		return resolveKeyedModel(provider, getSecret, func(key string) domain.ChatModel {
			return NewOpenRouterModel(key, model)
		})
	case ProviderOllama:
		return NewOllamaModel(model, ""), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q (use: %s)", provider, strings.Join(Providers, ", "))
	}
}

// resolveKeyedModel fetches the provider's API key and builds the model with it.
func resolveKeyedModel(provider string, getSecret SecretGetter, makeModel func(key string) domain.ChatModel) (domain.ChatModel, error) {
	if getSecret == nil {
		return nil, fmt.Errorf("%s provider: no secret source configured", provider)
	}
	secretName := SecretName(provider)
	key, err := getSecret(secretName)
	if err != nil {
		return nil, err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%s provider: API key not set (export %s)", provider, strings.ToUpper(secretName))
	}
	return makeModel(key), nil
}

// NewFallbackModels creates models for each fallback config entry. Entries
// that cannot be built (unknown provider, missing key) are skipped and their
// errors returned alongside, so callers can log them.
func NewFallbackModels(fallbacks []domain.FallbackConfig, getSecret SecretGetter, retryCfg *domain.RetryConfig) ([]domain.ChatModel, []error) {
	var (
		models []domain.ChatModel
		errs   []error
	)
	for _, fb := range fallbacks {
		cfg := &domain.AgentConfig{Provider: fb.Provider, Model: fb.Model}
		m, err := NewModel(cfg, getSecret, retryCfg)
		if err != nil {
			errs = append(errs, fmt.Errorf("fallback %s: %w", fb.Provider, err))
			continue
		}
		models = append(models, m)
	}
	return models, errs
}

// wrapWithRetry decorates a model with retry logic when config is supplied.
func wrapWithRetry(model domain.ChatModel, rc *domain.RetryConfig) domain.ChatModel {
	if rc == nil || rc.MaxRetries <= 0 {
		return model
	}
	cfg := retry.Config{
		MaxRetries:     rc.MaxRetries,
		InitialBackoff: time.Duration(rc.InitialBackoff) * time.Millisecond,
		MaxBackoff:     time.Duration(rc.MaxBackoff) * time.Millisecond,
		Multiplier:     float64(rc.Multiplier),
	}
	if cfg.Validate() != nil {
		def := retry.DefaultConfig()
		def.MaxRetries = rc.MaxRetries
		cfg = def
	}
	return retry.NewRetryableModel(model, cfg)
}
