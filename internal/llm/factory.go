package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/chorale/internal/model"
)

// NewProvider creates a new LLM provider based on configuration.
// Ollama and other OpenAI-compatible servers are reached through the openai provider with a BaseURL.
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)

	case "":
		// No provider configured - commentary disabled
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai)", config.Provider)
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(modelConfig model.LLMConfig) Config {
	return Config{
		Provider:        modelConfig.Provider,
		Model:           modelConfig.Model,
		APIKey:          modelConfig.APIKey,
		BaseURL:         modelConfig.BaseURL,
		Timeout:         modelConfig.Timeout,
		StrictCitations: modelConfig.StrictCitations,
		MaxTokens:       modelConfig.MaxTokens,
		HTTPProxy:       modelConfig.HTTPProxy,
		HTTPSProxy:      modelConfig.HTTPSProxy,
		NoProxy:         modelConfig.NoProxy,
	}
}
