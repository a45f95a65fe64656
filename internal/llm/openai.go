package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/chorale/internal/logger"
	"github.com/ppiankov/chorale/internal/util"
	"github.com/sashabaranov/go-openai"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultMaxTokens = 800

	systemPrompt = "You write concise music-theory notes about chorale phrases and cadences, citing only the excerpt ids you are given."
)

// OpenAIProvider talks to the Chat Completions API of OpenAI or any compatible server
type OpenAIProvider struct {
	client *openai.Client
	config Config
}

// NewOpenAIProvider creates a provider; the HTTP client honors the configured proxies
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	cc := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		cc.BaseURL = config.BaseURL
	}
	cc.HTTPClient = &http.Client{Transport: &http.Transport{
		Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
	}}

	return &OpenAIProvider{client: openai.NewClientWithConfig(cc), config: config}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

// IsAvailable lists models as a cheap reachability and credentials probe
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	_, err := p.client.ListModels(ctx)
	if err != nil {
		logger.Warn("OpenAI API check failed: %v", err)
	}
	return err == nil
}

// Summarize asks the model for commentary and checks its citations.
// In strict mode a citation outside req.ExcerptIDs is an error; otherwise
// the offending ids are returned in the response.
func (p *OpenAIProvider) Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error) {
	chatReq := p.chatRequest(req)

	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no response from OpenAI")
	}

	out := &SummarizeResponse{
		Summary:    strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:      chatReq.Model,
		TokensUsed: resp.Usage.TotalTokens,
	}
	out.CitedIDs = extractExcerptIDs(out.Summary)
	out.LeakedIDs = outsideAllowlist(out.CitedIDs, req.ExcerptIDs)

	if p.config.StrictCitations && len(out.LeakedIDs) > 0 {
		return nil, &CitationLeakError{IDs: out.LeakedIDs}
	}
	return out, nil
}

// chatRequest fills request fields from the provider config, then from built-in defaults
func (p *OpenAIProvider) chatRequest(req SummarizeRequest) openai.ChatCompletionRequest {
	prompt := req.Prompt
	if prompt == "" {
		prompt = BuildPrompt(req.Set, req.ExcerptIDs)
	}

	return openai.ChatCompletionRequest{
		Model:     firstNonZero(req.Model, p.config.Model, openai.GPT4oMini),
		MaxTokens: firstNonZero(req.MaxTokens, p.config.MaxTokens, defaultMaxTokens),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.3,
	}
}

func (p *OpenAIProvider) timeout() time.Duration {
	if p.config.Timeout > 0 {
		return time.Duration(p.config.Timeout) * time.Second
	}
	return defaultTimeout
}

func firstNonZero[T comparable](vals ...T) T {
	var zero T
	for _, v := range vals {
		if v != zero {
			return v
		}
	}
	return zero
}
