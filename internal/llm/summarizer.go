package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/chorale/internal/model"
)

// Summarizer produces optional commentary for an excerpt set.
// Commentary is advisory: it never alters records, and failures degrade to warnings.
type Summarizer struct {
	provider Provider
	config   Config
}

// NewSummarizer builds a summarizer; an empty provider yields a disabled summarizer
func NewSummarizer(config Config) (*Summarizer, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}
	return &Summarizer{provider: provider, config: config}, nil
}

// IsEnabled reports whether a provider is configured
func (s *Summarizer) IsEnabled() bool {
	return s != nil && s.provider != nil
}

// ProviderName returns the configured provider name, or "" when disabled
func (s *Summarizer) ProviderName() string {
	if !s.IsEnabled() {
		return ""
	}
	return s.provider.Name()
}

// GenerateSummary writes commentary for one piece.
// It returns nil when disabled and never fails the run because of the provider.
func (s *Summarizer) GenerateSummary(ctx context.Context, set model.ExcerptSet) (*model.Commentary, error) {
	if !s.IsEnabled() {
		return nil, nil
	}

	commentary := &model.Commentary{
		Enabled:         true,
		Provider:        s.provider.Name(),
		Model:           s.config.Model,
		StrictCitations: s.config.StrictCitations,
	}

	if !s.provider.IsAvailable(ctx) {
		commentary.Enabled = false
		commentary.Warnings = append(commentary.Warnings,
			fmt.Sprintf("LLM provider %s is not available; commentary skipped", s.provider.Name()))
		return commentary, nil
	}

	ids := make([]string, 0, len(set.Excerpts))
	for _, e := range set.Excerpts {
		ids = append(ids, e.Record.ID)
	}

	resp, err := s.provider.Summarize(ctx, SummarizeRequest{
		Set:        set,
		ExcerptIDs: ids,
		Model:      s.config.Model,
		MaxTokens:  s.config.MaxTokens,
	})
	if err != nil {
		commentary.Warnings = append(commentary.Warnings, fmt.Sprintf("Commentary generation failed: %v", err))
		return commentary, nil
	}

	commentary.SummaryMD = resp.Summary
	if resp.Model != "" {
		commentary.Model = resp.Model
	}
	if resp.TokensUsed > 0 {
		commentary.Warnings = append(commentary.Warnings, fmt.Sprintf("Tokens used: %d", resp.TokensUsed))
	}
	if len(resp.LeakedIDs) > 0 {
		commentary.Warnings = append(commentary.Warnings,
			fmt.Sprintf("Commentary cites excerpts outside this piece: %s", strings.Join(resp.LeakedIDs, ", ")))
	}
	if s.config.StrictCitations {
		commentary.Warnings = append(commentary.Warnings,
			fmt.Sprintf("Verified %d citations against %d excerpt ids", len(resp.CitedIDs), len(ids)))
	}

	return commentary, nil
}

// RenderSeparateMarkdown renders commentary as a standalone markdown document
func RenderSeparateMarkdown(c *model.Commentary) string {
	if c == nil || !c.Enabled {
		return ""
	}

	var b strings.Builder
	b.WriteString("# Commentary\n\n")
	b.WriteString("> **GENERATED CONTENT.** Phrase boundaries, cadence types and signatures were determined independently of this text.\n\n")
	fmt.Fprintf(&b, "- **Provider**: %s\n", c.Provider)
	if c.Model != "" {
		fmt.Fprintf(&b, "- **Model**: %s\n", c.Model)
	}
	fmt.Fprintf(&b, "- **Strict Citations**: %t\n\n", c.StrictCitations)

	if c.SummaryMD == "" {
		b.WriteString("_No commentary generated._\n")
	} else {
		b.WriteString(c.SummaryMD)
		b.WriteString("\n")
	}

	if len(c.Warnings) > 0 {
		b.WriteString("\n## Notes\n\n")
		for _, w := range c.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	return b.String()
}
