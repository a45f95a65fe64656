package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/chorale/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Summarize writes commentary about one piece under the citation allowlist
	Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// SummarizeRequest contains the input for commentary generation
type SummarizeRequest struct {
	// Set is the derived excerpt set of the piece being discussed
	Set model.ExcerptSet

	// ExcerptIDs is the STRICT allowlist of ids the model may cite.
	// Only excerpts of the same piece are listed.
	ExcerptIDs []string

	// Prompt is an optional custom prompt (if empty, use default)
	Prompt string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// SummarizeResponse contains the generated commentary
type SummarizeResponse struct {
	Summary string

	// CitedIDs are the excerpt ids the model actually cited
	CitedIDs []string

	// LeakedIDs are cited ids outside the allowlist, only set in lenient mode
	LeakedIDs []string

	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai" or "" (disabled)
	Provider string

	Model string

	APIKey string

	// BaseURL for OpenAI-compatible endpoints (Ollama, vLLM, proxies)
	BaseURL string

	Timeout int // seconds

	// StrictCitations rejects output citing ids outside the allowlist
	StrictCitations bool

	MaxTokens int

	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// maxPromptExcerpts bounds the excerpt listing to keep prompts small
const maxPromptExcerpts = 40

// BuildPrompt constructs the default commentary prompt for a piece
func BuildPrompt(set model.ExcerptSet, excerptIDs []string) string {
	var b strings.Builder

	title := set.Title
	if title == "" {
		title = set.PieceID
	}

	fmt.Fprintf(&b, `You are writing short analytical notes about a four-part chorale. The phrase and cadence data below were derived mechanically; do not contradict them.

RULES:
1. Refer to excerpts ONLY by id in square brackets, and ONLY ids from this list:
%s

2. Do not name other pieces, editions or sources.
3. If the data does not support a statement, leave it out.

Piece: %s
Tonal center: %s
Pickup: %g beats
Phrases: %d
Cadences: %d

Excerpts:
`, joinIDs(excerptIDs), title, orNone(set.TonalCenter), set.PickupBeats,
		set.CountKind(model.ExcerptPhrase), set.CountKind(model.ExcerptCadence))

	for i, e := range set.Excerpts {
		if i >= maxPromptExcerpts {
			fmt.Fprintf(&b, "... and %d more excerpts\n", len(set.Excerpts)-maxPromptExcerpts)
			break
		}
		r := e.Record
		fmt.Fprintf(&b, "- [%s] %s %s", r.ID, r.Kind, measureSpan(r))
		if r.Cadence != nil {
			fmt.Fprintf(&b, ", cadence %s, soprano ends on %s", r.Cadence.Type, r.Cadence.FinalSopranoRole)
		}
		if r.FinalSoprano.Name != "" {
			fmt.Fprintf(&b, ", final soprano %s", r.FinalSoprano.Name)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nWrite 3-5 sentences on how the phrases close and how the cadences are distributed.")
	return b.String()
}

func joinIDs(ids []string) string {
	if len(ids) == 0 {
		return "(no excerpts available)"
	}
	var b strings.Builder
	for _, id := range ids {
		b.WriteString("\n- ")
		b.WriteString(id)
	}
	return b.String()
}

func measureSpan(r model.ExcerptRecord) string {
	if r.StartMeasure == r.EndMeasure {
		return fmt.Sprintf("m.%d", r.StartMeasure)
	}
	return fmt.Sprintf("mm.%d-%d", r.StartMeasure, r.EndMeasure)
}

func orNone(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
