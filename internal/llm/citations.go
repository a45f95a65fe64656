package llm

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// citationPattern matches bracketed phrase and cadence excerpt ids
var citationPattern = regexp.MustCompile(`\[([^\[\]\s]+_(?:phrase\d+|cad\d+_m\d+-\d+))\]`)

// extractExcerptIDs returns the distinct excerpt ids cited in text, in order of appearance
func extractExcerptIDs(text string) []string {
	var ids []string
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		if !slices.Contains(ids, m[1]) {
			ids = append(ids, m[1])
		}
	}
	return ids
}

// outsideAllowlist returns the cited ids that are not in allowed
func outsideAllowlist(cited, allowed []string) []string {
	var leaked []string
	for _, id := range cited {
		if !slices.Contains(allowed, id) {
			leaked = append(leaked, id)
		}
	}
	return leaked
}

// CitationLeakError reports commentary that cites excerpts of another piece
type CitationLeakError struct {
	IDs []string
}

func (e *CitationLeakError) Error() string {
	return fmt.Sprintf("CITATION LEAK: LLM cited excerpt outside this piece: %s", strings.Join(e.IDs, ", "))
}
