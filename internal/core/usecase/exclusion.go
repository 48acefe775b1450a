package usecase

import (
	"strings"

	"github.com/doctorlittle/coderag/internal/core/domain"
)

// filterExcluded drops every passage whose text contains any exclusion term
// as a case-insensitive substring. An excluded passage is fully suppressed:
// none of its codes reach consolidation. An empty term set is the identity.
func filterExcluded(passages []domain.Passage, terms []string) []domain.Passage {
	if len(terms) == 0 {
		return passages
	}

	lowered := make([]string, len(terms))
	for i, term := range terms {
		lowered[i] = strings.ToLower(term)
	}

	out := make([]domain.Passage, 0, len(passages))
	for _, passage := range passages {
		if containsAnyTerm(passage.Text, lowered) {
			continue
		}
		out = append(out, passage)
	}
	return out
}

func containsAnyTerm(text string, loweredTerms []string) bool {
	if text == "" {
		return false
	}
	lowered := strings.ToLower(text)
	for _, term := range loweredTerms {
		if strings.Contains(lowered, term) {
			return true
		}
	}
	return false
}
