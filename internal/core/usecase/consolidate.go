package usecase

import (
	"fmt"
	"sort"

	"github.com/doctorlittle/coderag/internal/core/domain"
)

// codeAccumulator merges candidates for one category across the whole
// passage list. Insert-if-absent keeps first-seen-wins semantics: the first
// passage (in collaborator order) that yields a code fixes its score,
// source, and description for good.
type codeAccumulator struct {
	order   []string
	entries map[string]domain.RankedCode
}

func newCodeAccumulator() *codeAccumulator {
	return &codeAccumulator{entries: make(map[string]domain.RankedCode)}
}

func (a *codeAccumulator) add(code domain.RankedCode) {
	if _, ok := a.entries[code.Code]; ok {
		return
	}
	a.entries[code.Code] = code
	a.order = append(a.order, code.Code)
}

func (a *codeAccumulator) len() int {
	return len(a.order)
}

// ranked sorts by score descending with a stable sort, so ties keep their
// first-seen order, then truncates to the category limit. Always non-nil.
func (a *codeAccumulator) ranked(limit int) []domain.RankedCode {
	out := make([]domain.RankedCode, 0, len(a.order))
	for _, code := range a.order {
		out = append(out, a.entries[code])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// consolidate runs extraction over every surviving passage and produces the
// per-category ranked lists.
func consolidate(passages []domain.Passage, terminology *domain.TerminologyTable) *domain.CodeReport {
	accs := make(map[domain.CodeCategory]*codeAccumulator, len(categorySpecs))
	for _, spec := range categorySpecs {
		accs[spec.category] = newCodeAccumulator()
	}

	for _, passage := range passages {
		for _, spec := range categorySpecs {
			for _, cand := range extractCategory(passage, spec) {
				accs[spec.category].add(domain.RankedCode{
					Code:        cand.code,
					Description: describe(terminology, spec.category, cand.code),
					Score:       passage.Score,
					Source:      cand.source,
				})
			}
		}
	}

	report := &domain.CodeReport{}
	extracted := 0
	for _, spec := range categorySpecs {
		extracted += accs[spec.category].len()
		ranked := accs[spec.category].ranked(spec.limit)
		switch spec.category {
		case domain.CategoryICD10:
			report.ICD10 = ranked
		case domain.CategoryCPT:
			report.CPT = ranked
		case domain.CategoryHCPCS:
			report.HCPCS = ranked
		}
	}
	report.Meta.ExtractedCodes = extracted
	return report
}

// describe resolves a human-readable description: the first positive term
// from the terminology table when present, a generic label otherwise.
func describe(terminology *domain.TerminologyTable, category domain.CodeCategory, code string) string {
	if entry, ok := terminology.Lookup(code); ok && len(entry.PositiveTerms) > 0 {
		return entry.PositiveTerms[0]
	}
	return fmt.Sprintf("%s code %s", category, code)
}
