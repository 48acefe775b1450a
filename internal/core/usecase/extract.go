package usecase

import (
	"regexp"
	"strings"

	"github.com/doctorlittle/coderag/internal/core/domain"
)

// categorySpec drives extraction for one code system: which metadata keys
// to probe (in priority order), the text fallback pattern, the validation
// rule, and the output cap.
type categorySpec struct {
	category     domain.CodeCategory
	metadataKeys []string
	textPattern  *regexp.Regexp
	valid        func(code string) bool
	limit        int
}

var (
	// ICD-10 chapter letters exclude U.
	icd10TextPattern = regexp.MustCompile(`\b[A-TV-Z][0-9]{2}(?:\.[0-9]{1,4})?\b`)
	icd10PrefixShape = regexp.MustCompile(`^[A-TV-Z][0-9]{2}`)
	cptTextPattern   = regexp.MustCompile(`\b[0-9]{5}\b`)
	cptShape         = regexp.MustCompile(`^[0-9]{5}$`)
)

// HCPCS has no text fallback: the codes are alphanumeric and too loose to
// pull out of prose without flooding the output with false positives.
var categorySpecs = []categorySpec{
	{
		category:     domain.CategoryICD10,
		metadataKeys: []string{"icd10_codes", "icd10", "icd_10", "icd-10"},
		textPattern:  icd10TextPattern,
		valid:        validICD10,
		limit:        20,
	},
	{
		category:     domain.CategoryCPT,
		metadataKeys: []string{"cpt_codes", "cpt", "procedure_codes"},
		textPattern:  cptTextPattern,
		valid:        validCPT,
		limit:        15,
	},
	{
		category:     domain.CategoryHCPCS,
		metadataKeys: []string{"hcpcs_codes", "hcpcs"},
		textPattern:  nil,
		valid:        validHCPCS,
		limit:        10,
	},
}

type candidate struct {
	code   string
	source domain.CodeSource
}

// extractCategory produces the validated, per-passage-deduplicated
// candidates for one passage and one category. Provenance is decided by
// which strategy supplied the raw tokens, before validation runs.
func extractCategory(passage domain.Passage, spec categorySpec) []candidate {
	tokens, source := rawTokens(passage, spec)
	if len(tokens) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(tokens))
	out := make([]candidate, 0, len(tokens))
	for _, token := range tokens {
		code := strings.TrimSpace(token)
		if !spec.valid(code) {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, candidate{code: code, source: source})
	}
	return out
}

// rawTokens applies the two-strategy policy: the first metadata key with a
// non-empty value wins; the text pattern runs only when no key matched.
func rawTokens(passage domain.Passage, spec categorySpec) ([]string, domain.CodeSource) {
	for _, key := range spec.metadataKeys {
		if value := passage.Metadata[key]; value != "" {
			return splitCodeList(value), domain.SourceMetadata
		}
	}
	if spec.textPattern == nil || passage.Text == "" {
		return nil, domain.SourceTextExtraction
	}
	return textCodes(spec.textPattern, passage.Text), domain.SourceTextExtraction
}

// textCodes runs the fallback pattern and drops matches that stop short of
// a longer token. RE2 has no lookahead, so a code fused to extra characters
// ("S72.342A", "F41.12345") can still satisfy the pattern with a bare
// prefix; a match followed by a ".<digit>" continuation is a fragment of a
// different code, not a code.
func textCodes(pattern *regexp.Regexp, text string) []string {
	locs := pattern.FindAllStringIndex(text, -1)
	out := make([]string, 0, len(locs))
	for _, loc := range locs {
		if continuesAsCode(text, loc[1]) {
			continue
		}
		out = append(out, text[loc[0]:loc[1]])
	}
	return out
}

func continuesAsCode(text string, end int) bool {
	return end+1 < len(text) && text[end] == '.' && text[end+1] >= '0' && text[end+1] <= '9'
}

func splitCodeList(value string) []string {
	return strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ';'
	})
}

func validICD10(code string) bool {
	return len(code) >= 3 && icd10PrefixShape.MatchString(code)
}

func validCPT(code string) bool {
	return cptShape.MatchString(code)
}

func validHCPCS(code string) bool {
	return code != ""
}
