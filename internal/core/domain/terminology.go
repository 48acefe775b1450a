package domain

// TerminologyEntry is one dictionary record keyed by billing code.
// Only the first positive term is consumed for display; negative terms are
// carried through from source exports but unused by the pipeline.
type TerminologyEntry struct {
	Code          string   `json:"code"`
	PositiveTerms []string `json:"positive_terms"`
	NegativeTerms []string `json:"negative_terms,omitempty"`
}

// TerminologyTable is an immutable code dictionary built once at startup
// and passed into the pipeline. A nil table behaves as an empty one.
type TerminologyTable struct {
	entries map[string]TerminologyEntry
}

func NewTerminologyTable(entries map[string]TerminologyEntry) *TerminologyTable {
	if entries == nil {
		entries = map[string]TerminologyEntry{}
	}
	return &TerminologyTable{entries: entries}
}

func (t *TerminologyTable) Lookup(code string) (TerminologyEntry, bool) {
	if t == nil {
		return TerminologyEntry{}, false
	}
	entry, ok := t.entries[code]
	return entry, ok
}

func (t *TerminologyTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}
