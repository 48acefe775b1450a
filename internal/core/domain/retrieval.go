package domain

// Passage is one scored match returned by the vector search collaborator.
// Metadata is free-form and its keys are not guaranteed to be consistent
// across indexed sources.
type Passage struct {
	Text     string            `json:"text"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata"`
}

type CodeCategory string

const (
	CategoryICD10 CodeCategory = "ICD-10"
	CategoryCPT   CodeCategory = "CPT"
	CategoryHCPCS CodeCategory = "HCPCS"
)

// CodeSource records which extraction strategy produced a code.
type CodeSource string

const (
	SourceMetadata       CodeSource = "metadata"
	SourceTextExtraction CodeSource = "text_extraction"
)

type RankedCode struct {
	Code        string     `json:"code"`
	Description string     `json:"description"`
	Score       float64    `json:"score"`
	Source      CodeSource `json:"source"`
}

type RetrievalRequest struct {
	Query          string
	Specialty      string
	Region         string
	ExclusionTerms []string
	TopK           int

	// RequestID is set by the transport layer for audit correlation.
	RequestID string
}

type SearchFilter struct {
	Specialty string
}

type ReportMeta struct {
	Query          string `json:"query"`
	Specialty      string `json:"specialty"`
	Region         string `json:"region"`
	TotalMatches   int    `json:"total_results"`
	ExtractedCodes int    `json:"filtered_results"`
	Source         string `json:"source"`
}

// CodeReport is the consolidated, ranked output of one retrieval request.
// Category slices are always non-nil.
type CodeReport struct {
	ICD10 []RankedCode `json:"icd10"`
	CPT   []RankedCode `json:"cpt"`
	HCPCS []RankedCode `json:"hcpcs"`
	Meta  ReportMeta   `json:"metadata"`
}

type IndexStats struct {
	TotalVectors int `json:"total_vectors"`
	Dimension    int `json:"dimension"`
}
