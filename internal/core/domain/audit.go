package domain

import "time"

// RetrievalAudit is the operational record of one retrieval request.
// It carries request metadata and per-category counts only, never the
// ranked codes themselves.
type RetrievalAudit struct {
	ID           string    `json:"id"`
	RequestID    string    `json:"request_id"`
	Query        string    `json:"query"`
	Specialty    string    `json:"specialty"`
	Region       string    `json:"region"`
	TotalMatches int       `json:"total_matches"`
	ICD10Count   int       `json:"icd10_count"`
	CPTCount     int       `json:"cpt_count"`
	HCPCSCount   int       `json:"hcpcs_count"`
	DurationMS   float64   `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}
