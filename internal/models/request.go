package models

import "fmt"

// AddDocumentRequest is the input for ingesting a file into a tenant index.
type AddDocumentRequest struct {
	TenantID     string `json:"tenant_id"`
	FilePath     string `json:"file_path"`
	OriginalName string `json:"original_name"`
}

// Validate returns an error if a required field is missing.
func (r *AddDocumentRequest) Validate() error {
	if r.TenantID == "" || r.FilePath == "" || r.OriginalName == "" {
		return fmt.Errorf("missing required fields: tenant_id, file_path, original_name")
	}
	return nil
}

// QueryRequest is the input for a similarity query.
type QueryRequest struct {
	TenantID string `json:"tenant_id"`
	Query    string `json:"query"`
	K        int    `json:"k,omitempty"`
}

// Validate checks required fields and normalizes K against the given defaults.
func (r *QueryRequest) Validate(defaultK, maxK int) error {
	if r.TenantID == "" || r.Query == "" {
		return fmt.Errorf("missing required fields: tenant_id, query")
	}
	if r.K <= 0 {
		r.K = defaultK
	}
	if maxK > 0 && r.K > maxK {
		r.K = maxK
	}
	return nil
}

// RelevantDoc is one query result as returned over the API.
type RelevantDoc struct {
	DocumentName string  `json:"document_name"`
	Score        float64 `json:"score"`
	Content      string  `json:"content"`
}

// QueryResponse is the response for a query request.
type QueryResponse struct {
	RelevantDocs []RelevantDoc `json:"relevant_docs"`
	QueryTime    int64         `json:"query_time_ms"`
}

// Outcomes of an add-document request.
const (
	StatusAdded    = "added"
	StatusSkipped  = "skipped"
	StatusNotFound = "not_found"
)

// AddDocumentResponse reports the outcome of an add-document request.
// Status is StatusAdded, StatusSkipped (unsupported type or no usable text),
// or StatusNotFound (the file path does not point at a regular file).
type AddDocumentResponse struct {
	Message     string `json:"message"`
	Filename    string `json:"filename"`
	ChunksAdded int    `json:"chunks_added,omitempty"`
	Status      string `json:"status"`
}
