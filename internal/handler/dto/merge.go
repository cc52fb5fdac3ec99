// Package dto provides Data Transfer Objects for API requests and responses.
package dto

// InitiateMergeRequest represents the request body for starting a merge.
// Exactly one of the two target fields must be set.
type InitiateMergeRequest struct {
	TargetEmail      string `json:"target_email,omitempty"`
	TargetExternalID string `json:"target_external_id,omitempty"`
}

// VerifyMergeRequest represents the request body for the code check.
type VerifyMergeRequest struct {
	MergeToken string `json:"merge_token"`
	Code       string `json:"code"`
}

// CompleteMergeRequest represents the request body for executing the merge.
type CompleteMergeRequest struct {
	MergeToken string `json:"merge_token"`
}

// CancelMergeRequest represents the request body for abandoning a merge.
type CancelMergeRequest struct {
	MergeToken string `json:"merge_token"`
}

// MergePreview lists the external providers linked on each side of a
// pending merge. CurrentProviders is omitted on the initiate response,
// where only the target side is previewed.
type MergePreview struct {
	CurrentProviders []string `json:"current_providers"`
	TargetProviders  []string `json:"target_providers,omitempty"`
}

// InitiateMergeResponse is returned after a merge request is opened. The
// verification code is never part of it.
type InitiateMergeResponse struct {
	MergeToken  string       `json:"merge_token"`
	TargetEmail string       `json:"target_email"`
	Preview     MergePreview `json:"preview"`
}

// VerifyMergeResponse is returned after a successful code check.
type VerifyMergeResponse struct {
	Success bool         `json:"success"`
	Preview MergePreview `json:"preview"`
}

// CompleteMergeResponse is returned after the consolidation ran.
type CompleteMergeResponse struct {
	Success         bool     `json:"success"`
	MergedProviders []string `json:"merged_providers"`
}

// CancelMergeResponse is returned after a cancel, including no-op cancels.
type CancelMergeResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
