package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/corates/corates/internal/auth"
	"github.com/corates/corates/internal/handler/dto"
	"github.com/corates/corates/internal/identity"
	"github.com/corates/corates/internal/merge"
)

// mergeService is the subset of the merge workflow the handler uses.
type mergeService interface {
	Initiate(ctx context.Context, callerID string, input merge.InitiateInput) (*merge.InitiateResult, error)
	Verify(ctx context.Context, callerID, token, code string) (*merge.VerifyResult, error)
	Complete(ctx context.Context, callerID, token string) (*merge.CompleteResult, error)
	Cancel(ctx context.Context, callerID, token string) error
}

// MergeHandler handles HTTP requests for the account merge workflow.
type MergeHandler struct {
	svc    mergeService
	logger *slog.Logger
}

// NewMergeHandler creates a new MergeHandler.
func NewMergeHandler(svc mergeService, logger *slog.Logger) *MergeHandler {
	return &MergeHandler{
		svc:    svc,
		logger: logger,
	}
}

// Initiate handles POST /api/v1/account/merge.
func (h *MergeHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req dto.InitiateMergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	callerID := auth.MustAuthFromContext(r.Context()).UserID

	result, err := h.svc.Initiate(r.Context(), callerID, merge.InitiateInput{
		TargetEmail:      req.TargetEmail,
		TargetExternalID: req.TargetExternalID,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	response := dto.InitiateMergeResponse{
		MergeToken:  result.MergeToken,
		TargetEmail: result.TargetEmail,
		Preview: dto.MergePreview{
			// The initiate preview shows what the caller stands to gain:
			// the target's linked providers.
			CurrentProviders: result.TargetProviders,
		},
	}
	writeJSON(w, http.StatusCreated, response)
}

// Verify handles POST /api/v1/account/merge/verify.
func (h *MergeHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyMergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if req.MergeToken == "" || req.Code == "" {
		h.writeError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid merge token or code")
		return
	}

	callerID := auth.MustAuthFromContext(r.Context()).UserID

	result, err := h.svc.Verify(r.Context(), callerID, req.MergeToken, req.Code)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	response := dto.VerifyMergeResponse{
		Success: true,
		Preview: dto.MergePreview{
			CurrentProviders: result.CurrentProviders,
			TargetProviders:  result.TargetProviders,
		},
	}
	writeJSON(w, http.StatusOK, response)
}

// Complete handles POST /api/v1/account/merge/complete.
func (h *MergeHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req dto.CompleteMergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if req.MergeToken == "" {
		h.writeError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid merge token or code")
		return
	}

	callerID := auth.MustAuthFromContext(r.Context()).UserID

	result, err := h.svc.Complete(r.Context(), callerID, req.MergeToken)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	response := dto.CompleteMergeResponse{
		Success:         true,
		MergedProviders: result.MergedProviders,
	}
	writeJSON(w, http.StatusOK, response)
}

// Cancel handles DELETE /api/v1/account/merge.
func (h *MergeHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req dto.CancelMergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if req.MergeToken == "" {
		h.writeError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid merge token or code")
		return
	}

	callerID := auth.MustAuthFromContext(r.Context()).UserID

	if err := h.svc.Cancel(r.Context(), callerID, req.MergeToken); err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CancelMergeResponse{Success: true})
}

// handleServiceError maps merge service errors to HTTP responses.
func (h *MergeHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, merge.ErrInvalidTarget):
		h.writeError(w, http.StatusBadRequest, "INVALID_TARGET", "Exactly one of target_email or target_external_id is required")
	case errors.Is(err, identity.ErrMalformedIdentifier):
		h.writeError(w, http.StatusBadRequest, "INVALID_TARGET", "Malformed target identifier")
	case errors.Is(err, merge.ErrSelfMerge):
		h.writeError(w, http.StatusBadRequest, "CANNOT_MERGE_SELF", "Cannot merge an account with itself")
	case errors.Is(err, merge.ErrTargetNotFound):
		h.writeError(w, http.StatusNotFound, "TARGET_NOT_FOUND", "No account matches the target identifier")
	case errors.Is(err, merge.ErrRateLimited):
		h.writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many attempts, try again later")
	case errors.Is(err, merge.ErrInvalidInput), errors.Is(err, merge.ErrNotVerified):
		// Deliberately indistinguishable: unknown token, expired request,
		// wrong code and unverified completion all collapse here.
		h.writeError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid merge token or code")
	case errors.Is(err, merge.ErrSendFailed):
		h.writeError(w, http.StatusBadGateway, "SEND_FAILED", "Could not deliver the verification code, try again")
	default:
		h.logger.Error("internal_error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

// writeError writes an error response.
func (h *MergeHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
