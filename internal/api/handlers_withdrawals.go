/**
 * @description
 * This file contains the HTTP handlers for the withdrawal workflow: seller
 * requests and cancellations, and the admin review endpoints.
 */

package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vyzio/finance-service/internal/domain"
)

// RequestWithdrawalHandler creates a pending withdrawal for the seller.
func (h *FinanceHandlers) RequestWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	var req domain.RequestWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=request_withdrawal outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	withdrawal, err := h.service.RequestWithdrawal(r.Context(), userID, req.Amount)
	if err != nil {
		h.writeServiceError(w, "request_withdrawal", err)
		return
	}
	log.Printf("level=info component=api endpoint=request_withdrawal seller_id=%s withdrawal_id=%s amount=%d", userID, withdrawal.ID, withdrawal.Amount)
	h.writeJSON(w, http.StatusCreated, withdrawal)
}

// ListWithdrawalsHandler returns the seller's withdrawal history.
func (h *FinanceHandlers) ListWithdrawalsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	withdrawals, err := h.service.ListWithdrawals(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, "list_withdrawals", err)
		return
	}
	h.writeJSON(w, http.StatusOK, withdrawals)
}

// GetWithdrawalHandler returns one of the seller's withdrawal requests.
func (h *FinanceHandlers) GetWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}
	withdrawalID, err := parseUUIDParam(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid withdrawal ID format")
		return
	}

	withdrawal, err := h.service.GetWithdrawal(r.Context(), withdrawalID, userID)
	if err != nil {
		h.writeServiceError(w, "get_withdrawal", err)
		return
	}
	h.writeJSON(w, http.StatusOK, withdrawal)
}

// CancelWithdrawalHandler lets the seller cancel a still-pending request.
func (h *FinanceHandlers) CancelWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}
	withdrawalID, err := parseUUIDParam(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid withdrawal ID format")
		return
	}

	withdrawal, err := h.service.CancelWithdrawal(r.Context(), withdrawalID, userID)
	if err != nil {
		h.writeServiceError(w, "cancel_withdrawal", err)
		return
	}
	h.writeJSON(w, http.StatusOK, withdrawal)
}

// ListPendingWithdrawalsHandler returns the admin review queue, oldest first.
func (h *FinanceHandlers) ListPendingWithdrawalsHandler(w http.ResponseWriter, r *http.Request) {
	withdrawals, err := h.service.ListPendingWithdrawals(r.Context())
	if err != nil {
		h.writeServiceError(w, "list_pending_withdrawals", err)
		return
	}
	h.writeJSON(w, http.StatusOK, withdrawals)
}

// ApproveWithdrawalHandler approves a pending withdrawal and debits the wallet.
func (h *FinanceHandlers) ApproveWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}
	withdrawalID, err := parseUUIDParam(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid withdrawal ID format")
		return
	}

	var req domain.ApproveWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	withdrawal, err := h.service.ApproveWithdrawal(r.Context(), withdrawalID, adminID, req.TransferReference)
	if err != nil {
		h.writeServiceError(w, "approve_withdrawal", err)
		return
	}
	log.Printf("level=info component=api endpoint=approve_withdrawal withdrawal_id=%s admin_id=%s", withdrawalID, adminID)
	h.writeJSON(w, http.StatusOK, withdrawal)
}

// RejectWithdrawalHandler rejects a pending withdrawal with a reason.
func (h *FinanceHandlers) RejectWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}
	withdrawalID, err := parseUUIDParam(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid withdrawal ID format")
		return
	}

	var req domain.RejectWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Reason == "" {
		h.writeError(w, http.StatusBadRequest, "A rejection reason is required")
		return
	}

	withdrawal, err := h.service.RejectWithdrawal(r.Context(), withdrawalID, adminID, req.Reason)
	if err != nil {
		h.writeServiceError(w, "reject_withdrawal", err)
		return
	}
	h.writeJSON(w, http.StatusOK, withdrawal)
}
