/**
 * @description
 * This file contains the HTTP handlers for the seller wallet: balance and
 * ledger queries, bank detail updates, and the admin-only balance adjustment
 * and manual hold release operations.
 */

package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vyzio/finance-service/internal/domain"
)

// GetWalletHandler returns the authenticated seller's wallet.
func (h *FinanceHandlers) GetWalletHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	wallet, err := h.service.GetWallet(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, "get_wallet", err)
		return
	}
	h.writeJSON(w, http.StatusOK, wallet)
}

// GetWalletTransactionsHandler returns a page of the seller's ledger.
func (h *FinanceHandlers) GetWalletTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	limit, err := parseOptionalInt(r.URL.Query().Get("limit"), 20)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	offset, err := parseOptionalInt(r.URL.Query().Get("offset"), 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid offset")
		return
	}

	transactions, err := h.service.GetWalletTransactions(r.Context(), userID, domain.WalletTransactionListOptions{Limit: limit, Offset: offset})
	if err != nil {
		h.writeServiceError(w, "get_wallet_transactions", err)
		return
	}
	h.writeJSON(w, http.StatusOK, transactions)
}

// UpdateBankDetailsHandler stores the seller's payout bank details.
func (h *FinanceHandlers) UpdateBankDetailsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	var req domain.UpdateBankDetailsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=update_bank_details outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	wallet, err := h.service.UpdateBankDetails(r.Context(), userID, req)
	if err != nil {
		h.writeServiceError(w, "update_bank_details", err)
		return
	}
	h.writeJSON(w, http.StatusOK, wallet)
}

// AdjustWalletHandler applies a signed manual balance adjustment (admin).
func (h *FinanceHandlers) AdjustWalletHandler(w http.ResponseWriter, r *http.Request) {
	sellerID, err := parseUUIDParam(chi.URLParam(r, "sellerID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid seller ID")
		return
	}

	var req struct {
		Amount      int64  `json:"amount"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=adjust_wallet outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Description == "" {
		h.writeError(w, http.StatusBadRequest, "A description is required")
		return
	}

	wallet, err := h.service.AdjustWallet(r.Context(), sellerID, req.Amount, req.Description)
	if err != nil {
		h.writeServiceError(w, "adjust_wallet", err)
		return
	}
	h.writeJSON(w, http.StatusOK, wallet)
}

// ReleaseHeldFundsHandler manually releases held funds into the withdrawable
// balance (admin).
func (h *FinanceHandlers) ReleaseHeldFundsHandler(w http.ResponseWriter, r *http.Request) {
	sellerID, err := parseUUIDParam(chi.URLParam(r, "sellerID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid seller ID")
		return
	}

	var req struct {
		Amount      int64  `json:"amount"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=release_held_funds outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Description == "" {
		req.Description = "Déblocage manuel"
	}

	wallet, err := h.service.ReleaseHeldFunds(r.Context(), sellerID, req.Amount, req.Description)
	if err != nil {
		h.writeServiceError(w, "release_held_funds", err)
		return
	}
	h.writeJSON(w, http.StatusOK, wallet)
}
