/**
 * @description
 * This file contains the HTTP handlers for entitlements: the listing
 * permission view, slot consumption and refund (called by the
 * listing-service), subscription and credit pack catalogs, and the
 * subscription and credit checkouts.
 */

package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vyzio/finance-service/internal/domain"
)

// GetEntitlementsHandler returns whether the caller may create a listing and why.
func (h *FinanceHandlers) GetEntitlementsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	view, err := h.service.GetEntitlements(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, "get_entitlements", err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// ConsumeListingSlotHandler spends one listing entitlement for the caller.
func (h *FinanceHandlers) ConsumeListingSlotHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	var req domain.ConsumeListingSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.ConsumeListingSlot(r.Context(), userID, req.ListingID); err != nil {
		h.writeServiceError(w, "consume_listing_slot", err)
		return
	}
	log.Printf("level=info component=api endpoint=consume_listing_slot user_id=%s listing_id=%s", userID, req.ListingID)
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Listing slot consumed"})
}

// RefundListingSlotHandler returns a spent credit for an unpublished listing.
func (h *FinanceHandlers) RefundListingSlotHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	var req domain.ConsumeListingSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.RefundListingSlot(r.Context(), userID, req.ListingID); err != nil {
		h.writeServiceError(w, "refund_listing_slot", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Listing credit refunded"})
}

// ListPlansHandler returns the purchasable subscription plans.
func (h *FinanceHandlers) ListPlansHandler(w http.ResponseWriter, r *http.Request) {
	plans, err := h.service.ListPlans(r.Context())
	if err != nil {
		h.writeServiceError(w, "list_plans", err)
		return
	}
	h.writeJSON(w, http.StatusOK, plans)
}

// ListCreditPacksHandler returns the purchasable credit packs.
func (h *FinanceHandlers) ListCreditPacksHandler(w http.ResponseWriter, r *http.Request) {
	packs, err := h.service.ListCreditPacks(r.Context())
	if err != nil {
		h.writeServiceError(w, "list_credit_packs", err)
		return
	}
	h.writeJSON(w, http.StatusOK, packs)
}

// CreateSubscriptionCheckoutHandler starts a gateway checkout for a plan.
func (h *FinanceHandlers) CreateSubscriptionCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	var req domain.SubscriptionCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.service.CreateSubscriptionCheckout(r.Context(), userID, req)
	if err != nil {
		h.writeServiceError(w, "subscription_checkout", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

// CreateCreditCheckoutHandler starts a gateway checkout for a credit pack.
func (h *FinanceHandlers) CreateCreditCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	var req domain.CreditCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.service.CreateCreditCheckout(r.Context(), userID, req)
	if err != nil {
		h.writeServiceError(w, "credit_checkout", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

// ListCreditTransactionsHandler returns a page of the user's credit history.
func (h *FinanceHandlers) ListCreditTransactionsHandler(w http.ResponseWriter, r *http.Request) {
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

	transactions, err := h.service.ListCreditTransactions(r.Context(), userID, limit, offset)
	if err != nil {
		h.writeServiceError(w, "list_credit_transactions", err)
		return
	}
	h.writeJSON(w, http.StatusOK, transactions)
}

// GetCheckoutPaymentHandler returns the payment recorded for one of the
// user's checkout sessions. Polled by the frontend after the gateway
// redirect.
func (h *FinanceHandlers) GetCheckoutPaymentHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		h.writeError(w, http.StatusBadRequest, "A session ID is required")
		return
	}

	payment, err := h.service.GetCheckoutPayment(r.Context(), userID, sessionID)
	if err != nil {
		h.writeServiceError(w, "get_checkout_payment", err)
		return
	}
	h.writeJSON(w, http.StatusOK, payment)
}
