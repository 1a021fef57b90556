/**
 * @description
 * This file contains the HTTP handlers for the order lifecycle: checkout,
 * status queries, fulfilment transitions, receipt confirmation, cancellation,
 * and disputes.
 */

package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vyzio/finance-service/internal/domain"
)

// CreatePurchaseCheckoutHandler starts a gateway checkout for buying a listing.
func (h *FinanceHandlers) CreatePurchaseCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	var req domain.PurchaseCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=purchase_checkout outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.service.CreatePurchaseCheckout(r.Context(), buyerID, req)
	if err != nil {
		h.writeServiceError(w, "purchase_checkout", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

// GetOrderHandler returns one order the caller participates in.
func (h *FinanceHandlers) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}
	orderID, err := parseUUIDParam(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid order ID format")
		return
	}

	order, err := h.service.GetOrder(r.Context(), orderID, userID)
	if err != nil {
		h.writeServiceError(w, "get_order", err)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

func orderListOptionsFromQuery(r *http.Request) (domain.OrderListOptions, error) {
	limit, err := parseOptionalInt(r.URL.Query().Get("limit"), 20)
	if err != nil {
		return domain.OrderListOptions{}, err
	}
	offset, err := parseOptionalInt(r.URL.Query().Get("offset"), 0)
	if err != nil {
		return domain.OrderListOptions{}, err
	}
	opts := domain.OrderListOptions{Limit: limit, Offset: offset}
	if status := r.URL.Query().Get("status"); status != "" {
		opts.Status = domain.OrderStatus(status)
	}
	return opts, nil
}

// ListPurchasesHandler returns the caller's orders as a buyer.
func (h *FinanceHandlers) ListPurchasesHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}
	opts, err := orderListOptionsFromQuery(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid pagination parameters")
		return
	}

	orders, err := h.service.ListBuyerOrders(r.Context(), userID, opts)
	if err != nil {
		h.writeServiceError(w, "list_purchases", err)
		return
	}
	h.writeJSON(w, http.StatusOK, orders)
}

// ListSalesHandler returns the caller's orders as a seller.
func (h *FinanceHandlers) ListSalesHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}
	opts, err := orderListOptionsFromQuery(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid pagination parameters")
		return
	}

	orders, err := h.service.ListSellerOrders(r.Context(), userID, opts)
	if err != nil {
		h.writeServiceError(w, "list_sales", err)
		return
	}
	h.writeJSON(w, http.StatusOK, orders)
}

// GetSellerStatsHandler returns aggregate order counts and sales totals.
func (h *FinanceHandlers) GetSellerStatsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	stats, err := h.service.GetSellerStats(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, "seller_stats", err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// MarkShippedHandler records that the seller shipped the order.
func (h *FinanceHandlers) MarkShippedHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}
	orderID, err := parseUUIDParam(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid order ID format")
		return
	}

	order, err := h.service.MarkShipped(r.Context(), orderID, userID)
	if err != nil {
		h.writeServiceError(w, "mark_shipped", err)
		return
	}
	log.Printf("level=info component=api endpoint=mark_shipped order=%s seller_id=%s", order.OrderNumber, userID)
	h.writeJSON(w, http.StatusOK, order)
}

// MarkDeliveredHandler records that the carrier delivered the order.
func (h *FinanceHandlers) MarkDeliveredHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireUserID(w, r); !ok {
		return
	}
	orderID, err := parseUUIDParam(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid order ID format")
		return
	}

	order, err := h.service.MarkDelivered(r.Context(), orderID)
	if err != nil {
		h.writeServiceError(w, "mark_delivered", err)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

// ConfirmReceiptHandler lets the buyer confirm reception, releasing the held
// funds to the seller.
func (h *FinanceHandlers) ConfirmReceiptHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}
	orderID, err := parseUUIDParam(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid order ID format")
		return
	}

	order, err := h.service.ConfirmReceipt(r.Context(), orderID, userID)
	if err != nil {
		h.writeServiceError(w, "confirm_receipt", err)
		return
	}
	log.Printf("level=info component=api endpoint=confirm_receipt order=%s buyer_id=%s", order.OrderNumber, userID)
	h.writeJSON(w, http.StatusOK, order)
}

// CancelOrderHandler cancels an order that has not shipped yet.
func (h *FinanceHandlers) CancelOrderHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}
	orderID, err := parseUUIDParam(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid order ID format")
		return
	}

	var req domain.CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	order, err := h.service.CancelOrder(r.Context(), orderID, userID, req.Reason)
	if err != nil {
		h.writeServiceError(w, "cancel_order", err)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

// OpenDisputeHandler opens a dispute on a shipped, delivered, or completed order.
func (h *FinanceHandlers) OpenDisputeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}
	orderID, err := parseUUIDParam(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid order ID format")
		return
	}

	var req domain.DisputeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	order, err := h.service.OpenDispute(r.Context(), orderID, userID, req.Reason)
	if err != nil {
		h.writeServiceError(w, "open_dispute", err)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}
