/**
 * @description
 * This file contains the shared plumbing for the finance-service's HTTP
 * handlers: the handler struct, JSON response helpers, query parsing, and the
 * mapping from service errors to HTTP status codes. Handlers are responsible
 * for parsing incoming requests, calling the appropriate methods on the
 * application service, and writing the HTTP response. They act as the bridge
 * between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/store: For service logic and custom errors.
 * - pkg/stripeclient: For the gateway unavailability sentinel.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/vyzio/finance-service/internal/app"
	"github.com/vyzio/finance-service/internal/store"
	"github.com/vyzio/finance-service/pkg/stripeclient"
)

// FinanceHandlers holds the application service that handlers will use.
type FinanceHandlers struct {
	service       *app.Service
	webhookSecret string
}

// NewFinanceHandlers creates a new instance of FinanceHandlers.
func NewFinanceHandlers(service *app.Service, webhookSecret string) *FinanceHandlers {
	return &FinanceHandlers{service: service, webhookSecret: webhookSecret}
}

// writeJSON is a helper for writing JSON responses.
func (h *FinanceHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *FinanceHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps service and store errors to HTTP status codes.
// Unknown errors are logged and become a 500.
func (h *FinanceHandlers) writeServiceError(w http.ResponseWriter, endpoint string, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidAmount),
		errors.Is(err, app.ErrBelowMinimumWithdrawal),
		errors.Is(err, app.ErrBankDetailsMissing):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrInvalidOrderState),
		errors.Is(err, app.ErrReceiptAlreadyConfirmed),
		errors.Is(err, store.ErrWithdrawalNotPending):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrEntitlementExhausted), errors.Is(err, store.ErrNoCredits):
		h.writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, app.ErrRateLimited):
		h.writeError(w, http.StatusTooManyRequests, "Too many requests, please retry later")
	case errors.Is(err, app.ErrNotOrderParticipant):
		h.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrInsufficientFunds):
		h.writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, store.ErrDuplicateWithdrawal), errors.Is(err, store.ErrDuplicatePayment):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrWalletNotFound),
		errors.Is(err, store.ErrOrderNotFound),
		errors.Is(err, store.ErrWithdrawalNotFound),
		errors.Is(err, store.ErrPlanNotFound),
		errors.Is(err, store.ErrSubscriptionNotFound),
		errors.Is(err, store.ErrCreditPackNotFound),
		errors.Is(err, store.ErrPaymentNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, stripeclient.ErrGatewayUnavailable):
		h.writeError(w, http.StatusBadGateway, "Payment gateway is temporarily unavailable")
	default:
		log.Printf("level=error component=api endpoint=%s outcome=failed err=%v", endpoint, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// requireUserID extracts the authenticated user, writing a 500 when the auth
// middleware did not run.
func (h *FinanceHandlers) requireUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return uuid.Nil, false
	}
	return userID, true
}

// parseUUIDParam parses a URL parameter as a UUID.
func parseUUIDParam(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, errors.New("missing id")
	}
	return uuid.Parse(raw)
}

// parseOptionalInt parses a query parameter with a default for the empty string.
func parseOptionalInt(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, errors.New("invalid integer")
	}
	return value, nil
}
