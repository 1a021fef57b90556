/**
 * @description
 * This file contains the HTTP handler for gateway webhook deliveries. The raw
 * body is read before any decoding because the signature covers the exact
 * bytes the gateway sent. Verified events are handed to the reconciler; a
 * non-2xx response makes the gateway redeliver.
 */

package api

import (
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/vyzio/finance-service/pkg/stripeclient"
)

// maxWebhookBodyBytes bounds webhook payload size.
const maxWebhookBodyBytes = 1 << 20

// WebhookHandler verifies and processes one gateway webhook delivery.
func (h *FinanceHandlers) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	event, err := stripeclient.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.webhookSecret, time.Now())
	if err != nil {
		if errors.Is(err, stripeclient.ErrInvalidSignature) {
			log.Printf("level=warn component=api endpoint=webhook outcome=reject reason=invalid_signature err=%v", err)
			h.writeError(w, http.StatusUnauthorized, "Invalid webhook signature")
			return
		}
		log.Printf("level=warn component=api endpoint=webhook outcome=reject reason=invalid_payload err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid webhook payload")
		return
	}

	if err := h.service.ProcessWebhookEvent(r.Context(), event.ID, event.Type, event.Data.Object); err != nil {
		// Non-2xx makes the gateway retry the delivery.
		h.writeError(w, http.StatusInternalServerError, "Event processing failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"received": "true"})
}
