/**
 * @description
 * This file defines the webhook event domain model used by the reconciler.
 * Each event delivered by the payment gateway is persisted exactly once,
 * keyed by the gateway's event id, before any side effects run. This gives
 * the service idempotent, at-least-once webhook processing.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEventType enumerates the gateway event types this service handles.
// Dispatch over this type is exhaustive; anything else is acknowledged and
// marked processed without side effects.
type WebhookEventType string

const (
	EventCheckoutSessionCompleted WebhookEventType = "checkout.session.completed"
	EventCheckoutSessionExpired   WebhookEventType = "checkout.session.expired"
	EventInvoicePaymentSucceeded  WebhookEventType = "invoice.payment_succeeded"
	EventInvoicePaymentFailed     WebhookEventType = "invoice.payment_failed"
	EventSubscriptionCreated      WebhookEventType = "customer.subscription.created"
	EventSubscriptionUpdated      WebhookEventType = "customer.subscription.updated"
	EventSubscriptionDeleted      WebhookEventType = "customer.subscription.deleted"
)

// WebhookEvent is the persisted record of one gateway delivery. Maps to the
// `webhook_events` table; GatewayEventID carries a unique index.
type WebhookEvent struct {
	ID             uuid.UUID        `json:"id"`
	GatewayEventID string           `json:"gateway_event_id"`
	Type           WebhookEventType `json:"type"`
	Payload        []byte           `json:"-"`
	Processed      bool             `json:"processed"`
	ProcessedAt    *time.Time       `json:"processed_at,omitempty"`
	ErrorMessage   *string          `json:"error_message,omitempty"`
	RetryCount     int              `json:"retry_count"`
	CreatedAt      time.Time        `json:"created_at"`
}
