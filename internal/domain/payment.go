/**
 * @description
 * This file defines payment audit records and checkout DTOs. Every payment
 * collected through the gateway, whether a purchase, subscription charge, or
 * credit pack, leaves a Payment row keyed by the gateway checkout session so
 * the reconciler can correlate webhook events with what was sold.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentType enumerates what a payment was collected for.
type PaymentType string

const (
	PaymentTypeSubscription PaymentType = "subscription"
	PaymentTypePostCredit   PaymentType = "post_credit"
	PaymentTypeBoost        PaymentType = "boost"
	PaymentTypeCommission   PaymentType = "commission"
	PaymentTypePurchase     PaymentType = "purchase"
)

// PaymentStatus enumerates the lifecycle states of a payment.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
	PaymentCancelled  PaymentStatus = "cancelled"
)

// Payment is the audit record for money collected via the gateway. Maps to
// the `payments` table. SessionID is unique so a replayed webhook cannot
// create a second row for the same checkout.
type Payment struct {
	ID              uuid.UUID         `json:"id"`
	UserID          uuid.UUID         `json:"user_id"`
	Type            PaymentType       `json:"type"`
	Status          PaymentStatus     `json:"status"`
	Amount          int64             `json:"amount"` // in cents
	Currency        string            `json:"currency"`
	SessionID       *string           `json:"session_id,omitempty"`
	PaymentIntentID *string           `json:"payment_intent_id,omitempty"`
	CustomerID      *string           `json:"customer_id,omitempty"`
	InvoiceID       *string           `json:"invoice_id,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// PurchaseCheckoutRequest is the DTO for starting a purchase checkout.
type PurchaseCheckoutRequest struct {
	SellerID  uuid.UUID `json:"seller_id"`
	ListingID uuid.UUID `json:"listing_id"`
	ItemPrice int64     `json:"item_price"` // in cents
}

// SubscriptionCheckoutRequest is the DTO for starting a subscription checkout.
type SubscriptionCheckoutRequest struct {
	PlanID uuid.UUID `json:"plan_id"`
}

// CreditCheckoutRequest is the DTO for starting a credit pack checkout.
// ListingID is set for single-listing checkout, where the credit is applied
// to a specific listing as soon as payment completes.
type CreditCheckoutRequest struct {
	CreditPackID uuid.UUID  `json:"credit_pack_id"`
	ListingID    *uuid.UUID `json:"listing_id,omitempty"`
}

// CheckoutResponse is returned after a checkout session has been created.
type CheckoutResponse struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
	OrderID     string `json:"order_id,omitempty"`
}
