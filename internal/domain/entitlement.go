/**
 * @description
 * This file defines the entitlement domain models: subscription plans,
 * subscriptions, and pay-per-listing credits. Entitlements gate whether a
 * seller may publish a new listing, either through an active subscription
 * quota or by spending a listing credit.
 *
 * @notes
 * - A plan with MaxListings == -1 grants unlimited listings.
 * - CreditTransaction rows are append-only, mirroring the wallet ledger.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus enumerates the lifecycle states of a subscription.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionTrialing  SubscriptionStatus = "trialing"
	SubscriptionPastDue   SubscriptionStatus = "past_due"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionPaused    SubscriptionStatus = "paused"
)

// BillingPeriod enumerates how often a plan renews.
type BillingPeriod string

const (
	BillingMonthly BillingPeriod = "monthly"
	BillingYearly  BillingPeriod = "yearly"
)

// UnlimitedListings is the MaxListings sentinel for plans without a quota.
const UnlimitedListings = -1

// SubscriptionPlan describes a purchasable plan tier. Maps to the
// `subscription_plans` table.
type SubscriptionPlan struct {
	ID             uuid.UUID     `json:"id"`
	Name           string        `json:"name"` // basic, pro, business
	BillingPeriod  BillingPeriod `json:"billing_period"`
	Price          int64         `json:"price"` // in cents
	MaxListings    int           `json:"max_listings"`
	BoostsPerMonth int           `json:"boosts_per_month"`
	GatewayPriceID string        `json:"gateway_price_id"`
	Active         bool          `json:"active"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Subscription represents a user's subscription to a plan. Maps to the
// `subscriptions` table.
type Subscription struct {
	ID                    uuid.UUID          `json:"id"`
	UserID                uuid.UUID          `json:"user_id"`
	PlanID                uuid.UUID          `json:"plan_id"`
	Status                SubscriptionStatus `json:"status"`
	GatewaySubscriptionID *string            `json:"gateway_subscription_id,omitempty"`
	GatewayCustomerID     *string            `json:"gateway_customer_id,omitempty"`
	CurrentPeriodStart    time.Time          `json:"current_period_start"`
	CurrentPeriodEnd      time.Time          `json:"current_period_end"`
	CancelAtPeriodEnd     bool               `json:"cancel_at_period_end"`
	ListingsUsed          int                `json:"listings_used"`
	BoostsUsed            int                `json:"boosts_used"`
	EndsAt                *time.Time         `json:"ends_at,omitempty"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// IsActive reports whether the subscription currently grants entitlements.
func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionActive || s.Status == SubscriptionTrialing
}

// CreditTransactionType enumerates the kinds of credit ledger entries.
type CreditTransactionType string

const (
	CreditTxPurchase CreditTransactionType = "purchase"
	CreditTxUse      CreditTransactionType = "use"
	CreditTxRefund   CreditTransactionType = "refund"
	CreditTxBonus    CreditTransactionType = "bonus"
	CreditTxExpiry   CreditTransactionType = "expiry"
)

// CreditBalance tracks a user's pay-per-listing credits. Maps to the
// `credit_balances` table.
type CreditBalance struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	Balance        int       `json:"balance"`
	TotalPurchased int       `json:"total_purchased"`
	TotalUsed      int       `json:"total_used"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CreditTransaction is one append-only entry against a credit balance.
type CreditTransaction struct {
	ID           uuid.UUID             `json:"id"`
	BalanceID    uuid.UUID             `json:"balance_id"`
	Type         CreditTransactionType `json:"type"`
	Amount       int                   `json:"amount"` // signed
	BalanceAfter int                   `json:"balance_after"`
	Description  string                `json:"description"`
	ListingID    *uuid.UUID            `json:"listing_id,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
}

// CreditPack describes a purchasable bundle of listing credits. Maps to the
// `credit_packs` table.
type CreditPack struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Credits        int       `json:"credits"`
	BonusCredits   int       `json:"bonus_credits"`
	Price          int64     `json:"price"` // in cents
	GatewayPriceID string    `json:"gateway_price_id"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

// TotalCredits returns the credits granted when the pack is purchased.
func (p *CreditPack) TotalCredits() int {
	return p.Credits + p.BonusCredits
}

// EntitlementView summarizes what a user may currently do, for the API.
type EntitlementView struct {
	CanCreateListing  bool    `json:"can_create_listing"`
	Reason            string  `json:"reason,omitempty"`
	SubscriptionPlan  *string `json:"subscription_plan,omitempty"`
	ListingsUsed      int     `json:"listings_used"`
	ListingsRemaining *int    `json:"listings_remaining,omitempty"` // nil when unlimited
	CreditBalance     int     `json:"credit_balance"`
}

// ConsumeListingSlotRequest is the DTO for consuming a listing slot.
type ConsumeListingSlotRequest struct {
	ListingID uuid.UUID `json:"listing_id"`
}
