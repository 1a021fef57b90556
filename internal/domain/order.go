/**
 * @description
 * This file defines the Order domain model and its lifecycle states. An order
 * represents one marketplace purchase: a buyer paying for a seller's listing,
 * with the platform fee carved out of the item price at creation time.
 *
 * @notes
 * - Order funds are held by the platform until the buyer confirms receipt;
 *   the `FundsReleased` flag guards the release so it can happen at most once.
 * - Monetary fields are int64 cents.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus enumerates the lifecycle states of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRefunded   OrderStatus = "refunded"
	OrderDisputed   OrderStatus = "disputed"
)

// Order represents a marketplace purchase. This struct maps directly to the
// `orders` table in the database.
type Order struct {
	ID                    uuid.UUID   `json:"id"`
	OrderNumber           string      `json:"order_number"`
	BuyerID               uuid.UUID   `json:"buyer_id"`
	SellerID              uuid.UUID   `json:"seller_id"`
	ListingID             uuid.UUID   `json:"listing_id"`
	ItemPrice             int64       `json:"item_price"`    // in cents
	PlatformFee           int64       `json:"platform_fee"`  // in cents
	SellerAmount          int64       `json:"seller_amount"` // in cents
	Status                OrderStatus `json:"status"`
	PaymentSessionID      *string     `json:"payment_session_id,omitempty"`
	BuyerConfirmedReceipt bool        `json:"buyer_confirmed_receipt"`
	FundsReleased         bool        `json:"funds_released"`
	NeedsManualReview     bool        `json:"needs_manual_review"`
	ShippedAt             *time.Time  `json:"shipped_at,omitempty"`
	DeliveredAt           *time.Time  `json:"delivered_at,omitempty"`
	CompletedAt           *time.Time  `json:"completed_at,omitempty"`
	CancelledAt           *time.Time  `json:"cancelled_at,omitempty"`
	CancellationReason    *string     `json:"cancellation_reason,omitempty"`
	DisputeReason         *string     `json:"dispute_reason,omitempty"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

// CanShip reports whether the seller may mark the order as shipped.
func (o *Order) CanShip() bool {
	switch o.Status {
	case OrderPending, OrderConfirmed, OrderProcessing:
		return true
	}
	return false
}

// CanConfirmReceipt reports whether the buyer may confirm receipt.
func (o *Order) CanConfirmReceipt() bool {
	return o.Status == OrderShipped || o.Status == OrderDelivered
}

// CanCancel reports whether the order may still be cancelled. Orders past
// the confirmed state are either in fulfillment or settled and must go
// through the dispute flow instead.
func (o *Order) CanCancel() bool {
	return o.Status == OrderPending || o.Status == OrderConfirmed
}

// CreateOrderRequest is the DTO for creating an order ahead of checkout.
type CreateOrderRequest struct {
	SellerID         uuid.UUID `json:"seller_id"`
	ListingID        uuid.UUID `json:"listing_id"`
	ItemPrice        int64     `json:"item_price"` // in cents
	PaymentSessionID *string   `json:"payment_session_id,omitempty"`
}

// CancelOrderRequest carries the reason for a buyer or seller cancellation.
type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

// DisputeOrderRequest carries the reason for opening a dispute.
type DisputeOrderRequest struct {
	Reason string `json:"reason"`
}

// OrderListOptions controls pagination and status filtering of order queries.
type OrderListOptions struct {
	Limit  int
	Offset int
	Status OrderStatus
}

// SellerOrderStats aggregates a seller's order counts and totals.
type SellerOrderStats struct {
	TotalOrders     int64 `json:"total_orders"`
	PendingOrders   int64 `json:"pending_orders"`
	ShippedOrders   int64 `json:"shipped_orders"`
	CompletedOrders int64 `json:"completed_orders"`
	DisputedOrders  int64 `json:"disputed_orders"`
	GrossSales      int64 `json:"gross_sales"` // in cents
	NetEarnings     int64 `json:"net_earnings"` // in cents
}
