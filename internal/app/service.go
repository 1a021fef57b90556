/**
 * @description
 * This file contains the core business logic entry point for the
 * finance-service. The `Service` struct orchestrates all money movement
 * operations, coordinating between the database repository, the payment
 * gateway client, the listing-service client, and the message broker.
 *
 * Key features:
 * - Implements the main use cases: order lifecycle with held funds, the
 *   seller wallet ledger, withdrawals, entitlements, and checkout sessions.
 * - Ensures transactional integrity by delegating multi-row mutations to
 *   repository methods that run them under one database transaction.
 * - Publishes events to RabbitMQ for asynchronous processing by other services.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/stripeclient, pkg/rabbitmq: For external service communication.
 */

package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/vyzio/finance-service/internal/store"
	"github.com/vyzio/finance-service/pkg/rabbitmq"
	"github.com/vyzio/finance-service/pkg/stripeclient"
)

var (
	ErrInvalidAmount           = errors.New("amount must be greater than zero")
	ErrBelowMinimumWithdrawal  = errors.New("amount is below the minimum withdrawal")
	ErrBankDetailsMissing      = errors.New("bank details are not configured")
	ErrNotOrderParticipant     = errors.New("user is not a participant of this order")
	ErrInvalidOrderState       = errors.New("order is not in a state that allows this operation")
	ErrReceiptAlreadyConfirmed = errors.New("receipt has already been confirmed")
	ErrEntitlementExhausted    = errors.New("no subscription quota or listing credits available")
	ErrRateLimited             = errors.New("too many requests")
)

// Routing keys for events published to the finance.events exchange.
const (
	EventOrderConfirmed        = "order.confirmed"
	EventOrderShipped          = "order.shipped"
	EventOrderFundsReleased    = "order.funds_released"
	EventOrderCancelled        = "order.cancelled"
	EventOrderDisputed         = "order.disputed"
	EventWithdrawalRequested   = "withdrawal.requested"
	EventWithdrawalCompleted   = "withdrawal.completed"
	EventWithdrawalRejected    = "withdrawal.rejected"
	EventSubscriptionActivated = "subscription.activated"
	EventSubscriptionPastDue   = "subscription.past_due"
	EventSubscriptionCancelled = "subscription.cancelled"
	EventCreditsAdded          = "credits.added"
)

// GatewayClient is the narrow payment gateway surface the service depends on.
// The concrete Stripe client is injected at startup, which keeps the business
// logic testable with a stub gateway.
type GatewayClient interface {
	CreateCheckoutSession(ctx context.Context, params stripeclient.CheckoutParams) (*stripeclient.CheckoutSession, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*stripeclient.SubscriptionInfo, error)
}

// ListingActivator publishes a listing once its payment completed. Nil when
// the listing-service is not configured; activation then degrades to a log line.
type ListingActivator interface {
	ActivateListing(ctx context.Context, listingID, userID string) error
}

// CheckoutRateLimiter limits how often a user may create checkout sessions.
type CheckoutRateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the core business logic for the finance-service.
type Service struct {
	repo          store.Repository
	gateway       GatewayClient
	listings      ListingActivator
	eventProducer rabbitmq.Publisher

	feePercent            int64
	minWithdrawal         int64 // in cents
	frontendURL           string
	checkoutRateLimit     int
	checkoutRateLimiter   CheckoutRateLimiter

	now func() time.Time
}

// NewService creates a new finance service instance.
func NewService(repo store.Repository, gateway GatewayClient, listings ListingActivator, producer rabbitmq.Publisher, feePercent int64, minWithdrawal int64, frontendURL string) *Service {
	if producer == nil {
		producer = &rabbitmq.EventProducerFallback{}
	}
	return &Service{
		repo:          repo,
		gateway:       gateway,
		listings:      listings,
		eventProducer: producer,
		feePercent:    feePercent,
		minWithdrawal: minWithdrawal,
		frontendURL:   frontendURL,
		now:           time.Now,
	}
}

// SetCheckoutRateLimiter enables distributed rate limiting of checkout-session
// creation. limitPerMinute <= 0 disables the limiter.
func (s *Service) SetCheckoutRateLimiter(limiter CheckoutRateLimiter, limitPerMinute int) {
	s.checkoutRateLimiter = limiter
	s.checkoutRateLimit = limitPerMinute
}

// publishEvent publishes a domain event. Publishing is best-effort: broker
// failures must never fail the business operation that triggered the event.
func (s *Service) publishEvent(ctx context.Context, routingKey string, event rabbitmq.FinanceEvent) {
	event.Timestamp = s.now()
	if err := s.eventProducer.PublishFinanceEvent(ctx, routingKey, event); err != nil {
		log.Printf("level=warn component=app msg=\"event publish failed\" routing_key=%s entity_id=%s err=%v", routingKey, event.EntityID, err)
	}
}

// consumeCheckoutRateLimit enforces the per-user checkout session limit.
func (s *Service) consumeCheckoutRateLimit(ctx context.Context, userID uuid.UUID) error {
	if s.checkoutRateLimiter == nil || s.checkoutRateLimit <= 0 {
		return nil
	}
	count, _, err := s.checkoutRateLimiter.ConsumeRateLimit(ctx, "checkout", userID.String(), s.checkoutRateLimit, time.Minute)
	if err != nil {
		// A broken limiter should not block checkouts.
		log.Printf("level=warn component=app msg=\"rate limiter unavailable; allowing request\" user_id=%s err=%v", userID, err)
		return nil
	}
	if count > s.checkoutRateLimit {
		return ErrRateLimited
	}
	return nil
}
