/**
 * @description
 * This file implements the webhook event reconciler. Gateway deliveries are
 * persisted before any side effect runs, keyed by the gateway's event id, so
 * retried and duplicated deliveries are absorbed. Dispatch over the event
 * type is exhaustive; unhandled types are acknowledged and marked processed.
 *
 * Key features:
 * - Exactly-once side effects per gateway event via the unique event id.
 * - Failures are recorded on the event row with a retry counter, then
 *   surfaced to the caller so the gateway redelivers.
 */

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/vyzio/finance-service/internal/domain"
	"github.com/vyzio/finance-service/internal/store"
	"github.com/vyzio/finance-service/pkg/rabbitmq"
)

// checkoutSessionPayload is the slice of the gateway's session object the
// reconciler reads.
type checkoutSessionPayload struct {
	ID            string            `json:"id"`
	PaymentIntent string            `json:"payment_intent"`
	Customer      string            `json:"customer"`
	Subscription  string            `json:"subscription"`
	AmountTotal   int64             `json:"amount_total"`
	Metadata      map[string]string `json:"metadata"`
}

// invoicePayload is the slice of the gateway's invoice object the reconciler reads.
type invoicePayload struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	AmountPaid   int64  `json:"amount_paid"`
}

// subscriptionPayload is the slice of the gateway's subscription object the
// reconciler reads. Period bounds are unix seconds.
type subscriptionPayload struct {
	ID                 string `json:"id"`
	Status             string `json:"status"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
}

// ProcessWebhookEvent records and processes one verified gateway event. The
// returned error indicates the event should be redelivered; already-processed
// duplicates return nil without side effects.
func (s *Service) ProcessWebhookEvent(ctx context.Context, gatewayEventID string, eventType string, payload []byte) error {
	event := &domain.WebhookEvent{
		ID:             uuid.New(),
		GatewayEventID: gatewayEventID,
		Type:           domain.WebhookEventType(eventType),
		Payload:        payload,
	}
	created, existing, err := s.repo.InsertWebhookEvent(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to record webhook event: %w", err)
	}
	if !created {
		if existing.Processed {
			log.Printf("level=info component=reconciler msg=\"duplicate event skipped\" gateway_event_id=%s type=%s", gatewayEventID, eventType)
			return nil
		}
		// Redelivery of an event whose previous attempt failed: retry it.
		event = existing
	}

	if err := s.dispatchWebhookEvent(ctx, event); err != nil {
		if recordErr := s.repo.RecordWebhookEventFailure(ctx, event.ID, err.Error()); recordErr != nil {
			log.Printf("level=error component=reconciler msg=\"failed to record event failure\" gateway_event_id=%s err=%v", gatewayEventID, recordErr)
		}
		log.Printf("level=error component=reconciler msg=\"event processing failed\" gateway_event_id=%s type=%s err=%v", gatewayEventID, eventType, err)
		return err
	}

	if err := s.repo.MarkWebhookEventProcessed(ctx, event.ID); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	log.Printf("level=info component=reconciler msg=\"event processed\" gateway_event_id=%s type=%s", gatewayEventID, eventType)
	return nil
}

func (s *Service) dispatchWebhookEvent(ctx context.Context, event *domain.WebhookEvent) error {
	switch event.Type {
	case domain.EventCheckoutSessionCompleted:
		return s.handleCheckoutCompleted(ctx, event.Payload)
	case domain.EventCheckoutSessionExpired:
		return s.handleCheckoutExpired(ctx, event.Payload)
	case domain.EventInvoicePaymentSucceeded:
		return s.handleInvoicePaymentSucceeded(ctx, event.Payload)
	case domain.EventInvoicePaymentFailed:
		return s.handleInvoicePaymentFailed(ctx, event.Payload)
	case domain.EventSubscriptionCreated, domain.EventSubscriptionUpdated:
		return s.handleSubscriptionUpdated(ctx, event.Payload)
	case domain.EventSubscriptionDeleted:
		return s.handleSubscriptionDeleted(ctx, event.Payload)
	default:
		log.Printf("level=info component=reconciler msg=\"unhandled event type acknowledged\" type=%s", event.Type)
		return nil
	}
}

// handleCheckoutCompleted branches on the payment_type metadata written when
// the checkout session was created.
func (s *Service) handleCheckoutCompleted(ctx context.Context, payload []byte) error {
	var session checkoutSessionPayload
	if err := json.Unmarshal(payload, &session); err != nil {
		return fmt.Errorf("failed to decode checkout session: %w", err)
	}
	if session.ID == "" {
		return fmt.Errorf("checkout session payload has no id")
	}

	switch domain.PaymentType(session.Metadata["payment_type"]) {
	case domain.PaymentTypePurchase:
		return s.completePurchaseCheckout(ctx, session)
	case domain.PaymentTypeSubscription:
		return s.completeSubscriptionCheckout(ctx, session)
	case domain.PaymentTypePostCredit:
		return s.completeCreditCheckout(ctx, session)
	default:
		log.Printf("level=warn component=reconciler msg=\"checkout session with unknown payment_type\" session=%s payment_type=%q", session.ID, session.Metadata["payment_type"])
		return nil
	}
}

func (s *Service) completePurchaseCheckout(ctx context.Context, session checkoutSessionPayload) error {
	if _, err := s.ConfirmOrderPayment(ctx, session.ID); err != nil {
		return fmt.Errorf("failed to confirm order for session %s: %w", session.ID, err)
	}
	return s.completePaymentAudit(ctx, session)
}

func (s *Service) completeSubscriptionCheckout(ctx context.Context, session checkoutSessionPayload) error {
	userID, err := uuid.Parse(session.Metadata["user_id"])
	if err != nil {
		return fmt.Errorf("invalid user_id in session metadata: %w", err)
	}
	planID, err := uuid.Parse(session.Metadata["plan_id"])
	if err != nil {
		return fmt.Errorf("invalid plan_id in session metadata: %w", err)
	}
	if _, err := s.ActivateSubscription(ctx, userID, planID, session.Subscription, session.Customer); err != nil {
		return fmt.Errorf("failed to activate subscription for session %s: %w", session.ID, err)
	}
	return s.completePaymentAudit(ctx, session)
}

func (s *Service) completeCreditCheckout(ctx context.Context, session checkoutSessionPayload) error {
	userID, err := uuid.Parse(session.Metadata["user_id"])
	if err != nil {
		return fmt.Errorf("invalid user_id in session metadata: %w", err)
	}
	packID, err := uuid.Parse(session.Metadata["pack_id"])
	if err != nil {
		return fmt.Errorf("invalid pack_id in session metadata: %w", err)
	}
	pack, err := s.repo.GetCreditPackByID(ctx, packID)
	if err != nil {
		return fmt.Errorf("failed to load credit pack %s: %w", packID, err)
	}
	if _, err := s.GrantCredits(ctx, userID, pack); err != nil {
		return err
	}

	// Single-listing checkout: spend the first credit on the listing right away.
	if listingRaw, ok := session.Metadata["listing_id"]; ok && listingRaw != "" {
		listingID, err := uuid.Parse(listingRaw)
		if err != nil {
			return fmt.Errorf("invalid listing_id in session metadata: %w", err)
		}
		if _, err := s.repo.UseCredit(ctx, userID, &listingID); err != nil {
			return fmt.Errorf("failed to apply credit to listing %s: %w", listingID, err)
		}
		s.activateListing(ctx, listingID, userID)
	}
	return s.completePaymentAudit(ctx, session)
}

// activateListing tells the listing-service the listing is paid for. Best
// effort: the listing can be activated manually if the call fails.
func (s *Service) activateListing(ctx context.Context, listingID, userID uuid.UUID) {
	if s.listings == nil {
		log.Printf("level=warn component=reconciler msg=\"listing-service not configured; listing not activated\" listing_id=%s", listingID)
		return
	}
	if err := s.listings.ActivateListing(ctx, listingID.String(), userID.String()); err != nil {
		log.Printf("level=warn component=reconciler msg=\"listing activation failed\" listing_id=%s err=%v", listingID, err)
	}
}

// completePaymentAudit closes the pending payment row for a session. A
// missing row is logged, not fatal: the checkout may predate this service.
func (s *Service) completePaymentAudit(ctx context.Context, session checkoutSessionPayload) error {
	var intentID, customerID *string
	if session.PaymentIntent != "" {
		intentID = &session.PaymentIntent
	}
	if session.Customer != "" {
		customerID = &session.Customer
	}
	if _, err := s.repo.MarkPaymentCompleted(ctx, session.ID, intentID, customerID); err != nil {
		log.Printf("level=warn component=reconciler msg=\"no payment row for completed session\" session=%s err=%v", session.ID, err)
	}
	return nil
}

// handleCheckoutExpired closes the books on a session the buyer abandoned:
// the audit row is marked failed and a purchase order still waiting for
// payment is cancelled.
func (s *Service) handleCheckoutExpired(ctx context.Context, payload []byte) error {
	var session checkoutSessionPayload
	if err := json.Unmarshal(payload, &session); err != nil {
		return fmt.Errorf("failed to decode checkout session: %w", err)
	}
	if session.ID == "" {
		return fmt.Errorf("checkout session payload has no id")
	}

	if _, err := s.repo.MarkPaymentFailed(ctx, session.ID); err != nil {
		log.Printf("level=warn component=reconciler msg=\"no payment row for expired session\" session=%s err=%v", session.ID, err)
	}

	if domain.PaymentType(session.Metadata["payment_type"]) != domain.PaymentTypePurchase {
		return nil
	}
	order, err := s.repo.GetOrderBySessionID(ctx, session.ID)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load order for expired session %s: %w", session.ID, err)
	}
	if order.Status != domain.OrderPending {
		return nil
	}

	now := s.now()
	reason := "Session de paiement expirée"
	order.Status = domain.OrderCancelled
	order.CancelledAt = &now
	order.CancellationReason = &reason
	if err := s.repo.UpdateOrder(ctx, order); err != nil {
		return fmt.Errorf("failed to cancel expired order %s: %w", order.ID, err)
	}
	log.Printf("level=info component=reconciler op=expire_checkout order_id=%s session=%s", order.ID, session.ID)
	return nil
}

// recordInvoiceAudit keeps a payment row per invoice charge. Best effort: a
// failed audit write never blocks subscription state from advancing.
func (s *Service) recordInvoiceAudit(ctx context.Context, userID uuid.UUID, invoice invoicePayload, status domain.PaymentStatus) {
	now := s.now()
	payment := &domain.Payment{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      domain.PaymentTypeSubscription,
		Status:    status,
		Amount:    invoice.AmountPaid,
		Currency:  "eur",
		InvoiceID: &invoice.ID,
	}
	if invoice.Customer != "" {
		payment.CustomerID = &invoice.Customer
	}
	if status == domain.PaymentCompleted {
		payment.CompletedAt = &now
	}
	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		log.Printf("level=warn component=reconciler msg=\"failed to record invoice payment\" invoice=%s err=%v", invoice.ID, err)
	}
}

func (s *Service) handleInvoicePaymentSucceeded(ctx context.Context, payload []byte) error {
	var invoice invoicePayload
	if err := json.Unmarshal(payload, &invoice); err != nil {
		return fmt.Errorf("failed to decode invoice: %w", err)
	}
	if invoice.Subscription == "" {
		// One-off invoices carry no subscription and need no renewal.
		return nil
	}

	sub, err := s.RenewSubscriptionPeriod(ctx, invoice.Subscription)
	if err != nil {
		return fmt.Errorf("failed to renew subscription %s: %w", invoice.Subscription, err)
	}
	s.recordInvoiceAudit(ctx, sub.UserID, invoice, domain.PaymentCompleted)
	log.Printf("level=info component=reconciler op=renew_subscription user_id=%s period_end=%s", sub.UserID, sub.CurrentPeriodEnd.Format(time.RFC3339))
	s.publishEvent(ctx, EventSubscriptionActivated, rabbitmq.FinanceEvent{
		UserID:   sub.UserID,
		EntityID: sub.ID,
		Amount:   invoice.AmountPaid,
		Reason:   "renewal",
	})
	return nil
}

func (s *Service) handleInvoicePaymentFailed(ctx context.Context, payload []byte) error {
	var invoice invoicePayload
	if err := json.Unmarshal(payload, &invoice); err != nil {
		return fmt.Errorf("failed to decode invoice: %w", err)
	}
	if invoice.Subscription == "" {
		return nil
	}
	sub, err := s.MarkSubscriptionPastDue(ctx, invoice.Subscription)
	if err != nil {
		return fmt.Errorf("failed to mark subscription %s past due: %w", invoice.Subscription, err)
	}
	s.recordInvoiceAudit(ctx, sub.UserID, invoice, domain.PaymentFailed)
	return nil
}

func (s *Service) handleSubscriptionUpdated(ctx context.Context, payload []byte) error {
	var sub subscriptionPayload
	if err := json.Unmarshal(payload, &sub); err != nil {
		return fmt.Errorf("failed to decode subscription: %w", err)
	}

	var start, end time.Time
	if sub.CurrentPeriodStart > 0 {
		start = time.Unix(sub.CurrentPeriodStart, 0).UTC()
	}
	if sub.CurrentPeriodEnd > 0 {
		end = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	}
	if _, err := s.SyncSubscriptionFromGateway(ctx, sub.ID, sub.Status, start, end, sub.CancelAtPeriodEnd); err != nil {
		// Created events can arrive before the checkout.session.completed that
		// registers the subscription locally. Acknowledge those; the session
		// event carries enough to activate on its own.
		if errors.Is(err, store.ErrSubscriptionNotFound) {
			log.Printf("level=warn component=reconciler msg=\"subscription not registered yet\" gateway_sub_id=%s", sub.ID)
			return nil
		}
		return fmt.Errorf("failed to sync subscription %s: %w", sub.ID, err)
	}
	return nil
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, payload []byte) error {
	var sub subscriptionPayload
	if err := json.Unmarshal(payload, &sub); err != nil {
		return fmt.Errorf("failed to decode subscription: %w", err)
	}
	if _, err := s.CancelSubscriptionByGatewayID(ctx, sub.ID); err != nil {
		if errors.Is(err, store.ErrSubscriptionNotFound) {
			return nil
		}
		return fmt.Errorf("failed to cancel subscription %s: %w", sub.ID, err)
	}
	return nil
}
