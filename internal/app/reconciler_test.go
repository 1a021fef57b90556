package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vyzio/finance-service/internal/domain"
	"github.com/vyzio/finance-service/internal/store"
)

type reconcilerRepoStub struct {
	store.Repository

	existing *domain.WebhookEvent

	inserted        *domain.WebhookEvent
	markedProcessed bool
	failureRecorded string

	confirmedSession string
	confirmErr       error
	completedSession string

	failedPaymentSession string
	pendingOrder         *domain.Order
	updatedOrder         *domain.Order
}

func (s *reconcilerRepoStub) InsertWebhookEvent(ctx context.Context, event *domain.WebhookEvent) (bool, *domain.WebhookEvent, error) {
	if s.existing != nil {
		return false, s.existing, nil
	}
	copied := *event
	s.inserted = &copied
	return true, nil, nil
}

func (s *reconcilerRepoStub) MarkWebhookEventProcessed(ctx context.Context, eventID uuid.UUID) error {
	s.markedProcessed = true
	return nil
}

func (s *reconcilerRepoStub) RecordWebhookEventFailure(ctx context.Context, eventID uuid.UUID, errorMessage string) error {
	s.failureRecorded = errorMessage
	return nil
}

func (s *reconcilerRepoStub) ConfirmOrderBySessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	if s.confirmErr != nil {
		return nil, s.confirmErr
	}
	s.confirmedSession = sessionID
	return &domain.Order{
		ID:          uuid.New(),
		SellerID:    uuid.New(),
		OrderNumber: "VYZ-2608-ABC123",
		ItemPrice:   4999,
		Status:      domain.OrderConfirmed,
	}, nil
}

func (s *reconcilerRepoStub) MarkPaymentCompleted(ctx context.Context, sessionID string, paymentIntentID, customerID *string) (*domain.Payment, error) {
	s.completedSession = sessionID
	return &domain.Payment{ID: uuid.New()}, nil
}

func (s *reconcilerRepoStub) GetSubscriptionByGatewayID(ctx context.Context, gatewaySubscriptionID string) (*domain.Subscription, error) {
	return nil, store.ErrSubscriptionNotFound
}

func (s *reconcilerRepoStub) MarkPaymentFailed(ctx context.Context, sessionID string) (*domain.Payment, error) {
	s.failedPaymentSession = sessionID
	return &domain.Payment{ID: uuid.New(), Status: domain.PaymentFailed}, nil
}

func (s *reconcilerRepoStub) GetOrderBySessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	if s.pendingOrder == nil {
		return nil, store.ErrOrderNotFound
	}
	copied := *s.pendingOrder
	return &copied, nil
}

func (s *reconcilerRepoStub) UpdateOrder(ctx context.Context, order *domain.Order) error {
	copied := *order
	s.updatedOrder = &copied
	return nil
}

func newReconcilerTestService(repo store.Repository) *Service {
	svc := NewService(repo, nil, nil, nil, 5, 1000, "https://example.com")
	svc.now = func() time.Time { return time.Date(2026, time.August, 14, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestProcessWebhookEvent_DuplicateProcessedSkipped(t *testing.T) {
	repo := &reconcilerRepoStub{
		existing: &domain.WebhookEvent{
			ID:             uuid.New(),
			GatewayEventID: "evt_1",
			Type:           domain.EventCheckoutSessionCompleted,
			Processed:      true,
		},
	}
	svc := newReconcilerTestService(repo)

	payload := []byte(`{"id":"cs_1","metadata":{"payment_type":"purchase"}}`)
	if err := svc.ProcessWebhookEvent(context.Background(), "evt_1", "checkout.session.completed", payload); err != nil {
		t.Fatalf("ProcessWebhookEvent returned error: %v", err)
	}
	if repo.confirmedSession != "" {
		t.Fatal("expected no side effects for an already-processed event")
	}
	if repo.markedProcessed {
		t.Fatal("expected duplicate event not to be re-marked")
	}
}

func TestProcessWebhookEvent_RetriesFailedEvent(t *testing.T) {
	repo := &reconcilerRepoStub{
		existing: &domain.WebhookEvent{
			ID:             uuid.New(),
			GatewayEventID: "evt_2",
			Type:           domain.EventCheckoutSessionCompleted,
			Payload:        []byte(`{"id":"cs_2","metadata":{"payment_type":"purchase"}}`),
			Processed:      false,
			RetryCount:     1,
		},
	}
	svc := newReconcilerTestService(repo)

	// Payload is read from the stored row, the redelivered body is ignored.
	if err := svc.ProcessWebhookEvent(context.Background(), "evt_2", "checkout.session.completed", []byte(`{}`)); err != nil {
		t.Fatalf("ProcessWebhookEvent returned error: %v", err)
	}
	if repo.confirmedSession != "cs_2" {
		t.Fatalf("expected stored payload to drive the retry, got session %q", repo.confirmedSession)
	}
	if !repo.markedProcessed {
		t.Fatal("expected successful retry to mark the event processed")
	}
}

func TestProcessWebhookEvent_UnhandledTypeAcknowledged(t *testing.T) {
	repo := &reconcilerRepoStub{}
	svc := newReconcilerTestService(repo)

	if err := svc.ProcessWebhookEvent(context.Background(), "evt_3", "charge.refunded", []byte(`{}`)); err != nil {
		t.Fatalf("ProcessWebhookEvent returned error: %v", err)
	}
	if !repo.markedProcessed {
		t.Fatal("expected unhandled event type to be marked processed")
	}
}

func TestProcessWebhookEvent_PurchaseCheckoutCompleted(t *testing.T) {
	repo := &reconcilerRepoStub{}
	svc := newReconcilerTestService(repo)

	payload := []byte(`{"id":"cs_3","payment_intent":"pi_1","metadata":{"payment_type":"purchase"}}`)
	if err := svc.ProcessWebhookEvent(context.Background(), "evt_4", "checkout.session.completed", payload); err != nil {
		t.Fatalf("ProcessWebhookEvent returned error: %v", err)
	}
	if repo.confirmedSession != "cs_3" {
		t.Fatalf("expected order confirmed for session cs_3, got %q", repo.confirmedSession)
	}
	if repo.completedSession != "cs_3" {
		t.Fatalf("expected payment audit closed for session cs_3, got %q", repo.completedSession)
	}
	if !repo.markedProcessed {
		t.Fatal("expected event marked processed")
	}
}

func TestProcessWebhookEvent_FailureRecordedAndReturned(t *testing.T) {
	repo := &reconcilerRepoStub{confirmErr: errors.New("order lookup failed")}
	svc := newReconcilerTestService(repo)

	payload := []byte(`{"id":"cs_4","metadata":{"payment_type":"purchase"}}`)
	err := svc.ProcessWebhookEvent(context.Background(), "evt_5", "checkout.session.completed", payload)
	if err == nil {
		t.Fatal("expected error so the gateway redelivers")
	}
	if repo.failureRecorded == "" {
		t.Fatal("expected failure recorded on the event row")
	}
	if repo.markedProcessed {
		t.Fatal("expected failed event not to be marked processed")
	}
}

func TestProcessWebhookEvent_ExpiredSessionCancelsPendingOrder(t *testing.T) {
	repo := &reconcilerRepoStub{
		pendingOrder: &domain.Order{ID: uuid.New(), Status: domain.OrderPending, SellerAmount: 4750},
	}
	svc := newReconcilerTestService(repo)

	payload := []byte(`{"id":"cs_5","metadata":{"payment_type":"purchase"}}`)
	if err := svc.ProcessWebhookEvent(context.Background(), "evt_9", "checkout.session.expired", payload); err != nil {
		t.Fatalf("ProcessWebhookEvent returned error: %v", err)
	}
	if repo.failedPaymentSession != "cs_5" {
		t.Fatalf("expected payment marked failed for session cs_5, got %q", repo.failedPaymentSession)
	}
	if repo.updatedOrder == nil || repo.updatedOrder.Status != domain.OrderCancelled {
		t.Fatal("expected the pending order cancelled")
	}
	if repo.updatedOrder.CancellationReason == nil || *repo.updatedOrder.CancellationReason == "" {
		t.Fatal("expected a cancellation reason")
	}
}

func TestProcessWebhookEvent_ExpiredSessionLeavesConfirmedOrder(t *testing.T) {
	repo := &reconcilerRepoStub{
		pendingOrder: &domain.Order{ID: uuid.New(), Status: domain.OrderConfirmed},
	}
	svc := newReconcilerTestService(repo)

	payload := []byte(`{"id":"cs_6","metadata":{"payment_type":"purchase"}}`)
	if err := svc.ProcessWebhookEvent(context.Background(), "evt_10", "checkout.session.expired", payload); err != nil {
		t.Fatalf("ProcessWebhookEvent returned error: %v", err)
	}
	if repo.updatedOrder != nil {
		t.Fatal("expected a confirmed order to be left alone")
	}
}

func TestProcessWebhookEvent_InvoiceWithoutSubscriptionIgnored(t *testing.T) {
	repo := &reconcilerRepoStub{}
	svc := newReconcilerTestService(repo)

	payload := []byte(`{"id":"in_1","amount_paid":1500}`)
	if err := svc.ProcessWebhookEvent(context.Background(), "evt_6", "invoice.payment_succeeded", payload); err != nil {
		t.Fatalf("ProcessWebhookEvent returned error: %v", err)
	}
	if !repo.markedProcessed {
		t.Fatal("expected one-off invoice to be acknowledged")
	}
}

func TestProcessWebhookEvent_UnknownSubscriptionDeletedAcknowledged(t *testing.T) {
	repo := &reconcilerRepoStub{}
	svc := newReconcilerTestService(repo)

	payload := []byte(`{"id":"sub_gone","status":"canceled"}`)
	if err := svc.ProcessWebhookEvent(context.Background(), "evt_7", "customer.subscription.deleted", payload); err != nil {
		t.Fatalf("ProcessWebhookEvent returned error: %v", err)
	}
	if !repo.markedProcessed {
		t.Fatal("expected deletion of an unknown subscription to be acknowledged")
	}
}

func TestProcessWebhookEvent_UnregisteredSubscriptionUpdateAcknowledged(t *testing.T) {
	repo := &reconcilerRepoStub{}
	svc := newReconcilerTestService(repo)

	payload := []byte(`{"id":"sub_early","status":"active","current_period_start":1765000000,"current_period_end":1767592000}`)
	if err := svc.ProcessWebhookEvent(context.Background(), "evt_8", "customer.subscription.created", payload); err != nil {
		t.Fatalf("ProcessWebhookEvent returned error: %v", err)
	}
	if !repo.markedProcessed {
		t.Fatal("expected early subscription event to be acknowledged")
	}
}
