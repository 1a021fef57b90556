package app

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vyzio/finance-service/internal/domain"
	"github.com/vyzio/finance-service/internal/store"
)

type orderRepoStub struct {
	store.Repository

	order *domain.Order

	createdOrder  *domain.Order
	updatedOrder  *domain.Order
	releaseCalled bool
	releaseDesc   string
	released      bool
	pendingDelta  int64
}

func (s *orderRepoStub) GetWalletBySellerID(ctx context.Context, sellerID uuid.UUID) (*domain.Wallet, error) {
	return &domain.Wallet{ID: uuid.New(), SellerID: sellerID}, nil
}

func (s *orderRepoStub) AddPendingBalance(ctx context.Context, walletID uuid.UUID, amount int64) error {
	s.pendingDelta += amount
	return nil
}

func (s *orderRepoStub) CreateOrder(ctx context.Context, order *domain.Order) error {
	copied := *order
	s.createdOrder = &copied
	return nil
}

func (s *orderRepoStub) GetOrderByID(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	if s.order == nil {
		return nil, store.ErrOrderNotFound
	}
	copied := *s.order
	return &copied, nil
}

func (s *orderRepoStub) UpdateOrder(ctx context.Context, order *domain.Order) error {
	copied := *order
	s.updatedOrder = &copied
	return nil
}

func (s *orderRepoStub) ReleaseOrderFunds(ctx context.Context, orderID uuid.UUID, description string) (*domain.Order, bool, error) {
	s.releaseCalled = true
	s.releaseDesc = description
	copied := *s.order
	if copied.FundsReleased {
		return &copied, false, nil
	}
	copied.FundsReleased = true
	copied.BuyerConfirmedReceipt = true
	copied.Status = domain.OrderCompleted
	s.released = true
	s.order = &copied
	return &copied, true, nil
}

func newOrderTestService(repo store.Repository) *Service {
	svc := NewService(repo, nil, nil, nil, 5, 1000, "https://example.com")
	svc.now = func() time.Time { return time.Date(2026, time.August, 14, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestCreateOrder_FeeSplit(t *testing.T) {
	repo := &orderRepoStub{}
	svc := newOrderTestService(repo)

	order, err := svc.CreateOrder(context.Background(), uuid.New(), domain.CreateOrderRequest{
		SellerID:  uuid.New(),
		ListingID: uuid.New(),
		ItemPrice: 4999,
	})
	if err != nil {
		t.Fatalf("CreateOrder returned error: %v", err)
	}
	// 5% of 4999 floors to 249.
	if order.PlatformFee != 249 {
		t.Fatalf("expected platform fee 249, got %d", order.PlatformFee)
	}
	if order.SellerAmount != 4750 {
		t.Fatalf("expected seller amount 4750, got %d", order.SellerAmount)
	}
	if order.PlatformFee+order.SellerAmount != order.ItemPrice {
		t.Fatalf("fee split does not add up: %d + %d != %d", order.PlatformFee, order.SellerAmount, order.ItemPrice)
	}
	if order.Status != domain.OrderPending {
		t.Fatalf("expected new order to be pending, got %s", order.Status)
	}
}

func TestCreateOrder_NumberFormat(t *testing.T) {
	repo := &orderRepoStub{}
	svc := newOrderTestService(repo)

	order, err := svc.CreateOrder(context.Background(), uuid.New(), domain.CreateOrderRequest{
		SellerID:  uuid.New(),
		ListingID: uuid.New(),
		ItemPrice: 1000,
	})
	if err != nil {
		t.Fatalf("CreateOrder returned error: %v", err)
	}

	// Frozen clock: August 2026 renders as 2608.
	pattern := regexp.MustCompile(`^VYZ-2608-[A-Z0-9]{6}$`)
	if !pattern.MatchString(order.OrderNumber) {
		t.Fatalf("order number %q does not match expected format", order.OrderNumber)
	}
}

func TestCreateOrder_RejectsNonPositivePrice(t *testing.T) {
	svc := newOrderTestService(&orderRepoStub{})

	for _, price := range []int64{0, -500} {
		_, err := svc.CreateOrder(context.Background(), uuid.New(), domain.CreateOrderRequest{
			SellerID:  uuid.New(),
			ListingID: uuid.New(),
			ItemPrice: price,
		})
		if err != ErrInvalidAmount {
			t.Fatalf("price %d: expected ErrInvalidAmount, got %v", price, err)
		}
	}
}

func TestMarkShipped_Transitions(t *testing.T) {
	sellerID := uuid.New()

	tests := []struct {
		name    string
		status  domain.OrderStatus
		wantErr error
	}{
		{name: "pending order can ship", status: domain.OrderPending},
		{name: "confirmed order can ship", status: domain.OrderConfirmed},
		{name: "processing order can ship", status: domain.OrderProcessing},
		{name: "shipped order cannot ship again", status: domain.OrderShipped, wantErr: ErrInvalidOrderState},
		{name: "completed order cannot ship", status: domain.OrderCompleted, wantErr: ErrInvalidOrderState},
		{name: "cancelled order cannot ship", status: domain.OrderCancelled, wantErr: ErrInvalidOrderState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &orderRepoStub{order: &domain.Order{ID: uuid.New(), SellerID: sellerID, BuyerID: uuid.New(), Status: tt.status}}
			svc := newOrderTestService(repo)

			order, err := svc.MarkShipped(context.Background(), repo.order.ID, sellerID)
			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("MarkShipped returned error: %v", err)
			}
			if order.Status != domain.OrderShipped {
				t.Fatalf("expected shipped status, got %s", order.Status)
			}
			if order.ShippedAt == nil {
				t.Fatal("expected ShippedAt to be set")
			}
		})
	}
}

func TestMarkShipped_RejectsNonSeller(t *testing.T) {
	repo := &orderRepoStub{order: &domain.Order{ID: uuid.New(), SellerID: uuid.New(), BuyerID: uuid.New(), Status: domain.OrderConfirmed}}
	svc := newOrderTestService(repo)

	if _, err := svc.MarkShipped(context.Background(), repo.order.ID, uuid.New()); err != ErrNotOrderParticipant {
		t.Fatalf("expected ErrNotOrderParticipant, got %v", err)
	}
}

func TestConfirmReceipt_ReleasesFundsOnce(t *testing.T) {
	buyerID := uuid.New()
	repo := &orderRepoStub{order: &domain.Order{
		ID:           uuid.New(),
		OrderNumber:  "VYZ-2608-ABC123",
		BuyerID:      buyerID,
		SellerID:     uuid.New(),
		Status:       domain.OrderShipped,
		ItemPrice:    5000,
		PlatformFee:  250,
		SellerAmount: 4750,
	}}
	svc := newOrderTestService(repo)

	order, err := svc.ConfirmReceipt(context.Background(), repo.order.ID, buyerID)
	if err != nil {
		t.Fatalf("ConfirmReceipt returned error: %v", err)
	}
	if !repo.released {
		t.Fatal("expected funds to be released")
	}
	if repo.releaseDesc != "Vente #VYZ-2608-ABC123" {
		t.Fatalf("unexpected ledger description %q", repo.releaseDesc)
	}
	if order.Status != domain.OrderCompleted {
		t.Fatalf("expected completed status, got %s", order.Status)
	}

	// Second confirm must be rejected before reaching the release path.
	if _, err := svc.ConfirmReceipt(context.Background(), repo.order.ID, buyerID); err != ErrReceiptAlreadyConfirmed {
		t.Fatalf("expected ErrReceiptAlreadyConfirmed on second confirm, got %v", err)
	}
}

func TestConfirmReceipt_RejectsBeforeShipment(t *testing.T) {
	buyerID := uuid.New()
	repo := &orderRepoStub{order: &domain.Order{ID: uuid.New(), BuyerID: buyerID, SellerID: uuid.New(), Status: domain.OrderConfirmed}}
	svc := newOrderTestService(repo)

	if _, err := svc.ConfirmReceipt(context.Background(), repo.order.ID, buyerID); err != ErrInvalidOrderState {
		t.Fatalf("expected ErrInvalidOrderState, got %v", err)
	}
}

func TestReleaseFunds_NoopWhenAlreadyReleased(t *testing.T) {
	repo := &orderRepoStub{order: &domain.Order{
		ID:            uuid.New(),
		OrderNumber:   "VYZ-2608-XYZ789",
		BuyerID:       uuid.New(),
		SellerID:      uuid.New(),
		Status:        domain.OrderCompleted,
		FundsReleased: true,
	}}
	svc := newOrderTestService(repo)

	order, err := svc.ReleaseFunds(context.Background(), repo.order.ID)
	if err != nil {
		t.Fatalf("ReleaseFunds returned error: %v", err)
	}
	if repo.released {
		t.Fatal("expected no second release")
	}
	if order.FundsReleased {
		t.Fatal("expected funds to stay held on a new order")
	}
}

func TestCancelOrder_Transitions(t *testing.T) {
	buyerID := uuid.New()

	tests := []struct {
		name         string
		status       domain.OrderStatus
		wantErr      error
		wantHoldLift bool
	}{
		{name: "pending order can cancel", status: domain.OrderPending},
		{name: "confirmed order can cancel", status: domain.OrderConfirmed, wantHoldLift: true},
		{name: "shipped order cannot cancel", status: domain.OrderShipped, wantErr: ErrInvalidOrderState},
		{name: "completed order cannot cancel", status: domain.OrderCompleted, wantErr: ErrInvalidOrderState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &orderRepoStub{order: &domain.Order{ID: uuid.New(), BuyerID: buyerID, SellerID: uuid.New(), Status: tt.status, SellerAmount: 4750}}
			svc := newOrderTestService(repo)

			order, err := svc.CancelOrder(context.Background(), repo.order.ID, buyerID, "changed my mind")
			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CancelOrder returned error: %v", err)
			}
			if order.Status != domain.OrderCancelled {
				t.Fatalf("expected cancelled status, got %s", order.Status)
			}
			if order.CancellationReason == nil || *order.CancellationReason != "changed my mind" {
				t.Fatal("expected cancellation reason to be recorded")
			}
			if tt.wantHoldLift && repo.pendingDelta != -4750 {
				t.Fatalf("expected the pending hold lifted, got delta %d", repo.pendingDelta)
			}
			if !tt.wantHoldLift && repo.pendingDelta != 0 {
				t.Fatalf("expected no pending change, got delta %d", repo.pendingDelta)
			}
		})
	}
}

func TestOpenDispute_FlagsManualReviewAfterRelease(t *testing.T) {
	buyerID := uuid.New()
	repo := &orderRepoStub{order: &domain.Order{
		ID:            uuid.New(),
		BuyerID:       buyerID,
		SellerID:      uuid.New(),
		Status:        domain.OrderCompleted,
		FundsReleased: true,
	}}
	svc := newOrderTestService(repo)

	order, err := svc.OpenDispute(context.Background(), repo.order.ID, buyerID, "item damaged")
	if err != nil {
		t.Fatalf("OpenDispute returned error: %v", err)
	}
	if order.Status != domain.OrderDisputed {
		t.Fatalf("expected disputed status, got %s", order.Status)
	}
	if !order.NeedsManualReview {
		t.Fatal("expected dispute after release to be flagged for manual review")
	}
}

func TestOpenDispute_NoManualReviewBeforeRelease(t *testing.T) {
	buyerID := uuid.New()
	repo := &orderRepoStub{order: &domain.Order{ID: uuid.New(), BuyerID: buyerID, SellerID: uuid.New(), Status: domain.OrderShipped}}
	svc := newOrderTestService(repo)

	order, err := svc.OpenDispute(context.Background(), repo.order.ID, buyerID, "never arrived")
	if err != nil {
		t.Fatalf("OpenDispute returned error: %v", err)
	}
	if order.NeedsManualReview {
		t.Fatal("expected no manual review flag before fund release")
	}
}

func TestOpenDispute_RejectsPendingOrder(t *testing.T) {
	buyerID := uuid.New()
	repo := &orderRepoStub{order: &domain.Order{ID: uuid.New(), BuyerID: buyerID, SellerID: uuid.New(), Status: domain.OrderPending}}
	svc := newOrderTestService(repo)

	if _, err := svc.OpenDispute(context.Background(), repo.order.ID, buyerID, "too early"); err != ErrInvalidOrderState {
		t.Fatalf("expected ErrInvalidOrderState, got %v", err)
	}
}
