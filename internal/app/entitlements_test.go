package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vyzio/finance-service/internal/domain"
	"github.com/vyzio/finance-service/internal/store"
)

type entitlementRepoStub struct {
	store.Repository

	subscription *domain.Subscription
	plan         *domain.SubscriptionPlan
	balance      *domain.CreditBalance

	slotConsumed  bool
	consumeResult bool
	creditUsed    bool

	upserted *domain.Subscription
	updated  *domain.Subscription

	creditGrants []creditGrant
}

type creditGrant struct {
	amount      int
	txType      domain.CreditTransactionType
	description string
}

func (s *entitlementRepoStub) GetSubscriptionByUserID(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	if s.subscription == nil {
		return nil, store.ErrSubscriptionNotFound
	}
	copied := *s.subscription
	return &copied, nil
}

func (s *entitlementRepoStub) GetSubscriptionByGatewayID(ctx context.Context, gatewaySubscriptionID string) (*domain.Subscription, error) {
	if s.subscription == nil {
		return nil, store.ErrSubscriptionNotFound
	}
	copied := *s.subscription
	return &copied, nil
}

func (s *entitlementRepoStub) GetPlanByID(ctx context.Context, planID uuid.UUID) (*domain.SubscriptionPlan, error) {
	if s.plan == nil {
		return nil, store.ErrPlanNotFound
	}
	copied := *s.plan
	return &copied, nil
}

func (s *entitlementRepoStub) GetOrCreateCreditBalance(ctx context.Context, userID uuid.UUID) (*domain.CreditBalance, error) {
	if s.balance == nil {
		return &domain.CreditBalance{ID: uuid.New(), UserID: userID}, nil
	}
	copied := *s.balance
	return &copied, nil
}

func (s *entitlementRepoStub) ConsumeSubscriptionSlot(ctx context.Context, subscriptionID uuid.UUID) (bool, error) {
	s.slotConsumed = true
	return s.consumeResult, nil
}

func (s *entitlementRepoStub) UseCredit(ctx context.Context, userID uuid.UUID, listingID *uuid.UUID) (*domain.CreditBalance, error) {
	if s.balance == nil || s.balance.Balance <= 0 {
		return nil, store.ErrNoCredits
	}
	s.creditUsed = true
	copied := *s.balance
	copied.Balance--
	return &copied, nil
}

func (s *entitlementRepoStub) UpsertSubscription(ctx context.Context, sub *domain.Subscription) error {
	copied := *sub
	s.upserted = &copied
	return nil
}

func (s *entitlementRepoStub) AddCredits(ctx context.Context, userID uuid.UUID, amount int, txType domain.CreditTransactionType, description string) (*domain.CreditBalance, error) {
	s.creditGrants = append(s.creditGrants, creditGrant{amount: amount, txType: txType, description: description})
	balance := 0
	if s.balance != nil {
		balance = s.balance.Balance
	}
	for _, g := range s.creditGrants {
		balance += g.amount
	}
	return &domain.CreditBalance{ID: uuid.New(), UserID: userID, Balance: balance}, nil
}

func (s *entitlementRepoStub) UpdateSubscription(ctx context.Context, sub *domain.Subscription) error {
	copied := *sub
	s.updated = &copied
	return nil
}

func newEntitlementTestService(repo store.Repository) *Service {
	svc := NewService(repo, nil, nil, nil, 5, 1000, "https://example.com")
	svc.now = func() time.Time { return time.Date(2026, time.August, 14, 12, 0, 0, 0, time.UTC) }
	return svc
}

func activeSubscription(planID uuid.UUID) *domain.Subscription {
	return &domain.Subscription{
		ID:     uuid.New(),
		UserID: uuid.New(),
		PlanID: planID,
		Status: domain.SubscriptionActive,
	}
}

func TestConsumeListingSlot_PrefersSubscriptionQuota(t *testing.T) {
	planID := uuid.New()
	repo := &entitlementRepoStub{
		subscription:  activeSubscription(planID),
		consumeResult: true,
		balance:       &domain.CreditBalance{ID: uuid.New(), Balance: 3},
	}
	svc := newEntitlementTestService(repo)

	if err := svc.ConsumeListingSlot(context.Background(), repo.subscription.UserID, uuid.New()); err != nil {
		t.Fatalf("ConsumeListingSlot returned error: %v", err)
	}
	if !repo.slotConsumed {
		t.Fatal("expected subscription quota to be consumed")
	}
	if repo.creditUsed {
		t.Fatal("expected credits to be untouched when quota is available")
	}
}

func TestConsumeListingSlot_FallsBackToCredits(t *testing.T) {
	planID := uuid.New()
	repo := &entitlementRepoStub{
		subscription:  activeSubscription(planID),
		consumeResult: false, // quota exhausted
		balance:       &domain.CreditBalance{ID: uuid.New(), Balance: 2},
	}
	svc := newEntitlementTestService(repo)

	if err := svc.ConsumeListingSlot(context.Background(), repo.subscription.UserID, uuid.New()); err != nil {
		t.Fatalf("ConsumeListingSlot returned error: %v", err)
	}
	if !repo.creditUsed {
		t.Fatal("expected fallback to listing credits")
	}
}

func TestConsumeListingSlot_ExhaustedWithoutQuotaOrCredits(t *testing.T) {
	repo := &entitlementRepoStub{}
	svc := newEntitlementTestService(repo)

	if err := svc.ConsumeListingSlot(context.Background(), uuid.New(), uuid.New()); err != ErrEntitlementExhausted {
		t.Fatalf("expected ErrEntitlementExhausted, got %v", err)
	}
}

func TestConsumeListingSlot_IgnoresInactiveSubscription(t *testing.T) {
	sub := activeSubscription(uuid.New())
	sub.Status = domain.SubscriptionPastDue
	repo := &entitlementRepoStub{
		subscription: sub,
		balance:      &domain.CreditBalance{ID: uuid.New(), Balance: 1},
	}
	svc := newEntitlementTestService(repo)

	if err := svc.ConsumeListingSlot(context.Background(), sub.UserID, uuid.New()); err != nil {
		t.Fatalf("ConsumeListingSlot returned error: %v", err)
	}
	if repo.slotConsumed {
		t.Fatal("expected past_due subscription to be skipped")
	}
	if !repo.creditUsed {
		t.Fatal("expected credits to cover the slot")
	}
}

func TestGetEntitlements_UnlimitedPlan(t *testing.T) {
	planID := uuid.New()
	repo := &entitlementRepoStub{
		subscription: activeSubscription(planID),
		plan: &domain.SubscriptionPlan{
			ID:          planID,
			Name:        "business",
			MaxListings: domain.UnlimitedListings,
		},
	}
	svc := newEntitlementTestService(repo)

	view, err := svc.GetEntitlements(context.Background(), repo.subscription.UserID)
	if err != nil {
		t.Fatalf("GetEntitlements returned error: %v", err)
	}
	if !view.CanCreateListing {
		t.Fatal("expected unlimited plan to allow listing creation")
	}
	if view.ListingsRemaining != nil {
		t.Fatal("expected nil ListingsRemaining for unlimited plan")
	}
}

func TestGetEntitlements_QuotaExhaustedFallsBackToCredits(t *testing.T) {
	planID := uuid.New()
	sub := activeSubscription(planID)
	sub.ListingsUsed = 5
	repo := &entitlementRepoStub{
		subscription: sub,
		plan:         &domain.SubscriptionPlan{ID: planID, Name: "basic", MaxListings: 5},
		balance:      &domain.CreditBalance{ID: uuid.New(), Balance: 2},
	}
	svc := newEntitlementTestService(repo)

	view, err := svc.GetEntitlements(context.Background(), sub.UserID)
	if err != nil {
		t.Fatalf("GetEntitlements returned error: %v", err)
	}
	if view.ListingsRemaining == nil || *view.ListingsRemaining != 0 {
		t.Fatal("expected zero remaining listings")
	}
	if !view.CanCreateListing {
		t.Fatal("expected credits to keep listing creation possible")
	}
	if view.CreditBalance != 2 {
		t.Fatalf("expected credit balance 2, got %d", view.CreditBalance)
	}
}

func TestGetEntitlements_NothingAvailable(t *testing.T) {
	repo := &entitlementRepoStub{}
	svc := newEntitlementTestService(repo)

	view, err := svc.GetEntitlements(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("GetEntitlements returned error: %v", err)
	}
	if view.CanCreateListing {
		t.Fatal("expected listing creation to be blocked")
	}
	if view.Reason == "" {
		t.Fatal("expected a reason when listing creation is blocked")
	}
}

func TestActivateSubscription_PeriodEnds(t *testing.T) {
	tests := []struct {
		name     string
		period   domain.BillingPeriod
		wantDays int
	}{
		{name: "monthly plan", period: domain.BillingMonthly, wantDays: 30},
		{name: "yearly plan", period: domain.BillingYearly, wantDays: 365},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			planID := uuid.New()
			repo := &entitlementRepoStub{
				plan: &domain.SubscriptionPlan{ID: planID, Name: "pro", BillingPeriod: tt.period, MaxListings: 20},
			}
			svc := newEntitlementTestService(repo)

			sub, err := svc.ActivateSubscription(context.Background(), uuid.New(), planID, "sub_123", "cus_456")
			if err != nil {
				t.Fatalf("ActivateSubscription returned error: %v", err)
			}
			wantEnd := sub.CurrentPeriodStart.Add(time.Duration(tt.wantDays) * 24 * time.Hour)
			if !sub.CurrentPeriodEnd.Equal(wantEnd) {
				t.Fatalf("expected period end %v, got %v", wantEnd, sub.CurrentPeriodEnd)
			}
			if sub.ListingsUsed != 0 || sub.BoostsUsed != 0 {
				t.Fatal("expected fresh usage counters")
			}
			if repo.upserted == nil {
				t.Fatal("expected subscription to be upserted")
			}
		})
	}
}

func TestRenewSubscriptionPeriod_ResetsCounters(t *testing.T) {
	planID := uuid.New()
	sub := activeSubscription(planID)
	sub.Status = domain.SubscriptionPastDue
	sub.ListingsUsed = 7
	sub.BoostsUsed = 2
	repo := &entitlementRepoStub{
		subscription: sub,
		plan:         &domain.SubscriptionPlan{ID: planID, Name: "pro", BillingPeriod: domain.BillingMonthly},
	}
	svc := newEntitlementTestService(repo)

	renewed, err := svc.RenewSubscriptionPeriod(context.Background(), "sub_123")
	if err != nil {
		t.Fatalf("RenewSubscriptionPeriod returned error: %v", err)
	}
	if renewed.Status != domain.SubscriptionActive {
		t.Fatalf("expected active status after renewal, got %s", renewed.Status)
	}
	if renewed.ListingsUsed != 0 || renewed.BoostsUsed != 0 {
		t.Fatal("expected usage counters reset on renewal")
	}
}

func TestSyncSubscriptionFromGateway_StatusMap(t *testing.T) {
	tests := []struct {
		gateway string
		want    domain.SubscriptionStatus
	}{
		{gateway: "active", want: domain.SubscriptionActive},
		{gateway: "trialing", want: domain.SubscriptionTrialing},
		{gateway: "past_due", want: domain.SubscriptionPastDue},
		{gateway: "unpaid", want: domain.SubscriptionPastDue},
		{gateway: "canceled", want: domain.SubscriptionCancelled},
		{gateway: "paused", want: domain.SubscriptionPaused},
	}

	for _, tt := range tests {
		t.Run(tt.gateway, func(t *testing.T) {
			repo := &entitlementRepoStub{subscription: activeSubscription(uuid.New())}
			svc := newEntitlementTestService(repo)

			sub, err := svc.SyncSubscriptionFromGateway(context.Background(), "sub_123", tt.gateway, time.Time{}, time.Time{}, false)
			if err != nil {
				t.Fatalf("SyncSubscriptionFromGateway returned error: %v", err)
			}
			if sub.Status != tt.want {
				t.Fatalf("gateway status %q: expected %s, got %s", tt.gateway, tt.want, sub.Status)
			}
		})
	}
}

func TestSyncSubscriptionFromGateway_UnknownStatusKeepsCurrent(t *testing.T) {
	repo := &entitlementRepoStub{subscription: activeSubscription(uuid.New())}
	svc := newEntitlementTestService(repo)

	sub, err := svc.SyncSubscriptionFromGateway(context.Background(), "sub_123", "incomplete_expired", time.Time{}, time.Time{}, false)
	if err != nil {
		t.Fatalf("SyncSubscriptionFromGateway returned error: %v", err)
	}
	if sub.Status != domain.SubscriptionActive {
		t.Fatalf("expected unknown status to leave subscription untouched, got %s", sub.Status)
	}
}

func TestGrantCredits_SplitsPurchaseAndBonus(t *testing.T) {
	repo := &entitlementRepoStub{}
	svc := newEntitlementTestService(repo)

	pack := &domain.CreditPack{ID: uuid.New(), Name: "10 annonces", Credits: 10, BonusCredits: 2}
	balance, err := svc.GrantCredits(context.Background(), uuid.New(), pack)
	if err != nil {
		t.Fatalf("GrantCredits returned error: %v", err)
	}
	if len(repo.creditGrants) != 2 {
		t.Fatalf("expected 2 credit grants, got %d", len(repo.creditGrants))
	}
	purchase, bonus := repo.creditGrants[0], repo.creditGrants[1]
	if purchase.txType != domain.CreditTxPurchase || purchase.amount != 10 || purchase.description != "Pack 10 annonces" {
		t.Fatalf("unexpected purchase grant: %+v", purchase)
	}
	if bonus.txType != domain.CreditTxBonus || bonus.amount != 2 || bonus.description != "Bonus pack 10 annonces" {
		t.Fatalf("unexpected bonus grant: %+v", bonus)
	}
	if balance.Balance != 12 {
		t.Fatalf("expected balance 12, got %d", balance.Balance)
	}
}

func TestGrantCredits_NoBonusSingleGrant(t *testing.T) {
	repo := &entitlementRepoStub{}
	svc := newEntitlementTestService(repo)

	pack := &domain.CreditPack{ID: uuid.New(), Name: "1 annonce", Credits: 1}
	if _, err := svc.GrantCredits(context.Background(), uuid.New(), pack); err != nil {
		t.Fatalf("GrantCredits returned error: %v", err)
	}
	if len(repo.creditGrants) != 1 {
		t.Fatalf("expected a single grant, got %d", len(repo.creditGrants))
	}
}

func TestCancelSubscriptionByGatewayID_SetsEndsAt(t *testing.T) {
	repo := &entitlementRepoStub{subscription: activeSubscription(uuid.New())}
	svc := newEntitlementTestService(repo)

	sub, err := svc.CancelSubscriptionByGatewayID(context.Background(), "sub_123")
	if err != nil {
		t.Fatalf("CancelSubscriptionByGatewayID returned error: %v", err)
	}
	if sub.Status != domain.SubscriptionCancelled {
		t.Fatalf("expected cancelled status, got %s", sub.Status)
	}
	if sub.EndsAt == nil || !sub.EndsAt.Equal(svc.now()) {
		t.Fatal("expected EndsAt to be set to the cancellation time")
	}
}
