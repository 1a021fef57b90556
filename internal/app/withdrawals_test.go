package app

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/vyzio/finance-service/internal/domain"
	"github.com/vyzio/finance-service/internal/store"
)

type withdrawalRepoStub struct {
	store.Repository

	wallet *domain.Wallet

	createdWithdrawal *domain.Withdrawal
	createErr         error

	approveDescription string
	approveErr         error
}

func (s *withdrawalRepoStub) GetOrCreateWallet(ctx context.Context, sellerID uuid.UUID) (*domain.Wallet, error) {
	copied := *s.wallet
	return &copied, nil
}

func (s *withdrawalRepoStub) CreateWithdrawal(ctx context.Context, withdrawal *domain.Withdrawal) error {
	if s.createErr != nil {
		return s.createErr
	}
	copied := *withdrawal
	s.createdWithdrawal = &copied
	return nil
}

func (s *withdrawalRepoStub) ApproveWithdrawal(ctx context.Context, withdrawalID uuid.UUID, adminID uuid.UUID, transferReference string, debitDescription string) (*domain.Withdrawal, error) {
	if s.approveErr != nil {
		return nil, s.approveErr
	}
	s.approveDescription = debitDescription
	return &domain.Withdrawal{ID: withdrawalID, SellerID: uuid.New(), Amount: 5000, Status: domain.WithdrawalCompleted}, nil
}

func bankedWallet(balance int64) *domain.Wallet {
	bank := "Credit Mutuel"
	iban := "FR7630001007941234567890185"
	bic := "CMCIFRPP"
	holder := "Jean Dupont"
	return &domain.Wallet{
		ID:                uuid.New(),
		SellerID:          uuid.New(),
		Balance:           balance,
		BankName:          &bank,
		IBAN:              &iban,
		BIC:               &bic,
		AccountHolderName: &holder,
	}
}

func TestRequestWithdrawal_ValidationOrder(t *testing.T) {
	tests := []struct {
		name    string
		amount  int64
		wallet  *domain.Wallet
		wantErr error
	}{
		{
			name:    "zero amount rejected",
			amount:  0,
			wallet:  bankedWallet(100000),
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "negative amount rejected",
			amount:  -500,
			wallet:  bankedWallet(100000),
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "insufficient balance wins over minimum",
			amount:  500,
			wallet:  bankedWallet(200),
			wantErr: store.ErrInsufficientFunds,
		},
		{
			name:    "below minimum with sufficient balance",
			amount:  500,
			wallet:  bankedWallet(100000),
			wantErr: ErrBelowMinimumWithdrawal,
		},
		{
			name:   "missing bank details",
			amount: 5000,
			wallet: &domain.Wallet{ID: uuid.New(), SellerID: uuid.New(), Balance: 100000},

			wantErr: ErrBankDetailsMissing,
		},
		{
			name:   "valid request",
			amount: 5000,
			wallet: bankedWallet(100000),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &withdrawalRepoStub{wallet: tt.wallet}
			svc := NewService(repo, nil, nil, nil, 5, 1000, "https://example.com")

			withdrawal, err := svc.RequestWithdrawal(context.Background(), tt.wallet.SellerID, tt.amount)
			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("RequestWithdrawal returned error: %v", err)
			}
			if withdrawal.Status != domain.WithdrawalPending {
				t.Fatalf("expected pending status, got %s", withdrawal.Status)
			}
		})
	}
}

func TestRequestWithdrawal_SnapshotsBankDetails(t *testing.T) {
	wallet := bankedWallet(100000)
	repo := &withdrawalRepoStub{wallet: wallet}
	svc := NewService(repo, nil, nil, nil, 5, 1000, "https://example.com")

	withdrawal, err := svc.RequestWithdrawal(context.Background(), wallet.SellerID, 5000)
	if err != nil {
		t.Fatalf("RequestWithdrawal returned error: %v", err)
	}
	if withdrawal.BankSnapshot.IBAN != *wallet.IBAN {
		t.Fatalf("expected IBAN snapshot %q, got %q", *wallet.IBAN, withdrawal.BankSnapshot.IBAN)
	}
	if withdrawal.BankSnapshot.AccountHolderName != *wallet.AccountHolderName {
		t.Fatal("expected account holder snapshot")
	}
}

func TestRequestWithdrawal_PropagatesDuplicateError(t *testing.T) {
	wallet := bankedWallet(100000)
	repo := &withdrawalRepoStub{wallet: wallet, createErr: store.ErrDuplicateWithdrawal}
	svc := NewService(repo, nil, nil, nil, 5, 1000, "https://example.com")

	if _, err := svc.RequestWithdrawal(context.Background(), wallet.SellerID, 5000); err != store.ErrDuplicateWithdrawal {
		t.Fatalf("expected ErrDuplicateWithdrawal, got %v", err)
	}
}

func TestApproveWithdrawal_DebitDescription(t *testing.T) {
	repo := &withdrawalRepoStub{}
	svc := NewService(repo, nil, nil, nil, 5, 1000, "https://example.com")

	withdrawalID := uuid.New()
	if _, err := svc.ApproveWithdrawal(context.Background(), withdrawalID, uuid.New(), "SEPA-REF-42"); err != nil {
		t.Fatalf("ApproveWithdrawal returned error: %v", err)
	}

	shortID := strings.ReplaceAll(withdrawalID.String(), "-", "")[:8]
	want := "Retrait #" + shortID
	if repo.approveDescription != want {
		t.Fatalf("expected debit description %q, got %q", want, repo.approveDescription)
	}
}

func TestApproveWithdrawal_PropagatesNotPending(t *testing.T) {
	repo := &withdrawalRepoStub{approveErr: store.ErrWithdrawalNotPending}
	svc := NewService(repo, nil, nil, nil, 5, 1000, "https://example.com")

	if _, err := svc.ApproveWithdrawal(context.Background(), uuid.New(), uuid.New(), "ref"); err != store.ErrWithdrawalNotPending {
		t.Fatalf("expected ErrWithdrawalNotPending, got %v", err)
	}
}
