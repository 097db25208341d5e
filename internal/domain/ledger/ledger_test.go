package ledger

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/cardforge/cardforge/internal/domain/exchange"
	"github.com/cardforge/cardforge/internal/domain/exchange/mock"
	"github.com/cardforge/cardforge/internal/gateways/database/models"
	"go.uber.org/mock/gomock"
)

func Test_Client_Debit(t *testing.T) {
	type args struct {
		amount   uint64
		currency models.Currency
		key      string
	}
	tests := []struct {
		name    string
		args    args
		setup   func(repo *mock.MockAccountRepository)
		want    uint64
		wantErr error
	}{
		{
			name: "Success",
			args: args{amount: 40, currency: models.CurrencyGold, key: "k1"},
			setup: func(repo *mock.MockAccountRepository) {
				repo.EXPECT().FindEntry(gomock.Any(), "k1", "acc-1", models.CurrencyGold, models.LedgerDebit).Return(nil, nil)
				repo.EXPECT().GetForUpdate(gomock.Any(), "acc-1").Return(&models.Account{ID: "acc-1", GoldBalance: 100}, nil)
				repo.EXPECT().UpdateBalances(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, a *models.Account) error {
					if a.GoldBalance != 60 {
						t.Errorf("UpdateBalances() gold = %d, want 60", a.GoldBalance)
					}
					return nil
				})
				repo.EXPECT().InsertEntry(gomock.Any(), gomock.Any()).Return(nil)
			},
			want: 60,
		},
		{
			name: "Insufficient",
			args: args{amount: 101, currency: models.CurrencyGold, key: "k2"},
			setup: func(repo *mock.MockAccountRepository) {
				repo.EXPECT().FindEntry(gomock.Any(), "k2", "acc-1", models.CurrencyGold, models.LedgerDebit).Return(nil, nil)
				repo.EXPECT().GetForUpdate(gomock.Any(), "acc-1").Return(&models.Account{ID: "acc-1", GoldBalance: 100}, nil)
			},
			wantErr: exchange.ErrInsufficientFunds,
		},
		{
			name: "Replay",
			args: args{amount: 40, currency: models.CurrencyGems, key: "k3"},
			setup: func(repo *mock.MockAccountRepository) {
				repo.EXPECT().FindEntry(gomock.Any(), "k3", "acc-1", models.CurrencyGems, models.LedgerDebit).
					Return(&models.LedgerEntry{BalanceAfter: 7}, nil)
			},
			want: 7,
		},
		{
			name:    "Zero amount",
			args:    args{amount: 0, currency: models.CurrencyGold, key: "k4"},
			setup:   func(repo *mock.MockAccountRepository) {},
			wantErr: exchange.ErrInvalid,
		},
		{
			name:    "Unknown currency",
			args:    args{amount: 1, currency: "silver", key: "k5"},
			setup:   func(repo *mock.MockAccountRepository) {},
			wantErr: exchange.ErrInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := mock.NewMockAccountRepository(gomock.NewController(t))
			tt.setup(repo)

			got, err := New(repo).Debit(context.Background(), "acc-1", tt.args.currency, tt.args.amount, tt.args.key)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Client.Debit() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Client.Debit() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Client.Debit() got = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_Client_Debit_InsufficientDetails(t *testing.T) {
	repo := mock.NewMockAccountRepository(gomock.NewController(t))
	repo.EXPECT().FindEntry(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
	repo.EXPECT().GetForUpdate(gomock.Any(), "acc-1").Return(&models.Account{ID: "acc-1", GemBalance: 3}, nil)

	_, err := New(repo).Debit(context.Background(), "acc-1", models.CurrencyGems, 10, "k")

	var funds *exchange.InsufficientFundsError
	if !errors.As(err, &funds) {
		t.Fatalf("Client.Debit() error = %v, want InsufficientFundsError", err)
	}
	if funds.Required != 10 || funds.Available != 3 || funds.Currency != models.CurrencyGems {
		t.Errorf("Client.Debit() details = %+v", funds)
	}
}

func Test_Client_Credit(t *testing.T) {
	tests := []struct {
		name    string
		balance uint64
		amount  uint64
		want    uint64
		wantErr bool
	}{
		{name: "Success", balance: 10, amount: 5, want: 15},
		{name: "Overflow", balance: math.MaxUint64 - 1, amount: 2, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := mock.NewMockAccountRepository(gomock.NewController(t))
			repo.EXPECT().FindEntry(gomock.Any(), "k", "acc-2", models.CurrencyGold, models.LedgerCredit).Return(nil, nil)
			repo.EXPECT().GetForUpdate(gomock.Any(), "acc-2").Return(&models.Account{ID: "acc-2", GoldBalance: tt.balance}, nil)
			if !tt.wantErr {
				repo.EXPECT().UpdateBalances(gomock.Any(), gomock.Any()).Return(nil)
				repo.EXPECT().InsertEntry(gomock.Any(), gomock.Any()).Return(nil)
			}

			got, err := New(repo).Credit(context.Background(), "acc-2", models.CurrencyGold, tt.amount, "k")
			if (err != nil) != tt.wantErr {
				t.Errorf("Client.Credit() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("Client.Credit() got = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_Client_GetBalance_NotFound(t *testing.T) {
	repo := mock.NewMockAccountRepository(gomock.NewController(t))
	repo.EXPECT().Get(gomock.Any(), "ghost").Return(nil, exchange.ErrNotFound)

	if _, err := New(repo).GetBalance(context.Background(), "ghost", models.CurrencyGold); !errors.Is(err, exchange.ErrNotFound) {
		t.Errorf("Client.GetBalance() error = %v, want ErrNotFound", err)
	}
}
