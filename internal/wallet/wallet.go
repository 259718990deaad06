package wallet

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/payment-core/internal/core/datamodel/payment"
	"github.com/frahmantamala/payment-core/internal/core/datamodel/wallet"
	paymentpkg "github.com/frahmantamala/payment-core/internal/payment"
)

// Repository stores wallet balances. GetOrCreate locks the row for the rest
// of the surrounding transaction.
type Repository interface {
	GetOrCreate(ctx context.Context, userID, currency string) (*wallet.Wallet, error)
	GetByID(ctx context.Context, id string) (*wallet.Wallet, error)
	Update(ctx context.Context, w *wallet.Wallet, amount decimal.Decimal) error
}

// PaymentOperator is the part of the payment orchestrator the wallet needs.
type PaymentOperator interface {
	CreateManualDeposit(ctx context.Context, req paymentpkg.ManualDepositRequest) (*payment.Payment, *payment.Transaction, error)
	Refund(ctx context.Context, paymentID string, amount *decimal.Decimal) (*payment.Payment, *payment.Transaction, error)
	GetPayment(ctx context.Context, paymentID string) (*payment.Payment, error)
}

type DepositRequest struct {
	UserID            string
	StaffID           string
	Currency          string
	Amount            decimal.Decimal
	ExternalReference string
}

type DepositResult struct {
	Wallet      *wallet.Wallet
	Payment     *payment.Payment
	Transaction *payment.Transaction
}
