package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/payment-core/internal"
	"github.com/frahmantamala/payment-core/internal/core/common/validation"
	"github.com/frahmantamala/payment-core/internal/core/datamodel/wallet"
	paymentpkg "github.com/frahmantamala/payment-core/internal/payment"
)

type Service struct {
	repo      Repository
	payments  PaymentOperator
	txManager paymentpkg.TxManager
	logger    *slog.Logger
}

func NewService(repo Repository, payments PaymentOperator, txManager paymentpkg.TxManager, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		payments:  payments,
		txManager: txManager,
		logger:    logger,
	}
}

// Deposit records a manual deposit and credits the user's wallet. Both
// happen in one database transaction.
func (s *Service) Deposit(ctx context.Context, req DepositRequest) (*DepositResult, error) {
	currency := strings.ToUpper(req.Currency)
	validator := validation.NewValidator()
	validator.Field("user_id", req.UserID).Required()
	validator.Field("amount", req.Amount).PositiveDecimal(internal.ErrCodeInvalidAmount)
	validator.Field("currency", currency).Required().Currency()
	validator.Field("external_reference", req.ExternalReference).MaxLength(255)
	if appErr := validator.Validate(); appErr != nil {
		return nil, appErr
	}

	result := &DepositResult{}
	err := s.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		w, err := s.repo.GetOrCreate(txCtx, req.UserID, currency)
		if err != nil {
			return fmt.Errorf("failed to get wallet: %w", err)
		}
		if w.Currency != currency {
			return internal.ErrCurrencyMismatch
		}

		p, txn, err := s.payments.CreateManualDeposit(txCtx, paymentpkg.ManualDepositRequest{
			UserID:            req.UserID,
			WalletID:          w.ID,
			StaffID:           req.StaffID,
			Currency:          currency,
			Amount:            req.Amount,
			ExternalReference: req.ExternalReference,
		})
		if err != nil {
			return err
		}

		if err := s.repo.Update(txCtx, w, w.Amount.Add(txn.Amount)); err != nil {
			return fmt.Errorf("failed to credit wallet: %w", err)
		}

		result.Wallet = w
		result.Payment = p
		result.Transaction = txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("wallet credited",
		"wallet_id", result.Wallet.ID,
		"payment_id", result.Payment.ID,
		"amount", result.Transaction.Amount.String(),
		"balance", result.Wallet.Amount.String())
	return result, nil
}

// RefundDeposit refunds a deposit payment and debits the wallet it credited.
// A nil amount refunds everything captured. The refund commits on its own so
// a failed attempt stays in the transaction log; the wallet is only debited
// once it succeeded.
func (s *Service) RefundDeposit(ctx context.Context, paymentID string, amount *decimal.Decimal) (*DepositResult, error) {
	p, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.WalletID == nil {
		return nil, internal.NewValidationError("Payment is not linked to a wallet", internal.ErrCodeUnsupportedOperation)
	}
	walletID := *p.WalletID
	if _, err := s.repo.GetByID(ctx, walletID); err != nil {
		return nil, err
	}

	p, txn, err := s.payments.Refund(ctx, paymentID, amount)
	if err != nil {
		return nil, err
	}

	result := &DepositResult{Payment: p, Transaction: txn}
	err = s.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		w, err := s.repo.GetByID(txCtx, walletID)
		if err != nil {
			return err
		}

		balance := w.Amount.Sub(txn.Amount)
		if balance.IsNegative() {
			balance = decimal.Zero
		}
		if err := s.repo.Update(txCtx, w, balance); err != nil {
			return err
		}
		result.Wallet = w
		return nil
	})
	if err != nil {
		s.logger.Error("refund recorded but wallet debit failed",
			"wallet_id", walletID,
			"payment_id", paymentID,
			"transaction_id", txn.ID,
			"error", err)
		return nil, fmt.Errorf("failed to debit wallet: %w", err)
	}

	s.logger.Info("wallet debited",
		"wallet_id", result.Wallet.ID,
		"payment_id", result.Payment.ID,
		"amount", result.Transaction.Amount.String(),
		"balance", result.Wallet.Amount.String())
	return result, nil
}

func (s *Service) GetOrCreate(ctx context.Context, userID, currency string) (*wallet.Wallet, error) {
	if appErr := validation.ValidateCurrency(currency); appErr != nil {
		return nil, appErr
	}
	return s.repo.GetOrCreate(ctx, userID, strings.ToUpper(currency))
}
