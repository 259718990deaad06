package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/payment-core/internal/core/datamodel/payment"
)

// ApplyChargeStatus updates captured amount, charge status and is_active on p
// for a successful transaction and returns the columns it changed.
// It does not touch the store.
func ApplyChargeStatus(p *payment.Payment, txn *payment.Transaction) []string {
	switch txn.Kind {
	case payment.TransactionKindCapture, payment.TransactionKindRefundReversed:
		p.CapturedAmount = p.CapturedAmount.Add(txn.Amount)
		p.IsActive = true
		p.ChargeStatus = payment.ChargeStatusPartiallyCharged
		if !p.ChargeAmount().IsPositive() {
			p.ChargeStatus = payment.ChargeStatusFullyCharged
		}
		return []string{FieldCapturedAmount, FieldIsActive, FieldChargeStatus}

	case payment.TransactionKindVoid:
		p.IsActive = false
		return []string{FieldIsActive}

	case payment.TransactionKindRefund:
		p.CapturedAmount = p.CapturedAmount.Sub(txn.Amount)
		p.ChargeStatus = payment.ChargeStatusPartiallyRefunded
		if !p.CapturedAmount.IsPositive() {
			p.CapturedAmount = decimal.Zero
			p.ChargeStatus = payment.ChargeStatusFullyRefunded
			p.IsActive = false
			return []string{FieldCapturedAmount, FieldChargeStatus, FieldIsActive}
		}
		return []string{FieldCapturedAmount, FieldChargeStatus}

	case payment.TransactionKindPending:
		p.ChargeStatus = payment.ChargeStatusPending
		return []string{FieldChargeStatus}

	case payment.TransactionKindCancel:
		p.ChargeStatus = payment.ChargeStatusCancelled
		p.IsActive = false
		return []string{FieldChargeStatus, FieldIsActive}

	case payment.TransactionKindCaptureFailed:
		if p.ChargeStatus != payment.ChargeStatusPartiallyCharged && p.ChargeStatus != payment.ChargeStatusFullyCharged {
			return nil
		}
		p.CapturedAmount = p.CapturedAmount.Sub(txn.Amount)
		p.ChargeStatus = payment.ChargeStatusPartiallyCharged
		if !p.CapturedAmount.IsPositive() {
			p.ChargeStatus = payment.ChargeStatusNotCharged
		}
		return []string{FieldCapturedAmount, FieldChargeStatus}
	}
	return nil
}

// Reconciler persists the charge status derived from a finished transaction.
type Reconciler struct {
	payments     PaymentRepositoryAPI
	transactions TransactionRepositoryAPI
}

func NewReconciler(payments PaymentRepositoryAPI, transactions TransactionRepositoryAPI) *Reconciler {
	return &Reconciler{payments: payments, transactions: transactions}
}

// Postprocess applies txn to p once. Failed or already processed transactions
// are ignored. An action-required transaction only flags the payment for
// confirmation and stays unprocessed until the follow-up transaction arrives.
func (r *Reconciler) Postprocess(ctx context.Context, p *payment.Payment, txn *payment.Transaction) error {
	if !txn.IsSuccess || txn.IsAlreadyProcessed {
		return nil
	}

	if txn.IsActionRequired {
		p.ToConfirm = true
		if err := r.payments.UpdateFields(ctx, p, FieldToConfirm); err != nil {
			return fmt.Errorf("failed to flag payment for confirmation: %w", err)
		}
		return nil
	}

	var fields []string
	if p.ToConfirm {
		p.ToConfirm = false
		fields = append(fields, FieldToConfirm)
	}
	fields = append(fields, ApplyChargeStatus(p, txn)...)

	if len(fields) > 0 {
		if err := r.payments.UpdateFields(ctx, p, fields...); err != nil {
			return fmt.Errorf("failed to update payment charge status: %w", err)
		}
	}

	if err := r.transactions.MarkProcessed(ctx, txn); err != nil {
		return fmt.Errorf("failed to mark transaction processed: %w", err)
	}
	return nil
}
