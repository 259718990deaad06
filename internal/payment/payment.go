package payment

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/payment-core/internal/core/datamodel/payment"
)

type PaymentFilter struct {
	ID           string
	Gateway      string
	PSPReference string
	UserID       string
	WalletID     string
	PaymentType  payment.PaymentType
	ChargeStatus payment.ChargeStatus
}

// TransactionFilter matches transactions of one payment. Nil pointers are not filtered on.
type TransactionFilter struct {
	PaymentID        string
	Kind             payment.TransactionKind
	IsSuccess        *bool
	IsActionRequired *bool
	Token            *string
	Amount           *decimal.Decimal
	Currency         string
}

type SortOrder int

const (
	OldestFirst SortOrder = iota
	NewestFirst
)

// PaymentRepositoryAPI is the PaymentRecord store. GetByID and GetByIDForUpdate
// return internal.ErrPaymentNotFound for unknown ids, First returns nil, nil.
type PaymentRepositoryAPI interface {
	Create(ctx context.Context, p *payment.Payment) error
	GetByID(ctx context.Context, id string) (*payment.Payment, error)
	GetByIDForUpdate(ctx context.Context, id string) (*payment.Payment, error)
	First(ctx context.Context, filter PaymentFilter) (*payment.Payment, error)
	UpdateFields(ctx context.Context, p *payment.Payment, fields ...string) error
	List(ctx context.Context, filter PaymentFilter, offset, limit int) ([]*payment.Payment, error)
}

// TransactionRepositoryAPI is the append-only transaction log.
type TransactionRepositoryAPI interface {
	Create(ctx context.Context, t *payment.Transaction) error
	GetByID(ctx context.Context, id int64) (*payment.Transaction, error)
	First(ctx context.Context, filter TransactionFilter, order SortOrder) (*payment.Transaction, error)
	ListByPaymentID(ctx context.Context, paymentID string) ([]*payment.Transaction, error)
	MarkProcessed(ctx context.Context, t *payment.Transaction) error
}

// TxManager runs fn inside one database transaction. Repositories called with
// the ctx handed to fn join that transaction.
type TxManager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Payment columns written by the pipeline.
const (
	FieldCapturedAmount    = "captured_amount"
	FieldChargeStatus      = "charge_status"
	FieldIsActive          = "is_active"
	FieldToConfirm         = "to_confirm"
	FieldPSPReference      = "psp_reference"
	FieldCCBrand           = "cc_brand"
	FieldCCFirstDigits     = "cc_first_digits"
	FieldCCLastDigits      = "cc_last_digits"
	FieldCCExpMonth        = "cc_exp_month"
	FieldCCExpYear         = "cc_exp_year"
	FieldPaymentMethodType = "payment_method_type"
	FieldPrivateMetadata   = "private_metadata"
)

func boolPtr(b bool) *bool {
	return &b
}

func stringPtr(s string) *string {
	return &s
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
