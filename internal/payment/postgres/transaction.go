package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/frahmantamala/payment-core/internal"
	"github.com/frahmantamala/payment-core/internal/core/datamodel/payment"
	paymentpkg "github.com/frahmantamala/payment-core/internal/payment"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) paymentpkg.TransactionRepositoryAPI {
	return &TransactionRepository{
		db: db,
	}
}

func (r *TransactionRepository) Create(ctx context.Context, t *payment.Transaction) error {
	return ExtractTx(ctx, r.db).Create(t).Error
}

func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*payment.Transaction, error) {
	var t payment.Transaction
	err := ExtractTx(ctx, r.db).Where("id = ?", id).First(&t).Error
	if err != nil {
		return nil, notFound(err, internal.ErrTransactionNotFound)
	}
	return &t, nil
}

// First returns the first matching transaction in order, or nil when none match.
func (r *TransactionRepository) First(ctx context.Context, filter paymentpkg.TransactionFilter, order paymentpkg.SortOrder) (*payment.Transaction, error) {
	query := ExtractTx(ctx, r.db).Where("payment_id = ?", filter.PaymentID)
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.IsSuccess != nil {
		query = query.Where("is_success = ?", *filter.IsSuccess)
	}
	if filter.IsActionRequired != nil {
		query = query.Where("is_action_required = ?", *filter.IsActionRequired)
	}
	if filter.Token != nil {
		query = query.Where("token = ?", *filter.Token)
	}
	if filter.Amount != nil {
		query = query.Where("amount = ?", *filter.Amount)
	}
	if filter.Currency != "" {
		query = query.Where("currency = ?", filter.Currency)
	}

	if order == paymentpkg.NewestFirst {
		query = query.Order("created_at DESC").Order("id DESC")
	} else {
		query = query.Order("created_at ASC").Order("id ASC")
	}

	var t payment.Transaction
	err := query.First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepository) ListByPaymentID(ctx context.Context, paymentID string) ([]*payment.Transaction, error) {
	var transactions []*payment.Transaction
	err := ExtractTx(ctx, r.db).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&transactions).Error
	return transactions, err
}

func (r *TransactionRepository) MarkProcessed(ctx context.Context, t *payment.Transaction) error {
	err := ExtractTx(ctx, r.db).
		Model(&payment.Transaction{}).
		Where("id = ?", t.ID).
		Update("is_already_processed", true).Error
	if err != nil {
		return err
	}
	t.IsAlreadyProcessed = true
	return nil
}
