package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frahmantamala/payment-core/internal"
	"github.com/frahmantamala/payment-core/internal/core/datamodel/payment"
	paymentpkg "github.com/frahmantamala/payment-core/internal/payment"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) paymentpkg.PaymentRepositoryAPI {
	return &PaymentRepository{
		db: db,
	}
}

func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	return ExtractTx(ctx, r.db).Create(p).Error
}

func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*payment.Payment, error) {
	var p payment.Payment
	err := ExtractTx(ctx, r.db).Where("id = ?", id).First(&p).Error
	if err != nil {
		return nil, notFound(err, internal.ErrPaymentNotFound)
	}
	return &p, nil
}

// GetByIDForUpdate holds a row lock until the surrounding transaction ends.
func (r *PaymentRepository) GetByIDForUpdate(ctx context.Context, id string) (*payment.Payment, error) {
	var p payment.Payment
	err := ExtractTx(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&p).Error
	if err != nil {
		return nil, notFound(err, internal.ErrPaymentNotFound)
	}
	return &p, nil
}

func (r *PaymentRepository) First(ctx context.Context, filter paymentpkg.PaymentFilter) (*payment.Payment, error) {
	var p payment.Payment
	err := applyPaymentFilter(ExtractTx(ctx, r.db), filter).Order("created_at ASC").First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateFields writes only the named columns of p.
func (r *PaymentRepository) UpdateFields(ctx context.Context, p *payment.Payment, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	columns := append(append(make([]string, 0, len(fields)+1), fields...), "updated_at")
	result := ExtractTx(ctx, r.db).Model(p).Select(columns).Updates(p)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return internal.ErrPaymentNotFound
	}
	return nil
}

func (r *PaymentRepository) List(ctx context.Context, filter paymentpkg.PaymentFilter, offset, limit int) ([]*payment.Payment, error) {
	var payments []*payment.Payment
	query := applyPaymentFilter(ExtractTx(ctx, r.db), filter).Order("created_at DESC")
	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&payments).Error
	return payments, err
}

func applyPaymentFilter(db *gorm.DB, filter paymentpkg.PaymentFilter) *gorm.DB {
	if filter.ID != "" {
		db = db.Where("id = ?", filter.ID)
	}
	if filter.Gateway != "" {
		db = db.Where("gateway = ?", filter.Gateway)
	}
	if filter.PSPReference != "" {
		db = db.Where("psp_reference = ?", filter.PSPReference)
	}
	if filter.UserID != "" {
		db = db.Where("user_id = ?", filter.UserID)
	}
	if filter.WalletID != "" {
		db = db.Where("wallet_id = ?", filter.WalletID)
	}
	if filter.PaymentType != "" {
		db = db.Where("payment_type = ?", filter.PaymentType)
	}
	if filter.ChargeStatus != "" {
		db = db.Where("charge_status = ?", filter.ChargeStatus)
	}
	return db
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
