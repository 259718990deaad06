package postgres

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frahmantamala/payment-core/internal"
	"github.com/frahmantamala/payment-core/internal/core/datamodel/wallet"
	paymentpostgres "github.com/frahmantamala/payment-core/internal/payment/postgres"
	walletpkg "github.com/frahmantamala/payment-core/internal/wallet"
)

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) walletpkg.Repository {
	return &WalletRepository{
		db: db,
	}
}

func (r *WalletRepository) GetOrCreate(ctx context.Context, userID, currency string) (*wallet.Wallet, error) {
	db := paymentpostgres.ExtractTx(ctx, r.db)

	var w wallet.Wallet
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&w).Error
	if err == nil {
		return &w, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	w = wallet.Wallet{
		UserID:   userID,
		Currency: currency,
		Amount:   decimal.Zero,
	}
	if err := db.Create(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WalletRepository) GetByID(ctx context.Context, id string) (*wallet.Wallet, error) {
	var w wallet.Wallet
	err := paymentpostgres.ExtractTx(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, internal.ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WalletRepository) Update(ctx context.Context, w *wallet.Wallet, amount decimal.Decimal) error {
	err := paymentpostgres.ExtractTx(ctx, r.db).
		Model(w).
		Update("amount", amount).Error
	if err != nil {
		return err
	}
	w.Amount = amount
	return nil
}
