package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GatewayManual identifies staff-entered payments that have no external processor.
const GatewayManual = "MANUAL"

type PaymentType string

const (
	PaymentTypeWithdraw PaymentType = "withdraw"
	PaymentTypeDeposit  PaymentType = "deposit"
	PaymentTypeSend     PaymentType = "send"
)

type StorePaymentMethod string

const (
	StorePaymentMethodOnSession  StorePaymentMethod = "ON_SESSION"
	StorePaymentMethodOffSession StorePaymentMethod = "OFF_SESSION"
	StorePaymentMethodNone       StorePaymentMethod = "NONE"
)

type ChargeStatus string

const (
	ChargeStatusNotCharged        ChargeStatus = "NOT_CHARGED"
	ChargeStatusPending           ChargeStatus = "PENDING"
	ChargeStatusPartiallyCharged  ChargeStatus = "PARTIALLY_CHARGED"
	ChargeStatusFullyCharged      ChargeStatus = "FULLY_CHARGED"
	ChargeStatusPartiallyRefunded ChargeStatus = "PARTIALLY_REFUNDED"
	ChargeStatusFullyRefunded     ChargeStatus = "FULLY_REFUNDED"
	ChargeStatusRefused           ChargeStatus = "REFUSED"
	ChargeStatusCancelled         ChargeStatus = "CANCELLED"
)

type Payment struct {
	ID                 string             `gorm:"primaryKey;type:varchar(36)"`
	PaymentType        PaymentType        `gorm:"column:payment_type;not null"`
	Gateway            string             `gorm:"column:gateway;not null"`
	IsActive           bool               `gorm:"column:is_active;not null"`
	ToConfirm          bool               `gorm:"column:to_confirm;not null"`
	ChargeStatus       ChargeStatus       `gorm:"column:charge_status;not null"`
	Token              string             `gorm:"column:token"`
	TotalAmount        decimal.Decimal    `gorm:"column:total_amount;type:decimal(12,2);not null"`
	CapturedAmount     decimal.Decimal    `gorm:"column:captured_amount;type:decimal(12,2);not null"`
	Currency           string             `gorm:"column:currency;type:varchar(3);not null"`
	StorePaymentMethod StorePaymentMethod `gorm:"column:store_payment_method"`
	CCFirstDigits      string             `gorm:"column:cc_first_digits"`
	CCLastDigits       string             `gorm:"column:cc_last_digits"`
	CCBrand            string             `gorm:"column:cc_brand"`
	CCExpMonth         *int               `gorm:"column:cc_exp_month"`
	CCExpYear          *int               `gorm:"column:cc_exp_year"`
	PaymentMethodType  string             `gorm:"column:payment_method_type"`
	CustomerIPAddress  string             `gorm:"column:customer_ip_address"`
	ExtraData          datatypes.JSONMap  `gorm:"column:extra_data"`
	PublicMetadata     datatypes.JSONMap  `gorm:"column:public_metadata"`
	PrivateMetadata    datatypes.JSONMap  `gorm:"column:private_metadata"`
	ReturnURL          string             `gorm:"column:return_url"`
	PSPReference       string             `gorm:"column:psp_reference;index"`
	UserID             *string            `gorm:"column:user_id;index"`
	StaffID            *string            `gorm:"column:staff_id"`
	WalletID           *string            `gorm:"column:wallet_id;index"`
	CreatedAt          time.Time          `gorm:"column:created_at"`
	UpdatedAt          time.Time          `gorm:"column:updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// ChargeAmount is the part of the total that has not been captured yet.
func (p *Payment) ChargeAmount() decimal.Decimal {
	return p.TotalAmount.Sub(p.CapturedAmount)
}

func (p *Payment) IsManual() bool {
	return p.Gateway == GatewayManual
}

func (p *Payment) notChargedAndActive() bool {
	return p.IsActive && p.ChargeStatus == ChargeStatusNotCharged
}

func (p *Payment) CanAuthorize() bool {
	return p.notChargedAndActive()
}

// CanCapture also admits partially charged payments so the remaining balance
// can be captured in several steps.
func (p *Payment) CanCapture() bool {
	if !p.IsActive {
		return false
	}
	return p.ChargeStatus == ChargeStatusNotCharged || p.ChargeStatus == ChargeStatusPartiallyCharged
}

func (p *Payment) CanVoid() bool {
	return p.notChargedAndActive()
}

func (p *Payment) CanConfirm() bool {
	return p.notChargedAndActive()
}

func (p *Payment) CanRefund() bool {
	switch p.ChargeStatus {
	case ChargeStatusPartiallyCharged, ChargeStatusFullyCharged, ChargeStatusPartiallyRefunded:
		return true
	}
	return false
}
