package payment

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type TransactionKind string

const (
	TransactionKindExternal        TransactionKind = "EXTERNAL"
	TransactionKindAuth            TransactionKind = "AUTH"
	TransactionKindCheckStatus     TransactionKind = "CHECK_STATUS"
	TransactionKindCapture         TransactionKind = "CAPTURE"
	TransactionKindCaptureFailed   TransactionKind = "CAPTURE_FAILED"
	TransactionKindActionToConfirm TransactionKind = "ACTION_TO_CONFIRM"
	TransactionKindVoid            TransactionKind = "VOID"
	TransactionKindPending         TransactionKind = "PENDING"
	TransactionKindRefund          TransactionKind = "REFUND"
	TransactionKindRefundOngoing   TransactionKind = "REFUND_ONGOING"
	TransactionKindRefundFailed    TransactionKind = "REFUND_FAILED"
	TransactionKindRefundReversed  TransactionKind = "REFUND_REVERSED"
	TransactionKindConfirm         TransactionKind = "CONFIRM"
	TransactionKindCancel          TransactionKind = "CANCEL"
)

var transactionKinds = map[TransactionKind]struct{}{
	TransactionKindExternal:        {},
	TransactionKindAuth:            {},
	TransactionKindCheckStatus:     {},
	TransactionKindCapture:         {},
	TransactionKindCaptureFailed:   {},
	TransactionKindActionToConfirm: {},
	TransactionKindVoid:            {},
	TransactionKindPending:         {},
	TransactionKindRefund:          {},
	TransactionKindRefundOngoing:   {},
	TransactionKindRefundFailed:    {},
	TransactionKindRefundReversed:  {},
	TransactionKindConfirm:         {},
	TransactionKindCancel:          {},
}

func (k TransactionKind) IsValid() bool {
	_, ok := transactionKinds[k]
	return ok
}

// TransactionError codes a gateway may report in GatewayResponse.Error.
type TransactionError string

const (
	TransactionErrorIncorrectNumber   TransactionError = "INCORRECT_NUMBER"
	TransactionErrorInvalidNumber     TransactionError = "INVALID_NUMBER"
	TransactionErrorIncorrectCVV      TransactionError = "INCORRECT_CVV"
	TransactionErrorInvalidCVV        TransactionError = "INVALID_CVV"
	TransactionErrorIncorrectZip      TransactionError = "INCORRECT_ZIP"
	TransactionErrorIncorrectAddress  TransactionError = "INCORRECT_ADDRESS"
	TransactionErrorInvalidExpiryDate TransactionError = "INVALID_EXPIRY_DATE"
	TransactionErrorExpired           TransactionError = "EXPIRED"
	TransactionErrorProcessingError   TransactionError = "PROCESSING_ERROR"
	TransactionErrorDeclined          TransactionError = "DECLINED"
)

// Transaction is written once per gateway interaction. Only IsAlreadyProcessed
// changes after insert.
type Transaction struct {
	ID                 int64             `gorm:"primaryKey;autoIncrement"`
	PaymentID          string            `gorm:"column:payment_id;type:varchar(36);not null;index"`
	Token              string            `gorm:"column:token"`
	Kind               TransactionKind   `gorm:"column:kind;not null"`
	IsSuccess          bool              `gorm:"column:is_success;not null"`
	IsActionRequired   bool              `gorm:"column:is_action_required;not null"`
	ActionRequiredData datatypes.JSONMap `gorm:"column:action_required_data"`
	Amount             decimal.Decimal   `gorm:"column:amount;type:decimal(12,2);not null"`
	Currency           string            `gorm:"column:currency;type:varchar(3);not null"`
	Error              *string           `gorm:"column:error"`
	CustomerID         *string           `gorm:"column:customer_id"`
	GatewayResponse    datatypes.JSONMap `gorm:"column:gateway_response"`
	IsAlreadyProcessed bool              `gorm:"column:is_already_processed;not null"`
	StaffID            *string           `gorm:"column:staff_id"`
	CreatedAt          time.Time         `gorm:"column:created_at"`
}

func (Transaction) TableName() string {
	return "payment_transactions"
}

func (t *Transaction) ErrorMessage() string {
	if t.Error == nil {
		return ""
	}
	return *t.Error
}
