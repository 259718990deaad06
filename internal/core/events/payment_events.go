package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventTypePaymentAuthorized = "payment.authorized"
	EventTypePaymentCaptured   = "payment.captured"
	EventTypePaymentRefunded   = "payment.refunded"
	EventTypePaymentVoided     = "payment.voided"
	EventTypePaymentConfirmed  = "payment.confirmed"
	EventTypePaymentProcessed  = "payment.processed"
	EventTypePaymentDeposited  = "payment.deposited"
	EventTypePaymentFailed     = "payment.failed"
)

type PaymentEvent struct {
	BaseEvent
	PaymentID     string          `json:"payment_id"`
	TransactionID int64           `json:"transaction_id"`
	Kind          string          `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	ChargeStatus  string          `json:"charge_status"`
}

func NewPaymentEvent(eventType, paymentID string, transactionID int64, kind string, amount decimal.Decimal, currency, chargeStatus string) *PaymentEvent {
	return &PaymentEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":     paymentID,
				"transaction_id": transactionID,
				"kind":           kind,
				"amount":         amount.String(),
				"currency":       currency,
				"charge_status":  chargeStatus,
			},
		},
		PaymentID:     paymentID,
		TransactionID: transactionID,
		Kind:          kind,
		Amount:        amount,
		Currency:      currency,
		ChargeStatus:  chargeStatus,
	}
}

type PaymentFailedEvent struct {
	BaseEvent
	PaymentID     string `json:"payment_id"`
	TransactionID int64  `json:"transaction_id"`
	Operation     string `json:"operation"`
	FailureReason string `json:"failure_reason"`
}

func NewPaymentFailedEvent(paymentID string, transactionID int64, operation, failureReason string) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":     paymentID,
				"transaction_id": transactionID,
				"operation":      operation,
				"failure_reason": failureReason,
			},
		},
		PaymentID:     paymentID,
		TransactionID: transactionID,
		Operation:     operation,
		FailureReason: failureReason,
	}
}
