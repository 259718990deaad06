package payment

import (
	"errors"
	"fmt"

	"github.com/frahmantamala/payment-core/internal"
	"github.com/frahmantamala/payment-core/internal/core/datamodel/payment"
)

const (
	MsgPaymentInactive          = "This payment is no longer active."
	MsgAmountNotPositive        = "Amount should be a positive number."
	MsgCannotAuthorize          = "Charged transactions cannot be authorized again."
	MsgCannotCapture            = "This payment cannot be captured."
	MsgCaptureExceedsBalance    = "Unable to charge more than un-captured amount."
	MsgCannotRefund             = "This payment cannot be refunded."
	MsgRefundExceedsCaptured    = "Cannot refund more than captured."
	MsgCannotVoid               = "This payment cannot be voided."
	MsgCannotConfirm            = "This payment cannot be confirmed."
	MsgUnauthorizedTransaction  = "Cannot process unauthorized transaction"
	MsgGatewayValidationFailed  = "Gateway response validation failed!"
	MsgGatewayExecutionFailed   = "Error encountered while executing payment gateway."
	MsgGenericTransactionFailed = "Transaction was unsuccessful."
)

// PaymentError is a business-rule failure reported to the caller.
type PaymentError struct {
	Message string
	Code    string
}

func NewPaymentError(message string) *PaymentError {
	return &PaymentError{Message: message}
}

func (e *PaymentError) Error() string {
	return e.Message
}

// GatewayError marks a malformed adapter response. It never leaves the pipeline.
type GatewayError struct {
	Message string
}

func (e *GatewayError) Error() string {
	return e.Message
}

var ErrGatewayNotConfigured = errors.New("payment gateway is not configured")

func missingTransactionError(kind payment.TransactionKind) *PaymentError {
	return NewPaymentError(fmt.Sprintf("Cannot find successful %s transaction.", kind))
}

// ToAppError maps errors returned by the orchestrator to the outward error shape.
func ToAppError(err error) *internal.AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := internal.IsAppError(err); ok {
		return appErr
	}

	var payErr *PaymentError
	if errors.As(err, &payErr) {
		code := internal.ErrCodePaymentFailed
		switch payErr.Message {
		case MsgPaymentInactive:
			code = internal.ErrCodePaymentInactive
		case MsgGatewayExecutionFailed:
			code = internal.ErrCodeGatewayUnavailable
		case string(payment.TransactionErrorDeclined):
			code = internal.ErrCodeTransactionDeclined
		}
		if payErr.Code != "" {
			code = internal.ErrorCode(payErr.Code)
		}
		return internal.NewPaymentError(payErr.Message, code)
	}

	if errors.Is(err, ErrGatewayNotConfigured) {
		appErr := internal.NewInternalError("payment gateway is not configured", err)
		appErr.Code = internal.ErrCodeGatewayNotConfigured
		return appErr
	}

	return internal.NewInternalError("payment operation failed", err)
}
