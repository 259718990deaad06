package payment

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/payment-core/internal/core/datamodel/payment"
)

func CleanAuthorize(p *payment.Payment) error {
	if !p.CanAuthorize() {
		return NewPaymentError(MsgCannotAuthorize)
	}
	return nil
}

func CleanCapture(p *payment.Payment, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return NewPaymentError(MsgAmountNotPositive)
	}
	if !p.CanCapture() {
		return NewPaymentError(MsgCannotCapture)
	}
	if amount.GreaterThan(p.TotalAmount) || amount.GreaterThan(p.ChargeAmount()) {
		return NewPaymentError(MsgCaptureExceedsBalance)
	}
	return nil
}

func CleanRefund(p *payment.Payment, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return NewPaymentError(MsgAmountNotPositive)
	}
	if amount.GreaterThan(p.CapturedAmount) {
		return NewPaymentError(MsgRefundExceedsCaptured)
	}
	if !p.CanRefund() {
		return NewPaymentError(MsgCannotRefund)
	}
	return nil
}

func CleanVoid(p *payment.Payment) error {
	if !p.CanVoid() {
		return NewPaymentError(MsgCannotVoid)
	}
	return nil
}

func CleanConfirm(p *payment.Payment) error {
	if !p.CanConfirm() {
		return NewPaymentError(MsgCannotConfirm)
	}
	return nil
}

// ValidateGatewayResponse rejects responses the pipeline cannot persist.
func ValidateGatewayResponse(resp *GatewayResponse) error {
	if resp == nil {
		return &GatewayError{Message: "gateway needs to return a GatewayResponse"}
	}
	if !resp.Kind.IsValid() {
		return &GatewayError{Message: fmt.Sprintf("gateway response kind %q is not a known transaction kind", resp.Kind)}
	}
	if _, err := json.Marshal(resp.RawResponse); err != nil {
		return &GatewayError{Message: fmt.Sprintf("gateway response needs to be json serializable: %v", err)}
	}
	if _, err := json.Marshal(resp.ActionRequiredData); err != nil {
		return &GatewayError{Message: fmt.Sprintf("action required data needs to be json serializable: %v", err)}
	}
	return nil
}
