package paymentgateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/frahmantamala/payment-core/internal/core/datamodel/payment"
	paymentgatewaytypes "github.com/frahmantamala/payment-core/internal/core/datamodel/paymentgateway"
	paymentpkg "github.com/frahmantamala/payment-core/internal/payment"
)

// Tokens understood by Dummy. Any other token succeeds.
const (
	DummyTokenDeclined = "declined"
	DummyToken3DS      = "3ds"
	DummyTokenPending  = "pending"
)

// Dummy is an in-process gateway for development and tests. Its outcome is
// driven by the token of the request.
type Dummy struct {
	logger *slog.Logger
}

func NewDummy(logger *slog.Logger) *Dummy {
	return &Dummy{logger: logger.With("gateway", "dummy")}
}

func (d *Dummy) Authorize(ctx context.Context, data paymentpkg.PaymentData) (*paymentpkg.GatewayResponse, error) {
	return d.respond(ctx, payment.TransactionKindAuth, data)
}

func (d *Dummy) Capture(ctx context.Context, data paymentpkg.PaymentData) (*paymentpkg.GatewayResponse, error) {
	return d.respond(ctx, payment.TransactionKindCapture, data)
}

func (d *Dummy) Refund(ctx context.Context, data paymentpkg.PaymentData) (*paymentpkg.GatewayResponse, error) {
	return d.respond(ctx, payment.TransactionKindRefund, data)
}

func (d *Dummy) Void(ctx context.Context, data paymentpkg.PaymentData) (*paymentpkg.GatewayResponse, error) {
	return d.respond(ctx, payment.TransactionKindVoid, data)
}

// Confirm always succeeds as a capture of the confirmed amount.
func (d *Dummy) Confirm(ctx context.Context, data paymentpkg.PaymentData) (*paymentpkg.GatewayResponse, error) {
	return d.respond(ctx, payment.TransactionKindCapture, data)
}

func (d *Dummy) Process(ctx context.Context, data paymentpkg.PaymentData) (*paymentpkg.GatewayResponse, error) {
	return d.respond(ctx, payment.TransactionKindCapture, data)
}

func (d *Dummy) respond(ctx context.Context, kind payment.TransactionKind, data paymentpkg.PaymentData) (*paymentpkg.GatewayResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	token := data.Token
	if token == "" {
		token = uuid.NewString()
	}

	resp := &paymentpkg.GatewayResponse{
		IsSuccess:     true,
		Kind:          kind,
		Amount:        data.Amount,
		Currency:      data.Currency,
		TransactionID: token,
		CustomerID:    data.CustomerID,
		PSPReference:  "dummy-" + data.PaymentID,
		RawResponse: map[string]interface{}{
			"status": paymentgatewaytypes.StatusSuccess,
			"token":  token,
		},
		PaymentMethodInfo: &paymentpkg.PaymentMethodInfo{
			Brand:       "visa",
			FirstDigits: "4111",
			LastDigits:  "1111",
			Type:        "card",
		},
	}

	switch strings.ToLower(data.Token) {
	case DummyTokenDeclined:
		resp.IsSuccess = false
		resp.Error = string(payment.TransactionErrorDeclined)
		resp.RawResponse["status"] = paymentgatewaytypes.StatusFailed
	case DummyToken3DS:
		if kind == payment.TransactionKindAuth || kind == payment.TransactionKindCapture {
			resp.Kind = payment.TransactionKindActionToConfirm
			resp.ActionRequired = true
			resp.TransactionID = DummyToken3DS + "-" + data.PaymentID
			resp.ActionRequiredData = map[string]interface{}{
				"redirect_url": fmt.Sprintf("https://dummy.local/3ds/%s", data.PaymentID),
			}
		}
	case DummyTokenPending:
		if kind == payment.TransactionKindCapture {
			resp.Kind = payment.TransactionKindPending
			resp.RawResponse["status"] = paymentgatewaytypes.StatusPending
		}
	}

	d.logger.Debug("dummy gateway responded",
		"payment_id", data.PaymentID,
		"kind", resp.Kind,
		"is_success", resp.IsSuccess)
	return resp, nil
}

func (d *Dummy) GetClientToken(_ context.Context, cfg paymentpkg.TokenConfig) (string, error) {
	if cfg.CustomerID == "" {
		return "dummy-" + uuid.NewString(), nil
	}
	return "dummy-" + cfg.CustomerID, nil
}

func (d *Dummy) ListPaymentSources(_ context.Context, _ string) ([]paymentpkg.CustomerSource, error) {
	return []paymentpkg.CustomerSource{}, nil
}
