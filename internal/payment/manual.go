package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/payment-core/internal"
	"github.com/frahmantamala/payment-core/internal/core/common/validation"
	"github.com/frahmantamala/payment-core/internal/core/datamodel/payment"
	"github.com/frahmantamala/payment-core/internal/core/events"
)

// ManualDepositRequest records money received outside any gateway, such as
// a bank transfer entered by staff.
type ManualDepositRequest struct {
	UserID            string
	WalletID          string
	StaffID           string
	Currency          string
	Amount            decimal.Decimal
	ExternalReference string
}

// CreatePaymentRequest describes a new payment record. Unless ForceCreate is
// set, an existing payment with the same identifying fields is returned
// instead of a new one.
type CreatePaymentRequest struct {
	Gateway            string
	PaymentType        payment.PaymentType
	Total              decimal.Decimal
	CapturedAmount     decimal.Decimal
	Currency           string
	ChargeStatus       payment.ChargeStatus
	IsActive           bool
	UserID             string
	WalletID           string
	StaffID            string
	CustomerIPAddress  string
	Token              string
	ReturnURL          string
	ExternalReference  string
	StorePaymentMethod payment.StorePaymentMethod
	ExtraData          map[string]interface{}
	Metadata           map[string]interface{}
	ForceCreate        bool
}

func (o *Orchestrator) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*payment.Payment, error) {
	var created *payment.Payment
	err := o.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		p, err := o.createPayment(txCtx, req)
		created = p
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (o *Orchestrator) createPayment(ctx context.Context, req CreatePaymentRequest) (*payment.Payment, error) {
	currency := strings.ToUpper(req.Currency)
	if req.ChargeStatus == "" {
		req.ChargeStatus = payment.ChargeStatusNotCharged
	}
	if req.StorePaymentMethod == "" {
		req.StorePaymentMethod = payment.StorePaymentMethodNone
	}

	if !req.ForceCreate {
		existing, err := o.payments.First(ctx, PaymentFilter{
			Gateway:      req.Gateway,
			PSPReference: req.ExternalReference,
			UserID:       req.UserID,
			WalletID:     req.WalletID,
			PaymentType:  req.PaymentType,
			ChargeStatus: req.ChargeStatus,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to look up existing payment: %w", err)
		}
		if existing != nil && existing.TotalAmount.Equal(req.Total) && existing.Currency == currency {
			return existing, nil
		}
	}

	p := &payment.Payment{
		PaymentType:        req.PaymentType,
		Gateway:            req.Gateway,
		IsActive:           req.IsActive,
		ChargeStatus:       req.ChargeStatus,
		Token:              req.Token,
		TotalAmount:        o.precision.Quantize(req.Total, currency),
		CapturedAmount:     o.precision.Quantize(req.CapturedAmount, currency),
		Currency:           currency,
		StorePaymentMethod: req.StorePaymentMethod,
		CustomerIPAddress:  req.CustomerIPAddress,
		ExtraData:          copyMap(req.ExtraData),
		PublicMetadata:     copyMap(req.Metadata),
		PrivateMetadata:    map[string]interface{}{},
		ReturnURL:          req.ReturnURL,
		PSPReference:       req.ExternalReference,
		UserID:             optionalString(req.UserID),
		WalletID:           optionalString(req.WalletID),
		StaffID:            optionalString(req.StaffID),
	}
	if err := o.payments.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	return p, nil
}

// CreateManualDeposit stores a FULLY_CHARGED MANUAL payment and its EXTERNAL
// transaction in one database transaction. No gateway is called.
func (o *Orchestrator) CreateManualDeposit(ctx context.Context, req ManualDepositRequest) (*payment.Payment, *payment.Transaction, error) {
	if !req.Amount.IsPositive() {
		return nil, nil, NewPaymentError(MsgAmountNotPositive)
	}
	if appErr := validation.ValidateCurrency(req.Currency); appErr != nil {
		return nil, nil, appErr
	}
	staffID := req.StaffID
	if staffID == "" {
		staffID = internal.StaffIDFromContext(ctx)
	}

	log := o.logger.With("operation", "manual_deposit", "user_id", req.UserID, "wallet_id", req.WalletID)

	var (
		p   *payment.Payment
		txn *payment.Transaction
	)
	err := o.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		if req.ExternalReference != "" {
			existing, err := o.payments.First(txCtx, PaymentFilter{
				Gateway:      payment.GatewayManual,
				PSPReference: req.ExternalReference,
			})
			if err != nil {
				return fmt.Errorf("failed to look up external reference: %w", err)
			}
			if existing != nil {
				return internal.NewConflictError("A deposit with this external reference already exists", internal.ErrCodeDuplicateExternalRef)
			}
		}

		var err error
		p, err = o.createPayment(txCtx, CreatePaymentRequest{
			Gateway:           payment.GatewayManual,
			PaymentType:       payment.PaymentTypeDeposit,
			Total:             req.Amount,
			CapturedAmount:    req.Amount,
			Currency:          req.Currency,
			ChargeStatus:      payment.ChargeStatusFullyCharged,
			IsActive:          true,
			UserID:            req.UserID,
			WalletID:          req.WalletID,
			StaffID:           staffID,
			ExternalReference: req.ExternalReference,
			ForceCreate:       true,
		})
		if err != nil {
			return err
		}

		txn = &payment.Transaction{
			PaymentID:          p.ID,
			Token:              req.ExternalReference,
			Kind:               payment.TransactionKindExternal,
			IsSuccess:          true,
			ActionRequiredData: map[string]interface{}{},
			Amount:             p.TotalAmount,
			Currency:           p.Currency,
			GatewayResponse:    map[string]interface{}{},
			IsAlreadyProcessed: true,
			StaffID:            optionalString(staffID),
		}
		if err := o.transactions.Create(txCtx, txn); err != nil {
			return fmt.Errorf("failed to create transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Error("manual deposit failed", "error", err)
		return nil, nil, err
	}

	log.Info("manual deposit recorded",
		"payment_id", p.ID,
		"transaction_id", txn.ID,
		"amount", p.TotalAmount.String(),
		"currency", p.Currency)

	if o.eventBus != nil {
		event := events.NewPaymentEvent(events.EventTypePaymentDeposited, p.ID, txn.ID, string(txn.Kind), txn.Amount, txn.Currency, string(p.ChargeStatus))
		if err := o.eventBus.Publish(ctx, event); err != nil {
			log.Error("failed to publish payment event", "event_type", event.EventType(), "error", err)
		}
	}
	return p, txn, nil
}

func copyMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
