package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/payment-core/internal/core/datamodel/payment"
	"github.com/frahmantamala/payment-core/internal/core/events"
)

type Config struct {
	GatewayTimeout time.Duration
	Precision      Precision
}

// Orchestrator runs authorize, capture, refund, void, confirm and process
// against the payment store and the registered gateways.
type Orchestrator struct {
	payments       PaymentRepositoryAPI
	transactions   TransactionRepositoryAPI
	txManager      TxManager
	gateways       *Registry
	reconciler     *Reconciler
	precision      Precision
	gatewayTimeout time.Duration
	eventBus       *events.EventBus
	logger         *slog.Logger
}

func NewOrchestrator(
	payments PaymentRepositoryAPI,
	transactions TransactionRepositoryAPI,
	txManager TxManager,
	gateways *Registry,
	eventBus *events.EventBus,
	logger *slog.Logger,
	cfg Config,
) *Orchestrator {
	return &Orchestrator{
		payments:       payments,
		transactions:   transactions,
		txManager:      txManager,
		gateways:       gateways,
		reconciler:     NewReconciler(payments, transactions),
		precision:      cfg.Precision,
		gatewayTimeout: cfg.GatewayTimeout,
		eventBus:       eventBus,
		logger:         logger,
	}
}

func amountOrDefault(amount *decimal.Decimal, fallback decimal.Decimal) *decimal.Decimal {
	if amount != nil {
		a := *amount
		return &a
	}
	return &fallback
}

func (o *Orchestrator) Authorize(ctx context.Context, paymentID, token, customerID string) (*payment.Payment, *payment.Transaction, error) {
	return o.execute(ctx, paymentID, &operation{
		name:          "authorize",
		kind:          payment.TransactionKindAuth,
		requireActive: true,
		precondition: func(p *payment.Payment, _ *decimal.Decimal) error {
			return CleanAuthorize(p)
		},
		token:      token,
		customerID: customerID,
		call:       GatewayAdapter.Authorize,
	})
}

// Capture charges amount, or the whole uncaptured balance when amount is nil.
func (o *Orchestrator) Capture(ctx context.Context, paymentID string, amount *decimal.Decimal, customerID string) (*payment.Payment, *payment.Transaction, error) {
	return o.execute(ctx, paymentID, &operation{
		name:          "capture",
		kind:          payment.TransactionKindCapture,
		requireActive: true,
		amount: func(p *payment.Payment) *decimal.Decimal {
			return amountOrDefault(amount, p.ChargeAmount())
		},
		precondition: func(p *payment.Payment, amount *decimal.Decimal) error {
			return CleanCapture(p, *amount)
		},
		tokenLookup: func(*payment.Payment) (payment.TransactionKind, SortOrder, bool) {
			return payment.TransactionKindAuth, OldestFirst, true
		},
		customerID: customerID,
		call:       GatewayAdapter.Capture,
	})
}

// Refund returns amount, or everything captured when amount is nil. MANUAL
// payments are refunded without a gateway call.
func (o *Orchestrator) Refund(ctx context.Context, paymentID string, amount *decimal.Decimal) (*payment.Payment, *payment.Transaction, error) {
	return o.execute(ctx, paymentID, &operation{
		name: "refund",
		kind: payment.TransactionKindRefund,
		amount: func(p *payment.Payment) *decimal.Decimal {
			return amountOrDefault(amount, p.CapturedAmount)
		},
		precondition: func(p *payment.Payment, amount *decimal.Decimal) error {
			return CleanRefund(p, *amount)
		},
		tokenLookup: func(p *payment.Payment) (payment.TransactionKind, SortOrder, bool) {
			if p.IsManual() {
				return payment.TransactionKindExternal, OldestFirst, true
			}
			return payment.TransactionKindCapture, OldestFirst, true
		},
		call:         GatewayAdapter.Refund,
		bypassManual: true,
	})
}

func (o *Orchestrator) Void(ctx context.Context, paymentID string) (*payment.Payment, *payment.Transaction, error) {
	return o.execute(ctx, paymentID, &operation{
		name: "void",
		kind: payment.TransactionKindVoid,
		precondition: func(p *payment.Payment, _ *decimal.Decimal) error {
			return CleanVoid(p)
		},
		tokenLookup: func(*payment.Payment) (payment.TransactionKind, SortOrder, bool) {
			return payment.TransactionKindAuth, OldestFirst, true
		},
		call: GatewayAdapter.Void,
	})
}

// Confirm completes a payment that a gateway flagged as requiring customer
// action. The token of the latest ACTION_TO_CONFIRM transaction is sent when
// one exists.
func (o *Orchestrator) Confirm(ctx context.Context, paymentID string, additionalData map[string]interface{}) (*payment.Payment, *payment.Transaction, error) {
	return o.execute(ctx, paymentID, &operation{
		name:          "confirm",
		kind:          payment.TransactionKindConfirm,
		requireActive: true,
		precondition: func(p *payment.Payment, _ *decimal.Decimal) error {
			return CleanConfirm(p)
		},
		tokenLookup: func(*payment.Payment) (payment.TransactionKind, SortOrder, bool) {
			return payment.TransactionKindActionToConfirm, NewestFirst, false
		},
		additionalData: additionalData,
		call:           GatewayAdapter.Confirm,
	})
}

// Process authorizes and captures in a single gateway call.
func (o *Orchestrator) Process(ctx context.Context, paymentID, token, customerID string, additionalData map[string]interface{}) (*payment.Payment, *payment.Transaction, error) {
	return o.execute(ctx, paymentID, &operation{
		name:          "process",
		kind:          payment.TransactionKindCapture,
		requireActive: true,
		precondition: func(p *payment.Payment, _ *decimal.Decimal) error {
			return CleanAuthorize(p)
		},
		token:          token,
		customerID:     customerID,
		additionalData: additionalData,
		call:           GatewayAdapter.Process,
	})
}

func (o *Orchestrator) GetPayment(ctx context.Context, paymentID string) (*payment.Payment, error) {
	return o.payments.GetByID(ctx, paymentID)
}

func (o *Orchestrator) ListPayments(ctx context.Context, filter PaymentFilter, offset, limit int) ([]*payment.Payment, error) {
	return o.payments.List(ctx, filter, offset, limit)
}

func (o *Orchestrator) ListTransactions(ctx context.Context, paymentID string) ([]*payment.Transaction, error) {
	if _, err := o.payments.GetByID(ctx, paymentID); err != nil {
		return nil, err
	}
	return o.transactions.ListByPaymentID(ctx, paymentID)
}

// GetPaymentToken returns the token of the payment's successful authorization.
func (o *Orchestrator) GetPaymentToken(ctx context.Context, paymentID string) (string, error) {
	txn, err := o.transactions.First(ctx, TransactionFilter{
		PaymentID: paymentID,
		Kind:      payment.TransactionKindAuth,
		IsSuccess: boolPtr(true),
	}, OldestFirst)
	if err != nil {
		return "", fmt.Errorf("failed to look up authorization: %w", err)
	}
	if txn == nil {
		return "", NewPaymentError(MsgUnauthorizedTransaction)
	}
	return txn.Token, nil
}

func (o *Orchestrator) ListGateways(currency string) []PaymentGateway {
	return o.gateways.Gateways(currency)
}

// ListPaymentSources returns the sources stored for customerID at gateway.
// Gateways that do not store sources return an empty list.
func (o *Orchestrator) ListPaymentSources(ctx context.Context, gateway, customerID string) ([]CustomerSource, error) {
	adapter, err := o.gateways.Get(gateway)
	if err != nil {
		return nil, err
	}
	lister, ok := adapter.(SourceLister)
	if !ok {
		return []CustomerSource{}, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout())
	defer cancel()

	sources, err := lister.ListPaymentSources(callCtx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment sources: %w", err)
	}
	for i := range sources {
		sources[i].Gateway = gateway
	}
	return sources, nil
}

func (o *Orchestrator) GetClientToken(ctx context.Context, gateway string, cfg TokenConfig) (string, error) {
	adapter, err := o.gateways.Get(gateway)
	if err != nil {
		return "", err
	}
	provider, ok := adapter.(TokenProvider)
	if !ok {
		return "", fmt.Errorf("gateway %s does not issue client tokens", gateway)
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout())
	defer cancel()

	return provider.GetClientToken(callCtx, cfg)
}

func (o *Orchestrator) timeout() time.Duration {
	if o.gatewayTimeout <= 0 {
		return 5 * time.Second
	}
	return o.gatewayTimeout
}

var successEventTypes = map[string]string{
	"authorize": events.EventTypePaymentAuthorized,
	"capture":   events.EventTypePaymentCaptured,
	"refund":    events.EventTypePaymentRefunded,
	"void":      events.EventTypePaymentVoided,
	"confirm":   events.EventTypePaymentConfirmed,
	"process":   events.EventTypePaymentProcessed,
}

func (o *Orchestrator) publishSuccess(ctx context.Context, op *operation, p *payment.Payment, txn *payment.Transaction) {
	if o.eventBus == nil {
		return
	}
	eventType, ok := successEventTypes[op.name]
	if !ok {
		return
	}
	event := events.NewPaymentEvent(eventType, p.ID, txn.ID, string(txn.Kind), txn.Amount, txn.Currency, string(p.ChargeStatus))
	if err := o.eventBus.Publish(ctx, event); err != nil {
		o.logger.Error("failed to publish payment event", "event_type", eventType, "error", err)
	}
}

func (o *Orchestrator) publishFailure(ctx context.Context, op *operation, p *payment.Payment, txn *payment.Transaction, reason string) {
	if o.eventBus == nil {
		return
	}
	event := events.NewPaymentFailedEvent(p.ID, txn.ID, op.name, reason)
	if err := o.eventBus.Publish(ctx, event); err != nil {
		o.logger.Error("failed to publish payment event", "event_type", event.EventType(), "error", err)
	}
}
