package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/payment-core/internal"
	"github.com/frahmantamala/payment-core/internal/core/datamodel/payment"
	"github.com/frahmantamala/payment-core/pkg/logger"
)

type gatewayCall func(adapter GatewayAdapter, ctx context.Context, data PaymentData) (*GatewayResponse, error)

// operation describes one orchestrated payment operation. The pipeline reads
// it and never branches on the operation name.
type operation struct {
	name string
	kind payment.TransactionKind

	// requireActive rejects inactive payments before the precondition runs.
	requireActive bool
	// amount resolves the operation amount on the current payment row.
	// Nil means the assembler default.
	amount       func(p *payment.Payment) *decimal.Decimal
	precondition func(p *payment.Payment, amount *decimal.Decimal) error

	// token is either fixed by the caller or looked up from a prior transaction.
	token       string
	tokenLookup func(p *payment.Payment) (kind payment.TransactionKind, order SortOrder, required bool)

	customerID     string
	additionalData map[string]interface{}

	call gatewayCall
	// bypassManual skips the gateway for MANUAL payments and records a
	// successful transaction.
	bypassManual bool
}

// pipelineState is threaded through the stages of one operation.
type pipelineState struct {
	op *operation

	paymentID string
	payment   *payment.Payment
	amount    *decimal.Decimal

	data         PaymentData
	response     *GatewayResponse
	errorMsg     string
	manualBypass bool

	txn      *payment.Transaction
	replayed bool
}

type stage struct {
	name string
	run  func(ctx context.Context, st *pipelineState) error
}

// stages lists the pipeline in execution order.
func (o *Orchestrator) stages() []stage {
	return []stage{
		{name: "load", run: o.loadPayment},
		{name: "precondition", run: o.checkPrecondition},
		{name: "lock", run: o.lockPayment},
		{name: "build_payment_data", run: o.buildPaymentData},
		{name: "invoke_gateway", run: o.invokeGateway},
		{name: "update_payment", run: o.updatePaymentFromResponse},
		{name: "replay_check", run: o.findProcessedTransaction},
		{name: "create_transaction", run: o.createTransaction},
		{name: "postprocess", run: o.postprocess},
	}
}

// execute runs every stage inside one database transaction and raises a
// PaymentError for unsuccessful transactions after commit, so failed attempts
// stay in the log. Callers must not wrap operations in their own transaction:
// the joined transaction would roll back with the error and drop the attempt.
func (o *Orchestrator) execute(ctx context.Context, paymentID string, op *operation) (*payment.Payment, *payment.Transaction, error) {
	log := logger.FromOr(ctx, o.logger).With("payment_id", paymentID, "operation", op.name)
	ctx = logger.Into(ctx, log)

	st := &pipelineState{op: op, paymentID: paymentID}

	err := o.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		for _, s := range o.stages() {
			if err := s.run(txCtx, st); err != nil {
				log.Debug("payment pipeline stopped", "stage", s.name, "error", err)
				return err
			}
		}
		return nil
	})
	if err != nil {
		var payErr *PaymentError
		if errors.As(err, &payErr) {
			log.Warn("payment operation rejected", "reason", payErr.Message)
		} else {
			log.Error("payment operation failed", "error", err)
		}
		return nil, nil, err
	}

	if !st.txn.IsSuccess {
		msg := st.txn.ErrorMessage()
		if msg == "" {
			msg = MsgGenericTransactionFailed
		}
		log.Warn("payment transaction unsuccessful", "transaction_id", st.txn.ID, "error", msg)
		o.publishFailure(ctx, op, st.payment, st.txn, msg)
		return st.payment, st.txn, NewPaymentError(msg)
	}

	log.Info("payment operation completed",
		"transaction_id", st.txn.ID,
		"kind", st.txn.Kind,
		"amount", st.txn.Amount.String(),
		"charge_status", st.payment.ChargeStatus,
		"replayed", st.replayed)
	o.publishSuccess(ctx, op, st.payment, st.txn)

	return st.payment, st.txn, nil
}

func (o *Orchestrator) loadPayment(ctx context.Context, st *pipelineState) error {
	p, err := o.payments.GetByID(ctx, st.paymentID)
	if err != nil {
		return err
	}
	st.payment = p
	return nil
}

func (o *Orchestrator) checkPrecondition(_ context.Context, st *pipelineState) error {
	op := st.op
	if op.requireActive && !st.payment.IsActive {
		return NewPaymentError(MsgPaymentInactive)
	}
	if op.amount != nil {
		// Checks run on the amount the gateway will actually be sent.
		amount := o.precision.Quantize(*op.amount(st.payment), st.payment.Currency)
		st.amount = &amount
	}
	if op.precondition != nil {
		return op.precondition(st.payment, st.amount)
	}
	return nil
}

// lockPayment re-reads the row under SELECT ... FOR UPDATE and re-checks the
// precondition, since a concurrent operation may have committed in between.
func (o *Orchestrator) lockPayment(ctx context.Context, st *pipelineState) error {
	locked, err := o.payments.GetByIDForUpdate(ctx, st.paymentID)
	if err != nil {
		return fmt.Errorf("failed to lock payment: %w", err)
	}
	st.payment = locked
	return o.checkPrecondition(ctx, st)
}

func (o *Orchestrator) buildPaymentData(ctx context.Context, st *pipelineState) error {
	op := st.op
	token := op.token

	if op.tokenLookup != nil {
		kind, order, required := op.tokenLookup(st.payment)
		txn, err := o.transactions.First(ctx, TransactionFilter{
			PaymentID: st.payment.ID,
			Kind:      kind,
			IsSuccess: boolPtr(true),
		}, order)
		if err != nil {
			return fmt.Errorf("failed to look up %s transaction: %w", kind, err)
		}
		switch {
		case txn != nil:
			token = txn.Token
		case required:
			return missingTransactionError(kind)
		}
	}

	st.data = CreatePaymentInformation(st.payment, PaymentParams{
		Token:          token,
		Amount:         st.amount,
		CustomerID:     op.customerID,
		AdditionalData: op.additionalData,
	}, o.precision)
	return nil
}

func (o *Orchestrator) invokeGateway(ctx context.Context, st *pipelineState) error {
	if st.op.bypassManual && st.payment.IsManual() {
		st.manualBypass = true
		return nil
	}

	adapter, err := o.gateways.Get(st.payment.Gateway)
	if err != nil {
		return err
	}

	resp, err := o.callGateway(ctx, adapter, st.op.call, st.data)
	if err == nil {
		err = ValidateGatewayResponse(resp)
	}
	if err != nil {
		log := logger.From(ctx)
		var gwErr *GatewayError
		if errors.As(err, &gwErr) {
			log.Error("gateway response validation failed", "gateway", st.payment.Gateway, "error", err)
			st.errorMsg = MsgGatewayValidationFailed
		} else {
			log.Error("error encountered while executing payment gateway", "gateway", st.payment.Gateway, "error", err)
			st.errorMsg = MsgGatewayExecutionFailed
		}
		st.response = nil
		return nil
	}

	st.response = resp
	return nil
}

type gatewayResult struct {
	resp *GatewayResponse
	err  error
}

// callGateway bounds the adapter call by the gateway timeout. An adapter that
// ignores its context or panics still yields an error here.
func (o *Orchestrator) callGateway(ctx context.Context, adapter GatewayAdapter, call gatewayCall, data PaymentData) (*GatewayResponse, error) {
	callCtx, cancel := internal.WithTimeout(ctx, o.gatewayTimeout)
	defer cancel()

	done := make(chan gatewayResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- gatewayResult{err: fmt.Errorf("gateway adapter panicked: %v", r)}
			}
		}()
		resp, err := call(adapter, callCtx, data)
		done <- gatewayResult{resp: resp, err: err}
	}()

	select {
	case res := <-done:
		return res.resp, res.err
	case <-callCtx.Done():
		return nil, fmt.Errorf("gateway call aborted: %w", callCtx.Err())
	}
}

// updatePaymentFromResponse copies psp reference, payment method details and
// private metadata onto the payment. Only non-empty values are written.
func (o *Orchestrator) updatePaymentFromResponse(ctx context.Context, st *pipelineState) error {
	resp := st.response
	if resp == nil {
		return nil
	}

	p := st.payment
	var fields []string
	if resp.PSPReference != "" {
		p.PSPReference = resp.PSPReference
		fields = append(fields, FieldPSPReference)
	}
	if info := resp.PaymentMethodInfo; info != nil {
		if info.Brand != "" {
			p.CCBrand = info.Brand
			fields = append(fields, FieldCCBrand)
		}
		if info.FirstDigits != "" {
			p.CCFirstDigits = info.FirstDigits
			fields = append(fields, FieldCCFirstDigits)
		}
		if info.LastDigits != "" {
			p.CCLastDigits = info.LastDigits
			fields = append(fields, FieldCCLastDigits)
		}
		if info.ExpYear != nil {
			p.CCExpYear = info.ExpYear
			fields = append(fields, FieldCCExpYear)
		}
		if info.ExpMonth != nil {
			p.CCExpMonth = info.ExpMonth
			fields = append(fields, FieldCCExpMonth)
		}
		if info.Type != "" {
			p.PaymentMethodType = info.Type
			fields = append(fields, FieldPaymentMethodType)
		}
	}
	if len(resp.PrivateMetadata) > 0 {
		if p.PrivateMetadata == nil {
			p.PrivateMetadata = map[string]interface{}{}
		}
		for k, v := range resp.PrivateMetadata {
			p.PrivateMetadata[k] = v
		}
		fields = append(fields, FieldPrivateMetadata)
	}

	if len(fields) == 0 {
		return nil
	}
	if err := o.payments.UpdateFields(ctx, p, fields...); err != nil {
		return fmt.Errorf("failed to update payment details: %w", err)
	}
	return nil
}

func (o *Orchestrator) findProcessedTransaction(ctx context.Context, st *pipelineState) error {
	resp := st.response
	if resp == nil || !resp.TransactionAlreadyProcessed {
		return nil
	}

	amount := resp.Amount
	txn, err := o.transactions.First(ctx, TransactionFilter{
		PaymentID:        st.payment.ID,
		Kind:             resp.Kind,
		IsSuccess:        boolPtr(resp.IsSuccess),
		IsActionRequired: boolPtr(resp.ActionRequired),
		Token:            stringPtr(resp.TransactionID),
		Amount:           &amount,
		Currency:         resp.Currency,
	}, OldestFirst)
	if err != nil {
		return fmt.Errorf("failed to look up processed transaction: %w", err)
	}
	if txn != nil {
		logger.From(ctx).Info("gateway replayed a processed transaction", "transaction_id", txn.ID)
		st.txn = txn
		st.replayed = true
	}
	return nil
}

func (o *Orchestrator) createTransaction(ctx context.Context, st *pipelineState) error {
	if st.txn != nil {
		return nil
	}

	resp := st.response
	if resp == nil {
		// No usable gateway answer: record what was attempted.
		resp = &GatewayResponse{
			Kind:          st.op.kind,
			TransactionID: st.data.Token,
			IsSuccess:     st.manualBypass,
			Amount:        st.data.Amount,
			Currency:      st.data.Currency,
			Error:         st.errorMsg,
			CustomerID:    st.data.CustomerID,
		}
	}

	txn := &payment.Transaction{
		PaymentID:          st.payment.ID,
		Token:              resp.TransactionID,
		Kind:               resp.Kind,
		IsSuccess:          resp.IsSuccess,
		IsActionRequired:   resp.ActionRequired,
		ActionRequiredData: resp.ActionRequiredData,
		Amount:             resp.Amount,
		Currency:           resp.Currency,
		Error:              optionalString(resp.Error),
		CustomerID:         optionalString(resp.CustomerID),
		GatewayResponse:    resp.RawResponse,
		StaffID:            optionalString(internal.StaffIDFromContext(ctx)),
	}
	if txn.GatewayResponse == nil {
		txn.GatewayResponse = map[string]interface{}{}
	}
	if txn.ActionRequiredData == nil {
		txn.ActionRequiredData = map[string]interface{}{}
	}

	if err := o.transactions.Create(ctx, txn); err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	st.txn = txn
	return nil
}

func (o *Orchestrator) postprocess(ctx context.Context, st *pipelineState) error {
	return o.reconciler.Postprocess(ctx, st.payment, st.txn)
}
