package payment_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/payment-core/internal"
	"github.com/frahmantamala/payment-core/internal/core/datamodel/payment"
	"github.com/frahmantamala/payment-core/internal/core/events"
	paymentpkg "github.com/frahmantamala/payment-core/internal/payment"
	paymentpostgres "github.com/frahmantamala/payment-core/internal/payment/postgres"
	"github.com/frahmantamala/payment-core/pkg/logger"
)

type orchestratorFixture struct {
	payments     paymentpkg.PaymentRepositoryAPI
	transactions paymentpkg.TransactionRepositoryAPI
	txManager    paymentpkg.TxManager
	registry     *paymentpkg.Registry
	adapter      *fakeAdapter
	bus          *events.EventBus
}

func newOrchestratorFixture() *orchestratorFixture {
	db := newTestDB()
	f := &orchestratorFixture{
		payments:     paymentpostgres.NewPaymentRepository(db),
		transactions: paymentpostgres.NewTransactionRepository(db),
		txManager:    paymentpostgres.NewTxManager(db),
		registry:     paymentpkg.NewRegistry(),
		adapter:      &fakeAdapter{},
		bus:          events.NewEventBus(logger.Discard()),
	}
	Expect(f.registry.Register("fake", paymentpkg.GatewayConfig{GatewayName: "Fake"}, f.adapter)).To(Succeed())
	return f
}

func (f *orchestratorFixture) orchestrator(timeout time.Duration) *paymentpkg.Orchestrator {
	return paymentpkg.NewOrchestrator(f.payments, f.transactions, f.txManager, f.registry, f.bus, logger.Discard(), paymentpkg.Config{
		GatewayTimeout: timeout,
		Precision:      paymentpkg.NewPrecision(nil),
	})
}

var _ = Describe("Orchestrator", func() {
	var (
		ctx     context.Context
		fx      *orchestratorFixture
		service *paymentpkg.Orchestrator
		p       *payment.Payment
	)

	newPayment := func(gateway string) *payment.Payment {
		created, err := service.CreatePayment(ctx, paymentpkg.CreatePaymentRequest{
			Gateway:     gateway,
			PaymentType: payment.PaymentTypeDeposit,
			Total:       dec("100"),
			Currency:    "USD",
			IsActive:    true,
			UserID:      "user-1",
			ForceCreate: true,
		})
		Expect(err).ToNot(HaveOccurred())
		return created
	}

	reload := func() *payment.Payment {
		fresh, err := service.GetPayment(ctx, p.ID)
		Expect(err).ToNot(HaveOccurred())
		return fresh
	}

	transactions := func() []*payment.Transaction {
		txns, err := service.ListTransactions(ctx, p.ID)
		Expect(err).ToNot(HaveOccurred())
		return txns
	}

	expectPaymentError := func(err error, msg string) {
		var payErr *paymentpkg.PaymentError
		Expect(errors.As(err, &payErr)).To(BeTrue(), "expected a PaymentError, got %v", err)
		Expect(payErr.Message).To(Equal(msg))
	}

	BeforeEach(func() {
		ctx = context.Background()
		fx = newOrchestratorFixture()
		service = fx.orchestrator(time.Second)
		p = newPayment("fake")
	})

	Describe("Authorize", func() {
		It("records a successful AUTH transaction", func() {
			// When
			updated, txn, err := service.Authorize(ctx, p.ID, "tok_visa", "cus-1")

			// Then
			Expect(err).ToNot(HaveOccurred())
			Expect(txn.Kind).To(Equal(payment.TransactionKindAuth))
			Expect(txn.IsSuccess).To(BeTrue())
			Expect(txn.Token).To(Equal("tok_visa"))
			Expect(txn.Amount.Equal(dec("100"))).To(BeTrue())
			Expect(txn.IsAlreadyProcessed).To(BeTrue())
			Expect(updated.ChargeStatus).To(Equal(payment.ChargeStatusNotCharged))

			calls := fx.adapter.Calls("authorize")
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].data.Token).To(Equal("tok_visa"))
			Expect(calls[0].data.CustomerID).To(Equal("cus-1"))
			Expect(calls[0].data.Amount.Equal(dec("100"))).To(BeTrue())
		})

		It("copies payment method details from the gateway", func() {
			// Given
			expYear := 2030
			fx.adapter.respond = func(_ context.Context, op string, data paymentpkg.PaymentData) (*paymentpkg.GatewayResponse, error) {
				resp := successResponse(op, data)
				resp.PSPReference = "psp-9"
				resp.PaymentMethodInfo = &paymentpkg.PaymentMethodInfo{Brand: "visa", LastDigits: "4242", ExpYear: &expYear, Type: "card"}
				resp.PrivateMetadata = map[string]string{"risk_score": "12"}
				return resp, nil
			}

			// When
			_, _, err := service.Authorize(ctx, p.ID, "tok", "")

			// Then
			Expect(err).ToNot(HaveOccurred())
			fresh := reload()
			Expect(fresh.PSPReference).To(Equal("psp-9"))
			Expect(fresh.CCBrand).To(Equal("visa"))
			Expect(fresh.CCLastDigits).To(Equal("4242"))
			Expect(fresh.CCFirstDigits).To(BeEmpty())
			Expect(fresh.CCExpYear).To(HaveValue(Equal(2030)))
			Expect(fresh.PaymentMethodType).To(Equal("card"))
			Expect(fresh.PrivateMetadata).To(HaveKeyWithValue("risk_score", "12"))
		})

		It("records the acting staff member", func() {
			staffCtx := internal.ContextWithStaffID(ctx, "staff-7")

			_, txn, err := service.Authorize(staffCtx, p.ID, "tok", "")

			Expect(err).ToNot(HaveOccurred())
			Expect(txn.StaffID).To(HaveValue(Equal("staff-7")))
		})

		It("rejects inactive payments without calling the gateway", func() {
			// Given
			p.IsActive = false
			Expect(fx.payments.UpdateFields(ctx, p, paymentpkg.FieldIsActive)).To(Succeed())

			// When
			_, _, err := service.Authorize(ctx, p.ID, "tok", "")

			// Then
			expectPaymentError(err, paymentpkg.MsgPaymentInactive)
			Expect(paymentpkg.ToAppError(err).Code).To(Equal(internal.ErrCodePaymentInactive))
			Expect(fx.adapter.Calls("authorize")).To(BeEmpty())
			Expect(transactions()).To(BeEmpty())
		})

		It("returns not found for unknown payments", func() {
			_, _, err := service.Authorize(ctx, "missing", "tok", "")

			Expect(errors.Is(err, internal.ErrPaymentNotFound)).To(BeTrue())
		})
	})

	Describe("Capture and Refund", func() {
		BeforeEach(func() {
			_, _, err := service.Authorize(ctx, p.ID, "tok_auth", "")
			Expect(err).ToNot(HaveOccurred())
		})

		It("moves through partial and full capture to full refund", func() {
			// When
			_, first, err := service.Capture(ctx, p.ID, decPtr("40"), "")
			Expect(err).ToNot(HaveOccurred())

			// Then
			Expect(first.Kind).To(Equal(payment.TransactionKindCapture))
			Expect(reload().ChargeStatus).To(Equal(payment.ChargeStatusPartiallyCharged))
			Expect(fx.adapter.Calls("capture")[0].data.Token).To(Equal("tok_auth"))

			// When
			updated, _, err := service.Capture(ctx, p.ID, nil, "")
			Expect(err).ToNot(HaveOccurred())

			// Then
			Expect(updated.CapturedAmount.Equal(dec("100"))).To(BeTrue())
			Expect(updated.ChargeStatus).To(Equal(payment.ChargeStatusFullyCharged))
			Expect(fx.adapter.Calls("capture")[1].data.Amount.Equal(dec("60"))).To(BeTrue())

			// When
			refunded, refund, err := service.Refund(ctx, p.ID, nil)
			Expect(err).ToNot(HaveOccurred())

			// Then
			Expect(refund.Amount.Equal(dec("100"))).To(BeTrue())
			Expect(fx.adapter.Calls("refund")[0].data.Token).To(Equal(first.Token))
			Expect(refunded.ChargeStatus).To(Equal(payment.ChargeStatusFullyRefunded))
			Expect(refunded.IsActive).To(BeFalse())
			Expect(refunded.CapturedAmount.IsZero()).To(BeTrue())

			fresh := reload()
			Expect(fresh.ChargeStatus).To(Equal(payment.ChargeStatusFullyRefunded))
			Expect(fresh.IsActive).To(BeFalse())
			Expect(transactions()).To(HaveLen(4))
		})

		It("supports partial refunds", func() {
			_, _, err := service.Capture(ctx, p.ID, nil, "")
			Expect(err).ToNot(HaveOccurred())

			updated, _, err := service.Refund(ctx, p.ID, decPtr("30"))

			Expect(err).ToNot(HaveOccurred())
			Expect(updated.ChargeStatus).To(Equal(payment.ChargeStatusPartiallyRefunded))
			Expect(updated.CapturedAmount.Equal(dec("70"))).To(BeTrue())
			Expect(updated.IsActive).To(BeTrue())
		})

		It("rejects refunds above the captured amount", func() {
			_, _, err := service.Capture(ctx, p.ID, nil, "")
			Expect(err).ToNot(HaveOccurred())

			_, _, err = service.Refund(ctx, p.ID, decPtr("150"))

			expectPaymentError(err, paymentpkg.MsgRefundExceedsCaptured)
			Expect(fx.adapter.Calls("refund")).To(BeEmpty())
			Expect(reload().CapturedAmount.Equal(dec("100"))).To(BeTrue())
		})

		It("rejects a capture that rounds to zero", func() {
			// When
			_, _, err := service.Capture(ctx, p.ID, decPtr("0.004"), "")

			// Then
			expectPaymentError(err, paymentpkg.MsgAmountNotPositive)
			Expect(fx.adapter.Calls("capture")).To(BeEmpty())
			fresh := reload()
			Expect(fresh.ChargeStatus).To(Equal(payment.ChargeStatusNotCharged))
			Expect(fresh.CapturedAmount.IsZero()).To(BeTrue())
			Expect(transactions()).To(HaveLen(1))
		})

		It("rejects a refund that rounds to zero", func() {
			_, _, err := service.Capture(ctx, p.ID, nil, "")
			Expect(err).ToNot(HaveOccurred())

			_, _, err = service.Refund(ctx, p.ID, decPtr("0.004"))

			expectPaymentError(err, paymentpkg.MsgAmountNotPositive)
			Expect(fx.adapter.Calls("refund")).To(BeEmpty())
			Expect(reload().ChargeStatus).To(Equal(payment.ChargeStatusFullyCharged))
		})

		It("sends the rounded amount to the gateway", func() {
			_, txn, err := service.Capture(ctx, p.ID, decPtr("10.456"), "")

			Expect(err).ToNot(HaveOccurred())
			Expect(txn.Amount.Equal(dec("10.46"))).To(BeTrue())
			Expect(fx.adapter.Calls("capture")[0].data.Amount.Equal(dec("10.46"))).To(BeTrue())
			Expect(reload().CapturedAmount.Equal(dec("10.46"))).To(BeTrue())
		})

		It("lets only one of two concurrent captures take the balance", func() {
			// Given
			var wg sync.WaitGroup
			errs := make([]error, 2)

			// When
			for i := range errs {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()
					_, _, errs[i] = service.Capture(ctx, p.ID, decPtr("60"), "")
				}(i)
			}
			wg.Wait()

			// Then
			var failed []error
			for _, err := range errs {
				if err != nil {
					failed = append(failed, err)
				}
			}
			Expect(failed).To(HaveLen(1))
			expectPaymentError(failed[0], paymentpkg.MsgCaptureExceedsBalance)
			Expect(fx.adapter.Calls("capture")).To(HaveLen(1))

			fresh := reload()
			Expect(fresh.CapturedAmount.Equal(dec("60"))).To(BeTrue())
			Expect(fresh.ChargeStatus).To(Equal(payment.ChargeStatusPartiallyCharged))
			Expect(transactions()).To(HaveLen(2))
		})

		It("rejects capturing more than the uncaptured balance", func() {
			// When
			_, _, err := service.Capture(ctx, p.ID, decPtr("150"), "")

			// Then
			expectPaymentError(err, paymentpkg.MsgCaptureExceedsBalance)
			Expect(fx.adapter.Calls("capture")).To(BeEmpty())
			Expect(transactions()).To(HaveLen(1))
		})

		It("returns the stored transaction when the gateway replays a capture", func() {
			// Given
			_, first, err := service.Capture(ctx, p.ID, decPtr("40"), "")
			Expect(err).ToNot(HaveOccurred())

			fx.adapter.respond = func(_ context.Context, op string, data paymentpkg.PaymentData) (*paymentpkg.GatewayResponse, error) {
				resp := successResponse(op, data)
				resp.TransactionAlreadyProcessed = true
				return resp, nil
			}

			// When
			updated, txn, err := service.Capture(ctx, p.ID, decPtr("40"), "")

			// Then
			Expect(err).ToNot(HaveOccurred())
			Expect(txn.ID).To(Equal(first.ID))
			Expect(updated.CapturedAmount.Equal(dec("40"))).To(BeTrue())
			Expect(transactions()).To(HaveLen(2))
		})

		It("persists a failed transaction when the gateway errors", func() {
			// Given
			fx.adapter.respond = func(context.Context, string, paymentpkg.PaymentData) (*paymentpkg.GatewayResponse, error) {
				return nil, errors.New("connection reset")
			}

			// When
			updated, txn, err := service.Capture(ctx, p.ID, nil, "")

			// Then
			expectPaymentError(err, paymentpkg.MsgGatewayExecutionFailed)
			Expect(paymentpkg.ToAppError(err).Code).To(Equal(internal.ErrCodeGatewayUnavailable))
			Expect(updated).ToNot(BeNil())
			Expect(txn.IsSuccess).To(BeFalse())
			Expect(txn.Kind).To(Equal(payment.TransactionKindCapture))
			Expect(txn.Token).To(Equal("tok_auth"))
			Expect(txn.ErrorMessage()).To(Equal(paymentpkg.MsgGatewayExecutionFailed))

			stored, err := fx.transactions.GetByID(ctx, txn.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(stored.IsSuccess).To(BeFalse())
			Expect(reload().ChargeStatus).To(Equal(payment.ChargeStatusNotCharged))
		})

		It("persists a failed transaction when the response is invalid", func() {
			fx.adapter.respond = func(_ context.Context, op string, data paymentpkg.PaymentData) (*paymentpkg.GatewayResponse, error) {
				resp := successResponse(op, data)
				resp.Kind = "SETTLE"
				return resp, nil
			}

			_, txn, err := service.Capture(ctx, p.ID, nil, "")

			expectPaymentError(err, paymentpkg.MsgGatewayValidationFailed)
			Expect(paymentpkg.ToAppError(err).Code).To(Equal(internal.ErrCodePaymentFailed))
			Expect(txn.ErrorMessage()).To(Equal(paymentpkg.MsgGatewayValidationFailed))
			Expect(reload().CapturedAmount.IsZero()).To(BeTrue())
		})

		It("treats a slow gateway as a failed execution", func() {
			// Given
			slow := fx.orchestrator(20 * time.Millisecond)
			fx.adapter.respond = func(ctx context.Context, _ string, _ paymentpkg.PaymentData) (*paymentpkg.GatewayResponse, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}

			// When
			_, txn, err := slow.Capture(ctx, p.ID, nil, "")

			// Then
			expectPaymentError(err, paymentpkg.MsgGatewayExecutionFailed)
			Expect(txn.IsSuccess).To(BeFalse())
		})

		It("recovers from a panicking adapter", func() {
			fx.adapter.respond = func(context.Context, string, paymentpkg.PaymentData) (*paymentpkg.GatewayResponse, error) {
				panic("adapter bug")
			}

			_, txn, err := service.Capture(ctx, p.ID, nil, "")

			expectPaymentError(err, paymentpkg.MsgGatewayExecutionFailed)
			Expect(txn.IsSuccess).To(BeFalse())
		})
	})

	Describe("Capture without authorization", func() {
		It("fails before calling the gateway", func() {
			_, _, err := service.Capture(ctx, p.ID, nil, "")

			expectPaymentError(err, "Cannot find successful AUTH transaction.")
			Expect(fx.adapter.Calls("capture")).To(BeEmpty())
			Expect(transactions()).To(BeEmpty())
		})
	})

	Describe("Declined authorization", func() {
		It("stores the failed attempt and reports the gateway error", func() {
			// Given
			fx.adapter.respond = func(_ context.Context, op string, data paymentpkg.PaymentData) (*paymentpkg.GatewayResponse, error) {
				resp := successResponse(op, data)
				resp.IsSuccess = false
				resp.Error = string(payment.TransactionErrorDeclined)
				return resp, nil
			}

			// When
			_, txn, err := service.Authorize(ctx, p.ID, "tok", "")

			// Then
			expectPaymentError(err, "DECLINED")
			Expect(paymentpkg.ToAppError(err).Code).To(Equal(internal.ErrCodeTransactionDeclined))
			Expect(txn.IsSuccess).To(BeFalse())
			Expect(txn.IsAlreadyProcessed).To(BeFalse())
			Expect(transactions()).To(HaveLen(1))

			_, tokenErr := service.GetPaymentToken(ctx, p.ID)
			expectPaymentError(tokenErr, paymentpkg.MsgUnauthorizedTransaction)
		})
	})

	Describe("Void", func() {
		It("deactivates an authorized payment", func() {
			_, auth, err := service.Authorize(ctx, p.ID, "tok", "")
			Expect(err).ToNot(HaveOccurred())

			updated, txn, err := service.Void(ctx, p.ID)

			Expect(err).ToNot(HaveOccurred())
			Expect(txn.Kind).To(Equal(payment.TransactionKindVoid))
			Expect(fx.adapter.Calls("void")[0].data.Token).To(Equal(auth.Token))
			Expect(updated.IsActive).To(BeFalse())
			Expect(reload().IsActive).To(BeFalse())
		})

		It("refuses charged payments", func() {
			_, _, err := service.Authorize(ctx, p.ID, "tok", "")
			Expect(err).ToNot(HaveOccurred())
			_, _, err = service.Capture(ctx, p.ID, decPtr("10"), "")
			Expect(err).ToNot(HaveOccurred())

			_, _, err = service.Void(ctx, p.ID)

			expectPaymentError(err, paymentpkg.MsgCannotVoid)
		})
	})

	Describe("Confirm", func() {
		It("completes a payment that required customer action", func() {
			// Given
			fx.adapter.respond = func(_ context.Context, op string, data paymentpkg.PaymentData) (*paymentpkg.GatewayResponse, error) {
				resp := successResponse(op, data)
				switch op {
				case "authorize":
					resp.Kind = payment.TransactionKindActionToConfirm
					resp.ActionRequired = true
					resp.TransactionID = "3ds-" + data.PaymentID
					resp.ActionRequiredData = map[string]interface{}{"redirect_url": "https://acs.example/3ds"}
				case "confirm":
					resp.Kind = payment.TransactionKindCapture
				}
				return resp, nil
			}

			// When
			flagged, pending, err := service.Authorize(ctx, p.ID, "tok", "")

			// Then
			Expect(err).ToNot(HaveOccurred())
			Expect(pending.IsActionRequired).To(BeTrue())
			Expect(pending.IsAlreadyProcessed).To(BeFalse())
			Expect(pending.ActionRequiredData).To(HaveKeyWithValue("redirect_url", "https://acs.example/3ds"))
			Expect(flagged.ToConfirm).To(BeTrue())
			Expect(reload().ToConfirm).To(BeTrue())

			// When
			confirmed, txn, err := service.Confirm(ctx, p.ID, map[string]interface{}{"pares": "ok"})

			// Then
			Expect(err).ToNot(HaveOccurred())
			Expect(txn.Kind).To(Equal(payment.TransactionKindCapture))
			call := fx.adapter.Calls("confirm")[0]
			Expect(call.data.Token).To(Equal("3ds-" + p.ID))
			Expect(call.data.Data).To(HaveKeyWithValue("pares", "ok"))
			Expect(confirmed.ToConfirm).To(BeFalse())
			Expect(confirmed.ChargeStatus).To(Equal(payment.ChargeStatusFullyCharged))
		})

		It("sends no token when nothing awaits confirmation", func() {
			_, _, err := service.Confirm(ctx, p.ID, nil)

			Expect(err).ToNot(HaveOccurred())
			Expect(fx.adapter.Calls("confirm")[0].data.Token).To(BeEmpty())
		})
	})

	Describe("Process", func() {
		It("authorizes and captures in one call", func() {
			updated, txn, err := service.Process(ctx, p.ID, "tok", "cus-1", nil)

			Expect(err).ToNot(HaveOccurred())
			Expect(txn.Kind).To(Equal(payment.TransactionKindCapture))
			Expect(updated.ChargeStatus).To(Equal(payment.ChargeStatusFullyCharged))
			Expect(fx.adapter.Calls("process")).To(HaveLen(1))
		})
	})

	Describe("unknown gateway", func() {
		It("rolls back without writing a transaction", func() {
			p = newPayment("ghost")

			_, _, err := service.Authorize(ctx, p.ID, "tok", "")

			Expect(err).To(MatchError(paymentpkg.ErrGatewayNotConfigured))
			Expect(paymentpkg.ToAppError(err).Code).To(Equal(internal.ErrCodeGatewayNotConfigured))
			Expect(transactions()).To(BeEmpty())
		})
	})

	Describe("events", func() {
		It("publishes success and failure events", func() {
			// Given
			var (
				mu       sync.Mutex
				received []string
			)
			fx.bus.Subscribe(events.WildcardEventType, func(_ context.Context, event events.Event) error {
				mu.Lock()
				defer mu.Unlock()
				received = append(received, event.EventType())
				return nil
			})

			// When
			_, _, err := service.Authorize(ctx, p.ID, "tok", "")
			Expect(err).ToNot(HaveOccurred())
			_, _, err = service.Capture(ctx, p.ID, decPtr("500"), "")
			Expect(err).To(HaveOccurred())

			fx.adapter.respond = func(context.Context, string, paymentpkg.PaymentData) (*paymentpkg.GatewayResponse, error) {
				return nil, errors.New("down")
			}
			_, _, err = service.Capture(ctx, p.ID, nil, "")
			Expect(err).To(HaveOccurred())
			fx.bus.Wait()

			// Then
			mu.Lock()
			defer mu.Unlock()
			Expect(received).To(ConsistOf(events.EventTypePaymentAuthorized, events.EventTypePaymentFailed))
		})
	})

	Describe("GetPaymentToken", func() {
		It("returns the authorization token", func() {
			_, _, err := service.Authorize(ctx, p.ID, "tok_auth", "")
			Expect(err).ToNot(HaveOccurred())

			token, err := service.GetPaymentToken(ctx, p.ID)

			Expect(err).ToNot(HaveOccurred())
			Expect(token).To(Equal("tok_auth"))
		})
	})

	Describe("gateway listings", func() {
		It("lists registered gateways", func() {
			gateways := service.ListGateways("")
			Expect(gateways).To(HaveLen(1))
			Expect(gateways[0].Name).To(Equal("Fake"))
		})

		It("returns no sources for adapters that do not store them", func() {
			sources, err := service.ListPaymentSources(ctx, "fake", "cus-1")

			Expect(err).ToNot(HaveOccurred())
			Expect(sources).To(BeEmpty())
		})

		It("rejects client tokens for adapters without a token provider", func() {
			_, err := service.GetClientToken(ctx, "fake", paymentpkg.TokenConfig{})
			Expect(err).To(HaveOccurred())
		})
	})
})
