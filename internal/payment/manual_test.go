package payment_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/payment-core/internal"
	"github.com/frahmantamala/payment-core/internal/core/datamodel/payment"
	paymentpkg "github.com/frahmantamala/payment-core/internal/payment"
)

var _ = Describe("Manual deposits", func() {
	var (
		ctx     context.Context
		fx      *orchestratorFixture
		service *paymentpkg.Orchestrator
	)

	BeforeEach(func() {
		ctx = context.Background()
		fx = newOrchestratorFixture()
		service = fx.orchestrator(time.Second)
	})

	Describe("CreateManualDeposit", func() {
		It("stores a charged MANUAL payment with an EXTERNAL transaction", func() {
			// When
			p, txn, err := service.CreateManualDeposit(ctx, paymentpkg.ManualDepositRequest{
				UserID:            "user-1",
				WalletID:          "wallet-1",
				StaffID:           "staff-1",
				Currency:          "usd",
				Amount:            dec("250.005"),
				ExternalReference: "bank-ref-1",
			})

			// Then
			Expect(err).ToNot(HaveOccurred())
			Expect(p.Gateway).To(Equal(payment.GatewayManual))
			Expect(p.PaymentType).To(Equal(payment.PaymentTypeDeposit))
			Expect(p.ChargeStatus).To(Equal(payment.ChargeStatusFullyCharged))
			Expect(p.Currency).To(Equal("USD"))
			Expect(p.TotalAmount.String()).To(Equal("250.01"))
			Expect(p.CapturedAmount.Equal(p.TotalAmount)).To(BeTrue())
			Expect(p.IsActive).To(BeTrue())
			Expect(p.PSPReference).To(Equal("bank-ref-1"))
			Expect(p.StaffID).To(HaveValue(Equal("staff-1")))

			Expect(txn.Kind).To(Equal(payment.TransactionKindExternal))
			Expect(txn.IsSuccess).To(BeTrue())
			Expect(txn.IsAlreadyProcessed).To(BeTrue())
			Expect(txn.Token).To(Equal("bank-ref-1"))
			Expect(txn.Amount.Equal(p.TotalAmount)).To(BeTrue())
			Expect(fx.adapter.calls).To(BeEmpty())
		})

		It("takes the staff member from the context", func() {
			staffCtx := internal.ContextWithStaffID(ctx, "staff-9")

			p, txn, err := service.CreateManualDeposit(staffCtx, paymentpkg.ManualDepositRequest{
				UserID: "user-1", Currency: "USD", Amount: dec("10"),
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(p.StaffID).To(HaveValue(Equal("staff-9")))
			Expect(txn.StaffID).To(HaveValue(Equal("staff-9")))
		})

		It("rejects a reused external reference", func() {
			req := paymentpkg.ManualDepositRequest{UserID: "user-1", Currency: "USD", Amount: dec("10"), ExternalReference: "bank-ref-2"}
			_, _, err := service.CreateManualDeposit(ctx, req)
			Expect(err).ToNot(HaveOccurred())

			_, _, err = service.CreateManualDeposit(ctx, req)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeDuplicateExternalRef))
		})

		It("rejects non-positive amounts", func() {
			_, _, err := service.CreateManualDeposit(ctx, paymentpkg.ManualDepositRequest{Currency: "USD", Amount: dec("0")})

			var payErr *paymentpkg.PaymentError
			Expect(errors.As(err, &payErr)).To(BeTrue())
			Expect(payErr.Message).To(Equal(paymentpkg.MsgAmountNotPositive))
		})

		It("rejects unknown currencies", func() {
			_, _, err := service.CreateManualDeposit(ctx, paymentpkg.ManualDepositRequest{Currency: "XYZ1", Amount: dec("5")})

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})

		It("can be refunded without a gateway", func() {
			// Given
			p, _, err := service.CreateManualDeposit(ctx, paymentpkg.ManualDepositRequest{
				UserID: "user-1", Currency: "USD", Amount: dec("80"), ExternalReference: "bank-ref-3",
			})
			Expect(err).ToNot(HaveOccurred())

			// When
			refunded, txn, err := service.Refund(ctx, p.ID, decPtr("30"))

			// Then
			Expect(err).ToNot(HaveOccurred())
			Expect(txn.Kind).To(Equal(payment.TransactionKindRefund))
			Expect(txn.IsSuccess).To(BeTrue())
			Expect(txn.Token).To(Equal("bank-ref-3"))
			Expect(refunded.ChargeStatus).To(Equal(payment.ChargeStatusPartiallyRefunded))
			Expect(refunded.CapturedAmount.Equal(dec("50"))).To(BeTrue())
			Expect(fx.adapter.Calls("refund")).To(BeEmpty())
		})
	})

	Describe("CreatePayment", func() {
		req := paymentpkg.CreatePaymentRequest{
			Gateway:     "fake",
			PaymentType: payment.PaymentTypeDeposit,
			Total:       dec("42"),
			Currency:    "EUR",
			IsActive:    true,
			UserID:      "user-2",
		}

		It("returns the existing payment for identical requests", func() {
			first, err := service.CreatePayment(ctx, req)
			Expect(err).ToNot(HaveOccurred())
			Expect(first.ChargeStatus).To(Equal(payment.ChargeStatusNotCharged))
			Expect(first.StorePaymentMethod).To(Equal(payment.StorePaymentMethodNone))

			second, err := service.CreatePayment(ctx, req)
			Expect(err).ToNot(HaveOccurred())
			Expect(second.ID).To(Equal(first.ID))
		})

		It("creates a new payment when forced", func() {
			first, err := service.CreatePayment(ctx, req)
			Expect(err).ToNot(HaveOccurred())

			forced := req
			forced.ForceCreate = true
			second, err := service.CreatePayment(ctx, forced)

			Expect(err).ToNot(HaveOccurred())
			Expect(second.ID).ToNot(Equal(first.ID))

			listed, err := service.ListPayments(ctx, paymentpkg.PaymentFilter{UserID: "user-2"}, 0, 10)
			Expect(err).ToNot(HaveOccurred())
			Expect(listed).To(HaveLen(2))
		})
	})
})
