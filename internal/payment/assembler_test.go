package payment_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/payment-core/internal/core/datamodel/payment"
	paymentpkg "github.com/frahmantamala/payment-core/internal/payment"
)

var _ = Describe("Precision", func() {
	var precision paymentpkg.Precision

	BeforeEach(func() {
		precision = paymentpkg.NewPrecision(map[string]int32{"usd": 2, "BTC": 8})
	})

	It("uses the ISO 4217 scale when there is no override", func() {
		Expect(precision.Scale("JPY")).To(Equal(int32(0)))
		Expect(precision.Scale("EUR")).To(Equal(int32(2)))
	})

	It("prefers overrides, case-insensitively", func() {
		Expect(precision.Scale("USD")).To(Equal(int32(2)))
		Expect(precision.Scale("btc")).To(Equal(int32(8)))
	})

	It("falls back to two places for unknown codes", func() {
		Expect(precision.Scale("ZZZ")).To(Equal(int32(2)))
	})

	It("converts to and from minor units", func() {
		Expect(precision.ToMinorUnit(dec("10.50"), "USD")).To(Equal(int64(1050)))
		Expect(precision.ToMinorUnit(dec("1234"), "JPY")).To(Equal(int64(1234)))
		Expect(precision.FromMinorUnit(1050, "USD").Equal(dec("10.5"))).To(BeTrue())
		Expect(precision.FromMinorUnit(1234, "JPY").Equal(dec("1234"))).To(BeTrue())
	})

	It("quantizes to the currency scale", func() {
		Expect(precision.Quantize(dec("10.456"), "USD").String()).To(Equal("10.46"))
		Expect(precision.Quantize(dec("99.6"), "JPY").String()).To(Equal("100"))
	})
})

var _ = Describe("CreatePaymentInformation", func() {
	var (
		p         *payment.Payment
		precision paymentpkg.Precision
	)

	BeforeEach(func() {
		precision = paymentpkg.NewPrecision(nil)
		p = &payment.Payment{
			ID:                "pay-1",
			Gateway:           "acme",
			TotalAmount:       dec("100"),
			CapturedAmount:    dec("40"),
			Currency:          "USD",
			CustomerIPAddress: "10.0.0.1",
			PSPReference:      "psp-1",
			PublicMetadata:    map[string]interface{}{"order": "A-1"},
		}
	})

	Context("when no amount is given", func() {
		It("charges the uncaptured balance", func() {
			// When
			data := paymentpkg.CreatePaymentInformation(p, paymentpkg.PaymentParams{Token: "tok"}, precision)

			// Then
			Expect(data.Amount.Equal(dec("60"))).To(BeTrue())
			Expect(data.Token).To(Equal("tok"))
			Expect(data.Gateway).To(Equal("acme"))
			Expect(data.PaymentID).To(Equal("pay-1"))
			Expect(data.CustomerIPAddress).To(Equal("10.0.0.1"))
			Expect(data.PSPReference).To(Equal("psp-1"))
		})
	})

	Context("when an amount is given", func() {
		It("quantizes it to the currency precision", func() {
			data := paymentpkg.CreatePaymentInformation(p, paymentpkg.PaymentParams{Amount: decPtr("12.345")}, precision)

			Expect(data.Amount.String()).To(Equal("12.35"))
		})
	})

	It("defaults optional fields", func() {
		data := paymentpkg.CreatePaymentInformation(p, paymentpkg.PaymentParams{}, precision)

		Expect(data.Data).ToNot(BeNil())
		Expect(data.Data).To(BeEmpty())
		Expect(data.StorePaymentMethod).To(Equal(payment.StorePaymentMethodNone))
	})

	It("copies public metadata", func() {
		data := paymentpkg.CreatePaymentInformation(p, paymentpkg.PaymentParams{}, precision)
		data.PaymentMetadata["order"] = "changed"

		Expect(p.PublicMetadata["order"]).To(Equal("A-1"))
	})
})
