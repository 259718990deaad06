package paymentgateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/payment-core/internal/core/datamodel/payment"
	paymentgatewaytypes "github.com/frahmantamala/payment-core/internal/core/datamodel/paymentgateway"
	paymentpkg "github.com/frahmantamala/payment-core/internal/payment"
	"github.com/frahmantamala/payment-core/internal/paymentgateway"
	"github.com/frahmantamala/payment-core/pkg/logger"
)

var _ = Describe("Client", func() {
	var (
		server      *httptest.Server
		client      *paymentgateway.Client
		lastPath    string
		lastAuth    string
		lastRequest paymentgatewaytypes.PaymentRequest
		status      int
		reply       interface{}
		data        paymentpkg.PaymentData
	)

	BeforeEach(func() {
		status = http.StatusOK
		reply = paymentgatewaytypes.PaymentResponse{Data: paymentgatewaytypes.PaymentData{
			ID:     "gw-txn-1",
			Status: paymentgatewaytypes.StatusSuccess,
			Amount: 1050,
		}}

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lastPath = r.URL.Path
			lastAuth = r.Header.Get("Authorization")
			if r.Method == http.MethodPost {
				_ = json.NewDecoder(r.Body).Decode(&lastRequest)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(reply)
		}))

		client = paymentgateway.NewClient(paymentgateway.Config{
			Name:      "acme",
			APIURL:    server.URL + "/",
			APIKey:    "secret",
			Precision: paymentpkg.NewPrecision(nil),
		}, logger.Discard())

		data = paymentpkg.PaymentData{
			Gateway:   "acme",
			PaymentID: "pay-1",
			Amount:    decimal.RequireFromString("10.50"),
			Currency:  "USD",
			Token:     "tok",
		}
	})

	AfterEach(func() {
		server.Close()
	})

	Context("when the gateway accepts the request", func() {
		It("sends minor units and maps the response", func() {
			// When
			resp, err := client.Capture(context.Background(), data)

			// Then
			Expect(err).ToNot(HaveOccurred())
			Expect(lastPath).To(Equal("/payments/capture"))
			Expect(lastAuth).To(Equal("Bearer secret"))
			Expect(lastRequest.Amount).To(Equal(int64(1050)))
			Expect(lastRequest.PaymentID).To(Equal("pay-1"))

			Expect(resp.IsSuccess).To(BeTrue())
			Expect(resp.Kind).To(Equal(payment.TransactionKindCapture))
			Expect(resp.TransactionID).To(Equal("gw-txn-1"))
			Expect(resp.Amount.Equal(decimal.RequireFromString("10.5"))).To(BeTrue())
			Expect(resp.Currency).To(Equal("USD"))
			Expect(resp.RawResponse).To(HaveKey("data"))
		})

		It("honours the reported kind and payment method", func() {
			reply = paymentgatewaytypes.PaymentResponse{Data: paymentgatewaytypes.PaymentData{
				ID:     "gw-txn-2",
				Kind:   "pending",
				Status: paymentgatewaytypes.StatusPending,
				PaymentMethod: &paymentgatewaytypes.PaymentMethod{
					Brand:      "mastercard",
					LastDigits: "4444",
					ExpYear:    2031,
				},
				PrivateMetadata: map[string]interface{}{"risk_score": 12, "channel": "web"},
			}}

			resp, err := client.Authorize(context.Background(), data)

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.Kind).To(Equal(payment.TransactionKindPending))
			Expect(resp.Amount.Equal(data.Amount)).To(BeTrue())
			Expect(resp.PaymentMethodInfo.Brand).To(Equal("mastercard"))
			Expect(resp.PaymentMethodInfo.ExpYear).To(HaveValue(Equal(2031)))
			Expect(resp.PaymentMethodInfo.ExpMonth).To(BeNil())
			Expect(resp.PrivateMetadata).To(Equal(map[string]string{"risk_score": "12", "channel": "web"}))
		})

		It("flags responses that need customer action", func() {
			reply = paymentgatewaytypes.PaymentResponse{Data: paymentgatewaytypes.PaymentData{
				ID:                 "gw-3ds",
				Status:             paymentgatewaytypes.StatusSuccess,
				ActionRequired:     true,
				ActionRequiredData: map[string]interface{}{"redirect_url": "https://acs.example"},
			}}

			resp, err := client.Authorize(context.Background(), data)

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.ActionRequired).To(BeTrue())
			Expect(resp.Kind).To(Equal(payment.TransactionKindActionToConfirm))
			Expect(resp.ActionRequiredData).To(HaveKeyWithValue("redirect_url", "https://acs.example"))
		})
	})

	Context("when the gateway declines", func() {
		It("returns an unsuccessful response", func() {
			reply = paymentgatewaytypes.PaymentResponse{Data: paymentgatewaytypes.PaymentData{
				ID:     "gw-txn-3",
				Status: paymentgatewaytypes.StatusFailed,
				Error:  "DECLINED",
			}}

			resp, err := client.Authorize(context.Background(), data)

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.IsSuccess).To(BeFalse())
			Expect(resp.Error).To(Equal("DECLINED"))
		})

		It("treats client errors without a message as failures", func() {
			status = http.StatusPaymentRequired
			reply = map[string]interface{}{"data": map[string]interface{}{"id": "gw-txn-4"}}

			resp, err := client.Refund(context.Background(), data)

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.IsSuccess).To(BeFalse())
			Expect(resp.Error).To(ContainSubstring("402"))
		})
	})

	Context("when the gateway is broken", func() {
		It("returns an error for server errors", func() {
			status = http.StatusBadGateway

			_, err := client.Void(context.Background(), data)

			Expect(err).To(MatchError(ContainSubstring("502")))
		})

		It("rejects requests without a currency before calling out", func() {
			data.Currency = ""
			lastPath = ""

			_, err := client.Process(context.Background(), data)

			Expect(err).To(MatchError(ContainSubstring("currency is required")))
			Expect(lastPath).To(BeEmpty())
		})
	})

	Describe("ListPaymentSources", func() {
		It("maps stored sources and stringifies metadata", func() {
			reply = paymentgatewaytypes.PaymentSourcesResponse{Data: []paymentgatewaytypes.PaymentSource{{
				ID:            "src-1",
				PaymentMethod: &paymentgatewaytypes.PaymentMethod{Brand: "visa", LastDigits: "4242"},
				Metadata:      map[string]interface{}{"default": true, "priority": 2},
			}}}

			sources, err := client.ListPaymentSources(context.Background(), "cus 1")

			Expect(err).ToNot(HaveOccurred())
			Expect(lastPath).To(Equal("/customers/cus 1/sources"))
			Expect(sources).To(HaveLen(1))
			Expect(sources[0].ID).To(Equal("src-1"))
			Expect(sources[0].Gateway).To(Equal("acme"))
			Expect(sources[0].CreditCardInfo.LastDigits).To(Equal("4242"))
			Expect(sources[0].Metadata).To(Equal(map[string]string{"default": "true", "priority": "2"}))
		})

		It("fails on non-200 responses", func() {
			status = http.StatusNotFound

			_, err := client.ListPaymentSources(context.Background(), "cus-1")

			Expect(err).To(HaveOccurred())
		})
	})
})
