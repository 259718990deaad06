package payment

import (
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/payment-core/internal/core/datamodel/payment"
)

// PaymentMethodInfo is the card or wallet detail a gateway may report back.
type PaymentMethodInfo struct {
	FirstDigits    string
	LastDigits     string
	ExpYear        *int
	ExpMonth       *int
	Brand          string
	Name           string
	Type           string
	PaymentOrderID string
}

// GatewayResponse is the normalized result of one adapter call.
type GatewayResponse struct {
	IsSuccess          bool
	ActionRequired     bool
	Kind               payment.TransactionKind
	Amount             decimal.Decimal
	Currency           string
	TransactionID      string
	Error              string
	CustomerID         string
	PaymentMethodInfo  *PaymentMethodInfo
	RawResponse        map[string]interface{}
	ActionRequiredData map[string]interface{}
	// TransactionAlreadyProcessed is set by gateways that handle events
	// asynchronously and may report the same outcome twice.
	TransactionAlreadyProcessed bool
	PSPReference                string
	PrivateMetadata             map[string]string
}

// PaymentData is the gateway-agnostic request built for every operation.
type PaymentData struct {
	Gateway            string
	Amount             decimal.Decimal
	Currency           string
	PaymentID          string
	CustomerEmail      string
	CustomerIPAddress  string
	Token              string
	CustomerID         string
	Data               map[string]interface{}
	StorePaymentMethod payment.StorePaymentMethod
	PaymentMetadata    map[string]interface{}
	PSPReference       string
}

type TokenConfig struct {
	CustomerID string
}

// GatewayConfig describes a registered gateway. ConnectionParams are opaque
// to the core and differ per processor.
type GatewayConfig struct {
	GatewayName         string
	AutoCapture         bool
	SupportedCurrencies []string
	ConnectionParams    map[string]string
	StoreCustomer       bool
	Require3DSecure     bool
}

// CustomerSource is a payment source stored for a customer at a gateway.
type CustomerSource struct {
	ID             string
	Gateway        string
	CreditCardInfo *PaymentMethodInfo
	Metadata       map[string]string
}

// PaymentGateway is the public listing entry of a registered gateway.
type PaymentGateway struct {
	ID         string
	Name       string
	Currencies []string
	Config     []map[string]interface{}
}
