package payment

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/frahmantamala/payment-core/internal/core/datamodel/payment"
)

const defaultScale int32 = 2

// Precision is the currency precision table. Explicit overrides win over the
// ISO 4217 minor-unit scale; unknown codes use two decimal places.
type Precision struct {
	overrides map[string]int32
}

func NewPrecision(overrides map[string]int32) Precision {
	p := Precision{overrides: make(map[string]int32, len(overrides))}
	for code, scale := range overrides {
		p.overrides[strings.ToUpper(code)] = scale
	}
	return p
}

func (p Precision) Scale(code string) int32 {
	code = strings.ToUpper(code)
	if scale, ok := p.overrides[code]; ok {
		return scale
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return defaultScale
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

func (p Precision) Quantize(amount decimal.Decimal, code string) decimal.Decimal {
	return amount.Round(p.Scale(code))
}

// ToMinorUnit converts 10.00 USD to 1000.
func (p Precision) ToMinorUnit(amount decimal.Decimal, code string) int64 {
	scale := p.Scale(code)
	return amount.Round(scale).Shift(scale).IntPart()
}

// FromMinorUnit converts 1000 USD to 10.00.
func (p Precision) FromMinorUnit(value int64, code string) decimal.Decimal {
	return decimal.New(value, -p.Scale(code))
}

// PaymentParams are the operation-specific inputs to CreatePaymentInformation.
// A nil Amount means the outstanding charge amount.
type PaymentParams struct {
	Token          string
	Amount         *decimal.Decimal
	CustomerID     string
	CustomerEmail  string
	AdditionalData map[string]interface{}
}

// CreatePaymentInformation builds the gateway request for one operation on p.
func CreatePaymentInformation(p *payment.Payment, params PaymentParams, precision Precision) PaymentData {
	amount := p.ChargeAmount()
	if params.Amount != nil {
		amount = *params.Amount
	}

	data := params.AdditionalData
	if data == nil {
		data = map[string]interface{}{}
	}

	metadata := make(map[string]interface{}, len(p.PublicMetadata))
	for k, v := range p.PublicMetadata {
		metadata[k] = v
	}

	storeMethod := p.StorePaymentMethod
	if storeMethod == "" {
		storeMethod = payment.StorePaymentMethodNone
	}

	return PaymentData{
		Gateway:            p.Gateway,
		Amount:             precision.Quantize(amount, p.Currency),
		Currency:           p.Currency,
		PaymentID:          p.ID,
		CustomerEmail:      params.CustomerEmail,
		CustomerIPAddress:  p.CustomerIPAddress,
		Token:              params.Token,
		CustomerID:         params.CustomerID,
		Data:               data,
		StorePaymentMethod: storeMethod,
		PaymentMetadata:    metadata,
		PSPReference:       p.PSPReference,
	}
}
