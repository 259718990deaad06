package paymentgateway

import (
	"errors"
)

type Operation string

const (
	OperationAuthorize Operation = "authorize"
	OperationCapture   Operation = "capture"
	OperationRefund    Operation = "refund"
	OperationVoid      Operation = "void"
	OperationConfirm   Operation = "confirm"
	OperationProcess   Operation = "process"
)

// PaymentRequest is the body posted to a remote gateway. Amount is in minor units.
type PaymentRequest struct {
	PaymentID          string                 `json:"payment_id"`
	Token              string                 `json:"token,omitempty"`
	Amount             int64                  `json:"amount"`
	Currency           string                 `json:"currency"`
	CustomerID         string                 `json:"customer_id,omitempty"`
	CustomerIPAddress  string                 `json:"customer_ip_address,omitempty"`
	CustomerEmail      string                 `json:"customer_email,omitempty"`
	PSPReference       string                 `json:"psp_reference,omitempty"`
	StorePaymentMethod string                 `json:"store_payment_method,omitempty"`
	Metadata           map[string]interface{} `json:"metadata,omitempty"`
	Data               map[string]interface{} `json:"data,omitempty"`
}

func (r *PaymentRequest) Validate() error {
	if r.PaymentID == "" {
		return errors.New("payment_id is required")
	}
	if r.Amount < 0 {
		return errors.New("amount must not be negative")
	}
	if r.Currency == "" {
		return errors.New("currency is required")
	}
	return nil
}

type PaymentMethod struct {
	FirstDigits string `json:"first_4,omitempty"`
	LastDigits  string `json:"last_4,omitempty"`
	ExpYear     int    `json:"exp_year,omitempty"`
	ExpMonth    int    `json:"exp_month,omitempty"`
	Brand       string `json:"brand,omitempty"`
	Name        string `json:"name,omitempty"`
	Type        string `json:"type,omitempty"`
}

type PaymentData struct {
	ID                 string                 `json:"id"`
	Kind               string                 `json:"kind"`
	Status             string                 `json:"status"`
	Amount             int64                  `json:"amount"`
	Currency           string                 `json:"currency"`
	ActionRequired     bool                   `json:"action_required"`
	ActionRequiredData map[string]interface{} `json:"action_required_data,omitempty"`
	AlreadyProcessed   bool                   `json:"already_processed"`
	CustomerID         string                 `json:"customer_id,omitempty"`
	PSPReference       string                 `json:"psp_reference,omitempty"`
	PrivateMetadata    map[string]interface{} `json:"private_metadata,omitempty"`
	PaymentMethod      *PaymentMethod         `json:"payment_method,omitempty"`
	Error              string                 `json:"error,omitempty"`
}

type PaymentResponse struct {
	Data PaymentData `json:"data"`
}

type PaymentSource struct {
	ID            string                 `json:"id"`
	PaymentMethod *PaymentMethod         `json:"payment_method,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

type PaymentSourcesResponse struct {
	Data []PaymentSource `json:"data"`
}

const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
	StatusPending = "PENDING"
)
