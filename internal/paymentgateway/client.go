package paymentgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/frahmantamala/payment-core/internal/core/datamodel/payment"
	paymentgatewaytypes "github.com/frahmantamala/payment-core/internal/core/datamodel/paymentgateway"
	paymentpkg "github.com/frahmantamala/payment-core/internal/payment"
)

// Client is a GatewayAdapter for processors that expose the generic JSON API:
// POST {base}/payments/{operation} with amounts in minor units.
type Client struct {
	name       string
	apiURL     string
	apiKey     string
	timeout    time.Duration
	precision  paymentpkg.Precision
	httpClient *http.Client
	logger     *slog.Logger
}

type Config struct {
	Name      string
	APIURL    string
	APIKey    string
	Timeout   time.Duration
	Precision paymentpkg.Precision
}

func NewClient(config Config, logger *slog.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		name:       config.Name,
		apiURL:     strings.TrimRight(config.APIURL, "/"),
		apiKey:     config.APIKey,
		timeout:    timeout,
		precision:  config.Precision,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("gateway", config.Name),
	}
}

func (c *Client) Authorize(ctx context.Context, data paymentpkg.PaymentData) (*paymentpkg.GatewayResponse, error) {
	return c.execute(ctx, paymentgatewaytypes.OperationAuthorize, payment.TransactionKindAuth, data)
}

func (c *Client) Capture(ctx context.Context, data paymentpkg.PaymentData) (*paymentpkg.GatewayResponse, error) {
	return c.execute(ctx, paymentgatewaytypes.OperationCapture, payment.TransactionKindCapture, data)
}

func (c *Client) Refund(ctx context.Context, data paymentpkg.PaymentData) (*paymentpkg.GatewayResponse, error) {
	return c.execute(ctx, paymentgatewaytypes.OperationRefund, payment.TransactionKindRefund, data)
}

func (c *Client) Void(ctx context.Context, data paymentpkg.PaymentData) (*paymentpkg.GatewayResponse, error) {
	return c.execute(ctx, paymentgatewaytypes.OperationVoid, payment.TransactionKindVoid, data)
}

func (c *Client) Confirm(ctx context.Context, data paymentpkg.PaymentData) (*paymentpkg.GatewayResponse, error) {
	return c.execute(ctx, paymentgatewaytypes.OperationConfirm, payment.TransactionKindConfirm, data)
}

func (c *Client) Process(ctx context.Context, data paymentpkg.PaymentData) (*paymentpkg.GatewayResponse, error) {
	return c.execute(ctx, paymentgatewaytypes.OperationProcess, payment.TransactionKindCapture, data)
}

func (c *Client) execute(ctx context.Context, op paymentgatewaytypes.Operation, kind payment.TransactionKind, data paymentpkg.PaymentData) (*paymentpkg.GatewayResponse, error) {
	req := &paymentgatewaytypes.PaymentRequest{
		PaymentID:          data.PaymentID,
		Token:              data.Token,
		Amount:             c.precision.ToMinorUnit(data.Amount, data.Currency),
		Currency:           data.Currency,
		CustomerID:         data.CustomerID,
		CustomerIPAddress:  data.CustomerIPAddress,
		CustomerEmail:      data.CustomerEmail,
		PSPReference:       data.PSPReference,
		StorePaymentMethod: string(data.StorePaymentMethod),
		Metadata:           data.PaymentMetadata,
		Data:               data.Data,
	}
	if err := req.Validate(); err != nil {
		c.logger.Error("payment request validation failed", "error", err)
		return nil, fmt.Errorf("validation error: %w", err)
	}

	c.logger.Info("sending payment request",
		"operation", op,
		"payment_id", req.PaymentID,
		"amount", req.Amount,
		"currency", req.Currency)

	body, status, err := c.do(ctx, http.MethodPost, "/payments/"+string(op), req)
	if err != nil {
		return nil, err
	}
	if status >= http.StatusInternalServerError {
		return nil, fmt.Errorf("gateway returned status %d", status)
	}

	var apiResponse paymentgatewaytypes.PaymentResponse
	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	raw := map[string]interface{}{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	resp := c.toGatewayResponse(apiResponse.Data, kind, data, raw)
	if status >= http.StatusBadRequest && resp.Error == "" {
		resp.IsSuccess = false
		resp.Error = fmt.Sprintf("gateway returned status %d", status)
	}

	c.logger.Info("payment response received",
		"operation", op,
		"payment_id", req.PaymentID,
		"status", apiResponse.Data.Status,
		"transaction_id", resp.TransactionID)

	return resp, nil
}

func (c *Client) toGatewayResponse(d paymentgatewaytypes.PaymentData, kind payment.TransactionKind, data paymentpkg.PaymentData, raw map[string]interface{}) *paymentpkg.GatewayResponse {
	resp := &paymentpkg.GatewayResponse{
		IsSuccess:                   d.Status != paymentgatewaytypes.StatusFailed,
		ActionRequired:              d.ActionRequired,
		Kind:                        kind,
		Amount:                      data.Amount,
		Currency:                    data.Currency,
		TransactionID:               d.ID,
		Error:                       d.Error,
		CustomerID:                  d.CustomerID,
		RawResponse:                 raw,
		ActionRequiredData:          d.ActionRequiredData,
		TransactionAlreadyProcessed: d.AlreadyProcessed,
		PSPReference:                d.PSPReference,
	}

	switch {
	case d.Kind != "":
		resp.Kind = payment.TransactionKind(strings.ToUpper(d.Kind))
	case d.ActionRequired:
		resp.Kind = payment.TransactionKindActionToConfirm
	case d.Status == paymentgatewaytypes.StatusPending:
		resp.Kind = payment.TransactionKindPending
	}
	if d.Currency != "" {
		resp.Currency = strings.ToUpper(d.Currency)
	}
	if d.Amount > 0 {
		resp.Amount = c.precision.FromMinorUnit(d.Amount, resp.Currency)
	}
	if resp.TransactionID == "" {
		resp.TransactionID = data.Token
	}
	if d.PaymentMethod != nil {
		resp.PaymentMethodInfo = toPaymentMethodInfo(d.PaymentMethod)
	}
	if len(d.PrivateMetadata) > 0 {
		resp.PrivateMetadata = cast.ToStringMapString(d.PrivateMetadata)
	}
	return resp
}

// ListPaymentSources returns the payment sources stored for customerID.
func (c *Client) ListPaymentSources(ctx context.Context, customerID string) ([]paymentpkg.CustomerSource, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/customers/"+url.PathEscape(customerID)+"/sources", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", status)
	}

	var apiResponse paymentgatewaytypes.PaymentSourcesResponse
	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	sources := make([]paymentpkg.CustomerSource, 0, len(apiResponse.Data))
	for _, s := range apiResponse.Data {
		source := paymentpkg.CustomerSource{
			ID:       s.ID,
			Gateway:  c.name,
			Metadata: cast.ToStringMapString(s.Metadata),
		}
		if s.PaymentMethod != nil {
			source.CreditCardInfo = toPaymentMethodInfo(s.PaymentMethod)
		}
		sources = append(sources, source)
	}
	return sources, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal payment request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func toPaymentMethodInfo(m *paymentgatewaytypes.PaymentMethod) *paymentpkg.PaymentMethodInfo {
	info := &paymentpkg.PaymentMethodInfo{
		FirstDigits: m.FirstDigits,
		LastDigits:  m.LastDigits,
		Brand:       m.Brand,
		Name:        m.Name,
		Type:        m.Type,
	}
	if m.ExpYear > 0 {
		year := m.ExpYear
		info.ExpYear = &year
	}
	if m.ExpMonth > 0 {
		month := m.ExpMonth
		info.ExpMonth = &month
	}
	return info
}
