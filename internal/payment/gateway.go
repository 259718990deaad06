package payment

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/frahmantamala/payment-core/internal/core/datamodel/payment"
)

// GatewayAdapter is implemented once per payment processor. Returning a
// *GatewayError or *PaymentError, or any other error, is recorded as a failed
// transaction; it does not abort the operation.
type GatewayAdapter interface {
	Authorize(ctx context.Context, data PaymentData) (*GatewayResponse, error)
	Capture(ctx context.Context, data PaymentData) (*GatewayResponse, error)
	Refund(ctx context.Context, data PaymentData) (*GatewayResponse, error)
	Void(ctx context.Context, data PaymentData) (*GatewayResponse, error)
	Confirm(ctx context.Context, data PaymentData) (*GatewayResponse, error)
	Process(ctx context.Context, data PaymentData) (*GatewayResponse, error)
}

// SourceLister is implemented by adapters that store customer payment sources.
type SourceLister interface {
	ListPaymentSources(ctx context.Context, customerID string) ([]CustomerSource, error)
}

// TokenProvider is implemented by adapters that hand out client-side tokens.
type TokenProvider interface {
	GetClientToken(ctx context.Context, cfg TokenConfig) (string, error)
}

type registeredGateway struct {
	adapter GatewayAdapter
	config  GatewayConfig
}

// Registry resolves the gateway id stored on a payment to its adapter.
// It is filled once at startup.
type Registry struct {
	mu       sync.RWMutex
	gateways map[string]registeredGateway
}

func NewRegistry() *Registry {
	return &Registry{gateways: make(map[string]registeredGateway)}
}

func (r *Registry) Register(id string, cfg GatewayConfig, adapter GatewayAdapter) error {
	if id == "" {
		return fmt.Errorf("gateway id is required")
	}
	if id == payment.GatewayManual {
		return fmt.Errorf("gateway id %s is reserved", payment.GatewayManual)
	}
	if adapter == nil {
		return fmt.Errorf("gateway %s: adapter is nil", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.gateways[id]; exists {
		return fmt.Errorf("gateway %s is already registered", id)
	}
	if cfg.GatewayName == "" {
		cfg.GatewayName = id
	}
	r.gateways[id] = registeredGateway{adapter: adapter, config: cfg}
	return nil
}

func (r *Registry) Get(id string) (GatewayAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.gateways[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrGatewayNotConfigured, id)
	}
	return g.adapter, nil
}

func (r *Registry) Config(id string) (GatewayConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.gateways[id]
	return g.config, ok
}

func (r *Registry) GatewayIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.gateways))
	for id := range r.gateways {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Gateways lists registered gateways ordered by id. A non-empty currency keeps
// only gateways that support it; gateways without a currency list support all.
func (r *Registry) Gateways(currency string) []PaymentGateway {
	ids := r.GatewayIDs()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]PaymentGateway, 0, len(ids))
	for _, id := range ids {
		cfg := r.gateways[id].config
		if currency != "" && !supportsCurrency(cfg.SupportedCurrencies, currency) {
			continue
		}
		out = append(out, PaymentGateway{
			ID:         id,
			Name:       cfg.GatewayName,
			Currencies: append([]string(nil), cfg.SupportedCurrencies...),
			Config: []map[string]interface{}{
				{"field": "auto_capture", "value": cfg.AutoCapture},
				{"field": "store_customer_card", "value": cfg.StoreCustomer},
				{"field": "require_3d_secure", "value": cfg.Require3DSecure},
			},
		})
	}
	return out
}

func supportsCurrency(supported []string, currency string) bool {
	if len(supported) == 0 {
		return true
	}
	for _, c := range supported {
		if strings.EqualFold(c, currency) {
			return true
		}
	}
	return false
}
