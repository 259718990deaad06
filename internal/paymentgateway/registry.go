package paymentgateway

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/payment-core/internal"
	paymentpkg "github.com/frahmantamala/payment-core/internal/payment"
)

// NewRegistry builds the gateway registry from configuration.
func NewRegistry(gateways []internal.GatewayConfig, precision paymentpkg.Precision, timeout time.Duration, logger *slog.Logger) (*paymentpkg.Registry, error) {
	registry := paymentpkg.NewRegistry()

	for _, g := range gateways {
		var adapter paymentpkg.GatewayAdapter
		switch g.Type {
		case internal.GatewayTypeHTTP:
			adapter = NewClient(Config{
				Name:      g.Name,
				APIURL:    g.APIURL,
				APIKey:    g.APIKey,
				Timeout:   timeout,
				Precision: precision,
			}, logger)
		case internal.GatewayTypeDummy:
			adapter = NewDummy(logger)
		default:
			return nil, fmt.Errorf("gateway %s: unknown type %q", g.Name, g.Type)
		}

		err := registry.Register(g.Name, paymentpkg.GatewayConfig{
			GatewayName:         g.Name,
			AutoCapture:         g.AutoCapture,
			SupportedCurrencies: g.SupportedCurrencies,
			ConnectionParams:    g.ConnectionParams,
			StoreCustomer:       g.StoreCustomer,
			Require3DSecure:     g.Require3DSecure,
		}, adapter)
		if err != nil {
			return nil, err
		}
		logger.Info("payment gateway registered", "gateway", g.Name, "type", g.Type)
	}

	return registry, nil
}
