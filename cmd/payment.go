package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/payment-core/internal"
	"github.com/frahmantamala/payment-core/internal/core/datamodel/payment"
	"github.com/frahmantamala/payment-core/internal/core/events"
	paymentpkg "github.com/frahmantamala/payment-core/internal/payment"
	"github.com/frahmantamala/payment-core/internal/wallet"
)

var paymentCmd = &cobra.Command{
	Use:   "payment",
	Short: "Run payment operations",
	Long:  `Authorize, capture, refund, void, confirm and process payments, or record manual deposits`,
}

var (
	paymentID      string
	paymentToken   string
	customerID     string
	paymentAmount  string
	staffID        string
	additionalData map[string]string

	depositUserID    string
	depositCurrency  string
	depositReference string
	gatewayCurrency  string
)

type operationFunc func(ctx context.Context, s *paymentStack) (*payment.Payment, *payment.Transaction, error)

func newOperationCmd(use, short string, fn operationFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPaymentStack(func(ctx context.Context, s *paymentStack) error {
				p, txn, err := fn(ctx, s)
				if p != nil || txn != nil {
					printJSON(paymentView(p, txn))
				}
				return err
			})
		},
	}
}

var (
	authorizeCmd = newOperationCmd("authorize", "Authorize a payment", func(ctx context.Context, s *paymentStack) (*payment.Payment, *payment.Transaction, error) {
		return s.Orchestrator.Authorize(ctx, paymentID, paymentToken, customerID)
	})
	captureCmd = newOperationCmd("capture", "Capture an authorized payment", func(ctx context.Context, s *paymentStack) (*payment.Payment, *payment.Transaction, error) {
		amount, err := parseAmount(paymentAmount)
		if err != nil {
			return nil, nil, err
		}
		return s.Orchestrator.Capture(ctx, paymentID, amount, customerID)
	})
	refundCmd = newOperationCmd("refund", "Refund a captured payment", func(ctx context.Context, s *paymentStack) (*payment.Payment, *payment.Transaction, error) {
		amount, err := parseAmount(paymentAmount)
		if err != nil {
			return nil, nil, err
		}
		return s.Orchestrator.Refund(ctx, paymentID, amount)
	})
	voidCmd = newOperationCmd("void", "Void an authorized payment", func(ctx context.Context, s *paymentStack) (*payment.Payment, *payment.Transaction, error) {
		return s.Orchestrator.Void(ctx, paymentID)
	})
	confirmCmd = newOperationCmd("confirm", "Confirm a payment awaiting customer action", func(ctx context.Context, s *paymentStack) (*payment.Payment, *payment.Transaction, error) {
		return s.Orchestrator.Confirm(ctx, paymentID, coerceData(additionalData))
	})
	processCmd = newOperationCmd("process", "Authorize and capture a payment in one step", func(ctx context.Context, s *paymentStack) (*payment.Payment, *payment.Transaction, error) {
		return s.Orchestrator.Process(ctx, paymentID, paymentToken, customerID, coerceData(additionalData))
	})
)

var depositCmd = &cobra.Command{
	Use:   "deposit",
	Short: "Record a manual deposit and credit the user's wallet",
	RunE: func(cmd *cobra.Command, _ []string) error {
		amount, err := parseAmount(paymentAmount)
		if err != nil {
			return err
		}
		if amount == nil {
			return fmt.Errorf("--amount is required")
		}
		return withPaymentStack(func(ctx context.Context, s *paymentStack) error {
			result, err := s.Wallets.Deposit(ctx, wallet.DepositRequest{
				UserID:            depositUserID,
				StaffID:           staffID,
				Currency:          depositCurrency,
				Amount:            *amount,
				ExternalReference: depositReference,
			})
			if err != nil {
				return err
			}
			view := paymentView(result.Payment, result.Transaction)
			view["wallet"] = map[string]interface{}{
				"id":       result.Wallet.ID,
				"user_id":  result.Wallet.UserID,
				"currency": result.Wallet.Currency,
				"amount":   result.Wallet.Amount.String(),
			}
			printJSON(view)
			return nil
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a payment and its transaction log",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withPaymentStack(func(ctx context.Context, s *paymentStack) error {
			p, err := s.Orchestrator.GetPayment(ctx, paymentID)
			if err != nil {
				return err
			}
			txns, err := s.Orchestrator.ListTransactions(ctx, paymentID)
			if err != nil {
				return err
			}
			view := paymentView(p, nil)
			log := make([]map[string]interface{}, 0, len(txns))
			for _, t := range txns {
				log = append(log, transactionView(t))
			}
			view["transactions"] = log
			printJSON(view)
			return nil
		})
	},
}

var gatewaysCmd = &cobra.Command{
	Use:   "gateways",
	Short: "List configured payment gateways",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withPaymentStack(func(_ context.Context, s *paymentStack) error {
			printJSON(s.Orchestrator.ListGateways(gatewayCurrency))
			return nil
		})
	},
}

func withPaymentStack(fn func(ctx context.Context, s *paymentStack) error) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	s, err := newPaymentStack(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	s.EventBus.Subscribe(events.WildcardEventType, logPaymentEvent(s.Logger))

	ctx := context.Background()
	if staffID != "" {
		ctx = internal.ContextWithStaffID(ctx, staffID)
	}

	err = fn(ctx, s)
	s.EventBus.Wait()
	if err != nil {
		appErr := paymentpkg.ToAppError(err)
		fmt.Fprintf(os.Stderr, "%s: %s\n", appErr.Code, appErr.Message)
		return err
	}
	return nil
}

func parseAmount(raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, internal.NewValidationFieldError("amount", fmt.Sprintf("invalid amount %q", raw), internal.ErrCodeInvalidAmount)
	}
	return &amount, nil
}

// coerceData turns --data key=value flags into typed gateway data.
func coerceData(raw map[string]string) map[string]interface{} {
	data := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		if v == "true" || v == "false" {
			data[k] = cast.ToBool(v)
			continue
		}
		if n, err := cast.ToInt64E(v); err == nil {
			data[k] = n
			continue
		}
		if f, err := cast.ToFloat64E(v); err == nil {
			data[k] = f
			continue
		}
		data[k] = v
	}
	return data
}

func paymentView(p *payment.Payment, txn *payment.Transaction) map[string]interface{} {
	view := map[string]interface{}{}
	if p != nil {
		view["payment"] = map[string]interface{}{
			"id":              p.ID,
			"gateway":         p.Gateway,
			"payment_type":    p.PaymentType,
			"charge_status":   p.ChargeStatus,
			"is_active":       p.IsActive,
			"to_confirm":      p.ToConfirm,
			"total_amount":    p.TotalAmount.String(),
			"captured_amount": p.CapturedAmount.String(),
			"currency":        p.Currency,
			"psp_reference":   p.PSPReference,
		}
	}
	if txn != nil {
		view["transaction"] = transactionView(txn)
	}
	return view
}

func transactionView(t *payment.Transaction) map[string]interface{} {
	return map[string]interface{}{
		"id":                 t.ID,
		"kind":               t.Kind,
		"token":              t.Token,
		"is_success":         t.IsSuccess,
		"is_action_required": t.IsActionRequired,
		"amount":             t.Amount.String(),
		"currency":           t.Currency,
		"error":              t.ErrorMessage(),
		"created_at":         t.CreatedAt,
	}
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode output: %v\n", err)
		return
	}
	fmt.Println(string(out))
}

func init() {
	for _, c := range []*cobra.Command{authorizeCmd, captureCmd, refundCmd, voidCmd, confirmCmd, processCmd, showCmd} {
		c.Flags().StringVar(&paymentID, "id", "", "payment id")
		_ = c.MarkFlagRequired("id")
	}
	for _, c := range []*cobra.Command{authorizeCmd, processCmd} {
		c.Flags().StringVar(&paymentToken, "token", "", "gateway payment token")
	}
	for _, c := range []*cobra.Command{authorizeCmd, captureCmd, processCmd} {
		c.Flags().StringVar(&customerID, "customer-id", "", "gateway customer id")
	}
	for _, c := range []*cobra.Command{captureCmd, refundCmd, depositCmd} {
		c.Flags().StringVar(&paymentAmount, "amount", "", "amount in major units, e.g. 10.50")
	}
	for _, c := range []*cobra.Command{confirmCmd, processCmd} {
		c.Flags().StringToStringVar(&additionalData, "data", nil, "additional gateway data as key=value")
	}

	depositCmd.Flags().StringVar(&depositUserID, "user-id", "", "wallet owner")
	depositCmd.Flags().StringVar(&depositCurrency, "currency", "", "ISO 4217 currency code")
	depositCmd.Flags().StringVar(&depositReference, "reference", "", "external reference of the deposit")
	_ = depositCmd.MarkFlagRequired("user-id")
	_ = depositCmd.MarkFlagRequired("currency")

	gatewaysCmd.Flags().StringVar(&gatewayCurrency, "currency", "", "only gateways supporting this currency")

	paymentCmd.PersistentFlags().StringVar(&staffID, "staff-id", "", "staff member performing the operation")
	paymentCmd.AddCommand(authorizeCmd, captureCmd, refundCmd, voidCmd, confirmCmd, processCmd, depositCmd, showCmd, gatewaysCmd)

	rootCmd.AddCommand(paymentCmd)
}
