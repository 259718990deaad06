package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/payment-core/internal/core/datamodel/payment"
	paymentpkg "github.com/frahmantamala/payment-core/internal/payment"
	"github.com/frahmantamala/payment-core/internal/wallet"
)

const (
	seedUserID    = "00000000-0000-0000-0000-000000000001"
	seedStaffID   = "00000000-0000-0000-0000-0000000000aa"
	seedReference = "seed-deposit-1"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with a wallet, a manual deposit and a payment awaiting authorization.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		s, err := newPaymentStack(cfg)
		if err != nil {
			log.Fatalf("failed to init dependencies: %v", err)
		}
		defer s.Close()

		ctx := context.Background()
		currency := cfg.Payment.DefaultCurrency

		if clearData {
			for _, table := range []string{"payment_transactions", "payments", "wallets"} {
				if err := s.Gorm.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared payments, transactions and wallets")
		}

		existing, err := s.Orchestrator.ListPayments(ctx, paymentpkg.PaymentFilter{
			Gateway:      payment.GatewayManual,
			PSPReference: seedReference,
		}, 0, 1)
		if err != nil {
			log.Fatalf("failed to look up seeded deposit: %v", err)
		}
		if len(existing) > 0 {
			fmt.Println("seed deposit already exists; skipping")
		} else {
			result, err := s.Wallets.Deposit(ctx, wallet.DepositRequest{
				UserID:            seedUserID,
				StaffID:           seedStaffID,
				Currency:          currency,
				Amount:            decimal.NewFromInt(100),
				ExternalReference: seedReference,
			})
			if err != nil {
				log.Fatalf("failed to seed deposit: %v", err)
			}
			fmt.Println("Seeded wallet", result.Wallet.ID, "with balance", result.Wallet.Amount.String(), currency)
		}

		gateways := s.Gateways.GatewayIDs()
		if len(gateways) == 0 {
			fmt.Println("no gateways configured; skipping demo payment")
			return
		}

		p, err := s.Orchestrator.CreatePayment(ctx, paymentpkg.CreatePaymentRequest{
			Gateway:     gateways[0],
			PaymentType: payment.PaymentTypeSend,
			Total:       decimal.NewFromInt(50),
			Currency:    currency,
			IsActive:    true,
			UserID:      seedUserID,
			Metadata:    map[string]interface{}{"source": "seed"},
		})
		if err != nil {
			log.Fatalf("failed to seed payment: %v", err)
		}
		fmt.Println("Seeded payment", p.ID, "on gateway", p.Gateway)
	},
}
