package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/payment-core/internal/core/events"
	"github.com/frahmantamala/payment-core/pkg/logger"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Manage events: publish test payment events and inspect handlers`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish a test event",
	Long:  `Publish a test event to the event bus for testing and debugging`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		publishTestEvent(args[0])
	},
}

var (
	eventData      string
	eventPaymentID string
	eventAmount    string
	eventCurrency  string
)

// logPaymentEvent logs every event the bus delivers.
func logPaymentEvent(log *slog.Logger) events.Handler {
	return func(ctx context.Context, event events.Event) error {
		log.Info("payment event",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"occurred_at", event.OccurredAt(),
			"payload", event.Payload())
		return nil
	}
}

func publishTestEvent(eventType string) {
	log := logger.LoggerWrapper()

	eventBus := events.NewEventBus(log)
	eventBus.Subscribe(events.WildcardEventType, logPaymentEvent(log))

	var event events.Event
	switch eventType {
	case events.EventTypePaymentFailed:
		event = events.NewPaymentFailedEvent(eventPaymentID, 0, "cli", eventData)
	case events.EventTypePaymentAuthorized, events.EventTypePaymentCaptured, events.EventTypePaymentRefunded,
		events.EventTypePaymentVoided, events.EventTypePaymentConfirmed, events.EventTypePaymentProcessed,
		events.EventTypePaymentDeposited:
		amount, err := decimal.NewFromString(eventAmount)
		if err != nil {
			log.Error("invalid amount", "amount", eventAmount, "error", err)
			return
		}
		event = events.NewPaymentEvent(eventType, eventPaymentID, 0, "CLI", amount, eventCurrency, "")
	default:
		event = events.BaseEvent{
			ID:        fmt.Sprintf("test-%d", time.Now().Unix()),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"message": eventData,
				"source":  "cli-command",
			},
		}
	}

	log.Info("publishing test event", "event_type", eventType, "event_id", event.EventID())

	if err := eventBus.Publish(context.Background(), event); err != nil {
		log.Error("failed to publish event", "error", err)
		return
	}

	eventBus.Wait()
	log.Info("test event published successfully")
}

func init() {
	publishEventCmd.Flags().StringVar(&eventData, "data", "test message", "Event data message")
	publishEventCmd.Flags().StringVar(&eventPaymentID, "payment-id", "test-payment", "payment id carried by payment events")
	publishEventCmd.Flags().StringVar(&eventAmount, "amount", "0", "amount carried by payment events")
	publishEventCmd.Flags().StringVar(&eventCurrency, "currency", "USD", "currency carried by payment events")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
