package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"payment-service/internal/broker"
	"payment-service/internal/models"
	"payment-service/internal/store"
	"payment-service/internal/util"

	"go.uber.org/zap"
)

// ReceiptWorker consumes payment events and materializes receipts for
// successful payments. Events are deduplicated on the consumer side so a
// redelivery never writes twice.
type ReceiptWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        *store.Store
	logger       *zap.Logger
}

// NewReceiptWorker creates a new receipt worker
func NewReceiptWorker(consumer *broker.Consumer, st *store.Store) *ReceiptWorker {
	w := &ReceiptWorker{
		consumer: consumer,
		store:    st,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnPaymentCompleted(w.handlePaymentCompleted)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *ReceiptWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting receipt worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ReceiptWorker) Stop() error {
	w.logger.Info("Stopping receipt worker")
	return w.consumer.Close()
}

func (w *ReceiptWorker) handlePaymentCompleted(ctx context.Context, event *models.PaymentCompletedEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		w.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	if event.Status == models.PaymentStatusSuccess {
		receiptNumber := "RCP-" + event.Reference
		data, err := json.Marshal(map[string]interface{}{
			"receipt_number": receiptNumber,
			"payment_id":     event.PaymentID,
			"trip_id":        event.TripID,
			"amount":         event.Amount,
			"method":         event.Method,
			"status":         event.Status,
			"reference":      event.Reference,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal receipt data: %w", err)
		}

		if _, err := w.store.UpsertReceipt(ctx, event.PaymentID, receiptNumber, data); err != nil {
			return fmt.Errorf("failed to store receipt: %w", err)
		}

		w.logger.Info("Receipt generated",
			zap.Int64("payment_id", event.PaymentID),
			zap.String("receipt_number", receiptNumber))
	}

	if err := w.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		w.logger.Error("Failed to mark event processed", zap.Error(err))
	}
	return nil
}
