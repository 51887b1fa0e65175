package models

import "time"

// Event types
const (
	EventTypePaymentCompleted = "PAYMENT_COMPLETED"
	EventTypeRefundCompleted  = "REFUND_COMPLETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentCompletedEvent published after a charge is finalized
type PaymentCompletedEvent struct {
	BaseEvent
	PaymentID int64   `json:"payment_id"`
	TripID    int64   `json:"trip_id"`
	Amount    float64 `json:"amount"`
	Method    string  `json:"method"`
	Status    string  `json:"status"`
	Reference string  `json:"reference"`
}

// RefundCompletedEvent published after a refund is finalized
type RefundCompletedEvent struct {
	BaseEvent
	RefundID     int64   `json:"refund_id"`
	PaymentID    int64   `json:"payment_id"`
	RefundAmount float64 `json:"refund_amount"`
	Status       string  `json:"status"`
}
