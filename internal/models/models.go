package models

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Payment methods
const (
	MethodCard   = "CARD"
	MethodWallet = "WALLET"
	MethodUPI    = "UPI"
	MethodCash   = "CASH"
)

// Payment statuses
const (
	PaymentStatusPending  = "PENDING"
	PaymentStatusSuccess  = "SUCCESS"
	PaymentStatusFailed   = "FAILED"
	PaymentStatusRefunded = "REFUNDED"
)

// ValidMethod reports whether m is a supported payment method.
func ValidMethod(m string) bool {
	switch m {
	case MethodCard, MethodWallet, MethodUPI, MethodCash:
		return true
	}
	return false
}

// Payment represents a charge against a completed trip
type Payment struct {
	PaymentID int64           `db:"payment_id" json:"payment_id"`
	TripID    int64           `db:"trip_id" json:"trip_id"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Method    string          `db:"method" json:"method"`
	Status    string          `db:"status" json:"status"`
	Reference string          `db:"reference" json:"reference"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Refund represents a refund applied to a payment
type Refund struct {
	RefundID     int64           `db:"refund_id" json:"refund_id"`
	PaymentID    int64           `db:"payment_id" json:"payment_id"`
	RefundAmount decimal.Decimal `db:"refund_amount" json:"refund_amount"`
	Reason       sql.NullString  `db:"reason" json:"-"`
	Status       string          `db:"status" json:"status"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// Receipt is a generated receipt for a payment
type Receipt struct {
	ReceiptID     int64           `db:"receipt_id" json:"receipt_id"`
	PaymentID     int64           `db:"payment_id" json:"payment_id"`
	ReceiptNumber string          `db:"receipt_number" json:"receipt_number"`
	ReceiptData   json.RawMessage `db:"receipt_data" json:"receipt_data"`
	GeneratedAt   time.Time       `db:"generated_at" json:"generated_at"`
}

// IdempotencyRecord is the durable claim for one idempotency key.
// A NULL ResponseStatus means the key is still CLAIMED (in flight);
// a populated one means COMPLETED and the stored response is replayed.
type IdempotencyRecord struct {
	KeyHash        string        `db:"key_hash"`
	RequestPath    string        `db:"request_path"`
	ResponseStatus sql.NullInt32 `db:"response_status"`
	ResponseBody   []byte        `db:"response_body"`
	CreatedAt      time.Time     `db:"created_at"`
	ExpiresAt      time.Time     `db:"expires_at"`
}

// TripInfo is the trip registry's view of a trip
type TripInfo struct {
	TripID          int64   `json:"trip_id"`
	Status          string  `json:"status"`
	Distance        float64 `json:"distance"`
	SurgeMultiplier float64 `json:"surge_multiplier"`
}

// TripStatusCompleted is the only trip status eligible for charging.
const TripStatusCompleted = "COMPLETED"

// ProcessedEvent tracks consumed broker events for consumer-side dedup
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
