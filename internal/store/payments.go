package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"payment-service/internal/models"

	"github.com/shopspring/decimal"
)

// ErrPaymentNotRefundable is returned when a refund targets a payment that is
// not currently in SUCCESS state (including a concurrent refund winning the race).
var ErrPaymentNotRefundable = errors.New("payment is not refundable")

// CreatePayment assigns the next payment identity and inserts the row in a
// single transaction. The primary key makes concurrent assignments of the same
// identity fail rather than silently collide.
func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var nextID int64
	if err := tx.GetContext(ctx, &nextID,
		"SELECT COALESCE(MAX(payment_id), 0) + 1 FROM payments"); err != nil {
		return fmt.Errorf("failed to allocate payment id: %w", err)
	}
	payment.PaymentID = nextID

	query := `
		INSERT INTO payments (payment_id, trip_id, amount, method, status, reference)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	row := tx.QueryRowxContext(ctx, query,
		payment.PaymentID, payment.TripID, payment.Amount,
		payment.Method, payment.Status, payment.Reference)
	if err := row.Scan(&payment.CreatedAt, &payment.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	return tx.Commit()
}

// GetPaymentByID retrieves a payment by ID; returns (nil, nil) when absent
func (s *Store) GetPaymentByID(ctx context.Context, paymentID int64) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment,
		"SELECT * FROM payments WHERE payment_id = $1", paymentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// PaymentFilter narrows ListPayments results
type PaymentFilter struct {
	TripID int64
	Status string
	Method string
	Limit  int
	Offset int
}

func buildListQuery(f PaymentFilter) (string, []interface{}) {
	query := "SELECT * FROM payments WHERE 1=1"
	args := make([]interface{}, 0, 5)

	if f.TripID > 0 {
		args = append(args, f.TripID)
		query += " AND trip_id = $" + strconv.Itoa(len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += " AND status = $" + strconv.Itoa(len(args))
	}
	if f.Method != "" {
		args = append(args, f.Method)
		query += " AND method = $" + strconv.Itoa(len(args))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += " ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args))
	args = append(args, f.Offset)
	query += " OFFSET $" + strconv.Itoa(len(args))

	return query, args
}

// ListPayments retrieves payments matching the filter, newest first
func (s *Store) ListPayments(ctx context.Context, f PaymentFilter) ([]models.Payment, error) {
	query, args := buildListQuery(f)

	payments := []models.Payment{}
	err := s.db.SelectContext(ctx, &payments, query, args...)
	return payments, err
}

// ApplyRefund flips the payment to REFUNDED and records the refund row in one
// transaction, so the status transition and the refund bookkeeping commit
// together or not at all. The status guard on the UPDATE arbitrates concurrent
// refund attempts.
func (s *Store) ApplyRefund(ctx context.Context, paymentID int64, amount decimal.Decimal, reason string) (*models.Refund, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE payments SET status = $1, updated_at = NOW() WHERE payment_id = $2 AND status = $3",
		models.PaymentStatusRefunded, paymentID, models.PaymentStatusSuccess)
	if err != nil {
		return nil, fmt.Errorf("failed to update payment status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrPaymentNotRefundable
	}

	refund := &models.Refund{
		PaymentID:    paymentID,
		RefundAmount: amount,
		Status:       models.PaymentStatusSuccess,
	}
	if reason != "" {
		refund.Reason = sql.NullString{String: reason, Valid: true}
	}

	query := `
		INSERT INTO payment_refunds (payment_id, refund_amount, reason, status)
		VALUES ($1, $2, $3, $4)
		RETURNING refund_id, created_at`

	row := tx.QueryRowxContext(ctx, query,
		refund.PaymentID, refund.RefundAmount, refund.Reason, refund.Status)
	if err := row.Scan(&refund.RefundID, &refund.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert refund: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return refund, nil
}

// UpsertReceipt stores a receipt for a payment, regenerating on repeat requests
func (s *Store) UpsertReceipt(ctx context.Context, paymentID int64, receiptNumber string, data []byte) (*models.Receipt, error) {
	query := `
		INSERT INTO payment_receipts (payment_id, receipt_number, receipt_data)
		VALUES ($1, $2, $3)
		ON CONFLICT (payment_id) DO UPDATE
		SET receipt_data = EXCLUDED.receipt_data, generated_at = NOW()
		RETURNING receipt_id, payment_id, receipt_number, receipt_data, generated_at`

	var receipt models.Receipt
	if err := s.db.GetContext(ctx, &receipt, query, paymentID, receiptNumber, data); err != nil {
		return nil, fmt.Errorf("failed to upsert receipt: %w", err)
	}
	return &receipt, nil
}

// StatusCount is one row of an aggregate breakdown
type StatusCount struct {
	Key   string `db:"key"`
	Count int64  `db:"count"`
}

// PaymentStats aggregates the ledger for the stats endpoint
type PaymentStats struct {
	ByStatus     map[string]int64 `json:"payments_by_status"`
	ByMethod     map[string]int64 `json:"payments_by_method"`
	AvgAmount    float64          `json:"average_payment_amount"`
	TotalRevenue float64          `json:"total_revenue"`
}

// GetPaymentStats computes aggregate counts and revenue over the ledger
func (s *Store) GetPaymentStats(ctx context.Context) (*PaymentStats, error) {
	stats := &PaymentStats{
		ByStatus: make(map[string]int64),
		ByMethod: make(map[string]int64),
	}

	var rows []StatusCount
	if err := s.db.SelectContext(ctx, &rows,
		"SELECT status AS key, COUNT(*) AS count FROM payments GROUP BY status"); err != nil {
		return nil, err
	}
	for _, r := range rows {
		stats.ByStatus[r.Key] = r.Count
	}

	rows = rows[:0]
	if err := s.db.SelectContext(ctx, &rows,
		"SELECT method AS key, COUNT(*) AS count FROM payments GROUP BY method"); err != nil {
		return nil, err
	}
	for _, r := range rows {
		stats.ByMethod[r.Key] = r.Count
	}

	var avg, total sql.NullFloat64
	if err := s.db.GetContext(ctx, &avg,
		"SELECT AVG(amount) FROM payments WHERE status = $1", models.PaymentStatusSuccess); err != nil {
		return nil, err
	}
	if err := s.db.GetContext(ctx, &total,
		"SELECT SUM(amount) FROM payments WHERE status = $1", models.PaymentStatusSuccess); err != nil {
		return nil, err
	}
	stats.AvgAmount = avg.Float64
	stats.TotalRevenue = total.Float64

	return stats, nil
}

// IsEventProcessed checks if a broker event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks a broker event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
