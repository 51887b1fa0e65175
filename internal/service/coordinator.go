package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"payment-service/internal/gateway"
	"payment-service/internal/models"
	"payment-service/internal/store"
	"payment-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ClaimStore is the durable idempotency protocol
type ClaimStore interface {
	Claim(ctx context.Context, keyHash, requestPath string, ttl time.Duration) (*store.ClaimResult, error)
	Finalize(ctx context.Context, keyHash string, statusCode int, responseBody []byte) (bool, error)
	Release(ctx context.Context, keyHash string) error
}

// Ledger is the durable payment/refund store
type Ledger interface {
	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPaymentByID(ctx context.Context, paymentID int64) (*models.Payment, error)
	ApplyRefund(ctx context.Context, paymentID int64, amount decimal.Decimal, reason string) (*models.Refund, error)
}

// Gateway is the coordinator's view of the external collaborators
type Gateway interface {
	ValidateTripCompletion(ctx context.Context, tripID int64) (bool, *models.TripInfo)
	Charge(ctx context.Context, method string, amount decimal.Decimal) gateway.SettlementResult
}

// AdmissionGate gates entry before any idempotency work begins
type AdmissionGate interface {
	Allow(key string) bool
}

// Dispatcher accepts a finalized payload for fire-and-forget notification
type Dispatcher interface {
	Dispatch(payload []byte)
}

// Publisher emits domain events after finalization
type Publisher interface {
	PublishPaymentCompleted(ctx context.Context, event *models.PaymentCompletedEvent) error
	PublishRefundCompleted(ctx context.Context, event *models.RefundCompletedEvent) error
}

// ReplayCache is an optional fast path in front of the durable claim. A miss
// always falls through to the store; entries only ever hold finalized
// responses, which never change.
type ReplayCache interface {
	GetResponse(ctx context.Context, keyHash string) (int, []byte, bool)
	SetResponse(ctx context.Context, keyHash string, statusCode int, body []byte, ttl time.Duration)
}

// Outcome is the exact response for a request: the body bytes are what gets
// stored on finalize and replayed verbatim to duplicates.
type Outcome struct {
	StatusCode int
	Body       []byte
}

// CoordinatorConfig carries business policy and the optional collaborators
type CoordinatorConfig struct {
	Fare       FareSchedule
	ClaimTTL   time.Duration
	Cache      ReplayCache
	Dispatcher Dispatcher
	Publisher  Publisher
}

// Coordinator drives the payment lifecycle: admit, claim or replay, validate
// the trip, charge, persist, finalize, notify. Correctness under concurrency
// and across instances rests on the claim store, not on any in-process state;
// the coordinator re-reads authoritative state on every request.
type Coordinator struct {
	claims     ClaimStore
	ledger     Ledger
	gw         Gateway
	gate       AdmissionGate
	fare       FareSchedule
	claimTTL   time.Duration
	cache      ReplayCache
	dispatcher Dispatcher
	publisher  Publisher
	logger     *zap.Logger
}

// NewCoordinator creates the payment coordinator
func NewCoordinator(claims ClaimStore, ledger Ledger, gw Gateway, gate AdmissionGate, cfg CoordinatorConfig) *Coordinator {
	ttl := cfg.ClaimTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Coordinator{
		claims:     claims,
		ledger:     ledger,
		gw:         gw,
		gate:       gate,
		fare:       cfg.Fare,
		claimTTL:   ttl,
		cache:      cfg.Cache,
		dispatcher: cfg.Dispatcher,
		publisher:  cfg.Publisher,
		logger:     util.GetLogger(),
	}
}

// HashKey digests a client-supplied idempotency key into the fixed-length
// record identity.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// ChargeRequest is a request to charge a completed trip
type ChargeRequest struct {
	IdempotencyKey string                 `json:"idempotency_key"`
	TripID         int64                  `json:"trip_id"`
	Method         string                 `json:"method"`
	Amount         *float64               `json:"amount,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`

	// ClientKey identifies the caller for admission control, e.g. source address.
	ClientKey string `json:"-"`
}

// RefundRequest is a request to refund a payment
type RefundRequest struct {
	PaymentID      int64                  `json:"-"`
	IdempotencyKey string                 `json:"idempotency_key"`
	Amount         *float64               `json:"amount,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`

	ClientKey string `json:"-"`
}

// ChargeResponse is the finalized charge payload
type ChargeResponse struct {
	PaymentID int64   `json:"payment_id"`
	TripID    int64   `json:"trip_id"`
	Amount    float64 `json:"amount"`
	Method    string  `json:"method"`
	Status    string  `json:"status"`
	Reference string  `json:"reference"`
	CreatedAt string  `json:"created_at"`
}

// RefundResponse is the finalized refund payload
type RefundResponse struct {
	RefundID     int64   `json:"refund_id"`
	PaymentID    int64   `json:"payment_id"`
	RefundAmount float64 `json:"refund_amount"`
	Status       string  `json:"status"`
	Timestamp    string  `json:"timestamp"`
}

// CreateCharge runs the full charge lifecycle and returns the exact response
// to send. Every terminal outcome past the claim passes through finalize so
// the key never dangles for a definitively settled request.
func (c *Coordinator) CreateCharge(ctx context.Context, req *ChargeRequest) *Outcome {
	ctx, span := util.StartSpan(ctx, "Coordinator.CreateCharge")
	defer span.End()

	// Rate-limited duplicates must not consume idempotency state.
	if c.gate != nil && !c.gate.Allow(req.ClientKey) {
		util.RateLimitedTotal.Inc()
		c.logger.Warn("Rate limit exceeded", zap.String("client", req.ClientKey))
		return errorOutcome(http.StatusTooManyRequests, "rate limit exceeded")
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	rawKey := strings.TrimSpace(req.IdempotencyKey)
	if err := validateCharge(rawKey, req.TripID, method, req.Amount); err != nil {
		util.ChargesRejectedTotal.WithLabelValues("validation").Inc()
		return errorOutcome(StatusFor(err), err.Error())
	}

	keyHash := HashKey(rawKey)
	outcome, owned := c.claimOrReplay(ctx, keyHash, "POST:/v1/payments")
	if !owned {
		return outcome
	}

	completed, trip := c.gw.ValidateTripCompletion(ctx, req.TripID)
	if !completed {
		util.ChargesRejectedTotal.WithLabelValues("trip_not_completed").Inc()
		return c.finalize(ctx, keyHash, http.StatusBadRequest,
			errorBody("trip not completed or not found"), nil)
	}

	var amount decimal.Decimal
	if req.Amount != nil {
		amount = decimal.NewFromFloat(*req.Amount).Round(2)
	} else {
		amount = c.fare.Calculate(trip)
	}

	var settlement gateway.SettlementResult
	settlementAttempted := false
	if method == models.MethodCash {
		// Cash resolves without a gateway round-trip.
		settlement = gateway.SettlementResult{
			Status:  gateway.SettlementSuccess,
			Message: "cash payment recorded",
		}
	} else {
		settlementAttempted = true
		settlement = c.gw.Charge(ctx, method, amount)
	}

	var payStatus string
	switch settlement.Status {
	case gateway.SettlementSuccess:
		payStatus = models.PaymentStatusSuccess
	case gateway.SettlementPending:
		payStatus = models.PaymentStatusPending
	default:
		payStatus = models.PaymentStatusFailed
	}

	payment := &models.Payment{
		TripID:    req.TripID,
		Amount:    amount,
		Method:    method,
		Status:    payStatus,
		Reference: chargeReference(keyHash),
	}
	if err := c.ledger.CreatePayment(ctx, payment); err != nil {
		c.logger.Error("Failed to persist payment",
			zap.Int64("trip_id", req.TripID), zap.Error(err))
		return c.unexpected(ctx, keyHash, settlementAttempted)
	}

	util.ChargesTotal.WithLabelValues(payStatus).Inc()
	c.logger.Info("Payment created",
		zap.Int64("payment_id", payment.PaymentID),
		zap.Int64("trip_id", payment.TripID),
		zap.String("status", payStatus),
		zap.String("reference", payment.Reference))

	body, err := json.Marshal(ChargeResponse{
		PaymentID: payment.PaymentID,
		TripID:    payment.TripID,
		Amount:    amount.InexactFloat64(),
		Method:    method,
		Status:    payStatus,
		Reference: payment.Reference,
		CreatedAt: payment.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return c.unexpected(ctx, keyHash, settlementAttempted)
	}

	statusCode := http.StatusAccepted
	if payStatus == models.PaymentStatusSuccess {
		statusCode = http.StatusCreated
	}

	return c.finalize(ctx, keyHash, statusCode, body, func(ctx context.Context) {
		c.publishPaymentCompleted(ctx, payment)
	})
}

// CreateRefund runs the refund lifecycle under the same idempotency protocol
func (c *Coordinator) CreateRefund(ctx context.Context, req *RefundRequest) *Outcome {
	ctx, span := util.StartSpan(ctx, "Coordinator.CreateRefund")
	defer span.End()

	if c.gate != nil && !c.gate.Allow(req.ClientKey) {
		util.RateLimitedTotal.Inc()
		c.logger.Warn("Rate limit exceeded", zap.String("client", req.ClientKey))
		return errorOutcome(http.StatusTooManyRequests, "rate limit exceeded")
	}

	rawKey := strings.TrimSpace(req.IdempotencyKey)
	if err := validateRefund(rawKey, req.PaymentID, req.Amount); err != nil {
		return errorOutcome(StatusFor(err), err.Error())
	}

	keyHash := HashKey(rawKey)
	requestPath := fmt.Sprintf("POST:/v1/payments/%d/refunds", req.PaymentID)
	outcome, owned := c.claimOrReplay(ctx, keyHash, requestPath)
	if !owned {
		return outcome
	}

	payment, err := c.ledger.GetPaymentByID(ctx, req.PaymentID)
	if err != nil {
		c.logger.Error("Failed to look up payment for refund",
			zap.Int64("payment_id", req.PaymentID), zap.Error(err))
		return c.unexpected(ctx, keyHash, false)
	}
	if payment == nil {
		return c.finalize(ctx, keyHash, http.StatusNotFound,
			errorBody("payment not found"), nil)
	}
	if payment.Status != models.PaymentStatusSuccess {
		return c.finalize(ctx, keyHash, http.StatusBadRequest,
			errorBody("can only refund successful payments"), nil)
	}

	refundAmount := payment.Amount
	if req.Amount != nil {
		refundAmount = decimal.NewFromFloat(*req.Amount).Round(2)
		if refundAmount.GreaterThan(payment.Amount) {
			return c.finalize(ctx, keyHash, http.StatusBadRequest,
				errorBody("refund amount exceeds original payment amount"), nil)
		}
	}

	refund, err := c.ledger.ApplyRefund(ctx, req.PaymentID, refundAmount, reasonFrom(req.Metadata))
	if err != nil {
		if errors.Is(err, store.ErrPaymentNotRefundable) {
			// A concurrent refund won the race inside the transaction.
			return c.finalize(ctx, keyHash, http.StatusBadRequest,
				errorBody("can only refund successful payments"), nil)
		}
		c.logger.Error("Failed to apply refund",
			zap.Int64("payment_id", req.PaymentID), zap.Error(err))
		return c.unexpected(ctx, keyHash, false)
	}

	util.RefundsTotal.Inc()
	c.logger.Info("Refund applied",
		zap.Int64("refund_id", refund.RefundID),
		zap.Int64("payment_id", refund.PaymentID),
		zap.String("amount", refundAmount.StringFixed(2)))

	body, err := json.Marshal(RefundResponse{
		RefundID:     refund.RefundID,
		PaymentID:    refund.PaymentID,
		RefundAmount: refundAmount.InexactFloat64(),
		Status:       models.PaymentStatusRefunded,
		Timestamp:    refund.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return c.unexpected(ctx, keyHash, false)
	}

	return c.finalize(ctx, keyHash, http.StatusOK, body, func(ctx context.Context) {
		c.publishRefundCompleted(ctx, refund)
	})
}

// claimOrReplay consults the replay cache, then the durable claim. The second
// return value is true when the caller now owns processing for the key.
func (c *Coordinator) claimOrReplay(ctx context.Context, keyHash, requestPath string) (*Outcome, bool) {
	if c.cache != nil {
		if status, body, ok := c.cache.GetResponse(ctx, keyHash); ok {
			util.ReplaysServedTotal.Inc()
			return &Outcome{StatusCode: status, Body: body}, false
		}
	}

	claim, err := c.claims.Claim(ctx, keyHash, requestPath, c.claimTTL)
	if err != nil {
		// Fail closed: a store failure must never fall through as Claimed.
		dep := NewDependencyError("unable to claim idempotency key, retry later", err)
		c.logger.Error("Idempotency claim failed", zap.Error(err))
		util.ClaimConflictsTotal.Inc()
		return errorOutcome(StatusFor(dep), dep.Error()), false
	}

	switch claim.Outcome {
	case store.ClaimReplay:
		util.ReplaysServedTotal.Inc()
		if c.cache != nil {
			c.cache.SetResponse(ctx, keyHash, claim.ResponseStatus, claim.ResponseBody, c.claimTTL)
		}
		return &Outcome{StatusCode: claim.ResponseStatus, Body: claim.ResponseBody}, false
	case store.ClaimInProgress:
		util.ClaimConflictsTotal.Inc()
		conflict := NewConflictError("request with same idempotency key is already in progress")
		return errorOutcome(StatusFor(conflict), conflict.Error()), false
	}

	return nil, true
}

// finalize completes the idempotency record with the exact outbound response,
// then runs post-finalize side effects: replay-cache fill, event publish, and
// fire-and-forget notification for non-error outcomes.
func (c *Coordinator) finalize(ctx context.Context, keyHash string, statusCode int, body []byte, after func(context.Context)) *Outcome {
	ok, err := c.claims.Finalize(ctx, keyHash, statusCode, body)
	if err != nil {
		c.logger.Error("Failed to finalize idempotency key", zap.Error(err))
	} else if !ok {
		c.logger.Warn("Idempotency key not in claimed state at finalize",
			zap.String("key_hash", keyHash[:16]))
	}

	if c.cache != nil {
		c.cache.SetResponse(ctx, keyHash, statusCode, body, c.claimTTL)
	}
	if after != nil {
		after(ctx)
	}
	if c.dispatcher != nil && statusCode < http.StatusBadRequest {
		c.dispatcher.Dispatch(body)
	}

	return &Outcome{StatusCode: statusCode, Body: body}
}

// unexpected handles internal failures after the claim was taken. If a
// settlement was attempted, money may have moved: the failure is finalized so
// retries replay it instead of charging twice. Otherwise the claim is released
// so a retry can succeed.
func (c *Coordinator) unexpected(ctx context.Context, keyHash string, settlementAttempted bool) *Outcome {
	body := errorBody("payment processing failed")
	if settlementAttempted {
		return c.finalize(ctx, keyHash, http.StatusInternalServerError, body, nil)
	}

	if err := c.claims.Release(ctx, keyHash); err != nil {
		c.logger.Error("Failed to release idempotency claim", zap.Error(err))
	}
	return &Outcome{StatusCode: http.StatusInternalServerError, Body: body}
}

func (c *Coordinator) publishPaymentCompleted(ctx context.Context, payment *models.Payment) {
	if c.publisher == nil {
		return
	}
	event := &models.PaymentCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentCompleted,
			Timestamp: time.Now().UTC(),
		},
		PaymentID: payment.PaymentID,
		TripID:    payment.TripID,
		Amount:    payment.Amount.InexactFloat64(),
		Method:    payment.Method,
		Status:    payment.Status,
		Reference: payment.Reference,
	}
	if err := c.publisher.PublishPaymentCompleted(ctx, event); err != nil {
		c.logger.Error("Failed to publish PaymentCompleted event", zap.Error(err))
	}
}

func (c *Coordinator) publishRefundCompleted(ctx context.Context, refund *models.Refund) {
	if c.publisher == nil {
		return
	}
	event := &models.RefundCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeRefundCompleted,
			Timestamp: time.Now().UTC(),
		},
		RefundID:     refund.RefundID,
		PaymentID:    refund.PaymentID,
		RefundAmount: refund.RefundAmount.InexactFloat64(),
		Status:       models.PaymentStatusRefunded,
	}
	if err := c.publisher.PublishRefundCompleted(ctx, event); err != nil {
		c.logger.Error("Failed to publish RefundCompleted event", zap.Error(err))
	}
}

func validateCharge(rawKey string, tripID int64, method string, amount *float64) error {
	if rawKey == "" {
		return NewValidationError("idempotency_key must be non-empty")
	}
	if tripID <= 0 {
		return NewValidationError("trip_id must be a positive integer")
	}
	if !models.ValidMethod(method) {
		return NewValidationError("unsupported payment method, allowed: CARD, WALLET, UPI, CASH")
	}
	if amount != nil && *amount < 0 {
		return NewValidationError("amount must be non-negative")
	}
	return nil
}

func validateRefund(rawKey string, paymentID int64, amount *float64) error {
	if rawKey == "" {
		return NewValidationError("idempotency_key is required for refund idempotency")
	}
	if paymentID <= 0 {
		return NewValidationError("payment_id must be a positive integer")
	}
	if amount != nil && *amount <= 0 {
		return NewValidationError("refund amount must be positive")
	}
	return nil
}

// chargeReference embeds a date stamp and a key-hash fragment for human
// traceability; it is never used for uniqueness decisions.
func chargeReference(keyHash string) string {
	return fmt.Sprintf("PAY-%s-%s", time.Now().UTC().Format("20060102"), keyHash[:8])
}

func reasonFrom(metadata map[string]interface{}) string {
	if metadata == nil {
		return ""
	}
	if reason, ok := metadata["reason"].(string); ok {
		return reason
	}
	return ""
}

func errorBody(msg string) []byte {
	body, _ := json.Marshal(map[string]string{"error": msg})
	return body
}

func errorOutcome(statusCode int, msg string) *Outcome {
	return &Outcome{StatusCode: statusCode, Body: errorBody(msg)}
}
