package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"payment-service/internal/gateway"
	"payment-service/internal/models"
	"payment-service/internal/service"
	"payment-service/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memClaims struct {
	mu      sync.Mutex
	records map[string]*store.ClaimResult
}

func (m *memClaims) Claim(ctx context.Context, keyHash, requestPath string, ttl time.Duration) (*store.ClaimResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[keyHash]; ok {
		return rec, nil
	}
	m.records[keyHash] = &store.ClaimResult{Outcome: store.ClaimInProgress}
	return &store.ClaimResult{Outcome: store.ClaimAcquired}, nil
}

func (m *memClaims) Finalize(ctx context.Context, keyHash string, statusCode int, responseBody []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[keyHash] = &store.ClaimResult{
		Outcome:        store.ClaimReplay,
		ResponseStatus: statusCode,
		ResponseBody:   responseBody,
	}
	return true, nil
}

func (m *memClaims) Release(ctx context.Context, keyHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, keyHash)
	return nil
}

type memLedger struct {
	mu       sync.Mutex
	nextID   int64
	payments map[int64]*models.Payment
}

func (m *memLedger) CreatePayment(ctx context.Context, payment *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	payment.PaymentID = m.nextID
	payment.CreatedAt = time.Now().UTC()
	payment.UpdatedAt = payment.CreatedAt
	saved := *payment
	m.payments[payment.PaymentID] = &saved
	return nil
}

func (m *memLedger) GetPaymentByID(ctx context.Context, paymentID int64) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[paymentID]
	if !ok {
		return nil, nil
	}
	copied := *payment
	return &copied, nil
}

func (m *memLedger) ApplyRefund(ctx context.Context, paymentID int64, amount decimal.Decimal, reason string) (*models.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[paymentID]
	if !ok || payment.Status != models.PaymentStatusSuccess {
		return nil, store.ErrPaymentNotRefundable
	}
	payment.Status = models.PaymentStatusRefunded
	return &models.Refund{
		RefundID:     1,
		PaymentID:    paymentID,
		RefundAmount: amount,
		Status:       models.PaymentStatusSuccess,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

type completedTrips struct{}

func (completedTrips) ValidateTripCompletion(ctx context.Context, tripID int64) (bool, *models.TripInfo) {
	return true, &models.TripInfo{
		TripID:          tripID,
		Status:          models.TripStatusCompleted,
		Distance:        10,
		SurgeMultiplier: 1.0,
	}
}

func (completedTrips) Charge(ctx context.Context, method string, amount decimal.Decimal) gateway.SettlementResult {
	return gateway.SettlementResult{Status: gateway.SettlementSuccess, GatewayID: "GW-test"}
}

func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	coordinator := service.NewCoordinator(
		&memClaims{records: make(map[string]*store.ClaimResult)},
		&memLedger{payments: make(map[int64]*models.Payment)},
		completedTrips{},
		nil,
		service.CoordinatorConfig{Fare: service.NewFareSchedule(5.0, 2.5)},
	)

	router := gin.New()
	handler := NewHandler(coordinator, nil, nil)

	v1 := router.Group("/v1")
	v1.POST("/payments", handler.createCharge)
	v1.POST("/payments/:id/refunds", handler.createRefund)
	return router
}

func postJSON(router *gin.Engine, path string, body map[string]interface{}, headers map[string]string) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateChargeEndpoint(t *testing.T) {
	router := testRouter()

	w := postJSON(router, "/v1/payments", map[string]interface{}{
		"idempotency_key": "K1",
		"trip_id":         42,
		"method":          "CASH",
	}, nil)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp service.ChargeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "SUCCESS", resp.Status)
	assert.Equal(t, 30.0, resp.Amount)
}

func TestCreateChargeReplaysByteIdentical(t *testing.T) {
	router := testRouter()
	body := map[string]interface{}{
		"idempotency_key": "K1",
		"trip_id":         42,
		"method":          "CASH",
	}

	first := postJSON(router, "/v1/payments", body, nil)
	require.Equal(t, http.StatusCreated, first.Code)

	replay := postJSON(router, "/v1/payments", body, nil)
	assert.Equal(t, first.Code, replay.Code)
	assert.Equal(t, first.Body.Bytes(), replay.Body.Bytes())
}

func TestCreateChargeKeyFromHeader(t *testing.T) {
	router := testRouter()

	w := postJSON(router, "/v1/payments", map[string]interface{}{
		"trip_id": 42,
		"method":  "CASH",
	}, map[string]string{"Idempotency-Key": "K-header"})

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCreateChargeMissingKeyRejected(t *testing.T) {
	router := testRouter()

	w := postJSON(router, "/v1/payments", map[string]interface{}{
		"trip_id": 42,
		"method":  "CASH",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateRefundEndpoint(t *testing.T) {
	router := testRouter()

	charge := postJSON(router, "/v1/payments", map[string]interface{}{
		"idempotency_key": "K1",
		"trip_id":         42,
		"method":          "CASH",
	}, nil)
	require.Equal(t, http.StatusCreated, charge.Code)

	var created service.ChargeResponse
	require.NoError(t, json.Unmarshal(charge.Body.Bytes(), &created))

	w := postJSON(router, "/v1/payments/1/refunds", map[string]interface{}{
		"idempotency_key": "R1",
	}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var refund service.RefundResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &refund))
	assert.Equal(t, created.Amount, refund.RefundAmount)
	assert.Equal(t, "REFUNDED", refund.Status)
}

func TestCreateRefundInvalidID(t *testing.T) {
	router := testRouter()

	w := postJSON(router, "/v1/payments/abc/refunds", map[string]interface{}{
		"idempotency_key": "R1",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
