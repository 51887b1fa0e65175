package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"payment-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTripCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/trips/42", r.URL.Path)
		json.NewEncoder(w).Encode(models.TripInfo{
			TripID:          42,
			Status:          models.TripStatusCompleted,
			Distance:        10,
			SurgeMultiplier: 1.2,
		})
	}))
	defer srv.Close()

	client := NewTripClient(srv.URL, 2*time.Second)
	completed, trip := client.ValidateTripCompletion(context.Background(), 42)

	assert.True(t, completed)
	require.NotNil(t, trip)
	assert.Equal(t, 10.0, trip.Distance)
	assert.Equal(t, 1.2, trip.SurgeMultiplier)
}

func TestValidateTripCompletionNotCompleted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.TripInfo{TripID: 42, Status: "IN_PROGRESS"})
	}))
	defer srv.Close()

	client := NewTripClient(srv.URL, 2*time.Second)
	completed, trip := client.ValidateTripCompletion(context.Background(), 42)

	assert.False(t, completed)
	assert.NotNil(t, trip)
}

func TestValidateTripCompletionFailsClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewTripClient(srv.URL, 2*time.Second)
	completed, trip := client.ValidateTripCompletion(context.Background(), 42)
	assert.False(t, completed)
	assert.Nil(t, trip)

	// Unreachable service is also "not completed", never an error surface.
	down := NewTripClient("http://127.0.0.1:1", 500*time.Millisecond)
	completed, trip = down.ValidateTripCompletion(context.Background(), 42)
	assert.False(t, completed)
	assert.Nil(t, trip)
}

func TestCashAlwaysSettles(t *testing.T) {
	settler := NewSeededSettler(0.0, 1)

	for i := 0; i < 10; i++ {
		result := settler.Charge(context.Background(), models.MethodCash, decimal.NewFromFloat(30))
		assert.Equal(t, SettlementSuccess, result.Status)
		assert.NotEmpty(t, result.GatewayID)
	}
}

func TestElectronicSettlementFollowsSuccessRate(t *testing.T) {
	alwaysDecline := NewSeededSettler(0.0, 1)
	result := alwaysDecline.Charge(context.Background(), models.MethodCard, decimal.NewFromFloat(30))
	assert.Equal(t, SettlementFailed, result.Status)
	assert.Contains(t, declineCodes, result.ErrorCode)
	assert.Empty(t, result.GatewayID)

	alwaysApprove := NewSeededSettler(1.0, 1)
	result = alwaysApprove.Charge(context.Background(), models.MethodCard, decimal.NewFromFloat(30))
	assert.Equal(t, SettlementSuccess, result.Status)
	assert.Empty(t, result.ErrorCode)
}

func TestNotifierPostsPayload(t *testing.T) {
	var received []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/notifications", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body := make([]byte, r.ContentLength)
		r.Body.Read(body)
		received = body
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	notifier := NewNotifier(srv.URL, 2*time.Second)
	payload := []byte(`{"payment_id":1}`)
	err := notifier.Notify(context.Background(), payload)

	require.NoError(t, err)
	assert.Equal(t, payload, received)
}

func TestNotifierReportsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	notifier := NewNotifier(srv.URL, 2*time.Second)
	err := notifier.Notify(context.Background(), []byte(`{}`))
	assert.Error(t, err)
}
