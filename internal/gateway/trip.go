package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"payment-service/internal/models"
	"payment-service/internal/util"

	"go.uber.org/zap"
)

// TripClient looks up trips in the trip registry. Any transport failure or
// non-200 response is treated as "not completed": never charge for a trip the
// coordinator cannot confirm.
type TripClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewTripClient creates a trip registry client with a bounded request timeout
func NewTripClient(baseURL string, timeout time.Duration) *TripClient {
	return &TripClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  util.GetLogger(),
	}
}

// ValidateTripCompletion checks whether the trip is completed and returns its
// data for fare computation.
func (c *TripClient) ValidateTripCompletion(ctx context.Context, tripID int64) (bool, *models.TripInfo) {
	url := fmt.Sprintf("%s/v1/trips/%d", c.baseURL, tripID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.logger.Error("Failed to build trip request", zap.Int64("trip_id", tripID), zap.Error(err))
		return false, nil
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("Trip service unreachable", zap.Int64("trip_id", tripID), zap.Error(err))
		return false, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Trip service returned non-200",
			zap.Int64("trip_id", tripID),
			zap.Int("status", resp.StatusCode))
		return false, nil
	}

	var trip models.TripInfo
	if err := json.NewDecoder(resp.Body).Decode(&trip); err != nil {
		c.logger.Error("Failed to decode trip response", zap.Int64("trip_id", tripID), zap.Error(err))
		return false, nil
	}

	c.logger.Info("Trip validated",
		zap.Int64("trip_id", tripID),
		zap.String("status", trip.Status))

	return trip.Status == models.TripStatusCompleted, &trip
}
