// Package gateway fronts the external collaborators of the payment flow: the
// trip registry, the settlement gateway, and the notification service.
package gateway

import (
	"context"
	"time"

	"payment-service/internal/models"

	"github.com/shopspring/decimal"
)

// Gateway is the facade the coordinator talks to
type Gateway struct {
	trips    *TripClient
	settler  Settler
	notifier *Notifier
}

// New assembles the facade from its collaborators
func New(trips *TripClient, settler Settler, notifier *Notifier) *Gateway {
	return &Gateway{trips: trips, settler: settler, notifier: notifier}
}

// NewFromConfig builds the facade with default HTTP collaborators
func NewFromConfig(tripServiceURL, notificationServiceURL string, timeout time.Duration, successRate float64) *Gateway {
	return New(
		NewTripClient(tripServiceURL, timeout),
		NewSimulatedSettler(successRate),
		NewNotifier(notificationServiceURL, timeout),
	)
}

// ValidateTripCompletion checks trip eligibility, failing closed
func (g *Gateway) ValidateTripCompletion(ctx context.Context, tripID int64) (bool, *models.TripInfo) {
	return g.trips.ValidateTripCompletion(ctx, tripID)
}

// Charge settles a charge with the gateway
func (g *Gateway) Charge(ctx context.Context, method string, amount decimal.Decimal) SettlementResult {
	return g.settler.Charge(ctx, method, amount)
}

// Notify delivers a notification payload, best-effort
func (g *Gateway) Notify(ctx context.Context, payload []byte) error {
	return g.notifier.Notify(ctx, payload)
}
