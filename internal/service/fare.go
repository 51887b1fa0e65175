package service

import (
	"payment-service/internal/models"

	"github.com/shopspring/decimal"
)

// FareSchedule derives a charge amount from trip data:
// (base_fare + distance * rate_per_km) * surge_multiplier, rounded to 2dp.
type FareSchedule struct {
	BaseFare  decimal.Decimal
	RatePerKM decimal.Decimal
}

// NewFareSchedule builds a schedule from configured constants
func NewFareSchedule(baseFare, ratePerKM float64) FareSchedule {
	return FareSchedule{
		BaseFare:  decimal.NewFromFloat(baseFare),
		RatePerKM: decimal.NewFromFloat(ratePerKM),
	}
}

// Calculate computes the fare for a trip. A missing surge multiplier counts
// as 1.0.
func (f FareSchedule) Calculate(trip *models.TripInfo) decimal.Decimal {
	distance := decimal.NewFromFloat(trip.Distance)
	surge := decimal.NewFromFloat(trip.SurgeMultiplier)
	if surge.LessThanOrEqual(decimal.Zero) {
		surge = decimal.NewFromInt(1)
	}

	fare := f.BaseFare.Add(distance.Mul(f.RatePerKM)).Mul(surge)
	return fare.Round(2)
}
