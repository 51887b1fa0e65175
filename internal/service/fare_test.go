package service

import (
	"testing"

	"payment-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCalculateFare(t *testing.T) {
	schedule := NewFareSchedule(5.0, 2.5)

	trip := &models.TripInfo{Distance: 10, SurgeMultiplier: 1.2}

	fare := schedule.Calculate(trip)
	assert.Equal(t, "36.00", fare.StringFixed(2))
}

func TestCalculateFareDefaultsSurge(t *testing.T) {
	schedule := NewFareSchedule(5.0, 2.5)

	trip := &models.TripInfo{Distance: 10}

	fare := schedule.Calculate(trip)
	assert.Equal(t, "30.00", fare.StringFixed(2))
}

func TestCalculateFareRoundsToTwoDecimals(t *testing.T) {
	schedule := NewFareSchedule(5.0, 2.5)

	trip := &models.TripInfo{Distance: 3.333, SurgeMultiplier: 1.5}

	// (5.0 + 3.333*2.5) * 1.5 = 19.99875
	fare := schedule.Calculate(trip)
	assert.Equal(t, "20.00", fare.StringFixed(2))
}
