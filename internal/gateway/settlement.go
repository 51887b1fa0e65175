package gateway

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"payment-service/internal/models"
	"payment-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Settlement outcomes as reported by the gateway
const (
	SettlementSuccess = "SUCCESS"
	SettlementFailed  = "FAILED"
	SettlementPending = "PENDING"
)

// SettlementResult is the gateway's answer to a charge attempt
type SettlementResult struct {
	Status    string `json:"status"`
	GatewayID string `json:"gateway_id,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message"`
}

// Settler settles a charge with the payment gateway. Implementations must be
// safe for concurrent use.
type Settler interface {
	Charge(ctx context.Context, method string, amount decimal.Decimal) SettlementResult
}

// SimulatedSettler stands in for a real gateway integration. Cash settles
// deterministically; electronic methods settle probabilistically from an
// injectable random source so tests can pin outcomes.
type SimulatedSettler struct {
	mu          sync.Mutex
	rng         *rand.Rand
	successRate float64
	logger      *zap.Logger
}

var declineCodes = []string{"INSUFFICIENT_FUNDS", "CARD_DECLINED", "GATEWAY_ERROR"}

// NewSimulatedSettler creates a simulator with the given electronic success rate
func NewSimulatedSettler(successRate float64) *SimulatedSettler {
	return &SimulatedSettler{
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		successRate: successRate,
		logger:      util.GetLogger(),
	}
}

// NewSeededSettler creates a simulator with a fixed seed for deterministic tests
func NewSeededSettler(successRate float64, seed int64) *SimulatedSettler {
	s := NewSimulatedSettler(successRate)
	s.rng = rand.New(rand.NewSource(seed))
	return s
}

// Charge simulates gateway settlement
func (s *SimulatedSettler) Charge(ctx context.Context, method string, amount decimal.Decimal) SettlementResult {
	start := time.Now()
	defer func() {
		util.GatewayChargeLatency.Observe(time.Since(start).Seconds())
	}()

	result := s.settle(method)

	util.GatewayOutcomesTotal.WithLabelValues(result.Status).Inc()
	s.logger.Info("Gateway settlement",
		zap.String("method", method),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("status", result.Status))

	return result
}

func (s *SimulatedSettler) settle(method string) SettlementResult {
	if method == models.MethodCash {
		return SettlementResult{
			Status:    SettlementSuccess,
			GatewayID: "GW-" + uuid.New().String()[:8],
			Message:   "cash payment recorded",
		}
	}

	s.mu.Lock()
	roll := s.rng.Float64()
	decline := declineCodes[s.rng.Intn(len(declineCodes))]
	s.mu.Unlock()

	if roll < s.successRate {
		return SettlementResult{
			Status:    SettlementSuccess,
			GatewayID: "GW-" + uuid.New().String()[:8],
			Message:   "payment processed successfully",
		}
	}
	return SettlementResult{
		Status:    SettlementFailed,
		ErrorCode: decline,
		Message:   "payment processing failed",
	}
}
