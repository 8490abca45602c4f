package orchestrator

import "github.com/ethereum/go-ethereum/metrics"

var (
	preparedMeter  = metrics.NewRegisteredMeter("orchestrator/prepared", nil)
	committedMeter = metrics.NewRegisteredMeter("orchestrator/committed", nil)
	failedMeter    = metrics.NewRegisteredMeter("orchestrator/failed", nil)
	skewMeter      = metrics.NewRegisteredMeter("orchestrator/skew", nil)
	operationTimer = metrics.NewRegisteredTimer("orchestrator/duration", nil)
)
