package resolve

import "github.com/ethereum/go-ethereum/metrics"

var (
	simulationMeter = metrics.NewRegisteredMeter("resolve/simulations", nil)
	failureMeter    = metrics.NewRegisteredMeter("resolve/failures", nil)
	resolveTimer    = metrics.NewRegisteredTimer("resolve/duration", nil)
)
