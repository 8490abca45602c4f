package attest

import "github.com/ethereum/go-ethereum/metrics"

var (
	requestMeter      = metrics.NewRegisteredMeter("attest/requests", nil)
	requestTimer      = metrics.NewRegisteredTimer("attest/latency", nil)
	cacheHitMeter     = metrics.NewRegisteredMeter("attest/cache/hit", nil)
	unauthorizedMeter = metrics.NewRegisteredMeter("attest/unauthorized", nil)
	notFoundMeter     = metrics.NewRegisteredMeter("attest/notfound", nil)
	unclassifiedMeter = metrics.NewRegisteredMeter("attest/unclassified", nil)
)
