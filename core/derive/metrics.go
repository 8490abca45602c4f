package derive

import "github.com/ethereum/go-ethereum/metrics"

var cacheHitMeter = metrics.NewRegisteredMeter("derive/cache/hit", nil)
