// Package telemetrygen emits synthetic telemetry through the SDK, used for
// manual soak testing against a real or stubbed collector.
package telemetrygen

import (
	"crypto/rand"
	"math/big"
)

// Synthetic record shape constants.
const (
	randomFloatDivisor = 1000000
	metricValueMax     = 5000.0
)

// Screen and event names cycled through by the generator.
var (
	screenNames = []string{"home", "search", "detail", "cart", "checkout", "profile"}
	eventNames  = []string{"tap", "swipe", "long_press", "pull_refresh"}
	metricNames = []string{"api_latency_ms", "image_decode_ms", "db_read_ms"}
)

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// pick returns a random element of choices.
func pick(choices []string) string {
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(choices))))
	return choices[n.Int64()]
}

// syntheticRecord describes one generated record before it is handed to the
// SDK producer API.
type syntheticRecord struct {
	isMetric bool
	name     string
	value    float64
	screen   string
}

// generateRecord creates a single synthetic record; roughly a third are
// metrics, the rest interaction events.
func generateRecord() syntheticRecord {
	if getRandomFloat() < 0.33 {
		return syntheticRecord{
			isMetric: true,
			name:     pick(metricNames),
			value:    getRandomFloat() * metricValueMax,
			screen:   pick(screenNames),
		}
	}
	return syntheticRecord{
		name:   pick(eventNames),
		screen: pick(screenNames),
	}
}
