// Package sensor provides temperature/humidity readings with hardware abstraction.
// The real implementation reads a BME280 over I2C via periph.io.
// The fake implementation allows testing without hardware.
package sensor

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned (wrapped) when the sensor cannot be read.
var ErrUnavailable = errors.New("sensor unavailable")

// DefaultAddr is the BME280 I2C address with SDO pulled high.
const DefaultAddr = 0x77

// Reading is a single sensor sample.
type Reading struct {
	TemperatureF float64
	HumidityPct  float64
	Time         time.Time
}

// Reader produces readings on demand.
type Reader interface {
	// Read returns the current reading. It must honour ctx cancellation.
	Read(ctx context.Context) (Reading, error)

	// Close releases sensor resources.
	Close() error
}
