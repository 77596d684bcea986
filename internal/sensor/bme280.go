package sensor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/devices/bmxx80"
	"periph.io/x/periph/host"
)

// BME280 reads a Bosch BME280 over I2C.
//
// At most one bus transaction is in flight. A transaction that outlives its
// caller's deadline keeps the sensor busy, and later reads fail fast with
// ErrUnavailable until it finishes.
type BME280 struct {
	sense    func(*physic.Env) error
	halt     func() error
	closeBus func() error
	now      func() time.Time

	mu      sync.Mutex
	pending chan struct{} // closed when the in-flight read finishes; nil when idle
	closed  bool
}

// ErrReadInProgress is wrapped with ErrUnavailable while an earlier read is
// still waiting on the bus.
var ErrReadInProgress = errors.New("read in progress")

// closeWait bounds how long Close waits for a pending read before giving up
// on halting the sensor.
const closeWait = 500 * time.Millisecond

// NewBME280 opens the named I2C bus ("" for the first available) and
// initialises the sensor at addr.
func NewBME280(busName string, addr uint16) (*BME280, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}

	dev, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("init bme280 at %#x: %w", addr, err)
	}

	return newBME280(dev.Sense, dev.Halt, bus.Close), nil
}

func newBME280(sense func(*physic.Env) error, halt, closeBus func() error) *BME280 {
	return &BME280{
		sense:    sense,
		halt:     halt,
		closeBus: closeBus,
		now:      time.Now,
	}
}

type senseResult struct {
	env physic.Env
	err error
}

// Read samples the sensor. The underlying bus transaction cannot be
// interrupted, so on cancellation Read returns immediately and the
// transaction finishes in the background.
func (b *BME280) Read(ctx context.Context) (Reading, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return Reading{}, fmt.Errorf("%w: sensor closed", ErrUnavailable)
	}
	if b.pending != nil {
		b.mu.Unlock()
		return Reading{}, fmt.Errorf("%w: %v", ErrUnavailable, ErrReadInProgress)
	}
	done := make(chan struct{})
	b.pending = done
	b.mu.Unlock()

	ch := make(chan senseResult, 1)
	go func() {
		var r senseResult
		r.err = b.sense(&r.env)
		b.mu.Lock()
		b.pending = nil
		b.mu.Unlock()
		close(done)
		ch <- r
	}()

	select {
	case <-ctx.Done():
		return Reading{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return Reading{}, fmt.Errorf("%w: %v", ErrUnavailable, r.err)
		}
		return Reading{
			TemperatureF: Fahrenheit(r.env.Temperature),
			HumidityPct:  Percent(r.env.Humidity),
			Time:         b.now(),
		}, nil
	}
}

// Close halts the sensor and releases the bus. If a read is stuck on the bus
// Close waits briefly, then skips the halt and only releases the bus.
func (b *BME280) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	pending := b.pending
	b.mu.Unlock()

	stuck := false
	if pending != nil {
		select {
		case <-pending:
		case <-time.After(closeWait):
			stuck = true
		}
	}

	var errs []error
	if !stuck {
		if err := b.halt(); err != nil {
			errs = append(errs, fmt.Errorf("halt bme280: %w", err))
		}
	}
	if err := b.closeBus(); err != nil {
		errs = append(errs, fmt.Errorf("close i2c bus: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// Fahrenheit converts a periph temperature to degrees Fahrenheit.
func Fahrenheit(t physic.Temperature) float64 {
	c := float64(t-physic.ZeroCelsius) / float64(physic.Celsius)
	return c*9/5 + 32
}

// Percent converts a periph relative humidity to percent.
func Percent(h physic.RelativeHumidity) float64 {
	return float64(h) / float64(physic.PercentRH)
}
