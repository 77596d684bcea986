package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sweeney/cheese-cave/internal/console"
	"github.com/sweeney/cheese-cave/internal/fan"
	"github.com/sweeney/cheese-cave/internal/sensor"
)

// ErrReportDropped is returned when a report could not be delivered within
// the report timeout. The report is not kept.
var ErrReportDropped = errors.New("report dropped")

// Reporter submits reports to the remote plane.
type Reporter interface {
	ReportState(ctx context.Context, report Report) error
}

// StateSource yields the current fan state.
type StateSource interface {
	State() fan.State
}

// Recorder observes cycle results. May be nil.
type Recorder interface {
	RecordReading(r sensor.Reading)
	RecordSensorError()
	RecordReport(sent bool)
}

// Config holds loop timing.
type Config struct {
	SensorTimeout time.Duration // bound on a single sensor read
	ReportTimeout time.Duration // bound on submission including retries
	RetryInitial  time.Duration // first retry delay
	RetryMax      time.Duration // cap on retry delay
}

// DefaultConfig returns the production timing.
func DefaultConfig() Config {
	return Config{
		SensorTimeout: 2 * time.Second,
		ReportTimeout: 10 * time.Second,
		RetryInitial:  500 * time.Millisecond,
		RetryMax:      4 * time.Second,
	}
}

// Loop performs telemetry cycles. Scheduling is left to the caller.
type Loop struct {
	sensor   sensor.Reader
	fan      StateSource
	reporter Reporter
	rec      Recorder
	log      *console.Logger
	cfg      Config
}

// NewLoop creates a Loop.
func NewLoop(src sensor.Reader, f StateSource, rep Reporter, rec Recorder, log *console.Logger, cfg Config) *Loop {
	return &Loop{
		sensor:   src,
		fan:      f,
		reporter: rep,
		rec:      rec,
		log:      log,
		cfg:      cfg,
	}
}

// Cycle reads the sensor, snapshots the fan and submits one report.
// Failures are logged and counted; the returned error is informational and
// the caller is expected to carry on with the next cycle.
func (l *Loop) Cycle(ctx context.Context) (Report, error) {
	reading, err := l.read(ctx)
	if err != nil {
		l.log.Failure("Sensor read failed, skipping cycle: %v", err)
		if l.rec != nil {
			l.rec.RecordSensorError()
		}
		return Report{}, err
	}
	if l.rec != nil {
		l.rec.RecordReading(reading)
	}

	report := NewReport(l.fan.State(), reading)

	if err := l.submit(ctx, report); err != nil {
		l.log.Failure("Twin state not reported: %v", err)
		if l.rec != nil {
			l.rec.RecordReport(false)
		}
		return report, err
	}

	body, _ := json.Marshal(report)
	l.log.Success("Twin state reported: %s", body)
	if l.rec != nil {
		l.rec.RecordReport(true)
	}
	return report, nil
}

func (l *Loop) read(ctx context.Context) (sensor.Reading, error) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.SensorTimeout)
	defer cancel()

	r, err := l.sensor.Read(ctx)
	if err != nil {
		if !errors.Is(err, sensor.ErrUnavailable) {
			err = fmt.Errorf("%w: %v", sensor.ErrUnavailable, err)
		}
		return sensor.Reading{}, err
	}
	return r, nil
}

// submit retries with exponential backoff until the report timeout expires.
func (l *Loop) submit(ctx context.Context, report Report) error {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.ReportTimeout)
	defer cancel()

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = l.cfg.RetryInitial
	eb.MaxInterval = l.cfg.RetryMax
	eb.MaxElapsedTime = 0 // bounded by ctx instead

	var last error
	attempts := 0
	op := func() error {
		attempts++
		last = l.reporter.ReportState(ctx, report)
		return last
	}
	notify := func(err error, wait time.Duration) {
		l.log.Debugw("report attempt failed", "attempt", attempts, "retry_in", wait, "err", err)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(eb, ctx), notify); err != nil {
		if last == nil {
			last = err
		}
		return fmt.Errorf("%w after %d attempt(s): %v", ErrReportDropped, attempts, last)
	}
	return nil
}
