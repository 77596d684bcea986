// Package status provides a thread-safe status tracker for the cheese-cave agent.
// It is fed by the telemetry loop and the command handler and read by the
// HTTP status server.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/cheese-cave/internal/fan"
	"github.com/sweeney/cheese-cave/internal/sensor"
)

// Acceptable ranges around the desired conditions. Display only.
const (
	DesiredTempLimitF       = 5.0
	DesiredHumidityLimitPct = 10.0
)

// FanSource exposes the live fan state and fault as one consistent pair.
type FanSource interface {
	Status() (fan.State, error)
}

// Config contains agent configuration for display.
type Config struct {
	DeviceID        string
	Broker          string
	HTTPAddr        string
	Pin             int
	IntervalMs      int64
	SensorTimeoutMs int64
	ReportTimeoutMs int64
}

// Counts tracks cycle and command outcomes since startup.
type Counts struct {
	ReportsSent      int
	ReportsDropped   int
	SensorErrors     int
	CommandsApplied  int
	CommandsRejected int
}

// Snapshot is a point-in-time view of agent state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	FanState      fan.State
	Fault         string
	LastReading   *sensor.Reading
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the agent started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable agent state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	fan  FanSource
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
// f may be nil, in which case the fan state is reported as empty.
func NewTracker(startTime time.Time, cfg Config, f FanSource) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		fan: f,
		now: time.Now,
	}
}

// RecordReading stores the latest successful sensor reading.
func (t *Tracker) RecordReading(r sensor.Reading) {
	t.mu.Lock()
	t.snap.LastReading = &r
	t.mu.Unlock()
}

// RecordSensorError counts a failed sensor read.
func (t *Tracker) RecordSensorError() {
	t.mu.Lock()
	t.snap.Counts.SensorErrors++
	t.mu.Unlock()
}

// RecordReport counts a report as sent or dropped.
func (t *Tracker) RecordReport(sent bool) {
	t.mu.Lock()
	if sent {
		t.snap.Counts.ReportsSent++
	} else {
		t.snap.Counts.ReportsDropped++
	}
	t.mu.Unlock()
}

// RecordCommand counts a direct method as applied or rejected.
func (t *Tracker) RecordCommand(applied bool) {
	t.mu.Lock()
	if applied {
		t.snap.Counts.CommandsApplied++
	} else {
		t.snap.Counts.CommandsRejected++
	}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the agent state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()

	if s.LastReading != nil {
		r := *s.LastReading
		s.LastReading = &r
	}
	if t.fan != nil {
		state, fault := t.fan.Status()
		s.FanState = state
		if fault != nil {
			s.Fault = fault.Error()
		}
	}
	s.Now = t.now()
	return s
}
