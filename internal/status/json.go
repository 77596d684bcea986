package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/cheese-cave/internal/telemetry"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	FanState      string       `json:"fanstate"`
	Fault         string       `json:"fault,omitempty"`
	Reading       *ReadingJSON `json:"reading,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Limits        LimitsJSON   `json:"limits"`
	Config        ConfigJSON   `json:"config"`
}

// ReadingJSON is the latest sensor reading, rounded like a report.
type ReadingJSON struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Timestamp   string  `json:"timestamp"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of counters.
type CountsJSON struct {
	ReportsSent      int `json:"reports_sent"`
	ReportsDropped   int `json:"reports_dropped"`
	SensorErrors     int `json:"sensor_errors"`
	CommandsApplied  int `json:"commands_applied"`
	CommandsRejected int `json:"commands_rejected"`
}

// LimitsJSON carries the acceptable ranges around the desired conditions.
type LimitsJSON struct {
	TemperatureF float64 `json:"temperature_f"`
	HumidityPct  float64 `json:"humidity_pct"`
}

// ConfigJSON is the JSON representation of agent config.
type ConfigJSON struct {
	DeviceID        string `json:"device_id"`
	Broker          string `json:"broker"`
	HTTPAddr        string `json:"http_addr"`
	Pin             int    `json:"pin"`
	IntervalMs      int64  `json:"interval_ms"`
	SensorTimeoutMs int64  `json:"sensor_timeout_ms"`
	ReportTimeoutMs int64  `json:"report_timeout_ms"`
}

func buildInner(snap Snapshot) StatusInner {
	fs := string(snap.FanState)
	if fs == "" {
		fs = "UNKNOWN"
	}

	inner := StatusInner{
		FanState:      fs,
		Fault:         snap.Fault,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			ReportsSent:      snap.Counts.ReportsSent,
			ReportsDropped:   snap.Counts.ReportsDropped,
			SensorErrors:     snap.Counts.SensorErrors,
			CommandsApplied:  snap.Counts.CommandsApplied,
			CommandsRejected: snap.Counts.CommandsRejected,
		},
		Limits: LimitsJSON{
			TemperatureF: DesiredTempLimitF,
			HumidityPct:  DesiredHumidityLimitPct,
		},
		Config: ConfigJSON{
			DeviceID:        snap.Config.DeviceID,
			Broker:          snap.Config.Broker,
			HTTPAddr:        snap.Config.HTTPAddr,
			Pin:             snap.Config.Pin,
			IntervalMs:      snap.Config.IntervalMs,
			SensorTimeoutMs: snap.Config.SensorTimeoutMs,
			ReportTimeoutMs: snap.Config.ReportTimeoutMs,
		},
	}

	if r := snap.LastReading; r != nil {
		inner.Reading = &ReadingJSON{
			Temperature: telemetry.Round2(r.TemperatureF),
			Humidity:    telemetry.Round2(r.HumidityPct),
			Timestamp:   r.Time.UTC().Format(time.RFC3339),
		}
	}
	return inner
}

// FormatJSON returns the indented JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}
