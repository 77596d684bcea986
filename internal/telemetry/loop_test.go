package telemetry

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/cheese-cave/internal/console"
	"github.com/sweeney/cheese-cave/internal/fan"
	"github.com/sweeney/cheese-cave/internal/sensor"
)

// fakeReporter fails the first failN calls, then records reports.
type fakeReporter struct {
	mu      sync.Mutex
	failN   int
	calls   int
	reports []Report
	block   bool
}

func (f *fakeReporter) ReportState(ctx context.Context, r Report) error {
	f.mu.Lock()
	f.calls++
	call := f.calls
	block := f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if call <= f.failN {
		return errors.New("broker unreachable")
	}
	f.mu.Lock()
	f.reports = append(f.reports, r)
	f.mu.Unlock()
	return nil
}

type fakeRecorder struct {
	readings     []sensor.Reading
	sensorErrors int
	sent         int
	dropped      int
}

func (f *fakeRecorder) RecordReading(r sensor.Reading) { f.readings = append(f.readings, r) }
func (f *fakeRecorder) RecordSensorError()             { f.sensorErrors++ }
func (f *fakeRecorder) RecordReport(sent bool) {
	if sent {
		f.sent++
	} else {
		f.dropped++
	}
}

// blockingReader never returns until ctx is done.
type blockingReader struct{}

func (blockingReader) Read(ctx context.Context) (sensor.Reading, error) {
	<-ctx.Done()
	return sensor.Reading{}, ctx.Err()
}
func (blockingReader) Close() error { return nil }

func testConfig() Config {
	return Config{
		SensorTimeout: 50 * time.Millisecond,
		ReportTimeout: 200 * time.Millisecond,
		RetryInitial:  time.Millisecond,
		RetryMax:      5 * time.Millisecond,
	}
}

func TestCycleReportsState(t *testing.T) {
	src := sensor.NewFakeReader([]sensor.Reading{{TemperatureF: 68.123, HumidityPct: 45.678}})
	m := fan.NewMachine(nil)
	m.Apply("On")
	rep := &fakeReporter{}
	rec := &fakeRecorder{}
	var logs bytes.Buffer

	l := NewLoop(src, m, rep, rec, console.New(&logs, console.InfoLevel, false), testConfig())
	got, err := l.Cycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Report{FanState: "On", Humidity: 45.68, Temperature: 68.12}
	if got != want {
		t.Errorf("report: got %+v, want %+v", got, want)
	}
	if len(rep.reports) != 1 || rep.reports[0] != want {
		t.Errorf("submitted: got %+v", rep.reports)
	}
	if rec.sent != 1 || rec.dropped != 0 || len(rec.readings) != 1 {
		t.Errorf("recorder: %+v", rec)
	}
	if !strings.Contains(logs.String(), `Twin state reported: {"fanstate":"On","humidity":45.68,"temperature":68.12}`) {
		t.Errorf("expected success log, got %q", logs.String())
	}
}

func TestCycleSensorFailureSkips(t *testing.T) {
	src := sensor.NewFakeReader([]sensor.Reading{{TemperatureF: 60}})
	src.SetReadError(errors.New("i2c: remote I/O error"))
	rep := &fakeReporter{}
	rec := &fakeRecorder{}

	l := NewLoop(src, fan.NewMachine(nil), rep, rec, console.NewNop(), testConfig())
	_, err := l.Cycle(context.Background())
	if !errors.Is(err, sensor.ErrUnavailable) {
		t.Errorf("err: got %v, want ErrUnavailable", err)
	}
	if rep.calls != 0 {
		t.Errorf("expected no report attempt, got %d", rep.calls)
	}
	if rec.sensorErrors != 1 {
		t.Errorf("sensorErrors: got %d, want 1", rec.sensorErrors)
	}

	// Next cycle recovers.
	src.SetReadError(nil)
	if _, err := l.Cycle(context.Background()); err != nil {
		t.Errorf("recovery cycle: %v", err)
	}
	if len(rep.reports) != 1 {
		t.Errorf("expected 1 report after recovery, got %d", len(rep.reports))
	}
}

func TestCycleSensorTimeout(t *testing.T) {
	rec := &fakeRecorder{}
	l := NewLoop(blockingReader{}, fan.NewMachine(nil), &fakeReporter{}, rec, console.NewNop(), testConfig())

	start := time.Now()
	_, err := l.Cycle(context.Background())
	if !errors.Is(err, sensor.ErrUnavailable) {
		t.Errorf("err: got %v, want ErrUnavailable", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("sensor timeout not applied")
	}
	if rec.sensorErrors != 1 {
		t.Errorf("sensorErrors: got %d", rec.sensorErrors)
	}
}

func TestCycleRetriesTransport(t *testing.T) {
	src := sensor.NewFakeReader([]sensor.Reading{{TemperatureF: 55, HumidityPct: 85}})
	rep := &fakeReporter{failN: 2}
	rec := &fakeRecorder{}

	l := NewLoop(src, fan.NewMachine(nil), rep, rec, console.NewNop(), testConfig())
	if _, err := l.Cycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.calls != 3 {
		t.Errorf("calls: got %d, want 3", rep.calls)
	}
	if rec.sent != 1 {
		t.Errorf("sent: got %d, want 1", rec.sent)
	}
}

func TestCycleDropsAfterTimeout(t *testing.T) {
	src := sensor.NewFakeReader([]sensor.Reading{{TemperatureF: 55, HumidityPct: 85}})
	rep := &fakeReporter{failN: 1 << 30}
	rec := &fakeRecorder{}
	var logs bytes.Buffer

	l := NewLoop(src, fan.NewMachine(nil), rep, rec, console.New(&logs, console.InfoLevel, false), testConfig())
	report, err := l.Cycle(context.Background())
	if !errors.Is(err, ErrReportDropped) {
		t.Errorf("err: got %v, want ErrReportDropped", err)
	}
	if report.FanState != "Off" {
		t.Errorf("report still returned for inspection, got %+v", report)
	}
	if rep.calls < 2 {
		t.Errorf("expected retries, got %d call(s)", rep.calls)
	}
	if rec.dropped != 1 || rec.sent != 0 {
		t.Errorf("recorder: sent=%d dropped=%d", rec.sent, rec.dropped)
	}
	if !strings.Contains(logs.String(), "ERROR") {
		t.Errorf("expected failure log, got %q", logs.String())
	}
}

func TestCycleReportTimeoutBoundsBlockingTransport(t *testing.T) {
	src := sensor.NewFakeReader([]sensor.Reading{{TemperatureF: 55}})
	rep := &fakeReporter{block: true}

	l := NewLoop(src, fan.NewMachine(nil), rep, nil, console.NewNop(), testConfig())
	start := time.Now()
	_, err := l.Cycle(context.Background())
	if !errors.Is(err, ErrReportDropped) {
		t.Errorf("err: got %v, want ErrReportDropped", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("report timeout not applied")
	}
}

func TestCycleSnapshotsCurrentState(t *testing.T) {
	src := sensor.NewFakeReader([]sensor.Reading{{TemperatureF: 55}})
	m := fan.NewMachine(nil)
	rep := &fakeReporter{}
	l := NewLoop(src, m, rep, nil, console.NewNop(), testConfig())

	l.Cycle(context.Background())
	m.Apply("On")
	l.Cycle(context.Background())
	m.Trip(errors.New("fault"))
	l.Cycle(context.Background())

	want := []string{"Off", "On", "Failed"}
	if len(rep.reports) != len(want) {
		t.Fatalf("reports: got %d, want %d", len(rep.reports), len(want))
	}
	for i, w := range want {
		if rep.reports[i].FanState != w {
			t.Errorf("report %d: got %s, want %s", i, rep.reports[i].FanState, w)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.SensorTimeout <= 0 || cfg.ReportTimeout <= 0 || cfg.RetryInitial <= 0 || cfg.RetryMax < cfg.RetryInitial {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}
