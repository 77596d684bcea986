package sensor

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"periph.io/x/periph/conn/physic"
)

func TestFahrenheit(t *testing.T) {
	tests := []struct {
		in   physic.Temperature
		want float64
	}{
		{physic.ZeroCelsius, 32},
		{physic.ZeroCelsius + 20*physic.Celsius, 68},
		{physic.ZeroCelsius + 100*physic.Celsius, 212},
		{physic.ZeroCelsius - 40*physic.Celsius, -40},
	}
	for _, tt := range tests {
		got := Fahrenheit(tt.in)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Fahrenheit(%v): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPercent(t *testing.T) {
	got := Percent(45*physic.PercentRH + 678*physic.MilliRH/100)
	if math.Abs(got-45.678) > 1e-9 {
		t.Errorf("Percent: got %v, want 45.678", got)
	}
	if Percent(0) != 0 {
		t.Errorf("Percent(0): got %v", Percent(0))
	}
}

func TestFakeReaderRead(t *testing.T) {
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	f := NewFakeReader([]Reading{
		{TemperatureF: 68.123, HumidityPct: 45.678, Time: at},
		{TemperatureF: 55, HumidityPct: 85},
	})
	ctx := context.Background()

	r, err := f.Read(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.TemperatureF != 68.123 || r.HumidityPct != 45.678 || !r.Time.Equal(at) {
		t.Errorf("sample 0: got %+v", r)
	}

	r, err = f.Read(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.TemperatureF != 55 || r.Time.IsZero() {
		t.Errorf("sample 1: got %+v", r)
	}

	// Exhausted: repeats last
	r, _ = f.Read(ctx)
	if r.TemperatureF != 55 {
		t.Errorf("repeat: got %+v", r)
	}
	if f.Reads != 3 {
		t.Errorf("Reads: got %d, want 3", f.Reads)
	}
}

func TestFakeReaderErrors(t *testing.T) {
	f := NewFakeReader(nil)
	if _, err := f.Read(context.Background()); err == nil {
		t.Error("expected error with no samples")
	}

	f = NewFakeReader([]Reading{{TemperatureF: 1}})
	f.SetReadError(ErrUnavailable)
	if _, err := f.Read(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("got %v, want ErrUnavailable", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.SetReadError(nil)
	if _, err := f.Read(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestFakeReaderCloseReset(t *testing.T) {
	f := NewFakeReader([]Reading{{TemperatureF: 1}, {TemperatureF: 2}})
	f.Read(context.Background())
	f.Close()
	if !f.Closed {
		t.Error("expected closed")
	}
	f.Reset()
	if f.Closed || f.Reads != 0 {
		t.Error("reset should clear state")
	}
	r, _ := f.Read(context.Background())
	if r.TemperatureF != 1 {
		t.Errorf("after reset: got %v, want 1", r.TemperatureF)
	}
}
