// Package telemetry builds periodic state reports and submits them to the
// remote plane.
package telemetry

import (
	"math"
	"strconv"
	"strings"

	"github.com/sweeney/cheese-cave/internal/fan"
	"github.com/sweeney/cheese-cave/internal/sensor"
)

// Report is the reported-state snapshot sent once per interval.
type Report struct {
	FanState    string  `json:"fanstate"`
	Humidity    float64 `json:"humidity"`
	Temperature float64 `json:"temperature"`
}

// NewReport builds a Report with humidity and temperature rounded to two decimals.
func NewReport(state fan.State, r sensor.Reading) Report {
	return Report{
		FanState:    string(state),
		Humidity:    Round2(r.HumidityPct),
		Temperature: Round2(r.TemperatureF),
	}
}

// Round2 rounds v to two decimal places, half away from zero, using the
// shortest decimal representation of v. This makes 72.345 round to 72.35
// even though its binary value is slightly below the midpoint.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}

	s := strconv.FormatFloat(math.Abs(v), 'f', -1, 64)
	intPart, frac, _ := strings.Cut(s, ".")
	if len(frac) <= 2 {
		return v
	}
	// Beyond int64 range the value has no fractional precision left anyway.
	if len(intPart) > 15 {
		return v
	}

	n, err := strconv.ParseInt(intPart+frac[:2], 10, 64)
	if err != nil {
		return math.Round(v*100) / 100
	}
	if frac[2] >= '5' {
		n++
	}

	out := float64(n) / 100
	if v < 0 {
		out = -out
	}
	return out
}
