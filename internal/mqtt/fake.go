package mqtt

import (
	"context"
	"sync"

	"github.com/sweeney/cheese-cave/internal/command"
	"github.com/sweeney/cheese-cave/internal/telemetry"
)

// FakePlane records reports and routes invocations for test assertions.
// Safe for concurrent use.
type FakePlane struct {
	mu       sync.Mutex
	registry *command.Registry

	// Reports contains all reports that were accepted.
	Reports []telemetry.Report

	// Payloads contains the JSON payloads of accepted reports.
	Payloads [][]byte

	// Responses contains the reply to every Invoke, in order.
	Responses []command.Response

	// ReportError, if set, will be returned by ReportState.
	ReportError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePlane creates a FakePlane for testing.
func NewFakePlane() *FakePlane {
	return &FakePlane{registry: command.NewRegistry()}
}

// RegisterCommandHandler installs fn for the named direct method.
func (f *FakePlane) RegisterCommandHandler(name string, fn command.Func) {
	f.registry.Register(name, fn)
}

// Dispatch invokes a registered method.
func (f *FakePlane) Dispatch(req command.Request) command.Response {
	return f.registry.Dispatch(req)
}

// Invoke simulates the remote plane calling a direct method and records the reply.
func (f *FakePlane) Invoke(method string, payload []byte) command.Response {
	resp := f.registry.Dispatch(command.Request{Method: method, Payload: payload})
	f.mu.Lock()
	f.Responses = append(f.Responses, resp)
	f.mu.Unlock()
	return resp
}

// ReportState records the report.
func (f *FakePlane) ReportState(ctx context.Context, report telemetry.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReportError != nil {
		return f.ReportError
	}
	if err := ctx.Err(); err != nil {
		return transportErr("report", err)
	}

	payload, err := FormatReport(report, "")
	if err != nil {
		return err
	}
	f.Reports = append(f.Reports, report)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// SetReportError sets the error returned by subsequent ReportState calls.
func (f *FakePlane) SetReportError(err error) {
	f.mu.Lock()
	f.ReportError = err
	f.mu.Unlock()
}

// ReportCount returns the number of accepted reports.
func (f *FakePlane) ReportCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Reports)
}

// Close marks the plane as closed.
func (f *FakePlane) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// IsConnected reports whether the fake plane is "connected".
func (f *FakePlane) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Reset clears recorded reports and responses.
func (f *FakePlane) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reports = nil
	f.Payloads = nil
	f.Responses = nil
	f.ReportError = nil
	f.Closed = false
	f.Connected = false
}
