package gpio

import (
	"errors"
	"testing"
)

func TestFakeOutputWrite(t *testing.T) {
	f := NewFakeOutput()

	if f.Level() {
		t.Error("expected low before any write")
	}

	if err := f.Write(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.Level() {
		t.Error("expected high after Write(true)")
	}

	if err := f.Write(false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Level() {
		t.Error("expected low after Write(false)")
	}

	if len(f.Writes) != 2 {
		t.Errorf("expected 2 writes, got %d", len(f.Writes))
	}
}

func TestFakeOutputWriteError(t *testing.T) {
	f := NewFakeOutput()
	f.SetWriteError(errors.New("simulated error"))

	if err := f.Write(true); err == nil {
		t.Error("expected error")
	}
	if len(f.Writes) != 0 {
		t.Errorf("expected no writes recorded on error, got %d", len(f.Writes))
	}
}

func TestFakeOutputClose(t *testing.T) {
	f := NewFakeOutput()
	f.Write(true)

	if f.Closed {
		t.Error("should not be closed initially")
	}

	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if !f.Closed {
		t.Error("should be closed after Close()")
	}
	if f.Level() {
		t.Error("Close should drive the line low")
	}
}

func TestFakeOutputReset(t *testing.T) {
	f := NewFakeOutput()
	f.Write(true)
	f.Close()
	f.SetWriteError(errors.New("error"))

	f.Reset()

	if len(f.Writes) != 0 {
		t.Error("writes should be cleared")
	}
	if f.Closed {
		t.Error("closed should be reset")
	}
	if f.WriteError != nil {
		t.Error("error should be cleared")
	}
}

func TestFakeOutputImplementsOutput(t *testing.T) {
	var _ Output = (*FakeOutput)(nil)
	var _ Output = (*RealOutput)(nil)
}
