package command

import (
	"strings"
	"unicode/utf8"

	"github.com/sweeney/cheese-cave/internal/console"
	"github.com/sweeney/cheese-cave/internal/fan"
)

// Applier applies a fan transition request.
type Applier interface {
	Apply(label string) (fan.State, fan.Outcome)
}

// Recorder counts handled commands. May be nil.
type Recorder interface {
	RecordCommand(applied bool)
}

// Handler implements the SetFanState direct method.
type Handler struct {
	fan Applier
	rec Recorder
	log *console.Logger
}

// NewHandler creates a Handler that drives f.
func NewHandler(f Applier, rec Recorder, log *console.Logger) *Handler {
	return &Handler{fan: f, rec: rec, log: log}
}

// DecodeLabel extracts the requested state label from a payload.
// The payload may be a bare label or a JSON string ("On").
func DecodeLabel(payload []byte) (string, bool) {
	if !utf8.Valid(payload) {
		return "", false
	}
	s := strings.TrimSpace(string(payload))
	return strings.Trim(s, `"`), true
}

// Handle applies the requested fan state and builds the reply. It never panics.
func (h *Handler) Handle(req Request) (resp Response) {
	defer func() {
		if p := recover(); p != nil {
			resp = h.reject(NewResponse(StatusBadRequest, ResultInvalidParameter))
		}
	}()

	label, ok := DecodeLabel(req.Payload)
	if !ok {
		return h.reject(NewResponse(StatusBadRequest, ResultInvalidParameter))
	}

	state, outcome := h.fan.Apply(label)
	switch outcome {
	case fan.OutcomeApplied:
		h.log.Success("Fan set to: %s", state)
		h.record(true)
		return NewResponse(StatusOK, resultExecutedPrefix+req.Method)
	case fan.OutcomeActuatorFailed:
		return h.reject(NewResponse(StatusBadRequest, ResultFanFailed))
	default:
		return h.reject(NewResponse(StatusBadRequest, ResultInvalidParameter))
	}
}

func (h *Handler) reject(resp Response) Response {
	h.log.Failure("Direct method failed: %s", resp.Payload)
	h.record(false)
	return resp
}

func (h *Handler) record(applied bool) {
	if h.rec != nil {
		h.rec.RecordCommand(applied)
	}
}
