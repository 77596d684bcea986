// Package command implements the direct methods the remote plane can invoke
// on the device. Every request produces exactly one response.
package command

import (
	"encoding/json"
	"sync"
)

// MethodSetFanState is the direct method that switches the fan.
const MethodSetFanState = "SetFanState"

// Response status codes.
const (
	StatusOK         = 200
	StatusBadRequest = 400
	StatusNotFound   = 404
)

// Result messages.
const (
	ResultFanFailed        = "Fan failed"
	ResultInvalidParameter = "Invalid parameter"
	ResultMethodNotFound   = "Method not found"
	resultExecutedPrefix   = "Executed direct method: "
)

// Request is one direct method invocation.
type Request struct {
	Method  string
	Payload []byte
}

// Response is the reply to a Request.
type Response struct {
	Status  int
	Payload []byte
}

// Result is the JSON body of every Response.
type Result struct {
	Result string `json:"result"`
}

// Func handles a single Request.
type Func func(Request) Response

// Dispatcher routes a Request to the handler registered for its method.
type Dispatcher interface {
	Dispatch(req Request) Response
}

// NewResponse builds a Response with a {"result": msg} body.
func NewResponse(status int, msg string) Response {
	body, err := json.Marshal(Result{Result: msg})
	if err != nil {
		// A struct with one string field always marshals.
		panic(err)
	}
	return Response{Status: status, Payload: body}
}

// Registry maps method names to handlers. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Func
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Func)}
}

// Register installs fn under name, replacing any previous handler.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	r.handlers[name] = fn
	r.mu.Unlock()
}

// Methods returns the number of registered methods.
func (r *Registry) Methods() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Dispatch invokes the handler for req.Method. Unknown methods get a 404.
// A panicking handler is converted to a 400 invalid-parameter response.
func (r *Registry) Dispatch(req Request) (resp Response) {
	r.mu.RLock()
	fn, ok := r.handlers[req.Method]
	r.mu.RUnlock()
	if !ok {
		return NewResponse(StatusNotFound, ResultMethodNotFound)
	}

	defer func() {
		if p := recover(); p != nil {
			resp = NewResponse(StatusBadRequest, ResultInvalidParameter)
		}
	}()
	return fn(req)
}
