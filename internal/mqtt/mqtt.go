// Package mqtt connects the device to the remote management plane over MQTT,
// with abstraction for testing.
//
// Topic layout, relative to cheesecave/<device-id>:
//
//	methods/POST/<method>/<rid>   inbound direct method request
//	methods/res/<status>/<rid>    outbound direct method response
//	twin/reported                 outbound reported state (retained)
//
// The reported state is the flat {"fanstate","humidity","temperature"} object.
// A "$rid" request id is added only when Options.RequestIDs is set.
//	connection                    online/offline (retained, LWT)
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sweeney/cheese-cave/internal/command"
	"github.com/sweeney/cheese-cave/internal/telemetry"
)

// TopicRoot prefixes every device topic.
const TopicRoot = "cheesecave"

// Connection payloads.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// ErrTransport is returned (wrapped) when the broker cannot accept a message.
var ErrTransport = errors.New("transport failure")

// Plane is the remote management plane as seen by the device.
type Plane interface {
	// RegisterCommandHandler installs fn for the named direct method.
	RegisterCommandHandler(name string, fn command.Func)

	// ReportState pushes a reported-state snapshot. Best effort; the caller
	// decides on retries.
	ReportState(ctx context.Context, report telemetry.Report) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Topics builds topic names for one device.
type Topics struct {
	base string
}

// NewTopics returns the topic set for deviceID.
func NewTopics(deviceID string) Topics {
	return Topics{base: TopicRoot + "/" + deviceID}
}

// MethodRequests is the subscription filter for inbound direct methods.
func (t Topics) MethodRequests() string {
	return t.base + "/methods/POST/+/+"
}

// MethodRequest is the topic a caller publishes to in order to invoke method.
func (t Topics) MethodRequest(method, rid string) string {
	return t.base + "/methods/POST/" + method + "/" + rid
}

// MethodResponse is the topic the device replies on.
func (t Topics) MethodResponse(status int, rid string) string {
	return t.base + "/methods/res/" + strconv.Itoa(status) + "/" + rid
}

// MethodResponses is the subscription filter for all replies.
func (t Topics) MethodResponses() string {
	return t.base + "/methods/res/#"
}

// Reported is the reported-state topic.
func (t Topics) Reported() string {
	return t.base + "/twin/reported"
}

// Connection is the retained online/offline topic.
func (t Topics) Connection() string {
	return t.base + "/connection"
}

// ParseMethodRequest extracts method name and request id from an inbound topic.
func (t Topics) ParseMethodRequest(topic string) (method, rid string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.base+"/methods/POST/")
	if !found {
		return "", "", false
	}
	method, rid, found = strings.Cut(rest, "/")
	if !found || method == "" || rid == "" || strings.Contains(rid, "/") {
		return "", "", false
	}
	return method, rid, true
}

// ReportPayload is the wire form of a reported-state message.
type ReportPayload struct {
	telemetry.Report
	RequestID string `json:"$rid,omitempty"`
}

// FormatReport creates the JSON payload for a reported-state message.
// An empty rid leaves the "$rid" key out.
func FormatReport(report telemetry.Report, rid string) ([]byte, error) {
	return json.Marshal(ReportPayload{Report: report, RequestID: rid})
}

// methodExchange turns an inbound method message into its reply.
// ok is false when the topic is not a method request.
func methodExchange(t Topics, d command.Dispatcher, topic string, payload []byte) (respTopic string, resp command.Response, ok bool) {
	method, rid, ok := t.ParseMethodRequest(topic)
	if !ok {
		return "", command.Response{}, false
	}
	resp = d.Dispatch(command.Request{Method: method, Payload: payload})
	return t.MethodResponse(resp.Status, rid), resp, true
}

func transportErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrTransport, op, err)
}
