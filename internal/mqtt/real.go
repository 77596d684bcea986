package mqtt

import (
	"context"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/sweeney/cheese-cave/internal/command"
	"github.com/sweeney/cheese-cave/internal/console"
	"github.com/sweeney/cheese-cave/internal/telemetry"
)

const (
	connectTimeout  = 10 * time.Second
	responseTimeout = 5 * time.Second
)

// Options configures a RealPlane.
type Options struct {
	Broker   string
	DeviceID string
	Username string
	Password string

	// RequestIDs adds a fresh "$rid" to every reported state so consumers
	// can de-duplicate retried submissions.
	RequestIDs bool
}

// RealPlane talks to an actual MQTT broker.
type RealPlane struct {
	client   paho.Client
	topics   Topics
	registry *command.Registry
	log      *console.Logger
	newRID   func() string
}

// NewRealPlane connects to the broker and subscribes to direct method requests.
// Subscriptions are re-established on every reconnect.
func NewRealPlane(o Options, log *console.Logger) (*RealPlane, error) {
	p := &RealPlane{
		topics:   NewTopics(o.DeviceID),
		registry: command.NewRegistry(),
		log:      log,
		newRID:   func() string { return "" },
	}
	if o.RequestIDs {
		p.newRID = uuid.NewString
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.DeviceID).
		SetUsername(o.Username).
		SetPassword(o.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetOrderMatters(false).
		SetWill(p.topics.Connection(), PayloadOffline, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Failure("MQTT connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		p.client.Disconnect(0)
		return nil, errors.New("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

func (p *RealPlane) onConnect(c paho.Client) {
	token := c.Subscribe(p.topics.MethodRequests(), 1, p.onMethod)
	if !token.WaitTimeout(responseTimeout) || token.Error() != nil {
		p.log.Failure("subscribe %s failed: %v", p.topics.MethodRequests(), token.Error())
		return
	}
	c.Publish(p.topics.Connection(), 1, true, PayloadOnline)
	p.log.Infow("connected to broker", "methods", p.topics.MethodRequests())
}

func (p *RealPlane) onMethod(c paho.Client, msg paho.Message) {
	respTopic, resp, ok := methodExchange(p.topics, p.registry, msg.Topic(), msg.Payload())
	if !ok {
		p.log.Warnw("ignoring malformed method topic", "topic", msg.Topic())
		return
	}

	// Responses that fail to deliver are not retried.
	token := c.Publish(respTopic, 1, false, resp.Payload)
	if !token.WaitTimeout(responseTimeout) {
		p.log.Failure("%v", transportErr("method response", errors.New("timeout")))
		return
	}
	if err := token.Error(); err != nil {
		p.log.Failure("%v", transportErr("method response", err))
	}
}

// RegisterCommandHandler installs fn for the named direct method.
func (p *RealPlane) RegisterCommandHandler(name string, fn command.Func) {
	p.registry.Register(name, fn)
}

// Dispatch invokes a registered method locally, bypassing the broker.
func (p *RealPlane) Dispatch(req command.Request) command.Response {
	return p.registry.Dispatch(req)
}

// ReportState publishes the reported state, retained, at QoS 1.
func (p *RealPlane) ReportState(ctx context.Context, report telemetry.Report) error {
	if !p.client.IsConnectionOpen() {
		return transportErr("report", errors.New("not connected"))
	}

	payload, err := FormatReport(report, p.newRID())
	if err != nil {
		return fmt.Errorf("format report: %w", err)
	}

	token := p.client.Publish(p.topics.Reported(), 1, true, payload)
	select {
	case <-ctx.Done():
		return transportErr("report", ctx.Err())
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		return transportErr("report", err)
	}
	return nil
}

// IsConnected reports whether the client currently has an open connection.
func (p *RealPlane) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close marks the device offline and disconnects from the broker.
func (p *RealPlane) Close() error {
	if p.client.IsConnectionOpen() {
		p.client.Publish(p.topics.Connection(), 1, true, PayloadOffline).WaitTimeout(time.Second)
	}
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
