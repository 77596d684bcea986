// Package broker runs an embedded MQTT broker so the agent can operate, and be
// tested, without external infrastructure.
package broker

import (
	"fmt"
	"log/slog"

	mqttbroker "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
)

// Broker is a running embedded MQTT broker.
type Broker struct {
	server *mqttbroker.Server
	addr   string
}

// Start listens on addr (host:port) and starts serving. Any client may connect.
func Start(l *slog.Logger, addr string) (*Broker, error) {
	server := mqttbroker.New(&mqttbroker.Options{
		Logger: l.With(slog.String("component", "mqtt-broker")),
	})

	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, fmt.Errorf("add auth hook: %w", err)
	}

	tcp := listeners.NewTCP(listeners.Config{ID: "tcp", Address: addr})
	if err := server.AddListener(tcp); err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	if err := server.Serve(); err != nil {
		server.Close()
		return nil, fmt.Errorf("serve: %w", err)
	}

	return &Broker{server: server, addr: addr}, nil
}

// URL returns the tcp:// URL clients should dial.
func (b *Broker) URL() string {
	return "tcp://" + b.addr
}

// Close stops the broker and disconnects all clients.
func (b *Broker) Close() error {
	return b.server.Close()
}
