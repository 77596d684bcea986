// Command cheese-cave reports cheese cave conditions and fan state to an MQTT
// management plane and switches the fan on remote command.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/cheese-cave/internal/broker"
	"github.com/sweeney/cheese-cave/internal/command"
	"github.com/sweeney/cheese-cave/internal/config"
	"github.com/sweeney/cheese-cave/internal/console"
	"github.com/sweeney/cheese-cave/internal/fan"
	"github.com/sweeney/cheese-cave/internal/gpio"
	"github.com/sweeney/cheese-cave/internal/mqtt"
	"github.com/sweeney/cheese-cave/internal/sensor"
	"github.com/sweeney/cheese-cave/internal/status"
	"github.com/sweeney/cheese-cave/internal/telemetry"
	"github.com/sweeney/cheese-cave/internal/web"
)

const banner = "Cheese Cave device app."

// Conditions served by the simulated sensor.
var fakeConditions = sensor.Reading{TemperatureF: 55, HumidityPct: 85}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	log := console.New(os.Stdout, cfg.LogLevel, console.ColorEnabled(os.Stdout, cfg.NoColor))
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatalw("fatal", "err", err)
	}
}

func run(cfg config.Config, log *console.Logger) error {
	log.Banner(banner)

	out, reader, err := openHardware(cfg)
	if err != nil {
		return err
	}
	defer reader.Close()
	// Releasing the line drives it low, leaving the fan off.
	defer out.Close()

	if cfg.PrintState {
		return printState(reader, cfg.SensorTimeout)
	}

	if cfg.EmbeddedBroker != "" {
		b, err := broker.Start(brokerLogger(cfg.LogLevel), cfg.EmbeddedBroker)
		if err != nil {
			return fmt.Errorf("start embedded broker: %w", err)
		}
		defer b.Close()
		log.Infow("embedded broker listening", "addr", cfg.EmbeddedBroker)
	}

	machine := fan.NewMachine(out)
	tracker := status.NewTracker(time.Now(), status.Config{
		DeviceID:        cfg.DeviceID,
		Broker:          cfg.Broker,
		HTTPAddr:        cfg.HTTPAddr,
		Pin:             cfg.Pin,
		IntervalMs:      cfg.Interval.Milliseconds(),
		SensorTimeoutMs: cfg.SensorTimeout.Milliseconds(),
		ReportTimeoutMs: cfg.ReportTimeout.Milliseconds(),
	}, machine)

	plane, err := mqtt.NewRealPlane(mqtt.Options{
		Broker:   cfg.Broker,
		DeviceID: cfg.DeviceID,
		Username:   cfg.Username,
		Password:   cfg.Password,
		RequestIDs: cfg.RequestIDs,
	}, log)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer plane.Close()

	handler := command.NewHandler(machine, tracker, log)
	plane.RegisterCommandHandler(command.MethodSetFanState, handler.Handle)

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, localMethods(cfg, plane))
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorw("http server error", "err", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Infow("http status server listening", "addr", cfg.HTTPAddr, "methods", cfg.HTTPMethods)
	}

	loop := telemetry.NewLoop(reader, machine, plane, tracker, log, telemetry.Config{
		SensorTimeout: cfg.SensorTimeout,
		ReportTimeout: cfg.ReportTimeout,
		RetryInitial:  telemetry.DefaultConfig().RetryInitial,
		RetryMax:      telemetry.DefaultConfig().RetryMax,
	})

	log.Infow("started",
		"device", cfg.DeviceID,
		"broker", cfg.Broker,
		"interval", cfg.Interval,
		"pin", cfg.Pin,
		"fake_hardware", cfg.FakeHardware,
	)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return runLoop(context.Background(), loop, plane, tracker, log, ticker.C, sigCh)
}

// localMethods returns the dispatcher the HTTP server may use, or nil when
// local method invocation is not enabled. The endpoint is unauthenticated.
func localMethods(cfg config.Config, d command.Dispatcher) command.Dispatcher {
	if !cfg.HTTPMethods {
		return nil
	}
	return d
}

// cycler runs one telemetry cycle.
type cycler interface {
	Cycle(ctx context.Context) (telemetry.Report, error)
}

// runLoop runs a cycle straight away and then once per tick until a signal
// arrives or ctx is cancelled. A signal also cancels the cycle in flight.
// Cycle failures never end the loop.
func runLoop(ctx context.Context, loop cycler, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, log *console.Logger, tick <-chan time.Time, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case s := <-sig:
			log.Infow("shutting down", "signal", s.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := loop.Cycle(ctx); err != nil {
			log.Debugw("cycle incomplete", "err", err)
		}
		if tracker != nil && mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}

		select {
		case <-ctx.Done():
			return nil
		case <-tick:
		}
	}
}

func openHardware(cfg config.Config) (gpio.Output, sensor.Reader, error) {
	if cfg.FakeHardware {
		return gpio.NewFakeOutput(), sensor.NewFakeReader([]sensor.Reading{fakeConditions}), nil
	}

	out, err := gpio.NewRealOutput(cfg.GPIOChip, cfg.Pin)
	if err != nil {
		return nil, nil, fmt.Errorf("init gpio: %w", err)
	}
	reader, err := sensor.NewBME280(cfg.I2CBus, cfg.I2CAddr)
	if err != nil {
		out.Close()
		return nil, nil, fmt.Errorf("init sensor: %w", err)
	}
	return out, reader, nil
}

// printState reads the sensor once and prints the report the agent would send.
func printState(reader sensor.Reader, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	r, err := reader.Read(ctx)
	if err != nil {
		return fmt.Errorf("read sensor: %w", err)
	}
	body, err := json.Marshal(telemetry.NewReport(fan.StateOff, r))
	if err != nil {
		return err
	}
	fmt.Println(string(body))
	return nil
}

// brokerLogger builds the slog logger the embedded broker requires.
// The broker is chatty at info, so it never logs below warn unless debugging.
func brokerLogger(level string) *slog.Logger {
	l := slog.LevelWarn
	if level == console.DebugLevel {
		l = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
