// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/ffutop/ups-modbus/internal/config"
	"github.com/ffutop/ups-modbus/internal/mirror"
	"github.com/ffutop/ups-modbus/internal/registry"
	"github.com/ffutop/ups-modbus/internal/telemetry"
	"github.com/ffutop/ups-modbus/internal/ups"
	"github.com/ffutop/ups-modbus/transport"
	"github.com/ffutop/ups-modbus/transport/local"
	"github.com/ffutop/ups-modbus/transport/rtu"
	"github.com/ffutop/ups-modbus/transport/rtuovertcp"
)

func main() {
	fs := newFlagSet()
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}
	configFile, _ := fs.GetString("config")

	// Load Configuration
	cfg, err := config.LoadConfig(configFile, fs)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	command := "status"
	args := fs.Args()
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	if err := run(context.Background(), cfg, command, args); err != nil {
		fmt.Fprintf(os.Stderr, "upsctl %s: %v\n", command, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, command string, args []string) error {
	dir, err := registry.Load(cfg.Registry.File)
	if err != nil {
		return err
	}

	// lookup and mirror never touch the device
	switch command {
	case "lookup":
		return lookupCommand(dir, args)
	case "mirror":
		return mirrorCommand(cfg)
	case "status", "get", "backlight", "serve":
	default:
		return fmt.Errorf("unknown command %q", command)
	}

	mr, err := mirror.Open(cfg.Mirror)
	if err != nil {
		return err
	}
	defer func() {
		if err := mr.Close(); err != nil {
			slog.Error("Failed to close mirror", "err", err)
		}
	}()

	port, err := openPort(cfg)
	if err != nil {
		return err
	}
	defer port.Close()

	opts := ups.Options{Directory: dir, Mirror: mr}
	var reg *prometheus.Registry
	if command == "serve" {
		reg = prometheus.NewRegistry()
		opts.Metrics = telemetry.NewMetrics(reg)
	}

	client, err := ups.New(port, cfg, opts)
	if err != nil {
		return err
	}

	switch command {
	case "get":
		return getCommand(ctx, client, args)
	case "backlight":
		return backlightCommand(ctx, client, args)
	case "serve":
		return serveCommand(ctx, client, reg, cfg.Metrics.Address)
	default:
		return statusCommand(ctx, client)
	}
}

// openPort selects the transport. Serial and TCP ports connect on first use
// and reconnect after a failure.
func openPort(cfg *config.Config) (transport.Port, error) {
	dev := cfg.Device
	switch dev.Transport {
	case "serial":
		slog.Debug("Using serial transport", "device", dev.Serial.Device, "baudRate", dev.Serial.BaudRate, "parity", dev.Serial.Parity)
		return transport.NewRedialer(func(ctx context.Context) (transport.Port, error) {
			s, err := rtu.Open(dev.Serial)
			if err != nil {
				return nil, err
			}
			s.WriteTimeout = dev.WriteTimeout
			return s, nil
		}), nil
	case "tcp":
		slog.Debug("Using RTU over TCP transport", "address", dev.Tcp.Address)
		return transport.NewRedialer(func(ctx context.Context) (transport.Port, error) {
			s, err := rtuovertcp.Dial(ctx, dev.Tcp.Address, dev.Tcp.Timeout)
			if err != nil {
				return nil, err
			}
			return s, nil
		}), nil
	case "local":
		p, err := local.Open(dev.Local, byte(dev.SlaveID))
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", dev.Transport)
	}
}

func setupLogger(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Printf("Failed to open log file, falling back to stdout: %v\n", err)
			handler = slog.NewTextHandler(os.Stdout, opts)
		} else {
			handler = slog.NewTextHandler(f, opts)
		}
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
