// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/grid-x/serial"

	"github.com/ffutop/ups-modbus/internal/config"
	"github.com/ffutop/ups-modbus/transport"
)

const (
	// Default read timeout of the driver. The stream pump retries on
	// timeout, so this only bounds how quickly Close takes effect.
	serialTimeout = 100 * time.Millisecond
)

// openFunc is replaced in tests.
var openFunc = func(c *serial.Config) (io.ReadWriteCloser, error) {
	return serial.Open(c)
}

// SerialConfig maps the configuration onto a grid-x/serial config.
func SerialConfig(cfg config.SerialConfig) *serial.Config {
	c := &serial.Config{
		Address:  cfg.Device,
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: cfg.StopBits,
		Parity:   cfg.Parity,
		Timeout:  cfg.Timeout,
	}
	if c.Timeout <= 0 {
		c.Timeout = serialTimeout
	}
	if cfg.RS485 {
		c.RS485 = serial.RS485Config{
			Enabled:            true,
			DelayRtsBeforeSend: cfg.DelayRtsBeforeSend,
			DelayRtsAfterSend:  cfg.DelayRtsAfterSend,
			RtsHighDuringSend:  cfg.RtsHighDuringSend,
			RtsHighAfterSend:   cfg.RtsHighAfterSend,
			RxDuringTx:         cfg.RxDuringTx,
		}
	}
	return c
}

// Open opens the serial device and wraps it in a buffered stream.
func Open(cfg config.SerialConfig) (*transport.Stream, error) {
	sc := SerialConfig(cfg)
	port, err := openFunc(sc)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", sc.Address, err)
	}
	slog.Debug("serial port opened", "device", sc.Address, "baud", sc.BaudRate, "parity", sc.Parity, "rs485", sc.RS485.Enabled)

	return transport.NewStream(port, isTimeout), nil
}

func isTimeout(err error) bool {
	return errors.Is(err, serial.ErrTimeout)
}
